package utils

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/K-tang-mkv/bittensor-strat/internal/config"
	"github.com/K-tang-mkv/bittensor-strat/internal/flags"
	"github.com/K-tang-mkv/bittensor-strat/internal/notify"
)

var (
	SMTPHostFlag = &cli.StringFlag{
		Name:     "smtp.host",
		Usage:    "SMTP submission host",
		Value:    "smtp.gmail.com",
		EnvVars:  []string{"SMTP_HOST"},
		Category: flags.AlertCategory,
	}
	SMTPPortFlag = &cli.IntFlag{
		Name:     "smtp.port",
		Usage:    "SMTP submission port",
		Value:    587,
		EnvVars:  []string{"SMTP_PORT"},
		Category: flags.AlertCategory,
	}
	SMTPFromFlag = &cli.StringFlag{
		Name:     "smtp.from",
		Usage:    "Sender address, also the SMTP username",
		EnvVars:  []string{"SMTP_FROM"},
		Category: flags.AlertCategory,
	}
	SMTPPasswordFlag = &cli.StringFlag{
		Name:     "smtp.password",
		Usage:    "SMTP application password",
		EnvVars:  []string{"SMTP_PASSWORD"},
		Category: flags.AlertCategory,
	}
	SMTPToFlag = &cli.StringSliceFlag{
		Name:     "smtp.to",
		Usage:    "Alert recipient (repeatable)",
		EnvVars:  []string{"ALERT_EMAIL_TO"},
		Category: flags.AlertCategory,
	}
	SMTPTimeoutFlag = &cli.DurationFlag{
		Name:     "smtp.timeout",
		Usage:    "Upper bound on one alert delivery",
		Value:    15 * time.Second,
		Category: flags.AlertCategory,
	}
)

// AlertFlags configure email alerts.
var AlertFlags = []cli.Flag{
	SMTPHostFlag,
	SMTPPortFlag,
	SMTPFromFlag,
	SMTPPasswordFlag,
	SMTPToFlag,
	SMTPTimeoutFlag,
}

// MakeNotifier builds an email notifier from flags layered over the settings
// file. It returns nil when no sender or recipient is configured.
func MakeNotifier(c *cli.Context, file config.SMTPSection) notify.Notifier {
	cfg := notify.SMTPConfig{
		Host:     file.Host,
		Port:     file.Port,
		From:     file.From,
		Password: c.String(SMTPPasswordFlag.Name),
		To:       file.To,
		Timeout:  c.Duration(SMTPTimeoutFlag.Name),
	}
	if cfg.Host == "" || c.IsSet(SMTPHostFlag.Name) {
		cfg.Host = c.String(SMTPHostFlag.Name)
	}
	if cfg.Port == 0 || c.IsSet(SMTPPortFlag.Name) {
		cfg.Port = c.Int(SMTPPortFlag.Name)
	}
	if c.IsSet(SMTPFromFlag.Name) {
		cfg.From = c.String(SMTPFromFlag.Name)
	}
	if to := c.StringSlice(SMTPToFlag.Name); len(to) > 0 {
		cfg.To = to
	}

	if cfg.From == "" || len(cfg.To) == 0 {
		return nil
	}
	return notify.NewSMTPNotifier(cfg)
}
