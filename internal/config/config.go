// Package config loads the optional TOML settings file and .env files.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/naoina/toml"
	"github.com/shopspring/decimal"

	"github.com/K-tang-mkv/bittensor-strat/internal/decision"
	"github.com/K-tang-mkv/bittensor-strat/internal/domain"
	"github.com/K-tang-mkv/bittensor-strat/internal/unstake"
)

// File is the TOML settings file. Every field is optional; flags override it.
type File struct {
	Unstake  UnstakeSection  `toml:"unstake"`
	Monitor  MonitorSection  `toml:"monitor"`
	Register RegisterSection `toml:"register"`
	SMTP     SMTPSection     `toml:"smtp"`
}

// UnstakeSection configures the unstake loop.
type UnstakeSection struct {
	Mode                string          `toml:"mode"`
	Threshold           string          `toml:"threshold"` // TAO
	AllowPartial        *bool           `toml:"allow_partial"`
	ToleranceMultiplier string          `toml:"tolerance_multiplier"`
	ShortWait           string          `toml:"short_wait"`
	LongWait            string          `toml:"long_wait"`
	FailureBackoff      string          `toml:"failure_backoff"`
	MaxExecutions       int             `toml:"max_executions"`
	Targets             []TargetSection `toml:"targets"`
}

// TargetSection is one managed (hotkey, netuid) position.
type TargetSection struct {
	Hotkey string `toml:"hotkey"`
	Netuid uint16 `toml:"netuid"`
}

// MonitorSection configures the subnet monitor.
type MonitorSection struct {
	Network       string `toml:"network"`
	CheckInterval string `toml:"check_interval"`
	AutoRegister  bool   `toml:"auto_register"`
}

// RegisterSection configures burned registration.
type RegisterSection struct {
	MaxCost       string `toml:"max_cost"` // TAO
	RetryInterval string `toml:"retry_interval"`
}

// SMTPSection configures email alerts. The password is read from the environment only.
type SMTPSection struct {
	Host string   `toml:"host"`
	Port int      `toml:"port"`
	From string   `toml:"from"`
	To   []string `toml:"to"`
}

// ErrBadTarget is returned for a malformed "hotkey:netuid" target.
var ErrBadTarget = errors.New("target must be hotkey:netuid")

// LoadEnv loads .env style files into the process environment.
// Missing files are ignored; variables already set are kept.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if f == "" {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads a TOML settings file. An empty path yields an empty File.
func Load(path string) (*File, error) {
	f := &File{}
	if path == "" {
		return f, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return f, nil
}

// Policy overlays the section on base. The result is not validated.
func (s UnstakeSection) Policy(base unstake.Policy) (unstake.Policy, error) {
	p := base

	if s.Mode != "" {
		p.Mode = domain.UnstakeMode(s.Mode)
	}
	if s.Threshold != "" {
		th, err := domain.ParseTao(s.Threshold)
		if err != nil {
			return p, fmt.Errorf("unstake.threshold: %w", err)
		}
		p.Threshold = th
	}
	if s.AllowPartial != nil {
		p.AllowPartial = *s.AllowPartial
	}
	if s.ToleranceMultiplier != "" {
		m, err := decimal.NewFromString(s.ToleranceMultiplier)
		if err != nil {
			return p, fmt.Errorf("unstake.tolerance_multiplier: %w", err)
		}
		p.ToleranceMultiplier = m
	}

	var err error
	if p.ShortWait, err = duration("unstake.short_wait", s.ShortWait, p.ShortWait); err != nil {
		return p, err
	}
	if p.LongWait, err = duration("unstake.long_wait", s.LongWait, p.LongWait); err != nil {
		return p, err
	}
	if p.FailureBackoff, err = duration("unstake.failure_backoff", s.FailureBackoff, p.FailureBackoff); err != nil {
		return p, err
	}

	if s.MaxExecutions != 0 {
		p.MaxExecutions = s.MaxExecutions
	}
	if len(s.Targets) > 0 {
		targets := make([]decision.Target, 0, len(s.Targets))
		for _, t := range s.Targets {
			targets = append(targets, decision.Target{Hotkey: t.Hotkey, Netuid: t.Netuid})
		}
		p.Targets = targets
	}
	return p, nil
}

// Interval returns the configured check interval, or def.
func (s MonitorSection) Interval(def time.Duration) (time.Duration, error) {
	return duration("monitor.check_interval", s.CheckInterval, def)
}

// Cost returns the configured max registration cost, or def.
func (s RegisterSection) Cost(def domain.Balance) (domain.Balance, error) {
	if s.MaxCost == "" {
		return def, nil
	}
	b, err := domain.ParseTao(s.MaxCost)
	if err != nil {
		return 0, fmt.Errorf("register.max_cost: %w", err)
	}
	return b, nil
}

// Retry returns the configured retry interval, or def.
func (s RegisterSection) Retry(def time.Duration) (time.Duration, error) {
	return duration("register.retry_interval", s.RetryInterval, def)
}

// ParseTargets parses "hotkey:netuid" pairs.
func ParseTargets(args []string) ([]decision.Target, error) {
	var targets []decision.Target
	for _, arg := range args {
		for _, item := range strings.Split(arg, ",") {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			hotkey, netuid, ok := strings.Cut(item, ":")
			if !ok || hotkey == "" {
				return nil, fmt.Errorf("%w: %q", ErrBadTarget, item)
			}
			n, err := strconv.ParseUint(netuid, 10, 16)
			if err != nil {
				return nil, fmt.Errorf("%w: %q: %v", ErrBadTarget, item, err)
			}
			targets = append(targets, decision.Target{Hotkey: hotkey, Netuid: uint16(n)})
		}
	}
	return targets, nil
}

func duration(key, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
