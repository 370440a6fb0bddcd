// Package flags holds helpers shared by the command line apps.
package flags

import (
	"github.com/urfave/cli/v2"
)

// Version of the toolkit.
const Version = "0.3.0"

// NewApp creates an app with sane defaults.
func NewApp(name, gitCommit, usage string) *cli.App {
	app := cli.NewApp()
	app.Name = name
	app.Usage = usage
	app.Version = VersionWithCommit(gitCommit)
	app.EnableBashCompletion = true
	return app
}

// VersionWithCommit appends a short commit hash to Version when one is known.
func VersionWithCommit(gitCommit string) string {
	if len(gitCommit) >= 8 {
		return Version + "-" + gitCommit[:8]
	}
	return Version
}
