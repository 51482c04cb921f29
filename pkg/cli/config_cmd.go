package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/a11y-runner/pkg/config"
)

var configCommand = &cli.Command{
	Name:  "config",
	Usage: "Print the effective settings",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "env",
			Usage: "List the environment variables that override settings",
		},
	},
	Action: printConfig,
}

func printConfig(c *cli.Context) error {
	if c.Bool("env") {
		for _, name := range config.EnvNames() {
			if v, ok := os.LookupEnv(name); ok {
				fmt.Fprintf(c.App.Writer, "%s=%s\n", name, v)
				continue
			}
			fmt.Fprintln(c.App.Writer, name)
		}
		return nil
	}

	s, err := loadSettings(c)
	if err != nil {
		return err
	}
	data, err := s.YAML()
	if err != nil {
		return err
	}
	_, err = c.App.Writer.Write(data)
	return err
}
