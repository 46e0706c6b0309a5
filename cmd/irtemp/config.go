package main

import (
	"os"
	"strconv"

	"github.com/mklimuk/irtemp/cmd/irtemp/console"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

var configCmd = cli.Command{
	Name:  "config",
	Usage: "inspect and change the sensor configuration",
	Subcommands: cli.Commands{
		&configShowCmd,
		&configIIRCmd,
		&configPWMCmd,
	},
}

var configShowCmd = cli.Command{
	Name:  "show",
	Usage: "show the decoded configuration registers",
	Flags: busFlags(),
	Action: func(c *cli.Context) error {
		ctx, sensor, handle, err := openSensor(c)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		defer handle.close()
		config, err := sensor.GetConfig(ctx)
		if err != nil {
			return console.Exit(1, "error reading configuration: %s", console.Red(err))
		}
		enc := yaml.NewEncoder(os.Stdout)
		if err = enc.Encode(config); err != nil {
			return console.Exit(1, "encoding error: %s", console.Red(err))
		}
		return nil
	},
}

var configIIRCmd = cli.Command{
	Name:      "iir",
	Usage:     "set the IIR filter level",
	ArgsUsage: "<level 0-7>",
	Flags:     busFlags(),
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return console.Exit(1, "expected 1 argument, got %d", c.NArg())
		}
		level, err := strconv.ParseUint(c.Args().Get(0), 10, 8)
		if err != nil {
			return console.Exit(1, "could not parse filter level: %s", console.Red(err))
		}
		ctx, sensor, handle, err := openSensor(c)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		defer handle.close()
		if err = sensor.SetIIRFilter(ctx, uint8(level)); err != nil {
			return console.Exit(1, "error setting IIR filter: %s", console.Red(err))
		}
		console.PInfof(console.PictoFinish, "IIR filter set to %s", console.White(level))
		return nil
	},
}

var configPWMCmd = cli.Command{
	Name:  "pwm",
	Usage: "change PWM output settings",
	Flags: append(busFlags(),
		&cli.BoolFlag{Name: "enable", Usage: "switch the sensor to PWM output"},
		&cli.BoolFlag{Name: "disable", Usage: "switch the sensor to bus communication"},
		&cli.BoolFlag{Name: "fast", Usage: "select the fast PWM clock"},
		&cli.BoolFlag{Name: "slow", Usage: "select the slow PWM clock"},
		&cli.StringFlag{Name: "tmin", Usage: "PWM temperature minimum (hex register value)"},
		&cli.StringFlag{Name: "trange", Usage: "PWM temperature range (hex register value)"},
	),
	Action: func(c *cli.Context) error {
		ctx, sensor, handle, err := openSensor(c)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		defer handle.close()
		if c.Bool("enable") && c.Bool("disable") {
			return console.Exit(1, "enable and disable are mutually exclusive")
		}
		if c.Bool("fast") && c.Bool("slow") {
			return console.Exit(1, "fast and slow are mutually exclusive")
		}
		if c.IsSet("tmin") {
			tmin, err := strconv.ParseUint(c.String("tmin"), 16, 16)
			if err != nil {
				return console.Exit(1, "could not parse tmin: %s", console.Red(err))
			}
			if err = sensor.SetPWMTmin(ctx, uint16(tmin)); err != nil {
				return console.Exit(1, "error setting PWM Tmin: %s", console.Red(err))
			}
			console.Infof("PWM Tmin set to %#04x", tmin)
		}
		if c.IsSet("trange") {
			trange, err := strconv.ParseUint(c.String("trange"), 16, 16)
			if err != nil {
				return console.Exit(1, "could not parse trange: %s", console.Red(err))
			}
			if err = sensor.SetPWMTrange(ctx, uint16(trange)); err != nil {
				return console.Exit(1, "error setting PWM Trange: %s", console.Red(err))
			}
			console.Infof("PWM Trange set to %#04x", trange)
		}
		if c.Bool("fast") || c.Bool("slow") {
			if err = sensor.SetPWMFast(ctx, c.Bool("fast")); err != nil {
				return console.Exit(1, "error setting PWM clock: %s", console.Red(err))
			}
			console.Infof("PWM clock updated")
		}
		if c.Bool("enable") || c.Bool("disable") {
			if err = sensor.SetPWMMode(ctx, c.Bool("enable")); err != nil {
				return console.Exit(1, "error setting PWM mode: %s", console.Red(err))
			}
			if c.Bool("enable") {
				console.Warn("the sensor will stop answering on the bus; use 'power pwm-to-bus' to talk to it again")
			}
			console.PInfof(console.PictoFinish, "PWM mode updated")
		}
		return nil
	},
}
