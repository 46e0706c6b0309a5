package main

import (
	"github.com/mklimuk/irtemp/cmd/irtemp/console"
	"github.com/urfave/cli/v2"
)

var powerCmd = cli.Command{
	Name:  "power",
	Usage: "sleep, wake and PWM mode transitions",
	Subcommands: cli.Commands{
		&powerSleepCmd,
		&powerWakeCmd,
		&powerPWMToBusCmd,
	},
}

var powerSleepCmd = cli.Command{
	Name:  "sleep",
	Usage: "put the sensor into low-power mode",
	Flags: busFlags(),
	Action: func(c *cli.Context) error {
		ctx, sensor, handle, err := openSensor(c)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		defer handle.close()
		if err = sensor.Sleep(ctx); err != nil {
			return console.Exit(1, "error putting the sensor to sleep: %s", console.Red(err))
		}
		console.PInfof(console.PictoSleep, "sensor is sleeping")
		return nil
	},
}

var powerWakeCmd = cli.Command{
	Name:  "wake",
	Usage: "wake a sleeping sensor with a clock line pulse",
	Flags: append(busFlags(),
		&cli.StringFlag{
			Name:     "pin",
			Usage:    "pin wired to the sensor clock line",
			Required: true,
		},
	),
	Action: func(c *cli.Context) error {
		ctx, sensor, handle, err := openSensor(c)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		defer handle.close()
		pin, err := handle.pin(c.String("pin"))
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		if err = sensor.Wake(ctx, pin); err != nil {
			return console.Exit(1, "error waking the sensor: %s", console.Red(err))
		}
		console.PInfof(console.PictoFinish, "sensor is awake")
		return nil
	},
}

var powerPWMToBusCmd = cli.Command{
	Name:  "pwm-to-bus",
	Usage: "switch a sensor in PWM mode back to bus communication",
	Flags: append(busFlags(),
		&cli.StringFlag{
			Name:     "pin",
			Usage:    "pin wired to the sensor clock line",
			Required: true,
		},
	),
	Action: func(c *cli.Context) error {
		ctx, sensor, handle, err := openSensor(c)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		defer handle.close()
		pin, err := handle.pin(c.String("pin"))
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		if err = sensor.PWMToBus(ctx, pin); err != nil {
			return console.Exit(1, "error switching the sensor to bus mode: %s", console.Red(err))
		}
		console.PInfof(console.PictoFinish, "sensor is answering on the bus")
		return nil
	},
}
