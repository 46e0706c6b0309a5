package main

import (
	"github.com/mklimuk/irtemp/cmd/irtemp/console"
	"github.com/urfave/cli/v2"
)

var readCmd = cli.Command{
	Name:  "read",
	Usage: "read measurements from the sensor",
	Subcommands: cli.Commands{
		&readTempCmd,
		&readRawCmd,
		&readIDCmd,
	},
}

var readTempCmd = cli.Command{
	Name:    "temperature",
	Aliases: []string{"temp"},
	Flags:   busFlags(),
	Action: func(c *cli.Context) error {
		ctx, sensor, handle, err := openSensor(c)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		defer handle.close()
		object, err := sensor.GetObjectTemperature(ctx)
		if err != nil {
			return console.Exit(1, "error getting object temperature read: %s", console.Red(err))
		}
		ambient, err := sensor.GetAmbientTemperature(ctx)
		if err != nil {
			return console.Exit(1, "error getting ambient temperature read: %s", console.Red(err))
		}
		console.Printf("%s object  %s\n%s ambient %s\n",
			console.PictoThermometer, console.White(object),
			console.PictoThermometer, console.White(ambient))
		return nil
	},
}

var readRawCmd = cli.Command{
	Name:  "raw",
	Usage: "read the raw IR channel register",
	Flags: busFlags(),
	Action: func(c *cli.Context) error {
		ctx, sensor, handle, err := openSensor(c)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		defer handle.close()
		raw, err := sensor.ReadRawIR(ctx)
		if err != nil {
			return console.Exit(1, "error getting raw IR read: %s", console.Red(err))
		}
		console.Printf("raw IR: %s\n", console.White(raw))
		return nil
	},
}

var readIDCmd = cli.Command{
	Name:  "id",
	Usage: "read the factory ID number",
	Flags: busFlags(),
	Action: func(c *cli.Context) error {
		ctx, sensor, handle, err := openSensor(c)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		defer handle.close()
		id, err := sensor.ReadID(ctx)
		if err != nil {
			return console.Exit(1, "error getting sensor ID: %s", console.Red(err))
		}
		console.PInfof(console.PictoPin, "sensor ID: %#08x", id)
		return nil
	},
}
