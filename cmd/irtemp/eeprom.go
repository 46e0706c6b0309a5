package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/mklimuk/irtemp/cmd/irtemp/console"
	"github.com/mklimuk/irtemp/thermo"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

var eepromCmd = cli.Command{
	Name:  "eeprom",
	Usage: "inspect and program the sensor EEPROM",
	Subcommands: cli.Commands{
		&eepromDumpCmd,
		&emissivityCmd,
		&addressCmd,
	},
}

var eepromDumpCmd = cli.Command{
	Name:  "dump",
	Usage: "dump all EEPROM registers",
	Flags: busFlags(),
	Action: func(c *cli.Context) error {
		ctx, sensor, handle, err := openSensor(c)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		defer handle.close()
		data, err := sensor.ReadEEPROM(ctx)
		if err != nil {
			return console.Exit(1, "EEPROM dump error: %s", console.Red(err))
		}
		dump := make(map[string]string, len(data))
		for i, word := range data {
			dump[fmt.Sprintf("0x%02x", 0x10+i)] = fmt.Sprintf("0x%04x", word)
		}
		enc := yaml.NewEncoder(os.Stdout)
		if err = enc.Encode(dump); err != nil {
			return console.Exit(1, "encoding error: %s", console.Red(err))
		}
		return nil
	},
}

var emissivityCmd = cli.Command{
	Name:  "emissivity",
	Usage: "get or set the emissivity percentage",
	Subcommands: cli.Commands{
		&cli.Command{
			Name:  "get",
			Flags: busFlags(),
			Action: func(c *cli.Context) error {
				ctx, sensor, handle, err := openSensor(c)
				if err != nil {
					return console.Exit(1, "%s", console.Red(err))
				}
				defer handle.close()
				percent, err := sensor.GetEmissivity(ctx)
				if err != nil {
					return console.Exit(1, "error getting emissivity: %s", console.Red(err))
				}
				console.Printf("emissivity: %s%%\n", console.White(percent))
				return nil
			},
		},
		&cli.Command{
			Name:      "set",
			ArgsUsage: "<percent 5-100>",
			Flags:     busFlags(),
			Action: func(c *cli.Context) error {
				if c.NArg() != 1 {
					return console.Exit(1, "expected 1 argument, got %d", c.NArg())
				}
				percent, err := strconv.Atoi(c.Args().Get(0))
				if err != nil {
					return console.Exit(1, "could not parse emissivity: %s", console.Red(err))
				}
				ctx, sensor, handle, err := openSensor(c)
				if err != nil {
					return console.Exit(1, "%s", console.Red(err))
				}
				defer handle.close()
				if err = sensor.SetEmissivity(ctx, percent); err != nil {
					return console.Exit(1, "error setting emissivity: %s", console.Red(err))
				}
				console.PInfof(console.PictoFinish, "emissivity set to %s%%", console.White(percent))
				return nil
			},
		},
	},
}

var addressCmd = cli.Command{
	Name:  "address",
	Usage: "get or program the sensor I2C address",
	Subcommands: cli.Commands{
		&cli.Command{
			Name:  "get",
			Flags: busFlags(),
			Action: func(c *cli.Context) error {
				ctx, sensor, handle, err := openSensor(c)
				if err != nil {
					return console.Exit(1, "%s", console.Red(err))
				}
				defer handle.close()
				address, err := sensor.ReadI2CAddress(ctx)
				if err != nil {
					return console.Exit(1, "error getting stored address: %s", console.Red(err))
				}
				console.Printf("stored address: %s\n", console.White(fmt.Sprintf("%#02x", address)))
				return nil
			},
		},
		&cli.Command{
			Name:      "set",
			ArgsUsage: "<address hex, 08-77>",
			Flags:     busFlags(),
			Action: func(c *cli.Context) error {
				if c.NArg() != 1 {
					return console.Exit(1, "expected 1 argument, got %d", c.NArg())
				}
				parsed, err := strconv.ParseUint(c.Args().Get(0), 16, 7)
				if err != nil {
					return console.Exit(1, "could not parse address: %s", console.Red(err))
				}
				answer, err := console.YesOrNo(fmt.Sprintf("programming address %#02x is permanent, continue?", parsed))
				if err != nil {
					return console.Exit(1, "prompt error: %s", console.Red(err))
				}
				if answer != console.Yes {
					console.PInfof(console.PictoStop, "aborted")
					return nil
				}
				ctx := console.SetVerbose(c.Context, c.Bool("verbose"))
				handle, err := openBus(ctx, c)
				if err != nil {
					return console.Exit(1, "%s", console.Red(err))
				}
				defer handle.close()
				// the device only accepts a new address when spoken to on
				// the provisioning address
				sensor := thermo.NewMLX90615(handle.bus, thermo.WithAddress(thermo.ProvisioningAddress))
				if err = sensor.SetI2CAddress(ctx, byte(parsed)); err != nil {
					return console.Exit(1, "error programming address: %s", console.Red(err))
				}
				console.PInfof(console.PictoKey, "address set to %s, power cycle the sensor", console.White(fmt.Sprintf("%#02x", parsed)))
				return nil
			},
		},
	},
}
