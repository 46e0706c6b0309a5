package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mklimuk/irtemp"
	"github.com/mklimuk/irtemp/adapter"
	sensorbus "github.com/mklimuk/irtemp/i2c"
	"github.com/mklimuk/irtemp/cmd/irtemp/console"
	"github.com/mklimuk/irtemp/thermo"
	"github.com/urfave/cli/v2"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"
)

// flags shared by every command that talks to the sensor
func busFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "adapter",
			Aliases: []string{"a"},
			Usage:   "bus adapter: mcp2221, i2c or gobot",
			Value:   "mcp2221",
		},
		&cli.StringFlag{
			Name:    "device",
			Aliases: []string{"d"},
			Usage:   "i2c device for the i2c adapter",
			Value:   "/dev/i2c-1",
		},
		&cli.IntFlag{
			Name:  "bus",
			Usage: "bus number for the gobot adapter",
			Value: 0,
		},
		&cli.StringFlag{
			Name:  "addr",
			Usage: "sensor address (hex); use 00 for an unprovisioned device",
			Value: "5b",
		},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}},
	}
}

// busHandle bundles an open bus with its clock pin factory and teardown.
type busHandle struct {
	bus   irtemp.Bus
	pin   func(name string) (irtemp.ClockPin, error)
	close func()
}

func openBus(ctx context.Context, c *cli.Context) (*busHandle, error) {
	switch c.String("adapter") {
	case "mcp2221":
		a := adapter.NewMCP2221()
		if err := a.Init(ctx); err != nil {
			return nil, fmt.Errorf("adapter initialization error: %w", err)
		}
		return &busHandle{
			bus: a,
			pin: func(name string) (irtemp.ClockPin, error) {
				index, err := strconv.Atoi(name)
				if err != nil {
					return nil, fmt.Errorf("mcp2221 pins are numbered 0..3, got %q", name)
				}
				return a.Pin(index), nil
			},
			close: func() {},
		}, nil
	case "i2c":
		bus, err := sensorbus.NewGenericBus(c.String("device"))
		if err != nil {
			return nil, err
		}
		return &busHandle{
			bus: bus,
			pin: func(string) (irtemp.ClockPin, error) {
				return nil, fmt.Errorf("the i2c adapter cannot drive the clock line; use mcp2221 or gobot")
			},
			close: func() { _ = bus.Close() },
		}, nil
	case "gobot":
		npi := nanopi.NewNeoAdaptor()
		if err := npi.Connect(); err != nil {
			return nil, fmt.Errorf("adaptor connect error: %w", err)
		}
		return &busHandle{
			bus: sensorbus.NewAdaptorBus(npi, c.Int("bus")),
			pin: func(name string) (irtemp.ClockPin, error) {
				return sensorbus.NewAdaptorPin(npi, name), nil
			},
			close: func() { _ = npi.Finalize() },
		}, nil
	}
	return nil, fmt.Errorf("unknown adapter %q", c.String("adapter"))
}

func parseAddress(c *cli.Context) (byte, error) {
	raw := strings.TrimPrefix(strings.ToLower(c.String("addr")), "0x")
	address, err := strconv.ParseUint(raw, 16, 7)
	if err != nil {
		return 0, fmt.Errorf("could not parse sensor address %q: %w", c.String("addr"), err)
	}
	return byte(address), nil
}

// openSensor builds a driver instance on the requested adapter and address.
func openSensor(c *cli.Context) (context.Context, *thermo.MLX90615, *busHandle, error) {
	ctx := console.SetVerbose(context.Background(), c.Bool("verbose"))
	handle, err := openBus(ctx, c)
	if err != nil {
		return ctx, nil, nil, err
	}
	address, err := parseAddress(c)
	if err != nil {
		handle.close()
		return ctx, nil, nil, err
	}
	return ctx, thermo.NewMLX90615(handle.bus, thermo.WithAddress(address)), handle, nil
}
