package i2c

import (
	"context"
	"fmt"
	"sync"

	"github.com/mklimuk/irtemp"
	"gobot.io/x/gobot/v2/drivers/gpio"
	"gobot.io/x/gobot/v2/drivers/i2c"
)

var _ irtemp.Bus = &AdaptorBus{}

// Adaptor is the slice of a gobot platform adaptor the bus needs: connection
// lifecycle plus the I2C bus access. Platform adaptors such as
// nanopi.NewNeoAdaptor() satisfy it.
type Adaptor interface {
	i2c.Connector
	Connect() error
	Finalize() error
}

// AdaptorBus exposes a gobot platform adaptor as irtemp.Bus. A generic I2C
// driver is opened lazily per slave address and cached for reuse.
type AdaptorBus struct {
	mx      sync.Mutex
	adaptor Adaptor
	busNr   int
	boards  map[byte]*i2c.GenericDriver
}

func NewAdaptorBus(adaptor Adaptor, busNr int) *AdaptorBus {
	return &AdaptorBus{
		adaptor: adaptor,
		busNr:   busNr,
		boards:  make(map[byte]*i2c.GenericDriver),
	}
}

func (b *AdaptorBus) board(address byte) (*i2c.GenericDriver, error) {
	if board, ok := b.boards[address]; ok {
		return board, nil
	}
	board := i2c.NewGenericDriver(b.adaptor, "irtemp", int(address), func(c i2c.Config) {
		c.SetBus(b.busNr)
	})
	if err := board.Start(); err != nil {
		return nil, fmt.Errorf("could not start driver for %#02x: %w", address, err)
	}
	b.boards[address] = board
	return board, nil
}

func (b *AdaptorBus) ReadReg(ctx context.Context, address, register byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	board, err := b.board(address)
	if err != nil {
		return err
	}
	if err = board.ReadBlockData(register, buffer); err != nil {
		return fmt.Errorf("could not read register %#02x from %#02x: %w", register, address, err)
	}
	return nil
}

func (b *AdaptorBus) WriteReg(ctx context.Context, address, register byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	board, err := b.board(address)
	if err != nil {
		return err
	}
	if err = board.WriteBlockData(register, buffer); err != nil {
		return fmt.Errorf("could not write register %#02x on %#02x: %w", register, address, err)
	}
	return nil
}

func (b *AdaptorBus) Start(ctx context.Context) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if err := b.adaptor.Connect(); err != nil {
		return fmt.Errorf("adaptor connect error: %w", err)
	}
	return nil
}

// Stop halts the cached drivers and finalizes the adaptor, releasing the bus
// device.
func (b *AdaptorBus) Stop(ctx context.Context) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	for address, board := range b.boards {
		if err := board.Halt(); err != nil {
			return fmt.Errorf("could not halt driver for %#02x: %w", address, err)
		}
		delete(b.boards, address)
	}
	if err := b.adaptor.Finalize(); err != nil {
		return fmt.Errorf("adaptor finalize error: %w", err)
	}
	return nil
}

// Scan probes the valid 7-bit address range with one-byte reads and returns
// the addresses that acknowledged. Drivers opened for non-answering
// addresses are discarded.
func (b *AdaptorBus) Scan(ctx context.Context) ([]byte, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	var found []byte
	for address := byte(0x08); address <= 0x77; address++ {
		if err := ctx.Err(); err != nil {
			return found, err
		}
		board, err := b.board(address)
		if err != nil {
			continue
		}
		if _, err = board.ReadByte(); err != nil {
			_ = board.Halt()
			delete(b.boards, address)
			continue
		}
		found = append(found, address)
	}
	return found, nil
}

var _ irtemp.ClockPin = &AdaptorPin{}

// AdaptorPin drives a digital output of a gobot platform adaptor as the
// clock line override used for wake and PWM exit pulses.
type AdaptorPin struct {
	writer gpio.DigitalWriter
	pin    string
}

func NewAdaptorPin(writer gpio.DigitalWriter, pin string) *AdaptorPin {
	return &AdaptorPin{writer: writer, pin: pin}
}

func (p *AdaptorPin) SetLow(ctx context.Context) error {
	if err := p.writer.DigitalWrite(p.pin, 0); err != nil {
		return fmt.Errorf("could not drive pin %s low: %w", p.pin, err)
	}
	return nil
}

func (p *AdaptorPin) SetHigh(ctx context.Context) error {
	if err := p.writer.DigitalWrite(p.pin, 1); err != nil {
		return fmt.Errorf("could not drive pin %s high: %w", p.pin, err)
	}
	return nil
}
