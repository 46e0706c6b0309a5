package i2c

import (
	"context"
	"fmt"
	"sync"

	"github.com/mklimuk/irtemp"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

var _ irtemp.Bus = &GenericBus{}

// GenericBus adapts a kernel I2C device (Raspberry Pi and friends) to
// irtemp.Bus. Register reads go out as a single write-then-read transaction,
// which the underlying driver maps to a repeated start.
type GenericBus struct {
	mx   sync.Mutex
	name string
	bus  i2c.BusCloser
}

func NewGenericBus(dev string) (*GenericBus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	bus, err := i2creg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("could not open i2c bus: %w", err)
	}
	return &GenericBus{
		name: dev,
		bus:  bus,
	}, nil
}

func (b *GenericBus) ReadReg(ctx context.Context, address, register byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.bus == nil {
		return fmt.Errorf("i2c bus %s is closed", b.name)
	}
	err := b.bus.Tx(uint16(address), []byte{register}, buffer)
	if err != nil {
		return fmt.Errorf("could not read register %#02x from %#02x: %w", register, address, err)
	}
	return nil
}

func (b *GenericBus) WriteReg(ctx context.Context, address, register byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.bus == nil {
		return fmt.Errorf("i2c bus %s is closed", b.name)
	}
	frame := make([]byte, 0, len(buffer)+1)
	frame = append(frame, register)
	frame = append(frame, buffer...)
	err := b.bus.Tx(uint16(address), frame, nil)
	if err != nil {
		return fmt.Errorf("could not write register %#02x on %#02x: %w", register, address, err)
	}
	return nil
}

// Start reopens the bus device if a previous Stop closed it.
func (b *GenericBus) Start(ctx context.Context) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.bus != nil {
		return nil
	}
	bus, err := i2creg.Open(b.name)
	if err != nil {
		return fmt.Errorf("could not reopen i2c bus %s: %w", b.name, err)
	}
	b.bus = bus
	return nil
}

// Stop closes the bus device and releases the lines to other users.
func (b *GenericBus) Stop(ctx context.Context) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.bus == nil {
		return nil
	}
	err := b.bus.Close()
	b.bus = nil
	if err != nil {
		return fmt.Errorf("could not close i2c bus %s: %w", b.name, err)
	}
	return nil
}

// Scan probes the valid 7-bit address range with one-byte reads and returns
// the addresses that acknowledged.
func (b *GenericBus) Scan(ctx context.Context) ([]byte, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.bus == nil {
		return nil, fmt.Errorf("i2c bus %s is closed", b.name)
	}
	var found []byte
	probe := make([]byte, 1)
	for address := byte(0x08); address <= 0x77; address++ {
		if err := ctx.Err(); err != nil {
			return found, err
		}
		if err := b.bus.Tx(uint16(address), nil, probe); err != nil {
			continue
		}
		found = append(found, address)
	}
	return found, nil
}

func (b *GenericBus) Close() error {
	return b.Stop(context.Background())
}
