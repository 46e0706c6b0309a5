package irtemp

import (
	"context"
	"fmt"
)

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")

// RegisterReader reads len(buffer) bytes from a one-byte register offset of
// the device at the given 7-bit address.
type RegisterReader interface {
	ReadReg(ctx context.Context, address, register byte, buffer []byte) error
}

// RegisterWriter writes buffer to a one-byte register offset of the device
// at the given 7-bit address.
type RegisterWriter interface {
	WriteReg(ctx context.Context, address, register byte, buffer []byte) error
}

// BusController manages the bus session itself. Stop releases the bus lines;
// Start re-acquires them after a stop or a mode transition. Scan returns the
// 7-bit addresses currently answering on the bus, in ascending order.
type BusController interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Scan(ctx context.Context) ([]byte, error)
}

// Bus is the transport capability consumed by drivers. Implementations are
// not required to be safe for concurrent use by multiple devices; callers
// sharing one physical bus must serialize access externally.
type Bus interface {
	RegisterReader
	RegisterWriter
	BusController
}

// ClockPin is a digital output overriding the bus clock line. It is only
// used during sleep/wake and PWM-to-bus mode transitions, where the clock
// line has to be held low for a fixed pulse before the bus is restarted.
type ClockPin interface {
	SetLow(ctx context.Context) error
	SetHigh(ctx context.Context) error
}
