package thermo

import (
	"context"
	"fmt"
	"time"

	"github.com/mklimuk/irtemp"
)

// Datasheet timings for the SCL wake pulse and the post-wake stabilization
// period before the first valid measurement.
const (
	wakePulseTime     = 50 * time.Millisecond
	wakeStabilizeTime = 500 * time.Millisecond
	pwmExitPulseTime  = 100 * time.Millisecond
)

// Sleep puts the sensor into its low-power mode and releases the bus. The
// sleep command is a one-byte payload (the PEC alone) addressed to the
// command pseudo-register; a sleeping device no longer answers on the bus.
func (s *MLX90615) Sleep(ctx context.Context) error {
	crc := crc8(crc8(0, s.addr<<1), cmdSleep)
	s.mx.Lock()
	err := s.transport.WriteReg(ctx, s.addr, cmdSleep, []byte{crc})
	s.mx.Unlock()
	if err != nil {
		return fmt.Errorf("mlx90615: could not send sleep command: %w", err)
	}
	if err = s.transport.Stop(ctx); err != nil {
		return fmt.Errorf("mlx90615: could not release the bus: %w", err)
	}
	return nil
}

// Wake brings a sleeping sensor back onto the bus by holding the clock line
// low, restarts the bus engine and waits out the stabilization period.
// Unless disabled with WithoutPresenceCheck, a bus scan then confirms the
// device answers again.
func (s *MLX90615) Wake(ctx context.Context, pin irtemp.ClockPin, opts ...TxOption) error {
	return s.rejoinBus(ctx, pin, wakePulseTime, wakeStabilizeTime, s.txOptions(opts))
}

// PWMToBus switches a sensor running in PWM mode back to bus communication
// with a short clock line pulse. The switch is volatile: the device returns
// to PWM on the next power cycle unless the mode bit is reprogrammed with
// SetPWMMode.
func (s *MLX90615) PWMToBus(ctx context.Context, pin irtemp.ClockPin, opts ...TxOption) error {
	return s.rejoinBus(ctx, pin, pwmExitPulseTime, 0, s.txOptions(opts))
}

func (s *MLX90615) rejoinBus(ctx context.Context, pin irtemp.ClockPin, pulse, stabilize time.Duration, cfg txOptions) error {
	if err := pin.SetLow(ctx); err != nil {
		return fmt.Errorf("mlx90615: could not pull the clock line low: %w", err)
	}
	if err := wait(ctx, pulse); err != nil {
		return err
	}
	if err := pin.SetHigh(ctx); err != nil {
		return fmt.Errorf("mlx90615: could not release the clock line: %w", err)
	}
	if err := s.transport.Start(ctx); err != nil {
		return fmt.Errorf("mlx90615: could not restart the bus: %w", err)
	}
	if err := wait(ctx, stabilize); err != nil {
		return err
	}
	if !cfg.verifyPresence {
		return nil
	}
	addresses, err := s.transport.Scan(ctx)
	if err != nil {
		return fmt.Errorf("mlx90615: bus scan failed: %w", err)
	}
	for _, a := range addresses {
		if a == s.addr {
			return nil
		}
	}
	return &WakeVerifyError{Address: s.addr}
}
