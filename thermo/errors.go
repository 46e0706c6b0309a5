package thermo

import "fmt"

// ChecksumError reports a PEC byte that disagrees with the checksum computed
// over a register read. It usually means bus noise or a desynchronized
// transaction; the read is not retried by the driver.
type ChecksumError struct {
	Register byte
	Want     byte
	Got      byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("mlx90615: PEC mismatch reading register %#02x: computed %#02x, received %#02x", e.Register, e.Want, e.Got)
}

// WriteVerifyError reports a post-write read-back that differs from the value
// written. Either the EEPROM cell failed to latch or the read happened before
// the write cycle completed.
type WriteVerifyError struct {
	Register byte
	Expected uint16
	Got      uint16
}

func (e *WriteVerifyError) Error() string {
	return fmt.Sprintf("mlx90615: write verification of register %#02x failed: wrote %#04x, read back %#04x", e.Register, e.Expected, e.Got)
}

// EraseError wraps a failure of the erase half of an EEPROM update. The
// program half is never attempted after it.
type EraseError struct {
	Register byte
	Err      error
}

func (e *EraseError) Error() string {
	return fmt.Sprintf("mlx90615: could not erase EEPROM register %#02x: %v", e.Register, e.Err)
}

func (e *EraseError) Unwrap() error { return e.Err }

// ProgramError wraps a failure of the program half of an EEPROM update. The
// register was already erased, so it is left holding zero; callers recover by
// retrying the whole field write.
type ProgramError struct {
	Register byte
	Err      error
}

func (e *ProgramError) Error() string {
	return fmt.Sprintf("mlx90615: could not program EEPROM register %#02x: %v", e.Register, e.Err)
}

func (e *ProgramError) Unwrap() error { return e.Err }

// RangeError reports a raw measurement with the validity bit set (raw value
// above 0x7FFF), which the sensor uses to flag an invalid conversion.
type RangeError struct {
	Quantity string
	Register byte
	Raw      uint16
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("mlx90615: invalid %s reading: raw value %#04x out of range", e.Quantity, e.Raw)
}

// InvalidValueError rejects a caller-supplied configuration value before any
// bus transaction is attempted.
type InvalidValueError struct {
	Field string
	Value int
	Min   int
	Max   int
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("mlx90615: %s %#02x out of range (%#02x <= value <= %#02x)", e.Field, e.Value, e.Min, e.Max)
}

// PreconditionError reports an operation attempted in a device state it is
// not safe in, e.g. writing a new bus address while the instance is already
// uniquely addressed.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("mlx90615: %s: %s", e.Op, e.Reason)
}

// WakeVerifyError reports that the device did not answer a bus scan after a
// wake or PWM-to-bus transition sequence.
type WakeVerifyError struct {
	Address byte
}

func (e *WakeVerifyError) Error() string {
	return fmt.Sprintf("mlx90615: device %#02x not present on the bus after wake sequence", e.Address)
}
