package thermo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockBus is a mock implementation of irtemp.Bus using testify/mock
type MockBus struct {
	mock.Mock
	concurrentOps int64 // tracks concurrent operations
	maxConcurrent int64 // maximum concurrent operations observed
	mu            sync.Mutex
}

func (m *MockBus) ReadReg(ctx context.Context, address, register byte, buffer []byte) error {
	m.mu.Lock()
	concurrent := atomic.AddInt64(&m.concurrentOps, 1)
	if concurrent > atomic.LoadInt64(&m.maxConcurrent) {
		atomic.StoreInt64(&m.maxConcurrent, concurrent)
	}
	m.mu.Unlock()

	args := m.Called(ctx, address, register, buffer)
	if args.Get(0) != nil {
		// Copy mock data to buffer if provided
		if data, ok := args.Get(0).([]byte); ok && len(data) <= len(buffer) {
			copy(buffer, data)
		}
	}

	m.mu.Lock()
	atomic.AddInt64(&m.concurrentOps, -1)
	m.mu.Unlock()

	return args.Error(1)
}

func (m *MockBus) WriteReg(ctx context.Context, address, register byte, buffer []byte) error {
	m.mu.Lock()
	concurrent := atomic.AddInt64(&m.concurrentOps, 1)
	if concurrent > atomic.LoadInt64(&m.maxConcurrent) {
		atomic.StoreInt64(&m.maxConcurrent, concurrent)
	}
	m.mu.Unlock()

	args := m.Called(ctx, address, register, buffer)

	m.mu.Lock()
	atomic.AddInt64(&m.concurrentOps, -1)
	m.mu.Unlock()

	return args.Error(0)
}

func (m *MockBus) Start(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockBus) Stop(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockBus) Scan(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	var addresses []byte
	if args.Get(0) != nil {
		addresses = args.Get(0).([]byte)
	}
	return addresses, args.Error(1)
}

// Helper to build a register read response with a valid PEC
func regResponse(address, register byte, value uint16) []byte {
	lsb := byte(value)
	msb := byte(value >> 8)
	crc := crc8(0, address<<1)
	crc = crc8(crc, register)
	crc = crc8(crc, address<<1|1)
	crc = crc8(crc, lsb)
	crc = crc8(crc, msb)
	return []byte{lsb, msb, crc}
}

// Helper to build the exact payload WriteReg should receive for a value
func writeFrame(address, register byte, value uint16) []byte {
	lsb := byte(value)
	msb := byte(value >> 8)
	crc := crc8(0, address<<1)
	crc = crc8(crc, register)
	crc = crc8(crc, lsb)
	crc = crc8(crc, msb)
	return []byte{lsb, msb, crc}
}

// Registers an erase-then-program expectation including the read-back
// verification each write performs.
func expectEEPROMWrite(bus *MockBus, address, register byte, value uint16) {
	bus.On("WriteReg", mock.Anything, address, register, writeFrame(address, register, 0x0000)).
		Return(nil).Once()
	bus.On("ReadReg", mock.Anything, address, register, mock.Anything).
		Return(regResponse(address, register, 0x0000), nil).Once()
	bus.On("WriteReg", mock.Anything, address, register, writeFrame(address, register, value)).
		Return(nil).Once()
	bus.On("ReadReg", mock.Anything, address, register, mock.Anything).
		Return(regResponse(address, register, value), nil).Once()
}

func TestMLX90615_GetTemperature(t *testing.T) {
	tests := []struct {
		name     string
		register byte
		raw      uint16
		read     func(*MLX90615, context.Context) (Temperature, error)
		expected Temperature
	}{
		{
			name:     "ambient temperature",
			register: regAmbientTemp,
			raw:      14764,
			read:     (*MLX90615).getAmbient,
			expected: 2213,
		},
		{
			name:     "object temperature",
			register: regObjectTemp,
			raw:      16384,
			read:     (*MLX90615).getObject,
			expected: 5453,
		},
		{
			name:     "object temperature at range limit",
			register: regObjectTemp,
			raw:      0x7FFF,
			read:     (*MLX90615).getObject,
			expected: 38219,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := new(MockBus)
			sensor := NewMLX90615(bus)
			ctx := context.Background()

			bus.On("ReadReg", mock.Anything, byte(MLX90615DefaultAddress), tt.register, mock.Anything).
				Return(regResponse(MLX90615DefaultAddress, tt.register, tt.raw), nil).Once()

			temp, err := tt.read(sensor, ctx)
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, temp)

			bus.AssertExpectations(t)
		})
	}
}

// adapters so the table above can hold method references
func (s *MLX90615) getAmbient(ctx context.Context) (Temperature, error) {
	return s.GetAmbientTemperature(ctx)
}

func (s *MLX90615) getObject(ctx context.Context) (Temperature, error) {
	return s.GetObjectTemperature(ctx)
}

func TestMLX90615_GetTemperature_ErrorCases(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(*MockBus)
		check     func(*testing.T, error)
	}{
		{
			name: "bus read error",
			setupMock: func(bus *MockBus) {
				bus.On("ReadReg", mock.Anything, byte(MLX90615DefaultAddress), regObjectTemp, mock.Anything).
					Return(nil, errors.New("i2c read failed")).Once()
			},
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "mlx90615: could not read object temperature")
				assert.Contains(t, err.Error(), "i2c read failed")
			},
		},
		{
			name: "checksum mismatch",
			setupMock: func(bus *MockBus) {
				resp := regResponse(MLX90615DefaultAddress, regObjectTemp, 16384)
				resp[2] ^= 0xFF
				bus.On("ReadReg", mock.Anything, byte(MLX90615DefaultAddress), regObjectTemp, mock.Anything).
					Return(resp, nil).Once()
			},
			check: func(t *testing.T, err error) {
				var checksumErr *ChecksumError
				assert.ErrorAs(t, err, &checksumErr)
				assert.Equal(t, regObjectTemp, checksumErr.Register)
			},
		},
		{
			name: "error flag set in measurement",
			setupMock: func(bus *MockBus) {
				bus.On("ReadReg", mock.Anything, byte(MLX90615DefaultAddress), regObjectTemp, mock.Anything).
					Return(regResponse(MLX90615DefaultAddress, regObjectTemp, 0x8000), nil).Once()
			},
			check: func(t *testing.T, err error) {
				var rangeErr *RangeError
				assert.ErrorAs(t, err, &rangeErr)
				assert.Equal(t, uint16(0x8000), rangeErr.Raw)
				assert.Equal(t, "object temperature", rangeErr.Quantity)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := new(MockBus)
			sensor := NewMLX90615(bus)
			ctx := context.Background()

			tt.setupMock(bus)

			_, err := sensor.GetObjectTemperature(ctx)
			assert.Error(t, err)
			tt.check(t, err)

			bus.AssertExpectations(t)
		})
	}
}

func TestMLX90615_ReadRegister16_WithoutChecksum(t *testing.T) {
	bus := new(MockBus)
	sensor := NewMLX90615(bus)
	ctx := context.Background()

	// corrupted PEC on every read
	resp := regResponse(MLX90615DefaultAddress, regRawIR, 0x4C39)
	resp[2] ^= 0xFF
	bus.On("ReadReg", mock.Anything, byte(MLX90615DefaultAddress), regRawIR, mock.Anything).
		Return(resp, nil).Twice()

	_, err := sensor.ReadRawIR(ctx)
	var checksumErr *ChecksumError
	assert.ErrorAs(t, err, &checksumErr)

	raw, err := sensor.ReadRawIR(ctx, WithoutChecksum())
	assert.NoError(t, err)
	assert.Equal(t, uint16(0x4C39), raw)

	bus.AssertExpectations(t)
}

func TestMLX90615_ReadID(t *testing.T) {
	bus := new(MockBus)
	sensor := NewMLX90615(bus)
	ctx := context.Background()

	bus.On("ReadReg", mock.Anything, byte(MLX90615DefaultAddress), regIDLow, mock.Anything).
		Return(regResponse(MLX90615DefaultAddress, regIDLow, 0x4C39), nil).Once()
	bus.On("ReadReg", mock.Anything, byte(MLX90615DefaultAddress), regIDHigh, mock.Anything).
		Return(regResponse(MLX90615DefaultAddress, regIDHigh, 0x00A7), nil).Once()

	id, err := sensor.ReadID(ctx)
	assert.NoError(t, err)
	assert.Equal(t, uint32(0x00A74C39), id)

	bus.AssertExpectations(t)
}

func TestMLX90615_ReadEEPROM(t *testing.T) {
	bus := new(MockBus)
	sensor := NewMLX90615(bus)
	ctx := context.Background()

	for i := 0; i < eepromSize; i++ {
		register := byte(eepromBase + i)
		bus.On("ReadReg", mock.Anything, byte(MLX90615DefaultAddress), register, mock.Anything).
			Return(regResponse(MLX90615DefaultAddress, register, uint16(0x1000+i)), nil).Once()
	}

	data, err := sensor.ReadEEPROM(ctx)
	assert.NoError(t, err)
	assert.Len(t, data, eepromSize)
	for i, word := range data {
		assert.Equal(t, uint16(0x1000+i), word)
	}

	bus.AssertExpectations(t)
}

func TestMLX90615_ReadEEPROM_AbortsOnFirstFailure(t *testing.T) {
	bus := new(MockBus)
	sensor := NewMLX90615(bus)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		register := byte(eepromBase + i)
		bus.On("ReadReg", mock.Anything, byte(MLX90615DefaultAddress), register, mock.Anything).
			Return(regResponse(MLX90615DefaultAddress, register, 0x0000), nil).Once()
	}
	bus.On("ReadReg", mock.Anything, byte(MLX90615DefaultAddress), regEmissivity, mock.Anything).
		Return(nil, errors.New("i2c read failed")).Once()

	_, err := sensor.ReadEEPROM(ctx)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "EEPROM register 0x13")
	bus.AssertNumberOfCalls(t, "ReadReg", 4)

	bus.AssertExpectations(t)
}

func TestMLX90615_WriteRegister16_Frame(t *testing.T) {
	bus := new(MockBus)
	sensor := NewMLX90615(bus, WithEEPROMWriteTime(time.Millisecond))
	ctx := context.Background()

	// frame carries little-endian payload plus the PEC over the whole dialogue
	bus.On("WriteReg", mock.Anything, byte(MLX90615DefaultAddress), regEmissivity, []byte{0xCC, 0x3C, 0x56}).
		Return(nil).Once()
	bus.On("ReadReg", mock.Anything, byte(MLX90615DefaultAddress), regEmissivity, mock.Anything).
		Return(regResponse(MLX90615DefaultAddress, regEmissivity, 0x3CCC), nil).Once()

	err := sensor.WriteRegister16(ctx, regEmissivity, 0x3CCC)
	assert.NoError(t, err)

	bus.AssertExpectations(t)
}

func TestMLX90615_WriteRegister16_VerifyFailure(t *testing.T) {
	bus := new(MockBus)
	sensor := NewMLX90615(bus, WithEEPROMWriteTime(time.Millisecond))
	ctx := context.Background()

	bus.On("WriteReg", mock.Anything, byte(MLX90615DefaultAddress), regPWMTrange, mock.Anything).
		Return(nil).Once()
	bus.On("ReadReg", mock.Anything, byte(MLX90615DefaultAddress), regPWMTrange, mock.Anything).
		Return(regResponse(MLX90615DefaultAddress, regPWMTrange, 0x0000), nil).Once()

	err := sensor.WriteRegister16(ctx, regPWMTrange, 0x0FFF)
	var verifyErr *WriteVerifyError
	assert.ErrorAs(t, err, &verifyErr)
	assert.Equal(t, uint16(0x0FFF), verifyErr.Expected)
	assert.Equal(t, uint16(0x0000), verifyErr.Got)

	bus.AssertExpectations(t)
}

func TestMLX90615_WriteRegister16_WithoutReadback(t *testing.T) {
	bus := new(MockBus)
	sensor := NewMLX90615(bus, WithEEPROMWriteTime(time.Millisecond))
	ctx := context.Background()

	bus.On("WriteReg", mock.Anything, byte(MLX90615DefaultAddress), regPWMTrange, mock.Anything).
		Return(nil).Once()

	err := sensor.WriteRegister16(ctx, regPWMTrange, 0x0FFF, WithoutReadback())
	assert.NoError(t, err)
	bus.AssertNumberOfCalls(t, "ReadReg", 0)

	bus.AssertExpectations(t)
}

func TestMLX90615_WriteRegister16_ContextCancelledDuringSettle(t *testing.T) {
	bus := new(MockBus)
	sensor := NewMLX90615(bus)
	cancelledCtx, cancel := context.WithCancel(context.Background())
	cancel()

	bus.On("WriteReg", mock.Anything, byte(MLX90615DefaultAddress), regPWMTrange, mock.Anything).
		Return(nil).Once()

	start := time.Now()
	err := sensor.WriteRegister16(cancelledCtx, regPWMTrange, 0x0FFF)
	duration := time.Since(start)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, duration, DefaultEEPROMWriteTime, "cancelled settle wait should return early")
	bus.AssertNumberOfCalls(t, "ReadReg", 0)

	bus.AssertExpectations(t)
}

func TestMLX90615_SetEmissivity(t *testing.T) {
	bus := new(MockBus)
	sensor := NewMLX90615(bus, WithEEPROMWriteTime(time.Millisecond))
	ctx := context.Background()

	expectEEPROMWrite(bus, MLX90615DefaultAddress, regEmissivity, 0x3CCD)

	err := sensor.SetEmissivity(ctx, 95)
	assert.NoError(t, err)

	bus.AssertExpectations(t)
}

func TestMLX90615_SetEmissivity_InvalidValue(t *testing.T) {
	bus := new(MockBus)
	sensor := NewMLX90615(bus)
	ctx := context.Background()

	for _, percent := range []int{4, 0, -1, 101} {
		err := sensor.SetEmissivity(ctx, percent)
		var invalidErr *InvalidValueError
		assert.ErrorAs(t, err, &invalidErr, "percent %d", percent)
	}
	bus.AssertNumberOfCalls(t, "WriteReg", 0)
}

func TestMLX90615_GetEmissivity(t *testing.T) {
	bus := new(MockBus)
	sensor := NewMLX90615(bus)
	ctx := context.Background()

	bus.On("ReadReg", mock.Anything, byte(MLX90615DefaultAddress), regEmissivity, mock.Anything).
		Return(regResponse(MLX90615DefaultAddress, regEmissivity, 0x3CCD), nil).Once()

	percent, err := sensor.GetEmissivity(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 95, percent)

	bus.AssertExpectations(t)
}

func TestMLX90615_EraseFailureAbortsProgram(t *testing.T) {
	bus := new(MockBus)
	sensor := NewMLX90615(bus, WithEEPROMWriteTime(time.Millisecond))
	ctx := context.Background()

	bus.On("WriteReg", mock.Anything, byte(MLX90615DefaultAddress), regEmissivity, writeFrame(MLX90615DefaultAddress, regEmissivity, 0x0000)).
		Return(errors.New("i2c write failed")).Once()

	err := sensor.SetEmissivity(ctx, 95)
	var eraseErr *EraseError
	assert.ErrorAs(t, err, &eraseErr)
	assert.Equal(t, regEmissivity, eraseErr.Register)

	// the cell must not be programmed after a failed erase
	bus.AssertNumberOfCalls(t, "WriteReg", 1)
	bus.AssertExpectations(t)
}

func TestMLX90615_ProgramFailure(t *testing.T) {
	bus := new(MockBus)
	sensor := NewMLX90615(bus, WithEEPROMWriteTime(time.Millisecond))
	ctx := context.Background()

	bus.On("WriteReg", mock.Anything, byte(MLX90615DefaultAddress), regEmissivity, writeFrame(MLX90615DefaultAddress, regEmissivity, 0x0000)).
		Return(nil).Once()
	bus.On("ReadReg", mock.Anything, byte(MLX90615DefaultAddress), regEmissivity, mock.Anything).
		Return(regResponse(MLX90615DefaultAddress, regEmissivity, 0x0000), nil).Once()
	bus.On("WriteReg", mock.Anything, byte(MLX90615DefaultAddress), regEmissivity, writeFrame(MLX90615DefaultAddress, regEmissivity, 0x3CCD)).
		Return(errors.New("i2c write failed")).Once()

	err := sensor.SetEmissivity(ctx, 95)
	var programErr *ProgramError
	assert.ErrorAs(t, err, &programErr)
	assert.Equal(t, regEmissivity, programErr.Register)

	bus.AssertExpectations(t)
}

func TestMLX90615_SetI2CAddress(t *testing.T) {
	bus := new(MockBus)
	sensor := NewMLX90615(bus, WithAddress(ProvisioningAddress), WithEEPROMWriteTime(time.Millisecond))
	ctx := context.Background()

	expectEEPROMWrite(bus, ProvisioningAddress, regSlaveAddress, 0x355B)

	err := sensor.SetI2CAddress(ctx, 0x5B)
	assert.NoError(t, err)

	bus.AssertExpectations(t)
}

func TestMLX90615_SetI2CAddress_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		instance byte
		address  byte
		check    func(*testing.T, error)
	}{
		{
			name:     "instance not on provisioning address",
			instance: MLX90615DefaultAddress,
			address:  0x2A,
			check: func(t *testing.T, err error) {
				var preErr *PreconditionError
				assert.ErrorAs(t, err, &preErr)
			},
		},
		{
			name:     "address zero",
			instance: ProvisioningAddress,
			address:  0x00,
			check: func(t *testing.T, err error) {
				var invalidErr *InvalidValueError
				assert.ErrorAs(t, err, &invalidErr)
			},
		},
		{
			name:     "address below range",
			instance: ProvisioningAddress,
			address:  0x07,
			check: func(t *testing.T, err error) {
				var invalidErr *InvalidValueError
				assert.ErrorAs(t, err, &invalidErr)
			},
		},
		{
			name:     "address above range",
			instance: ProvisioningAddress,
			address:  0x78,
			check: func(t *testing.T, err error) {
				var invalidErr *InvalidValueError
				assert.ErrorAs(t, err, &invalidErr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := new(MockBus)
			sensor := NewMLX90615(bus, WithAddress(tt.instance))
			ctx := context.Background()

			err := sensor.SetI2CAddress(ctx, tt.address)
			assert.Error(t, err)
			tt.check(t, err)

			// rejected requests must not touch the bus
			bus.AssertNumberOfCalls(t, "WriteReg", 0)
		})
	}
}

func TestMLX90615_SetPWMTmin_RequiresProvisioningAddress(t *testing.T) {
	bus := new(MockBus)
	sensor := NewMLX90615(bus)
	ctx := context.Background()

	err := sensor.SetPWMTmin(ctx, 0x4000)
	var preErr *PreconditionError
	assert.ErrorAs(t, err, &preErr)
	bus.AssertNumberOfCalls(t, "WriteReg", 0)
}

func TestMLX90615_SetPWMTmin(t *testing.T) {
	bus := new(MockBus)
	sensor := NewMLX90615(bus, WithAddress(ProvisioningAddress), WithEEPROMWriteTime(time.Millisecond))
	ctx := context.Background()

	expectEEPROMWrite(bus, ProvisioningAddress, regPWMTmin, 0x4000)

	err := sensor.SetPWMTmin(ctx, 0x4000)
	assert.NoError(t, err)

	bus.AssertExpectations(t)
}

func TestMLX90615_ConfigFlags(t *testing.T) {
	tests := []struct {
		name     string
		word     uint16
		read     func(*MLX90615, context.Context) (bool, error)
		expected bool
	}{
		// PWM enable is active low: a cleared bit selects PWM output
		{name: "pwm mode on", word: 0x100C, read: (*MLX90615).getPWMMode, expected: true},
		{name: "pwm mode off", word: 0x100D, read: (*MLX90615).getPWMMode, expected: false},
		{name: "fast pwm on", word: 0x0002, read: (*MLX90615).getPWMFast, expected: true},
		{name: "fast pwm off", word: 0x0001, read: (*MLX90615).getPWMFast, expected: false},
		{name: "extended range on", word: 0x0004, read: (*MLX90615).getExtendedRange, expected: true},
		{name: "extended range off", word: 0x0003, read: (*MLX90615).getExtendedRange, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := new(MockBus)
			sensor := NewMLX90615(bus)
			ctx := context.Background()

			bus.On("ReadReg", mock.Anything, byte(MLX90615DefaultAddress), regConfig, mock.Anything).
				Return(regResponse(MLX90615DefaultAddress, regConfig, tt.word), nil).Once()

			value, err := tt.read(sensor, ctx)
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, value)

			bus.AssertExpectations(t)
		})
	}
}

func (s *MLX90615) getPWMMode(ctx context.Context) (bool, error) {
	return s.GetPWMMode(ctx)
}

func (s *MLX90615) getPWMFast(ctx context.Context) (bool, error) {
	return s.GetPWMFast(ctx)
}

func (s *MLX90615) getExtendedRange(ctx context.Context) (bool, error) {
	return s.GetExtendedRange(ctx)
}

func TestMLX90615_SetIIRFilter(t *testing.T) {
	bus := new(MockBus)
	sensor := NewMLX90615(bus, WithEEPROMWriteTime(time.Millisecond))
	ctx := context.Background()

	// read-modify-write: only the filter bits change, the rest is preserved
	bus.On("ReadReg", mock.Anything, byte(MLX90615DefaultAddress), regConfig, mock.Anything).
		Return(regResponse(MLX90615DefaultAddress, regConfig, 0x100D), nil).Once()
	expectEEPROMWrite(bus, MLX90615DefaultAddress, regConfig, 0x500D)

	err := sensor.SetIIRFilter(ctx, 5)
	assert.NoError(t, err)

	bus.AssertExpectations(t)
}

func TestMLX90615_SetIIRFilter_InvalidLevel(t *testing.T) {
	bus := new(MockBus)
	sensor := NewMLX90615(bus)
	ctx := context.Background()

	err := sensor.SetIIRFilter(ctx, 8)
	var invalidErr *InvalidValueError
	assert.ErrorAs(t, err, &invalidErr)
	assert.Equal(t, 8, invalidErr.Value)
	bus.AssertNumberOfCalls(t, "WriteReg", 0)
}

func TestMLX90615_SetPWMMode_RewritesModeBit(t *testing.T) {
	bus := new(MockBus)
	sensor := NewMLX90615(bus, WithEEPROMWriteTime(time.Millisecond))
	ctx := context.Background()

	// enabling PWM clears bit 0
	bus.On("ReadReg", mock.Anything, byte(MLX90615DefaultAddress), regConfig, mock.Anything).
		Return(regResponse(MLX90615DefaultAddress, regConfig, 0x100D), nil).Once()
	expectEEPROMWrite(bus, MLX90615DefaultAddress, regConfig, 0x100C)

	err := sensor.SetPWMMode(ctx, true)
	assert.NoError(t, err)

	bus.AssertExpectations(t)
}

func TestMLX90615_GetConfig(t *testing.T) {
	bus := new(MockBus)
	sensor := NewMLX90615(bus)
	ctx := context.Background()

	bus.On("ReadReg", mock.Anything, byte(MLX90615DefaultAddress), regConfig, mock.Anything).
		Return(regResponse(MLX90615DefaultAddress, regConfig, 0x5006), nil).Once()
	bus.On("ReadReg", mock.Anything, byte(MLX90615DefaultAddress), regPWMTmin, mock.Anything).
		Return(regResponse(MLX90615DefaultAddress, regPWMTmin, 0x355B), nil).Once()
	bus.On("ReadReg", mock.Anything, byte(MLX90615DefaultAddress), regPWMTrange, mock.Anything).
		Return(regResponse(MLX90615DefaultAddress, regPWMTrange, 0x09C4), nil).Once()
	bus.On("ReadReg", mock.Anything, byte(MLX90615DefaultAddress), regEmissivity, mock.Anything).
		Return(regResponse(MLX90615DefaultAddress, regEmissivity, 0x4000), nil).Once()

	config, err := sensor.GetConfig(ctx)
	assert.NoError(t, err)
	assert.Equal(t, Config{
		PWMMode:       true,
		PWMFast:       true,
		ExtendedRange: true,
		IIRFilter:     5,
		PWMTmin:       0x355B,
		PWMTrange:     0x09C4,
		Emissivity:    100,
	}, config)

	bus.AssertExpectations(t)
}

func TestMLX90615_MutexProtection(t *testing.T) {
	bus := new(MockBus)
	sensor := NewMLX90615(bus)
	ctx := context.Background()

	const numOps = 5
	for i := 0; i < numOps; i++ {
		bus.On("ReadReg", mock.Anything, byte(MLX90615DefaultAddress), regObjectTemp, mock.Anything).
			Return(regResponse(MLX90615DefaultAddress, regObjectTemp, 16384), nil).Once()
	}

	var wg sync.WaitGroup
	wg.Add(numOps)
	for i := 0; i < numOps; i++ {
		go func() {
			defer wg.Done()
			_, err := sensor.GetObjectTemperature(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt64(&bus.maxConcurrent), int64(1), "Mutex should serialize bus access")
	bus.AssertExpectations(t)
}
