package thermo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockClockPin is a mock implementation of irtemp.ClockPin using testify/mock
type MockClockPin struct {
	mock.Mock
}

func (m *MockClockPin) SetLow(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockClockPin) SetHigh(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func TestMLX90615_Sleep(t *testing.T) {
	bus := new(MockBus)
	sensor := NewMLX90615(bus)
	ctx := context.Background()

	// one-byte payload: the PEC over the addressed sleep command
	pec := crc8(crc8(0, MLX90615DefaultAddress<<1), cmdSleep)
	bus.On("WriteReg", mock.Anything, byte(MLX90615DefaultAddress), cmdSleep, []byte{pec}).
		Return(nil).Once()
	bus.On("Stop", mock.Anything).Return(nil).Once()

	err := sensor.Sleep(ctx)
	assert.NoError(t, err)

	bus.AssertExpectations(t)
}

func TestMLX90615_Sleep_ErrorCases(t *testing.T) {
	tests := []struct {
		name          string
		setupMock     func(*MockBus)
		expectedError string
	}{
		{
			name: "command write error",
			setupMock: func(bus *MockBus) {
				bus.On("WriteReg", mock.Anything, byte(MLX90615DefaultAddress), cmdSleep, mock.Anything).
					Return(errors.New("i2c write failed")).Once()
			},
			expectedError: "mlx90615: could not send sleep command",
		},
		{
			name: "bus release error",
			setupMock: func(bus *MockBus) {
				bus.On("WriteReg", mock.Anything, byte(MLX90615DefaultAddress), cmdSleep, mock.Anything).
					Return(nil).Once()
				bus.On("Stop", mock.Anything).
					Return(errors.New("engine busy")).Once()
			},
			expectedError: "mlx90615: could not release the bus",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := new(MockBus)
			sensor := NewMLX90615(bus)
			ctx := context.Background()

			tt.setupMock(bus)

			err := sensor.Sleep(ctx)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedError)

			bus.AssertExpectations(t)
		})
	}
}

func TestMLX90615_Wake(t *testing.T) {
	bus := new(MockBus)
	pin := new(MockClockPin)
	sensor := NewMLX90615(bus)
	ctx := context.Background()

	pin.On("SetLow", mock.Anything).Return(nil).Once()
	pin.On("SetHigh", mock.Anything).Return(nil).Once()
	bus.On("Start", mock.Anything).Return(nil).Once()
	bus.On("Scan", mock.Anything).Return([]byte{0x44, MLX90615DefaultAddress}, nil).Once()

	err := sensor.Wake(ctx, pin)
	assert.NoError(t, err)

	pin.AssertExpectations(t)
	bus.AssertExpectations(t)
}

func TestMLX90615_PWMToBus_DeviceMissingAfterSwitch(t *testing.T) {
	bus := new(MockBus)
	pin := new(MockClockPin)
	sensor := NewMLX90615(bus)
	ctx := context.Background()

	pin.On("SetLow", mock.Anything).Return(nil).Once()
	pin.On("SetHigh", mock.Anything).Return(nil).Once()
	bus.On("Start", mock.Anything).Return(nil).Once()
	bus.On("Scan", mock.Anything).Return([]byte{0x44}, nil).Once()

	err := sensor.PWMToBus(ctx, pin)
	var wakeErr *WakeVerifyError
	assert.ErrorAs(t, err, &wakeErr)
	assert.Equal(t, byte(MLX90615DefaultAddress), wakeErr.Address)

	pin.AssertExpectations(t)
	bus.AssertExpectations(t)
}

func TestMLX90615_PWMToBus_WithoutPresenceCheck(t *testing.T) {
	bus := new(MockBus)
	pin := new(MockClockPin)
	sensor := NewMLX90615(bus)
	ctx := context.Background()

	pin.On("SetLow", mock.Anything).Return(nil).Once()
	pin.On("SetHigh", mock.Anything).Return(nil).Once()
	bus.On("Start", mock.Anything).Return(nil).Once()

	err := sensor.PWMToBus(ctx, pin, WithoutPresenceCheck())
	assert.NoError(t, err)
	bus.AssertNotCalled(t, "Scan", mock.Anything)

	pin.AssertExpectations(t)
	bus.AssertExpectations(t)
}

func TestMLX90615_PWMToBus_ErrorCases(t *testing.T) {
	tests := []struct {
		name          string
		setupMock     func(*MockBus, *MockClockPin)
		expectedError string
	}{
		{
			name: "pin pull low error",
			setupMock: func(bus *MockBus, pin *MockClockPin) {
				pin.On("SetLow", mock.Anything).Return(errors.New("gpio set failed")).Once()
			},
			expectedError: "mlx90615: could not pull the clock line low",
		},
		{
			name: "pin release error",
			setupMock: func(bus *MockBus, pin *MockClockPin) {
				pin.On("SetLow", mock.Anything).Return(nil).Once()
				pin.On("SetHigh", mock.Anything).Return(errors.New("gpio set failed")).Once()
			},
			expectedError: "mlx90615: could not release the clock line",
		},
		{
			name: "bus restart error",
			setupMock: func(bus *MockBus, pin *MockClockPin) {
				pin.On("SetLow", mock.Anything).Return(nil).Once()
				pin.On("SetHigh", mock.Anything).Return(nil).Once()
				bus.On("Start", mock.Anything).Return(errors.New("engine busy")).Once()
			},
			expectedError: "mlx90615: could not restart the bus",
		},
		{
			name: "bus scan error",
			setupMock: func(bus *MockBus, pin *MockClockPin) {
				pin.On("SetLow", mock.Anything).Return(nil).Once()
				pin.On("SetHigh", mock.Anything).Return(nil).Once()
				bus.On("Start", mock.Anything).Return(nil).Once()
				bus.On("Scan", mock.Anything).Return(nil, errors.New("i2c read failed")).Once()
			},
			expectedError: "mlx90615: bus scan failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := new(MockBus)
			pin := new(MockClockPin)
			sensor := NewMLX90615(bus)
			ctx := context.Background()

			tt.setupMock(bus, pin)

			err := sensor.PWMToBus(ctx, pin)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedError)

			pin.AssertExpectations(t)
			bus.AssertExpectations(t)
		})
	}
}

func TestMLX90615_Wake_ContextCancelledDuringPulse(t *testing.T) {
	bus := new(MockBus)
	pin := new(MockClockPin)
	sensor := NewMLX90615(bus)
	cancelledCtx, cancel := context.WithCancel(context.Background())
	cancel()

	pin.On("SetLow", mock.Anything).Return(nil).Once()

	err := sensor.Wake(cancelledCtx, pin)
	assert.ErrorIs(t, err, context.Canceled)
	pin.AssertNotCalled(t, "SetHigh", mock.Anything)

	pin.AssertExpectations(t)
}
