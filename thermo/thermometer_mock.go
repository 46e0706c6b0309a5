package thermo

import (
	"context"
)

// Thermometer is implemented by sensors producing contactless temperature
// readings; MLX90615 satisfies it.
type Thermometer interface {
	GetObjectTemperature(ctx context.Context, opts ...TxOption) (Temperature, error)
	GetAmbientTemperature(ctx context.Context, opts ...TxOption) (Temperature, error)
}

// TemperatureBehaviorFunc defines the function signature for temperature behavior.
type TemperatureBehaviorFunc func(ctx context.Context) (Temperature, error)

// MockThermometer is a mock implementation of an infrared thermometer that uses behavior
// functions to produce results without requiring any hardware.
type MockThermometer struct {
	objectBehavior  TemperatureBehaviorFunc
	ambientBehavior TemperatureBehaviorFunc
}

// NewMockThermometer creates a new mock thermometer with the given behavior functions.
// The object behavior is called whenever GetObjectTemperature is invoked, the ambient
// behavior whenever GetAmbientTemperature is.
//
// Example usage:
//
//	sensor := NewMockThermometer(
//		func(ctx context.Context) (thermo.Temperature, error) { return 3685, nil },
//		func(ctx context.Context) (thermo.Temperature, error) { return 2210, nil },
//	)
func NewMockThermometer(objectBehavior, ambientBehavior TemperatureBehaviorFunc) *MockThermometer {
	return &MockThermometer{objectBehavior: objectBehavior, ambientBehavior: ambientBehavior}
}

// GetObjectTemperature returns the object temperature by calling the object behavior.
func (m *MockThermometer) GetObjectTemperature(ctx context.Context, _ ...TxOption) (Temperature, error) {
	return m.objectBehavior(ctx)
}

// GetAmbientTemperature returns the ambient temperature by calling the ambient behavior.
func (m *MockThermometer) GetAmbientTemperature(ctx context.Context, _ ...TxOption) (Temperature, error) {
	return m.ambientBehavior(ctx)
}
