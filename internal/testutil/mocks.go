// Package testutil provides mock implementations for interfaces defined in
// the merge core library (pkg/merger and subpackages), plus helpers for
// building fixture file groups in temp directories. Configure mock
// expectations using testify/mock methods (e.g. .On("Load", ...).Return(...)).
package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/johnsonice/ILA/pkg/merger"
)

// MockRecordLoader provides a mock implementation of the merger.RecordLoader
// interface.
type MockRecordLoader struct {
	mock.Mock
}

// Load mocks the Load method.
func (m *MockRecordLoader) Load(ctx context.Context, path string) ([]merger.Record, error) {
	args := m.Called(ctx, path)
	records, _ := args.Get(0).([]merger.Record)
	return records, args.Error(1)
}

// MockHooks provides a mock implementation of the merger.Hooks interface.
// Hook methods may be invoked concurrently by engine workers; testify's mock
// is safe for concurrent Called invocations.
type MockHooks struct {
	mock.Mock
}

// OnGroupDiscovered mocks the OnGroupDiscovered method.
func (m *MockHooks) OnGroupDiscovered(pattern string, files []string) error {
	args := m.Called(pattern, files)
	return args.Error(0)
}

// OnGroupStatusUpdate mocks the OnGroupStatusUpdate method.
func (m *MockHooks) OnGroupStatusUpdate(pattern string, status merger.Status, message string, duration time.Duration) error {
	args := m.Called(pattern, status, message, duration)
	return args.Error(0)
}

// OnRunComplete mocks the OnRunComplete method.
func (m *MockHooks) OnRunComplete(report merger.Report) error {
	args := m.Called(report)
	return args.Error(0)
}

// MockDecoder provides a mock implementation of the encoding.Decoder
// interface used by the JSON record loader.
type MockDecoder struct {
	mock.Mock
}

// DecodeToUTF8 mocks the DecodeToUTF8 method.
func (m *MockDecoder) DecodeToUTF8(content []byte) ([]byte, string, error) {
	args := m.Called(content)
	decoded, _ := args.Get(0).([]byte)
	name, _ := args.Get(1).(string)
	return decoded, name, args.Error(2)
}
