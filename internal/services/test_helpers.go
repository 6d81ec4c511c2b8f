package services

import (
	"github.com/stretchr/testify/mock"
)

// MockRunHub is a mock for the pipeline.WebSocketHub interface
type MockRunHub struct {
	mock.Mock
}

func (m *MockRunHub) BroadcastUpdate(eventType, step, status string, metadata interface{}) {
	m.Called(eventType, step, status, metadata)
}
