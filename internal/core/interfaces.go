package core

import (
	"robocar-service/internal/hardware"
	"robocar-service/internal/messaging"
	"robocar-service/internal/types"
)

// MessagingClient defines the Redis operations needed by RobocarSystem
type MessagingClient interface {
	SetCallbacks(callbacks messaging.Callbacks)
	Connect() error
	StartListening() error
	Close() error

	// State management
	GetState() (types.SystemState, error)
	PublishState(state types.SystemState) error
	PublishDirection(direction string) error
}

// InputSource is a controller that reports button presses and releases
type InputSource interface {
	Start(cb hardware.ButtonCallback) error
	Close() error
}
