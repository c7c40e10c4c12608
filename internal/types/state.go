package types

// SystemState is the lifecycle state published to Redis.
type SystemState string

const (
	StateInit         SystemState = "init"
	StateIdle         SystemState = "idle"
	StateDriving      SystemState = "driving"
	StateShuttingDown SystemState = "shutting-down"
)

// Status is a snapshot of the lifecycle state and the commanded direction.
type Status struct {
	State     SystemState `json:"state"`
	Moving    bool        `json:"moving"`
	Direction string      `json:"direction"`
}

// DirectionNone is the direction reported while stopped.
const DirectionNone = "none"
