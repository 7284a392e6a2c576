package plugin

// Info contains descriptive metadata for a plugin implementation.
type Info struct {
	ID          string
	Name        string
	Description string
	Version     string
}

// State represents the lifecycle position of a plugin instance.
type State string

const (
	StateRegistered  State = "registered"
	StateInitialised State = "initialised"
	StateStarted     State = "started"
	StateStopped     State = "stopped"
)
