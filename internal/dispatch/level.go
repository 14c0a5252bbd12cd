// Package dispatch decides what actually leaves the building when a
// caller asks for a letter to be sent. The environment's send level is
// fixed at startup: production environments deliver to the real
// recipients, lower environments either reroute to a debug list or only
// log the attempt.
package dispatch

import "fmt"

// SendLevel is the environment delivery mode.
type SendLevel int

const (
	// Debug reroutes every send to the request's debug recipients.
	Debug SendLevel = iota
	// Log records the send without delivering anything.
	Log
	// Prod delivers to the real recipients.
	Prod
)

// String returns the level name as used in configuration.
func (l SendLevel) String() string {
	switch l {
	case Debug:
		return "debug"
	case Log:
		return "log"
	case Prod:
		return "prod"
	default:
		return fmt.Sprintf("SendLevel(%d)", int(l))
	}
}

// ParseSendLevel maps a configuration value to a SendLevel.
func ParseSendLevel(s string) (SendLevel, error) {
	switch s {
	case "debug":
		return Debug, nil
	case "log":
		return Log, nil
	case "prod":
		return Prod, nil
	default:
		return Debug, fmt.Errorf("unknown send level: %q", s)
	}
}
