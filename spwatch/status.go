package spwatch

import "fmt"

// Status is the connection health reported in the snapshot.
type Status int

const (
	// StatusConnecting means a poll cycle has been started
	// but no result has arrived yet.
	StatusConnecting Status = iota

	// StatusConnected means the most recent tick succeeded.
	StatusConnected

	// StatusError means the most recent tick failed.
	// Polling continues; the next tick may recover.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler
// so the status serializes as its lowercase name in JSON snapshots.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
