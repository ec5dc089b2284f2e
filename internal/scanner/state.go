package scanner

import "fmt"

// ScanState is the state a session reports to its host.
type ScanState int

const (
	// StateIdle is the initial state and the state after a scan ended
	// without timing out.
	StateIdle ScanState = iota
	// StateScanning means a worker is running.
	StateScanning
	// StateAborting means a worker is running but has been asked to stop.
	StateAborting
	// StateTimedOut means the last scan was ended by its timeout. It lasts
	// until the next Start.
	StateTimedOut
)

var stateNames = [...]string{"idle", "scanning", "aborting", "timed_out"}

func (s ScanState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("ScanState(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s ScanState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ScanState) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = ScanState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown scan state %q", text)
}

// computeState derives the reported state from the session flags.
func computeState(scanning, abort, timedOut bool) ScanState {
	if scanning {
		if abort {
			return StateAborting
		}
		return StateScanning
	}
	if timedOut {
		return StateTimedOut
	}
	return StateIdle
}
