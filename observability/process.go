package observability

// Process states as reported on the stats endpoint.
const (
	ProcessRunning = "running"
	ProcessSleep   = "sleeping"
	ProcessStop    = "stopped"
	ProcessIdle    = "idle"
	ProcessZombie  = "zombie"
	ProcessWait    = "waiting"
	ProcessLock    = "locked"
	ProcessUnknown = "unknown"
)

// ProcessStatus turns the one-letter state of the OS process table into a word.
func ProcessStatus(code string) string {
	switch code {
	case "R":
		return ProcessRunning
	case "S":
		return ProcessSleep
	case "T":
		return ProcessStop
	case "I":
		return ProcessIdle
	case "Z":
		return ProcessZombie
	case "W":
		return ProcessWait
	case "L":
		return ProcessLock
	default:
		return ProcessUnknown
	}
}
