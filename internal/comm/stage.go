package comm

// Stage is one step of the connection sequence.
type Stage int

const (
	StageAwaitLink Stage = iota
	StageAwaitSession
	StageAwaitAnnounce
	StageAwaitSubscribe
	StageFlushing
	StageReady
)

// String returns the stage name used in logs and status output.
func (s Stage) String() string {
	switch s {
	case StageAwaitLink:
		return "await_link"
	case StageAwaitSession:
		return "await_session"
	case StageAwaitAnnounce:
		return "await_announce"
	case StageAwaitSubscribe:
		return "await_subscribe"
	case StageFlushing:
		return "flushing"
	case StageReady:
		return "ready"
	default:
		return "unknown"
	}
}
