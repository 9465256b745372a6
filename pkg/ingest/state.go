package ingest

// State is a step of the ingestion state machine.
type State int32

const (
	StateIdle State = iota
	StateLoadingDocuments
	StateChunking
	StateEmbedding
	StatePersisting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoadingDocuments:
		return "loading documents"
	case StateChunking:
		return "chunking"
	case StateEmbedding:
		return "embedding"
	case StatePersisting:
		return "persisting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
