package pipeline

// Stage names reported in progress events.
const (
	StageScan     = "scan"
	StageSkip     = "skip"
	StageAnnotate = "annotate"
	StageInject   = "inject"
	StageIndex    = "index"
	StageFail     = "fail"
	StageDone     = "done"
)

// Event is one progress update. Done and Total count files for file-level
// stages and chunks for StageAnnotate.
type Event struct {
	Stage   string
	Path    string
	ChunkID string
	Done    int
	Total   int
	Message string
	Err     error
}

// ProgressFunc receives progress events. Calls are serialised.
type ProgressFunc func(Event)
