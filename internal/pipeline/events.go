package pipeline

// Stage identifies one step of the generation pipeline. Stages always run in
// the order of stageOrder; StageDone and StageError are terminal, and
// StageEnd is the stream-closed marker appended by event consumers rather
// than the pipeline itself.
type Stage string

const (
	StageSRT    Stage = "srt"
	StageBeat   Stage = "beat"
	StageCut    Stage = "cut"
	StageConcat Stage = "concat"
	StageBurn   Stage = "burn"
	StageDone   Stage = "done"
	StageError  Stage = "error"
	StageEnd    Stage = "end"
)

// EventKind distinguishes stage boundaries from progress ticks.
type EventKind string

const (
	KindStageStart    EventKind = "stage_start"
	KindStageProgress EventKind = "stage_progress"
	KindStageDone     EventKind = "stage_done"
)

// Event is one progress notification. Percent covers the whole run; Done and
// Total carry per-item progress for stages that report it.
type Event struct {
	Kind    EventKind `json:"event"`
	Stage   Stage     `json:"stage"`
	Message string    `json:"message,omitempty"`
	Percent int       `json:"percent"`
	Done    int       `json:"done,omitempty"`
	Total   int       `json:"total,omitempty"`
}

var stageOrder = []Stage{StageSRT, StageBeat, StageCut, StageConcat, StageBurn}

func startPercent(s Stage) int {
	for i, st := range stageOrder {
		if st == s {
			return i * 20
		}
	}
	return 100
}

func donePercent(s Stage) int {
	return startPercent(s) + 20
}

// cutPercent interpolates overall progress across the cut stage's 40..60
// band from per-segment completion.
func cutPercent(done, total int) int {
	if total <= 0 {
		return startPercent(StageCut)
	}
	return startPercent(StageCut) + done*20/total
}
