package chat

import "github.com/poiesic/versed/core"

// Stage is the position of a turn in the pipeline.
type Stage string

const (
	StageReceived             Stage = "received"
	StageRewriting            Stage = "rewriting"
	StageRetrieving           Stage = "retrieving"
	StageSynthesizing         Stage = "synthesizing"
	StagePersisting           Stage = "persisting"
	StageCompleted            Stage = "completed"
	StageCompletedWithWarning Stage = "completed_with_warning"
	StageFailed               Stage = "failed"
)

// Terminal reports whether no further stage follows s.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageCompletedWithWarning || s == StageFailed
}

// TurnRequest is the input to a single turn.
type TurnRequest struct {
	// SessionID selects the conversation. Empty means the pipeline's default session.
	SessionID string
	// Question is the user's message as typed.
	Question string
	// History is used only with HistoryFromCaller.
	History core.HistorySnapshot
}

// TurnState is filled in stage by stage as a turn runs.
type TurnState struct {
	SessionID          string
	RawQuestion        string
	StandaloneQuestion string
	Retrieved          []core.ScoredChunk
	ContextText        string
	History            core.HistorySnapshot
	Answer             string
	Stage              Stage
	// Warning is set when the answer was produced but could not be recorded.
	Warning error
}

// Answered reports whether the turn produced an answer for the caller.
func (t *TurnState) Answered() bool {
	return t.Stage == StageCompleted || t.Stage == StageCompletedWithWarning
}
