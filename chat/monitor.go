package chat

import "log/slog"

// TurnMonitor provides hooks to observe turns as they run.
// Implementations must be safe for concurrent use.
type TurnMonitor interface {
	// StageEntered is called each time a turn moves to a new non-terminal stage.
	StageEntered(state *TurnState)
	// HistoryPersistFailed is called when an answered turn could not be appended.
	HistoryPersistFailed(state *TurnState, err error)
	// TurnFinished is called once per turn with its terminal state.
	// err is nil unless the turn failed.
	TurnFinished(state *TurnState, err error)
}

type noopMonitor struct{}

var _ TurnMonitor = noopMonitor{}

func (noopMonitor) StageEntered(_ *TurnState)                  {}
func (noopMonitor) HistoryPersistFailed(_ *TurnState, _ error) {}
func (noopMonitor) TurnFinished(_ *TurnState, _ error)         {}

// LogMonitor reports turns through slog.
type LogMonitor struct {
	logger *slog.Logger
}

var _ TurnMonitor = (*LogMonitor)(nil)

// NewLogMonitor creates a monitor that logs to logger, or slog.Default() if nil.
func NewLogMonitor(logger *slog.Logger) *LogMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMonitor{logger: logger.With("component", "turn-monitor")}
}

func (m *LogMonitor) StageEntered(state *TurnState) {
	m.logger.Debug("turn stage", "session", state.SessionID, "stage", state.Stage)
}

func (m *LogMonitor) HistoryPersistFailed(state *TurnState, err error) {
	m.logger.Warn("answer returned but history not updated", "session", state.SessionID, "err", err)
}

func (m *LogMonitor) TurnFinished(state *TurnState, err error) {
	if err != nil {
		m.logger.Error("turn failed", "session", state.SessionID, "err", err)
		return
	}
	m.logger.Info("turn finished",
		"session", state.SessionID,
		"stage", state.Stage,
		"chunks", len(state.Retrieved),
		"standalone", state.StandaloneQuestion)
}
