package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/poiesic/versed/chat"
	"github.com/poiesic/versed/core"
)

// Conversations builds query pipelines and reads stored history.
// *versed.Service implements it.
type Conversations interface {
	NewConversation(sessionID string, opts ...chat.Option) (*chat.Pipeline, error)
	History(ctx context.Context, sessionID string) ([]core.Turn, error)
}

// genericError is the only failure detail clients ever see.
const genericError = "Something went wrong"

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	// Input and ChatHistory carry a question together with the
	// conversation so far, kept by the client.
	Input       string `json:"input"`
	ChatHistory string `json:"chat_history"`
}

type chatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type turnJSON struct {
	Role      core.Role `json:"role"`
	Content   string    `json:"content"`
	Timestamp string    `json:"timestamp,omitempty"`
}

type historyResponse struct {
	SessionID string     `json:"session_id"`
	Turns     []turnJSON `json:"turns"`
}

// Handler serves the API routes.
type Handler struct {
	conversations Conversations
	monitor       chat.TurnMonitor
	mintSessions  bool
	logger        *slog.Logger
}

// NewHandler creates a handler. A nil monitor disables turn reporting.
func NewHandler(conversations Conversations, monitor chat.TurnMonitor, mintSessions bool, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		conversations: conversations,
		monitor:       monitor,
		mintSessions:  mintSessions,
		logger:        logger.With("component", "http"),
	}
}

// Chat answers one question.
func (h *Handler) Chat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	turn := chat.TurnRequest{SessionID: strings.TrimSpace(req.SessionID)}
	var opts []chat.Option
	switch {
	case strings.TrimSpace(req.Message) != "":
		turn.Question = req.Message
	case strings.TrimSpace(req.Input) != "":
		turn.Question = req.Input
		turn.History = core.HistorySnapshot{Text: req.ChatHistory}
		opts = append(opts, chat.WithHistoryMode(chat.HistoryFromCaller))
	default:
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "message is required"})
	}

	if turn.SessionID == "" && h.mintSessions {
		turn.SessionID = uuid.NewString()
	}
	if h.monitor != nil {
		opts = append(opts, chat.WithMonitor(h.monitor))
	}

	pipeline, err := h.conversations.NewConversation(turn.SessionID, opts...)
	if err != nil {
		h.logger.Error("failed to build conversation", "err", err, "requestId", requestID(c))
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: genericError})
	}

	state, err := pipeline.Ask(c.Request().Context(), turn)
	if err != nil {
		h.logger.Error("turn failed", "err", err, "session", turn.SessionID, "requestId", requestID(c))
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: genericError})
	}
	if state.Warning != nil {
		h.logger.Warn("answered without saving history", "err", state.Warning, "session", state.SessionID, "requestId", requestID(c))
	}

	resp := chatResponse{Response: state.Answer}
	if pipeline.Mode() == chat.HistoryFromStore {
		resp.SessionID = state.SessionID
	}
	return c.JSON(http.StatusOK, resp)
}

// History lists the turns of a session.
func (h *Handler) History(c echo.Context) error {
	sessionID := c.Param("session")
	if err := core.ValidateSessionID(sessionID); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	turns, err := h.conversations.History(c.Request().Context(), sessionID)
	if err != nil {
		h.logger.Error("failed to read history", "err", err, "session", sessionID, "requestId", requestID(c))
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: genericError})
	}

	resp := historyResponse{SessionID: sessionID, Turns: make([]turnJSON, len(turns))}
	for i, t := range turns {
		resp.Turns[i] = turnJSON{Role: t.Role, Content: t.Content}
		if !t.Timestamp.IsZero() {
			resp.Turns[i].Timestamp = t.Timestamp.UTC().Format(time.RFC3339)
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// Health reports liveness.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func requestID(c echo.Context) string {
	return c.Response().Header().Get(echo.HeaderXRequestID)
}
