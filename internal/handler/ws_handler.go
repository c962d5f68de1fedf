package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/quizdrive/quizdrive-backend/internal/engine"
	"github.com/quizdrive/quizdrive-backend/internal/middleware"
	"github.com/quizdrive/quizdrive-backend/internal/response"
	"github.com/quizdrive/quizdrive-backend/internal/service"
	ws "github.com/quizdrive/quizdrive-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// wsConn wraps a connection with a write lock. The tick pusher and the
// action loop both write; gorilla permits only one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) write(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ws.WriteTyped(w.conn, v)
}

// WSHandler handles the participant session WebSocket stream.
type WSHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/portal/sessions/:session_id/stream
// Upgrades to WebSocket for answer actions, navigation and per-second
// countdown pushes.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session ID"})
		return
	}
	if claims.SessionID != sessionID.String() {
		c.JSON(http.StatusForbidden, gin.H{"error": "token not valid for this session"})
		return
	}

	sess, err := h.sessionService.Get(sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wc := &wsConn{conn: conn}

	wsLog := h.log.With().
		Str("session_id", sessionID.String()).
		Str("exam_id", sess.Exam().ID.String()).
		Logger()

	wsLog.Info().Msg("Participant connected")

	// Countdown pusher: one state frame per second while the session runs,
	// the completion frame when it ends.
	pushCtx, cancelPush := context.WithCancel(context.Background())
	defer cancelPush()
	go h.pushState(pushCtx, wc, sess, wsLog)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		var envelope ws.RequestEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			wc.write(ws.ErrorResponse{Event: ws.EventError, Error: "malformed message"})
			continue
		}

		switch envelope.Action {
		case ws.ActionAnswer:
			h.handleAnswer(c.Request.Context(), wc, sess, raw)
		case ws.ActionToggle:
			h.handleToggle(c.Request.Context(), wc, sess, raw)
		case ws.ActionPart:
			h.handlePart(c.Request.Context(), wc, sess, raw)
		case ws.ActionNavigate:
			h.handleNavigate(wc, sess, raw)
		case ws.ActionSubmit:
			h.handleSubmit(c.Request.Context(), wc, sess, wsLog)
		case ws.ActionPing:
			wc.write(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(envelope.Action)).Msg("Unknown action")
			wc.write(ws.ErrorResponse{Event: ws.EventError, Error: "unknown action: " + string(envelope.Action)})
		}
	}
}

// pushState streams the countdowns once a second and the final outcome when
// the session reaches a terminal state.
func (h *WSHandler) pushState(ctx context.Context, wc *wsConn, sess *engine.Session, wsLog zerolog.Logger) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-sess.Done():
			if res := sess.Result(); res != nil {
				warning := ""
				if err := sess.SaveWarning(); err != nil {
					warning = "result could not be saved yet; it will be retried"
				}
				wc.write(ws.CompletedResponse{
					Event:          ws.EventCompleted,
					Score:          res.Score,
					TotalQuestions: res.TotalQuestions,
					Percentage:     res.Percentage,
					ElapsedSeconds: res.ElapsedSeconds,
					SaveWarning:    warning,
				})
			}
			wsLog.Info().Msg("Session reached terminal state")
			return

		case <-ticker.C:
			if sess.State() != engine.StateInProgress {
				continue
			}
			sessionRemaining, questionRemaining := sess.Remaining()
			wc.write(ws.StateResponse{
				Event:             ws.EventState,
				QuestionIndex:     sess.CurrentIndex(),
				SessionRemaining:  sessionRemaining,
				QuestionRemaining: questionRemaining,
			})
		}
	}
}

func (h *WSHandler) handleAnswer(ctx context.Context, wc *wsConn, sess *engine.Session, raw []byte) {
	var msg ws.AnswerRequest
	if err := json.Unmarshal(raw, &msg); err != nil {
		wc.write(ws.ErrorResponse{Event: ws.EventError, Error: "malformed answer payload"})
		return
	}

	qid, err := uuid.Parse(msg.QID)
	if err != nil {
		wc.write(ws.ErrorResponse{Event: ws.EventError, Error: "invalid q_id format"})
		return
	}

	if err := sess.SetSingle(qid, msg.Option); err != nil {
		writeEngineError(wc, err)
		return
	}
	h.afterAnswer(ctx, wc, sess)
}

func (h *WSHandler) handleToggle(ctx context.Context, wc *wsConn, sess *engine.Session, raw []byte) {
	var msg ws.ToggleRequest
	if err := json.Unmarshal(raw, &msg); err != nil {
		wc.write(ws.ErrorResponse{Event: ws.EventError, Error: "malformed toggle payload"})
		return
	}

	qid, err := uuid.Parse(msg.QID)
	if err != nil {
		wc.write(ws.ErrorResponse{Event: ws.EventError, Error: "invalid q_id format"})
		return
	}

	if err := sess.ToggleOption(qid, msg.Option); err != nil {
		writeEngineError(wc, err)
		return
	}
	h.afterAnswer(ctx, wc, sess)
}

func (h *WSHandler) handlePart(ctx context.Context, wc *wsConn, sess *engine.Session, raw []byte) {
	var msg ws.PartRequest
	if err := json.Unmarshal(raw, &msg); err != nil {
		wc.write(ws.ErrorResponse{Event: ws.EventError, Error: "malformed part payload"})
		return
	}

	qid, err := uuid.Parse(msg.QID)
	if err != nil {
		wc.write(ws.ErrorResponse{Event: ws.EventError, Error: "invalid q_id format"})
		return
	}

	if err := sess.SetPart(qid, msg.Part, msg.Option); err != nil {
		writeEngineError(wc, err)
		return
	}
	h.afterAnswer(ctx, wc, sess)
}

func (h *WSHandler) handleNavigate(wc *wsConn, sess *engine.Session, raw []byte) {
	var msg ws.NavigateRequest
	if err := json.Unmarshal(raw, &msg); err != nil {
		wc.write(ws.ErrorResponse{Event: ws.EventError, Error: "malformed navigate payload"})
		return
	}

	if err := sess.Navigate(msg.Index); err != nil {
		writeEngineError(wc, err)
		return
	}
	h.writeStateFrame(wc, sess)
}

func (h *WSHandler) handleSubmit(ctx context.Context, wc *wsConn, sess *engine.Session, wsLog zerolog.Logger) {
	if err := sess.Submit(ctx); err != nil {
		writeEngineError(wc, err)
		return
	}
	wsLog.Info().Msg("Session submitted")
	// The completion frame is delivered by the pushState watcher.
}

// afterAnswer mirrors the sheet to Redis and confirms the current position.
// An accepted compound answer may have auto-advanced the session.
func (h *WSHandler) afterAnswer(ctx context.Context, wc *wsConn, sess *engine.Session) {
	h.sessionService.MirrorAnswers(ctx, sess)
	h.writeStateFrame(wc, sess)
}

func (h *WSHandler) writeStateFrame(wc *wsConn, sess *engine.Session) {
	sessionRemaining, questionRemaining := sess.Remaining()
	wc.write(ws.StateResponse{
		Event:             ws.EventState,
		QuestionIndex:     sess.CurrentIndex(),
		SessionRemaining:  sessionRemaining,
		QuestionRemaining: questionRemaining,
	})
}

// writeEngineError maps engine errors to WebSocket error frames.
func writeEngineError(wc *wsConn, err error) {
	code := string(response.ErrInternal)

	var verr *engine.ValidationError
	var sterr *engine.ErrSessionState
	switch {
	case errors.As(err, &verr):
		code = string(response.ErrValidation)
	case errors.As(err, &sterr):
		code = string(response.ErrSessionState)
	}

	wc.write(ws.ErrorResponse{Event: ws.EventError, Code: code, Error: err.Error()})
}
