package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/quizdrive/quizdrive-backend/internal/engine"
	"github.com/quizdrive/quizdrive-backend/internal/middleware"
	"github.com/quizdrive/quizdrive-backend/internal/model"
	"github.com/quizdrive/quizdrive-backend/internal/response"
	"github.com/quizdrive/quizdrive-backend/internal/service"
	"github.com/quizdrive/quizdrive-backend/internal/validator"
)

// PortalHandler handles participant-facing endpoints: opening a session,
// registration, starting the exam and reload recovery.
type PortalHandler struct {
	sessionService *service.SessionService
	examService    *service.ExamService
	authService    *service.AuthService
}

// NewPortalHandler creates a new PortalHandler.
func NewPortalHandler(
	sessionService *service.SessionService,
	examService *service.ExamService,
	authService *service.AuthService,
) *PortalHandler {
	return &PortalHandler{
		sessionService: sessionService,
		examService:    examService,
		authService:    authService,
	}
}

// OpenSession godoc
// POST /api/v1/portal/exams/:exam_id/sessions
// Fetches the published exam and opens a session in the registration state.
func (h *PortalHandler) OpenSession(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	sess, err := h.sessionService.Open(c.Request.Context(), examID)
	if err != nil {
		if errors.Is(err, service.ErrExamNotPublished) {
			response.Fail(c, http.StatusConflict, response.ErrExamNotPublished)
			return
		}
		// No session exists without the exam data; nothing to retry against.
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	exam := sess.Exam()
	response.Success(c, http.StatusCreated, gin.H{
		"session_id": sess.ID(),
		"exam": gin.H{
			"id":               exam.ID,
			"title":            exam.Title,
			"duration_minutes": exam.DurationMinutes,
			"restricted":       exam.Restricted,
			"question_count":   len(exam.Questions),
		},
	})
}

// Register godoc
// POST /api/v1/portal/sessions/:session_id/register
// Runs the access gate. On success issues the session-scoped participant
// token; a gate denial is terminal for the session.
func (h *PortalHandler) Register(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.RegisterRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess, err := h.sessionService.Register(c.Request.Context(), sessionID, engine.Identity{
		Name:  req.Name,
		Phone: req.Phone,
		Email: req.Email,
	})
	if err != nil {
		failEngine(c, err)
		return
	}

	token, err := h.authService.GenerateParticipantToken(sessionID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token":          token,
		"participant_id": sess.ParticipantID(),
	})
}

// Begin godoc
// POST /api/v1/portal/sessions/:session_id/begin
// Arms both countdowns and starts the tick loop.
func (h *PortalHandler) Begin(c *gin.Context) {
	sessionID, ok := h.scopedSessionID(c)
	if !ok {
		return
	}

	sess, err := h.sessionService.Begin(c.Request.Context(), sessionID)
	if err != nil {
		failEngine(c, err)
		return
	}

	sessionRemaining, questionRemaining := sess.Remaining()
	response.Success(c, http.StatusOK, gin.H{
		"state":                      string(sess.State()),
		"question_index":             sess.CurrentIndex(),
		"session_remaining_seconds":  sessionRemaining,
		"question_remaining_seconds": questionRemaining,
	})
}

// GetPaper godoc
// GET /api/v1/portal/sessions/:session_id/paper
// Returns the exam payload from Redis (no correct answers).
func (h *PortalHandler) GetPaper(c *gin.Context) {
	sessionID, ok := h.scopedSessionID(c)
	if !ok {
		return
	}

	sess, err := h.sessionService.Get(sessionID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		return
	}

	payload, err := h.examService.GetPayload(c.Request.Context(), sess.Exam().ID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrExamNotPublished)
		return
	}

	response.Success(c, http.StatusOK, payload)
}

// GetState godoc
// GET /api/v1/portal/sessions/:session_id/state
// Covers page reload: current position, both countdowns and the autosaved
// answer mirror.
func (h *PortalHandler) GetState(c *gin.Context) {
	sessionID, ok := h.scopedSessionID(c)
	if !ok {
		return
	}

	state, err := h.sessionService.GetState(c.Request.Context(), sessionID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// scopedSessionID parses the route session ID and enforces the token's
// session scope.
func (h *PortalHandler) scopedSessionID(c *gin.Context) (uuid.UUID, bool) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}

	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return uuid.Nil, false
	}
	if claims.SessionID != sessionID.String() {
		response.Fail(c, http.StatusForbidden, response.ErrSessionTokenScope)
		return uuid.Nil, false
	}
	return sessionID, true
}

// failEngine maps session engine errors to response codes.
func failEngine(c *gin.Context, err error) {
	var verr *engine.ValidationError
	if errors.As(err, &verr) {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrRegistrationFields,
			map[string]string{verr.Field: verr.Reason})
		return
	}

	var derr *engine.AccessDeniedError
	if errors.As(err, &derr) {
		// Each deny reason surfaces its own message.
		code := response.ErrAccessDenied
		if derr.Reason == engine.DenyMissingEmail {
			code = response.ErrEmailRequired
		}
		response.Fail(c, http.StatusForbidden, code)
		return
	}

	var serr *engine.StorageError
	if errors.As(err, &serr) {
		response.Fail(c, http.StatusServiceUnavailable, response.ErrRegistrationRetry)
		return
	}

	var sterr *engine.ErrSessionState
	if errors.As(err, &sterr) {
		response.Fail(c, http.StatusConflict, response.ErrSessionState)
		return
	}

	if errors.Is(err, service.ErrSessionNotFound) {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		return
	}

	response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
}
