package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quizdrive/quizdrive-backend/internal/middleware"
	"github.com/quizdrive/quizdrive-backend/internal/model"
	"github.com/quizdrive/quizdrive-backend/internal/response"
	"github.com/quizdrive/quizdrive-backend/internal/service"
	"github.com/quizdrive/quizdrive-backend/internal/validator"
)

// AuthHandler handles organizer authentication endpoints.
type AuthHandler struct {
	authService      *service.AuthService
	organizerService *service.OrganizerService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, organizerService *service.OrganizerService) *AuthHandler {
	return &AuthHandler{
		authService:      authService,
		organizerService: organizerService,
	}
}

// OrganizerLogin godoc
// POST /api/v1/auth/organizer/login
// Validates email + password, returns a short-lived JWT.
func (h *AuthHandler) OrganizerLogin(c *gin.Context) {
	var req model.OrganizerLoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	token, organizer, err := h.authService.OrganizerLogin(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, model.OrganizerLoginResponse{
		Token:     token,
		Organizer: *organizer,
	})
}

// GetOrganizerProfile godoc
// GET /api/v1/auth/organizer/me
// Returns the profile of the currently authenticated organizer.
func (h *AuthHandler) GetOrganizerProfile(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	organizer, err := h.organizerService.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"organizer": organizer})
}
