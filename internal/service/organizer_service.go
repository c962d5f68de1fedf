package service

import (
	"context"

	"github.com/quizdrive/quizdrive-backend/internal/model"
	"github.com/quizdrive/quizdrive-backend/internal/repository"
)

// OrganizerService exposes organizer account reads for the API surface.
type OrganizerService struct {
	organizerRepo *repository.OrganizerRepository
}

// NewOrganizerService creates a new OrganizerService.
func NewOrganizerService(organizerRepo *repository.OrganizerRepository) *OrganizerService {
	return &OrganizerService{organizerRepo: organizerRepo}
}

// GetByID retrieves an organizer by ID.
func (s *OrganizerService) GetByID(ctx context.Context, id int) (*model.Organizer, error) {
	return s.organizerRepo.GetByID(ctx, id)
}
