package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrConflict  = errors.New("status does not match expected value")
	ErrDuplicate = errors.New("duplicate record")
)

// ProjectFilter narrows ListProjects. Zero fields do not filter.
type ProjectFilter struct {
	Status       models.ProjectStatus
	EmployerID   *uuid.UUID
	FreelancerID *uuid.UUID
}

// StatusChange carries the fields written together with a status change.
// Event, when set, is inserted in the same transaction.
type StatusChange struct {
	FreelancerID    *uuid.UUID
	ContractAddress *string
	Event           *models.LedgerEvent
}

type ProjectStore interface {
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	ListProjects(ctx context.Context, f ProjectFilter) ([]models.Project, error)
	CreateProject(ctx context.Context, p *models.Project) error
	// UpdateProjectStatus moves id from expected to next only if its stored status
	// is still expected. It returns ErrConflict without mutating otherwise.
	UpdateProjectStatus(ctx context.Context, id uuid.UUID, expected, next models.ProjectStatus, change StatusChange) error
	DeleteProject(ctx context.Context, id uuid.UUID, expected models.ProjectStatus) error
	ListLedgerEvents(ctx context.Context, projectID uuid.UUID) ([]models.LedgerEvent, error)

	GetFreelancerProfile(ctx context.Context, userID uuid.UUID) (*models.FreelancerProfile, error)
	ListFreelancerProfiles(ctx context.Context) ([]models.FreelancerProfile, error)
}

type UserStore interface {
	// CreateUser inserts u and its FreelancerProfile, if any, atomically.
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateFreelancerProfile(ctx context.Context, p *models.FreelancerProfile) error
}
