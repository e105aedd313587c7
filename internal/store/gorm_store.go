package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/models"
)

// GormStore implements ProjectStore and UserStore on gorm.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var p models.Project
	if err := s.DB.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *GormStore) ListProjects(ctx context.Context, f ProjectFilter) ([]models.Project, error) {
	q := s.DB.WithContext(ctx).Model(&models.Project{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.EmployerID != nil {
		q = q.Where("employer_id = ?", *f.EmployerID)
	}
	if f.FreelancerID != nil {
		q = q.Where("freelancer_id = ?", *f.FreelancerID)
	}

	var out []models.Project
	if err := q.Order("created_at DESC").Order("id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) CreateProject(ctx context.Context, p *models.Project) error {
	return translate(s.DB.WithContext(ctx).Create(p).Error)
}

func (s *GormStore) UpdateProjectStatus(ctx context.Context, id uuid.UUID, expected, next models.ProjectStatus, change StatusChange) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":     next,
			"updated_at": time.Now(),
		}
		if change.FreelancerID != nil {
			updates["freelancer_id"] = *change.FreelancerID
		}
		if change.ContractAddress != nil {
			updates["contract_address"] = *change.ContractAddress
		}

		res := tx.Model(&models.Project{}).
			Where("id = ? AND status = ?", id, expected).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return missingOrConflict(tx, id)
		}

		if change.Event != nil {
			change.Event.ProjectID = id
			if err := tx.Create(change.Event).Error; err != nil {
				return fmt.Errorf("insert ledger event: %w", err)
			}
		}
		return nil
	})
}

func (s *GormStore) DeleteProject(ctx context.Context, id uuid.UUID, expected models.ProjectStatus) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND status = ?", id, expected).Delete(&models.Project{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return missingOrConflict(tx, id)
		}
		return nil
	})
}

func missingOrConflict(tx *gorm.DB, id uuid.UUID) error {
	var n int64
	if err := tx.Model(&models.Project{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

func (s *GormStore) ListLedgerEvents(ctx context.Context, projectID uuid.UUID) ([]models.LedgerEvent, error) {
	var out []models.LedgerEvent
	err := s.DB.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at").
		Find(&out).Error
	return out, err
}

func (s *GormStore) GetFreelancerProfile(ctx context.Context, userID uuid.UUID) (*models.FreelancerProfile, error) {
	var p models.FreelancerProfile
	if err := s.DB.WithContext(ctx).Preload("User").First(&p, "user_id = ?", userID).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// ListFreelancerProfiles returns every profile with its user, ordered by user id.
func (s *GormStore) ListFreelancerProfiles(ctx context.Context) ([]models.FreelancerProfile, error) {
	var out []models.FreelancerProfile
	err := s.DB.WithContext(ctx).
		Preload("User").
		Order("user_id").
		Find(&out).Error
	return out, err
}

func (s *GormStore) CreateUser(ctx context.Context, u *models.User) error {
	return translate(s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(u).Error
	}))
}

func (s *GormStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).Preload("FreelancerProfile").First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormStore) UpdateFreelancerProfile(ctx context.Context, p *models.FreelancerProfile) error {
	res := s.DB.WithContext(ctx).Model(&models.FreelancerProfile{}).
		Where("user_id = ?", p.UserID).
		Updates(map[string]interface{}{
			"skills":      p.Skills,
			"experience":  p.Experience,
			"hourly_rate": p.HourlyRate,
			"bio":         p.Bio,
			"updated_at":  time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey),
		strings.Contains(err.Error(), "UNIQUE constraint failed"),
		strings.Contains(err.Error(), "duplicate key"):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}
