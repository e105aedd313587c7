package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProjectStatus string

const (
	ProjectOpen      ProjectStatus = "open"
	ProjectAssigned  ProjectStatus = "assigned"
	ProjectCompleted ProjectStatus = "completed"
	ProjectPaid      ProjectStatus = "paid"
	ProjectDeleted   ProjectStatus = "deleted"
)

// HasContract reports whether a project in this status carries a deployed escrow.
func (s ProjectStatus) HasContract() bool {
	return s == ProjectAssigned || s == ProjectCompleted || s == ProjectPaid
}

// Rank orders the forward path open < assigned < completed < paid. Unknown statuses rank -1.
func (s ProjectStatus) Rank() int {
	switch s {
	case ProjectOpen:
		return 0
	case ProjectAssigned:
		return 1
	case ProjectCompleted:
		return 2
	case ProjectPaid:
		return 3
	}
	return -1
}

func (s ProjectStatus) Valid() bool {
	return s.Rank() >= 0 || s == ProjectDeleted
}

type Project struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string    `gorm:"type:varchar(200);not null" json:"title"`
	Description string    `gorm:"type:text;not null" json:"description"`

	EmployerID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"employer_id"`
	FreelancerID *uuid.UUID `gorm:"type:uuid;index" json:"freelancer_id"`

	Budget          decimal.Decimal `gorm:"type:numeric(36,18);not null" json:"budget"`
	Status          ProjectStatus   `gorm:"type:varchar(20);not null;index;default:'open'" json:"status"`
	ContractAddress *string         `gorm:"type:varchar(42)" json:"contract_address"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Employer   *User `gorm:"foreignKey:EmployerID;references:ID" json:"employer,omitempty"`
	Freelancer *User `gorm:"foreignKey:FreelancerID;references:ID" json:"freelancer,omitempty"`
}

func (p *Project) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return
}
