package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type LedgerOperation string

const (
	LedgerDeploy    LedgerOperation = "deploy"
	LedgerComplete  LedgerOperation = "complete"
	LedgerRelease   LedgerOperation = "release"
	LedgerReconcile LedgerOperation = "reconcile"
)

// LedgerEvent journals one confirmed ledger effect against a project.
type LedgerEvent struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"project_id"`
	Operation       LedgerOperation `gorm:"type:varchar(20);not null" json:"operation"`
	ContractAddress string          `gorm:"type:varchar(42);not null" json:"contract_address"`
	TxHash          string          `gorm:"type:varchar(66)" json:"tx_hash"`
	Receipt         datatypes.JSON  `json:"receipt"`

	CreatedAt time.Time `json:"created_at"`
}

func (e *LedgerEvent) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return
}
