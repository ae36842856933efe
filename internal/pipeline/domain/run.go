package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	RunStatusSuccess = "SUCCESS"
	RunStatusFailed  = "FAILED"
)

// Run is the persisted history row of one pipeline execution.
type Run struct {
	ID                 snowflake.ID   `gorm:"primaryKey;autoIncrement:false"`
	CorrelationID      string         `gorm:"type:varchar(64);not null;index"`
	StartedAt          time.Time      `gorm:"not null"`
	FinishedAt         time.Time      `gorm:"not null"`
	Status             string         `gorm:"type:varchar(16);not null"`
	RecordsExtracted   int            `gorm:"not null;default:0"`
	RecordsTransformed int            `gorm:"not null;default:0"`
	RecordsSkipped     int            `gorm:"not null;default:0"`
	RecordsLoaded      int            `gorm:"not null;default:0"`
	RecordsFailed      int            `gorm:"not null;default:0"`
	RecordsDuplicate   int            `gorm:"not null;default:0"`
	Summary            datatypes.JSON `gorm:"not null"`
	CreatedAt          time.Time      `gorm:"not null"`
}

// TableName sets the database table name.
func (Run) TableName() string { return "etl_runs" }
