package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Activity struct {
	Id         uuid.UUID      `gorm:"type:uuid;primaryKey"`
	UserId     string         `gorm:"type:varchar(128);not null;index:idx_activity_user_time,priority:1"`
	Type       string         `gorm:"type:varchar(64);not null"`
	Summary    string         `gorm:"type:text"`
	Metadata   datatypes.JSON `gorm:"type:jsonb"`
	OccurredAt time.Time      `gorm:"not null;index:idx_activity_user_time,priority:2"`
}

func (Activity) TableName() string {
	return "agent_activities"
}
