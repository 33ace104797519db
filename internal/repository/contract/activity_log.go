package contract

import (
	"context"

	"iso-risk-agent-be/internal/entity"
)

// ActivityLog stores the per-user history built from domain events.
type ActivityLog interface {
	// Append reports false when an entry with the same id already exists.
	Append(ctx context.Context, activity *entity.Activity) (bool, error)
	// Recent returns the newest entries first.
	Recent(ctx context.Context, userId string, limit int) ([]*entity.Activity, error)
}
