package implementation

import (
	"context"

	"iso-risk-agent-be/internal/entity"
	"iso-risk-agent-be/internal/mapper"
	"iso-risk-agent-be/internal/model"
	"iso-risk-agent-be/internal/repository/contract"
	"iso-risk-agent-be/internal/repository/scope"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ActivityRepository struct {
	db     *gorm.DB
	mapper *mapper.ActivityMapper
}

func NewActivityRepository(db *gorm.DB) contract.ActivityLog {
	return &ActivityRepository{db: db, mapper: mapper.NewActivityMapper()}
}

// Append ignores duplicates so redelivered events are recorded once.
func (r *ActivityRepository) Append(ctx context.Context, activity *entity.Activity) (bool, error) {
	m, err := r.mapper.ToModel(activity)
	if err != nil {
		return false, err
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(m)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *ActivityRepository) Recent(ctx context.Context, userId string, limit int) ([]*entity.Activity, error) {
	var rows []model.Activity
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userId).
		Scopes(scope.OrderByDesc("occurred_at"), scope.Limit(limit, 50)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*entity.Activity, 0, len(rows))
	for i := range rows {
		out = append(out, r.mapper.ToEntity(&rows[i]))
	}
	return out, nil
}
