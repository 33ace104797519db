package memory

import (
	"context"
	"sort"
	"sync"

	"iso-risk-agent-be/internal/entity"
	"iso-risk-agent-be/internal/repository/contract"
)

type ActivityLog struct {
	mu      sync.RWMutex
	entries map[string][]*entity.Activity
	seen    map[string]bool
}

var _ contract.ActivityLog = (*ActivityLog)(nil)

func NewActivityLog() *ActivityLog {
	return &ActivityLog{entries: map[string][]*entity.Activity{}, seen: map[string]bool{}}
}

func (l *ActivityLog) Append(_ context.Context, a *entity.Activity) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seen[a.Id] {
		return false, nil
	}
	l.seen[a.Id] = true
	cp := *a
	l.entries[a.UserId] = append(l.entries[a.UserId], &cp)
	return true, nil
}

func (l *ActivityLog) Recent(_ context.Context, userId string, limit int) ([]*entity.Activity, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := append([]*entity.Activity(nil), l.entries[userId]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
