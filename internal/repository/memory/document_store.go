package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"iso-risk-agent-be/internal/entity"
	"iso-risk-agent-be/internal/repository/contract"
)

// DocumentStore is the in-process DocumentStore used in development mode and tests.
type DocumentStore struct {
	mu       sync.RWMutex
	users    map[string]*entity.User
	risks    map[string]*entity.Risk
	controls map[string]*entity.Control
}

var _ contract.DocumentStore = (*DocumentStore)(nil)

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		users:    make(map[string]*entity.User),
		risks:    make(map[string]*entity.Risk),
		controls: make(map[string]*entity.Control),
	}
}

func (s *DocumentStore) PutUser(u *entity.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.Id] = &cp
}

func (s *DocumentStore) FindUser(_ context.Context, userId string) (*entity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userId]
	if !ok {
		return nil, contract.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *DocumentStore) FindRisks(_ context.Context, f contract.RiskFilter) ([]*entity.Risk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*entity.Risk
	for _, r := range s.risks {
		if f.UserId != "" && r.UserId != f.UserId {
			continue
		}
		if len(f.Ids) > 0 && !contains(f.Ids, r.Id) {
			continue
		}
		if f.Category != "" && !strings.EqualFold(r.Category, f.Category) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return limit(out, f.Limit), nil
}

func (s *DocumentStore) FindControls(_ context.Context, f contract.ControlFilter) ([]*entity.Control, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*entity.Control
	for _, c := range s.controls {
		if !matchControl(c, f) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ControlId < out[j].ControlId
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return limit(out, f.Limit), nil
}

func matchControl(c *entity.Control, f contract.ControlFilter) bool {
	if f.UserId != "" && c.UserId != f.UserId {
		return false
	}
	if f.RiskId != "" && c.RiskId != f.RiskId {
		return false
	}
	if len(f.RiskIds) > 0 && !contains(f.RiskIds, c.RiskId) {
		return false
	}
	if len(f.Ids) > 0 && !contains(f.Ids, c.Id) {
		return false
	}
	if f.DomainCategory != "" && c.DomainCategory != f.DomainCategory {
		return false
	}
	if len(f.AnnexPrefixes) > 0 {
		ok := false
		for _, p := range f.AnnexPrefixes {
			if strings.HasPrefix(c.AnnexReference, p) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(f.Keywords) > 0 {
		text := strings.ToLower(strings.Join([]string{
			c.Title, c.Description, c.ControlStatement, c.ImplementationGuidance,
			string(c.DomainCategory), c.AnnexReference,
		}, " "))
		ok := false
		for _, k := range f.Keywords {
			if k != "" && strings.Contains(text, strings.ToLower(k)) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func (s *DocumentStore) UpsertRisk(_ context.Context, risk *entity.Risk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *risk
	s.risks[risk.Id] = &cp
	return nil
}

func (s *DocumentStore) UpsertControls(_ context.Context, controls []*entity.Control) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(controls))
	for _, c := range controls {
		cp := *c
		s.controls[c.Id] = &cp
		ids = append(ids, c.Id)
	}
	return ids, nil
}

func (s *DocumentStore) DeleteRisk(_ context.Context, userId, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.risks[id]
	if !ok || r.UserId != userId {
		return contract.ErrNotFound
	}
	delete(s.risks, id)
	return nil
}

func (s *DocumentStore) DeleteControl(_ context.Context, userId, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.controls[id]
	if !ok || c.UserId != userId {
		return contract.ErrNotFound
	}
	delete(s.controls, id)
	return nil
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
