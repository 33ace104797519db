package contract

import (
	"context"
	"errors"

	"iso-risk-agent-be/internal/entity"
)

var ErrNotFound = errors.New("record not found")

type RiskFilter struct {
	UserId   string
	Ids      []string
	Category string
	Limit    int
}

// ControlFilter combines its fields with AND. Keywords are OR'ed against
// title, description, statement, guidance, category and annex reference,
// case-insensitively.
type ControlFilter struct {
	UserId         string
	RiskId         string
	RiskIds        []string
	Ids            []string
	DomainCategory entity.DomainCategory
	AnnexPrefixes  []string
	Keywords       []string
	Limit          int
}

// DocumentStore holds the authoritative risk, control and user records.
type DocumentStore interface {
	// FindUser returns ErrNotFound when the profile does not exist.
	FindUser(ctx context.Context, userId string) (*entity.User, error)
	FindRisks(ctx context.Context, filter RiskFilter) ([]*entity.Risk, error)
	FindControls(ctx context.Context, filter ControlFilter) ([]*entity.Control, error)
	UpsertRisk(ctx context.Context, risk *entity.Risk) error
	// UpsertControls writes the batch keyed by Id and returns the saved ids.
	UpsertControls(ctx context.Context, controls []*entity.Control) ([]string, error)
	DeleteRisk(ctx context.Context, userId, id string) error
	DeleteControl(ctx context.Context, userId, id string) error
}
