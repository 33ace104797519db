package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"iso-risk-agent-be/internal/dto"
	"iso-risk-agent-be/internal/entity"
	"iso-risk-agent-be/internal/pkg/logger"
	"iso-risk-agent-be/internal/repository/contract"
	"iso-risk-agent-be/pkg/events"

	"github.com/google/uuid"
)

// activityNamespace makes the activity id a function of the event, so a
// redelivered event maps onto the entry it already produced.
var activityNamespace = uuid.MustParse("8f14e45f-ceea-467f-a8e1-3c1b6f4d2a90")

// EventSource is the durable subscription the activity feed listens on.
type EventSource interface {
	Subscribe(ctx context.Context, eventType, durableName string, handler events.Handler) error
}

// ActivityDelivery pushes a freshly recorded entry to the user's open sockets.
type ActivityDelivery interface {
	Deliver(userId string, activity *dto.ActivityResponse)
}

type IActivityService interface {
	Start(ctx context.Context, source EventSource) error
	Record(ctx context.Context, event events.Event) error
	Recent(ctx context.Context, userId string, limit int) ([]*dto.ActivityResponse, error)
}

type activityService struct {
	repo     contract.ActivityLog
	delivery ActivityDelivery
	logger   logger.ILogger
}

// NewActivityService builds the feed. delivery may be nil.
func NewActivityService(repo contract.ActivityLog, delivery ActivityDelivery, log logger.ILogger) IActivityService {
	return &activityService{repo: repo, delivery: delivery, logger: log}
}

// Start begins listening to every agent event with a durable consumer.
func (s *activityService) Start(ctx context.Context, source EventSource) error {
	if err := source.Subscribe(ctx, ">", "agent-activity-worker", s.Record); err != nil {
		s.logger.Error("ActivityService", "Failed to start activity subscriber", map[string]interface{}{"error": err.Error()})
		return err
	}
	s.logger.Info("ActivityService", "Activity service started, listening to agent.>", nil)
	return nil
}

// Record turns one event into an activity entry. Events without a user are dropped.
func (s *activityService) Record(ctx context.Context, event events.Event) error {
	payload := event.Payload()
	userId, _ := payload["user_id"].(string)
	if userId == "" {
		s.logger.Warn("ActivityService", fmt.Sprintf("Event %s carries no user_id", event.EventType()), nil)
		return nil
	}

	raw, _ := json.Marshal(payload)
	id := uuid.NewSHA1(activityNamespace, []byte(event.EventType()+"|"+event.Timestamp().UTC().Format(time.RFC3339Nano)+"|"+string(raw)))

	activity := &entity.Activity{
		Id:         id.String(),
		UserId:     userId,
		Type:       event.EventType(),
		Summary:    summarize(event.EventType(), payload),
		Metadata:   payload,
		OccurredAt: event.Timestamp(),
	}
	inserted, err := s.repo.Append(ctx, activity)
	if err != nil {
		s.logger.Error("ActivityService", "Error saving activity", map[string]interface{}{
			"type":  event.EventType(),
			"error": err.Error(),
		})
		return err
	}
	if inserted && s.delivery != nil {
		s.delivery.Deliver(userId, toActivityResponse(activity))
	}
	return nil
}

func (s *activityService) Recent(ctx context.Context, userId string, limit int) ([]*dto.ActivityResponse, error) {
	entries, err := s.repo.Recent(ctx, userId, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.ActivityResponse, 0, len(entries))
	for _, a := range entries {
		out = append(out, toActivityResponse(a))
	}
	return out, nil
}

func toActivityResponse(a *entity.Activity) *dto.ActivityResponse {
	return &dto.ActivityResponse{
		Id:         a.Id,
		Type:       a.Type,
		Summary:    a.Summary,
		Metadata:   a.Metadata,
		OccurredAt: a.OccurredAt,
	}
}

func summarize(eventType string, payload map[string]interface{}) string {
	switch eventType {
	case events.ControlsCommitted:
		n := count(payload["control_ids"])
		return fmt.Sprintf("Saved %d %s to the register", n, plural(n, "control", "controls"))
	case events.RiskCreated:
		if cat, _ := payload["category"].(string); cat != "" {
			return "Added a risk in " + cat
		}
		return "Added a risk"
	case events.RiskDeleted:
		return "Deleted a risk and its controls"
	}
	return eventType
}

// count handles both []string from in-process delivery and []interface{} after a JSON round trip.
func count(v interface{}) int {
	switch ids := v.(type) {
	case []string:
		return len(ids)
	case []interface{}:
		return len(ids)
	}
	return 0
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
