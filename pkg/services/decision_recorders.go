package services

import (
	"context"

	"github.com/ridewire/voice-engine/pkg/events"
	"github.com/ridewire/voice-engine/pkg/models"
	"github.com/ridewire/voice-engine/pkg/repositories"
)

// DecisionRecorder receives every greeting decision after the response has
// been built. Failures are logged and never reach the caller.
type DecisionRecorder interface {
	Name() string
	RecordDecision(ctx context.Context, canonicalPhone string, event *models.GreetingAuditEvent) error
}

type auditRecorder struct {
	repo repositories.GreetingAuditRepository
}

// NewAuditRecorder writes decisions to the greeting audit table.
func NewAuditRecorder(repo repositories.GreetingAuditRepository) DecisionRecorder {
	return &auditRecorder{repo: repo}
}

func (r *auditRecorder) Name() string { return "audit" }

func (r *auditRecorder) RecordDecision(ctx context.Context, _ string, event *models.GreetingAuditEvent) error {
	// the repository fills ID and CreatedAt; keep the shared event untouched
	row := *event
	return r.repo.Create(ctx, &row)
}

type eventRecorder struct {
	publisher *events.Publisher
}

// NewEventRecorder publishes decisions as greeting.decided events.
func NewEventRecorder(publisher *events.Publisher) DecisionRecorder {
	return &eventRecorder{publisher: publisher}
}

func (r *eventRecorder) Name() string { return "events" }

func (r *eventRecorder) RecordDecision(ctx context.Context, canonicalPhone string, event *models.GreetingAuditEvent) error {
	return r.publisher.PublishGreetingDecided(ctx, canonicalPhone, event)
}
