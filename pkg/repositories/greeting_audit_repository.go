package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ridewire/voice-engine/pkg/models"
)

// GreetingAuditRepository provides data access for the greeting decision audit trail.
type GreetingAuditRepository interface {
	Create(ctx context.Context, event *models.GreetingAuditEvent) error
	List(ctx context.Context, filters models.GreetingAuditFilters) ([]*models.GreetingAuditEvent, error)
}

type greetingAuditRepository struct {
	pool *pgxpool.Pool
}

func NewGreetingAuditRepository(pool *pgxpool.Pool) GreetingAuditRepository {
	return &greetingAuditRepository{pool: pool}
}

var _ GreetingAuditRepository = (*greetingAuditRepository)(nil)

func (r *greetingAuditRepository) Create(ctx context.Context, event *models.GreetingAuditEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	degraded := event.DegradedSources
	if degraded == nil {
		degraded = []string{}
	}

	query := `
		INSERT INTO greeting_audit (
			id, request_id, phone_masked, crm_customer_id,
			scenario, language, is_new_customer, created_in_crm,
			name_source, pickup_source, degraded_sources, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at`

	err := r.pool.QueryRow(ctx, query,
		event.ID,
		nullIfEmpty(event.RequestID),
		event.PhoneMasked,
		event.CrmCustomerID,
		string(event.Scenario),
		event.Language,
		event.IsNewCustomer,
		event.CreatedInCRM,
		nullIfEmpty(event.NameSource),
		nullIfEmpty(event.PickupSource),
		degraded,
		event.DurationMs,
	).Scan(&event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create greeting audit event: %w", err)
	}

	return nil
}

func (r *greetingAuditRepository) List(ctx context.Context, filters models.GreetingAuditFilters) ([]*models.GreetingAuditEvent, error) {
	limit := filters.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var conditions []string
	var args []any
	argIdx := 1

	if filters.Scenario != "" {
		conditions = append(conditions, fmt.Sprintf("scenario = $%d", argIdx))
		args = append(args, string(filters.Scenario))
		argIdx++
	}
	if filters.Since != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, *filters.Since)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT id, COALESCE(request_id, ''), phone_masked, crm_customer_id,
		       scenario, language, is_new_customer, created_in_crm,
		       COALESCE(name_source, ''), COALESCE(pickup_source, ''),
		       degraded_sources, duration_ms, created_at
		FROM greeting_audit
		%s
		ORDER BY created_at DESC
		LIMIT $%d`, where, argIdx)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list greeting audit events: %w", err)
	}
	defer rows.Close()

	var events []*models.GreetingAuditEvent
	for rows.Next() {
		event, err := scanGreetingAuditEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating greeting audit events: %w", err)
	}

	return events, nil
}

func scanGreetingAuditEvent(row pgx.Row) (*models.GreetingAuditEvent, error) {
	var event models.GreetingAuditEvent
	var scenario string

	err := row.Scan(
		&event.ID,
		&event.RequestID,
		&event.PhoneMasked,
		&event.CrmCustomerID,
		&scenario,
		&event.Language,
		&event.IsNewCustomer,
		&event.CreatedInCRM,
		&event.NameSource,
		&event.PickupSource,
		&event.DegradedSources,
		&event.DurationMs,
		&event.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan greeting audit event: %w", err)
	}
	event.Scenario = models.GreetingScenario(scenario)

	return &event, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
