package models

import (
	"time"

	"github.com/google/uuid"
)

// GreetingAuditEvent is one row of the greeting decision audit trail.
type GreetingAuditEvent struct {
	ID        uuid.UUID `json:"id"`
	RequestID string    `json:"request_id,omitempty"`

	// Who (phone is stored masked)
	PhoneMasked   string  `json:"phone_masked"`
	CrmCustomerID *string `json:"crm_customer_id,omitempty"`

	// What was decided
	Scenario      GreetingScenario `json:"scenario"`
	Language      string           `json:"language"`
	IsNewCustomer bool             `json:"is_new_customer"`
	CreatedInCRM  bool             `json:"created_in_crm"`

	// Why
	NameSource      string   `json:"name_source,omitempty"`
	PickupSource    string   `json:"pickup_source,omitempty"`
	DegradedSources []string `json:"degraded_sources,omitempty"`

	DurationMs int       `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// GreetingAuditFilters narrows audit listings.
type GreetingAuditFilters struct {
	Scenario GreetingScenario
	Since    *time.Time
	Limit    int
}
