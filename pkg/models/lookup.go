package models

import "time"

// Source names reported when a backing store could not be reached.
const (
	SourceNameMemory = "memory"
	SourceNameCRM    = "crm"
)

// LastCallSummary is the subset of the latest CallRecord exposed to the voice platform.
type LastCallSummary struct {
	Timestamp           time.Time      `json:"timestamp"`
	MinutesAgo          int            `json:"minutes_ago"`
	Outcome             CallOutcome    `json:"outcome"`
	Behavior            BehaviorTag    `json:"behavior"`
	WasDropped          bool           `json:"was_dropped"`
	LastPickup          string         `json:"last_pickup,omitempty"`
	LastDropoff         string         `json:"last_dropoff,omitempty"`
	LastTripID          string         `json:"last_trip_id,omitempty"`
	ConversationState   string         `json:"conversation_state,omitempty"`
	CollectedInfo       *CollectedInfo `json:"collected_info,omitempty"`
	TripDiscussion      string         `json:"trip_discussion,omitempty"`
	SpecialInstructions string         `json:"special_instructions,omitempty"`
	OperationalNotes    string         `json:"operational_notes,omitempty"`
}

// MemorySection is the memory part of a lookup response.
type MemorySection struct {
	HasMemory   bool             `json:"has_memory"`
	Degraded    bool             `json:"degraded"`
	CallsFound  int              `json:"calls_found"`
	LastCall    *LastCallSummary `json:"last_call,omitempty"`
	Preferences *PreferenceSet   `json:"preferences,omitempty"`
}

// CrmSection is the CRM part of a lookup response.
type CrmSection struct {
	Found          bool        `json:"found"`
	Degraded       bool        `json:"degraded"`
	CustomerID     string      `json:"customer_id,omitempty"`
	ActiveTrip     *CrmTrip    `json:"active_trip,omitempty"`
	PrimaryAddress *CrmAddress `json:"primary_address,omitempty"`
	UpcomingTrips  int         `json:"upcoming_trips"`
}

// LookupRequest is the produced API input.
type LookupRequest struct {
	Phone string `json:"phone"`
	Name  string `json:"name,omitempty"`
}

// LookupResponse is the produced API output.
type LookupResponse struct {
	Profile         CustomerProfile  `json:"profile"`
	Memory          MemorySection    `json:"memory"`
	CRM             CrmSection       `json:"crm"`
	Greeting        GreetingDecision `json:"greeting"`
	DegradedSources []string         `json:"degraded_sources,omitempty"`
}
