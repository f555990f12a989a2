package models

import (
	"encoding/json"
	"strings"
	"time"
)

// CallOutcome is the terminal result of a historical call.
type CallOutcome string

const (
	OutcomeBookingCreated   CallOutcome = "booking_created"
	OutcomeBookingModified  CallOutcome = "booking_modified"
	OutcomeBookingCancelled CallOutcome = "booking_cancelled"
	OutcomeDroppedCall      CallOutcome = "dropped_call"
	OutcomeInfoProvided     CallOutcome = "info_provided"
	OutcomeCallCompleted    CallOutcome = "call_completed"
	OutcomeUnknown          CallOutcome = "unknown"
)

var knownOutcomes = map[CallOutcome]bool{
	OutcomeBookingCreated:   true,
	OutcomeBookingModified:  true,
	OutcomeBookingCancelled: true,
	OutcomeDroppedCall:      true,
	OutcomeInfoProvided:     true,
	OutcomeCallCompleted:    true,
	OutcomeUnknown:          true,
}

// UnmarshalJSON maps values written by older call-ending versions to OutcomeUnknown.
func (o *CallOutcome) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v := CallOutcome(strings.ToLower(strings.TrimSpace(s)))
	if !knownOutcomes[v] {
		v = OutcomeUnknown
	}
	*o = v
	return nil
}

// BehaviorTag is the caller demeanor recorded at the end of a call.
type BehaviorTag string

const (
	BehaviorPolite      BehaviorTag = "polite"
	BehaviorFriendly    BehaviorTag = "friendly"
	BehaviorGrateful    BehaviorTag = "grateful"
	BehaviorNeutral     BehaviorTag = "neutral"
	BehaviorImpatient   BehaviorTag = "impatient"
	BehaviorRude        BehaviorTag = "rude"
	BehaviorConfused    BehaviorTag = "confused"
	BehaviorIntoxicated BehaviorTag = "intoxicated"
)

// UnmarshalJSON maps unrecognized tags to BehaviorNeutral.
func (b *BehaviorTag) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v := BehaviorTag(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case BehaviorPolite, BehaviorFriendly, BehaviorGrateful, BehaviorNeutral,
		BehaviorImpatient, BehaviorRude, BehaviorConfused, BehaviorIntoxicated:
	default:
		v = BehaviorNeutral
	}
	*b = v
	return nil
}

// IsPositive reports whether the tag counts toward the positive behavior summary.
func (b BehaviorTag) IsPositive() bool {
	return b == BehaviorPolite || b == BehaviorFriendly || b == BehaviorGrateful
}

// IsNegative reports whether the tag is one of the abusive-type tags.
func (b BehaviorTag) IsNegative() bool {
	return b == BehaviorRude || b == BehaviorImpatient || b == BehaviorConfused || b == BehaviorIntoxicated
}

// Location is an address as spoken or geocoded, with optional coordinates.
type Location struct {
	Address string   `json:"address"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
}

// HasAddress reports whether the location carries non-blank address text.
func (l *Location) HasAddress() bool {
	return l != nil && strings.TrimSpace(l.Address) != ""
}

// CollectedInfo holds partial booking fields captured before a call dropped.
type CollectedInfo struct {
	HasPickup          bool   `json:"has_pickup"`
	PickupAddress      string `json:"pickup_address,omitempty"`
	HasDestination     bool   `json:"has_destination"`
	DestinationAddress string `json:"destination_address,omitempty"`
	HasTime            bool   `json:"has_time"`
	PickupTime         string `json:"pickup_time,omitempty"`
	PassengerCount     int    `json:"passenger_count,omitempty"`
}

// CallPreferences are the personal fields the voice agent captured during a call.
type CallPreferences struct {
	PreferredName          string         `json:"preferred_name,omitempty"`
	PreferredLanguage      string         `json:"preferred_language,omitempty"`
	PreferredPickupAddress string         `json:"preferred_pickup_address,omitempty"`
	ConversationTopics     []string       `json:"conversation_topics,omitempty"`
	JokesShared            []string       `json:"jokes_shared,omitempty"`
	PersonalDetails        map[string]any `json:"personal_details,omitempty"`
	RelationshipContext    string         `json:"relationship_context,omitempty"`
}

// CallRecord is one historical call outcome. Records are immutable once
// written and are appended only by the call-ending writer.
type CallRecord struct {
	Phone               string          `json:"phone"`
	Timestamp           time.Time       `json:"timestamp"`
	Outcome             CallOutcome     `json:"outcome"`
	Behavior            BehaviorTag     `json:"behavior"`
	WasDropped          bool            `json:"was_dropped"`
	LastPickup          *Location       `json:"last_pickup,omitempty"`
	LastDropoff         *Location       `json:"last_dropoff,omitempty"`
	LastTripID          string          `json:"last_trip_id,omitempty"`
	ConversationState   string          `json:"conversation_state,omitempty"`
	CollectedInfo       *CollectedInfo  `json:"collected_info,omitempty"`
	TripDiscussion      string          `json:"trip_discussion,omitempty"`
	SpecialInstructions string          `json:"special_instructions,omitempty"`
	OperationalNotes    string          `json:"operational_notes,omitempty"`
	Preferences         CallPreferences `json:"preferences"`
}

// Age returns how long ago the record was written relative to now.
func (r CallRecord) Age(now time.Time) time.Duration {
	return now.Sub(r.Timestamp)
}
