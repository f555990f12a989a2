package models

// DefaultLanguage is used whenever no other language preference applies.
const DefaultLanguage = "english"

// Pickup address derivations recorded on a PreferenceSet.
const (
	PickupDerivedExplicit = "explicit"
	PickupDerivedPattern  = "pattern"
)

// BehaviorSummary counts positive and negative calls in the aggregation window.
type BehaviorSummary struct {
	PositiveCalls int `json:"positive_calls"`
	NegativeCalls int `json:"negative_calls"`
	CallsScanned  int `json:"calls_scanned"`
}

// PreferenceSet is derived from recent CallRecords on every lookup and never persisted.
type PreferenceSet struct {
	PreferredName          string          `json:"preferred_name,omitempty"`
	PreferredLanguage      string          `json:"preferred_language"`
	LanguageStated         bool            `json:"language_stated"`
	PreferredPickupAddress string          `json:"preferred_pickup_address,omitempty"`
	PickupDerivation       string          `json:"pickup_derivation,omitempty"`
	ConversationTopics     []string        `json:"conversation_topics,omitempty"`
	JokesShared            []string        `json:"jokes_shared,omitempty"`
	PersonalDetails        map[string]any  `json:"personal_details,omitempty"`
	TripDiscussion         string          `json:"trip_discussion,omitempty"`
	RelationshipContext    string          `json:"relationship_context,omitempty"`
	Behavior               BehaviorSummary `json:"behavior"`
}
