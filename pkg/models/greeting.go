package models

// GreetingScenario is one of eight mutually exclusive greeting situations.
type GreetingScenario string

// Scenarios in precedence order.
const (
	ScenarioActiveTrip       GreetingScenario = "active_trip"
	ScenarioCallback         GreetingScenario = "callback"
	ScenarioDroppedCall      GreetingScenario = "dropped_call"
	ScenarioTripDiscussion   GreetingScenario = "trip_discussion"
	ScenarioPreferredAddress GreetingScenario = "preferred_address"
	ScenarioPrimaryAddress   GreetingScenario = "primary_address"
	ScenarioKnownCustomer    GreetingScenario = "known_customer"
	ScenarioNewCustomer      GreetingScenario = "new_customer"
)

// AllScenarios lists every scenario in precedence order.
var AllScenarios = []GreetingScenario{
	ScenarioActiveTrip,
	ScenarioCallback,
	ScenarioDroppedCall,
	ScenarioTripDiscussion,
	ScenarioPreferredAddress,
	ScenarioPrimaryAddress,
	ScenarioKnownCustomer,
	ScenarioNewCustomer,
}

// ResumeAction tells the agent what to ask after a dropped call.
type ResumeAction string

const (
	ResumeAskDestination ResumeAction = "ask_destination"
	ResumeAskPickup      ResumeAction = "ask_pickup"
	ResumeConfirmBooking ResumeAction = "confirm_booking"
	ResumeWhereWereWe    ResumeAction = "where_were_we"
)

// Context parameter keys shared by the selector and the template table.
const (
	ParamName               = "name"
	ParamTripID             = "trip_id"
	ParamPickupAddress      = "pickup_address"
	ParamDestinationAddress = "destination_address"
	ParamPickupTime         = "pickup_time"
	ParamMinutesUntil       = "minutes_until_pickup"
	ParamRelativeTime       = "relative_time"
	ParamTripStatus         = "trip_status"
	ParamDriver             = "driver"
	ParamLastDropoff        = "last_dropoff"
	ParamLastTripID         = "last_trip_id"
	ParamResumeAction       = "resume_action"
	ParamResumeHint         = "resume_hint"
	ParamConversationState  = "conversation_state"
	ParamTripDiscussion     = "trip_discussion"
	ParamPreferredAddress   = "preferred_address"
	ParamPrimaryAddress     = "primary_address"
	ParamPrimaryAddressUses = "primary_address_uses"
)

// SituationalContext carries auxiliary hints derived from destination text.
type SituationalContext struct {
	Luggage      bool   `json:"luggage"`
	SkiEquipment bool   `json:"ski_equipment"`
	Mobility     bool   `json:"mobility"`
	BasedOn      string `json:"based_on,omitempty"`
}

// GreetingDecision is produced and consumed within one lookup.
type GreetingDecision struct {
	Scenario      GreetingScenario   `json:"scenario"`
	Language      string             `json:"language"`
	ContextParams map[string]string  `json:"context_params"`
	Text          string             `json:"text,omitempty"`
	Situational   SituationalContext `json:"situational"`
}
