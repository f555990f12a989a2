package services

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ridewire/voice-engine/pkg/apperrors"
	"github.com/ridewire/voice-engine/pkg/config"
	"github.com/ridewire/voice-engine/pkg/models"
)

// GreetingInput is the full input of a greeting decision. Latest is nil when
// memory had no record.
type GreetingInput struct {
	Profile   models.CustomerProfile
	Latest    *models.CallRecord
	Trips     []models.CrmTrip
	Addresses []models.CrmAddress
	Now       time.Time
}

// GreetingRules are the time windows and languages the selector works with.
type GreetingRules struct {
	SupportedLanguages  []string
	ActiveTripLookahead time.Duration
	ActiveTripLookback  time.Duration
	CallbackWindow      time.Duration
	DroppedCallWindow   time.Duration

	// Location is the zone pickup times are rendered in. Nil means UTC.
	Location *time.Location
}

// GreetingRulesFromConfig converts greeting configuration.
func GreetingRulesFromConfig(cfg *config.GreetingConfig) GreetingRules {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		loc = time.UTC
	}
	return GreetingRules{
		SupportedLanguages:  cfg.SupportedLanguages,
		ActiveTripLookahead: cfg.ActiveTripLookahead,
		ActiveTripLookback:  cfg.ActiveTripLookback,
		CallbackWindow:      cfg.CallbackWindow,
		DroppedCallWindow:   cfg.DroppedCallWindow,
		Location:            loc,
	}
}

// scenarioMatcher reports whether a scenario applies and fills its context
// parameters when it does.
type scenarioMatcher func(in GreetingInput, params map[string]string) bool

// GreetingSelector picks one greeting scenario by fixed precedence.
type GreetingSelector struct {
	rules     GreetingRules
	supported map[string]bool
	templates *TemplateTable
	order     []models.GreetingScenario
	matchers  map[models.GreetingScenario]scenarioMatcher
}

// NewGreetingSelector creates a selector. English is always supported.
func NewGreetingSelector(rules GreetingRules, templates *TemplateTable) *GreetingSelector {
	supported := map[string]bool{models.DefaultLanguage: true}
	for _, lang := range rules.SupportedLanguages {
		supported[NormalizeLanguage(lang)] = true
	}
	if templates == nil {
		templates = NewTemplateTable(nil)
	}

	s := &GreetingSelector{
		rules:     rules,
		supported: supported,
		templates: templates,
		order:     models.AllScenarios,
	}
	s.matchers = map[models.GreetingScenario]scenarioMatcher{
		models.ScenarioActiveTrip:       s.matchActiveTrip,
		models.ScenarioCallback:         s.matchCallback,
		models.ScenarioDroppedCall:      s.matchDroppedCall,
		models.ScenarioTripDiscussion:   matchTripDiscussion,
		models.ScenarioPreferredAddress: matchPreferredAddress,
		models.ScenarioPrimaryAddress:   matchPrimaryAddress,
		models.ScenarioKnownCustomer:    matchKnownCustomer,
		models.ScenarioNewCustomer:      matchNewCustomer,
	}
	return s
}

// Select returns the first scenario in precedence order that applies,
// together with its language, parameters and rendered text. new_customer
// always applies, so reaching the end of the list is a programming error.
func (s *GreetingSelector) Select(in GreetingInput) models.GreetingDecision {
	language := s.ResolveLanguage(in.Profile.PreferredLanguage)

	for _, scenario := range s.order {
		params := map[string]string{}
		if in.Profile.PreferredName != "" {
			params[models.ParamName] = in.Profile.PreferredName
		}
		if !s.matchers[scenario](in, params) {
			continue
		}

		lang := language
		if !s.templates.Has(string(scenario), lang) {
			lang = models.DefaultLanguage
		}
		if scenario == models.ScenarioDroppedCall {
			s.renderResumeHint(lang, params)
		}
		text, _ := s.templates.Render(string(scenario), lang, params)

		return models.GreetingDecision{
			Scenario:      scenario,
			Language:      lang,
			ContextParams: params,
			Text:          text,
		}
	}

	panic(fmt.Errorf("%w: new_customer must always match", apperrors.ErrNoGreetingScenario))
}

// ResolveLanguage constrains a profile language to the supported set.
func (s *GreetingSelector) ResolveLanguage(language string) string {
	language = NormalizeLanguage(language)
	if s.supported[language] {
		return language
	}
	return models.DefaultLanguage
}

// ActiveTrip returns the trip the caller is most likely calling about: an
// active status and a pickup time within [now-lookback, now+lookahead]. The
// earliest pickup wins.
func (s *GreetingSelector) ActiveTrip(trips []models.CrmTrip, now time.Time) (models.CrmTrip, bool) {
	from := now.Add(-s.rules.ActiveTripLookback)
	to := now.Add(s.rules.ActiveTripLookahead)
	return earliestTrip(trips, func(t models.CrmTrip) bool {
		return !t.PickupTime.Before(from) && !t.PickupTime.After(to)
	})
}

// NextTrip returns the earliest active trip that has not been over for
// longer than the lookback, with no upper bound.
func (s *GreetingSelector) NextTrip(trips []models.CrmTrip, now time.Time) (models.CrmTrip, bool) {
	from := now.Add(-s.rules.ActiveTripLookback)
	return earliestTrip(trips, func(t models.CrmTrip) bool {
		return !t.PickupTime.Before(from)
	})
}

func earliestTrip(trips []models.CrmTrip, inWindow func(models.CrmTrip) bool) (models.CrmTrip, bool) {
	var best models.CrmTrip
	found := false
	for _, t := range trips {
		if !t.HasActiveStatus() || t.PickupTime.IsZero() || !inWindow(t) {
			continue
		}
		if !found || t.PickupTime.Before(best.PickupTime) {
			best = t
			found = true
		}
	}
	return best, found
}

func (s *GreetingSelector) matchActiveTrip(in GreetingInput, params map[string]string) bool {
	trip, ok := s.ActiveTrip(in.Trips, in.Now)
	if !ok {
		return false
	}
	minutes := int(math.Round(trip.PickupTime.Sub(in.Now).Minutes()))

	params[models.ParamTripID] = trip.ID
	params[models.ParamTripStatus] = trip.Status
	params[models.ParamPickupTime] = s.localClock(trip.PickupTime)
	params[models.ParamMinutesUntil] = strconv.Itoa(minutes)
	params[models.ParamRelativeTime] = RelativeTime(minutes)
	setIfNotEmpty(params, models.ParamPickupAddress, trip.Pickup.Address)
	setIfNotEmpty(params, models.ParamDestinationAddress, trip.Destination.Address)
	setIfNotEmpty(params, models.ParamDriver, trip.Driver)
	return true
}

func (s *GreetingSelector) localClock(t time.Time) string {
	loc := s.rules.Location
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("15:04")
}

func (s *GreetingSelector) matchCallback(in GreetingInput, params map[string]string) bool {
	r := in.Latest
	if r == nil || r.Outcome != models.OutcomeBookingCreated || !r.LastDropoff.HasAddress() {
		return false
	}
	if r.Age(in.Now) >= s.rules.CallbackWindow {
		return false
	}
	params[models.ParamLastDropoff] = strings.TrimSpace(r.LastDropoff.Address)
	setIfNotEmpty(params, models.ParamLastTripID, r.LastTripID)
	return true
}

func (s *GreetingSelector) matchDroppedCall(in GreetingInput, params map[string]string) bool {
	r := in.Latest
	if r == nil || !r.WasDropped || r.Age(in.Now) >= s.rules.DroppedCallWindow {
		return false
	}

	params[models.ParamResumeAction] = string(ResumeActionFor(r.CollectedInfo))
	setIfNotEmpty(params, models.ParamConversationState, r.ConversationState)
	if ci := r.CollectedInfo; ci != nil {
		setIfNotEmpty(params, models.ParamPickupAddress, ci.PickupAddress)
		setIfNotEmpty(params, models.ParamDestinationAddress, ci.DestinationAddress)
		setIfNotEmpty(params, models.ParamPickupTime, ci.PickupTime)
	}
	return true
}

// renderResumeHint adds the localized resume hint for a dropped call.
func (s *GreetingSelector) renderResumeHint(lang string, params map[string]string) {
	key := resumeTemplateKey(models.ResumeAction(params[models.ParamResumeAction]))
	if !s.templates.Has(key, lang) {
		lang = models.DefaultLanguage
	}
	if hint, ok := s.templates.Render(key, lang, params); ok {
		params[models.ParamResumeHint] = hint
	}
}

// ResumeActionFor decides what to ask after a dropped call from the booking
// fields collected before the drop.
func ResumeActionFor(ci *models.CollectedInfo) models.ResumeAction {
	if ci == nil {
		return models.ResumeWhereWereWe
	}
	switch {
	case ci.HasPickup && !ci.HasDestination:
		return models.ResumeAskDestination
	case ci.HasDestination && !ci.HasPickup:
		return models.ResumeAskPickup
	case ci.HasPickup && ci.HasDestination && !ci.HasTime:
		return models.ResumeConfirmBooking
	default:
		return models.ResumeWhereWereWe
	}
}

func matchTripDiscussion(in GreetingInput, params map[string]string) bool {
	if in.Latest == nil {
		return false
	}
	discussion := strings.TrimSpace(in.Latest.TripDiscussion)
	if discussion == "" {
		return false
	}
	params[models.ParamTripDiscussion] = discussion
	return true
}

func matchPreferredAddress(in GreetingInput, params map[string]string) bool {
	p := in.Profile
	if p.PreferredPickupAddress == "" || p.PreferredPickupAddressSource != models.SourceMemory {
		return false
	}
	params[models.ParamPreferredAddress] = p.PreferredPickupAddress
	return true
}

func matchPrimaryAddress(in GreetingInput, params map[string]string) bool {
	primary, ok := models.PrimaryAddress(in.Addresses)
	if !ok {
		return false
	}
	params[models.ParamPrimaryAddress] = primary.Formatted
	params[models.ParamPrimaryAddressUses] = strconv.Itoa(primary.UsageCount)
	return true
}

func matchKnownCustomer(in GreetingInput, _ map[string]string) bool {
	return in.Profile.PreferredName != ""
}

func matchNewCustomer(GreetingInput, map[string]string) bool {
	return true
}

// RelativeTime renders minutes until pickup as "in 5 minutes", "right now"
// or "10 minutes ago".
func RelativeTime(minutes int) string {
	switch {
	case minutes == 0:
		return "right now"
	case minutes == 1:
		return "in 1 minute"
	case minutes == -1:
		return "1 minute ago"
	case minutes > 0:
		return fmt.Sprintf("in %d minutes", minutes)
	default:
		return fmt.Sprintf("%d minutes ago", -minutes)
	}
}

func setIfNotEmpty(params map[string]string, key, value string) {
	if v := strings.TrimSpace(value); v != "" {
		params[key] = v
	}
}
