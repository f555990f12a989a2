package services

import (
	"strings"

	"github.com/ridewire/voice-engine/pkg/models"
)

// MaxJokesShared caps how many recent jokes are handed to the agent.
const MaxJokesShared = 3

// PreferenceOptions tunes preference aggregation.
type PreferenceOptions struct {
	// Window is how many of the newest records feed every field except the
	// pickup pattern.
	Window int
	// PatternThreshold is the minimum number of uses before a pickup
	// address is inferred from history.
	PatternThreshold int
}

// DefaultPreferenceOptions returns window 5, threshold 2.
func DefaultPreferenceOptions() PreferenceOptions {
	return PreferenceOptions{Window: 5, PatternThreshold: 2}
}

// AggregatePreferences derives a PreferenceSet from call history ordered
// newest first. The full history is only consulted for the pickup pattern.
func AggregatePreferences(history []models.CallRecord, opts PreferenceOptions) *models.PreferenceSet {
	if opts.Window <= 0 {
		opts.Window = DefaultPreferenceOptions().Window
	}
	if opts.PatternThreshold <= 0 {
		opts.PatternThreshold = DefaultPreferenceOptions().PatternThreshold
	}

	recent := history
	if len(recent) > opts.Window {
		recent = recent[:opts.Window]
	}

	language, stated := ResolvePreferredLanguage(recent)
	pickup, derivation := ResolvePreferredPickup(recent, history, opts.PatternThreshold)

	return &models.PreferenceSet{
		PreferredName:          ResolvePreferredName(recent),
		PreferredLanguage:      language,
		LanguageStated:         stated,
		PreferredPickupAddress: pickup,
		PickupDerivation:       derivation,
		ConversationTopics:     MergeConversationTopics(recent),
		JokesShared:            RecentJokes(recent, MaxJokesShared),
		PersonalDetails:        MergePersonalDetails(recent),
		TripDiscussion:         firstNonEmpty(recent, func(r models.CallRecord) string { return r.TripDiscussion }),
		RelationshipContext:    firstNonEmpty(recent, func(r models.CallRecord) string { return r.Preferences.RelationshipContext }),
		Behavior:               SummarizeBehavior(recent),
	}
}

// ResolvePreferredName returns the newest non-empty stated name. Names are
// never merged across calls.
func ResolvePreferredName(recent []models.CallRecord) string {
	return firstNonEmpty(recent, func(r models.CallRecord) string { return r.Preferences.PreferredName })
}

// ResolvePreferredLanguage returns the language from the newest call that
// stated one, so a newer "english" clears an older "spanish". stated reports
// whether any call in the window stated a language.
func ResolvePreferredLanguage(recent []models.CallRecord) (language string, stated bool) {
	for _, r := range recent {
		lang := NormalizeLanguage(r.Preferences.PreferredLanguage)
		if lang == "" {
			continue
		}
		return lang, true
	}
	return models.DefaultLanguage, false
}

var languageAliases = map[string]string{
	"en":       "english",
	"eng":      "english",
	"en-us":    "english",
	"es":       "spanish",
	"español":  "spanish",
	"espanol":  "spanish",
	"fr":       "french",
	"français": "french",
	"francais": "french",
}

// NormalizeLanguage lowercases a stated language and maps common codes to
// their names.
func NormalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if alias, ok := languageAliases[lang]; ok {
		return alias
	}
	return lang
}

// ResolvePreferredPickup returns an explicitly stated pickup address from
// the recent window, else the most used pickup address across the full
// history once it reaches threshold uses. Ties go to the most recently used.
func ResolvePreferredPickup(recent, history []models.CallRecord, threshold int) (address, derivation string) {
	if explicit := firstNonEmpty(recent, func(r models.CallRecord) string { return r.Preferences.PreferredPickupAddress }); explicit != "" {
		return explicit, models.PickupDerivedExplicit
	}

	type usage struct {
		display string
		count   int
		newest  int // index of most recent occurrence; lower is newer
	}
	counts := make(map[string]*usage)
	for i, r := range history {
		if !r.LastPickup.HasAddress() {
			continue
		}
		display := strings.TrimSpace(r.LastPickup.Address)
		key := strings.ToLower(display)
		if u, ok := counts[key]; ok {
			u.count++
			continue
		}
		counts[key] = &usage{display: display, count: 1, newest: i}
	}

	var best *usage
	for _, u := range counts {
		if u.count < threshold {
			continue
		}
		if best == nil || u.count > best.count || (u.count == best.count && u.newest < best.newest) {
			best = u
		}
	}
	if best == nil {
		return "", ""
	}
	return best.display, models.PickupDerivedPattern
}

// MergeConversationTopics returns the deduplicated union of topics, newest first.
func MergeConversationTopics(recent []models.CallRecord) []string {
	seen := make(map[string]bool)
	var topics []string
	for _, r := range recent {
		for _, topic := range r.Preferences.ConversationTopics {
			topic = strings.TrimSpace(topic)
			key := strings.ToLower(topic)
			if topic == "" || seen[key] {
				continue
			}
			seen[key] = true
			topics = append(topics, topic)
		}
	}
	return topics
}

// RecentJokes concatenates jokes newest first, capped at limit.
func RecentJokes(recent []models.CallRecord, limit int) []string {
	var jokes []string
	for _, r := range recent {
		for _, joke := range r.Preferences.JokesShared {
			if strings.TrimSpace(joke) == "" {
				continue
			}
			if len(jokes) == limit {
				return jokes
			}
			jokes = append(jokes, joke)
		}
	}
	return jokes
}

// MergePersonalDetails shallow-merges details oldest to newest so newer
// values win on key collision.
func MergePersonalDetails(recent []models.CallRecord) map[string]any {
	var merged map[string]any
	for i := len(recent) - 1; i >= 0; i-- {
		for k, v := range recent[i].Preferences.PersonalDetails {
			if merged == nil {
				merged = make(map[string]any)
			}
			merged[k] = v
		}
	}
	return merged
}

// SummarizeBehavior counts positive and abusive-type calls in the window.
func SummarizeBehavior(recent []models.CallRecord) models.BehaviorSummary {
	summary := models.BehaviorSummary{CallsScanned: len(recent)}
	for _, r := range recent {
		switch {
		case r.Behavior.IsPositive():
			summary.PositiveCalls++
		case r.Behavior.IsNegative():
			summary.NegativeCalls++
		}
	}
	return summary
}

func firstNonEmpty(records []models.CallRecord, field func(models.CallRecord) string) string {
	for _, r := range records {
		if v := strings.TrimSpace(field(r)); v != "" {
			return v
		}
	}
	return ""
}
