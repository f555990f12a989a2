package services

import (
	"regexp"
	"strings"

	"github.com/ridewire/voice-engine/pkg/config"
	"github.com/ridewire/voice-engine/pkg/models"
)

// SituationalBuilder derives luggage, ski equipment and mobility hints from
// destination text. Keyword sets are configuration; an empty set disables
// its hint.
type SituationalBuilder struct {
	airport *regexp.Regexp
	ski     *regexp.Regexp
	medical *regexp.Regexp
}

// NewSituationalBuilder compiles the keyword sets once.
func NewSituationalBuilder(cfg *config.SituationalConfig) *SituationalBuilder {
	return &SituationalBuilder{
		airport: keywordPattern(cfg.AirportKeywords),
		ski:     keywordPattern(cfg.SkiKeywords),
		medical: keywordPattern(cfg.MedicalKeywords),
	}
}

// keywordPattern builds a case-insensitive whole-word alternation.
func keywordPattern(keywords []string) *regexp.Regexp {
	var quoted []string
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(k))
	}
	if len(quoted) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// Build evaluates the text against every keyword set.
func (b *SituationalBuilder) Build(text string) models.SituationalContext {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.SituationalContext{}
	}
	return models.SituationalContext{
		Luggage:      matches(b.airport, text),
		SkiEquipment: matches(b.ski, text),
		Mobility:     matches(b.medical, text),
		BasedOn:      text,
	}
}

func matches(re *regexp.Regexp, text string) bool {
	return re != nil && re.MatchString(text)
}

// SituationalText picks the text hints are derived from: the destination of
// the caller's next trip, else the profile pickup address.
func SituationalText(next *models.CrmTrip, profile models.CustomerProfile) string {
	if next != nil && next.Destination.HasAddress() {
		return next.Destination.Address
	}
	return profile.PreferredPickupAddress
}
