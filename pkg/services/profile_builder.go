package services

import (
	"strings"

	"github.com/ridewire/voice-engine/pkg/models"
)

// ProfileInput is everything the profile is built from. Preferences is nil
// when memory had nothing for the phone; Customer is nil when the CRM did
// not match.
type ProfileInput struct {
	Phone       string
	Preferences *models.PreferenceSet
	Customer    *models.CrmCustomer
	Addresses   []models.CrmAddress
	SpokenName  string
}

// BuildProfile merges memory and CRM data. For name, language and pickup
// address a non-empty memory value always beats the CRM; the CRM fills only
// what memory left empty. A spoken name is the last resort for the name.
func BuildProfile(in ProfileInput) models.CustomerProfile {
	profile := models.CustomerProfile{
		Phone:         in.Phone,
		IsNewCustomer: in.Preferences == nil && in.Customer == nil,
	}

	profile.PreferredName, profile.PreferredNameSource = resolveProfileName(in)
	profile.PreferredLanguage, profile.PreferredLanguageSource = resolveProfileLanguage(in.Preferences)
	profile.PreferredPickupAddress, profile.PreferredPickupAddressSource = resolveProfilePickup(in)

	if c := in.Customer; c != nil {
		profile.CrmCustomerID = c.ID
		profile.VIP = c.VIP
		profile.Banned = c.Banned
		if c.Account != nil {
			profile.AccountName = c.Account.Name
		}
	}
	return profile
}

func resolveProfileName(in ProfileInput) (string, string) {
	if in.Preferences != nil && in.Preferences.PreferredName != "" {
		return in.Preferences.PreferredName, models.SourceMemory
	}
	if in.Customer != nil {
		if name := in.Customer.GreetingName(); name != "" {
			return name, models.SourceCRM
		}
	}
	if first, _ := SplitSpokenName(in.SpokenName); first != "" {
		return first, models.SourceCaller
	}
	return "", ""
}

func resolveProfileLanguage(prefs *models.PreferenceSet) (string, string) {
	if prefs != nil && prefs.LanguageStated && prefs.PreferredLanguage != "" {
		return prefs.PreferredLanguage, models.SourceMemory
	}
	return models.DefaultLanguage, models.SourceDefault
}

func resolveProfilePickup(in ProfileInput) (string, string) {
	if in.Preferences != nil && in.Preferences.PreferredPickupAddress != "" {
		return in.Preferences.PreferredPickupAddress, models.SourceMemory
	}
	if in.Customer == nil {
		return "", ""
	}
	addresses := in.Addresses
	if len(addresses) == 0 {
		addresses = in.Customer.Addresses
	}
	if primary, ok := models.PrimaryAddress(addresses); ok {
		return primary.Formatted, models.SourceCRM
	}
	return "", ""
}

// NeedsCustomerCreation reports whether the caller should be registered in
// the CRM: the CRM answered cleanly that it does not know the phone and the
// caller gave a name. A degraded CRM, or a miss where some phone formats
// failed, never triggers creation.
func NeedsCustomerCreation(crmFound, crmUncertain bool, spokenName string) bool {
	return !crmFound && !crmUncertain && strings.TrimSpace(spokenName) != ""
}

// ApplyCreatedCustomer folds a newly created CRM customer into the profile.
// IsNewCustomer is left as computed before creation.
func ApplyCreatedCustomer(profile *models.CustomerProfile, customer models.CrmCustomer) {
	profile.CrmCustomerID = customer.ID
	profile.CreatedInCRM = true
	if profile.PreferredNameSource == models.SourceMemory {
		return
	}
	if name := customer.GreetingName(); name != "" {
		profile.PreferredName = name
		profile.PreferredNameSource = models.SourceCRM
	}
}

// SplitSpokenName splits "Mary Ann Smith" into ("Mary", "Ann Smith").
func SplitSpokenName(name string) (first, last string) {
	fields := strings.Fields(name)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}
