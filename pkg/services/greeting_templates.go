package services

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ridewire/voice-engine/pkg/config"
	"github.com/ridewire/voice-engine/pkg/models"
)

// Resume hints for dropped calls live in the same table as scenarios under
// this key prefix, so a new language only needs data.
const templateResumePrefix = "resume_"

func resumeTemplateKey(action models.ResumeAction) string {
	return templateResumePrefix + string(action)
}

// defaultGreetingTemplates is the built-in (key, language) -> template table.
// Placeholders are context parameter names in braces.
var defaultGreetingTemplates = config.GreetingTemplates{
	string(models.ScenarioActiveTrip): {
		"english": "Hi {name}! I see your ride from {pickup_address} to {destination_address}, pickup {relative_time}. Are you calling about that trip?",
		"spanish": "¡Hola {name}! Veo su viaje de {pickup_address} a {destination_address}, con recogida a las {pickup_time}. ¿Llama por ese viaje?",
		"french":  "Bonjour {name} ! Je vois votre course de {pickup_address} à {destination_address}, prise en charge à {pickup_time}. Vous appelez pour ce trajet ?",
	},
	string(models.ScenarioCallback): {
		"english": "Welcome back, {name}! Would you like a ride back from {last_dropoff}?",
		"spanish": "¡Bienvenido de nuevo, {name}! ¿Quiere un viaje de regreso desde {last_dropoff}?",
		"french":  "Rebonjour {name} ! Souhaitez-vous un retour depuis {last_dropoff} ?",
	},
	string(models.ScenarioDroppedCall): {
		"english": "Hi {name}, sorry we got cut off. {resume_hint}",
		"spanish": "Hola {name}, disculpe, se cortó la llamada. {resume_hint}",
		"french":  "Bonjour {name}, désolé, nous avons été coupés. {resume_hint}",
	},
	string(models.ScenarioTripDiscussion): {
		"english": "Hi {name}! Last time we talked about {trip_discussion}. Would you like to book that now?",
		"spanish": "¡Hola {name}! La última vez hablamos de {trip_discussion}. ¿Quiere reservarlo ahora?",
		"french":  "Bonjour {name} ! La dernière fois, nous avons parlé de {trip_discussion}. Voulez-vous le réserver maintenant ?",
	},
	string(models.ScenarioPreferredAddress): {
		"english": "Hi {name}! Shall I send a car to {preferred_address} again?",
		"spanish": "¡Hola {name}! ¿Le envío un coche a {preferred_address} otra vez?",
		"french":  "Bonjour {name} ! Je vous envoie une voiture au {preferred_address} comme d'habitude ?",
	},
	string(models.ScenarioPrimaryAddress): {
		"english": "Hi {name}! Would you like a pickup at {primary_address}?",
		"spanish": "¡Hola {name}! ¿Desea que lo recojamos en {primary_address}?",
		"french":  "Bonjour {name} ! Souhaitez-vous une prise en charge au {primary_address} ?",
	},
	string(models.ScenarioKnownCustomer): {
		"english": "Hi {name}! Where can we take you today?",
		"spanish": "¡Hola {name}! ¿A dónde le llevamos hoy?",
		"french":  "Bonjour {name} ! Où pouvons-nous vous emmener aujourd'hui ?",
	},
	string(models.ScenarioNewCustomer): {
		"english": "Thanks for calling! Where would you like to be picked up?",
		"spanish": "¡Gracias por llamar! ¿Dónde quiere que lo recojamos?",
		"french":  "Merci de votre appel ! Où souhaitez-vous être pris en charge ?",
	},
	resumeTemplateKey(models.ResumeAskDestination): {
		"english": "You were booking a ride from {pickup_address}. Where would you like to go?",
		"spanish": "Estaba reservando un viaje desde {pickup_address}. ¿A dónde quiere ir?",
		"french":  "Vous réserviez une course depuis {pickup_address}. Où souhaitez-vous aller ?",
	},
	resumeTemplateKey(models.ResumeAskPickup): {
		"english": "You were booking a ride to {destination_address}. Where should we pick you up?",
		"spanish": "Estaba reservando un viaje a {destination_address}. ¿Dónde lo recogemos?",
		"french":  "Vous réserviez une course vers {destination_address}. Où devons-nous vous prendre ?",
	},
	resumeTemplateKey(models.ResumeConfirmBooking): {
		"english": "We had a ride from {pickup_address} to {destination_address}. Shall I confirm the booking?",
		"spanish": "Teníamos un viaje de {pickup_address} a {destination_address}. ¿Confirmo la reserva?",
		"french":  "Nous avions une course de {pickup_address} à {destination_address}. Je confirme la réservation ?",
	},
	resumeTemplateKey(models.ResumeWhereWereWe): {
		"english": "Where were we?",
		"spanish": "¿En qué estábamos?",
		"french":  "Où en étions-nous ?",
	},
}

var (
	// a placeholder together with the whitespace before it, so an empty
	// value takes its leading space with it
	placeholderPattern = regexp.MustCompile(`[ \t]*\{[a-z_]+\}`)
	danglingComma      = regexp.MustCompile(`,([.!?])`)
	repeatedSpaces     = regexp.MustCompile(`[ \t]{2,}`)
)

// TemplateTable maps (key, language) to template text. Keys are scenario
// names and resume hint keys.
type TemplateTable struct {
	templates config.GreetingTemplates
}

// NewTemplateTable merges overrides over the built-in templates. Overrides
// may add languages or replace individual entries.
func NewTemplateTable(overrides config.GreetingTemplates) *TemplateTable {
	merged := make(config.GreetingTemplates, len(defaultGreetingTemplates))
	for key, byLang := range defaultGreetingTemplates {
		merged[key] = make(map[string]string, len(byLang))
		for lang, text := range byLang {
			merged[key][lang] = text
		}
	}
	for key, byLang := range overrides {
		if merged[key] == nil {
			merged[key] = make(map[string]string, len(byLang))
		}
		for lang, text := range byLang {
			merged[key][lang] = text
		}
	}
	return &TemplateTable{templates: merged}
}

// Has reports whether a template exists for the key in the language.
func (t *TemplateTable) Has(key, language string) bool {
	_, ok := t.templates[key][language]
	return ok
}

// Languages lists every language with a template for key, sorted.
func (t *TemplateTable) Languages(key string) []string {
	langs := make([]string, 0, len(t.templates[key]))
	for lang := range t.templates[key] {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// Render fills the template for (key, language). Missing parameters render
// empty and the surrounding punctuation is tidied. ok is false when no
// template exists.
func (t *TemplateTable) Render(key, language string, params map[string]string) (text string, ok bool) {
	tmpl, ok := t.templates[key][language]
	if !ok {
		return "", false
	}

	out := placeholderPattern.ReplaceAllStringFunc(tmpl, func(m string) string {
		open := strings.IndexByte(m, '{')
		value := params[m[open+1:len(m)-1]]
		if value == "" {
			return ""
		}
		return m[:open] + value
	})
	out = danglingComma.ReplaceAllString(out, "$1")
	out = repeatedSpaces.ReplaceAllString(out, " ")
	return strings.TrimSpace(out), true
}
