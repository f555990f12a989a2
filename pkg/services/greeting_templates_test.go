package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridewire/voice-engine/pkg/config"
	"github.com/ridewire/voice-engine/pkg/models"
)

func TestTemplateTable_EveryScenarioHasEnglish(t *testing.T) {
	table := NewTemplateTable(nil)
	for _, s := range models.AllScenarios {
		assert.True(t, table.Has(string(s), "english"), "missing english template for %s", s)
	}
	for _, a := range []models.ResumeAction{
		models.ResumeAskDestination, models.ResumeAskPickup,
		models.ResumeConfirmBooking, models.ResumeWhereWereWe,
	} {
		assert.True(t, table.Has(resumeTemplateKey(a), "english"), "missing resume hint for %s", a)
	}
}

func TestTemplateTable_Render(t *testing.T) {
	table := NewTemplateTable(nil)

	text, ok := table.Render(string(models.ScenarioKnownCustomer), "english", map[string]string{"name": "Alex"})
	require.True(t, ok)
	assert.Equal(t, "Hi Alex! Where can we take you today?", text)

	text, ok = table.Render(string(models.ScenarioPrimaryAddress), "english", map[string]string{
		"name":            "Alex",
		"primary_address": "456 Oak Ave",
	})
	require.True(t, ok)
	assert.Equal(t, "Hi Alex! Would you like a pickup at 456 Oak Ave?", text)
}

func TestTemplateTable_RenderMissingParams(t *testing.T) {
	table := NewTemplateTable(nil)

	text, _ := table.Render(string(models.ScenarioKnownCustomer), "english", nil)
	assert.Equal(t, "Hi! Where can we take you today?", text)

	text, _ = table.Render(string(models.ScenarioCallback), "english", map[string]string{"last_dropoff": "the airport"})
	assert.Equal(t, "Welcome back! Would you like a ride back from the airport?", text)

	// french spacing before punctuation survives
	text, _ = table.Render(string(models.ScenarioKnownCustomer), "french", map[string]string{"name": "Luc"})
	assert.Equal(t, "Bonjour Luc ! Où pouvons-nous vous emmener aujourd'hui ?", text)
}

func TestTemplateTable_UnknownKeyOrLanguage(t *testing.T) {
	table := NewTemplateTable(nil)

	_, ok := table.Render("no_such_scenario", "english", nil)
	assert.False(t, ok)
	_, ok = table.Render(string(models.ScenarioNewCustomer), "klingon", nil)
	assert.False(t, ok)
}

func TestTemplateTable_Overrides(t *testing.T) {
	table := NewTemplateTable(config.GreetingTemplates{
		string(models.ScenarioNewCustomer): {
			"english": "Hello there!",
			"german":  "Hallo!",
		},
	})

	text, _ := table.Render(string(models.ScenarioNewCustomer), "english", nil)
	assert.Equal(t, "Hello there!", text)
	assert.Equal(t, []string{"english", "french", "german", "spanish"}, table.Languages(string(models.ScenarioNewCustomer)))

	// defaults are not mutated by overrides
	fresh := NewTemplateTable(nil)
	text, _ = fresh.Render(string(models.ScenarioNewCustomer), "english", nil)
	assert.Equal(t, "Thanks for calling! Where would you like to be picked up?", text)
}
