package phone

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridewire/voice-engine/pkg/apperrors"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"dashed US number", "303-555-0100", "+13035550100"},
		{"punctuated US number", "(303) 555.0100", "+13035550100"},
		{"11 digits with leading 1", "13035550100", "+13035550100"},
		{"already canonical", "+13035550100", "+13035550100"},
		{"plus with spaces", "+1 303 555 0100", "+13035550100"},
		{"international dialing prefix", "0044 20 7946 0958", "+442079460958"},
		{"plus keeps foreign country code", "+44 20 7946 0958", "+442079460958"},
		{"seven digit local", "555-0100 7", "+55501007"},
		{"surrounding whitespace", "  3035550100 ", "+13035550100"},
		{"spelled extension", "303-555-0100 ext 5", "+13035550100"},
		{"dotted extension", "(303) 555-0100 Ext. 204", "+13035550100"},
		{"x extension", "303.555.0100x12", "+13035550100"},
		{"hash extension", "+1 303 555 0100 #9", "+13035550100"},
		{"extension word", "3035550100, extension 77", "+13035550100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_Unresolvable(t *testing.T) {
	for _, raw := range []string{"", "   ", "555-01", "call me", "+", "+-"} {
		t.Run(raw, func(t *testing.T) {
			_, err := Resolve(raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrUnresolvablePhone))
		})
	}
}

func TestStripExtension(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"303-555-0100 ext 5", "303-555-0100"},
		{"303-555-0100", "303-555-0100"},
		{"", ""},
		{"ext 5", ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, StripExtension(tt.raw))
		})
	}
}

func TestResolve_ExtensionOnlyIsUnresolvable(t *testing.T) {
	_, err := Resolve("ext 5")
	assert.ErrorIs(t, err, apperrors.ErrUnresolvablePhone)
}

func TestResolve_ShortPlusFormIsAccepted(t *testing.T) {
	got, err := Resolve("+123")
	require.NoError(t, err)
	assert.Equal(t, "+123", got)
}

func TestEquivalentFormats_NANPOrder(t *testing.T) {
	got := EquivalentFormats("+13035550100")
	assert.Equal(t, []string{
		"+13035550100",
		"3035550100",
		"13035550100",
		"0013035550100",
	}, got)
}

func TestEquivalentFormats_International(t *testing.T) {
	got := EquivalentFormats("+442079460958")
	assert.Equal(t, []string{
		"+442079460958",
		"442079460958",
		"00442079460958",
	}, got)
}

func TestEquivalentFormats_Stable(t *testing.T) {
	first := EquivalentFormats("+13035550100")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, EquivalentFormats("+13035550100"))
	}
}

func TestEquivalentFormats_Empty(t *testing.T) {
	assert.Nil(t, EquivalentFormats(""))
}

// Every input with at least seven digits and no '+' must resolve to a
// canonical form that is itself one of its equivalent formats.
func TestResolve_RoundTripContainment(t *testing.T) {
	inputs := []string{
		"5550100",
		"55501001",
		"555010012",
		"3035550100",
		"13035550100",
		"23035550100",
		"442079460958",
		"00442079460958",
		"303.555.0100",
		"1 (303) 555-0100",
		"0013035550100",
	}

	for _, raw := range inputs {
		t.Run(raw, func(t *testing.T) {
			canonical, err := Resolve(raw)
			require.NoError(t, err)
			assert.Contains(t, EquivalentFormats(canonical), canonical)
			assert.Equal(t, canonical, EquivalentFormats(canonical)[0])
		})
	}
}

func TestIsNANP(t *testing.T) {
	assert.True(t, IsNANP("+13035550100"))
	assert.False(t, IsNANP("+442079460958"))
	assert.False(t, IsNANP("+1303555"))
}
