package jsonutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringValue(t *testing.T) {
	tests := []struct {
		name  string
		input json.RawMessage
		want  string
	}{
		{name: "string value", input: json.RawMessage(`"cus_42"`), want: "cus_42"},
		{name: "integer id", input: json.RawMessage(`42`), want: "42"},
		{name: "float value", input: json.RawMessage(`3.5`), want: "3.5"},
		{name: "boolean", input: json.RawMessage(`true`), want: "true"},
		{name: "null", input: json.RawMessage(`null`), want: ""},
		{name: "empty", input: json.RawMessage{}, want: ""},
		{name: "nil", input: nil, want: ""},
		{name: "large integer keeps precision", input: json.RawMessage(`9007199254740993`), want: "9007199254740993"},
		{name: "object falls back to raw", input: json.RawMessage(`{"a":1}`), want: `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StringValue(tt.input))
		})
	}
}

func TestFlexibleFieldsInStruct(t *testing.T) {
	var v struct {
		ID    String `json:"id"`
		Count Int    `json:"count"`
		VIP   Bool   `json:"vip"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"id": 1234, "count": "3", "vip": 1}`), &v))
	assert.Equal(t, String("1234"), v.ID)
	assert.Equal(t, Int(3), v.Count)
	assert.True(t, bool(v.VIP))

	require.NoError(t, json.Unmarshal([]byte(`{"id": "abc", "count": null, "vip": "no"}`), &v))
	assert.Equal(t, String("abc"), v.ID)
	assert.Equal(t, Int(0), v.Count)
	assert.False(t, bool(v.VIP))
}

func TestInt_Invalid(t *testing.T) {
	var n Int
	err := json.Unmarshal([]byte(`"many"`), &n)
	assert.Error(t, err)
}

func TestInt_FloatTruncates(t *testing.T) {
	var n Int
	require.NoError(t, json.Unmarshal([]byte(`2.0`), &n))
	assert.Equal(t, Int(2), n)
}

func TestBool_Invalid(t *testing.T) {
	var b Bool
	assert.Error(t, json.Unmarshal([]byte(`"maybe"`), &b))
}
