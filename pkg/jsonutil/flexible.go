// Package jsonutil decodes loosely typed upstream JSON. Dispatch CRMs are
// inconsistent about whether ids are numbers or strings and whether counts
// and flags arrive quoted.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// StringValue converts a json.RawMessage to a string, accepting numbers and
// booleans. Returns empty string for null/empty.
func StringValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	// json.Number keeps large integer ids exact
	var numVal json.Number
	if err := json.Unmarshal(raw, &numVal); err == nil {
		if i, err := numVal.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		if f, err := numVal.Float64(); err == nil {
			return strconv.FormatFloat(f, 'g', -1, 64)
		}
		return numVal.String()
	}

	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return strconv.FormatBool(boolVal)
	}

	return string(raw)
}

// String is a string field that also accepts JSON numbers and booleans.
type String string

func (s *String) UnmarshalJSON(data []byte) error {
	*s = String(StringValue(data))
	return nil
}

// Int is an integer field that also accepts quoted numbers. Null and empty
// strings decode to zero.
type Int int

func (n *Int) UnmarshalJSON(data []byte) error {
	v := strings.TrimSpace(StringValue(data))
	if v == "" {
		*n = 0
		return nil
	}
	if i, err := strconv.Atoi(v); err == nil {
		*n = Int(i)
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q", v)
	}
	*n = Int(int(f))
	return nil
}

// Bool is a boolean field that also accepts 0/1 and yes/no.
type Bool bool

func (b *Bool) UnmarshalJSON(data []byte) error {
	switch strings.ToLower(strings.TrimSpace(StringValue(data))) {
	case "", "false", "0", "no", "n":
		*b = false
	case "true", "1", "yes", "y":
		*b = true
	default:
		return fmt.Errorf("invalid boolean %s", string(data))
	}
	return nil
}
