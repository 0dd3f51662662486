package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// PreferencesKey names the serialized preference record passed from the
// questionnaire to the results view.
const PreferencesKey = "userPreferences"

// EncodePreferences serializes p as the flat handoff object.
func EncodePreferences(p PreferenceRecord) ([]byte, error) {
	p = p.Clone()
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal preferences: %w", err)
	}
	return b, nil
}

type handoffRecord struct {
	Budget         json.RawMessage `json:"budget"`
	Walkability    json.RawMessage `json:"walkability"`
	Safety         json.RawMessage `json:"safety"`
	Nightlife      json.RawMessage `json:"nightlife"`
	FamilyFriendly json.RawMessage `json:"familyFriendly"`
	PublicTransit  json.RawMessage `json:"publicTransit"`
	Lifestyle      string          `json:"lifestyle"`
	Priorities     []string        `json:"priorities"`
}

// DecodePreferences parses a handoff payload. Numeric fields may be plain
// numbers or one-element arrays, the shape slider widgets store. An empty,
// undecodable or incomplete payload yields ErrNoPreferences. Range checks are
// left to the caller.
func DecodePreferences(data []byte) (PreferenceRecord, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return PreferenceRecord{}, ErrNoPreferences
	}

	var raw handoffRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return PreferenceRecord{}, fmt.Errorf("%w: %v", ErrNoPreferences, err)
	}

	p := PreferenceRecord{
		Lifestyle:  Lifestyle(raw.Lifestyle),
		Priorities: append([]string{}, raw.Priorities...),
	}
	fields := []struct {
		name string
		raw  json.RawMessage
		dst  *int
	}{
		{"budget", raw.Budget, &p.Budget},
		{"walkability", raw.Walkability, &p.Walkability},
		{"safety", raw.Safety, &p.Safety},
		{"nightlife", raw.Nightlife, &p.Nightlife},
		{"familyFriendly", raw.FamilyFriendly, &p.FamilyFriendly},
		{"publicTransit", raw.PublicTransit, &p.PublicTransit},
	}
	for _, f := range fields {
		v, err := sliderValue(f.raw)
		if err != nil {
			return PreferenceRecord{}, fmt.Errorf("%w: %s: %v", ErrNoPreferences, f.name, err)
		}
		*f.dst = v
	}
	return p, nil
}

func sliderValue(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, fmt.Errorf("missing")
	}

	var n float64
	if raw[0] == '[' {
		var arr []float64
		if err := json.Unmarshal(raw, &arr); err != nil {
			return 0, err
		}
		if len(arr) != 1 {
			return 0, fmt.Errorf("want one value, got %d", len(arr))
		}
		n = arr[0]
	} else if err := json.Unmarshal(raw, &n); err != nil {
		return 0, err
	}

	if n != math.Trunc(n) || math.Abs(n) > math.MaxInt32 {
		return 0, fmt.Errorf("not an integer: %v", n)
	}
	return int(n), nil
}
