package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestFlexibleTimeFormats(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{
			name: "rfc3339",
			raw:  `"2025-03-01T12:30:00Z"`,
			want: time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC),
		},
		{
			name: "python isoformat without zone",
			raw:  `"2025-03-01T12:30:00.123456"`,
			want: time.Date(2025, 3, 1, 12, 30, 0, 123456000, time.UTC),
		},
		{
			name: "seconds precision without zone",
			raw:  `"2025-03-01T12:30:00"`,
			want: time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC),
		},
		{
			name: "date only",
			raw:  `"2025-03-01"`,
			want: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "null is zero time",
			raw:  `null`,
			want: time.Time{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ft FlexibleTime
			if err := json.Unmarshal([]byte(tt.raw), &ft); err != nil {
				t.Fatalf("unmarshal %s: %v", tt.raw, err)
			}
			if !ft.Time.Equal(tt.want) {
				t.Errorf("parsed %s = %v, want %v", tt.raw, ft.Time, tt.want)
			}
		})
	}
}

func TestFlexibleTimeRejectsGarbage(t *testing.T) {
	var ft FlexibleTime
	if err := json.Unmarshal([]byte(`"not-a-date"`), &ft); err == nil {
		t.Error("garbage timestamp must fail to parse")
	}
}

func TestSettingsCloneIsDeep(t *testing.T) {
	original := Settings{
		"LEVERAGE":                 10.0,
		"PROACTIVE_SCAN_BLACKLIST": []string{"SHIB"},
	}

	clone := original.Clone()
	clone["LEVERAGE"] = 99.0
	clone["PROACTIVE_SCAN_BLACKLIST"].([]string)[0] = "PEPE"

	if original["LEVERAGE"] != 10.0 {
		t.Error("clone must not share scalar values")
	}
	if original["PROACTIVE_SCAN_BLACKLIST"].([]string)[0] != "SHIB" {
		t.Error("clone must copy string lists")
	}
}
