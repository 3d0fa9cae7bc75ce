package settings

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   any
		want    any
		wantErr bool
	}{
		{
			name:  "bool ok",
			key:   "LIVE_TRADING",
			value: false,
			want:  false,
		},
		{
			name:    "bool type mismatch",
			key:     "LIVE_TRADING",
			value:   "true",
			wantErr: true,
		},
		{
			name:  "int from json float64",
			key:   "MAX_CONCURRENT_TRADES",
			value: float64(7),
			want:  7,
		},
		{
			name:    "int rejects fraction",
			key:     "MAX_CONCURRENT_TRADES",
			value:   7.5,
			wantErr: true,
		},
		{
			name:    "int out of range",
			key:     "MAX_CONCURRENT_TRADES",
			value:   float64(51),
			wantErr: true,
		},
		{
			name:  "float ok",
			key:   "RISK_PER_TRADE_PERCENT",
			value: 2.5,
			want:  2.5,
		},
		{
			name:    "float below min",
			key:     "RISK_PER_TRADE_PERCENT",
			value:   0.05,
			wantErr: true,
		},
		{
			name:  "leverage upper bound",
			key:   "LEVERAGE",
			value: float64(125),
			want:  float64(125),
		},
		{
			name:    "leverage above max",
			key:     "LEVERAGE",
			value:   float64(126),
			wantErr: true,
		},
		{
			name:  "string with options",
			key:   "DEFAULT_ORDER_TYPE",
			value: "MARKET",
			want:  "MARKET",
		},
		{
			name:    "string not in options",
			key:     "DEFAULT_ORDER_TYPE",
			value:   "STOP",
			wantErr: true,
		},
		{
			name:  "string list from json",
			key:   "PROACTIVE_SCAN_BLACKLIST",
			value: []any{"SHIB", "PEPE"},
			want:  []string{"SHIB", "PEPE"},
		},
		{
			name:    "string list rejects mixed types",
			key:     "PROACTIVE_SCAN_BLACKLIST",
			value:   []any{"SHIB", 42},
			wantErr: true,
		},
		{
			name:    "unknown key",
			key:     "NOT_A_SETTING",
			value:   1,
			wantErr: true,
		},
		{
			name:    "read-only key",
			key:     "APP_VERSION",
			value:   "9.9.9",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.key, tt.value)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Normalize(%q, %v) = %v, want error", tt.key, tt.value, got)
				}
				return
			}

			if err != nil {
				t.Fatalf("Normalize(%q, %v) error: %v", tt.key, tt.value, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Normalize(%q, %v) = %v (%T), want %v (%T)", tt.key, tt.value, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestDefaultsAreValid(t *testing.T) {
	if err := ValidateAll(Defaults()); err != nil {
		t.Errorf("Defaults() must pass validation: %v", err)
	}
}

func TestValidateAllRejectsUnknownKey(t *testing.T) {
	settings := Defaults()
	settings["MYSTERY"] = 1

	if err := ValidateAll(settings); err == nil {
		t.Error("ValidateAll must reject unknown keys")
	}
}
