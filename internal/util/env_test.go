package util

import "testing"

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		fallback bool
		want     bool
	}{
		{"unset uses default", "", true, true},
		{"true", "true", false, true},
		{"numeric one", "1", false, true},
		{"yes", "yes", false, true},
		{"on with case and spaces", " ON ", false, true},
		{"false", "false", true, false},
		{"numeric zero", "0", true, false},
		{"off", "off", true, false},
		{"garbage uses default", "maybe", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PLANFORGE_TEST_BOOL", tt.value)
			if got := ParseBoolEnv("PLANFORGE_TEST_BOOL", tt.fallback); got != tt.want {
				t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.fallback, got, tt.want)
			}
		})
	}
}
