package main

import "testing"

func TestResolveAllowDeletes(t *testing.T) {
	tests := []struct {
		name        string
		flagSet     bool
		flagValue   bool
		configValue bool
		want        bool
	}{
		{"flag unset uses config true", false, false, true, true},
		{"flag unset uses config false", false, false, false, false},
		{"explicit flag enables", true, true, false, true},
		{"explicit flag disables despite config", true, false, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveAllowDeletes(tt.flagSet, tt.flagValue, tt.configValue); got != tt.want {
				t.Errorf("resolveAllowDeletes(%t, %t, %t) = %t, want %t",
					tt.flagSet, tt.flagValue, tt.configValue, got, tt.want)
			}
		})
	}
}
