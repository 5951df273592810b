package model

import "testing"

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name string
		zone string
		want string
	}{
		{"www", "example.com", "www.example.com"},
		{"@", "example.com", "example.com"},
		{"", "example.com", "example.com"},
		{"www.example.com", "example.com", "www.example.com"},
		{"WWW.Example.COM", "example.com", "www.example.com"},
		{"www.example.com.", "example.com", "www.example.com"},
		{"example.com", "example.com", "example.com"},
		{"*", "example.com", "*.example.com"},
		{"deep.nested", "example.com", "deep.nested.example.com"},
		{"www", "Example.com.", "www.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.zone, func(t *testing.T) {
			if got := NormalizeName(tt.name, tt.zone); got != tt.want {
				t.Errorf("NormalizeName(%q, %q) = %q, want %q", tt.name, tt.zone, got, tt.want)
			}
		})
	}
}

func TestKeyString(t *testing.T) {
	spec := RecordSpec{FriendlyName: "mail", ZoneName: "example.com", Type: "MX"}
	if got, want := spec.Key().String(), "example.com/MX/mail"; got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}
}
