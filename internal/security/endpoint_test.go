package security

import (
	"strings"
	"testing"
)

func TestValidateEndpointURL_Blocked(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"empty", "", "scheme"},
		{"bad scheme", "ftp://geoip.example.com", "scheme"},
		{"no host", "http://", "host"},
		{"localhost", "http://localhost:8081/lookup", "not allowed"},
		{"localhost case insensitive", "http://LOCALHOST/lookup", "not allowed"},
		{"metadata service", "http://metadata.google.internal/computeMetadata", "not allowed"},
		{"loopback literal", "http://127.0.0.1:9000", "loopback"},
		{"private literal", "http://10.0.0.5/analyze", "private"},
		{"private 192 literal", "https://192.168.1.1", "private"},
		{"link-local literal", "http://169.254.169.254/latest/meta-data", "link-local"},
		{"unspecified literal", "http://0.0.0.0:8080", "unspecified"},
		{"ipv6 loopback", "http://[::1]:8080", "loopback"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEndpointURL(tt.url)
			if err == nil {
				t.Fatalf("ValidateEndpointURL(%q) = nil, want error", tt.url)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestValidateEndpointURL_PublicLiteral(t *testing.T) {
	// A public IP literal passes without DNS resolution.
	if err := ValidateEndpointURL("https://203.0.113.10/analyze"); err != nil {
		t.Fatalf("expected public IP literal to pass, got %v", err)
	}
}
