package logger

import "testing"

func TestMaskEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  string
	}{
		{"typical address", "john.doe@example.com", "joh***@example.com"},
		{"short local part", "ab@example.com", "ab***@example.com"},
		{"no at sign", "not-an-email", "***"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaskEmail(tt.email); got != tt.want {
				t.Errorf("MaskEmail(%q) = %q, want %q", tt.email, got, tt.want)
			}
		})
	}
}

func TestMaskIP(t *testing.T) {
	tests := []struct {
		name string
		ip   string
		want string
	}{
		{"ipv4", "192.168.1.100", "192.168.*.*"},
		{"ipv6", "2001:0db8:85a3:0000:0000:8a2e:0370:7334", "2001:0db8:85a3:0000:*:*:*:*"},
		{"garbage", "localhost", "***"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaskIP(tt.ip); got != tt.want {
				t.Errorf("MaskIP(%q) = %q, want %q", tt.ip, got, tt.want)
			}
		})
	}
}

func TestMaskString(t *testing.T) {
	if got := MaskString("secret123"); got != "se***23" {
		t.Errorf("MaskString(secret123) = %q, want se***23", got)
	}
	if got := MaskString("abcd"); got != "***" {
		t.Errorf("MaskString(abcd) = %q, want ***", got)
	}
	if got := MaskString(""); got != "" {
		t.Errorf("MaskString(empty) = %q, want empty", got)
	}
}
