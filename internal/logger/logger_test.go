package logger

import (
	"testing"

	"voicecapture/internal/config"
)

func TestResolveFormat(t *testing.T) {
	cases := []struct {
		format   string
		terminal bool
		want     string
	}{
		{"json", true, "json"},
		{"console", false, "console"},
		{"text", false, "console"},
		{"auto", true, "console"},
		{"auto", false, "json"},
		{"", false, "json"},
	}
	for _, tc := range cases {
		if got := resolveFormat(tc.format, tc.terminal); got != tc.want {
			t.Fatalf("resolveFormat(%q, %v) = %q, want %q", tc.format, tc.terminal, got, tc.want)
		}
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(config.LogConfig{Level: "loud"}); err == nil {
		t.Fatalf("expected level error")
	}
	log, err := New(config.LogConfig{Level: "debug", Format: "json"})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	if !log.Core().Enabled(-1) {
		t.Fatalf("debug level not enabled")
	}
}
