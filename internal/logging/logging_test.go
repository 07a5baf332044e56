package logging

import (
	"net/url"
	"strings"
	"testing"

	"github.com/prepvault/storefront/internal/config"
)

func TestRedactQuery(t *testing.T) {
	u, _ := url.Parse("/api/materials/7/view?token=eyJhbGciOi.secret&page=2")
	got := RedactQuery(u)
	if strings.Contains(got, "eyJhbGciOi") {
		t.Fatalf("token leaked: %s", got)
	}
	if !strings.Contains(got, "page=2") {
		t.Fatalf("expected non-sensitive params kept: %s", got)
	}
}

func TestRedactQueryNoQuery(t *testing.T) {
	u, _ := url.Parse("/api/materials")
	if got := RedactQuery(u); got != "/api/materials" {
		t.Fatalf("unexpected path: %s", got)
	}
}

func TestMask(t *testing.T) {
	cases := map[string]string{
		"":                 "",
		"short":            "***",
		"rzp_test_abcdefg": "rzp_***",
	}
	for in, want := range cases {
		if got := Mask(in); got != want {
			t.Fatalf("Mask(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewHonoursLevel(t *testing.T) {
	logger, err := New(config.ServerConfig{Env: "production"}, config.LogConfig{Level: "warn"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logger.Core().Enabled(-1) {
		t.Fatalf("debug should be disabled at warn level")
	}
}
