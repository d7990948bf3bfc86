package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew_JSONCarriesAppAndRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: zerolog.InfoLevel, Format: FormatJSON, App: "medication-adherence", Out: &buf})

	l.Debug().Msg("hidden")
	l.Info().Str("k", "v").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line must be filtered at info level: %s", out)
	}
	if !strings.Contains(out, `"app":"medication-adherence"`) || !strings.Contains(out, `"message":"shown"`) {
		t.Fatalf("unexpected json output: %s", out)
	}
}

func TestNew_TextUsesConsoleWriter(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: zerolog.DebugLevel, Format: FormatText, Out: &buf})
	l.Info().Msg("hello")

	out := buf.String()
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Fatalf("text format should not emit raw json: %s", out)
	}
	if !strings.Contains(out, "hello") {
		t.Fatalf("missing message: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
