package internal

import "testing"

func TestParseLogLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"ERROR":   LogLevelError,
		"warn":    LogLevelWarn,
		"Warning": LogLevelWarn,
		"INFO":    LogLevelInfo,
		"debug":   LogLevelDebug,
		"TRACE":   LogLevelTrace,
		"":        LogLevelInfo,
		"verbose": LogLevelInfo,
	}
	for in, want := range cases {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNopLoggerDoesNotPanic(t *testing.T) {
	l := NewNopLogger().With("run_id", "abc")
	l.Error("e %d", 1)
	l.Warn("w")
	l.Info("i")
	l.Debug("d")
	l.Trace("t")
	if l.GetLevel() != LogLevelError {
		t.Errorf("unexpected level %v", l.GetLevel())
	}
}
