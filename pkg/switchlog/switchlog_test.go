package switchlog

import "testing"

func TestLevelFromString(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warn":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"fatal":   LevelFatal,
		"bogus":   LevelInfo,
	}
	for in, want := range cases {
		if got := levelFromString(in); got != want {
			t.Errorf("levelFromString(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	l := New("test", "warn")
	if l.Level != LevelWarn {
		t.Fatalf("expected LevelWarn, got %v", l.Level)
	}
	// Debug/Info calls below the configured level must not panic.
	l.Debug("suppressed %d", 1)
	l.Info("suppressed %d", 2)
	l.Warn("emitted %d", 3)

	l.SetLevel("debug")
	if l.Level != LevelDebug {
		t.Fatalf("expected LevelDebug after SetLevel, got %v", l.Level)
	}
}
