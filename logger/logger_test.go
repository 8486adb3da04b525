package logger_test

import (
	"testing"

	"github.com/nabbar/tcplb/logger"
)

func TestLevelRoundTrip(t *testing.T) {
	for _, name := range logger.GetLevelListString() {
		lvl := logger.GetLevelString(name)
		if lvl.String() == "" {
			t.Fatalf("level %q round-tripped to an empty level", name)
		}
	}
}

func TestGetLevelStringDefaultsToInfo(t *testing.T) {
	if got := logger.GetLevelString("not-a-level"); got != logger.InfoLevel {
		t.Fatalf("expected InfoLevel for unknown input, got %v", got)
	}
}

func TestLoggerRespectsLevelFloor(t *testing.T) {
	l := logger.New("test")
	l.SetLevel(logger.WarnLevel)

	if l.GetLevel() != logger.WarnLevel {
		t.Fatalf("expected WarnLevel, got %v", l.GetLevel())
	}

	// Below the floor: must not panic and must be a no-op.
	l.Debug("noisy detail %d", nil, 42)
}

func TestCheckErrorReportsPresence(t *testing.T) {
	l := logger.New("test")

	if l.CheckError(logger.ErrorLevel, logger.InfoLevel, "probe", nil) {
		t.Fatal("expected CheckError to return false for a nil error")
	}
}
