package config_test

import (
	"testing"

	"github.com/mrwong99/rollbot/internal/config"
)

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()
	valid := []config.LogLevel{config.LogLevelDebug, config.LogLevelInfo, config.LogLevelWarn, config.LogLevelError}
	for _, lvl := range valid {
		if !lvl.IsValid() {
			t.Errorf("LogLevel(%q).IsValid() = false, want true", lvl)
		}
	}
	if config.LogLevel("trace").IsValid() {
		t.Error(`LogLevel("trace").IsValid() = true, want false`)
	}
}
