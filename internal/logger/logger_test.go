package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		json  bool
		debug bool
		want  zapcore.Level
	}{
		{name: "console info", want: zapcore.InfoLevel},
		{name: "json debug", json: true, debug: true, want: zapcore.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l, err := New(tt.json, tt.debug)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !l.Core().Enabled(tt.want) {
				t.Fatalf("expected %s to be enabled", tt.want)
			}
			if tt.want == zapcore.InfoLevel && l.Core().Enabled(zapcore.DebugLevel) {
				t.Fatal("debug must be disabled without --debug")
			}
		})
	}
}

func TestEncoderConfig(t *testing.T) {
	t.Parallel()

	if ec := encoderConfig(false); ec.MessageKey != "step" || ec.EncodeLevel == nil {
		t.Fatalf("unexpected console encoder config: %+v", ec)
	}
	if ec := encoderConfig(true); ec.EncodeDuration == nil {
		t.Fatal("json encoder must encode durations")
	}
}
