package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	tests := []struct {
		env     string
		level   string
		wantErr bool
	}{
		{"prod", "", false},
		{"local", "", false},
		{"dev", "debug", false},
		{"docker", "warn", false},
		{"staging", "", true},
		{"local", "loud", true},
	}

	for _, tt := range tests {
		l, err := New(tt.env, tt.level)
		if tt.wantErr {
			if err == nil {
				t.Errorf("New(%q, %q): expected error", tt.env, tt.level)
			}
			continue
		}
		if err != nil {
			t.Errorf("New(%q, %q): %v", tt.env, tt.level, err)
			continue
		}
		if l == nil {
			t.Errorf("New(%q, %q): nil logger", tt.env, tt.level)
		}
	}
}

func TestFromContext(t *testing.T) {
	base := zap.NewNop()
	ctx := ContextWithLogger(context.Background(), base)

	if FromContext(ctx) != base {
		t.Error("expected the stored logger back")
	}
	if FromContext(context.Background()) == nil {
		t.Error("expected a nop logger for a bare context")
	}
}
