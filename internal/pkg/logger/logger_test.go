package logger

import "testing"

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"test", "development", "production", ""} {
		log, err := New(mode)
		if err != nil {
			t.Fatalf("New(%q): %v", mode, err)
		}
		if log == nil || log.SugaredLogger == nil {
			t.Fatalf("New(%q): nil logger", mode)
		}
		child := log.With("component", "test")
		child.Info("hello", "mode", mode)
	}
}
