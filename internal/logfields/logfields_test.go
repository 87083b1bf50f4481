package logfields

import (
	"errors"
	"testing"
)

func TestHelpers(t *testing.T) {
	if a := File("intro.md"); a.Key != KeyFile || a.Value.String() != "intro.md" {
		t.Errorf("unexpected attr %v", a)
	}
	if a := Pages(3); a.Value.Int64() != 3 {
		t.Errorf("expected 3 pages, got %v", a.Value)
	}
	if a := Error(nil); a.Value.String() != "" {
		t.Errorf("expected empty error value, got %q", a.Value.String())
	}
	if a := Error(errors.New("boom")); a.Value.String() != "boom" {
		t.Errorf("expected boom, got %q", a.Value.String())
	}
}
