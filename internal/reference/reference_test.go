package reference_test

import (
	"testing"

	"github.com/MrWong99/barkeep/internal/order"
	"github.com/MrWong99/barkeep/internal/reference"
)

func TestDetect(t *testing.T) {
	t.Parallel()
	tests := []struct {
		text     string
		wantType order.ReferenceType
		wantConf float64
		wantQty  int
	}{
		{"another 1", order.RefPrevious, 0.9, 1},
		{"give me another", order.RefPrevious, 0.9, 1},
		{"2 more", order.RefPrevious, 0.9, 2},
		{"same thing", order.RefPrevious, 0.85, 1},
		{"same again", order.RefPrevious, 0.85, 1},
		{"that again", order.RefPrevious, 0.85, 1},
		{"that 1", order.RefCurrent, 0.8, 1},
		{"this 1", order.RefCurrent, 0.8, 1},
		{"last 1", order.RefLast, 0.8, 1},
		{"it", order.RefCurrent, 0.8, 1},
	}
	for _, tt := range tests {
		m, ok := reference.Detect(tt.text)
		if !ok {
			t.Errorf("Detect(%q): no match", tt.text)
			continue
		}
		if m.Type != tt.wantType || m.Confidence != tt.wantConf || m.Quantity != tt.wantQty {
			t.Errorf("Detect(%q) = %+v, want type=%s conf=%.2f qty=%d", tt.text, m, tt.wantType, tt.wantConf, tt.wantQty)
		}
	}
}

func TestDetect_NoMatch(t *testing.T) {
	t.Parallel()
	for _, text := range []string{"2 mojitos", "anothermojito", "the same", "make it large"} {
		if m, ok := reference.Detect(text); ok {
			t.Errorf("Detect(%q) = %+v, want no match", text, m)
		}
	}
}

func TestIsReference(t *testing.T) {
	t.Parallel()
	if !reference.IsReference("same thing") {
		t.Error("same thing should be a reference")
	}
	if reference.IsReference("same thing with no ice") {
		t.Error("partial phrase should not count as a whole reference")
	}
}
