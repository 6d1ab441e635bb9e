package trackers

import "testing"

func TestCollectionActiveTrackers(t *testing.T) {
	c := NewCollection()
	c.Start(WheelScroll)
	c.Start(RAF)
	c.Start(RAF)
	c.Stop(RAF)

	a := c.ActiveTrackers()
	if !a.Has(WheelScroll) || !a.Has(RAF) {
		t.Fatalf("Expected WheelScroll|RAF active, got %s", a)
	}
	if got := a.String(); got != "RAF|WheelScroll" {
		t.Errorf("Expected \"RAF|WheelScroll\", got %q", got)
	}
	if got := c.SmoothThread(); got != SmoothBoth {
		t.Errorf("Expected SmoothBoth, got %s", got)
	}

	c.Stop(RAF)
	c.Stop(RAF) // extra stop ignored
	if c.ActiveTrackers().Has(RAF) {
		t.Error("Expected RAF inactive after balanced Stop")
	}
	if got := c.SmoothThread(); got != SmoothCompositor {
		t.Errorf("Expected SmoothCompositor, got %s", got)
	}
}

func TestTypeNames(t *testing.T) {
	tests := []struct {
		typ      Type
		expected string
	}{
		{CompositorAnimation, "CompositorAnimation"},
		{SETMainThreadAnimation, "SETMainThreadAnimation"},
		{MaxType, ""},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.expected {
			t.Errorf("Type(%d).String() = %q, want %q", tt.typ, got, tt.expected)
		}
	}
	if typ, ok := ParseType("PinchZoom"); !ok || typ != PinchZoom {
		t.Errorf("ParseType(PinchZoom) = %v, %v", typ, ok)
	}
}
