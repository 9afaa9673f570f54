package rangestreams

import (
	"errors"
	"testing"
)

func TestIntervalLength(t *testing.T) {
	iv := NewInterval(5, 12)
	if got := iv.Length(); got != 7 {
		t.Errorf("Length() = %d, want 7", got)
	}
}

func TestIntervalIsEmpty(t *testing.T) {
	if !NewInterval(5, 5).IsEmpty() {
		t.Error("expected [5,5) to be empty")
	}
	if NewInterval(5, 6).IsEmpty() {
		t.Error("expected [5,6) to be non-empty")
	}
}

func TestIntervalTermini(t *testing.T) {
	start, end, err := NewInterval(0, 11).Termini()
	if err != nil {
		t.Fatalf("Termini() error = %v", err)
	}
	if start != 0 || end != 10 {
		t.Errorf("Termini() = (%d,%d), want (0,10)", start, end)
	}

	if _, _, err := NewInterval(3, 3).Termini(); err != ErrEmptyInterval {
		t.Errorf("Termini() on empty interval error = %v, want ErrEmptyInterval", err)
	}
}

func TestIntervalContains(t *testing.T) {
	iv := NewInterval(10, 20)
	cases := []struct {
		pos  int64
		want bool
	}{
		{9, false}, {10, true}, {15, true}, {19, true}, {20, false},
	}
	for _, c := range cases {
		if got := iv.Contains(c.pos); got != c.want {
			t.Errorf("Contains(%d) = %v, want %v", c.pos, got, c.want)
		}
	}
}

func TestIntervalIntersects(t *testing.T) {
	cases := []struct {
		a, b Interval
		want bool
	}{
		{NewInterval(0, 5), NewInterval(5, 10), false},
		{NewInterval(0, 5), NewInterval(4, 10), true},
		{NewInterval(0, 10), NewInterval(3, 6), true},
		{NewInterval(0, 0), NewInterval(0, 5), false},
	}
	for _, c := range cases {
		if got := c.a.Intersects(c.b); got != c.want {
			t.Errorf("%s.Intersects(%s) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestIntervalValidate(t *testing.T) {
	if err := NewInterval(5, 3).Validate(false, 0); err == nil {
		t.Error("expected error for start>stop")
	}
	if err := NewInterval(-1, 3).Validate(false, 0); err == nil {
		t.Error("expected error for negative endpoint")
	}
	if err := NewInterval(0, 20).Validate(true, 10); err == nil {
		t.Error("expected OutOfRange error")
	}
	if err := NewInterval(0, 10).Validate(true, 10); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestIntervalSpan(t *testing.T) {
	got := NewInterval(3, 5).Span(NewInterval(1, 4))
	want := NewInterval(1, 5)
	if got != want {
		t.Errorf("Span() = %s, want %s", got, want)
	}
}

func TestSpanAll(t *testing.T) {
	ivs := []Interval{NewInterval(4, 6), NewInterval(0, 2), NewInterval(10, 12)}
	got := SpanAll(ivs)
	want := NewInterval(0, 12)
	if got != want {
		t.Errorf("SpanAll() = %s, want %s", got, want)
	}
}

func TestResolveEndRelative(t *testing.T) {
	if _, err := ResolveEndRelative(-22, 0, false, 0); !errors.Is(err, ErrLengthUnknown) {
		t.Errorf("expected ErrLengthUnknown, got %v", err)
	}

	got, err := ResolveEndRelative(-22, 100, true, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := NewInterval(78, 100); got != want {
		t.Errorf("ResolveEndRelative() = %s, want %s", got, want)
	}
}
