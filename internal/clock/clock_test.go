package clock

import (
	"testing"
	"time"
)

func TestFake_AdvanceMovesBothReadings(t *testing.T) {
	f := NewFake(1_000_000)
	if f.NowMicros() != 1_000_000 {
		t.Fatalf("expected initial now=1_000_000, got %d", f.NowMicros())
	}
	if f.MonotonicMicros() != 0 {
		t.Fatalf("expected initial mono=0, got %d", f.MonotonicMicros())
	}

	f.Advance(2 * time.Second)
	if f.NowMicros() != 3_000_000 {
		t.Fatalf("expected now=3_000_000 after advancing 2s, got %d", f.NowMicros())
	}
	if f.MonotonicMicros() != 2_000_000 {
		t.Fatalf("expected mono=2_000_000 after advancing 2s, got %d", f.MonotonicMicros())
	}
}

func TestFake_SetPinsWallClockOnly(t *testing.T) {
	f := NewFake(0)
	f.Advance(time.Second)
	f.Set(5_000_000)

	if f.NowMicros() != 5_000_000 {
		t.Fatalf("expected now=5_000_000 after Set, got %d", f.NowMicros())
	}
	if f.MonotonicMicros() != 1_000_000 {
		t.Fatalf("expected mono unaffected by Set, got %d", f.MonotonicMicros())
	}
}

func TestReal_MonotonicIsNonDecreasing(t *testing.T) {
	r := NewReal()
	a := r.MonotonicMicros()
	time.Sleep(time.Millisecond)
	b := r.MonotonicMicros()
	if b < a {
		t.Fatalf("expected monotonic reading to be non-decreasing, got %d then %d", a, b)
	}
}
