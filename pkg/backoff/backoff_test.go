package backoff

import (
	"testing"
	"time"
)

func TestForAttempt(t *testing.T) {
	tests := []struct {
		name    string
		base    time.Duration
		max     time.Duration
		attempt int
		want    time.Duration
	}{
		{name: "first attempt waits base", base: time.Second, max: 30 * time.Second, attempt: 1, want: time.Second},
		{name: "second attempt doubles", base: time.Second, max: 30 * time.Second, attempt: 2, want: 2 * time.Second},
		{name: "third attempt doubles again", base: time.Second, max: 30 * time.Second, attempt: 3, want: 4 * time.Second},
		{name: "delay is capped at max", base: time.Second, max: 5 * time.Second, attempt: 10, want: 5 * time.Second},
		{name: "attempt below one is clamped", base: time.Second, max: 30 * time.Second, attempt: 0, want: time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(tt.base, tt.max)
			if got := b.ForAttempt(tt.attempt); got != tt.want {
				t.Errorf("ForAttempt(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestNextFollowsSchedule(t *testing.T) {
	b := New(100*time.Millisecond, time.Second)

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Fatalf("Next() call %d = %v, want %v", i+1, got, w)
		}
	}

	b.Reset()
	if got := b.Next(); got != 100*time.Millisecond {
		t.Errorf("Next() after Reset() = %v, want %v", got, 100*time.Millisecond)
	}
}

func TestNewNormalizesArguments(t *testing.T) {
	b := New(0, 0)
	if got := b.ForAttempt(1); got != time.Second {
		t.Errorf("ForAttempt(1) with zero base = %v, want %v", got, time.Second)
	}

	b = New(2*time.Second, time.Second)
	if got := b.ForAttempt(1); got != 2*time.Second {
		t.Errorf("ForAttempt(1) with max < base = %v, want %v", got, 2*time.Second)
	}
}
