package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterExhaustsBurst(t *testing.T) {
	l := New(10, 5)

	for i := 0; i < 5; i++ {
		if !l.Allow() {
			t.Fatalf("Expected token %d to be available", i)
		}
	}
	if l.Allow() {
		t.Error("Expected the burst to be exhausted")
	}
}

func TestLimiterRefills(t *testing.T) {
	l := New(100, 1)

	if !l.Allow() {
		t.Fatal("Expected the initial token")
	}
	if l.Allow() {
		t.Fatal("Expected the bucket to be empty")
	}

	time.Sleep(50 * time.Millisecond)

	if !l.Allow() {
		t.Error("Expected the bucket to refill")
	}
}
