package ratelimit

import (
	"testing"
	"time"
)

const classAuth Class = "auth"

func TestAllowExactCountThenDenies(t *testing.T) {
	l := New(map[Class]Policy{classAuth: {Count: 5, Window: 60 * time.Second}})

	base := time.Unix(1000, 0)
	l.now = func() time.Time { return base }

	for i := 0; i < 5; i++ {
		if !l.Allow(classAuth, "10.0.0.1") {
			t.Fatalf("attempt %d unexpectedly denied", i)
		}
	}
	if l.Allow(classAuth, "10.0.0.1") {
		t.Fatal("6th attempt within the window should be denied")
	}
}

func TestAllowResetsAfterWindow(t *testing.T) {
	l := New(map[Class]Policy{classAuth: {Count: 1, Window: time.Second}})

	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }

	if !l.Allow(classAuth, "10.0.0.1") {
		t.Fatal("first attempt should be allowed")
	}
	if l.Allow(classAuth, "10.0.0.1") {
		t.Fatal("second attempt within the window should be denied")
	}

	now = now.Add(2 * time.Second)
	if !l.Allow(classAuth, "10.0.0.1") {
		t.Fatal("attempt after window rollover should be allowed")
	}
}

func TestAllowIsPerPeer(t *testing.T) {
	l := New(map[Class]Policy{classAuth: {Count: 1, Window: time.Minute}})
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }

	if !l.Allow(classAuth, "10.0.0.1") {
		t.Fatal("first peer's first attempt should be allowed")
	}
	if !l.Allow(classAuth, "10.0.0.2") {
		t.Fatal("second peer has its own independent bucket")
	}
}

func TestAllowUnknownClassAlwaysAllows(t *testing.T) {
	l := New(map[Class]Policy{})
	for i := 0; i < 100; i++ {
		if !l.Allow(Class("unconfigured"), "10.0.0.1") {
			t.Fatal("unconfigured class should never deny")
		}
	}
}
