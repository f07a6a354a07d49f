// Package ratelimit implements a token-bucket limiter keyed by peer
// IP, with independent buckets per risk class (e.g. auth attempts vs.
// general traffic). It gives the flood-protection knobs the teacher's
// config declares but never wires up — FloodProtection,
// FastConnectionLimit, MaxConnectionPerIP — an actual mechanism to
// drive.
package ratelimit

import (
	"sync"
	"time"
)

// Class names one risk class's rate-limit policy (auth attempts,
// realm selects, and so on); each class gets its own bucket per peer.
type Class string

// Policy configures one Class: up to Count events are allowed inside
// a rolling Window.
type Policy struct {
	Count  int
	Window time.Duration
}

type bucketState struct {
	mu         sync.Mutex
	tokens     int
	windowEnds time.Time
}

// Limiter enforces one Policy per Class, independently per peer IP.
type Limiter struct {
	policies map[Class]Policy

	mu      sync.Mutex
	buckets map[Class]map[string]*bucketState

	now func() time.Time
}

// New creates a Limiter with the given per-class policies.
func New(policies map[Class]Policy) *Limiter {
	return &Limiter{
		policies: policies,
		buckets:  make(map[Class]map[string]*bucketState),
		now:      time.Now,
	}
}

// Allow reports whether one more event of the given class is
// permitted for peerIP right now, consuming a token if so. An unknown
// class always allows — a limiter is opt-in per class, not a default
// deny.
func (l *Limiter) Allow(class Class, peerIP string) bool {
	policy, ok := l.policies[class]
	if !ok {
		return true
	}

	b := l.bucketFor(class, peerIP)
	b.mu.Lock()
	defer b.mu.Unlock()

	now := l.now()
	if now.After(b.windowEnds) {
		b.tokens = policy.Count
		b.windowEnds = now.Add(policy.Window)
	}

	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

func (l *Limiter) bucketFor(class Class, peerIP string) *bucketState {
	l.mu.Lock()
	defer l.mu.Unlock()

	byPeer, ok := l.buckets[class]
	if !ok {
		byPeer = make(map[string]*bucketState)
		l.buckets[class] = byPeer
	}
	b, ok := byPeer[peerIP]
	if !ok {
		b = &bucketState{}
		byPeer[peerIP] = b
	}
	return b
}

// Forget drops a peer's bucket for a class, e.g. once a connection
// from that peer closes cleanly and its rate-limit history is no
// longer relevant.
func (l *Limiter) Forget(class Class, peerIP string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if byPeer, ok := l.buckets[class]; ok {
		delete(byPeer, peerIP)
	}
}
