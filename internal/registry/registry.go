// Package registry implements the process-wide concurrent session
// index. Three independent views — by account id, by entity handle,
// and by (zone, instance) — let services find a live session without
// threading a reference through every call site.
//
// The account and entity views are sync.Maps, a shape adapted from the
// teacher's internal/login/session_manager.go SessionManager; the zone
// view is a plain map of member sets guarded by a mutex. Zone
// broadcast fan-out (Broadcast) uses golang.org/x/sync/errgroup to
// deliver to every target concurrently rather than one at a time.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ionforge/wildcore/internal/session"
)

// zoneKey identifies one (zone, instance) bucket.
type zoneKey struct {
	zone     uint32
	instance uint32
}

// Registry is the process-wide session index. One instance is shared
// by a service's connection handlers.
type Registry struct {
	byAccount sync.Map // map[string]*session.Session
	byEntity  sync.Map // map[session.EntityHandle]*session.Session

	mu     sync.Mutex
	byZone map[zoneKey]map[*session.Session]struct{}
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		byZone: make(map[zoneKey]map[*session.Session]struct{}),
	}
}

// RegisterAccount indexes s under its account id, evicting whatever
// session previously held that account — per-account sessions are
// exclusive, so a second login for the same account displaces the
// first (last-writer-wins, matching ticket invalidation semantics).
// The evicted session's connection is explicitly closed (spec.md
// §4.10: "evicts the earlier entry after closing it"), so a displaced
// socket never lingers open and undetectable.
func (r *Registry) RegisterAccount(accountID string, s *session.Session) {
	if prev, ok := r.byAccount.Swap(accountID, s); ok {
		if old := prev.(*session.Session); old != s {
			if err := old.Close(); err != nil {
				slog.Warn("closing evicted session failed", "account", accountID, "err", err)
			}
		}
	}
}

// LookupAccount finds the live session for an account id, if any.
func (r *Registry) LookupAccount(accountID string) (*session.Session, bool) {
	v, ok := r.byAccount.Load(accountID)
	if !ok {
		return nil, false
	}
	return v.(*session.Session), true
}

// UnregisterAccount removes an account's session from the index.
// Callers should only ever remove their own current session: calling
// this after a newer session has already displaced the old one would
// incorrectly evict the newer one, so callers compare the stored value
// before deleting.
func (r *Registry) UnregisterAccount(accountID string, s *session.Session) {
	if v, ok := r.byAccount.Load(accountID); ok && v.(*session.Session) == s {
		r.byAccount.Delete(accountID)
	}
}

// RegisterEntity indexes s under its world entity handle.
func (r *Registry) RegisterEntity(h session.EntityHandle, s *session.Session) {
	r.byEntity.Store(h, s)
}

// LookupEntity finds the session owning a given entity handle.
func (r *Registry) LookupEntity(h session.EntityHandle) (*session.Session, bool) {
	v, ok := r.byEntity.Load(h)
	if !ok {
		return nil, false
	}
	return v.(*session.Session), true
}

// UnregisterEntity removes an entity handle from the index, on
// logout or entity despawn.
func (r *Registry) UnregisterEntity(h session.EntityHandle) {
	r.byEntity.Delete(h)
}

// EnterZone adds s to the (zone, instance) bucket's membership set, for
// fan-out broadcasts to everyone sharing that zone/instance.
func (r *Registry) EnterZone(zone, instance uint32, s *session.Session) {
	k := zoneKey{zone: zone, instance: instance}
	r.mu.Lock()
	defer r.mu.Unlock()
	bucket, ok := r.byZone[k]
	if !ok {
		bucket = make(map[*session.Session]struct{})
		r.byZone[k] = bucket
	}
	bucket[s] = struct{}{}
}

// LeaveZone removes s from a (zone, instance) bucket.
func (r *Registry) LeaveZone(zone, instance uint32, s *session.Session) {
	k := zoneKey{zone: zone, instance: instance}
	r.mu.Lock()
	defer r.mu.Unlock()
	bucket, ok := r.byZone[k]
	if !ok {
		return
	}
	delete(bucket, s)
	if len(bucket) == 0 {
		delete(r.byZone, k)
	}
}

// ZoneMembers returns a snapshot of every session currently in a
// (zone, instance) bucket, safe to range over after the lock is
// released — membership may change concurrently but the snapshot
// itself never mutates.
func (r *Registry) ZoneMembers(zone, instance uint32) []*session.Session {
	k := zoneKey{zone: zone, instance: instance}
	r.mu.Lock()
	defer r.mu.Unlock()
	bucket, ok := r.byZone[k]
	if !ok {
		return nil
	}
	out := make([]*session.Session, 0, len(bucket))
	for s := range bucket {
		out = append(out, s)
	}
	return out
}

// UpdateZone moves the account's live session into a new (zone,
// instance) bucket, removing it from whatever bucket it previously
// occupied — spec.md §4.10's named `update_zone(account_id, zone,
// instance)` operation, addressed by account id rather than requiring
// the caller to already hold the *session.Session.
func (r *Registry) UpdateZone(accountID string, zone, instance uint32) bool {
	s, ok := r.LookupAccount(accountID)
	if !ok {
		return false
	}
	oldZone, oldInstance := s.Zone()
	r.LeaveZone(oldZone, oldInstance, s)
	s.SetZone(zone, instance)
	r.EnterZone(zone, instance, s)
	return true
}

// SetEntityHandle assigns h as the account's live session's entity
// handle and indexes it in the by-entity view — spec.md §4.10's named
// `set_entity_handle(account_id, handle)` operation.
func (r *Registry) SetEntityHandle(accountID string, h session.EntityHandle) bool {
	s, ok := r.LookupAccount(accountID)
	if !ok {
		return false
	}
	s.SetEntity(h)
	r.RegisterEntity(h, s)
	return true
}

// NearbyInZone returns the subset of a (zone, instance) bucket's
// members within radius of (x, y, z) — spec.md §4.10's named
// `nearby_in_zone(zone, instance, position, radius)` operation.
func (r *Registry) NearbyInZone(zone, instance uint32, x, y, z, radius float32) []*session.Session {
	members := r.ZoneMembers(zone, instance)
	r2 := radius * radius
	out := make([]*session.Session, 0, len(members))
	for _, m := range members {
		mx, my, mz := m.Position()
		dx, dy, dz := mx-x, my-y, mz-z
		if dx*dx+dy*dy+dz*dz <= r2 {
			out = append(out, m)
		}
	}
	return out
}

// Broadcast fans a typed message out to every target session's own
// inbox concurrently (spec.md §5: cross-connection effects are
// delivered by "looking up target session pids through the registry
// and sending them a typed message, which their task consumes in FIFO
// order"). Delivery itself never blocks (session.Session.Deliver), but
// fanning the attempts out through an errgroup means one target whose
// inbox is momentarily being drained doesn't serialize behind the
// others, and a full inbox is reported rather than silently dropped.
func (r *Registry) Broadcast(ctx context.Context, targets []*session.Session, msg session.OutboundMessage) error {
	g, _ := errgroup.WithContext(ctx)
	for _, t := range targets {
		t := t
		g.Go(func() error {
			if !t.Deliver(msg) {
				return fmt.Errorf("registry: inbox full, dropped broadcast opcode 0x%02X", msg.Opcode)
			}
			return nil
		})
	}
	return g.Wait()
}

// AccountCount returns the number of sessions currently indexed by
// account, for metrics/diagnostics.
func (r *Registry) AccountCount() int {
	n := 0
	r.byAccount.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
