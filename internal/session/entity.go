// Package session holds everything tracked for one live connection:
// its protocol stage machine, its ticket, and entity handle allocation
// once it has entered the world.
package session

import (
	"sync/atomic"

	"github.com/ionforge/wildcore/internal/constants"
)

// EntityType tags the high bits of an EntityHandle.
type EntityType uint8

const (
	EntityPlayer EntityType = iota + 1
	EntityNPC
	EntityGameObject
)

// EntityHandle is a 64-bit opaque identifier: the type tag occupies
// the high 8 bits, a monotonic counter the low 56. Handles are never
// reused for the lifetime of the process.
type EntityHandle uint64

// Type extracts the type tag from a handle.
func (h EntityHandle) Type() EntityType {
	return EntityType(h >> constants.EntityTypeShift)
}

// Counter extracts the monotonic counter portion of a handle.
func (h EntityHandle) Counter() uint64 {
	return uint64(h) & constants.EntityCounterMask
}

// EntityAllocator issues EntityHandles. One allocator is shared across
// a world service instance; it never reuses a counter value, so a
// handle remains a stable, non-aliasing identity even after the entity
// it named is gone.
type EntityAllocator struct {
	counter atomic.Uint64
}

// NewEntityAllocator creates an allocator starting its counter at 1 (0
// is reserved to mean "no entity").
func NewEntityAllocator() *EntityAllocator {
	a := &EntityAllocator{}
	a.counter.Store(0)
	return a
}

// Allocate returns the next handle of the given type.
func (a *EntityAllocator) Allocate(t EntityType) EntityHandle {
	n := a.counter.Add(1)
	return EntityHandle(uint64(t)<<constants.EntityTypeShift | (n & constants.EntityCounterMask))
}
