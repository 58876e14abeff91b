// Package idalloc issues collision-free sequential entity identifiers.
//
// IDs have the form "<kind>-<n>". The allocator tracks the highest sequence
// number seen per kind, across both persisted data (adopted via Reserve) and
// in-session allocations, so two entities created in the same session can
// never collide even when they live under different owners.
package idalloc

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// Entity kinds the allocator knows about.
const (
	KindType    = "type"
	KindStatus  = "status"
	KindColor   = "color"
	KindProject = "project"
	KindFloor   = "floor"
	KindRegion  = "region"
)

// legacyHashPattern matches the old hash-style suffixes ("type-x7f3k9q2m5d8")
// that predate sequential allocation: a long run of random alphanumerics
// containing at least one letter.
var legacyHashPattern = regexp.MustCompile(`^[a-z0-9]{8,}$`)

// Allocator hands out sequential IDs per entity kind.
type Allocator struct {
	mu  sync.Mutex
	max map[string]int
}

// New creates an empty allocator.
func New() *Allocator {
	return &Allocator{max: make(map[string]int)}
}

// Next allocates the next free ID for kind: one past the highest sequence
// number observed so far.
func (a *Allocator) Next(kind string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.max[kind]++
	return fmt.Sprintf("%s-%d", kind, a.max[kind])
}

// Reserve adopts an existing ID so future allocations cannot collide with it.
// Both the current "<kind>-<n>" form and the legacy "new-<kind>-<n>" form are
// recognized; anything else is ignored.
func (a *Allocator) Reserve(id string) {
	kind, n, ok := parseSequential(id)
	if !ok {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if n > a.max[kind] {
		a.max[kind] = n
	}
}

// SeedNext raises the floor for kind so that the next allocation is at least
// "<kind>-<next>". Used with the persisted bootstrap hint; reserved IDs above
// the hint still win.
func (a *Allocator) SeedNext(kind string, next int) {
	if next < 1 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if next-1 > a.max[kind] {
		a.max[kind] = next - 1
	}
}

// NextSequence returns the sequence number the next allocation for kind would
// use, without allocating it.
func (a *Allocator) NextSequence(kind string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.max[kind] + 1
}

// IsLegacyHashID reports whether id carries an old hash-style suffix for the
// given kind instead of a sequence number. Such IDs are migrated to
// sequential form by the schema repair layer.
func IsLegacyHashID(kind, id string) bool {
	suffix, ok := strings.CutPrefix(id, kind+"-")
	if !ok {
		return false
	}
	if _, err := strconv.Atoi(suffix); err == nil {
		return false
	}
	return legacyHashPattern.MatchString(suffix) && strings.ContainsAny(suffix, "abcdefghijklmnopqrstuvwxyz")
}

func parseSequential(id string) (kind string, n int, ok bool) {
	trimmed := strings.TrimPrefix(id, "new-")
	i := strings.LastIndexByte(trimmed, '-')
	if i <= 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(trimmed[i+1:])
	if err != nil || n < 0 {
		return "", 0, false
	}
	return trimmed[:i], n, true
}
