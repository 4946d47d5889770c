// Package snapshot persists point-in-time copies of simulation contexts and
// restores them by reference.
package snapshot

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrNotFound is returned when a reference resolves to no stored snapshot.
var ErrNotFound = errors.New("snapshot: not found")

// refPrefix namespaces snapshot references.
const refPrefix = "snap-"

// Ref is an opaque, globally unique snapshot reference. The token embeds a
// ULID (millisecond timestamp plus random entropy), so references are
// orderable by construction rather than by accident of encoding.
type Ref string

// String returns the reference token.
func (r Ref) String() string { return string(r) }

// Time returns the embedded creation time.
func (r Ref) Time() (time.Time, error) {
	id, err := r.ulid()
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(id.Time()), nil
}

// Compare orders two references by creation: negative if r was created
// before o, zero if equal, positive if after. Malformed references sort
// last so corrupt tokens surface at the end of listings, not silently in
// the middle.
func (r Ref) Compare(o Ref) int {
	a, errA := r.ulid()
	b, errB := o.ulid()
	switch {
	case errA != nil && errB != nil:
		return strings.Compare(string(r), string(o))
	case errA != nil:
		return 1
	case errB != nil:
		return -1
	}
	return a.Compare(b)
}

func (r Ref) ulid() (ulid.ULID, error) {
	s, ok := strings.CutPrefix(string(r), refPrefix)
	if !ok {
		return ulid.ULID{}, fmt.Errorf("snapshot: reference %q lacks %q prefix", r, refPrefix)
	}
	return ulid.Parse(s)
}

// ParseRef validates a reference token.
func ParseRef(s string) (Ref, error) {
	r := Ref(s)
	if _, err := r.ulid(); err != nil {
		return "", err
	}
	return r, nil
}

// refGenerator issues monotonically ordered references. Monotonic entropy
// keeps same-millisecond references ordered within one process; the store's
// uniqueness constraint covers collisions across processes.
type refGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func newRefGenerator() *refGenerator {
	return &refGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Next issues a fresh reference for the given creation time.
func (g *refGenerator) Next(t time.Time) (Ref, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(t), g.entropy)
	if err != nil {
		return "", fmt.Errorf("snapshot: generate reference: %w", err)
	}
	return Ref(refPrefix + id.String()), nil
}
