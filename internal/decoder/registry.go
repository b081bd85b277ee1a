// Package decoder maps arbitration IDs to frame decoders and routes incoming
// frames through them to a publisher.
package decoder

import (
	"fmt"
	"sort"

	"carhack/internal/frame"
	"carhack/internal/signal"
)

// DecodeFunc turns a frame whose payload length has already been checked
// into its signals, in publication order.
type DecodeFunc func(f frame.Frame) []signal.Signal

// Registration binds one arbitration ID to its decoder.
type Registration struct {
	ID      uint32
	Length  int      // exact payload length the decoder expects
	Signals []string // names emitted, in order
	Decode  DecodeFunc
}

// Registry is an immutable ID -> Registration table. Lookups are safe from
// any number of goroutines.
type Registry struct {
	byID map[uint32]Registration
}

// NewRegistry builds a registry. A repeated ID fails the whole construction;
// nothing is overwritten.
func NewRegistry(regs ...Registration) (*Registry, error) {
	byID := make(map[uint32]Registration, len(regs))
	for _, r := range regs {
		if r.Decode == nil {
			return nil, fmt.Errorf("%w: id 0x%03x has no decode function", ErrInvalidRegistration, r.ID)
		}
		if r.Length < 1 || r.Length > frame.MaxDataLength {
			return nil, fmt.Errorf("%w: id 0x%03x length %d", ErrInvalidRegistration, r.ID, r.Length)
		}
		if _, exists := byID[r.ID]; exists {
			return nil, &DuplicateRegistrationError{ID: r.ID}
		}
		byID[r.ID] = r
	}
	return &Registry{byID: byID}, nil
}

// MustRegistry is NewRegistry for static tables; it panics on error.
func MustRegistry(regs ...Registration) *Registry {
	r, err := NewRegistry(regs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the registration for id.
func (r *Registry) Lookup(id uint32) (Registration, bool) {
	reg, ok := r.byID[id]
	return reg, ok
}

// Match returns the registration that decodes f. Registrations are keyed
// on standard 11-bit IDs, so an extended frame never matches even when its
// 29-bit ID has the same value.
func (r *Registry) Match(f frame.Frame) (Registration, bool) {
	if f.Extended {
		return Registration{}, false
	}
	return r.Lookup(f.ID)
}

// Len returns the number of registered IDs.
func (r *Registry) Len() int { return len(r.byID) }

// Registrations returns all registrations sorted by ID.
func (r *Registry) Registrations() []Registration {
	out := make([]Registration, 0, len(r.byID))
	for _, reg := range r.byID {
		out = append(out, reg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Topic formats the subscribe-style topic for an ID, e.g. "canusb.can.002".
func Topic(source, bus string, id uint32) string {
	return fmt.Sprintf("%s.%s.%03x", source, bus, id)
}

// Topics returns the topic of every registered ID, sorted by ID.
func (r *Registry) Topics(source, bus string) []string {
	regs := r.Registrations()
	topics := make([]string, len(regs))
	for i, reg := range regs {
		topics[i] = Topic(source, bus, reg.ID)
	}
	return topics
}
