// Package secret holds sensitive strings in byte buffers that can be
// overwritten once they are no longer needed.
package secret

import "sync"

// String wraps a sensitive value. The zero value is empty and usable.
type String struct {
	lock sync.RWMutex
	buf  []byte
}

// New copies s into a new secret container.
func New(s string) *String {
	return &String{buf: []byte(s)}
}

// Set replaces the held value, zeroing the previous one first.
func (s *String) Set(v string) {
	s.lock.Lock()
	defer s.lock.Unlock()

	zero(s.buf)
	s.buf = []byte(v)
}

// Reveal returns a copy of the held value.
func (s *String) Reveal() string {
	if s == nil {
		return ""
	}
	s.lock.RLock()
	defer s.lock.RUnlock()

	return string(s.buf)
}

// IsEmpty returns whether nothing is held.
func (s *String) IsEmpty() bool {
	if s == nil {
		return true
	}
	s.lock.RLock()
	defer s.lock.RUnlock()

	return len(s.buf) == 0
}

// Equal compares the held value with v.
func (s *String) Equal(v string) bool {
	return !s.IsEmpty() && s.Reveal() == v
}

// Wipe zeroes and drops the held value.
func (s *String) Wipe() {
	if s == nil {
		return
	}
	s.lock.Lock()
	defer s.lock.Unlock()

	zero(s.buf)
	s.buf = nil
}

// Zero overwrites b in place.
func Zero(b []byte) {
	zero(b)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
