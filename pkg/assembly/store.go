package assembly

import (
	"errors"
	"fmt"
	"sort"
)

// Assembly errors.
var (
	ErrDuplicateID   = errors.New("duplicate assembly instance id")
	ErrSizeMismatch  = errors.New("assembly size mismatch")
	ErrUnknownID     = errors.New("unknown assembly instance id")
	ErrBufferAliased = errors.New("assembly buffer already owned by another instance")
	ErrInvalidSize   = errors.New("invalid assembly size")
)

// Store owns the data buffers of all assembly instances.
type Store struct {
	buffers map[uint16][]byte
}

// NewStore creates an empty buffer store.
func NewStore() *Store {
	return &Store{buffers: make(map[uint16][]byte)}
}

// Allocate creates a zeroed buffer of size bytes for id.
// A size of 0 records the id with a nil buffer (heartbeat assemblies).
func (s *Store) Allocate(id uint16, size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	if _, exists := s.buffers[id]; exists {
		return nil, fmt.Errorf("%w: %d", ErrDuplicateID, id)
	}

	var buf []byte
	if size > 0 {
		buf = make([]byte, size)
	}
	s.buffers[id] = buf
	return buf, nil
}

// Buffer returns the owned buffer for id. The returned slice aliases the
// store's memory; writes through it are visible to every holder.
func (s *Store) Buffer(id uint16) ([]byte, bool) {
	buf, ok := s.buffers[id]
	return buf, ok
}

// Size returns the buffer size of id, or -1 if id is unknown.
func (s *Store) Size(id uint16) int {
	buf, ok := s.buffers[id]
	if !ok {
		return -1
	}
	return len(buf)
}

// Read returns a copy of the buffer contents of id.
func (s *Store) Read(id uint16) ([]byte, error) {
	buf, ok := s.buffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownID, id)
	}
	out := make([]byte, len(buf))
	copy(out, buf)
	return out, nil
}

// Write replaces the contents of id. data must be exactly the buffer size.
func (s *Store) Write(id uint16, data []byte) error {
	buf, ok := s.buffers[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownID, id)
	}
	if len(data) != len(buf) {
		return fmt.Errorf("%w: instance %d holds %d bytes, got %d", ErrSizeMismatch, id, len(buf), len(data))
	}
	copy(buf, data)
	return nil
}

// Copy copies the full contents of src into dst. Both buffers must have the
// same size.
func (s *Store) Copy(dst, src uint16) error {
	d, ok := s.buffers[dst]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownID, dst)
	}
	sb, ok := s.buffers[src]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownID, src)
	}
	if len(d) != len(sb) {
		return fmt.Errorf("%w: copy %d (%d bytes) into %d (%d bytes)", ErrSizeMismatch, src, len(sb), dst, len(d))
	}
	copy(d, sb)
	return nil
}

// Fill sets every byte of id to b.
func (s *Store) Fill(id uint16, b byte) error {
	buf, ok := s.buffers[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownID, id)
	}
	for i := range buf {
		buf[i] = b
	}
	return nil
}

// IDs returns all allocated ids in ascending order.
func (s *Store) IDs() []uint16 {
	ids := make([]uint16, 0, len(s.buffers))
	for id := range s.buffers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
