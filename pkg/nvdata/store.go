package nvdata

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/eipdev/eipdev-go/pkg/qos"
	"github.com/eipdev/eipdev-go/pkg/tcpip"
)

// RecordVersion is the current version of the record format.
const RecordVersion = 1

// File names inside the store directory.
const (
	QoSFile   = "qos.nv"
	TCPIPFile = "tcpip.nv"
)

// NV storage errors.
var (
	ErrCorrupt = errors.New("nv record corrupt")
	ErrVersion = errors.New("unsupported nv record version")
)

// Record is the on-disk envelope of one object's values.
type Record struct {
	Version int       `cbor:"1,keyasint"`
	SavedAt time.Time `cbor:"2,keyasint"`
	Payload []byte    `cbor:"3,keyasint"`
	Digest  []byte    `cbor:"4,keyasint"`
}

// Store reads and writes NV records in a directory. It is safe for
// concurrent use.
type Store struct {
	mu  sync.Mutex
	dir string
	now func() time.Time
}

// NewStore creates a store rooted at dir. The directory is created on the
// first save.
func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// SaveQoS persists QoS values.
func (s *Store) SaveQoS(v qos.Values) error {
	return s.save(QoSFile, v)
}

// LoadQoS returns the persisted QoS values. found is false if nothing was
// saved yet.
func (s *Store) LoadQoS() (v qos.Values, found bool, err error) {
	found, err = s.load(QoSFile, &v)
	return v, found, err
}

// SaveTCPIP persists TCP/IP Interface values.
func (s *Store) SaveTCPIP(v tcpip.Values) error {
	return s.save(TCPIPFile, v)
}

// LoadTCPIP returns the persisted TCP/IP Interface values.
func (s *Store) LoadTCPIP() (v tcpip.Values, found bool, err error) {
	found, err = s.load(TCPIPFile, &v)
	return v, found, err
}

// Clear removes all records.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range []string{QoSFile, TCPIPFile} {
		err := os.Remove(filepath.Join(s.dir, name))
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func (s *Store) save(name string, v any) error {
	payload, err := cbor.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	digest := blake2b.Sum256(payload)

	data, err := cbor.Marshal(Record{
		Version: RecordVersion,
		SavedAt: s.now().UTC(),
		Payload: payload,
		Digest:  digest[:],
	})
	if err != nil {
		return fmt.Errorf("encode %s record: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *Store) load(name string, v any) (bool, error) {
	s.mu.Lock()
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	s.mu.Unlock()
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var rec Record
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}
	if rec.Version != RecordVersion {
		return false, fmt.Errorf("%w: %s has version %d", ErrVersion, name, rec.Version)
	}
	digest := blake2b.Sum256(rec.Payload)
	if !bytes.Equal(digest[:], rec.Digest) {
		return false, fmt.Errorf("%w: %s digest mismatch", ErrCorrupt, name)
	}
	if err := cbor.Unmarshal(rec.Payload, v); err != nil {
		return false, fmt.Errorf("%w: %s payload: %v", ErrCorrupt, name, err)
	}
	return true, nil
}
