package log

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// FileLogger appends trace records to an .eiplog file.
//
// Each event is encoded in full before it is written, so a failed encode
// never leaves a partial record behind. Failures do not stop tracing; they
// are counted and the first one is kept for Err and Close.
//
// FileLogger is safe for concurrent use.
type FileLogger struct {
	mu      sync.Mutex
	file    *os.File
	header  Header
	written int
	failed  int
	err     error
	closed  bool
}

// NewFileLogger opens path for appending. A new or empty file gets a header
// record first; an existing file must already start with one.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	h, err := prepare(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &FileLogger{file: f, header: h}, nil
}

func prepare(f *os.File) (Header, error) {
	info, err := f.Stat()
	if err != nil {
		return Header{}, err
	}
	if info.Size() == 0 {
		h := newHeader(time.Now())
		return h, writeHeader(f, h)
	}
	return readHeader(traceDec.NewDecoder(f))
}

// Log appends event. Events logged after Close are ignored.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	if err := l.append(event); err != nil {
		l.failed++
		if l.err == nil {
			l.err = err
		}
		return
	}
	l.written++
}

func (l *FileLogger) append(event Event) error {
	rec, err := EncodeEvent(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Category, err)
	}
	if _, err := l.file.Write(rec); err != nil {
		return fmt.Errorf("write %s event: %w", event.Category, err)
	}
	return nil
}

// Count returns the number of events written since the logger was opened.
func (l *FileLogger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.written
}

// Failed returns the number of events that could not be written.
func (l *FileLogger) Failed() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failed
}

// Err returns the first write failure, or nil.
func (l *FileLogger) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Header returns the header of the file. For an appended file this is the
// header written when the file was created.
func (l *FileLogger) Header() Header {
	return l.header
}

// Path returns the name of the trace file.
func (l *FileLogger) Path() string {
	return l.file.Name()
}

// Close closes the file. It reports the first write failure, if any events
// were lost. Further calls return nil.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	if err := l.file.Close(); err != nil {
		return err
	}
	if l.err != nil {
		return fmt.Errorf("%d trace events lost: %w", l.failed, l.err)
	}
	return nil
}

var _ Logger = (*FileLogger)(nil)
