package log

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func createTestLogFile(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.eiplog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create test log: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()
	return path
}

func TestReaderFilters(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []Event{
		{Timestamp: base, ConnectionID: "a", Direction: DirectionIn, Layer: LayerIO, Category: CategoryData, AssemblyID: 150},
		{Timestamp: base.Add(time.Second), ConnectionID: "a", Direction: DirectionOut, Layer: LayerIO, Category: CategoryData, AssemblyID: 100},
		{Timestamp: base.Add(2 * time.Second), ConnectionID: "b", Direction: DirectionIn, Layer: LayerApplication, Category: CategoryConnection},
		{Timestamp: base.Add(3 * time.Second), Direction: DirectionIn, Layer: LayerExplicit, Category: CategoryAttribute, AssemblyID: 151},
	}
	path := createTestLogFile(t, events)

	out := DirectionOut
	explicit := LayerExplicit
	conn := CategoryConnection
	asm := uint16(150)
	start := base.Add(time.Second)
	end := base.Add(3 * time.Second)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 4},
		{"connection id", Filter{ConnectionID: "a"}, 2},
		{"direction", Filter{Direction: &out}, 1},
		{"layer", Filter{Layer: &explicit}, 1},
		{"category", Filter{Category: &conn}, 1},
		{"assembly", Filter{AssemblyID: &asm}, 1},
		{"time window", Filter{TimeStart: &start, TimeEnd: &end}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader, err := NewFilteredReader(path, tt.filter)
			if err != nil {
				t.Fatalf("NewFilteredReader failed: %v", err)
			}
			defer reader.Close()

			got, err := reader.ReadAll()
			if err != nil {
				t.Fatalf("ReadAll failed: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d events, want %d", len(got), tt.want)
			}
		})
	}
}

func TestReaderMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "missing.eiplog")); err == nil {
		t.Error("NewReader on missing file succeeded")
	}
}

func TestReaderRejectsHeaderlessFile(t *testing.T) {
	rec, err := EncodeEvent(Event{Timestamp: time.Now(), Category: CategoryData})
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "bare.eiplog")
	if err := os.WriteFile(path, rec, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewReader(path); !errors.Is(err, ErrNotTraceFile) {
		t.Errorf("NewReader(headerless) = %v, want ErrNotTraceFile", err)
	}
}

func TestReaderRejectsEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.eiplog")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewReader(path); !errors.Is(err, ErrNotTraceFile) {
		t.Errorf("NewReader(empty) = %v, want ErrNotTraceFile", err)
	}
}

func TestReaderRejectsNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.eiplog")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	h := newHeader(time.Now())
	h.Version = FormatVersion + 1
	if err := writeHeader(f, h); err != nil {
		t.Fatalf("writeHeader failed: %v", err)
	}
	f.Close()

	if _, err := NewReader(path); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("NewReader(v%d) = %v, want ErrUnsupportedVersion", h.Version, err)
	}
}

func TestReaderTruncatedRecord(t *testing.T) {
	path := createTestLogFile(t, []Event{
		{Timestamp: time.Now(), Category: CategoryData, AssemblyID: 150, Data: NewDataEvent([]byte{1, 2, 3, 4})},
	})
	rec, err := EncodeEvent(Event{Timestamp: time.Now(), Category: CategoryData, AssemblyID: 100, Data: NewDataEvent(make([]byte, 32))})
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	f.Write(rec[:len(rec)/2])
	f.Close()

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	first, err := reader.Next()
	if err != nil || first.AssemblyID != 150 {
		t.Fatalf("first Next = %+v, %v", first, err)
	}
	if _, err := reader.Next(); !errors.Is(err, ErrTruncated) {
		t.Errorf("Next on cut record = %v, want ErrTruncated", err)
	}
}
