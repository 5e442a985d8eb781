package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestNoopLogger(t *testing.T) {
	var l Logger = NoopLogger{}
	l.Log(Event{Timestamp: time.Now()})
}

func TestMultiLoggerFansOut(t *testing.T) {
	a := NewMemoryLogger(4)
	b := NewMemoryLogger(4)
	m := NewMultiLogger(a, nil, b)

	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}
	m.Log(Event{Category: CategoryReset})

	if len(a.Events()) != 1 || len(b.Events()) != 1 {
		t.Errorf("events a = %d, b = %d, want 1, 1", len(a.Events()), len(b.Events()))
	}
}

func TestMemoryLoggerRing(t *testing.T) {
	m := NewMemoryLogger(3)
	for i := 1; i <= 5; i++ {
		m.Log(Event{AssemblyID: uint16(i)})
	}

	events := m.Events()
	if len(events) != 3 {
		t.Fatalf("len(Events()) = %d, want 3", len(events))
	}
	for i, want := range []uint16{3, 4, 5} {
		if events[i].AssemblyID != want {
			t.Errorf("events[%d].AssemblyID = %d, want %d", i, events[i].AssemblyID, want)
		}
	}
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	a := NewSlogAdapter(logger)

	a.Log(Event{
		Direction:  DirectionOut,
		Layer:      LayerIO,
		Category:   CategoryData,
		AssemblyID: 100,
		Data:       &DataEvent{Size: 2, Data: []byte{0xAB, 0xCD}, Fresh: true},
	})
	a.Log(Event{
		Category:   CategoryConnection,
		Connection: &ConnectionEvent{Role: "ExclusiveOwner", OutputID: 150, InputID: 100, Event: "STARTED"},
	})
	a.Log(Event{Category: CategoryFailsafe, AssemblyID: 150, Failsafe: &FailsafeEvent{OldState: "NORMAL", NewState: "FAILSAFE", Policy: "zero"}})

	out := buf.String()
	for _, want := range []string{
		"assembly=100", "data=abcd", "fresh=true",
		"event=STARTED", "role=ExclusiveOwner",
		"new_state=FAILSAFE", "policy=zero",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSlogAdapterLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	NewSlogAdapter(logger).Log(Event{Category: CategoryReset, Reset: &ResetEvent{}})
	if buf.Len() != 0 {
		t.Errorf("debug event written at info level: %s", buf.String())
	}

	NewSlogAdapter(logger).WithLevel(slog.LevelInfo).Log(Event{Category: CategoryReset, Reset: &ResetEvent{}})
	if !strings.Contains(buf.String(), "category=RESET") {
		t.Errorf("output = %q", buf.String())
	}
}
