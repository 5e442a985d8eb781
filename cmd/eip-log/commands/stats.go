package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/eipdev/eipdev-go/pkg/cip"
	"github.com/eipdev/eipdev-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	Header            log.Header
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	BytesByAssembly   map[uint16]int
	Connections       map[string]*ConnectionStats
	FailsafeEntries   int
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// ConnectionStats holds statistics for a single I/O connection.
type ConnectionStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Role      string
	Ended     string
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		Header:            reader.Header(),
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		BytesByAssembly:   make(map[uint16]int),
		Connections:       make(map[string]*ConnectionStats),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}

	printStats(w, stats)
	return nil
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	if event.Data != nil && event.AssemblyID != 0 {
		s.BytesByAssembly[event.AssemblyID] += event.Data.Size
	}
	if event.Failsafe != nil && event.Failsafe.NewState == "FAILSAFE" {
		s.FailsafeEntries++
	}
	if event.Error != nil {
		s.Errors++
	}

	if event.ConnectionID == "" {
		return
	}
	conn, ok := s.Connections[event.ConnectionID]
	if !ok {
		conn = &ConnectionStats{
			FirstSeen: event.Timestamp,
			LastSeen:  event.Timestamp,
		}
		s.Connections[event.ConnectionID] = conn
	}
	conn.Events++
	if event.Timestamp.After(conn.LastSeen) {
		conn.LastSeen = event.Timestamp
	}
	if c := event.Connection; c != nil {
		if conn.Role == "" {
			conn.Role = c.Role
		}
		if c.Event != cip.EventStarted.String() {
			conn.Ended = c.Event
		}
	}
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== EtherNet/IP Trace Statistics ===")
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Format:     eiplog v%d, capture %d bytes\n", stats.Header.Version, stats.Header.Capture)
	fmt.Fprintf(w, "Created:    %s\n", stats.Header.Created.Format(time.RFC3339))
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Millisecond))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerIO, log.LayerExplicit, log.LayerApplication} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for cat := log.CategoryData; cat <= log.CategoryError; cat++ {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}

	if len(stats.BytesByAssembly) > 0 {
		ids := make([]int, 0, len(stats.BytesByAssembly))
		for id := range stats.BytesByAssembly {
			ids = append(ids, int(id))
		}
		sort.Ints(ids)
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Data by Assembly:")
		for _, id := range ids {
			fmt.Fprintf(w, "  %-12s %d bytes\n", fmt.Sprintf("%d:", id), stats.BytesByAssembly[uint16(id)])
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Connections: %d\n", len(stats.Connections))
	if len(stats.Connections) > 0 {
		type connInfo struct {
			id    string
			stats *ConnectionStats
		}
		conns := make([]connInfo, 0, len(stats.Connections))
		for id, cs := range stats.Connections {
			conns = append(conns, connInfo{id, cs})
		}
		sort.Slice(conns, func(i, j int) bool {
			return conns[i].stats.FirstSeen.Before(conns[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, c := range conns {
			duration := c.stats.LastSeen.Sub(c.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenConnID(c.id), c.stats.Events, duration)
			if c.stats.Role != "" {
				fmt.Fprintf(w, "           Role: %s\n", c.stats.Role)
			}
			if c.stats.Ended != "" {
				fmt.Fprintf(w, "           Ended: %s\n", c.stats.Ended)
			}
		}
	}

	if stats.FailsafeEntries > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Failsafe Entries: %d\n", stats.FailsafeEntries)
	}
	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
