// Package commands implements the eip-log CLI commands.
package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/eipdev/eipdev-go/pkg/cip"
	"github.com/eipdev/eipdev-go/pkg/log"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Layer      *log.Layer
	Direction  *log.Direction
	Category   *log.Category
	AssemblyID *uint16
}

func (f ViewFilter) toFilter() log.Filter {
	return log.Filter{
		Layer:      f.Layer,
		Direction:  f.Direction,
		Category:   f.Category,
		AssemblyID: f.AssemblyID,
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [conn:id] DIRECTION LAYER Type
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	connID := shortenConnID(event.ConnectionID)
	if connID == "" {
		connID = "-"
	}

	fmt.Fprintf(w, "%s [conn:%s] %-3s %s %s\n", ts, connID, event.Direction, event.Layer, typeLabel(event))
	if event.AssemblyID != 0 {
		fmt.Fprintf(w, "  Assembly: %d\n", event.AssemblyID)
	}

	switch {
	case event.Data != nil:
		formatDataDetails(w, event.Data)
	case event.Connection != nil:
		formatConnectionDetails(w, event.Connection)
	case event.Attribute != nil:
		formatAttributeDetails(w, event.Attribute)
	case event.Reset != nil:
		fmt.Fprintf(w, "  Closed: %d connection(s)\n", event.Reset.ClosedConnections)
	case event.Failsafe != nil:
		fmt.Fprintf(w, "  %s -> %s\n", event.Failsafe.OldState, event.Failsafe.NewState)
		if event.Failsafe.Policy != "" {
			fmt.Fprintf(w, "  Policy: %s\n", event.Failsafe.Policy)
		}
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w) // Blank line between events
}

// typeLabel names the payload of an event.
func typeLabel(event log.Event) string {
	switch {
	case event.Data != nil:
		return "Data"
	case event.Connection != nil:
		return event.Connection.Event
	case event.Attribute != nil:
		return cip.Service(event.Attribute.Service).String()
	case event.Reset != nil:
		return "Reset " + cip.ResetType(event.Reset.Type).String()
	case event.Failsafe != nil:
		return "Failsafe"
	case event.RunIdle != nil:
		if event.RunIdle.Run {
			return "Run"
		}
		return "Idle"
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatDataDetails(w io.Writer, d *log.DataEvent) {
	fmt.Fprintf(w, "  Size: %d bytes\n", d.Size)
	if len(d.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(d.Data))
		if d.Truncated {
			fmt.Fprintf(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
	if d.Fresh {
		fmt.Fprintln(w, "  Fresh: true")
	}
}

func formatConnectionDetails(w io.Writer, c *log.ConnectionEvent) {
	fmt.Fprintf(w, "  %s out=%d in=%d\n", c.Role, c.OutputID, c.InputID)
	if c.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", c.Reason)
	}
}

func formatAttributeDetails(w io.Writer, a *log.AttributeEvent) {
	fmt.Fprintf(w, "  Path: %s/%d/%d\n", cip.ClassCode(a.Class), a.Instance, a.Attribute)
	fmt.Fprintf(w, "  Status: %s\n", cip.Status(a.Status))
	if a.Size > 0 {
		fmt.Fprintf(w, "  Size: %d bytes\n", a.Size)
	}
}

// formatErrorDetails writes error details.
func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Code != nil {
		fmt.Fprintf(w, "  Code: %s\n", cip.Status(*err.Code))
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// ParseLayerFlag parses a layer string from command-line flag (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "io":
		return log.LayerIO, nil
	case "explicit":
		return log.LayerExplicit, nil
	case "application", "app":
		return log.LayerApplication, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be io, explicit, or application)", s)
	}
}

// ParseDirectionFlag parses a direction string from command-line flag (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// ParseCategoryFlag parses a category string from command-line flag (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	name := strings.ToUpper(strings.ReplaceAll(s, "-", "_"))
	if c, ok := log.ParseCategory(name); ok {
		return c, nil
	}
	return 0, fmt.Errorf("invalid category: %s (must be data, connection, attribute, reset, failsafe, run_idle, or error)", s)
}

// ParseAssemblyFlag parses an assembly instance in decimal or 0x hex.
func ParseAssemblyFlag(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid assembly: %s", s)
	}
	return uint16(v), nil
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter.toFilter())
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}
	return nil
}
