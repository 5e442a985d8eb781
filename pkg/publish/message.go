package publish

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/eipdev/eipdev-go/pkg/cip"
	"github.com/eipdev/eipdev-go/pkg/log"
)

// Message is the broker representation of a trace event.
type Message struct {
	Timestamp    time.Time `json:"timestamp"`
	Category     string    `json:"category"`
	Layer        string    `json:"layer"`
	Direction    string    `json:"direction"`
	ConnectionID string    `json:"connection_id,omitempty"`
	AssemblyID   uint16    `json:"assembly_id,omitempty"`
	Size         int       `json:"size,omitempty"`
	Data         string    `json:"data,omitempty"` // hex
	Truncated    bool      `json:"truncated,omitempty"`
	Event        string    `json:"event,omitempty"`
	Detail       string    `json:"detail,omitempty"`
}

// FromEvent converts a trace event.
func FromEvent(e log.Event) Message {
	m := Message{
		Timestamp:    e.Timestamp,
		Category:     e.Category.String(),
		Layer:        e.Layer.String(),
		Direction:    e.Direction.String(),
		ConnectionID: e.ConnectionID,
		AssemblyID:   e.AssemblyID,
	}

	switch {
	case e.Data != nil:
		m.Size = e.Data.Size
		m.Data = hex.EncodeToString(e.Data.Data)
		m.Truncated = e.Data.Truncated
	case e.Connection != nil:
		m.Event = e.Connection.Event
		m.Detail = fmt.Sprintf("%s out=%d in=%d", e.Connection.Role, e.Connection.OutputID, e.Connection.InputID)
		if e.Connection.Reason != "" {
			m.Detail += ": " + e.Connection.Reason
		}
	case e.Attribute != nil:
		a := e.Attribute
		m.Event = cip.Service(a.Service).String()
		m.Size = a.Size
		m.Detail = fmt.Sprintf("%s %d/%d: %s", cip.ClassCode(a.Class), a.Instance, a.Attribute, cip.Status(a.Status))
	case e.Reset != nil:
		m.Event = cip.ResetType(e.Reset.Type).String()
		m.Detail = "closed " + strconv.Itoa(e.Reset.ClosedConnections)
	case e.Failsafe != nil:
		m.Event = e.Failsafe.NewState
		m.Detail = e.Failsafe.OldState + " -> " + e.Failsafe.NewState
		if e.Failsafe.Policy != "" {
			m.Detail += " (" + e.Failsafe.Policy + ")"
		}
	case e.RunIdle != nil:
		m.Event = "IDLE"
		if e.RunIdle.Run {
			m.Event = "RUN"
		}
	case e.Error != nil:
		m.Event = "ERROR"
		m.Detail = e.Error.Message
		if e.Error.Context != "" {
			m.Detail = e.Error.Context + ": " + m.Detail
		}
	}
	return m
}

// Encode returns the JSON encoding of m.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// IsData reports whether m carries assembly data.
func (m Message) IsData() bool {
	return m.Category == log.CategoryData.String()
}

// Key returns the partitioning key of m: the assembly id when set, otherwise
// the connection id.
func (m Message) Key() string {
	if m.AssemblyID != 0 {
		return strconv.Itoa(int(m.AssemblyID))
	}
	return m.ConnectionID
}
