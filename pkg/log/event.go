package log

import (
	"time"
)

// MaxDataCapture is the number of assembly bytes kept in a DataEvent.
const MaxDataCapture = 64

// Event represents one trace event.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies the I/O connection (UUID), if any.
	ConnectionID string `cbor:"2,keyasint,omitempty"`

	// Direction indicates data flow relative to the device.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// AssemblyID is the assembly instance involved (0 if none).
	AssemblyID uint16 `cbor:"6,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Data       *DataEvent       `cbor:"10,keyasint,omitempty"`
	Connection *ConnectionEvent `cbor:"11,keyasint,omitempty"`
	Attribute  *AttributeEvent  `cbor:"12,keyasint,omitempty"`
	Reset      *ResetEvent      `cbor:"13,keyasint,omitempty"`
	Failsafe   *FailsafeEvent   `cbor:"14,keyasint,omitempty"`
	RunIdle    *RunIdleEvent    `cbor:"15,keyasint,omitempty"`
	Error      *ErrorEventData  `cbor:"16,keyasint,omitempty"`
}

// Direction indicates the direction of data flow.
type Direction uint8

const (
	// DirectionIn indicates data consumed by the device.
	DirectionIn Direction = 0
	// DirectionOut indicates data produced by the device.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates where the event was captured.
type Layer uint8

const (
	// LayerIO is cyclic implicit messaging.
	LayerIO Layer = 0
	// LayerExplicit is explicit messaging (attribute services).
	LayerExplicit Layer = 1
	// LayerApplication is the application hooks.
	LayerApplication Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerIO:
		return "IO"
	case LayerExplicit:
		return "EXPLICIT"
	case LayerApplication:
		return "APPLICATION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	CategoryData       Category = 0
	CategoryConnection Category = 1
	CategoryAttribute  Category = 2
	CategoryReset      Category = 3
	CategoryFailsafe   Category = 4
	CategoryRunIdle    Category = 5
	CategoryError      Category = 6
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryData:
		return "DATA"
	case CategoryConnection:
		return "CONNECTION"
	case CategoryAttribute:
		return "ATTRIBUTE"
	case CategoryReset:
		return "RESET"
	case CategoryFailsafe:
		return "FAILSAFE"
	case CategoryRunIdle:
		return "RUN_IDLE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseCategory returns the category for a name as printed by String.
func ParseCategory(s string) (Category, bool) {
	for c := CategoryData; c <= CategoryError; c++ {
		if c.String() == s {
			return c, true
		}
	}
	return 0, false
}

// DataEvent captures assembly data passing a hook.
type DataEvent struct {
	// Size is the assembly size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the assembly content (may be truncated).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`

	// Fresh is the OnDataToSend result for produced data.
	Fresh bool `cbor:"4,keyasint,omitempty"`
}

// NewDataEvent captures data, truncating it to MaxDataCapture bytes.
func NewDataEvent(data []byte) *DataEvent {
	e := &DataEvent{Size: len(data)}
	n := len(data)
	if n > MaxDataCapture {
		n = MaxDataCapture
		e.Truncated = true
	}
	if n > 0 {
		e.Data = append([]byte(nil), data[:n]...)
	}
	return e
}

// ConnectionEvent captures I/O connection lifecycle.
type ConnectionEvent struct {
	// Role is the connection point role name.
	Role string `cbor:"1,keyasint,omitempty"`

	// OutputID is the consumed (O->T) assembly.
	OutputID uint16 `cbor:"2,keyasint"`

	// InputID is the produced (T->O) assembly.
	InputID uint16 `cbor:"3,keyasint"`

	// Event is the lifecycle event name (STARTED, TIMED_OUT, CLOSED).
	Event string `cbor:"4,keyasint"`

	// Reason for the event (if available).
	Reason string `cbor:"5,keyasint,omitempty"`
}

// AttributeEvent captures an explicit attribute service.
type AttributeEvent struct {
	Class     uint16 `cbor:"1,keyasint"`
	Instance  uint16 `cbor:"2,keyasint"`
	Attribute uint16 `cbor:"3,keyasint"`
	Service   uint8  `cbor:"4,keyasint"`
	Status    uint8  `cbor:"5,keyasint"`
	Size      int    `cbor:"6,keyasint,omitempty"`
}

// ResetEvent captures a device reset.
type ResetEvent struct {
	// Type is the reset type (0 power cycle, 1 factory defaults).
	Type uint8 `cbor:"1,keyasint"`

	// ClosedConnections is the number of connections closed by the reset.
	ClosedConnections int `cbor:"2,keyasint,omitempty"`
}

// FailsafeEvent captures a failsafe state transition of an output.
type FailsafeEvent struct {
	OldState string `cbor:"1,keyasint"`
	NewState string `cbor:"2,keyasint"`
	Policy   string `cbor:"3,keyasint,omitempty"`
}

// RunIdleEvent captures a run/idle change of received output data.
type RunIdleEvent struct {
	Run bool `cbor:"1,keyasint"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the CIP general status (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
