package ethlink

import "errors"

// Number of UDINT values in each counter attribute.
const (
	InterfaceCounterCount = 11
	MediaCounterCount     = 12
)

// Interface counter indexes (attribute 4).
const (
	InOctets = iota
	InUcastPackets
	InNUcastPackets
	InDiscards
	InErrors
	InUnknownProtos
	OutOctets
	OutUcastPackets
	OutNUcastPackets
	OutDiscards
	OutErrors
)

// Media counter indexes (attribute 5).
const (
	AlignmentErrors = iota
	FCSErrors
	SingleCollisions
	MultipleCollisions
	SQETestErrors
	DeferredTransmissions
	LateCollisions
	ExcessiveCollisions
	MACTransmitErrors
	CarrierSenseErrors
	FrameTooLong
	MACReceiveErrors
)

// Group selects one of the two counter attributes.
type Group uint8

const (
	GroupInterface Group = iota + 1
	GroupMedia
)

// String returns the group name.
func (g Group) String() string {
	switch g {
	case GroupInterface:
		return "interface"
	case GroupMedia:
		return "media"
	default:
		return "unknown"
	}
}

// ErrUnknownPort is returned for a port the source does not know.
var ErrUnknownPort = errors.New("unknown ethernet port")

// Counters is a snapshot of one port's counters.
type Counters struct {
	Interface [InterfaceCounterCount]uint32
	Media     [MediaCounterCount]uint32
}

// CounterSource provides per-port counters. Ports are numbered from 1 like
// Ethernet Link instances.
type CounterSource interface {
	// Counters returns the current counters of port.
	Counters(port int) (Counters, error)

	// Clear resets one counter group of port to zero.
	Clear(port int, group Group) error
}

// StaticCounters is an in-memory CounterSource for simulation and tests.
type StaticCounters struct {
	ports map[int]*Counters
}

var _ CounterSource = (*StaticCounters)(nil)

// NewStaticCounters creates zeroed counters for ports 1..n.
func NewStaticCounters(n int) *StaticCounters {
	s := &StaticCounters{ports: make(map[int]*Counters, n)}
	for p := 1; p <= n; p++ {
		s.ports[p] = &Counters{}
	}
	return s
}

// Counters implements CounterSource.
func (s *StaticCounters) Counters(port int) (Counters, error) {
	c, ok := s.ports[port]
	if !ok {
		return Counters{}, ErrUnknownPort
	}
	return *c, nil
}

// Clear implements CounterSource.
func (s *StaticCounters) Clear(port int, group Group) error {
	c, ok := s.ports[port]
	if !ok {
		return ErrUnknownPort
	}
	switch group {
	case GroupInterface:
		c.Interface = [InterfaceCounterCount]uint32{}
	case GroupMedia:
		c.Media = [MediaCounterCount]uint32{}
	}
	return nil
}

// AddInterface adds delta to an interface counter.
func (s *StaticCounters) AddInterface(port, index int, delta uint32) {
	if c, ok := s.ports[port]; ok && index >= 0 && index < InterfaceCounterCount {
		c.Interface[index] += delta
	}
}

// AddMedia adds delta to a media counter.
func (s *StaticCounters) AddMedia(port, index int, delta uint32) {
	if c, ok := s.ports[port]; ok && index >= 0 && index < MediaCounterCount {
		c.Media[index] += delta
	}
}
