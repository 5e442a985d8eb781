package stack

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eipdev/eipdev-go/pkg/cip"
	"github.com/eipdev/eipdev-go/pkg/connpoint"
	"github.com/eipdev/eipdev-go/pkg/log"
)

// Trigger selects when input data is produced.
type Trigger uint8

const (
	// TriggerCyclic produces every RPI.
	TriggerCyclic Trigger = iota

	// TriggerChangeOfState produces only when OnDataToSend reports new data.
	TriggerChangeOfState
)

// String returns the trigger name.
func (t Trigger) String() string {
	switch t {
	case TriggerCyclic:
		return "CYCLIC"
	case TriggerChangeOfState:
		return "CHANGE_OF_STATE"
	default:
		return "UNKNOWN"
	}
}

// OpenRequest describes a Forward Open from a simulated originator.
type OpenRequest struct {
	Role     connpoint.Role
	OutputID uint16
	InputID  uint16
	ConfigID uint16

	// RPI is the requested packet interval. Zero selects the host default.
	RPI time.Duration

	// TimeoutMultiplier scales the RPI into the consumer watchdog timeout.
	// Zero selects the host default.
	TimeoutMultiplier int

	Trigger Trigger

	// ConfigData is written to the config assembly when non-empty.
	ConfigData []byte
}

// ConnectionInfo is a snapshot of an open connection.
type ConnectionInfo struct {
	ID                uuid.UUID
	Role              connpoint.Role
	OutputID          uint16
	InputID           uint16
	ConfigID          uint16
	RPI               time.Duration
	TimeoutMultiplier int
	Trigger           Trigger
	OpenedAt          time.Time
	LastConsumed      time.Time
	Run               bool
	Consumed          uint64
	Produced          uint64
}

type connection struct {
	id          uuid.UUID
	point       connpoint.Point
	rpi         time.Duration
	multiplier  int
	trigger     Trigger
	openedAt    time.Time
	consumedAt  time.Time
	nextProduce time.Time
	run         bool
	consumed    uint64
	produced    uint64
	closed      bool
}

func (c *connection) info() ConnectionInfo {
	return ConnectionInfo{
		ID:                c.id,
		Role:              c.point.Role,
		OutputID:          c.point.OutputID,
		InputID:           c.point.InputID,
		ConfigID:          c.point.ConfigID,
		RPI:               c.rpi,
		TimeoutMultiplier: c.multiplier,
		Trigger:           c.trigger,
		OpenedAt:          c.openedAt,
		LastConsumed:      c.consumedAt,
		Run:               c.run,
		Consumed:          c.consumed,
		Produced:          c.produced,
	}
}

func (c *connection) timeout() time.Duration {
	return c.rpi * time.Duration(c.multiplier)
}

// controls reports whether c keeps listen-only connections alive.
func (c *connection) controls() bool {
	return c.point.Role == connpoint.RoleExclusiveOwner || c.point.Role == connpoint.RoleInputOnly
}

// Connections returns snapshots of all open connections in open order.
func (h *Host) Connections() []ConnectionInfo {
	out := make([]ConnectionInfo, 0, len(h.conns))
	for _, c := range h.conns {
		out = append(out, c.info())
	}
	return out
}

// Connection returns a snapshot of connection id.
func (h *Host) Connection(id uuid.UUID) (ConnectionInfo, bool) {
	c := h.find(id)
	if c == nil {
		return ConnectionInfo{}, false
	}
	return c.info(), true
}

// OpenConnection opens an I/O connection and reports Started to the
// application.
func (h *Host) OpenConnection(req OpenRequest) (uuid.UUID, error) {
	if h.app == nil {
		return uuid.Nil, ErrNotAttached
	}

	point, ok := h.matchPoint(req)
	if !ok {
		return uuid.Nil, connFailure(ErrNoConnectionPoint, cip.ExtInvalidConnectionPoint,
			fmt.Sprintf("%s out=%d in=%d cfg=%d", req.Role, req.OutputID, req.InputID, req.ConfigID))
	}

	switch point.Role {
	case connpoint.RoleExclusiveOwner:
		for _, c := range h.conns {
			if c.point.Role == connpoint.RoleExclusiveOwner && c.point.OutputID == point.OutputID {
				return uuid.Nil, connFailure(ErrOwnershipConflict, cip.ExtOwnershipConflict,
					fmt.Sprintf("output %d owned by %s", point.OutputID, c.id))
			}
		}
	case connpoint.RoleListenOnly:
		if !h.controlled(point.InputID) {
			return uuid.Nil, connFailure(ErrNoControllingConnection, cip.ExtNonListenOnlyNotOpened,
				fmt.Sprintf("input %d", point.InputID))
		}
	}

	if len(req.ConfigData) > 0 {
		if err := h.applyConfig(point.ConfigID, req.ConfigData); err != nil {
			return uuid.Nil, err
		}
	}

	now := h.config.Now()
	c := &connection{
		id:          uuid.New(),
		point:       point,
		rpi:         req.RPI,
		multiplier:  req.TimeoutMultiplier,
		trigger:     req.Trigger,
		openedAt:    now,
		consumedAt:  now,
		nextProduce: now,
	}
	if c.rpi <= 0 {
		c.rpi = h.config.DefaultRPI
	}
	if c.multiplier <= 0 {
		c.multiplier = h.config.DefaultTimeoutMultiplier
	}
	h.conns = append(h.conns, c)

	h.debugLog("OpenConnection", "id", c.id, "point", point.String(), "rpi", c.rpi, "trigger", c.trigger.String())
	h.traceConnection(c, cip.EventStarted, "")
	h.app.OnConnectionEvent(point.OutputID, point.InputID, cip.EventStarted)
	return c.id, nil
}

// DeliverOutput simulates a consumed packet on connection id. run is the
// run/idle flag of the packet header. Heartbeat connections pass no data.
func (h *Host) DeliverOutput(id uuid.UUID, data []byte, run bool) error {
	c := h.find(id)
	if c == nil {
		return connFailure(ErrConnectionNotFound, cip.ExtConnectionNotFound, id.String())
	}
	buf := h.assemblies[c.point.OutputID]
	if len(data) != len(buf) {
		return connFailure(ErrInvalidConsumingSize, cip.ExtInvalidConsumingSize,
			fmt.Sprintf("output %d holds %d bytes, got %d", c.point.OutputID, len(buf), len(data)))
	}

	c.consumedAt = h.config.Now()
	c.consumed++
	if len(buf) == 0 {
		return nil
	}

	copy(buf, data)
	if run != c.run {
		c.run = run
		h.app.RunIdleChanged(run)
	}
	return h.app.OnDataReceived(c.point.OutputID)
}

// CloseConnection simulates a Forward Close.
func (h *Host) CloseConnection(id uuid.UUID) error {
	c := h.find(id)
	if c == nil {
		return connFailure(ErrConnectionNotFound, cip.ExtConnectionNotFound, id.String())
	}
	h.close(c, cip.EventClosed, "forward close")
	return nil
}

// CloseAllConnections closes every open connection and returns how many
// were closed.
func (h *Host) CloseAllConnections() int {
	open := append([]*connection(nil), h.conns...)
	n := 0
	for _, c := range open {
		if c.closed {
			continue
		}
		n += h.close(c, cip.EventClosed, "close all")
	}
	return n
}

// Process runs consumer watchdogs and produces due input data.
func (h *Host) Process(now time.Time) {
	open := append([]*connection(nil), h.conns...)
	for _, c := range open {
		if c.closed {
			continue
		}
		if now.Sub(c.consumedAt) > c.timeout() {
			h.close(c, cip.EventTimedOut, fmt.Sprintf("no data for %s", now.Sub(c.consumedAt)))
		}
	}

	for _, c := range h.conns {
		if now.Before(c.nextProduce) {
			continue
		}
		fresh := h.app.OnDataToSend(c.point.InputID)
		if c.trigger == TriggerCyclic || fresh {
			h.produce(c, now)
		}
		c.nextProduce = c.nextProduce.Add(c.rpi)
		if c.nextProduce.Before(now) {
			c.nextProduce = now.Add(c.rpi)
		}
	}
}

func (h *Host) produce(c *connection, now time.Time) {
	data := append([]byte{}, h.assemblies[c.point.InputID]...)
	c.produced++

	if h.trace != nil {
		h.trace.Log(log.Event{
			Timestamp:    now,
			ConnectionID: c.id.String(),
			Direction:    log.DirectionOut,
			Layer:        log.LayerIO,
			Category:     log.CategoryData,
			AssemblyID:   c.point.InputID,
			Data:         log.NewDataEvent(data),
		})
	}
	if h.config.OnProduce != nil {
		h.config.OnProduce(c.info(), data)
	}
}

// close removes c, reports event and cascades to listen-only connections
// that lost their last controlling connection. It returns the number of
// connections closed.
func (h *Host) close(c *connection, event cip.IOConnectionEvent, reason string) int {
	c.closed = true
	for i, o := range h.conns {
		if o == c {
			h.conns = append(h.conns[:i], h.conns[i+1:]...)
			break
		}
	}

	h.debugLog("connection ended", "id", c.id, "point", c.point.String(), "event", event.String(), "reason", reason)
	h.traceConnection(c, event, reason)
	if h.app != nil {
		h.app.OnConnectionEvent(c.point.OutputID, c.point.InputID, event)
	}

	n := 1
	if c.controls() && !h.controlled(c.point.InputID) {
		for _, o := range append([]*connection(nil), h.conns...) {
			if o.point.Role == connpoint.RoleListenOnly && o.point.InputID == c.point.InputID && !o.closed {
				n += h.close(o, event, "controlling connection ended")
			}
		}
	}
	return n
}

// controlled reports whether an exclusive owner or input only connection
// produces inputID.
func (h *Host) controlled(inputID uint16) bool {
	for _, c := range h.conns {
		if c.controls() && c.point.InputID == inputID {
			return true
		}
	}
	return false
}

func (h *Host) matchPoint(req OpenRequest) (connpoint.Point, bool) {
	for _, p := range h.points {
		if p.Role == req.Role && p.Matches(req.OutputID, req.InputID, req.ConfigID) {
			return p, true
		}
	}
	return connpoint.Point{}, false
}

// applyConfig writes Forward Open config data and lets the application
// check it. Rejected data is rolled back.
func (h *Host) applyConfig(configID uint16, data []byte) error {
	buf := h.assemblies[configID]
	if len(data) != len(buf) {
		return connFailure(ErrInvalidConfigurationSize, cip.ExtInvalidConfigurationSize,
			fmt.Sprintf("config %d holds %d bytes, got %d", configID, len(buf), len(data)))
	}
	prev := append([]byte{}, buf...)
	copy(buf, data)
	if err := h.app.OnDataReceived(configID); err != nil {
		copy(buf, prev)
		return fmt.Errorf("%w: %w: %w", ErrConfigurationRejected, cip.ConnErr(cip.ExtInvalidConfigurationData), err)
	}
	return nil
}

func (h *Host) find(id uuid.UUID) *connection {
	for _, c := range h.conns {
		if c.id == id {
			return c
		}
	}
	return nil
}

func (h *Host) traceConnection(c *connection, event cip.IOConnectionEvent, reason string) {
	if h.trace == nil {
		return
	}
	h.trace.Log(log.Event{
		Timestamp:    h.config.Now(),
		ConnectionID: c.id.String(),
		Direction:    log.DirectionIn,
		Layer:        log.LayerIO,
		Category:     log.CategoryConnection,
		AssemblyID:   c.point.OutputID,
		Connection: &log.ConnectionEvent{
			Role:     c.point.Role.String(),
			OutputID: c.point.OutputID,
			InputID:  c.point.InputID,
			Event:    event.String(),
			Reason:   reason,
		},
	})
}
