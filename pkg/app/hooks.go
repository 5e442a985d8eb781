package app

import (
	"fmt"

	"github.com/eipdev/eipdev-go/pkg/assembly"
	"github.com/eipdev/eipdev-go/pkg/log"
)

type handlerKind uint8

const (
	kindNone handlerKind = iota
	kindLoopback
	kindConfig
	kindExplicit
	kindHeartbeat
	kindInput
)

func (k handlerKind) String() string {
	switch k {
	case kindLoopback:
		return "loopback"
	case kindConfig:
		return "config"
	case kindExplicit:
		return "explicit"
	case kindHeartbeat:
		return "heartbeat"
	case kindInput:
		return "input"
	default:
		return "none"
	}
}

// handler is the per-instance behavior of the hooks. peer is the mirror
// target of a loopback handler.
type handler struct {
	kind handlerKind
	peer uint16
}

// buildHandlers derives the handler table from the registered instances.
// Every output is mirrored into the first registered input.
func buildHandlers(r *assembly.Registry) map[uint16]handler {
	var input uint16
	for _, inst := range r.Instances() {
		if inst.Direction == assembly.DirectionInput {
			input = inst.ID
			break
		}
	}

	handlers := make(map[uint16]handler, r.Len())
	for _, inst := range r.Instances() {
		var h handler
		switch inst.Direction {
		case assembly.DirectionOutput:
			h = handler{kind: kindLoopback, peer: input}
		case assembly.DirectionConfig:
			h = handler{kind: kindConfig}
		case assembly.DirectionExplicit:
			h = handler{kind: kindExplicit}
		case assembly.DirectionInput:
			h = handler{kind: kindInput}
		default:
			h = handler{kind: kindHeartbeat}
		}
		handlers[inst.ID] = h
	}
	return handlers
}

// OnDataReceived is called after the stack wrote new data into assembly id,
// either from an I/O connection or an explicit Set. Unknown ids are ignored.
func (d *Device) OnDataReceived(id uint16) error {
	h := d.handlers[id]
	d.debugLog("OnDataReceived", "id", id, "kind", h.kind.String())

	switch h.kind {
	case kindLoopback:
		if err := d.store.Copy(h.peer, id); err != nil {
			return err
		}
		d.traceData(id, log.DirectionIn, false)

	case kindConfig:
		buf, _ := d.store.Buffer(id)
		d.traceData(id, log.DirectionIn, false)
		if err := d.config.ConfigValidator(buf); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
		}

	case kindExplicit:
		d.traceData(id, log.DirectionIn, false)
		if d.config.Explicit != nil {
			data, _ := d.store.Read(id)
			return d.config.Explicit.OnExplicitWrite(data)
		}
	}
	return nil
}

// OnDataToSend is called before the stack sends assembly id. It reports
// whether the data is fresh.
func (d *Device) OnDataToSend(id uint16) bool {
	h := d.handlers[id]
	if h.kind == kindExplicit && d.config.Explicit != nil {
		buf, _ := d.store.Buffer(id)
		d.config.Explicit.OnExplicitRead(buf)
	}

	fresh := true
	if d.config.Freshness != nil {
		fresh = d.config.Freshness(id)
	}
	if h.kind == kindExplicit || h.kind == kindInput {
		d.traceData(id, log.DirectionOut, fresh)
	}
	return fresh
}

func (d *Device) traceData(id uint16, dir log.Direction, fresh bool) {
	if d.trace == nil {
		return
	}
	buf, _ := d.store.Buffer(id)
	data := log.NewDataEvent(buf)
	data.Fresh = fresh
	d.emit(log.Event{
		Direction:  dir,
		Category:   log.CategoryData,
		AssemblyID: id,
		Data:       data,
	})
}
