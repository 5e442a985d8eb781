package ethlink

import (
	"github.com/eipdev/eipdev-go/pkg/cip"
	"github.com/eipdev/eipdev-go/pkg/object"
)

// Bridge connects the counter attributes of an Object to a CounterSource.
type Bridge struct {
	obj    *Object
	source CounterSource
}

// NewBridge creates a bridge for obj reading from source.
func NewBridge(obj *Object, source CounterSource) *Bridge {
	return &Bridge{obj: obj, source: source}
}

// PreGet fetches fresh counters into the attribute before it is encoded.
func (b *Bridge) PreGet(inst *object.Instance, attr *object.Attribute, _ cip.Service) error {
	l, ok := b.obj.links[inst.Number()]
	if !ok {
		return cip.Err(cip.StatusObjectDoesNotExist)
	}
	c, err := b.source.Counters(int(inst.Number()))
	if err != nil {
		return err
	}
	switch attr.ID() {
	case AttrInterfaceCounters:
		copy(l.iface, c.Interface[:])
	case AttrMediaCounters:
		copy(l.media, c.Media[:])
	}
	return nil
}

// PostGet clears the counter group after a GetAndClear reply was captured.
func (b *Bridge) PostGet(inst *object.Instance, attr *object.Attribute, service cip.Service) error {
	if service != cip.ServiceGetAndClear {
		return nil
	}
	var group Group
	switch attr.ID() {
	case AttrInterfaceCounters:
		group = GroupInterface
	case AttrMediaCounters:
		group = GroupMedia
	default:
		return nil
	}
	return b.source.Clear(int(inst.Number()), group)
}
