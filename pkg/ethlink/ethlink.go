package ethlink

import (
	"net"

	"github.com/eipdev/eipdev-go/pkg/cip"
	"github.com/eipdev/eipdev-go/pkg/object"
)

// Ethernet Link attribute IDs.
const (
	AttrInterfaceSpeed    uint16 = 1
	AttrInterfaceFlags    uint16 = 2
	AttrPhysicalAddress   uint16 = 3
	AttrInterfaceCounters uint16 = 4
	AttrMediaCounters     uint16 = 5
)

// ClassRevision is the revision of the Ethernet Link object.
const ClassRevision uint16 = 4

// Interface flag bits (attribute 2).
const (
	FlagLinkActive uint32 = 0x01
	FlagFullDuplex uint32 = 0x02
)

// Port describes one physical Ethernet port.
type Port struct {
	// Speed is the interface speed in Mbit/s.
	Speed uint32

	// Flags is the interface flags attribute.
	Flags uint32

	// MAC is the physical address. Shorter addresses are zero padded.
	MAC net.HardwareAddr
}

type link struct {
	speed uint32
	flags uint32
	mac   []byte
	iface []uint32
	media []uint32
}

// Object is the Ethernet Link object with one instance per port.
type Object struct {
	*object.Class

	links map[uint16]*link
}

// New creates the object with instances 1..len(ports).
func New(ports ...Port) *Object {
	o := &Object{
		Class: object.NewClass(cip.ClassEthernetLink, ClassRevision),
		links: make(map[uint16]*link, len(ports)),
	}
	o.SupportService(cip.ServiceGetAndClear)

	for i, p := range ports {
		n := uint16(i + 1)
		l := &link{
			speed: p.Speed,
			flags: p.Flags,
			mac:   make([]byte, 6),
			iface: make([]uint32, InterfaceCounterCount),
			media: make([]uint32, MediaCounterCount),
		}
		copy(l.mac, p.MAC)
		o.links[n] = l

		inst, _ := o.AddInstance(n)
		_ = inst.AddAttribute(object.NewAttribute(object.AttributeMetadata{
			ID: AttrInterfaceSpeed, Name: "InterfaceSpeed", Flags: object.FlagGetable,
		}, object.Uint32(&l.speed)))
		_ = inst.AddAttribute(object.NewAttribute(object.AttributeMetadata{
			ID: AttrInterfaceFlags, Name: "InterfaceFlags", Flags: object.FlagGetable,
		}, object.Uint32(&l.flags)))
		_ = inst.AddAttribute(object.NewAttribute(object.AttributeMetadata{
			ID: AttrPhysicalAddress, Name: "PhysicalAddress", Flags: object.FlagGetable,
		}, object.Bytes(l.mac)))
		_ = inst.AddAttribute(object.NewAttribute(object.AttributeMetadata{
			ID: AttrInterfaceCounters, Name: "InterfaceCounters", Flags: object.FlagGetable | object.FlagGetAndClear,
		}, object.Uint32s(l.iface)))
		_ = inst.AddAttribute(object.NewAttribute(object.AttributeMetadata{
			ID: AttrMediaCounters, Name: "MediaCounters", Flags: object.FlagGetable | object.FlagGetAndClear,
		}, object.Uint32s(l.media)))
	}
	return o
}

// Ports returns the number of instances.
func (o *Object) Ports() int {
	return len(o.links)
}

// EnableCounterCallbacks flags attributes 4 and 5 of every instance for the
// PreGet and PostGet callbacks.
func (o *Object) EnableCounterCallbacks() {
	for _, inst := range o.Instances() {
		for _, id := range []uint16{AttrInterfaceCounters, AttrMediaCounters} {
			if attr, ok := inst.Attribute(id); ok {
				attr.AddFlags(object.FlagPreGet | object.FlagPostGet)
			}
		}
	}
}
