package stack

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/eipdev/eipdev-go/pkg/cip"
	"github.com/eipdev/eipdev-go/pkg/connpoint"
	"github.com/eipdev/eipdev-go/pkg/ethlink"
	"github.com/eipdev/eipdev-go/pkg/log"
	"github.com/eipdev/eipdev-go/pkg/object"
	"github.com/eipdev/eipdev-go/pkg/qos"
	"github.com/eipdev/eipdev-go/pkg/tcpip"
)

// Assembly object attribute IDs.
const (
	AttrAssemblyData uint16 = 3
	AttrAssemblySize uint16 = 4
)

// Host defaults.
const (
	DefaultRPI               = 10 * time.Millisecond
	DefaultTimeoutMultiplier = 4
)

// Config configures a Host.
type Config struct {
	// Identity is reported by the Identity object. Zero value selects
	// DefaultIdentity.
	Identity Identity

	// EthernetPorts creates one Ethernet Link instance per port. Empty
	// selects a single 100 Mbit/s full duplex port.
	EthernetPorts []ethlink.Port

	// DefaultRPI is used for connections opened without an RPI.
	DefaultRPI time.Duration

	// DefaultTimeoutMultiplier is used for connections opened without one.
	DefaultTimeoutMultiplier int

	// OnProduce receives every produced input packet.
	OnProduce func(conn ConnectionInfo, data []byte)

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// Logger for debug output (optional).
	Logger *slog.Logger

	// TraceLogger receives connection and explicit messaging events (optional).
	TraceLogger log.Logger
}

// Host is the reference stack.
type Host struct {
	config Config
	logger *slog.Logger
	trace  log.Logger
	app    Application

	dict       *object.Dictionary
	assemblies map[uint16][]byte
	points     []connpoint.Point
	conns      []*connection

	qos      *qos.Object
	tcpip    *tcpip.Object
	ethlink  *ethlink.Object
	identity Identity

	work  chan func()
	scans uint64
}

// NewHost creates a host with its object dictionary populated.
func NewHost(config Config) *Host {
	if config.Identity == (Identity{}) {
		config.Identity = DefaultIdentity
	}
	if len(config.EthernetPorts) == 0 {
		config.EthernetPorts = []ethlink.Port{{
			Speed: 100,
			Flags: ethlink.FlagLinkActive | ethlink.FlagFullDuplex,
		}}
	}
	if config.DefaultRPI <= 0 {
		config.DefaultRPI = DefaultRPI
	}
	if config.DefaultTimeoutMultiplier <= 0 {
		config.DefaultTimeoutMultiplier = DefaultTimeoutMultiplier
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	h := &Host{
		config:     config,
		logger:     config.Logger,
		trace:      config.TraceLogger,
		dict:       object.NewDictionary(),
		assemblies: make(map[uint16][]byte),
		qos:        qos.New(),
		tcpip:      tcpip.New(),
		ethlink:    ethlink.New(config.EthernetPorts...),
		identity:   config.Identity,
		work:       make(chan func()),
	}

	assemblies := object.NewClass(cip.ClassAssembly, 2)
	assemblies.SetCallback(object.PreGet, h.assemblyPreGet)
	assemblies.SetCallback(object.PreSet, h.assemblyPreSet)
	assemblies.SetCallback(object.PostSet, h.assemblyPostSet)

	for _, c := range []*object.Class{
		newIdentityClass(&h.identity, h.identityStatus),
		assemblies,
		h.qos.Class,
		h.tcpip.Class,
		h.ethlink.Class,
	} {
		// Class codes are distinct.
		_ = h.dict.AddClass(c)
	}
	return h
}

// Attach sets the application whose hooks the host calls.
func (h *Host) Attach(app Application) {
	h.app = app
}

// Identity returns the identity reported by the Identity object.
func (h *Host) Identity() Identity {
	return h.identity
}

// Dictionary returns the object dictionary.
func (h *Host) Dictionary() *object.Dictionary {
	return h.dict
}

// QoS returns the QoS object.
func (h *Host) QoS() *qos.Object {
	return h.qos
}

// TCPIP returns the TCP/IP Interface object.
func (h *Host) TCPIP() *tcpip.Object {
	return h.tcpip
}

// EthernetLink returns the Ethernet Link object.
func (h *Host) EthernetLink() *ethlink.Object {
	return h.ethlink
}

// InsertGetSetCallback installs a class callback in the object dictionary.
func (h *Host) InsertGetSetCallback(class cip.ClassCode, cb object.Callback, kind object.CallbackKind) error {
	return h.dict.InsertGetSetCallback(class, cb, kind)
}

// InstallAssembly creates Assembly instance id with its data attribute
// bound to data. The host reads and writes data in place.
func (h *Host) InstallAssembly(id uint16, data []byte) error {
	if id == 0 {
		return fmt.Errorf("%w: 0", ErrInvalidAssembly)
	}
	if len(data) > 0xFFFF {
		return fmt.Errorf("%w: %d holds %d bytes", ErrInvalidAssembly, id, len(data))
	}
	class, _ := h.dict.Class(cip.ClassAssembly)
	inst, err := class.AddInstance(id)
	if err != nil {
		return err
	}

	size := uint16(len(data))
	_ = inst.AddAttribute(object.NewAttribute(object.AttributeMetadata{
		ID:    AttrAssemblyData,
		Name:  "Data",
		Flags: object.FlagGetSet | object.FlagPreGet | object.FlagPreSet | object.FlagPostSet,
	}, object.Bytes(data)))
	_ = inst.AddAttribute(object.NewAttribute(object.AttributeMetadata{
		ID:    AttrAssemblySize,
		Name:  "Size",
		Flags: object.FlagGetable,
	}, object.Uint16(&size)))

	h.assemblies[id] = data
	h.debugLog("InstallAssembly", "id", id, "size", len(data))
	return nil
}

// ConfigureConnectionPoint makes p available to OpenConnection.
func (h *Host) ConfigureConnectionPoint(p connpoint.Point) error {
	for _, id := range []uint16{p.OutputID, p.InputID, p.ConfigID} {
		if _, ok := h.assemblies[id]; !ok {
			return fmt.Errorf("%w: %d not installed", ErrInvalidAssembly, id)
		}
	}
	h.points = append(h.points, p)
	h.debugLog("ConfigureConnectionPoint", "point", p.String())
	return nil
}

// Points returns the configured connection points.
func (h *Host) Points() []connpoint.Point {
	out := make([]connpoint.Point, len(h.points))
	copy(out, h.points)
	return out
}

// Assembly returns a copy of the data of assembly id.
func (h *Host) Assembly(id uint16) ([]byte, bool) {
	buf, ok := h.assemblies[id]
	if !ok {
		return nil, false
	}
	return append([]byte{}, buf...), true
}

// AssemblyIDs returns the installed assembly ids in ascending order.
func (h *Host) AssemblyIDs() []uint16 {
	ids := make([]uint16, 0, len(h.assemblies))
	for id := range h.assemblies {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Scans returns the number of completed scans.
func (h *Host) Scans() uint64 {
	return h.scans
}

// GetAttributeSingle processes an explicit Get_Attribute_Single request.
func (h *Host) GetAttributeSingle(class cip.ClassCode, instance, attribute uint16) ([]byte, error) {
	data, err := h.dict.GetAttributeSingle(class, instance, attribute)
	h.traceAttribute(class, instance, attribute, cip.ServiceGetAttributeSingle, len(data), err)
	return data, err
}

// SetAttributeSingle processes an explicit Set_Attribute_Single request.
func (h *Host) SetAttributeSingle(class cip.ClassCode, instance, attribute uint16, data []byte) error {
	err := h.dict.SetAttributeSingle(class, instance, attribute, data)
	h.traceAttribute(class, instance, attribute, cip.ServiceSetAttributeSingle, len(data), err)
	return err
}

// GetAndClear processes the Ethernet Link Get_and_Clear request.
func (h *Host) GetAndClear(class cip.ClassCode, instance, attribute uint16) ([]byte, error) {
	data, err := h.dict.GetAndClear(class, instance, attribute)
	h.traceAttribute(class, instance, attribute, cip.ServiceGetAndClear, len(data), err)
	return data, err
}

// Reset processes the Identity object's Reset service.
func (h *Host) Reset(t cip.ResetType) error {
	if h.app == nil {
		return fmt.Errorf("%w: %w", ErrNotAttached, cip.Err(cip.StatusDeviceStateConflict))
	}
	h.debugLog("Reset", "type", t.String())

	var err error
	switch t {
	case cip.ResetPowerCycle:
		err = h.app.ResetDevice()
	case cip.ResetFactoryDefaults:
		err = h.app.ResetToInitialConfiguration()
	default:
		return cip.Err(cip.StatusInvalidParameter)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", cip.Err(cip.StatusDeviceStateConflict), err)
	}
	return nil
}

// assemblyPreGet lets the application refresh data before an explicit read.
func (h *Host) assemblyPreGet(inst *object.Instance, attr *object.Attribute, _ cip.Service) error {
	if attr.ID() == AttrAssemblyData && h.app != nil {
		h.app.OnDataToSend(inst.Number())
	}
	return nil
}

// assemblyPreSet refuses writes to data consumed by an open connection.
func (h *Host) assemblyPreSet(inst *object.Instance, attr *object.Attribute, _ cip.Service) error {
	if attr.ID() != AttrAssemblyData {
		return nil
	}
	for _, c := range h.conns {
		if c.point.OutputID == inst.Number() && len(h.assemblies[c.point.OutputID]) > 0 {
			return cip.Err(cip.StatusAttributeNotSettable)
		}
	}
	return nil
}

// assemblyPostSet hands explicitly written data to the application.
func (h *Host) assemblyPostSet(inst *object.Instance, attr *object.Attribute, _ cip.Service) error {
	if attr.ID() != AttrAssemblyData || h.app == nil {
		return nil
	}
	if err := h.app.OnDataReceived(inst.Number()); err != nil {
		return fmt.Errorf("%w: %w", cip.Err(cip.StatusInvalidAttributeValue), err)
	}
	return nil
}

func (h *Host) identityStatus() uint16 {
	status := identityStatusConfigured
	for _, c := range h.conns {
		if c.point.Role == connpoint.RoleExclusiveOwner {
			status |= identityStatusOwned
			break
		}
	}
	return status
}

func (h *Host) traceAttribute(class cip.ClassCode, instance, attribute uint16, service cip.Service, size int, err error) {
	status := cip.StatusOf(err)
	h.debugLog("explicit", "service", service.String(), "class", class.String(),
		"instance", instance, "attribute", attribute, "status", status.String())

	if h.trace == nil {
		return
	}
	e := log.Event{
		Timestamp: h.config.Now(),
		Layer:     log.LayerExplicit,
		Category:  log.CategoryAttribute,
		Attribute: &log.AttributeEvent{
			Class:     uint16(class),
			Instance:  instance,
			Attribute: attribute,
			Service:   uint8(service),
			Status:    uint8(status),
			Size:      size,
		},
	}
	if service.IsSet() {
		e.Direction = log.DirectionIn
	} else {
		e.Direction = log.DirectionOut
	}
	if class == cip.ClassAssembly {
		e.AssemblyID = instance
	}
	h.trace.Log(e)
}

// debugLog logs a debug message if logging is enabled.
func (h *Host) debugLog(msg string, args ...any) {
	if h.logger != nil {
		h.logger.Debug(msg, args...)
	}
}
