package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/eipdev/eipdev-go/pkg/assembly"
	"github.com/eipdev/eipdev-go/pkg/cip"
	"github.com/eipdev/eipdev-go/pkg/connpoint"
	"github.com/eipdev/eipdev-go/pkg/ethlink"
	"github.com/eipdev/eipdev-go/pkg/failsafe"
	"github.com/eipdev/eipdev-go/pkg/log"
	"github.com/eipdev/eipdev-go/pkg/nvdata"
	"github.com/eipdev/eipdev-go/pkg/object"
	"github.com/eipdev/eipdev-go/pkg/qos"
	"github.com/eipdev/eipdev-go/pkg/tcpip"
)

// Host is the part of the CIP stack the device drives during startup and
// reset.
type Host interface {
	assembly.Installer
	connpoint.Configurer

	InsertGetSetCallback(class cip.ClassCode, cb object.Callback, kind object.CallbackKind) error
	CloseAllConnections() int

	QoS() *qos.Object
	TCPIP() *tcpip.Object
	EthernetLink() *ethlink.Object
}

// ConfigValidator checks the contents of the configuration assembly.
type ConfigValidator func(data []byte) error

// AcceptAll accepts any configuration data.
func AcceptAll([]byte) error { return nil }

// ExplicitHandler observes the explicit assembly.
type ExplicitHandler interface {
	// OnExplicitWrite is called after the explicit assembly was written.
	OnExplicitWrite(data []byte) error

	// OnExplicitRead may update buf before the explicit assembly is read.
	OnExplicitRead(buf []byte)
}

// FreshnessFunc reports whether input id holds new data worth sending.
type FreshnessFunc func(id uint16) bool

// Config configures a Device.
type Config struct {
	// ConfigValidator checks configuration data. Defaults to AcceptAll.
	ConfigValidator ConfigValidator

	// Explicit observes the explicit assembly (optional).
	Explicit ExplicitHandler

	// Freshness decides OnDataToSend. Defaults to always fresh.
	Freshness FreshnessFunc

	// Failsafe selects what happens to output data when its connection ends.
	Failsafe failsafe.Config

	// NVStore persists QoS and TCP/IP attributes (optional).
	NVStore *nvdata.Store

	// EthernetCounters enables the Ethernet Link counter callbacks (optional).
	EthernetCounters ethlink.CounterSource

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// Logger for debug output (optional).
	Logger *slog.Logger

	// TraceLogger receives application layer events (optional).
	TraceLogger log.Logger
}

// RuntimeState is the device state touched by the reset operations.
type RuntimeState struct {
	EncapsulationInactivityTimeout uint16
	QoS                            qos.Values
}

// Device is the adapter application.
type Device struct {
	config Config
	logger *slog.Logger
	trace  log.Logger

	host     Host
	store    *assembly.Store
	registry *assembly.Registry
	wiring   *connpoint.Wiring
	guard    *failsafe.Guard
	handlers map[uint16]handler

	running bool
	scans   uint64
}

// NewDevice creates a device. Call Initialize before attaching it to a host.
func NewDevice(config Config) *Device {
	if config.ConfigValidator == nil {
		config.ConfigValidator = AcceptAll
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	store := assembly.NewStore()
	return &Device{
		config: config,
		logger: config.Logger,
		trace:  config.TraceLogger,
		store:  store,
		guard:  failsafe.NewGuard(store, config.Failsafe),
	}
}

// Initialize declares the assembly instances, configures the connection
// points and installs the attribute callbacks on host. Any error is fatal to
// startup.
func (d *Device) Initialize(host Host) error {
	if d.host != nil {
		return ErrAlreadyInitialized
	}
	d.registry = assembly.NewRegistry(host)
	d.wiring = connpoint.NewWiring(d.registry, host)

	steps := []struct {
		name string
		fn   func(Host) error
	}{
		{"assemblies", d.createAssemblies},
		{"connection points", d.configureConnectionPoints},
		{"failsafe", d.watchOutputs},
		{"nv data", d.installNvData},
		{"ethernet link", d.installEthernetLink},
	}
	for _, s := range steps {
		if err := s.fn(host); err != nil {
			d.discard()
			return fmt.Errorf("initialize %s: %w", s.name, err)
		}
		d.debugLog("Initialize", "step", s.name)
	}

	d.handlers = buildHandlers(d.registry)
	d.guard.OnStateChange(d.traceFailsafe)
	d.host = host
	return nil
}

// discard drops the buffers and wiring of a failed Initialize so that a
// retry starts from an empty device.
func (d *Device) discard() {
	d.store = assembly.NewStore()
	d.guard = failsafe.NewGuard(d.store, d.config.Failsafe)
	d.registry = nil
	d.wiring = nil
}

func (d *Device) createAssemblies(Host) error {
	for _, p := range profile {
		buf, err := d.store.Allocate(p.id, p.size)
		if err != nil {
			return err
		}
		if err := d.registry.Register(p.id, p.dir, buf, p.size); err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) configureConnectionPoints(Host) error {
	points := []struct {
		role connpoint.Role
		out  uint16
	}{
		{connpoint.RoleExclusiveOwner, OutputID},
		{connpoint.RoleInputOnly, HeartbeatInputOnlyID},
		{connpoint.RoleListenOnly, HeartbeatListenOnlyID},
	}
	for _, p := range points {
		if err := d.wiring.Configure(p.role, p.out, InputID, ConfigID); err != nil {
			return err
		}
	}
	return nil
}

// watchOutputs puts every data-carrying output under the failsafe guard.
func (d *Device) watchOutputs(Host) error {
	for _, inst := range d.registry.Instances() {
		if inst.Direction == assembly.DirectionOutput && inst.Size > 0 {
			if err := d.guard.Watch(inst.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// installNvData restores persisted attributes and saves them on every set.
func (d *Device) installNvData(host Host) error {
	s := d.config.NVStore
	if s == nil {
		return nil
	}
	q, t := host.QoS(), host.TCPIP()
	if err := nvdata.Restore(s, q, t); err != nil {
		return err
	}
	q.UpdateUsedSetValues()

	if err := host.InsertGetSetCallback(cip.ClassQoS, nvdata.QoSSetCallback(s, q), object.NvData); err != nil {
		return err
	}
	return host.InsertGetSetCallback(cip.ClassTCPIPInterface, nvdata.TCPIPSetCallback(s, t), object.NvData)
}

func (d *Device) installEthernetLink(host Host) error {
	src := d.config.EthernetCounters
	if src == nil {
		return nil
	}
	obj := host.EthernetLink()
	b := ethlink.NewBridge(obj, src)
	if err := host.InsertGetSetCallback(cip.ClassEthernetLink, b.PreGet, object.PreGet); err != nil {
		return err
	}
	if err := host.InsertGetSetCallback(cip.ClassEthernetLink, b.PostGet, object.PostGet); err != nil {
		return err
	}
	obj.EnableCounterCallbacks()
	return nil
}

// Store returns the assembly buffer store.
func (d *Device) Store() *assembly.Store {
	return d.store
}

// Registry returns the assembly registry, or nil before Initialize.
func (d *Device) Registry() *assembly.Registry {
	return d.registry
}

// Points returns the configured connection points.
func (d *Device) Points() []connpoint.Point {
	if d.wiring == nil {
		return nil
	}
	return d.wiring.Points()
}

// Guard returns the failsafe guard.
func (d *Device) Guard() *failsafe.Guard {
	return d.guard
}

// Running reports whether the last received output data carried the run flag
// and its connection is still open.
func (d *Device) Running() bool {
	return d.running
}

// Scans returns the number of PollTick calls.
func (d *Device) Scans() uint64 {
	return d.scans
}

// RuntimeState returns the current encapsulation timeout and QoS values.
func (d *Device) RuntimeState() (RuntimeState, error) {
	if d.host == nil {
		return RuntimeState{}, ErrNotInitialized
	}
	return RuntimeState{
		EncapsulationInactivityTimeout: d.host.TCPIP().EncapsulationInactivityTimeout(),
		QoS:                            d.host.QoS().Values(),
	}, nil
}

// PollTick is called once per scan.
func (d *Device) PollTick() {
	d.scans++
}

// debugLog logs a debug message if logging is enabled.
func (d *Device) debugLog(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Debug(msg, args...)
	}
}

func (d *Device) emit(e log.Event) {
	if d.trace == nil {
		return
	}
	e.Timestamp = d.config.Now()
	e.Layer = log.LayerApplication
	d.trace.Log(e)
}
