package app

import (
	"encoding/binary"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eipdev/eipdev-go/pkg/assembly"
	"github.com/eipdev/eipdev-go/pkg/cip"
	"github.com/eipdev/eipdev-go/pkg/connpoint"
	"github.com/eipdev/eipdev-go/pkg/ethlink"
	"github.com/eipdev/eipdev-go/pkg/failsafe"
	"github.com/eipdev/eipdev-go/pkg/log"
	"github.com/eipdev/eipdev-go/pkg/nvdata"
	"github.com/eipdev/eipdev-go/pkg/object"
	"github.com/eipdev/eipdev-go/pkg/qos"
	"github.com/eipdev/eipdev-go/pkg/stack"
	"github.com/eipdev/eipdev-go/pkg/tcpip"
)

var (
	_ Host              = (*stack.Host)(nil)
	_ stack.Application = (*Device)(nil)
)

// recordingHost logs every startup call before passing it on.
type recordingHost struct {
	*stack.Host
	calls  []string
	failOn string
}

func (r *recordingHost) record(call string) error {
	r.calls = append(r.calls, call)
	if call == r.failOn {
		return errors.New("refused")
	}
	return nil
}

func (r *recordingHost) InstallAssembly(id uint16, data []byte) error {
	if err := r.record(fmt.Sprintf("assembly %d/%d", id, len(data))); err != nil {
		return err
	}
	return r.Host.InstallAssembly(id, data)
}

func (r *recordingHost) ConfigureConnectionPoint(p connpoint.Point) error {
	if err := r.record("point " + p.String()); err != nil {
		return err
	}
	return r.Host.ConfigureConnectionPoint(p)
}

func (r *recordingHost) InsertGetSetCallback(class cip.ClassCode, cb object.Callback, kind object.CallbackKind) error {
	if err := r.record(fmt.Sprintf("callback %s %s", class, kind)); err != nil {
		return err
	}
	return r.Host.InsertGetSetCallback(class, cb, kind)
}

type env struct {
	host  *stack.Host
	dev   *Device
	trace *log.MemoryLogger
}

func newEnv(t *testing.T, cfg Config) *env {
	t.Helper()
	e := &env{
		host:  stack.NewHost(stack.Config{}),
		trace: log.NewMemoryLogger(512),
	}
	cfg.TraceLogger = e.trace
	e.dev = NewDevice(cfg)
	require.NoError(t, e.dev.Initialize(e.host))
	e.host.Attach(e.dev)
	return e
}

func (e *env) openOwner(t *testing.T) uuid.UUID {
	t.Helper()
	id, err := e.host.OpenConnection(stack.OpenRequest{
		Role: connpoint.RoleExclusiveOwner, OutputID: OutputID, InputID: InputID, ConfigID: ConfigID,
	})
	require.NoError(t, err)
	return id
}

func pattern(size int, seed byte) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = seed + byte(i)
	}
	return b
}

func TestInitializeOrder(t *testing.T) {
	host := &recordingHost{Host: stack.NewHost(stack.Config{})}
	dev := NewDevice(Config{
		NVStore:          nvdata.NewStore(t.TempDir()),
		EthernetCounters: ethlink.NewStaticCounters(1),
	})
	require.NoError(t, dev.Initialize(host))

	assert.Equal(t, []string{
		"assembly 100/32",
		"assembly 150/32",
		"assembly 151/10",
		"assembly 152/0",
		"assembly 153/0",
		"assembly 154/32",
		"point EXCLUSIVE_OWNER#0(out=150 in=100 cfg=151)",
		"point INPUT_ONLY#0(out=152 in=100 cfg=151)",
		"point LISTEN_ONLY#0(out=153 in=100 cfg=151)",
		"callback QoS NvData",
		"callback TCPIPInterface NvData",
		"callback EthernetLink PreGet",
		"callback EthernetLink PostGet",
	}, host.calls)

	assert.ErrorIs(t, dev.Initialize(host), ErrAlreadyInitialized)
}

func TestInitializeWithoutOptionalBridges(t *testing.T) {
	host := &recordingHost{Host: stack.NewHost(stack.Config{})}
	require.NoError(t, NewDevice(Config{}).Initialize(host))
	assert.Len(t, host.calls, 9)
}

func TestInitializeFailures(t *testing.T) {
	tests := []struct {
		name   string
		failOn string
		step   string
	}{
		{"assembly", "assembly 151/10", "initialize assemblies"},
		{"point", "point INPUT_ONLY#0(out=152 in=100 cfg=151)", "initialize connection points"},
		{"nv callback", "callback TCPIPInterface NvData", "initialize nv data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := &recordingHost{Host: stack.NewHost(stack.Config{}), failOn: tt.failOn}
			dev := NewDevice(Config{NVStore: nvdata.NewStore(t.TempDir())})
			err := dev.Initialize(host)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.step)
			assert.Equal(t, tt.failOn, host.calls[len(host.calls)-1], "nothing runs after the failing step")
		})
	}
}

func TestInitializeRetryAfterFailure(t *testing.T) {
	dev := NewDevice(Config{})

	for i := 0; i < 2; i++ {
		host := &recordingHost{Host: stack.NewHost(stack.Config{}), failOn: "point EXCLUSIVE_OWNER#0(out=150 in=100 cfg=151)"}
		err := dev.Initialize(host)
		require.Error(t, err, "attempt %d", i)
		assert.Contains(t, err.Error(), "initialize connection points", "attempt %d", i)
		assert.NotErrorIs(t, err, assembly.ErrDuplicateID, "attempt %d", i)
		assert.Empty(t, dev.Store().IDs(), "attempt %d left buffers behind", i)
		assert.Nil(t, dev.Registry(), "attempt %d left a registry behind", i)
	}

	host := stack.NewHost(stack.Config{})
	require.NoError(t, dev.Initialize(host))
	assert.Len(t, dev.Store().IDs(), 6)
	assert.Len(t, dev.Points(), 3)
	assert.True(t, dev.Guard().Watched(OutputID))
}

func TestInitializeRejectsBadPattern(t *testing.T) {
	dev := NewDevice(Config{Failsafe: failsafe.Config{Policy: failsafe.PolicyPattern, Pattern: []byte{1, 2}}})
	err := dev.Initialize(stack.NewHost(stack.Config{}))
	assert.ErrorIs(t, err, failsafe.ErrInvalidPattern)
}

func TestOutputMirroredToInput(t *testing.T) {
	e := newEnv(t, Config{})
	conn := e.openOwner(t)

	for seed := byte(0); seed < 3; seed++ {
		data := pattern(OutputSize, seed*40)
		require.NoError(t, e.host.DeliverOutput(conn, data, true))
		in, _ := e.dev.Store().Read(InputID)
		assert.Equal(t, data, in)
	}

	// Explicit writes to the output while unconnected are mirrored too.
	require.NoError(t, e.host.CloseConnection(conn))
	data := pattern(OutputSize, 0x80)
	require.NoError(t, e.host.SetAttributeSingle(cip.ClassAssembly, OutputID, stack.AttrAssemblyData, data))
	in, _ := e.host.Assembly(InputID)
	assert.Equal(t, data, in)
}

func TestHooksTotal(t *testing.T) {
	e := newEnv(t, Config{})
	ids := []uint16{InputID, OutputID, ConfigID, HeartbeatInputOnlyID, HeartbeatListenOnlyID, ExplicitID, 0, 1, 999, 0xFFFF}
	for _, id := range ids {
		assert.NoError(t, e.dev.OnDataReceived(id), "id %d", id)
		assert.True(t, e.dev.OnDataToSend(id), "id %d", id)
	}
}

func TestUnknownIDsLeaveBuffersUntouched(t *testing.T) {
	e := newEnv(t, Config{})
	store := e.dev.Store()

	known := make(map[uint16]bool)
	before := make(map[uint16][]byte)
	for i, id := range store.IDs() {
		known[id] = true
		size := store.Size(id)
		if size == 0 {
			continue
		}
		require.NoError(t, store.Write(id, pattern(size, byte(0x10*(i+1)))))
		before[id], _ = store.Read(id)
	}
	require.Len(t, known, 6)

	for id := 0; id <= 0xFFFF; id++ {
		if known[uint16(id)] {
			continue
		}
		if err := e.dev.OnDataReceived(uint16(id)); err != nil {
			t.Fatalf("OnDataReceived(%d) = %v", id, err)
		}
		if !e.dev.OnDataToSend(uint16(id)) {
			t.Fatalf("OnDataToSend(%d) = false", id)
		}
	}

	for id, want := range before {
		got, err := store.Read(id)
		require.NoError(t, err)
		assert.Equal(t, want, got, "assembly %d", id)
	}
}

func TestFreshnessExtension(t *testing.T) {
	var asked []uint16
	e := newEnv(t, Config{Freshness: func(id uint16) bool {
		asked = append(asked, id)
		return false
	}})
	assert.False(t, e.dev.OnDataToSend(InputID))
	assert.Equal(t, []uint16{InputID}, asked)
}

func TestConfigAcceptedByDefault(t *testing.T) {
	e := newEnv(t, Config{})
	for _, cfg := range [][]byte{make([]byte, ConfigSize), pattern(ConfigSize, 0xF0)} {
		_, err := e.host.OpenConnection(stack.OpenRequest{
			Role: connpoint.RoleInputOnly, OutputID: HeartbeatInputOnlyID, InputID: InputID, ConfigID: ConfigID,
			ConfigData: cfg,
		})
		require.NoError(t, err)
		got, _ := e.dev.Store().Read(ConfigID)
		assert.Equal(t, cfg, got)
	}
}

func TestConfigValidator(t *testing.T) {
	e := newEnv(t, Config{ConfigValidator: func(data []byte) error {
		if data[0] != 0x01 {
			return errors.New("unsupported version")
		}
		return nil
	}})

	require.NoError(t, e.dev.Store().Write(ConfigID, pattern(ConfigSize, 0x02)))
	err := e.dev.OnDataReceived(ConfigID)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = e.host.OpenConnection(stack.OpenRequest{
		Role: connpoint.RoleExclusiveOwner, OutputID: OutputID, InputID: InputID, ConfigID: ConfigID,
		ConfigData: pattern(ConfigSize, 0x02),
	})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.ErrorIs(t, err, stack.ErrConfigurationRejected)

	_, err = e.host.OpenConnection(stack.OpenRequest{
		Role: connpoint.RoleExclusiveOwner, OutputID: OutputID, InputID: InputID, ConfigID: ConfigID,
		ConfigData: pattern(ConfigSize, 0x01),
	})
	assert.NoError(t, err)
}

type explicitRecorder struct {
	written []byte
	reads   int
	err     error
}

func (x *explicitRecorder) OnExplicitWrite(data []byte) error {
	x.written = data
	return x.err
}

func (x *explicitRecorder) OnExplicitRead(buf []byte) {
	x.reads++
	binary.LittleEndian.PutUint32(buf, uint32(x.reads))
}

func TestExplicitHandler(t *testing.T) {
	x := &explicitRecorder{}
	e := newEnv(t, Config{Explicit: x})

	data := pattern(ExplicitSize, 3)
	require.NoError(t, e.host.SetAttributeSingle(cip.ClassAssembly, ExplicitID, stack.AttrAssemblyData, data))
	assert.Equal(t, data, x.written)

	got, err := e.host.GetAttributeSingle(cip.ClassAssembly, ExplicitID, stack.AttrAssemblyData)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(got))

	x.err = errors.New("busy")
	err = e.host.SetAttributeSingle(cip.ClassAssembly, ExplicitID, stack.AttrAssemblyData, data)
	assert.Equal(t, cip.StatusInvalidAttributeValue, cip.StatusOf(err))
}

func TestFailsafePolicies(t *testing.T) {
	safe := pattern(OutputSize, 0xA0)
	tests := []struct {
		name string
		cfg  failsafe.Config
		want func(last []byte) []byte
	}{
		{"zero", failsafe.Config{}, func([]byte) []byte { return make([]byte, OutputSize) }},
		{"hold", failsafe.Config{Policy: failsafe.PolicyHold}, func(last []byte) []byte { return last }},
		{"pattern", failsafe.Config{Policy: failsafe.PolicyPattern, Pattern: safe}, func([]byte) []byte { return safe }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, Config{Failsafe: tt.cfg})
			g := e.dev.Guard()
			assert.Equal(t, failsafe.StateInactive, g.State(OutputID))

			conn := e.openOwner(t)
			assert.Equal(t, failsafe.StateNormal, g.State(OutputID))

			last := pattern(OutputSize, 1)
			require.NoError(t, e.host.DeliverOutput(conn, last, true))
			require.NoError(t, e.host.CloseConnection(conn))

			assert.Equal(t, failsafe.StateFailsafe, g.State(OutputID))
			out, _ := e.dev.Store().Read(OutputID)
			assert.Equal(t, tt.want(last), out)
			assert.False(t, e.dev.Running())

			e.openOwner(t)
			assert.Equal(t, failsafe.StateNormal, g.State(OutputID))
		})
	}
}

func TestFailsafeOnTimeout(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	host := stack.NewHost(stack.Config{Now: func() time.Time { return now }})
	dev := NewDevice(Config{})
	require.NoError(t, dev.Initialize(host))
	host.Attach(dev)

	conn, err := host.OpenConnection(stack.OpenRequest{
		Role: connpoint.RoleExclusiveOwner, OutputID: OutputID, InputID: InputID, ConfigID: ConfigID,
		RPI: 10 * time.Millisecond, TimeoutMultiplier: 4,
	})
	require.NoError(t, err)
	require.NoError(t, host.DeliverOutput(conn, pattern(OutputSize, 9), true))
	assert.True(t, dev.Running())

	now = now.Add(50 * time.Millisecond)
	host.Scan(now)

	assert.True(t, dev.Guard().IsFailsafe(OutputID))
	out, _ := dev.Store().Read(OutputID)
	assert.Equal(t, make([]byte, OutputSize), out)
	assert.Equal(t, uint64(1), dev.Scans())
}

func TestHeartbeatOutputsNeverFailsafe(t *testing.T) {
	e := newEnv(t, Config{})
	e.dev.OnConnectionEvent(HeartbeatInputOnlyID, InputID, cip.EventTimedOut)
	e.dev.OnConnectionEvent(HeartbeatListenOnlyID, InputID, cip.EventClosed)
	assert.False(t, e.dev.Guard().Watched(HeartbeatInputOnlyID))
	assert.False(t, e.dev.Guard().IsFailsafe(HeartbeatListenOnlyID))
	assert.Equal(t, []uint16{OutputID}, watchedOutputs(e.dev))
}

func watchedOutputs(d *Device) []uint16 {
	var ids []uint16
	for _, inst := range d.Registry().Instances() {
		if d.Guard().Watched(inst.ID) {
			ids = append(ids, inst.ID)
		}
	}
	return ids
}

func TestRunIdle(t *testing.T) {
	e := newEnv(t, Config{})
	conn := e.openOwner(t)

	require.NoError(t, e.host.DeliverOutput(conn, pattern(OutputSize, 1), false))
	assert.False(t, e.dev.Running())
	in, _ := e.dev.Store().Read(InputID)
	assert.Equal(t, pattern(OutputSize, 1), in, "idle data is still applied")

	require.NoError(t, e.host.DeliverOutput(conn, pattern(OutputSize, 2), true))
	assert.True(t, e.dev.Running())
}

func TestListenOnlyClosesWithController(t *testing.T) {
	e := newEnv(t, Config{})
	conn := e.openOwner(t)
	_, err := e.host.OpenConnection(stack.OpenRequest{
		Role: connpoint.RoleListenOnly, OutputID: HeartbeatListenOnlyID, InputID: InputID, ConfigID: ConfigID,
	})
	require.NoError(t, err)

	require.NoError(t, e.host.CloseConnection(conn))
	assert.Empty(t, e.host.Connections())
}

func TestResetDevice(t *testing.T) {
	e := newEnv(t, Config{})
	e.openOwner(t)
	_, err := e.host.OpenConnection(stack.OpenRequest{
		Role: connpoint.RoleInputOnly, OutputID: HeartbeatInputOnlyID, InputID: InputID, ConfigID: ConfigID,
	})
	require.NoError(t, err)

	require.NoError(t, e.host.SetAttributeSingle(cip.ClassQoS, 1, qos.AttrDSCPLow, []byte{20}))
	assert.Equal(t, uint8(31), e.host.QoS().Used().DSCPLow)

	require.NoError(t, e.host.Reset(cip.ResetPowerCycle))
	assert.Empty(t, e.host.Connections())
	assert.Equal(t, uint8(20), e.host.QoS().Used().DSCPLow)

	var closed []int
	for _, ev := range e.trace.Events() {
		if ev.Category == log.CategoryReset {
			closed = append(closed, ev.Reset.ClosedConnections)
		}
	}
	assert.Equal(t, []int{2}, closed)
}

func TestResetToInitialConfigurationIdempotent(t *testing.T) {
	e := newEnv(t, Config{})
	require.NoError(t, e.host.TCPIP().SetEncapsulationInactivityTimeout(600))
	require.NoError(t, e.host.SetAttributeSingle(cip.ClassQoS, 1, qos.AttrDSCPExplicit, []byte{10}))
	e.openOwner(t)

	want := RuntimeState{EncapsulationInactivityTimeout: 120, QoS: qos.Defaults()}
	for i := 0; i < 2; i++ {
		require.NoError(t, e.host.Reset(cip.ResetFactoryDefaults))
		state, err := e.dev.RuntimeState()
		require.NoError(t, err)
		assert.Equal(t, want, state)
		assert.Equal(t, qos.Defaults(), e.host.QoS().Used())
		assert.Empty(t, e.host.Connections())
	}
}

func TestResetBeforeInitialize(t *testing.T) {
	dev := NewDevice(Config{})
	assert.ErrorIs(t, dev.ResetDevice(), ErrNotInitialized)
	assert.ErrorIs(t, dev.ResetToInitialConfiguration(), ErrNotInitialized)
	_, err := dev.RuntimeState()
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestNvDataRoundTrip(t *testing.T) {
	dir := t.TempDir()
	e := newEnv(t, Config{NVStore: nvdata.NewStore(dir)})

	require.NoError(t, e.host.SetAttributeSingle(cip.ClassQoS, 1, qos.AttrDSCPUrgent, []byte{40}))
	timeout := binary.LittleEndian.AppendUint16(nil, 300)
	require.NoError(t, e.host.SetAttributeSingle(cip.ClassTCPIPInterface, 1, tcpip.AttrEncapsulationInactivityTimeout, timeout))

	// A fresh device over the same directory starts with the saved values.
	next := newEnv(t, Config{NVStore: nvdata.NewStore(dir)})
	assert.Equal(t, uint8(40), next.host.QoS().Values().DSCPUrgent)
	assert.Equal(t, uint8(40), next.host.QoS().Used().DSCPUrgent)
	assert.Equal(t, uint16(300), next.host.TCPIP().EncapsulationInactivityTimeout())

	// Factory reset persists the defaults.
	require.NoError(t, next.host.Reset(cip.ResetFactoryDefaults))
	last := newEnv(t, Config{NVStore: nvdata.NewStore(dir)})
	assert.Equal(t, qos.Defaults(), last.host.QoS().Values())
	assert.Equal(t, uint16(120), last.host.TCPIP().EncapsulationInactivityTimeout())
}

func TestEthernetLinkGetAndClear(t *testing.T) {
	counters := ethlink.NewStaticCounters(1)
	e := newEnv(t, Config{EthernetCounters: counters})
	counters.AddInterface(1, ethlink.InOctets, 1500)

	data, err := e.host.GetAttributeSingle(cip.ClassEthernetLink, 1, ethlink.AttrInterfaceCounters)
	require.NoError(t, err)
	assert.Equal(t, uint32(1500), binary.LittleEndian.Uint32(data))

	data, err = e.host.GetAndClear(cip.ClassEthernetLink, 1, ethlink.AttrInterfaceCounters)
	require.NoError(t, err)
	assert.Equal(t, uint32(1500), binary.LittleEndian.Uint32(data), "reply carries the values before clearing")

	data, err = e.host.GetAttributeSingle(cip.ClassEthernetLink, 1, ethlink.AttrInterfaceCounters)
	require.NoError(t, err)
	assert.Zero(t, binary.LittleEndian.Uint32(data))
}

func TestTraceEvents(t *testing.T) {
	e := newEnv(t, Config{})
	conn := e.openOwner(t)
	require.NoError(t, e.host.DeliverOutput(conn, pattern(OutputSize, 0), true))
	require.NoError(t, e.host.CloseConnection(conn))

	var got []log.Category
	for _, ev := range e.trace.Events() {
		assert.Equal(t, log.LayerApplication, ev.Layer)
		got = append(got, ev.Category)
	}
	assert.Equal(t, []log.Category{
		log.CategoryFailsafe, // inactive -> normal
		log.CategoryRunIdle,
		log.CategoryData,
		log.CategoryFailsafe, // normal -> failsafe
	}, got)
}

func TestHandlersFromRegistry(t *testing.T) {
	r := assembly.NewRegistry(nil)
	for _, p := range profile {
		var buf []byte
		if p.size > 0 {
			buf = make([]byte, p.size)
		}
		require.NoError(t, r.Register(p.id, p.dir, buf, p.size))
	}
	h := buildHandlers(r)

	assert.Equal(t, handler{kind: kindLoopback, peer: InputID}, h[OutputID])
	assert.Equal(t, kindConfig, h[ConfigID].kind)
	assert.Equal(t, kindExplicit, h[ExplicitID].kind)
	assert.Equal(t, kindInput, h[InputID].kind)
	assert.Equal(t, kindHeartbeat, h[HeartbeatInputOnlyID].kind)
	assert.Equal(t, kindHeartbeat, h[HeartbeatListenOnlyID].kind)
	assert.Equal(t, kindNone, h[999].kind)
}
