package stack

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eipdev/eipdev-go/pkg/cip"
	"github.com/eipdev/eipdev-go/pkg/connpoint"
	"github.com/eipdev/eipdev-go/pkg/log"
)

// fakeApp records hook calls.
type fakeApp struct {
	calls      []string
	fresh      bool
	rejectID   uint16
	resets     int
	factory    int
	polls      int
	onReceived func(id uint16)
}

func (a *fakeApp) OnDataReceived(id uint16) error {
	a.calls = append(a.calls, fmt.Sprintf("recv:%d", id))
	if a.onReceived != nil {
		a.onReceived(id)
	}
	if id == a.rejectID {
		return errors.New("rejected")
	}
	return nil
}

func (a *fakeApp) OnDataToSend(id uint16) bool {
	a.calls = append(a.calls, fmt.Sprintf("send:%d", id))
	return a.fresh
}

func (a *fakeApp) OnConnectionEvent(out, in uint16, ev cip.IOConnectionEvent) {
	a.calls = append(a.calls, fmt.Sprintf("event:%d/%d:%s", out, in, ev))
}

func (a *fakeApp) RunIdleChanged(run bool) {
	a.calls = append(a.calls, fmt.Sprintf("run:%v", run))
}

func (a *fakeApp) ResetDevice() error {
	a.resets++
	return nil
}

func (a *fakeApp) ResetToInitialConfiguration() error {
	a.factory++
	return nil
}

func (a *fakeApp) PollTick() { a.polls++ }

func (a *fakeApp) reset() { a.calls = nil }

var _ Application = (*fakeApp)(nil)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

type fixture struct {
	host  *Host
	app   *fakeApp
	clock *clock
	trace *log.MemoryLogger
	bufs  map[uint16][]byte
}

// newFixture installs the standard adapter profile.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		app:   &fakeApp{fresh: true},
		clock: &clock{now: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)},
		trace: log.NewMemoryLogger(256),
		bufs:  make(map[uint16][]byte),
	}
	f.host = NewHost(Config{Now: f.clock.Now, TraceLogger: f.trace})

	for _, a := range []struct {
		id   uint16
		size int
	}{{100, 32}, {150, 32}, {151, 10}, {152, 0}, {153, 0}, {154, 32}} {
		var buf []byte
		if a.size > 0 {
			buf = make([]byte, a.size)
		}
		f.bufs[a.id] = buf
		require.NoError(t, f.host.InstallAssembly(a.id, buf))
	}
	for _, p := range []connpoint.Point{
		{Role: connpoint.RoleExclusiveOwner, OutputID: 150, InputID: 100, ConfigID: 151},
		{Role: connpoint.RoleInputOnly, OutputID: 152, InputID: 100, ConfigID: 151},
		{Role: connpoint.RoleListenOnly, OutputID: 153, InputID: 100, ConfigID: 151},
	} {
		require.NoError(t, f.host.ConfigureConnectionPoint(p))
	}
	f.host.Attach(f.app)
	return f
}

func (f *fixture) open(t *testing.T, role connpoint.Role, out uint16) uuid.UUID {
	t.Helper()
	id, err := f.host.OpenConnection(OpenRequest{Role: role, OutputID: out, InputID: 100, ConfigID: 151})
	require.NoError(t, err)
	return id
}

func TestInstallAssemblyAttributes(t *testing.T) {
	f := newFixture(t)

	size, err := f.host.GetAttributeSingle(cip.ClassAssembly, 100, AttrAssemblySize)
	require.NoError(t, err)
	assert.Equal(t, []byte{32, 0}, size)

	size, err = f.host.GetAttributeSingle(cip.ClassAssembly, 152, AttrAssemblySize)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0}, size)

	assert.Error(t, f.host.InstallAssembly(100, make([]byte, 4)), "duplicate instance")
	assert.ErrorIs(t, f.host.InstallAssembly(0, nil), ErrInvalidAssembly)
	assert.Equal(t, []uint16{100, 150, 151, 152, 153, 154}, f.host.AssemblyIDs())
}

func TestConfigureConnectionPointRequiresAssemblies(t *testing.T) {
	h := NewHost(Config{})
	err := h.ConfigureConnectionPoint(connpoint.Point{Role: connpoint.RoleExclusiveOwner, OutputID: 1, InputID: 2, ConfigID: 3})
	assert.ErrorIs(t, err, ErrInvalidAssembly)
}

func TestExplicitGetCallsDataToSend(t *testing.T) {
	f := newFixture(t)
	copy(f.bufs[154], []byte{0xCA, 0xFE})

	data, err := f.host.GetAttributeSingle(cip.ClassAssembly, 154, AttrAssemblyData)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xCA, 0xFE}, data[:2])
	assert.Equal(t, []string{"send:154"}, f.app.calls)
}

func TestExplicitSetCallsDataReceived(t *testing.T) {
	f := newFixture(t)
	payload := make([]byte, 32)
	payload[0] = 7

	require.NoError(t, f.host.SetAttributeSingle(cip.ClassAssembly, 154, AttrAssemblyData, payload))
	assert.Equal(t, byte(7), f.bufs[154][0])
	assert.Equal(t, []string{"recv:154"}, f.app.calls)

	err := f.host.SetAttributeSingle(cip.ClassAssembly, 154, AttrAssemblyData, payload[:4])
	assert.Equal(t, cip.StatusNotEnoughData, cip.StatusOf(err))

	err = f.host.SetAttributeSingle(cip.ClassAssembly, 154, AttrAssemblyData, make([]byte, 33))
	assert.Equal(t, cip.StatusTooMuchData, cip.StatusOf(err))

	f.app.rejectID = 151
	err = f.host.SetAttributeSingle(cip.ClassAssembly, 151, AttrAssemblyData, make([]byte, 10))
	assert.Equal(t, cip.StatusInvalidAttributeValue, cip.StatusOf(err))
}

func TestExplicitSetRefusedWhileConsumed(t *testing.T) {
	f := newFixture(t)
	id := f.open(t, connpoint.RoleExclusiveOwner, 150)

	err := f.host.SetAttributeSingle(cip.ClassAssembly, 150, AttrAssemblyData, make([]byte, 32))
	assert.Equal(t, cip.StatusAttributeNotSettable, cip.StatusOf(err))

	require.NoError(t, f.host.CloseConnection(id))
	assert.NoError(t, f.host.SetAttributeSingle(cip.ClassAssembly, 150, AttrAssemblyData, make([]byte, 32)))
}

func TestOpenConnectionErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.host.OpenConnection(OpenRequest{Role: connpoint.RoleExclusiveOwner, OutputID: 150, InputID: 100, ConfigID: 99})
	assert.ErrorIs(t, err, ErrNoConnectionPoint)
	assert.ErrorIs(t, err, cip.ConnErr(cip.ExtInvalidConnectionPoint))

	_, err = f.host.OpenConnection(OpenRequest{Role: connpoint.RoleListenOnly, OutputID: 153, InputID: 100, ConfigID: 151})
	assert.ErrorIs(t, err, ErrNoControllingConnection)

	f.open(t, connpoint.RoleExclusiveOwner, 150)
	_, err = f.host.OpenConnection(OpenRequest{Role: connpoint.RoleExclusiveOwner, OutputID: 150, InputID: 100, ConfigID: 151})
	assert.ErrorIs(t, err, ErrOwnershipConflict)
	assert.Equal(t, cip.StatusConnectionFailure, cip.StatusOf(err))

	// Input only and listen only connections share the input.
	f.open(t, connpoint.RoleInputOnly, 152)
	f.open(t, connpoint.RoleListenOnly, 153)
	assert.Len(t, f.host.Connections(), 3)
}

func TestOpenConnectionConfigData(t *testing.T) {
	f := newFixture(t)
	cfg := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	_, err := f.host.OpenConnection(OpenRequest{
		Role: connpoint.RoleExclusiveOwner, OutputID: 150, InputID: 100, ConfigID: 151,
		ConfigData: cfg[:3],
	})
	assert.ErrorIs(t, err, ErrInvalidConfigurationSize)

	f.app.rejectID = 151
	_, err = f.host.OpenConnection(OpenRequest{
		Role: connpoint.RoleExclusiveOwner, OutputID: 150, InputID: 100, ConfigID: 151,
		ConfigData: cfg,
	})
	assert.ErrorIs(t, err, ErrConfigurationRejected)
	assert.Equal(t, make([]byte, 10), f.bufs[151], "rejected config is rolled back")
	assert.Empty(t, f.host.Connections())

	f.app.rejectID = 0
	f.app.reset()
	_, err = f.host.OpenConnection(OpenRequest{
		Role: connpoint.RoleExclusiveOwner, OutputID: 150, InputID: 100, ConfigID: 151,
		ConfigData: cfg,
	})
	require.NoError(t, err)
	assert.Equal(t, cfg, f.bufs[151])
	assert.Equal(t, []string{"recv:151", "event:150/100:STARTED"}, f.app.calls)
}

func TestDeliverOutput(t *testing.T) {
	f := newFixture(t)
	eo := f.open(t, connpoint.RoleExclusiveOwner, 150)
	io := f.open(t, connpoint.RoleInputOnly, 152)
	f.app.reset()

	data := make([]byte, 32)
	data[31] = 0x5A
	require.NoError(t, f.host.DeliverOutput(eo, data, true))
	assert.Equal(t, byte(0x5A), f.bufs[150][31])

	require.NoError(t, f.host.DeliverOutput(eo, data, true))
	require.NoError(t, f.host.DeliverOutput(eo, data, false))

	// Heartbeats never reach the application.
	require.NoError(t, f.host.DeliverOutput(io, nil, true))

	assert.Equal(t, []string{
		"run:true", "recv:150",
		"recv:150",
		"run:false", "recv:150",
	}, f.app.calls)

	err := f.host.DeliverOutput(eo, data[:8], true)
	assert.ErrorIs(t, err, ErrInvalidConsumingSize)

	err = f.host.DeliverOutput(uuid.New(), data, true)
	assert.ErrorIs(t, err, ErrConnectionNotFound)

	info, ok := f.host.Connection(eo)
	require.True(t, ok)
	assert.Equal(t, uint64(3), info.Consumed)
	assert.False(t, info.Run)
}

func TestProcessTimeoutCascadesToListenOnly(t *testing.T) {
	f := newFixture(t)
	_, err := f.host.OpenConnection(OpenRequest{Role: connpoint.RoleExclusiveOwner, OutputID: 150, InputID: 100, ConfigID: 151, RPI: 10 * time.Millisecond, TimeoutMultiplier: 4})
	require.NoError(t, err)
	lo := f.open(t, connpoint.RoleListenOnly, 153)
	f.app.reset()

	// Keep the listen only connection fed; only the owner times out.
	f.clock.now = f.clock.now.Add(30 * time.Millisecond)
	require.NoError(t, f.host.DeliverOutput(lo, nil, true))
	f.clock.now = f.clock.now.Add(15 * time.Millisecond)
	f.host.Process(f.clock.now)

	assert.Contains(t, f.app.calls, "event:150/100:TIMED_OUT")
	assert.Contains(t, f.app.calls, "event:153/100:TIMED_OUT")
	assert.Empty(t, f.host.Connections())
}

func TestCloseKeepsListenOnlyWhileControlled(t *testing.T) {
	f := newFixture(t)
	eo := f.open(t, connpoint.RoleExclusiveOwner, 150)
	io := f.open(t, connpoint.RoleInputOnly, 152)
	f.open(t, connpoint.RoleListenOnly, 153)

	require.NoError(t, f.host.CloseConnection(eo))
	assert.Len(t, f.host.Connections(), 2, "input only connection still controls the input")

	f.app.reset()
	require.NoError(t, f.host.CloseConnection(io))
	assert.Equal(t, []string{"event:152/100:CLOSED", "event:153/100:CLOSED"}, f.app.calls)

	assert.ErrorIs(t, f.host.CloseConnection(io), ErrConnectionNotFound)
}

func TestCloseAllConnections(t *testing.T) {
	f := newFixture(t)
	f.open(t, connpoint.RoleExclusiveOwner, 150)
	f.open(t, connpoint.RoleInputOnly, 152)
	f.open(t, connpoint.RoleListenOnly, 153)

	assert.Equal(t, 3, f.host.CloseAllConnections())
	assert.Empty(t, f.host.Connections())
	assert.Zero(t, f.host.CloseAllConnections())
}

func TestProcessProduction(t *testing.T) {
	f := newFixture(t)
	var produced []ConnectionInfo
	f.host.config.OnProduce = func(c ConnectionInfo, data []byte) {
		produced = append(produced, c)
		assert.Len(t, data, 32)
	}

	cyc, err := f.host.OpenConnection(OpenRequest{Role: connpoint.RoleExclusiveOwner, OutputID: 150, InputID: 100, ConfigID: 151, RPI: 10 * time.Millisecond})
	require.NoError(t, err)
	cos, err := f.host.OpenConnection(OpenRequest{Role: connpoint.RoleInputOnly, OutputID: 152, InputID: 100, ConfigID: 151, RPI: 10 * time.Millisecond, Trigger: TriggerChangeOfState})
	require.NoError(t, err)

	f.app.fresh = false
	f.host.Process(f.clock.now)
	require.Len(t, produced, 1, "change of state waits for fresh data")
	assert.Equal(t, cyc, produced[0].ID)

	// Not due yet.
	f.host.Process(f.clock.now.Add(5 * time.Millisecond))
	assert.Len(t, produced, 1)

	f.app.fresh = true
	f.clock.now = f.clock.now.Add(10 * time.Millisecond)
	require.NoError(t, f.host.DeliverOutput(cyc, make([]byte, 32), true))
	require.NoError(t, f.host.DeliverOutput(cos, nil, true))
	f.host.Process(f.clock.now)
	assert.Len(t, produced, 3)
}

func TestReceiveBeforeSendWithinScan(t *testing.T) {
	f := newFixture(t)
	eo := f.open(t, connpoint.RoleExclusiveOwner, 150)
	f.app.reset()

	require.NoError(t, f.host.DeliverOutput(eo, make([]byte, 32), true))
	f.host.Scan(f.clock.now)

	require.Len(t, f.app.calls, 3)
	assert.Equal(t, []string{"run:true", "recv:150", "send:100"}, f.app.calls)
	assert.Equal(t, 1, f.app.polls)
	assert.Equal(t, uint64(1), f.host.Scans())
}

func TestReset(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.host.Reset(cip.ResetPowerCycle))
	require.NoError(t, f.host.Reset(cip.ResetFactoryDefaults))
	assert.Equal(t, 1, f.app.resets)
	assert.Equal(t, 1, f.app.factory)

	err := f.host.Reset(cip.ResetType(7))
	assert.Equal(t, cip.StatusInvalidParameter, cip.StatusOf(err))

	assert.ErrorIs(t, NewHost(Config{}).Reset(cip.ResetPowerCycle), ErrNotAttached)
}

func TestIdentityStatusOwned(t *testing.T) {
	f := newFixture(t)

	status, err := f.host.GetAttributeSingle(cip.ClassIdentity, 1, AttrStatus)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x04, 0x00}, status)

	f.open(t, connpoint.RoleExclusiveOwner, 150)
	status, err = f.host.GetAttributeSingle(cip.ClassIdentity, 1, AttrStatus)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x05, 0x00}, status)

	name, err := f.host.GetAttributeSingle(cip.ClassIdentity, 1, AttrProductName)
	require.NoError(t, err)
	assert.Equal(t, byte(len(DefaultIdentity.ProductName)), name[0])
}

func TestTraceEvents(t *testing.T) {
	f := newFixture(t)
	eo := f.open(t, connpoint.RoleExclusiveOwner, 150)
	_, _ = f.host.GetAttributeSingle(cip.ClassAssembly, 100, AttrAssemblyData)
	require.NoError(t, f.host.CloseConnection(eo))

	var categories []log.Category
	for _, e := range f.trace.Events() {
		categories = append(categories, e.Category)
	}
	assert.Equal(t, []log.Category{log.CategoryConnection, log.CategoryAttribute, log.CategoryConnection}, categories)
}

func TestRunAndDo(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- f.host.Run(ctx, time.Millisecond) }()

	var opened uuid.UUID
	require.NoError(t, f.host.Do(ctx, func() {
		opened, _ = f.host.OpenConnection(OpenRequest{Role: connpoint.RoleExclusiveOwner, OutputID: 150, InputID: 100, ConfigID: 151})
	}))
	assert.NotEqual(t, uuid.Nil, opened)

	var n int
	require.NoError(t, f.host.Do(ctx, func() { n = len(f.host.Connections()) }))
	assert.Equal(t, 1, n)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	err := f.host.Do(ctx, func() {})
	assert.ErrorIs(t, err, context.Canceled)
}
