package interactive

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eipdev/eipdev-go/pkg/app"
	"github.com/eipdev/eipdev-go/pkg/connpoint"
	"github.com/eipdev/eipdev-go/pkg/stack"
)

type fakeSim struct {
	running bool
	starts  int
}

func (s *fakeSim) Start(context.Context) { s.running = true; s.starts++ }
func (s *fakeSim) Stop()                 { s.running = false }
func (s *fakeSim) Running() bool         { return s.running }
func (s *fakeSim) Role() connpoint.Role  { return connpoint.RoleExclusiveOwner }

func newConsole(t *testing.T) (*Console, *bytes.Buffer, *fakeSim) {
	t.Helper()
	host := stack.NewHost(stack.Config{})
	device := app.NewDevice(app.Config{})
	require.NoError(t, device.Initialize(host))
	host.Attach(device)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = host.Run(ctx, time.Millisecond)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	var out bytes.Buffer
	sim := &fakeSim{}
	c := &Console{out: &out, ctx: ctx}
	c.Attach(host, device, sim)
	return c, &out, sim
}

func run(c *Console, out *bytes.Buffer, line string) string {
	out.Reset()
	c.exec(line)
	return out.String()
}

func TestConsoleQuit(t *testing.T) {
	c, _, _ := newConsole(t)
	assert.True(t, c.exec("quit"))
	assert.True(t, c.exec("q"))
	assert.False(t, c.exec("  "))
	assert.False(t, c.exec("status"))
}

func TestConsoleUnknownCommand(t *testing.T) {
	c, out, _ := newConsole(t)
	assert.Contains(t, run(c, out, "frobnicate"), "Unknown command: frobnicate")
}

func TestConsoleAssemblies(t *testing.T) {
	c, out, _ := newConsole(t)

	text := run(c, out, "assemblies")
	assert.Contains(t, text, "Assemblies (6)")
	assert.Contains(t, text, "(heartbeat)")

	data := strings.Repeat("11", app.OutputSize)
	assert.Equal(t, "OK\n", run(c, out, "write 150 "+data))
	assert.Contains(t, run(c, out, "asm 100"), "11 11 11 11")

	assert.Contains(t, run(c, out, "write 150 11"), "NOT_ENOUGH_DATA")
	assert.Contains(t, run(c, out, "asm 999"), "not found")
	assert.Contains(t, run(c, out, "write"), "Usage")
}

func TestConsoleConnections(t *testing.T) {
	c, out, _ := newConsole(t)

	assert.Contains(t, run(c, out, "connections"), "No open connections")
	text := run(c, out, "open eo 20ms")
	require.Contains(t, text, "Opened ")
	id := strings.TrimSpace(strings.TrimPrefix(text, "Opened "))

	assert.Contains(t, run(c, out, "open eo"), "Open failed")
	assert.Contains(t, run(c, out, "open nobody"), "Invalid role")

	data := strings.Repeat("02", app.OutputSize)
	assert.Equal(t, "OK\n", run(c, out, "output "+id[:8]+" "+data))

	text = run(c, out, "conns")
	assert.Contains(t, text, "EXCLUSIVE_OWNER out=150 in=100 cfg=151")
	assert.Contains(t, text, "RPI 20ms")
	assert.Contains(t, text, "run")

	assert.Contains(t, run(c, out, "output zzzz "+data), "Connection not found")
	assert.Equal(t, "OK\n", run(c, out, "close "+id))
	assert.Contains(t, run(c, out, "close "+id), "Connection not found")

	run(c, out, "open io cos")
	assert.Contains(t, run(c, out, "close all"), "Closed 1 connection(s)")
}

func TestConsoleAttributes(t *testing.T) {
	c, out, _ := newConsole(t)

	assert.Equal(t, "TCPIPInterface/1/13 = 7800\n", run(c, out, "get 0xF5 1 13"))
	assert.Equal(t, "OK\n", run(c, out, "set 0xF5 1 13 3c00"))
	assert.Contains(t, run(c, out, "get 245 1 13"), "3c00")
	assert.Contains(t, run(c, out, "get 0x99 1 1"), "PATH_DESTINATION_UNKNOWN")
	assert.Contains(t, run(c, out, "set 1 1"), "Usage: set <class> <inst> <attr> <hex>")
	assert.Contains(t, run(c, out, "clear 1"), "Usage: clear <class> <inst> <attr>")
}

func TestConsoleReset(t *testing.T) {
	c, out, _ := newConsole(t)

	run(c, out, "set 0xF5 1 13 3c00")
	assert.Equal(t, "OK\n", run(c, out, "reset 1"))
	assert.Contains(t, run(c, out, "get 0xF5 1 13"), "7800")
	assert.Contains(t, run(c, out, "reset 9"), "INVALID_PARAMETER")
	assert.Contains(t, run(c, out, "reset x"), "Invalid reset type")
}

func TestConsoleSimulation(t *testing.T) {
	c, out, sim := newConsole(t)

	assert.Contains(t, run(c, out, "stop"), "not running")
	assert.Contains(t, run(c, out, "start"), "Simulation started")
	assert.Contains(t, run(c, out, "start"), "already running")
	assert.Equal(t, 1, sim.starts)
	assert.Contains(t, run(c, out, "status"), "Simulation:     true (EXCLUSIVE_OWNER)")
	assert.Contains(t, run(c, out, "stop"), "Simulation stopped")
}
