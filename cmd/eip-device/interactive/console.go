// Package interactive provides the interactive command-line interface
// for eip-device.
package interactive

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/google/uuid"

	"github.com/eipdev/eipdev-go/pkg/app"
	"github.com/eipdev/eipdev-go/pkg/cip"
	"github.com/eipdev/eipdev-go/pkg/connpoint"
	"github.com/eipdev/eipdev-go/pkg/stack"
)

// Simulator is the simulated originator controlled by start and stop.
type Simulator interface {
	Start(ctx context.Context)
	Stop()
	Running() bool
	Role() connpoint.Role
}

// Console handles interactive mode for eip-device.
type Console struct {
	rl     *readline.Instance
	out    io.Writer
	host   *stack.Host
	device *app.Device
	sim    Simulator
	ctx    context.Context
}

// New creates a console reading from the terminal.
func New() (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "eip> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{rl: rl, out: rl.Stdout(), ctx: context.Background()}, nil
}

// Attach sets the host, device and simulator the commands operate on.
func (c *Console) Attach(host *stack.Host, device *app.Device, sim Simulator) {
	c.host = host
	c.device = device
	c.sim = sim
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (c *Console) Stdout() io.Writer {
	return c.out
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()
	c.ctx = ctx

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}

		if c.exec(line) {
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}
	}
}

// exec runs one command line and reports whether the console should exit.
func (c *Console) exec(line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()
	case "status", "s":
		c.cmdStatus()
	case "assemblies", "asm":
		c.cmdAssemblies(args)
	case "write", "w":
		c.cmdWrite(args)
	case "connections", "conns", "c":
		c.cmdConnections()
	case "open":
		c.cmdOpen(args)
	case "output", "o":
		c.cmdOutput(args)
	case "close":
		c.cmdClose(args)
	case "get":
		c.cmdAttribute(cmd, args, cip.ServiceGetAttributeSingle)
	case "set":
		c.cmdAttribute(cmd, args, cip.ServiceSetAttributeSingle)
	case "clear":
		c.cmdAttribute(cmd, args, cip.ServiceGetAndClear)
	case "reset":
		c.cmdReset(args)
	case "start", "sim-start":
		c.cmdStart()
	case "stop", "sim-stop":
		c.cmdStop()
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
EtherNet/IP Device Commands:
  Assemblies:
    assemblies [id]          - List assemblies (or dump one)
    write <id> <hex>         - Explicit write of assembly data

  Connections:
    connections              - List open connections
    open <role> [rpi] [cos]  - Open a connection (role: eo, io, lo)
    output <conn> <hex> [idle] - Deliver output data on a connection
    close <conn>|all         - Close one or all connections

  Attributes:
    get <class> <inst> <attr>        - Get Attribute Single
    set <class> <inst> <attr> <hex>  - Set Attribute Single
    clear <class> <inst> <attr>      - Get and Clear

  Device:
    status                   - Show device status
    reset 0|1                - Identity reset (1 = factory defaults)
    start                    - Start simulated originator
    stop                     - Stop simulated originator

  General:
    help                     - Show this help
    quit                     - Exit device

  Numbers accept decimal or 0x hex. Connections accept a unique ID prefix.`)
}

// do runs fn on the scan loop.
func (c *Console) do(fn func()) bool {
	ctx, cancel := context.WithTimeout(c.ctx, 2*time.Second)
	defer cancel()
	if err := c.host.Do(ctx, fn); err != nil {
		fmt.Fprintf(c.out, "Device busy: %v\n", err)
		return false
	}
	return true
}

func (c *Console) cmdStatus() {
	var (
		scans   uint64
		conns   []stack.ConnectionInfo
		timeout uint16
		running bool
		state   string
	)
	if !c.do(func() {
		scans = c.host.Scans()
		conns = c.host.Connections()
		timeout = c.host.TCPIP().EncapsulationInactivityTimeout()
		running = c.device.Running()
		state = c.device.Guard().State(app.OutputID).String()
	}) {
		return
	}

	fmt.Fprintln(c.out, "\nDevice Status:")
	fmt.Fprintln(c.out, "-------------------------------------------")
	fmt.Fprintf(c.out, "  Scans:          %d\n", scans)
	fmt.Fprintf(c.out, "  Connections:    %d\n", len(conns))
	fmt.Fprintf(c.out, "  Run mode:       %v\n", running)
	fmt.Fprintf(c.out, "  Output %d:     %s (%s)\n", app.OutputID, state, c.device.Guard().Policy())
	fmt.Fprintf(c.out, "  Encap timeout:  %ds\n", timeout)
	if c.sim != nil {
		fmt.Fprintf(c.out, "  Simulation:     %v (%s)\n", c.sim.Running(), c.sim.Role())
	}
}

func (c *Console) cmdAssemblies(args []string) {
	if len(args) > 0 {
		id, err := parseNumber(args[0])
		if err != nil {
			fmt.Fprintf(c.out, "Invalid assembly: %v\n", err)
			return
		}
		var (
			data  []byte
			found bool
		)
		if !c.do(func() { data, found = c.host.Assembly(id) }) {
			return
		}
		if !found {
			fmt.Fprintf(c.out, "Assembly %d not found\n", id)
			return
		}
		fmt.Fprintf(c.out, "Assembly %d (%d bytes):\n%s", id, len(data), hex.Dump(data))
		return
	}

	type row struct {
		id   uint16
		data []byte
	}
	var rows []row
	if !c.do(func() {
		for _, id := range c.host.AssemblyIDs() {
			data, _ := c.host.Assembly(id)
			rows = append(rows, row{id, append([]byte(nil), data...)})
		}
	}) {
		return
	}
	fmt.Fprintf(c.out, "\nAssemblies (%d):\n", len(rows))
	fmt.Fprintln(c.out, "-------------------------------------------")
	for _, r := range rows {
		fmt.Fprintf(c.out, "  %4d  %3d bytes  %s\n", r.id, len(r.data), preview(r.data))
	}
}

func (c *Console) cmdWrite(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.out, "Usage: write <id> <hex>")
		return
	}
	id, err := parseNumber(args[0])
	if err != nil {
		fmt.Fprintf(c.out, "Invalid assembly: %v\n", err)
		return
	}
	data, err := hex.DecodeString(strings.Join(args[1:], ""))
	if err != nil {
		fmt.Fprintf(c.out, "Invalid data: %v\n", err)
		return
	}
	if c.do(func() { err = c.host.SetAttributeSingle(cip.ClassAssembly, id, stack.AttrAssemblyData, data) }) {
		c.result(err)
	}
}

func (c *Console) cmdConnections() {
	var conns []stack.ConnectionInfo
	if !c.do(func() { conns = c.host.Connections() }) {
		return
	}
	if len(conns) == 0 {
		fmt.Fprintln(c.out, "No open connections")
		return
	}
	fmt.Fprintf(c.out, "\nOpen Connections (%d):\n", len(conns))
	fmt.Fprintln(c.out, "-------------------------------------------")
	for _, ci := range conns {
		mode := "idle"
		if ci.Run {
			mode = "run"
		}
		fmt.Fprintf(c.out, "  ID: %s\n", ci.ID)
		fmt.Fprintf(c.out, "      %s out=%d in=%d cfg=%d\n", ci.Role, ci.OutputID, ci.InputID, ci.ConfigID)
		fmt.Fprintf(c.out, "      RPI %s, %s, %s\n", ci.RPI, ci.Trigger, mode)
		fmt.Fprintf(c.out, "      Consumed %d, produced %d\n", ci.Consumed, ci.Produced)
	}
}

func (c *Console) cmdOpen(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: open <eo|io|lo> [rpi] [cos]")
		return
	}
	role, err := connpoint.ParseRole(args[0])
	if err != nil {
		fmt.Fprintf(c.out, "Invalid role: %v\n", err)
		return
	}
	req := stack.OpenRequest{Role: role}
	for _, a := range args[1:] {
		if strings.EqualFold(a, "cos") {
			req.Trigger = stack.TriggerChangeOfState
			continue
		}
		if req.RPI, err = time.ParseDuration(a); err != nil {
			fmt.Fprintf(c.out, "Invalid RPI: %v\n", err)
			return
		}
	}

	var id uuid.UUID
	if !c.do(func() {
		for _, p := range c.host.Points() {
			if p.Role == role {
				req.OutputID, req.InputID, req.ConfigID = p.OutputID, p.InputID, p.ConfigID
				break
			}
		}
		id, err = c.host.OpenConnection(req)
	}) {
		return
	}
	if err != nil {
		fmt.Fprintf(c.out, "Open failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Opened %s\n", id)
}

func (c *Console) cmdOutput(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.out, "Usage: output <conn> <hex> [idle]")
		return
	}
	run := !(len(args) > 2 && strings.EqualFold(args[2], "idle"))
	data, err := hex.DecodeString(args[1])
	if err != nil {
		fmt.Fprintf(c.out, "Invalid data: %v\n", err)
		return
	}
	var found bool
	if c.do(func() {
		var id uuid.UUID
		if id, found = c.resolve(args[0]); found {
			err = c.host.DeliverOutput(id, data, run)
		}
	}) {
		c.connResult(args[0], found, err)
	}
}

func (c *Console) cmdClose(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: close <conn>|all")
		return
	}
	if args[0] == "all" {
		var n int
		if c.do(func() { n = c.host.CloseAllConnections() }) {
			fmt.Fprintf(c.out, "Closed %d connection(s)\n", n)
		}
		return
	}
	var (
		found bool
		err   error
	)
	if c.do(func() {
		var id uuid.UUID
		if id, found = c.resolve(args[0]); found {
			err = c.host.CloseConnection(id)
		}
	}) {
		c.connResult(args[0], found, err)
	}
}

func (c *Console) cmdAttribute(cmd string, args []string, service cip.Service) {
	usage := "Usage: " + cmd + " <class> <inst> <attr>"
	want := 3
	if service == cip.ServiceSetAttributeSingle {
		usage += " <hex>"
		want = 4
	}
	if len(args) < want {
		fmt.Fprintln(c.out, usage)
		return
	}
	var path [3]uint16
	for i := range path {
		v, err := parseNumber(args[i])
		if err != nil {
			fmt.Fprintf(c.out, "Invalid path: %v\n", err)
			return
		}
		path[i] = v
	}
	class := cip.ClassCode(path[0])

	var (
		data []byte
		err  error
	)
	if service == cip.ServiceSetAttributeSingle {
		if data, err = hex.DecodeString(strings.Join(args[3:], "")); err != nil {
			fmt.Fprintf(c.out, "Invalid data: %v\n", err)
			return
		}
	}
	if !c.do(func() {
		switch service {
		case cip.ServiceSetAttributeSingle:
			err = c.host.SetAttributeSingle(class, path[1], path[2], data)
		case cip.ServiceGetAndClear:
			data, err = c.host.GetAndClear(class, path[1], path[2])
		default:
			data, err = c.host.GetAttributeSingle(class, path[1], path[2])
		}
	}) {
		return
	}
	if err != nil || service == cip.ServiceSetAttributeSingle {
		c.result(err)
		return
	}
	fmt.Fprintf(c.out, "%s/%d/%d = %s\n", class, path[1], path[2], hex.EncodeToString(data))
}

func (c *Console) cmdReset(args []string) {
	t := cip.ResetPowerCycle
	if len(args) > 0 {
		v, err := strconv.ParseUint(args[0], 10, 8)
		if err != nil {
			fmt.Fprintf(c.out, "Invalid reset type: %v\n", err)
			return
		}
		t = cip.ResetType(v)
	}
	var err error
	if c.do(func() { err = c.host.Reset(t) }) {
		c.result(err)
	}
}

func (c *Console) cmdStart() {
	if c.sim == nil {
		fmt.Fprintln(c.out, "Simulation not available")
		return
	}
	if c.sim.Running() {
		fmt.Fprintln(c.out, "Simulation already running")
		return
	}
	c.sim.Start(c.ctx)
	fmt.Fprintln(c.out, "Simulation started")
}

func (c *Console) cmdStop() {
	if c.sim == nil || !c.sim.Running() {
		fmt.Fprintln(c.out, "Simulation not running")
		return
	}
	c.sim.Stop()
	fmt.Fprintln(c.out, "Simulation stopped")
}

// resolve finds a connection by exact ID or unique prefix. It must run on
// the scan loop.
func (c *Console) resolve(s string) (uuid.UUID, bool) {
	if id, err := uuid.Parse(s); err == nil {
		_, ok := c.host.Connection(id)
		return id, ok
	}
	var (
		match uuid.UUID
		n     int
	)
	for _, ci := range c.host.Connections() {
		if strings.HasPrefix(ci.ID.String(), s) {
			match = ci.ID
			n++
		}
	}
	return match, n == 1
}

func (c *Console) connResult(arg string, found bool, err error) {
	if !found {
		fmt.Fprintf(c.out, "Connection not found: %s\n", arg)
		return
	}
	c.result(err)
}

func (c *Console) result(err error) {
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(c.out, "OK")
}

// parseNumber accepts decimal or 0x-prefixed hex.
func parseNumber(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return uint16(v), nil
}

// preview formats the first 16 bytes of data.
func preview(data []byte) string {
	if len(data) == 0 {
		return "(heartbeat)"
	}
	if len(data) > 16 {
		return hex.EncodeToString(data[:16]) + "..."
	}
	return hex.EncodeToString(data)
}
