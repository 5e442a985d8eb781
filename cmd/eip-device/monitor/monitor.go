// Package monitor is a terminal dashboard for a running eip-device.
//
// It shows the assemblies with their failsafe state, the open connections
// and the most recent trace events, refreshed from the scan loop twice a
// second.
package monitor

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/eipdev/eipdev-go/pkg/app"
	eiplog "github.com/eipdev/eipdev-go/pkg/log"
	"github.com/eipdev/eipdev-go/pkg/publish"
	"github.com/eipdev/eipdev-go/pkg/stack"
)

// EventCapacity is the number of trace events the monitor keeps.
const EventCapacity = 256

const (
	refreshInterval = 500 * time.Millisecond
	eventRows       = 40
)

// Monitor is the dashboard application.
type Monitor struct {
	app    *tview.Application
	header *tview.TextView
	asm    *tview.Table
	conns  *tview.Table
	events *tview.TextView
	status *tview.TextView

	host   *stack.Host
	device *app.Device
	trace  *eiplog.MemoryLogger

	stopChan chan struct{}
}

// New creates a monitor. trace may be nil, in which case no events are shown.
func New(host *stack.Host, device *app.Device, trace *eiplog.MemoryLogger) *Monitor {
	m := &Monitor{
		app:      tview.NewApplication(),
		host:     host,
		device:   device,
		trace:    trace,
		stopChan: make(chan struct{}),
	}
	m.setupUI()
	return m
}

func (m *Monitor) setupUI() {
	m.header = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)

	m.asm = newTable(" Assemblies ", "ID", "Size", "State", "Data")
	m.conns = newTable(" Connections ", "ID", "Role", "Out", "In", "RPI", "Mode", "Consumed", "Produced")

	m.events = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	m.events.SetBorder(true).SetTitle(" Events ")

	m.status = tview.NewTextView().
		SetDynamicColors(true).
		SetText(" [yellow]x[white] close all  [yellow]r[white] reset  [yellow]Q[white] quit ")

	top := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(m.asm, 0, 1, false).
		AddItem(m.conns, 0, 2, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(m.header, 1, 0, false).
		AddItem(top, 0, 1, false).
		AddItem(m.events, 0, 1, false).
		AddItem(m.status, 1, 0, false)

	m.app.SetInputCapture(m.handleKeys)
	m.app.SetRoot(root, true)
}

func newTable(title string, headers ...string) *tview.Table {
	t := tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0)
	for i, h := range headers {
		t.SetCell(0, i, tview.NewTableCell(h).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false).
			SetAttributes(tcell.AttrBold))
	}
	t.SetBorder(true).SetTitle(title)
	return t
}

func (m *Monitor) handleKeys(event *tcell.EventKey) *tcell.EventKey {
	if event == nil {
		return nil
	}
	switch event.Rune() {
	case 'Q', 'q':
		m.app.Stop()
		return nil
	case 'x':
		go m.action("closed all connections", func() error {
			m.host.CloseAllConnections()
			return nil
		})
		return nil
	case 'r':
		go m.action("device reset", m.device.ResetDevice)
		return nil
	}
	return event
}

// action runs fn on the scan loop and reports the outcome in the status bar.
func (m *Monitor) action(done string, fn func() error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var err error
	if doErr := m.host.Do(ctx, func() { err = fn() }); doErr != nil {
		err = doErr
	}
	msg := " [green]" + done
	if err != nil {
		msg = " [red]" + err.Error()
	}
	m.app.QueueUpdateDraw(func() { m.status.SetText(msg) })
}

// Run draws the dashboard until Stop or the quit key.
func (m *Monitor) Run() error {
	go m.periodicRefresh()
	return m.app.Run()
}

// Stop ends the dashboard.
func (m *Monitor) Stop() {
	select {
	case <-m.stopChan:
	default:
		close(m.stopChan)
	}
	m.app.Stop()
}

func (m *Monitor) periodicRefresh() {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), refreshInterval)
			var snap snapshot
			err := m.host.Do(ctx, func() { snap = collect(m.host, m.device) })
			cancel()
			if err != nil {
				continue
			}
			var events []eiplog.Event
			if m.trace != nil {
				events = m.trace.Events()
			}
			m.app.QueueUpdateDraw(func() { m.render(snap, events) })
		}
	}
}

func (m *Monitor) render(s snapshot, events []eiplog.Event) {
	m.header.SetText(s.header())
	fillAssemblies(m.asm, s.assemblies)
	fillConnections(m.conns, s.connections)
	m.events.SetText(formatEvents(events, eventRows))
}

type assemblyRow struct {
	id    uint16
	data  []byte
	state string
}

// snapshot is the device state copied off the scan loop.
type snapshot struct {
	productName string
	scans       uint64
	running     bool
	policy      string
	assemblies  []assemblyRow
	connections []stack.ConnectionInfo
}

// collect copies the device state. It must run on the scan loop.
func collect(host *stack.Host, device *app.Device) snapshot {
	s := snapshot{
		productName: host.Identity().ProductName,
		scans:       host.Scans(),
		running:     device.Running(),
		policy:      device.Guard().Policy().String(),
		connections: host.Connections(),
	}
	guard := device.Guard()
	for _, id := range host.AssemblyIDs() {
		data, _ := host.Assembly(id)
		row := assemblyRow{id: id, data: append([]byte(nil), data...)}
		if guard.Watched(id) {
			row.state = guard.State(id).String()
		}
		s.assemblies = append(s.assemblies, row)
	}
	return s
}

func (s snapshot) header() string {
	mode := "[gray]IDLE"
	if s.running {
		mode = "[green]RUN"
	}
	return fmt.Sprintf("[white::b]%s[-:-:-]  scans %d  %s[white]  failsafe policy %s",
		s.productName, s.scans, mode, s.policy)
}

func fillAssemblies(t *tview.Table, rows []assemblyRow) {
	clearRows(t)
	for i, r := range rows {
		row := i + 1
		state := tview.NewTableCell(r.state)
		if r.state == "FAILSAFE" {
			state.SetTextColor(tcell.ColorRed)
		}
		t.SetCell(row, 0, tview.NewTableCell(strconv.Itoa(int(r.id))))
		t.SetCell(row, 1, tview.NewTableCell(strconv.Itoa(len(r.data))))
		t.SetCell(row, 2, state)
		t.SetCell(row, 3, tview.NewTableCell(preview(r.data)).SetExpansion(1))
	}
}

func fillConnections(t *tview.Table, conns []stack.ConnectionInfo) {
	clearRows(t)
	for i, c := range conns {
		row := i + 1
		mode := "idle"
		if c.Run {
			mode = "run"
		}
		t.SetCell(row, 0, tview.NewTableCell(c.ID.String()[:8]))
		t.SetCell(row, 1, tview.NewTableCell(c.Role.String()))
		t.SetCell(row, 2, tview.NewTableCell(strconv.Itoa(int(c.OutputID))))
		t.SetCell(row, 3, tview.NewTableCell(strconv.Itoa(int(c.InputID))))
		t.SetCell(row, 4, tview.NewTableCell(c.RPI.String()))
		t.SetCell(row, 5, tview.NewTableCell(mode))
		t.SetCell(row, 6, tview.NewTableCell(strconv.FormatUint(c.Consumed, 10)))
		t.SetCell(row, 7, tview.NewTableCell(strconv.FormatUint(c.Produced, 10)).SetExpansion(1))
	}
}

// clearRows removes everything below the header row.
func clearRows(t *tview.Table) {
	for t.GetRowCount() > 1 {
		t.RemoveRow(t.GetRowCount() - 1)
	}
}

// formatEvents renders the newest n events, newest last.
func formatEvents(events []eiplog.Event, n int) string {
	if len(events) > n {
		events = events[len(events)-n:]
	}
	var b []byte
	for _, e := range events {
		msg := publish.FromEvent(e)
		color := "white"
		switch e.Category {
		case eiplog.CategoryError:
			color = "red"
		case eiplog.CategoryFailsafe:
			color = "orange"
		case eiplog.CategoryConnection:
			color = "aqua"
		}
		b = fmt.Appendf(b, "[gray]%s [%s]%-10s[white] %-11s %-3s", e.Timestamp.Format("15:04:05.000"), color, msg.Category, msg.Layer, msg.Direction)
		if msg.AssemblyID != 0 {
			b = fmt.Appendf(b, " asm=%d", msg.AssemblyID)
		}
		if msg.Event != "" {
			b = fmt.Appendf(b, " %s", msg.Event)
		}
		if msg.Detail != "" {
			b = fmt.Appendf(b, " %s", tview.Escape(msg.Detail))
		}
		if msg.Data != "" {
			b = fmt.Appendf(b, " %s", previewHex(msg.Data))
		}
		b = append(b, '\n')
	}
	return string(b)
}

func preview(data []byte) string {
	if len(data) == 0 {
		return "(heartbeat)"
	}
	return previewHex(fmt.Sprintf("%x", data))
}

func previewHex(s string) string {
	if len(s) > 32 {
		return s[:32] + "..."
	}
	return s
}
