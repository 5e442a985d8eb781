package app

import (
	"github.com/eipdev/eipdev-go/pkg/cip"
	"github.com/eipdev/eipdev-go/pkg/failsafe"
	"github.com/eipdev/eipdev-go/pkg/log"
)

// OnConnectionEvent is called when an I/O connection over outputID and
// inputID starts, times out or closes. An ending connection puts its output
// into failsafe; a new one lifts it.
func (d *Device) OnConnectionEvent(outputID, inputID uint16, event cip.IOConnectionEvent) {
	d.debugLog("OnConnectionEvent", "output", outputID, "input", inputID, "event", event.String())

	switch {
	case event == cip.EventStarted:
		d.guard.Exit(outputID)
	case event.Ends():
		if d.guard.Watched(outputID) {
			d.running = false
		}
		if err := d.guard.Enter(outputID); err != nil {
			d.traceError("failsafe", err)
		}
	}
}

// RunIdleChanged is called when the run/idle flag of received output data
// changes. Idle data is still applied.
func (d *Device) RunIdleChanged(run bool) {
	d.debugLog("RunIdleChanged", "run", run)
	d.running = run
	d.emit(log.Event{
		Direction: log.DirectionIn,
		Category:  log.CategoryRunIdle,
		RunIdle:   &log.RunIdleEvent{Run: run},
	})
}

func (d *Device) traceFailsafe(outputID uint16, old, state failsafe.State) {
	d.debugLog("failsafe", "output", outputID, "from", old.String(), "to", state.String())
	e := &log.FailsafeEvent{OldState: old.String(), NewState: state.String()}
	if state == failsafe.StateFailsafe {
		e.Policy = d.guard.Policy().String()
	}
	d.emit(log.Event{
		Category:   log.CategoryFailsafe,
		AssemblyID: outputID,
		Failsafe:   e,
	})
}

func (d *Device) traceError(context string, err error) {
	if d.logger != nil {
		d.logger.Error(context, "error", err)
	}
	d.emit(log.Event{
		Category: log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerApplication,
			Message: err.Error(),
			Context: context,
		},
	})
}
