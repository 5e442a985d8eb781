package stack

import "github.com/eipdev/eipdev-go/pkg/cip"

// Application is the set of hooks the host calls. Every call happens on the
// host's processing goroutine and must return before the host continues.
type Application interface {
	// OnDataReceived is called after new data was written to assembly id.
	OnDataReceived(id uint16) error

	// OnDataToSend is called before assembly id is produced. It reports
	// whether the data is new.
	OnDataToSend(id uint16) bool

	// OnConnectionEvent reports I/O connection lifecycle changes.
	OnConnectionEvent(outputID, inputID uint16, event cip.IOConnectionEvent)

	// RunIdleChanged reports a change of the run/idle flag of consumed data.
	RunIdleChanged(run bool)

	// ResetDevice emulates a power cycle.
	ResetDevice() error

	// ResetToInitialConfiguration restores factory defaults, then resets.
	ResetToInitialConfiguration() error

	// PollTick is called once per scan.
	PollTick()
}
