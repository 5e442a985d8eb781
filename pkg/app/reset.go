package app

import (
	"fmt"

	"github.com/eipdev/eipdev-go/pkg/cip"
	"github.com/eipdev/eipdev-go/pkg/log"
	"github.com/eipdev/eipdev-go/pkg/nvdata"
	"github.com/eipdev/eipdev-go/pkg/tcpip"
)

// ResetDevice emulates a power cycle: every connection is closed and the
// configured QoS values become active.
func (d *Device) ResetDevice() error {
	if d.host == nil {
		return ErrNotInitialized
	}
	closed := d.host.CloseAllConnections()
	d.host.QoS().UpdateUsedSetValues()

	d.debugLog("ResetDevice", "closed", closed)
	d.emit(log.Event{
		Category: log.CategoryReset,
		Reset:    &log.ResetEvent{Type: uint8(cip.ResetPowerCycle), ClosedConnections: closed},
	})
	return nil
}

// ResetToInitialConfiguration restores the out-of-box encapsulation timeout
// and QoS values, persists them when an NV store is configured and then
// resets the device.
func (d *Device) ResetToInitialConfiguration() error {
	if d.host == nil {
		return ErrNotInitialized
	}
	if err := d.host.TCPIP().SetEncapsulationInactivityTimeout(tcpip.DefaultEncapsulationInactivityTimeout); err != nil {
		return err
	}
	d.host.QoS().ResetToDefaults()

	if s := d.config.NVStore; s != nil {
		if err := nvdata.SaveAll(s, d.host.QoS(), d.host.TCPIP()); err != nil {
			return fmt.Errorf("persist factory defaults: %w", err)
		}
	}

	d.debugLog("ResetToInitialConfiguration")
	d.emit(log.Event{
		Category: log.CategoryReset,
		Reset:    &log.ResetEvent{Type: uint8(cip.ResetFactoryDefaults)},
	})
	return d.ResetDevice()
}
