// Package app is the application layer of the EtherNet/IP adapter.
//
// It declares the device's assembly instances, wires them into connection
// points and implements the hooks the CIP stack calls while I/O connections
// and explicit messages are processed.
//
// # Assembly Profile
//
//	100  Input                  32 bytes  produced (T->O)
//	150  Output                 32 bytes  consumed (O->T), mirrored into 100
//	151  Config                 10 bytes  Forward Open configuration data
//	152  Heartbeat input only    0 bytes
//	153  Heartbeat listen only   0 bytes
//	154  Explicit               32 bytes  explicit messaging only
//
// Three connection points are configured over these instances: exclusive
// owner 150/100/151, input only 152/100/151 and listen only 153/100/151.
//
// # Hooks
//
// A Device implements the stack's application interface. Every hook runs on
// the stack's single processing context and never blocks; the Device carries
// no locks.
//
//	dev := app.NewDevice(app.Config{Logger: logger})
//	if err := dev.Initialize(host); err != nil {
//	    return err
//	}
//	host.Attach(dev)
package app
