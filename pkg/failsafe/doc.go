// Package failsafe applies a safe state to output assemblies when the
// connection feeding them goes away.
//
// When a controlling connection times out or is closed, the data it last
// wrote to the output assembly would otherwise keep driving the device.
// A Guard watches every data-carrying output assembly and, on entering
// failsafe, applies the configured policy:
//
//   - PolicyZero fills the output with zeros (default)
//   - PolicyHold keeps the last received data
//   - PolicyPattern writes a configured safe pattern of the output's size
//
// A new connection to the output leaves failsafe again. Heartbeat
// assemblies carry no data and are never watched.
//
// # Output States
//
//	INACTIVE  no connection since startup (buffer holds its reset value)
//	NORMAL    a connection is producing data into the output
//	FAILSAFE  the last connection ended; policy has been applied
//
// A Guard is not safe for concurrent use; it runs on the same processing
// context as the connection hooks.
package failsafe
