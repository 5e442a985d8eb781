// Package stack is an in-process reference host for the adapter application.
//
// Host implements the interfaces an application consumes from a CIP stack:
// it installs assembly instances into an object dictionary, accepts
// connection points, exposes the QoS, TCP/IP Interface and Ethernet Link
// objects and closes connections on reset. In the other direction it drives
// the Application hooks exactly like a connection manager does:
//
//   - OpenConnection reports Started after validating ownership and config data
//   - DeliverOutput writes consumed data and calls OnDataReceived
//   - Process runs consumer watchdogs (TimedOut) and produces input data
//     through OnDataToSend
//   - explicit Get/Set on assembly data attributes call the same hooks
//   - Reset maps the Identity reset types to ResetDevice and
//     ResetToInitialConfiguration
//
// There are no sockets and no encapsulation framing. Originators are
// simulated by calling the connection methods directly.
//
// # Concurrency
//
// Host is not safe for concurrent use. Run owns the host while it runs;
// other goroutines submit work with Do, which executes the function between
// scans on the same goroutine.
package stack
