// Package connpoint declares the connection points an adapter offers to
// originators.
//
// A connection point binds three assembly instances (output, input, config)
// to a role. The connection manager opens I/O connections only against a
// configured triple. Points reference assemblies by id; the ids must already
// be registered, so wiring always runs after assembly registration.
package connpoint
