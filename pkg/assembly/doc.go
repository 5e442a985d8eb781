// Package assembly owns the byte buffers behind CIP assembly instances and
// keeps the registry of which instance ids exist.
//
// # Ownership
//
// The Store is the only owner of assembly buffers. Each buffer is allocated
// once with a fixed size and never resized. The Registry records, per instance
// id, its direction and size and hands the buffer to the stack's object
// dictionary through an Installer. Everyone else refers to assemblies by id.
//
// # Heartbeat Assemblies
//
// Heartbeat instances exist only so input-only and listen-only connections
// have an output assembly to name. They have no data and are registered with a
// nil buffer and size 0.
//
// Neither type is safe for concurrent use. All access happens on the host
// stack's single processing context.
package assembly
