// Package object implements a CIP object dictionary: classes containing
// instances containing attributes.
//
// # Attributes
//
// Every attribute is bound to application memory through a Binding, which
// encodes the current value to the little-endian wire representation and
// decodes a new one. Attribute flags control which services may touch the
// attribute and which class callbacks run around those services.
//
// # Callbacks
//
// A class carries at most one callback per kind:
//
//	PreGet   runs before the attribute is encoded for Get services
//	PostGet  runs after the reply data has been captured
//	PreSet   runs before new data is decoded
//	PostSet  runs after new data has been decoded
//	NvData   runs after PostSet; used to persist the attribute
//
// A callback only runs for attributes whose flags request it. Callbacks run
// synchronously inside the service call and must finish before it returns.
//
// The dictionary is not safe for concurrent use.
package object
