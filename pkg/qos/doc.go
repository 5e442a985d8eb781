// Package qos implements the CIP QoS object (class 0x48).
//
// The object keeps two value sets. The set values are what explicit
// messages and NV storage write. The used values are what the transport
// actually applies; they only change when UpdateUsedSetValues is called,
// which happens as part of a device reset.
package qos
