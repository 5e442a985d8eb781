// Package nvdata persists non-volatile object attributes.
//
// Each object's values live in their own file inside the store directory.
// A file holds one CBOR record carrying a format version, the save time,
// the CBOR-encoded values and a BLAKE2b-256 digest of those values. A digest
// mismatch on load is reported as ErrCorrupt; a missing file means the object
// still runs on factory defaults.
//
// QoSSetCallback and TCPIPSetCallback return NvData callbacks that write the
// whole object back to the store after every successful attribute set.
package nvdata
