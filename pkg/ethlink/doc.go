// Package ethlink implements the CIP Ethernet Link object (class 0xF6).
//
// Interface and media counters are not stored in the object. They are
// fetched from a CounterSource by a PreGet callback right before a Get
// service encodes them, and cleared through the source by a PostGet callback
// after a GetAndClear reply has been captured. Both callbacks are provided
// by Bridge and are installed with the dictionary's InsertGetSetCallback.
package ethlink
