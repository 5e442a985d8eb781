// Package tcpip implements the settable part of the CIP TCP/IP Interface
// object (class 0xF5): configuration control, host name, multicast TTL and
// the encapsulation inactivity timeout.
package tcpip
