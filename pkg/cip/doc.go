// Package cip holds the Common Industrial Protocol vocabulary shared by the
// adapter packages: class and service codes, general status codes, I/O
// connection events and the little-endian encodings used for attribute data.
//
// Nothing in this package talks to the network. It only names things the way
// the CIP object model names them so that the application layer, the object
// dictionary and the host stack agree on identifiers.
package cip
