// Package transport defines the narrow seam between the daemon's core
// (wire codec, interpreter, job queue) and the byte stream it runs over.
// The core never constructs a socket itself (spec.md §1: "the core
// consumes an already-accepted bidirectional byte stream"); this package
// wraps a net.Listener, either one the caller already has (Wrap) or a TCP
// listener opened by Listen.
package transport

import (
	"io"
	"net"
)

// Conn is the bidirectional byte stream one client session runs over.
// net.Conn satisfies it directly; so does net.Pipe's in-memory pipe, which
// the test suite uses in place of a real socket.
type Conn interface {
	io.ReadWriteCloser
}

// Listener accepts Conns. A TCP listener is the default for local
// development; a VSOCK listener (e.g. github.com/mdlayher/vsock) would
// satisfy the same interface for the guest-microVM deployment this daemon
// targets, but constructing one is out of scope here (spec.md §1) — such a
// listener would be handed to Wrap already listening.
type Listener interface {
	Accept() (Conn, error)
	Close() error
	Addr() net.Addr
}

// netListener adapts a net.Listener (TCP, Unix, or any VSOCK
// implementation satisfying the same interface) to Listener.
type netListener struct {
	net.Listener
}

// Wrap adapts an already-listening net.Listener for use by the accept
// loop in cmd/taskd.
func Wrap(l net.Listener) Listener {
	return &netListener{Listener: l}
}

func (n *netListener) Accept() (Conn, error) {
	return n.Listener.Accept()
}

// Listen starts a TCP listener on addr (e.g. ":7777"), the default
// transport for local development, used by cmd/taskd.
func Listen(addr string) (Listener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return Wrap(l), nil
}
