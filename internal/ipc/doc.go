// Package ipc provides JSON-RPC daemon control over a Unix domain socket.
//
// The server registers the daemon's control-plane operations under the MPS
// service name; the client wraps each call with a typed method. Request and
// response types live in types.go and form the wire contract between the
// mps CLI and the mpsd daemon.
package ipc
