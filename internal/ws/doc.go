// Package ws serves a live status feed over WebSocket.
//
// Each client first receives the full panel snapshot, then one message per
// state change. Messages are the protobuf JSON form of the wire documents,
// with a "kind" field telling snapshots and events apart.
package ws
