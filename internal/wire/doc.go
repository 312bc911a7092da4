// Package wire converts domain values to and from protobuf well-known types.
//
// The gRPC transport and the JSON state file share these documents so the
// same snapshot reads identically on the wire and on disk.
package wire
