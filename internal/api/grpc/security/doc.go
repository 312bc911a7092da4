// Package security implements the gRPC transport for the catpoint panel.
//
// The service is declared by hand with protobuf well-known types as messages:
// requests and responses are structpb documents built by package wire, so no
// generated code is needed. Callers identify themselves through request
// metadata (see ActorFromContext).
package security
