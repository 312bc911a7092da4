// Package client implements the one-shot control commands of the catpoint CLI.
//
// Each command connects to the panel server, performs a single operation and
// prints the resulting panel state. Arming changes are pushed with retries
// until the server confirms them.
package client
