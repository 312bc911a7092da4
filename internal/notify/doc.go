// Package notify defines the observer contract of the security engine and a
// synchronous, ordered fan-out bus for it.
package notify
