// Package alarm contains core domain types for the home security panel.
//
// It defines the arming and alarm status enums, the Sensor value keyed by
// name and type, and Snapshot (the whole panel state at a point in time)
// with Clone helpers to avoid leaking internal references.
package alarm
