// Package security implements the alarm decision engine.
//
// Engine owns the arming mode, the alarm status, the registered sensors and
// the last camera verdict. Every input (sensor toggled, image processed,
// arming mode changed) passes through one of its mutators, which applies the
// matching rule atomically and then notifies observers in order.
package security
