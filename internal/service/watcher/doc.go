// Package watcher polls the panel server and reports alarm transitions.
//
// It logs every change of the alarm or arming status and can start a hook
// command when the alarm goes off.
package watcher
