// Package mqtt bridges the panel to an MQTT broker.
//
// Publisher is an engine observer that mirrors every state change as a
// retained JSON message. Listener subscribes to command topics and drives the
// panel: sensor readings and arming changes arrive from field devices and
// home automation.
//
// Topic layout under a configurable prefix:
//
//	<prefix>/status/alarm            retained alarm status
//	<prefix>/status/arming           retained arming status
//	<prefix>/status/cat              retained camera verdict
//	<prefix>/sensors/<type>/<name>   retained sensor state
//	<prefix>/sensors/<type>/<name>/set  sensor reading, {"active":true} or ON/OFF
//	<prefix>/arming/set              arming command, e.g. ARMED_AWAY
package mqtt
