// Package publish defines how optimal control schedules leave the process,
// e.g. towards a building automation system listening on MQTT.
package publish
