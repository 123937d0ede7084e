// Package mqtt publishes control schedules to an MQTT broker.
//
// Each control input of an optimal run is sent to
// <topic_prefix>/controls/<control> and the complete schedule to
// <topic_prefix>/schedule. Receivers acknowledge a schedule by publishing
// {"schedule_id": "..."} on the configured ack topic.
package mqtt
