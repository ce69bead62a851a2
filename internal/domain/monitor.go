package domain

import "time"

// MonitorStatus is reported by the external monitor process. This layer only
// reacts to transitions; it never drives them.
type MonitorStatus string

const (
	MonitorStopped  MonitorStatus = "stopped"
	MonitorRunning  MonitorStatus = "running"
	MonitorCooldown MonitorStatus = "cooldown"
)

// StatusEvent is one push event from the monitor status feed.
type StatusEvent struct {
	Status MonitorStatus `json:"status"`
	At     time.Time     `json:"at"`
}
