package domain

import "time"

const (
	HealthStatusHealthy  = "healthy"
	HealthStatusDegraded = "degraded"
)

type HealthReport struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}
