package daemon

import (
	"time"

	"git.home.luguber.info/inful/binlog/internal/foundation/errors"
	"git.home.luguber.info/inful/binlog/internal/version"
)

// HealthStatus represents the overall health of the daemon.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ArchiverHealth is one archiver's entry in the health report.
type ArchiverHealth struct {
	Name     string `json:"name"`
	State    string `json:"state"`
	Archived int64  `json:"archived"`
	Error    string `json:"error,omitempty"`
}

// HealthResponse represents the complete health check response.
type HealthResponse struct {
	Status    HealthStatus     `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Version   string           `json:"version"`
	Archivers []ArchiverHealth `json:"archivers"`
	Jobs      []string         `json:"jobs"`

	running bool
}

// Err converts an unhealthy report into a classified error.
func (h *HealthResponse) Err() error {
	if !h.running {
		return errors.ClosedError("daemon is not running").Build()
	}
	for _, a := range h.Archivers {
		if a.State == ArchiverFailed.String() {
			return errors.RuntimeError("archiver failed").
				WithContext("name", a.Name).
				WithContext("cause", a.Error).
				Build()
		}
	}
	return nil
}

// Health snapshots the daemon state.
func (d *Daemon) Health() *HealthResponse {
	d.mu.Lock()
	defer d.mu.Unlock()

	resp := &HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now(),
		Version:   version.Version,
		Archivers: []ArchiverHealth{},
		running:   d.running,
	}
	if !d.startTime.IsZero() {
		resp.Uptime = time.Since(d.startTime).Round(time.Second).String()
	}
	for _, name := range d.archiveNamesLocked() {
		a := d.archivers[name].archiver
		h := ArchiverHealth{Name: name, State: a.State().String(), Archived: a.Archived()}
		if err := a.Err(); err != nil {
			h.Error = err.Error()
			resp.Status = HealthStatusUnhealthy
		}
		resp.Archivers = append(resp.Archivers, h)
	}
	if !d.running {
		resp.Status = HealthStatusUnhealthy
	}
	if d.scheduler != nil {
		resp.Jobs = d.scheduler.Jobs()
	}
	return resp
}
