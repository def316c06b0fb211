package api

import (
	"errors"
	"strings"
	"time"

	"portsight/scanner"
)

// Task lifecycle states.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrEmptyTarget rejects scan requests whose target is blank.
var ErrEmptyTarget = errors.New("target host is required")

// ScanTask represents a scanning job managed by the API service.
type ScanTask struct {
	// ID is the immutable identifier of the scan task (UUID v4).
	ID string `json:"id" format:"uuid" example:"a3f5c62e-1234-4f72-a84a-1c2d3e4f5678"`
	// Status reflects the asynchronous lifecycle state of the task.
	Status string `json:"status" enums:"pending,running,completed,failed" example:"pending"`
	// Target is the single hostname or IP probed by the task.
	Target string `json:"target" example:"192.0.2.10"`
	// StartPort and EndPort bound the inclusive port range.
	StartPort uint16 `json:"start_port" example:"1"`
	EndPort   uint16 `json:"end_port" example:"1024"`
	// TimeoutMs is the per-port connect timeout.
	TimeoutMs uint64 `json:"timeout_ms" example:"500"`
	// Results holds the open ports once the task completes, ascending by port.
	Results []scanner.PortResult `json:"-"`
	// CreatedAt records when the task was created.
	CreatedAt time.Time `json:"created_at" format:"date-time" example:"2024-01-02T15:04:05Z"`
	// CompletedAt is set once the task transitions to a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty" format:"date-time" example:"2024-01-02T15:06:30Z"`
	// Error contains context when a task fails.
	Error string `json:"error,omitempty" example:"target host is required"`
}

// Config returns the scanner configuration described by the task.
func (t *ScanTask) Config(workers int) scanner.ScanConfig {
	return scanner.ScanConfig{
		Target:    t.Target,
		StartPort: t.StartPort,
		EndPort:   t.EndPort,
		TimeoutMs: t.TimeoutMs,
		Workers:   workers,
	}
}

// ScanTaskResponse is a task snapshot with findings derived for presentation.
type ScanTaskResponse struct {
	*ScanTask
	// Findings lists open ports with their service label. Present once the task completed.
	Findings []scanner.Finding `json:"findings,omitempty"`
	// OpenPorts counts the findings.
	OpenPorts int `json:"open_ports"`
}

func newScanTaskResponse(task *ScanTask) ScanTaskResponse {
	resp := ScanTaskResponse{ScanTask: task}
	if task.Status == StatusCompleted {
		resp.Findings = scanner.Findings(task.Results)
		resp.OpenPorts = len(task.Results)
	}
	return resp
}

// CreateScanRequest is the payload for creating new scan tasks.
type CreateScanRequest struct {
	// Target is the hostname or IP address to scan.
	Target string `json:"target" binding:"required" example:"scanme.nmap.org"`
	// StartPort is the first port of the inclusive range.
	StartPort uint16 `json:"start_port" binding:"ltefield=EndPort" example:"20"`
	// EndPort is the last port of the inclusive range.
	EndPort uint16 `json:"end_port" binding:"required" example:"443"`
	// TimeoutMs is the connect timeout per port. Zero selects the default.
	TimeoutMs uint64 `json:"timeout_ms" example:"500"`
}

// newTask builds a pending task without an id from the request, rejecting configurations the scanner would refuse.
func (r CreateScanRequest) newTask() (*ScanTask, error) {
	task := &ScanTask{
		Status:    StatusPending,
		Target:    strings.TrimSpace(r.Target),
		StartPort: r.StartPort,
		EndPort:   r.EndPort,
		TimeoutMs: r.TimeoutMs,
		CreatedAt: time.Now().UTC(),
	}
	if task.Target == "" {
		return nil, ErrEmptyTarget
	}
	if err := task.Config(0).Validate(); err != nil {
		return nil, err
	}
	return task, nil
}

// ScanAcceptedResponse captures the asynchronous acknowledgement returned after job submission.
type ScanAcceptedResponse struct {
	// ID mirrors the queued task identifier returned to clients for polling.
	ID string `json:"id" format:"uuid" example:"a3f5c62e-1234-4f72-a84a-1c2d3e4f5678"`
	// Status is always pending immediately after acceptance.
	Status string `json:"status" enums:"pending" example:"pending"`
}

// ErrorResponse provides a consistent structure for API error payloads.
type ErrorResponse struct {
	// Error is a human-readable explanation of why the request failed.
	Error string `json:"error" example:"task not found"`
}
