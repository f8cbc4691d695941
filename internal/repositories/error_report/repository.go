// Package errorreport stores the errors reporters hand off, so they can be
// listed and inspected after the fact.
package errorreport

import (
	"context"
	"time"
)

//go:generate mockgen -destination=mock/mock_repository.go -package=errorreportmock github.com/KirkDiggler/errtransform/internal/repositories/error_report Repository

// Report is a single recorded error
type Report struct {
	ID string `json:"id"`

	// Kind is the reported kind name, never a reportable variant name
	Kind string `json:"kind"`
	Code string `json:"code"`

	Message string `json:"message"`

	// Error is the full rendered error text including causes
	Error string `json:"error"`

	// Original is the text of the error a rewrite replaced, if any
	Original string `json:"original,omitempty"`

	// Group and Action identify the classification call that surfaced it
	Group  string `json:"group,omitempty"`
	Action string `json:"action,omitempty"`

	Stack []string          `json:"stack,omitempty"`
	Meta  map[string]string `json:"meta,omitempty"`

	ReportedAt time.Time `json:"reported_at"`
}

// CreateInput contains parameters for recording a report
type CreateInput struct {
	Kind     string
	Code     string
	Message  string
	Error    string
	Original string
	Group    string
	Action   string
	Stack    []string
	Meta     map[string]string
}

// CreateOutput contains the stored report
type CreateOutput struct {
	Report *Report
}

// GetInput contains parameters for retrieving a report
type GetInput struct {
	ID string
}

// GetOutput contains the retrieved report
type GetOutput struct {
	Report *Report
}

// ListInput selects the reports to list. An empty Kind lists reports of
// every kind.
type ListInput struct {
	Kind  string
	Limit int
}

// ListOutput contains reports, newest first
type ListOutput struct {
	Reports []*Report
}

// Repository defines the interface for error report storage operations
type Repository interface {
	// Create records a new report and indexes it by kind
	Create(ctx context.Context, input CreateInput) (*CreateOutput, error)

	// Get retrieves a report by ID
	Get(ctx context.Context, input GetInput) (*GetOutput, error)

	// List returns the most recent reports, skipping any that expired
	List(ctx context.Context, input ListInput) (*ListOutput, error)
}
