package core

import (
	"context"

	"diagram_engine/internal/assembler"
	"diagram_engine/internal/region"
	"diagram_engine/pkg"
)

// Status is the overall result of an engine call
type Status string

const (
	StatusAccepted           Status = "accepted"
	StatusTruncated          Status = "truncated"
	StatusFreshStartRejected Status = "fresh_start_rejected"
	StatusAbandoned          Status = "abandoned"
	StatusRejected           Status = "rejected"
)

// DocumentStore keeps the latest accepted document of each session
type DocumentStore interface {
	Load(ctx context.Context, sessionID string) (string, bool, error)
	Save(ctx context.Context, sessionID, document string) error
}

// DisplayRequest carries the first fragment of a generation
type DisplayRequest struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token,omitempty"` // optional continuation token, e.g. the tool call id
	Fragment  string `json:"fragment"`
}

// AppendRequest carries a continuation of a truncated fragment
type AppendRequest struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
	Fragment  string `json:"fragment"`
}

// EditRequest carries an operation batch. An empty Document edits the
// session's latest accepted document.
type EditRequest struct {
	SessionID  string                `json:"session_id"`
	Document   string                `json:"document,omitempty"`
	Operations []pkg.OperationRecord `json:"operations"`
}

// Outcome is what the engine reports back for every call
type Outcome struct {
	Status      Status           `json:"status"`
	SessionID   string           `json:"session_id,omitempty"`
	Token       string           `json:"token,omitempty"`
	Round       int              `json:"round,omitempty"`
	Document    string           `json:"document,omitempty"`
	CellCount   int              `json:"cell_count,omitempty"`
	ResumePoint string           `json:"resume_point,omitempty"`
	Signal      string           `json:"signal"` // text to relay to the generator
	Diagnostics []pkg.Diagnostic `json:"diagnostics,omitempty"`
	Unresolved  []pkg.Diagnostic `json:"unresolved,omitempty"`
}

// Accepted reports whether a final document was produced
func (o *Outcome) Accepted() bool {
	return o != nil && o.Status == StatusAccepted
}

// Dependencies are the stores the engine runs on
type Dependencies struct {
	Assemblies assembler.Store
	Regions    region.Store
	Documents  DocumentStore // optional
	Assembly   assembler.Config
}
