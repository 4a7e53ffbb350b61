// Package assembler accumulates continuation fragments of a truncated
// generation until the completeness detector accepts the whole buffer.
package assembler

import (
	"cmp"
	"context"
	"fmt"
	"time"

	"diagram_engine/internal/detector"
)

// PendingAssembly is the state kept between a truncated fragment and its continuations
type PendingAssembly struct {
	Token     string    `json:"token"`
	SessionID string    `json:"session_id"`
	Buffer    string    `json:"buffer"`
	Round     int       `json:"round"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists pending assemblies by continuation token.
// Load reports ok=false for unknown or expired tokens.
type Store interface {
	Load(ctx context.Context, token string) (*PendingAssembly, bool, error)
	Save(ctx context.Context, p *PendingAssembly) error
	Delete(ctx context.Context, token string) error
}

// State is where a generation stands after a step
type State string

const (
	StateAccumulating State = "accumulating"
	StateComplete     State = "complete"
	StateRejected     State = "rejected"
	StateAbandoned    State = "abandoned"
)

// Step is the result of feeding one fragment
type Step struct {
	State     State
	Token     string
	SessionID string
	Round     int

	// Text is the full document text once State is StateComplete.
	Text string
	// ResumePoint is the trailing slice of the buffer the generator resumes from.
	ResumePoint string
}

// Signal is the instruction relayed to the generator, empty on completion.
func (s Step) Signal() string {
	switch s.State {
	case StateAccumulating:
		return fmt.Sprintf("truncated: resume with append_diagram using token %s, do not include scaffold, resume point is: %s", s.Token, s.ResumePoint)
	case StateRejected:
		return fmt.Sprintf("fresh start rejected: continue the previous output instead of restarting, resume point is: %s", s.ResumePoint)
	case StateAbandoned:
		return fmt.Sprintf("assembly abandoned after %d rounds", s.Round)
	}
	return ""
}

// Config bounds the protocol. Zero fields take defaults.
type Config struct {
	// MaxRounds counts the first fragment as round 1. The call that pushes
	// the count past it abandons the assembly.
	MaxRounds  int
	ResumeTail int
}

const DefaultMaxRounds = 10

func (c Config) maxRounds() int  { return cmp.Or(c.MaxRounds, DefaultMaxRounds) }
func (c Config) resumeTail() int { return cmp.Or(c.ResumeTail, detector.DefaultResumeTail) }
