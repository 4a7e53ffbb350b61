package assembler

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"diagram_engine/internal/detector"
	"diagram_engine/pkg"
	"diagram_engine/src/logger"
)

// Assembler runs the continuation protocol over a Store
type Assembler struct {
	store    Store
	cfg      Config
	locks    *keyedMutex
	newToken func() string
	now      func() time.Time
}

func New(store Store, cfg Config) *Assembler {
	return &Assembler{
		store:    store,
		cfg:      cfg,
		locks:    newKeyedMutex(),
		newToken: uuid.NewString,
		now:      time.Now,
	}
}

// Start feeds the first fragment of a generation. A complete fragment is
// returned as is and nothing is stored. Otherwise a pending assembly is
// created under token, or under a fresh token when token is empty.
//
// A pending assembly already held by token means the generator restarted
// instead of continuing; it is discarded.
func (a *Assembler) Start(ctx context.Context, sessionID, token, fragment string) (Step, error) {
	if token != "" {
		unlock := a.locks.Lock(token)
		defer unlock()

		if _, ok, err := a.store.Load(ctx, token); err != nil {
			return Step{}, fmt.Errorf("load pending assembly: %w", err)
		} else if ok {
			logger.Warn().Str("session_id", sessionID).Str("token", token).Msg("generation restarted, discarding pending assembly")
			if err := a.store.Delete(ctx, token); err != nil {
				return Step{}, fmt.Errorf("discard pending assembly: %w", err)
			}
		}
	}

	if detector.IsComplete(fragment) {
		return Step{State: StateComplete, Token: token, SessionID: sessionID, Round: 1, Text: fragment}, nil
	}

	if token == "" {
		token = a.newToken()
	}
	now := a.now()
	p := &PendingAssembly{
		Token:     token,
		SessionID: sessionID,
		Buffer:    fragment,
		Round:     1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.Save(ctx, p); err != nil {
		return Step{}, fmt.Errorf("save pending assembly: %w", err)
	}
	logger.Debug().Str("session_id", sessionID).Str("token", token).Int("bytes", len(fragment)).Msg("pending assembly created")

	return a.stepFor(p, StateAccumulating), nil
}

// Continue appends a continuation to the pending assembly held by token.
// An unknown token, or one owned by another session, is a NoPendingAssembly error.
func (a *Assembler) Continue(ctx context.Context, sessionID, token, fragment string) (Step, error) {
	if token == "" {
		return Step{}, pkg.NewError(pkg.CodeNoPendingAssembly, "continuation token is required")
	}
	unlock := a.locks.Lock(token)
	defer unlock()

	p, ok, err := a.store.Load(ctx, token)
	if err != nil {
		return Step{}, fmt.Errorf("load pending assembly: %w", err)
	}
	if !ok || (sessionID != "" && p.SessionID != sessionID) {
		return Step{}, pkg.NewError(pkg.CodeNoPendingAssembly, fmt.Sprintf("no pending assembly for token %q", token))
	}

	p.Round++
	p.UpdatedAt = a.now()
	log := logger.Debug().Str("session_id", p.SessionID).Str("token", token).Int("round", p.Round)

	if IsFreshStart(fragment) {
		if p.Round > a.cfg.maxRounds() {
			return a.abandon(ctx, p)
		}
		if err := a.store.Save(ctx, p); err != nil {
			return Step{}, fmt.Errorf("save pending assembly: %w", err)
		}
		log.Msg("continuation restarted the document, rejected")
		return a.stepFor(p, StateRejected), nil
	}

	p.Buffer += fragment
	if detector.IsComplete(p.Buffer) {
		if err := a.store.Delete(ctx, token); err != nil {
			return Step{}, fmt.Errorf("clear pending assembly: %w", err)
		}
		log.Int("bytes", len(p.Buffer)).Msg("assembly complete")
		return Step{State: StateComplete, Token: token, SessionID: p.SessionID, Round: p.Round, Text: p.Buffer}, nil
	}

	if p.Round > a.cfg.maxRounds() {
		return a.abandon(ctx, p)
	}
	if err := a.store.Save(ctx, p); err != nil {
		return Step{}, fmt.Errorf("save pending assembly: %w", err)
	}
	log.Int("bytes", len(p.Buffer)).Msg("still incomplete")
	return a.stepFor(p, StateAccumulating), nil
}

// Abandon drops the pending assembly held by token. It reports whether one existed.
func (a *Assembler) Abandon(ctx context.Context, token string) (bool, error) {
	unlock := a.locks.Lock(token)
	defer unlock()

	_, ok, err := a.store.Load(ctx, token)
	if err != nil {
		return false, fmt.Errorf("load pending assembly: %w", err)
	}
	if !ok {
		return false, nil
	}
	if err := a.store.Delete(ctx, token); err != nil {
		return false, fmt.Errorf("abandon pending assembly: %w", err)
	}
	logger.Info().Str("token", token).Msg("pending assembly abandoned on request")
	return true, nil
}

func (a *Assembler) abandon(ctx context.Context, p *PendingAssembly) (Step, error) {
	if err := a.store.Delete(ctx, p.Token); err != nil {
		return Step{}, fmt.Errorf("abandon pending assembly: %w", err)
	}
	logger.Warn().Str("session_id", p.SessionID).Str("token", p.Token).Int("round", p.Round).Msg("assembly abandoned, round limit reached")
	return Step{State: StateAbandoned, Token: p.Token, SessionID: p.SessionID, Round: p.Round}, nil
}

func (a *Assembler) stepFor(p *PendingAssembly, state State) Step {
	return Step{
		State:       state,
		Token:       p.Token,
		SessionID:   p.SessionID,
		Round:       p.Round,
		ResumePoint: detector.ResumePoint(p.Buffer, a.cfg.resumeTail()),
	}
}

var (
	scaffoldPrefixes = []string{"<?xml", "<mxfile", "<diagram", "<mxGraphModel", "<root>", "<root "}
	reservedCellRe   = regexp.MustCompile(`^<mxCell\s[^>]*?\bid\s*=\s*["'][01]["']`)
)

// IsFreshStart reports whether a continuation opens a new document instead of
// extending the buffer: it begins with scaffold markup or a reserved root cell.
// Leading whitespace and a markdown fence are ignored for the check only.
func IsFreshStart(fragment string) bool {
	s := strings.TrimLeft(fragment, " \t\r\n")
	if strings.HasPrefix(s, "```") {
		s = strings.TrimLeft(detector.Normalize(s), " \t\r\n")
	}
	for _, p := range scaffoldPrefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return reservedCellRe.MatchString(s)
}
