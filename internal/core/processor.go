package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"

	"diagram_engine/internal/assembler"
	"diagram_engine/internal/detector"
	"diagram_engine/internal/diagram"
	"diagram_engine/internal/document"
	"diagram_engine/internal/patch"
	"diagram_engine/internal/region"
	"diagram_engine/pkg"
	"diagram_engine/src/logger"
)

// Engine drives fragments and edit batches to accepted documents:
// detection and assembly first, then the parse/patch/resolve/validate pipeline.
type Engine struct {
	assembler *assembler.Assembler
	documents DocumentStore
	pipeline  compose.Runnable[*pipelineState, *pipelineState]
}

// NewEngine compiles the pipeline over the given stores
func NewEngine(ctx context.Context, deps Dependencies) (*Engine, error) {
	if deps.Assemblies == nil || deps.Regions == nil {
		return nil, fmt.Errorf("assembly and region stores are required")
	}
	pipeline, err := buildPipeline(ctx, region.NewResolver(deps.Regions))
	if err != nil {
		return nil, err
	}
	return &Engine{
		assembler: assembler.New(deps.Assemblies, deps.Assembly),
		documents: deps.Documents,
		pipeline:  pipeline,
	}, nil
}

// Display handles the first fragment of a generation
func (e *Engine) Display(ctx context.Context, req DisplayRequest) (*Outcome, error) {
	step, err := e.assembler.Start(ctx, req.SessionID, req.Token, detector.Normalize(req.Fragment))
	if err != nil {
		return nil, err
	}
	return e.afterStep(ctx, step)
}

// Append handles a continuation of a truncated fragment
func (e *Engine) Append(ctx context.Context, req AppendRequest) (*Outcome, error) {
	step, err := e.assembler.Continue(ctx, req.SessionID, req.Token, req.Fragment)
	if err != nil {
		if pkg.CodeOf(err) != "" {
			return rejected(req.SessionID, req.Token, err), nil
		}
		return nil, err
	}
	return e.afterStep(ctx, step)
}

// Edit applies an operation batch, all or nothing, to the given document or
// to the session's latest accepted one.
func (e *Engine) Edit(ctx context.Context, req EditRequest) (*Outcome, error) {
	ops, err := patch.FromRecords(req.Operations)
	if err != nil {
		return rejected(req.SessionID, "", err), nil
	}

	text := req.Document
	if strings.TrimSpace(text) == "" {
		var found bool
		if e.documents != nil && req.SessionID != "" {
			text, found, err = e.documents.Load(ctx, req.SessionID)
			if err != nil {
				return nil, fmt.Errorf("load session document: %w", err)
			}
		}
		if !found {
			return rejected(req.SessionID, "", pkg.NewError(pkg.CodeNoDocument,
				fmt.Sprintf("session %q has no accepted document to edit; display one first", req.SessionID))), nil
		}
	}

	cells, err := document.Unwrap(text)
	if err != nil {
		return rejected(req.SessionID, "", err), nil
	}
	base, err := diagram.NewDocument(cells)
	if err != nil {
		return rejected(req.SessionID, "", err), nil
	}

	return e.run(ctx, &pipelineState{sessionID: req.SessionID, base: base, ops: ops}, "", 0)
}

// Abandon discards the pending assembly held by token
func (e *Engine) Abandon(ctx context.Context, token string) (*Outcome, error) {
	existed, err := e.assembler.Abandon(ctx, token)
	if err != nil {
		return nil, err
	}
	if !existed {
		return rejected("", token, pkg.NewError(pkg.CodeNoPendingAssembly, fmt.Sprintf("no pending assembly for token %q", token))), nil
	}
	return &Outcome{
		Status: StatusAbandoned,
		Token:  token,
		Signal: fmt.Sprintf("pending assembly %s discarded", token),
	}, nil
}

func (e *Engine) afterStep(ctx context.Context, step assembler.Step) (*Outcome, error) {
	out := &Outcome{
		SessionID:   step.SessionID,
		Token:       step.Token,
		Round:       step.Round,
		ResumePoint: step.ResumePoint,
		Signal:      step.Signal(),
	}
	switch step.State {
	case assembler.StateAccumulating:
		out.Status = StatusTruncated
		return out, nil
	case assembler.StateRejected:
		out.Status = StatusFreshStartRejected
		out.Diagnostics = []pkg.Diagnostic{{Code: pkg.CodeFreshStartRejected, Message: out.Signal}}
		return out, nil
	case assembler.StateAbandoned:
		out.Status = StatusAbandoned
		out.Diagnostics = []pkg.Diagnostic{{Code: pkg.CodeAssemblyAbandoned, Message: out.Signal}}
		return out, nil
	}
	return e.run(ctx, &pipelineState{sessionID: step.SessionID, fragment: step.Text}, step.Token, step.Round)
}

// run executes the pipeline and saves accepted documents for the session.
func (e *Engine) run(ctx context.Context, st *pipelineState, token string, round int) (*Outcome, error) {
	start := time.Now()
	sessionID := st.sessionID
	st, err := e.pipeline.Invoke(ctx, st)
	if err != nil {
		logger.Error().Err(err).Str("session_id", sessionID).Msg("pipeline failed")
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if st.rejection != nil {
		return rejected(st.sessionID, token, st.rejection), nil
	}

	if e.documents != nil && st.sessionID != "" {
		if err := e.documents.Save(ctx, st.sessionID, st.wrapped); err != nil {
			return nil, fmt.Errorf("save session document: %w", err)
		}
	}

	logger.Info().
		Str("session_id", st.sessionID).
		Int("cells", len(st.cells)).
		Int("unresolved", len(st.unresolved)).
		Int("bytes", len(st.wrapped)).
		Dur("took", time.Since(start)).
		Msg("diagram accepted")

	return &Outcome{
		Status:     StatusAccepted,
		SessionID:  st.sessionID,
		Token:      token,
		Round:      round,
		Document:   st.wrapped,
		CellCount:  len(st.cells),
		Signal:     acceptedSignal(len(st.cells), st.unresolved),
		Unresolved: st.unresolved,
	}, nil
}

func acceptedSignal(cells int, unresolved []pkg.Diagnostic) string {
	msg := fmt.Sprintf("diagram accepted with %d cells", cells)
	if len(unresolved) == 0 {
		return msg
	}
	refs := make([]string, 0, len(unresolved))
	for _, d := range unresolved {
		refs = append(refs, d.Ref)
	}
	return fmt.Sprintf("%s; %d image reference(s) could not be resolved and were left in place: %s",
		msg, len(unresolved), strings.Join(refs, ", "))
}

func rejected(sessionID, token string, err error) *Outcome {
	diags := pkg.DiagnosticsOf(err)
	lines := make([]string, 0, len(diags))
	for _, d := range diags {
		lines = append(lines, "- "+d.String())
	}
	logger.Info().Str("session_id", sessionID).Str("code", string(pkg.CodeOf(err))).Int("diagnostics", len(diags)).Msg("request rejected")
	return &Outcome{
		Status:      StatusRejected,
		SessionID:   sessionID,
		Token:       token,
		Signal:      fmt.Sprintf("%s, fix every issue and retry:\n%s", pkg.CodeOf(err), strings.Join(lines, "\n")),
		Diagnostics: diags,
	}
}
