package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"diagram_engine/internal/diagram"
	"diagram_engine/internal/document"
	"diagram_engine/internal/patch"
	"diagram_engine/internal/region"
	"diagram_engine/pkg"
	"diagram_engine/src/logger"
)

// pipelineState flows through every node of the pipeline graph. Once
// rejection is set the remaining nodes pass it through untouched.
type pipelineState struct {
	sessionID string

	// either a complete fragment, or a base document plus operations
	fragment string
	base     *diagram.Document
	ops      []patch.Operation

	cells      []diagram.Cell
	unresolved []pkg.Diagnostic
	wrapped    string
	rejection  *pkg.Error
}

func (s *pipelineState) reject(err error) {
	var e *pkg.Error
	if errors.As(err, &e) {
		s.rejection = e
		return
	}
	s.rejection = pkg.NewError(pkg.CodeMalformedFragment, err.Error())
}

const (
	nodeParse    = "parse"
	nodePatch    = "patch"
	nodeResolve  = "resolve"
	nodeValidate = "validate"
	nodeWrap     = "wrap"
)

// buildPipeline compiles parse -> patch -> resolve -> validate -> wrap.
func buildPipeline(ctx context.Context, resolver *region.Resolver) (compose.Runnable[*pipelineState, *pipelineState], error) {
	graph := compose.NewGraph[*pipelineState, *pipelineState]()

	parse := compose.InvokableLambda(func(ctx context.Context, st *pipelineState) (*pipelineState, error) {
		if st.rejection != nil || st.base != nil {
			return st, nil
		}
		cells, err := document.Unwrap(st.fragment)
		if err != nil {
			st.reject(err)
			return st, nil
		}
		if len(cells) == 0 {
			st.reject(pkg.NewError(pkg.CodeMalformedFragment, "fragment contains no cells", pkg.Diagnostic{
				Code:    pkg.CodeMalformedFragment,
				Message: "fragment contains no " + diagram.ElementCell + " elements",
			}))
			return st, nil
		}
		st.cells = cells
		return st, nil
	})

	apply := compose.InvokableLambda(func(ctx context.Context, st *pipelineState) (*pipelineState, error) {
		if st.rejection != nil || st.base == nil {
			return st, nil
		}
		patched, err := patch.Apply(st.base, st.ops)
		if err != nil {
			st.reject(err)
			return st, nil
		}
		st.cells = patched.Cells()
		return st, nil
	})

	resolve := compose.InvokableLambda(func(ctx context.Context, st *pipelineState) (*pipelineState, error) {
		if st.rejection != nil {
			return st, nil
		}
		res := resolver.ResolveCells(ctx, st.cells)
		st.cells = res.Cells
		st.unresolved = res.Unresolved
		return st, nil
	})

	validate := compose.InvokableLambda(func(ctx context.Context, st *pipelineState) (*pipelineState, error) {
		if st.rejection != nil {
			return st, nil
		}
		if err := document.Validate(st.cells); err != nil {
			logger.Info().Str("session_id", st.sessionID).Int("violations", len(pkg.DiagnosticsOf(err))).Msg("document failed validation")
			st.reject(err)
		}
		return st, nil
	})

	wrap := compose.InvokableLambda(func(ctx context.Context, st *pipelineState) (*pipelineState, error) {
		if st.rejection != nil {
			return st, nil
		}
		st.wrapped = document.Wrap(st.cells)
		return st, nil
	})

	nodes := []struct {
		name   string
		lambda *compose.Lambda
	}{
		{nodeParse, parse},
		{nodePatch, apply},
		{nodeResolve, resolve},
		{nodeValidate, validate},
		{nodeWrap, wrap},
	}
	prev := compose.START
	for _, n := range nodes {
		if err := graph.AddLambdaNode(n.name, n.lambda); err != nil {
			return nil, fmt.Errorf("failed to add %s node: %w", n.name, err)
		}
		if err := graph.AddEdge(prev, n.name); err != nil {
			return nil, fmt.Errorf("failed to add edge %s -> %s: %w", prev, n.name, err)
		}
		prev = n.name
	}
	if err := graph.AddEdge(prev, compose.END); err != nil {
		return nil, fmt.Errorf("failed to add end edge: %w", err)
	}

	runnable, err := graph.Compile(ctx, compose.WithGraphName("diagram_pipeline"))
	if err != nil {
		return nil, fmt.Errorf("failed to compile pipeline: %w", err)
	}
	return runnable, nil
}
