package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"

	"diagram_engine/internal/core"
	"diagram_engine/pkg"
	"diagram_engine/src/logger"
)

// Tool names the generator sees
const (
	DisplayDiagramToolName = "display_diagram"
	AppendDiagramToolName  = "append_diagram"
	EditDiagramToolName    = "edit_diagram"
)

// DiagramEngine is the part of core.Engine the tools call
type DiagramEngine interface {
	Display(ctx context.Context, req core.DisplayRequest) (*core.Outcome, error)
	Append(ctx context.Context, req core.AppendRequest) (*core.Outcome, error)
	Edit(ctx context.Context, req core.EditRequest) (*core.Outcome, error)
}

type DisplayDiagramInput struct {
	SessionID string `json:"session_id" jsonschema:"description=Conversation session id"`
	Token     string `json:"token,omitempty" jsonschema:"description=Optional id used to continue this output if it gets truncated"`
	XML       string `json:"xml" jsonschema:"description=Flat sibling mxCell elements without the mxGraphModel/root wrapper and without cells 0 and 1"`
}

type AppendDiagramInput struct {
	SessionID string `json:"session_id" jsonschema:"description=Conversation session id"`
	Token     string `json:"token" jsonschema:"description=Token returned by the truncated display_diagram call"`
	XML       string `json:"xml" jsonschema:"description=Continuation starting exactly at the resume point with no wrapper"`
}

type EditDiagramInput struct {
	SessionID  string                `json:"session_id" jsonschema:"description=Conversation session id"`
	Document   string                `json:"document,omitempty" jsonschema:"description=Document to edit. Defaults to the last accepted document of the session"`
	Operations []pkg.OperationRecord `json:"operations" jsonschema:"description=Ordered add/update/delete operations applied all or nothing"`
}

// ToolResult is the JSON the generator receives from every diagram tool
type ToolResult struct {
	Status      string           `json:"status"`
	Token       string           `json:"token,omitempty"`
	Round       int              `json:"round,omitempty"`
	Document    string           `json:"document,omitempty"`
	Message     string           `json:"message"`
	Diagnostics []pkg.Diagnostic `json:"diagnostics,omitempty"`
}

func toResult(out *core.Outcome) ToolResult {
	diags := out.Diagnostics
	if len(out.Unresolved) > 0 {
		diags = append(append([]pkg.Diagnostic(nil), diags...), out.Unresolved...)
	}
	return ToolResult{
		Status:      string(out.Status),
		Token:       out.Token,
		Round:       out.Round,
		Document:    out.Document,
		Message:     out.Signal,
		Diagnostics: diags,
	}
}

// DisplayDiagramTool creates the tool that takes the first fragment of a diagram
func DisplayDiagramTool(engine DiagramEngine) (tool.InvokableTool, error) {
	return utils.InferTool(DisplayDiagramToolName,
		"Render a diagram from mxCell elements. If the output is cut off the result says where to resume with append_diagram.",
		func(ctx context.Context, in DisplayDiagramInput) (ToolResult, error) {
			logger.Debug().Str("tool", DisplayDiagramToolName).Str("session_id", in.SessionID).Int("bytes", len(in.XML)).Msg("tool called")
			out, err := engine.Display(ctx, core.DisplayRequest{SessionID: in.SessionID, Token: in.Token, Fragment: in.XML})
			if err != nil {
				return ToolResult{}, fmt.Errorf("%s: %w", DisplayDiagramToolName, err)
			}
			return toResult(out), nil
		})
}

// AppendDiagramTool creates the tool that continues a truncated display_diagram call
func AppendDiagramTool(engine DiagramEngine) (tool.InvokableTool, error) {
	return utils.InferTool(AppendDiagramToolName,
		"Continue a truncated diagram. Send only the text that follows the resume point and never restart the document.",
		func(ctx context.Context, in AppendDiagramInput) (ToolResult, error) {
			logger.Debug().Str("tool", AppendDiagramToolName).Str("session_id", in.SessionID).Str("token", in.Token).Int("bytes", len(in.XML)).Msg("tool called")
			out, err := engine.Append(ctx, core.AppendRequest{SessionID: in.SessionID, Token: in.Token, Fragment: in.XML})
			if err != nil {
				return ToolResult{}, fmt.Errorf("%s: %w", AppendDiagramToolName, err)
			}
			return toResult(out), nil
		})
}

// EditDiagramTool creates the tool that patches an existing diagram by cell id
func EditDiagramTool(engine DiagramEngine) (tool.InvokableTool, error) {
	return utils.InferTool(EditDiagramToolName,
		"Edit an existing diagram by cell id. Deleting a cell also deletes its children and connected edges. If any operation fails nothing is changed.",
		func(ctx context.Context, in EditDiagramInput) (ToolResult, error) {
			logger.Debug().Str("tool", EditDiagramToolName).Str("session_id", in.SessionID).Int("operations", len(in.Operations)).Msg("tool called")
			out, err := engine.Edit(ctx, core.EditRequest{SessionID: in.SessionID, Document: in.Document, Operations: in.Operations})
			if err != nil {
				return ToolResult{}, fmt.Errorf("%s: %w", EditDiagramToolName, err)
			}
			return toResult(out), nil
		})
}

// GetTools returns all diagram tools bound to engine
func GetTools(engine DiagramEngine) ([]tool.BaseTool, error) {
	builders := []func(DiagramEngine) (tool.InvokableTool, error){
		DisplayDiagramTool,
		AppendDiagramTool,
		EditDiagramTool,
	}
	tools := make([]tool.BaseTool, 0, len(builders))
	for _, build := range builders {
		t, err := build(engine)
		if err != nil {
			return nil, fmt.Errorf("failed to build tool: %w", err)
		}
		tools = append(tools, t)
	}
	return tools, nil
}
