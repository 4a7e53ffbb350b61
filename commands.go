package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/tool"
	"github.com/spf13/cobra"

	"diagram_engine/internal/core"
	"diagram_engine/internal/document"
	"diagram_engine/internal/nodes"
	"diagram_engine/internal/patch"
	"diagram_engine/internal/region"
	"diagram_engine/pkg"
	"diagram_engine/src/logger"
)

var (
	tokenFlag    string
	opsFile      string
	documentFile string
	cacheKey     string
)

var displayCmd = &cobra.Command{
	Use:   "display [file|-]",
	Short: "Submit the first fragment of a generated diagram",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fragment, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		out, err := application.engine.Display(cmd.Context(), core.DisplayRequest{SessionID: sessionID, Token: tokenFlag, Fragment: fragment})
		if err != nil {
			return err
		}
		return printJSON(cmd, out)
	},
}

var appendCmd = &cobra.Command{
	Use:   "append [file|-]",
	Short: "Continue a truncated fragment",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fragment, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		out, err := application.engine.Append(cmd.Context(), core.AppendRequest{SessionID: sessionID, Token: tokenFlag, Fragment: fragment})
		if err != nil {
			return err
		}
		return printJSON(cmd, out)
	},
}

var abandonCmd = &cobra.Command{
	Use:   "abandon",
	Short: "Discard a pending assembly",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := application.engine.Abandon(cmd.Context(), tokenFlag)
		if err != nil {
			return err
		}
		return printJSON(cmd, out)
	},
}

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Apply a JSON batch of add/update/delete operations",
	Long: `Reads a JSON array of {"operation","cell_id","new_xml"} records and applies
them all or nothing to --document, or to the session's latest accepted document.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readInput(cmd, []string{opsFile})
		if err != nil {
			return err
		}
		ops, err := patch.DecodeBatch([]byte(raw))
		if err != nil {
			if perr := printJSON(cmd, pkg.DiagnosticsOf(err)); perr != nil {
				return perr
			}
			return err
		}

		req := core.EditRequest{SessionID: sessionID, Operations: patch.Records(ops)}
		if documentFile != "" {
			if req.Document, err = readInput(cmd, []string{documentFile}); err != nil {
				return err
			}
		}
		out, err := application.engine.Edit(cmd.Context(), req)
		if err != nil {
			return err
		}
		return printJSON(cmd, out)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate [file|-]",
	Short: "Check a document for structural problems without storing it",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		cells, err := document.Unwrap(text)
		if err == nil {
			err = document.Validate(cells)
		}
		if err != nil {
			if pkg.CodeOf(err) == "" {
				return err
			}
			if perr := printJSON(cmd, pkg.DiagnosticsOf(err)); perr != nil {
				return perr
			}
			return fmt.Errorf("%s", pkg.CodeOf(err))
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "ok: %d cells\n", len(cells))
		return err
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [file|-]",
	Short: "Substitute cached image references in any XML text",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		return printJSON(cmd, region.NewResolver(application.regions).ResolveText(cmd.Context(), text))
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage cached image regions",
}

var cachePutCmd = &cobra.Command{
	Use:   "put name=payload|name=@file ...",
	Short: "Store image regions under a cache key",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		regions := make(map[string]string, len(args))
		for _, arg := range args {
			name, payload, ok := strings.Cut(arg, "=")
			if !ok || name == "" {
				return fmt.Errorf("expected name=payload, got %q", arg)
			}
			if path, isFile := strings.CutPrefix(payload, "@"); isFile {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read region %s: %w", name, err)
				}
				payload = strings.TrimSpace(string(data))
			}
			regions[name] = payload
		}

		key, err := application.regions.Put(cmd.Context(), cacheKey, regions)
		if err != nil {
			return err
		}
		for name := range regions {
			fmt.Fprintf(cmd.OutOrStdout(), "image=data:cache/%s/%s\n", key, name)
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the stored revisions of the session's document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if application.files == nil {
			return fmt.Errorf("history needs documents.dir to be configured")
		}
		stats, err := application.files.Stats(sessionID)
		if err != nil {
			return err
		}
		revisions, err := application.files.History(sessionID)
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]any{"stats": stats, "revisions": revisions})
	},
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Describe the generator-facing tools",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tools, err := nodes.GetTools(application.engine)
		if err != nil {
			return err
		}
		infos := make([]any, 0, len(tools))
		for _, t := range tools {
			info, err := t.Info(cmd.Context())
			if err != nil {
				return err
			}
			infos = append(infos, info)
		}
		return printJSON(cmd, infos)
	},
}

// toolCall is one line of the stdio protocol
type toolCall struct {
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
}

var stdioCmd = &cobra.Command{
	Use:   "stdio",
	Short: "Serve tool calls as JSON lines on stdin and stdout",
	Long: `Each input line is {"tool": "<name>", "arguments": {...}}. Each output line is
the tool result, or {"error": "..."} when the call itself fails. State lives as
long as the process, so truncated output can be continued across lines.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tools, err := nodes.GetTools(application.engine)
		if err != nil {
			return err
		}
		byName := make(map[string]tool.InvokableTool, len(tools))
		for _, t := range tools {
			info, err := t.Info(cmd.Context())
			if err != nil {
				return err
			}
			byName[info.Name] = t.(tool.InvokableTool)
		}

		scanner := bufio.NewScanner(cmd.InOrStdin())
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		out := cmd.OutOrStdout()
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			result, err := dispatch(cmd, byName, line)
			if err != nil {
				logger.Warn().Err(err).Msg("tool call failed")
				result, _ = sonic.MarshalString(map[string]string{"error": err.Error()})
			}
			if _, err := fmt.Fprintln(out, result); err != nil {
				return err
			}
		}
		return scanner.Err()
	},
}

func dispatch(cmd *cobra.Command, byName map[string]tool.InvokableTool, line string) (string, error) {
	var call toolCall
	if err := sonic.UnmarshalString(line, &call); err != nil {
		return "", fmt.Errorf("invalid tool call: %w", err)
	}
	t, ok := byName[call.Tool]
	if !ok {
		return "", fmt.Errorf("unknown tool %q", call.Tool)
	}
	return t.InvokableRun(cmd.Context(), string(call.Arguments))
}

func init() {
	for _, c := range []*cobra.Command{displayCmd, appendCmd, abandonCmd} {
		c.Flags().StringVarP(&tokenFlag, "token", "t", "", "continuation token")
	}
	_ = appendCmd.MarkFlagRequired("token")
	_ = abandonCmd.MarkFlagRequired("token")

	editCmd.Flags().StringVar(&opsFile, "ops", "-", "JSON operations file, - for stdin")
	editCmd.Flags().StringVar(&documentFile, "document", "", "document to edit instead of the session's latest")

	cachePutCmd.Flags().StringVar(&cacheKey, "key", "", "cache key, minted when empty")
	cacheCmd.AddCommand(cachePutCmd)
	toolsCmd.AddCommand(stdioCmd)
}
