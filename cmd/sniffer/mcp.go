package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/CZERTAINLY/Sniffer/internal/history"
	"github.com/CZERTAINLY/Sniffer/internal/log"
	"github.com/CZERTAINLY/Sniffer/internal/model"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

type AnalyzeCodeInput struct {
	FileName string `json:"file_name" jsonschema:"Name of the analyzed file, its extension selects the language: js, jsx, ts, tsx, py or java"`
	Content  string `json:"content" jsonschema:"Source code to analyze"`
	Model    string `json:"model,omitempty" jsonschema:"Remote model id, the configured model is used when empty"`
}

type HistoryListInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum records to return (default 20)"`
}

func newMCPCmd() *cobra.Command {
	var secrets bool
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "serve analyze_code and history_list tools over MCP stdio transport",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := log.ContextAttrs(cmd.Context(), slog.Group("sniffer",
				slog.String("cmd", "mcp"),
				slog.Int("pid", os.Getpid()),
			))
			sniffer, err := NewSniffer(ctx, config, snifferOptions{secrets: secrets})
			if err != nil {
				return err
			}
			defer func() {
				_ = sniffer.Close()
			}()
			slog.InfoContext(ctx, "MCP server listening on stdio")
			return newMCPServer(sniffer).Run(ctx, &mcp.StdioTransport{})
		},
	}
	cmd.Flags().BoolVar(&secrets, "secrets", false, "detect leaked secrets with gitleaks rules")
	return cmd
}

func newMCPServer(s *Sniffer) *mcp.Server {
	srv := mcp.NewServer(
		&mcp.Implementation{
			Name:    "sniffer",
			Version: buildVersion(),
		},
		nil,
	)

	mcp.AddTool(srv, &mcp.Tool{
		Name: "analyze_code",
		Description: `Analyze source code for security code smells.

Returns a JSON list of findings with severity (low, medium or high), message,
line and an optional improvement. A remote model is used when a credential is
configured, local pattern rules otherwise.`,
	}, s.handleAnalyzeCode)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "history_list",
		Description: `List the latest analyses of the current user, newest first.`,
	}, s.handleHistoryList)

	return srv
}

func (s *Sniffer) handleAnalyzeCode(ctx context.Context, _ *mcp.CallToolRequest, input AnalyzeCodeInput) (*mcp.CallToolResult, any, error) {
	if input.FileName == "" {
		return errorResult("file_name is required"), nil, nil
	}
	file, err := s.Analyze(ctx, input.FileName, []byte(input.Content), input.Model)
	if err != nil {
		return errorResult(fmt.Sprintf("analysis failed: %v", err)), nil, nil
	}
	if file.Findings == nil {
		file.Findings = []model.Finding{}
	}
	return jsonResult(file)
}

func (s *Sniffer) handleHistoryList(ctx context.Context, _ *mcp.CallToolRequest, input HistoryListInput) (*mcp.CallToolResult, any, error) {
	if s.local == nil {
		return errorResult("history is disabled"), nil, nil
	}
	limit := input.Limit
	if limit <= 0 {
		limit = history.DefaultLimit
	}
	recs, err := s.local.List(ctx, s.user, limit)
	if err != nil {
		return errorResult(fmt.Sprintf("listing history failed: %v", err)), nil, nil
	}
	return jsonResult(recs)
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, err
	}
	return textResult(string(b)), nil, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + message},
		},
		IsError: true,
	}
}
