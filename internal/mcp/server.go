// Package mcp provides a Model Context Protocol server for gavel.
//
// It exposes the prediction pipeline (predict, analyze, case lookup,
// history, dataset preparation, statistics) as MCP tools over stdio, plus
// corpus statistics as an MCP resource.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/gavel/internal/dataset"
	"github.com/hurttlocker/gavel/internal/model"
	"github.com/hurttlocker/gavel/internal/retrain"
	"github.com/hurttlocker/gavel/internal/service"
	"github.com/hurttlocker/gavel/internal/store"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Service  *service.Service
	Analyzer *model.Analyzer
	Store    store.Store
	Runner   *retrain.Runner
	Version  string
}

// dbMu serializes all MCP tool calls that touch the database. The mcp-go
// library dispatches handlers concurrently via goroutines, and SQLite
// supports only one writer at a time.
var dbMu sync.Mutex

// NewServer creates a configured MCP server with all gavel tools and
// resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"Gavel",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	registerPredictTool(s, cfg.Service)
	registerAnalyzeTool(s, cfg.Analyzer)
	registerCaseTool(s, cfg.Service)
	registerHistoryTool(s, cfg.Service)
	registerPrepareTool(s, cfg.Runner)
	registerStatsTool(s, cfg.Store)

	registerStatsResource(s, cfg.Store)

	return s
}

// toolError translates a pipeline error into a caller-facing tool result.
// Validation and not-found conditions get specific messages; internal
// failures get a generic one so raw diagnostics never leak.
func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, service.ErrMissingDescription):
		return mcp.NewToolResultError("description is required")
	case errors.Is(err, model.ErrBadInput):
		return mcp.NewToolResultError("input text is empty or not valid UTF-8")
	case errors.Is(err, dataset.ErrEmptyInput):
		return mcp.NewToolResultError("no cases available for dataset preparation")
	case errors.Is(err, store.ErrDuplicateCaseNumber):
		return mcp.NewToolResultError("case number already exists")
	case errors.Is(err, store.ErrNotFound):
		return mcp.NewToolResultError("case not found")
	case errors.Is(err, dataset.ErrNoTrainingData):
		return mcp.NewToolResultError("no training data found")
	default:
		return mcp.NewToolResultError("internal error")
	}
}

// --- Tools ---

func registerPredictTool(s *server.MCPServer, svc *service.Service) {
	tool := mcp.NewTool("gavel_predict",
		mcp.WithDescription("Predict a legal verdict (Guilty, Not Guilty, Inconclusive) with confidence from a case description, and persist the prediction as a case record."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("description",
			mcp.Required(),
			mcp.Description("Free-text case description to classify"),
		),
		mcp.WithString("title",
			mcp.Description("Case title (default: 'Untitled Case')"),
		),
		mcp.WithString("plaintiff",
			mcp.Description("Plaintiff name (default: 'Unknown')"),
		),
		mcp.WithString("defendant",
			mcp.Description("Defendant name (default: 'Unknown')"),
		),
		mcp.WithString("case_type",
			mcp.Description("Case type (default: 'General')"),
		),
		mcp.WithString("case_number",
			mcp.Description("Explicit case number; auto-generated when omitted"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		description, err := req.RequireString("description")
		if err != nil {
			return mcp.NewToolResultError("description is required"), nil
		}

		submit := service.SubmitRequest{Description: description}
		if v, err := req.RequireString("title"); err == nil {
			submit.Title = v
		}
		if v, err := req.RequireString("plaintiff"); err == nil {
			submit.Plaintiff = v
		}
		if v, err := req.RequireString("defendant"); err == nil {
			submit.Defendant = v
		}
		if v, err := req.RequireString("case_type"); err == nil {
			submit.CaseType = v
		}
		if v, err := req.RequireString("case_number"); err == nil {
			submit.CaseNumber = v
		}

		stored, err := svc.Submit(ctx, submit)
		if err != nil {
			return toolError(err), nil
		}

		data, _ := json.MarshalIndent(map[string]interface{}{
			"case_id":     stored.ID,
			"verdict":     stored.Verdict,
			"confidence":  stored.ConfidenceScore,
			"case_number": stored.CaseNumber,
		}, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerAnalyzeTool(s *server.MCPServer, analyzer *model.Analyzer) {
	tool := mcp.NewTool("gavel_analyze",
		mcp.WithDescription("Analyze a legal document: verdict with confidence, key legal term contexts, and a leading-sentence summary. Does not persist anything."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Full document text to analyze"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError("text is required"), nil
		}

		analysis, err := analyzer.Analyze(ctx, text)
		if err != nil {
			return toolError(err), nil
		}

		data, _ := json.MarshalIndent(analysis, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerCaseTool(s *server.MCPServer, svc *service.Service) {
	tool := mcp.NewTool("gavel_case",
		mcp.WithDescription("Fetch a stored case record by id."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("Case id"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		idVal, err := req.RequireFloat("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}

		stored, err := svc.GetCase(ctx, int64(idVal))
		if err != nil {
			return toolError(err), nil
		}

		data, _ := json.MarshalIndent(stored, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerHistoryTool(s *server.MCPServer, svc *service.Service) {
	tool := mcp.NewTool("gavel_history",
		mcp.WithDescription("List the 10 most recently created case records, newest first."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		cases, err := svc.History(ctx)
		if err != nil {
			return toolError(err), nil
		}
		if cases == nil {
			cases = []*store.Case{}
		}

		data, _ := json.MarshalIndent(cases, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerPrepareTool(s *server.MCPServer, runner *retrain.Runner) {
	tool := mcp.NewTool("gavel_prepare",
		mcp.WithDescription("Regenerate the labeled train/validation dataset from all stored cases and persist it as a timestamped split."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		report, err := runner.Run(ctx)
		if err != nil {
			return toolError(err), nil
		}

		data, _ := json.MarshalIndent(report, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerStatsTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("gavel_stats",
		mcp.WithDescription("Corpus statistics over all stored cases: totals, verdict and case-type distributions, average confidence, date range."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		cases, err := st.ListAll(ctx)
		if err != nil {
			return toolError(err), nil
		}

		data, _ := json.MarshalIndent(dataset.ComputeStatistics(cases), "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

// --- Resources ---

func registerStatsResource(s *server.MCPServer, st store.Store) {
	resource := mcp.NewResource(
		"gavel://stats",
		"Case Corpus Statistics",
		mcp.WithResourceDescription("Verdict and case-type distributions over the stored prediction history."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		cases, err := st.ListAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading cases: %w", err)
		}

		data, _ := json.MarshalIndent(dataset.ComputeStatistics(cases), "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: req.Params.URI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}
