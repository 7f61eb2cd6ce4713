// Package mcp provides an MCP (Model Context Protocol) server that exposes
// recorded sessions and command entries as read-only MCP tools, so AI
// tooling can consume the log schema without touching the files directly.
package mcp

import (
	"context"
	"fmt"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/valter-silva-au/recli/internal/storage"
	"github.com/valter-silva-au/recli/pkg/models"
)

// Server wraps the session store and exposes it as MCP tools.
type Server struct {
	server *gomcp.Server
	store  storage.SessionStore
}

// NewServer creates an MCP server over the given session store.
func NewServer(store storage.SessionStore, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{store: store}
	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "recli", Version: version},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio, blocking until the client disconnects
// or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type listSessionsInput struct {
	Status string `json:"status,omitempty" jsonschema:"filter sessions by status (active, stopped)"`
}

type sessionOutput struct {
	SessionID      string `json:"session_id"`
	Host           string `json:"host"`
	Shell          string `json:"shell"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
	EndedAt        string `json:"ended_at,omitempty"`
	LogPath        string `json:"log_path"`
	UngracefulExit bool   `json:"ungraceful_exit,omitempty"`
}

type listSessionsOutput struct {
	Sessions []sessionOutput `json:"sessions"`
	Count    int             `json:"count"`
}

type getSessionInput struct {
	SessionID string `json:"session_id" jsonschema:"required,the session identifier"`
}

type listCommandsInput struct {
	SessionID string `json:"session_id" jsonschema:"required,the session identifier"`
	Limit     int    `json:"limit,omitempty" jsonschema:"maximum number of entries, newest last. Defaults to 50."`
	Level     string `json:"level,omitempty" jsonschema:"filter by event level (INFO, WARN, ERROR)"`
}

type commandOutput struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Command   string `json:"command"`
	Cwd       string `json:"cwd,omitempty"`
	ExitCode  *int   `json:"exit_code,omitempty"`
	Level     string `json:"level"`
	Offset    int    `json:"offset"`
}

type listCommandsOutput struct {
	Commands []commandOutput `json:"commands"`
	Count    int             `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_sessions",
		Description: "List recorded terminal sessions, newest first, with an optional status filter.",
	}, s.handleListSessions)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_session",
		Description: "Get session metadata by ID, including status and log file path.",
	}, s.handleGetSession)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_commands",
		Description: "List captured command entries for a session in offset order: command text, working directory, timestamps, and exit code (absent when unknown).",
	}, s.handleListCommands)
}

// --- Tool handlers ---

func (s *Server) handleListSessions(_ context.Context, _ *gomcp.CallToolRequest, input listSessionsInput) (*gomcp.CallToolResult, listSessionsOutput, error) {
	filter := models.SessionFilter{}
	if input.Status != "" {
		switch status := models.SessionStatus(input.Status); status {
		case models.SessionActive, models.SessionStopped:
			filter.Status = status
		default:
			return errorResult(fmt.Sprintf("invalid status %q: must be active or stopped", input.Status)), listSessionsOutput{}, nil
		}
	}

	sessions, err := s.store.List(filter)
	if err != nil {
		return errorResult(fmt.Sprintf("listing sessions: %s", err)), listSessionsOutput{}, nil
	}

	out := listSessionsOutput{
		Sessions: make([]sessionOutput, len(sessions)),
		Count:    len(sessions),
	}
	for i := range sessions {
		out.Sessions[i] = sessionToOutput(&sessions[i])
	}
	return nil, out, nil
}

func (s *Server) handleGetSession(_ context.Context, _ *gomcp.CallToolRequest, input getSessionInput) (*gomcp.CallToolResult, sessionOutput, error) {
	if input.SessionID == "" {
		return errorResult("session_id is required"), sessionOutput{}, nil
	}

	meta, err := s.store.Get(input.SessionID)
	if err != nil {
		return errorResult(fmt.Sprintf("getting session %s: %s", input.SessionID, err)), sessionOutput{}, nil
	}
	return nil, sessionToOutput(meta), nil
}

func (s *Server) handleListCommands(_ context.Context, _ *gomcp.CallToolRequest, input listCommandsInput) (*gomcp.CallToolResult, listCommandsOutput, error) {
	if input.SessionID == "" {
		return errorResult("session_id is required"), listCommandsOutput{}, nil
	}
	if _, err := s.store.Get(input.SessionID); err != nil {
		return errorResult(fmt.Sprintf("getting session %s: %s", input.SessionID, err)), listCommandsOutput{}, nil
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 50
	}

	events, err := storage.ReadCommandLog(s.store.CommandLogPath(input.SessionID), models.EntryFilter{
		Level: input.Level,
		Limit: limit,
	})
	if err != nil {
		return errorResult(fmt.Sprintf("reading command log: %s", err)), listCommandsOutput{}, nil
	}

	out := listCommandsOutput{
		Commands: make([]commandOutput, len(events)),
		Count:    len(events),
	}
	for i, e := range events {
		out.Commands[i] = commandOutput{
			ID:        e.ID,
			Timestamp: e.Timestamp,
			Command:   e.Command,
			Cwd:       e.Cwd,
			ExitCode:  e.ExitCode,
			Level:     e.Level,
			Offset:    e.Offset,
		}
	}
	return nil, out, nil
}

// --- Helpers ---

func sessionToOutput(meta *models.SessionMetadata) sessionOutput {
	out := sessionOutput{
		SessionID:      meta.SessionID,
		Host:           meta.Host,
		Shell:          meta.Shell,
		Status:         string(meta.Status),
		CreatedAt:      meta.CreatedAt.Format(time.RFC3339),
		LogPath:        meta.LogPath,
		UngracefulExit: meta.UngracefulExit,
	}
	if meta.EndedAt != nil {
		out.EndedAt = meta.EndedAt.Format(time.RFC3339)
	}
	return out
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}
