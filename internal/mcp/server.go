package mcp

import (
	"fmt"
	"sync"

	"codeedit/internal/config"
	"codeedit/internal/editor"
	"codeedit/internal/logging"
	"codeedit/internal/pathguard"

	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Server wires the editor engine to the MCP transport. It is the
// composition root: handlers hold no state of their own and go through the
// engine for every operation.
type Server struct {
	config    *config.Config
	logger    *logging.AppLogger
	engine    *editor.Engine
	mcpServer *server.MCPServer

	// mu guards allowed; set_root_path swaps it at runtime.
	mu      sync.RWMutex
	allowed pathguard.AllowedSet
}

// NewServer creates a server instance from the loaded configuration. The
// allow-list is validated up front so a misconfigured server fails before
// it starts serving.
func NewServer(cfg *config.Config, logger *logging.AppLogger) (*Server, error) {
	allowed, err := pathguard.NewAllowedSet(cfg.Root, cfg.AllowedRoots)
	if err != nil {
		return nil, fmt.Errorf("invalid allow-list: %w", err)
	}
	return &Server{
		config:  cfg,
		logger:  logger,
		engine:  editor.NewEngine(cfg, logger),
		allowed: allowed,
	}, nil
}

// Start registers the tools and serves MCP over stdio until the client
// disconnects.
func (s *Server) Start() error {
	s.logger.Info("Initializing MCP server",
		"root", s.config.Root,
		"allowed_roots", len(s.config.AllowedRoots),
	)

	s.mcpServer = server.NewMCPServer(
		"codeedit",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)
	s.registerTools()

	s.logger.Info("MCP server created, starting stdio communication")
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the MCP server.
func (s *Server) Stop() error {
	s.logger.Info("Stopping MCP server")
	// The mcp-go server cleans up when stdio closes.
	return nil
}

// allowedSet returns the current allow-list under the read lock.
func (s *Server) allowedSet() pathguard.AllowedSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allowed
}

// serverInstructions tells the client how to drive the editing tools.
func serverInstructions() string {
	return `codeedit is a file editing server. All paths resolve against the
active root directory and must stay inside the configured allow-list.

Concurrency contract: read_file and get_file_info return an "mtime" value.
Pass it back as "expected_mtime" on any mutating tool to guarantee the file
was not changed in between; a conflict error means re-read and retry
yourself. Omitting expected_mtime means last-writer-wins.

Editing guidance:
- Prefer edit_block for small targeted changes. old_string must match the
  file exactly (including whitespace) the declared number of times
  (expected_replacements, default 1); otherwise nothing is written and the
  error may include the closest fuzzy match found.
- Use edit_lines / insert_at_line for positional edits; lines are 1-based
  and the interval is inclusive.
- Use apply_unified_diff for larger changes. Every hunk is verified against
  the current content before anything is written; a single mismatch aborts
  the whole patch.
- Use edit_blocks for multi-file changes; error_policy controls whether a
  failure stops the batch (fail-fast), is skipped (continue), or rolls the
  whole batch back (rollback).
- write_file rewrites or appends whole files. Appends to very large files
  are non-atomic and reported as such.`
}
