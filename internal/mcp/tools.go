package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"codeedit/internal/editor"
	"codeedit/internal/pathguard"

	"github.com/mark3labs/mcp-go/mcp"
)

// registerTools declares every tool and binds it to its engine operation.
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("read_file",
		mcp.WithDescription("Read a text file as a window of lines, or an image file as base64. Returns the file's mtime for use as expected_mtime on later edits."),
		mcp.WithString("path", mcp.Required(), mcp.Description("File path, absolute or relative to the active root")),
		mcp.WithNumber("offset", mcp.Description("0-based line to start from; negative reads the last |offset| lines")),
		mcp.WithNumber("length", mcp.Description("Maximum number of lines to return")),
		mcp.WithString("encoding", mcp.Description("Text encoding of the file, e.g. utf-8 (default) or latin-1")),
	), s.handleReadFile)

	s.mcpServer.AddTool(mcp.NewTool("write_file",
		mcp.WithDescription("Rewrite a file's full content or append to it. The write is atomic; missing parent directories are created."),
		mcp.WithString("path", mcp.Required(), mcp.Description("File path to write")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Content to write")),
		mcp.WithString("mode", mcp.Description("\"rewrite\" (default) replaces the file, \"append\" adds to the end")),
		mcp.WithString("encoding", mcp.Description("Text encoding for the write (default utf-8)")),
		mcp.WithNumber("expected_mtime", mcp.Description("Lock token from a prior read; mismatch aborts the write")),
	), s.handleWriteFile)

	s.mcpServer.AddTool(mcp.NewTool("edit_lines",
		mcp.WithDescription("Replace a closed 1-based line interval [start_line, end_line] with new content. The replacement may contain a different number of lines."),
		mcp.WithString("path", mcp.Required(), mcp.Description("File path to edit")),
		mcp.WithNumber("start_line", mcp.Required(), mcp.Description("First line to replace (1-based)")),
		mcp.WithNumber("end_line", mcp.Required(), mcp.Description("Last line to replace (inclusive)")),
		mcp.WithString("new_content", mcp.Required(), mcp.Description("Replacement text for the interval")),
		mcp.WithString("encoding", mcp.Description("Text encoding of the file (default utf-8)")),
		mcp.WithNumber("expected_mtime", mcp.Description("Lock token from a prior read")),
	), s.handleEditLines)

	s.mcpServer.AddTool(mcp.NewTool("insert_at_line",
		mcp.WithDescription("Insert content after the given 1-based line. line_number 0 inserts before the first line."),
		mcp.WithString("path", mcp.Required(), mcp.Description("File path to edit")),
		mcp.WithNumber("line_number", mcp.Required(), mcp.Description("Line to insert after; 0 inserts at the top")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Content to insert")),
		mcp.WithString("encoding", mcp.Description("Text encoding of the file (default utf-8)")),
		mcp.WithNumber("expected_mtime", mcp.Description("Lock token from a prior read")),
	), s.handleInsertAtLine)

	s.mcpServer.AddTool(mcp.NewTool("edit_block",
		mcp.WithDescription("Replace exact occurrences of old_string with new_string. The file is only written when the occurrence count equals expected_replacements; otherwise the error reports what was found, with a fuzzy near-miss hint when nothing matched."),
		mcp.WithString("path", mcp.Required(), mcp.Description("File path to edit")),
		mcp.WithString("old_string", mcp.Required(), mcp.Description("Exact text to find (must match byte for byte, including whitespace)")),
		mcp.WithString("new_string", mcp.Required(), mcp.Description("Replacement text")),
		mcp.WithNumber("expected_replacements", mcp.Description("How many occurrences must exist (default 1)")),
		mcp.WithBoolean("ignore_whitespace", mcp.Description("Match with whitespace runs collapsed when the exact match fails")),
		mcp.WithString("encoding", mcp.Description("Text encoding of the file (default utf-8)")),
		mcp.WithNumber("expected_mtime", mcp.Description("Lock token from a prior read")),
	), s.handleEditBlock)

	s.mcpServer.AddTool(mcp.NewTool("edit_blocks",
		mcp.WithDescription("Apply multiple edit_block substitutions across files in one call. Edits on the same file apply in order against each other's output; each file is written at most once."),
		mcp.WithArray("edits", mcp.Required(), mcp.Description("Edit objects with file_path, old_string, new_string, and optionally expected_replacements, ignore_whitespace, expected_mtime")),
		mcp.WithString("error_policy", mcp.Description("\"fail-fast\" (default) stops at the first failure, \"continue\" attempts everything, \"rollback\" commits nothing unless every edit succeeded")),
	), s.handleEditBlocks)

	s.mcpServer.AddTool(mcp.NewTool("apply_unified_diff",
		mcp.WithDescription("Apply a unified diff to one file. Every hunk is verified against the current content before anything is written; any mismatch leaves the file untouched."),
		mcp.WithString("path", mcp.Required(), mcp.Description("File path to patch")),
		mcp.WithString("diff", mcp.Required(), mcp.Description("Unified diff text with @@ hunk headers")),
		mcp.WithString("encoding", mcp.Description("Text encoding of the file (default utf-8)")),
		mcp.WithNumber("expected_mtime", mcp.Description("Lock token from a prior read")),
	), s.handleApplyUnifiedDiff)

	s.mcpServer.AddTool(mcp.NewTool("copy_file",
		mcp.WithDescription("Copy a file. The destination must not already exist."),
		mcp.WithString("source_path", mcp.Required(), mcp.Description("File to copy")),
		mcp.WithString("destination_path", mcp.Required(), mcp.Description("Target path; must not exist")),
		mcp.WithNumber("expected_mtime", mcp.Description("Lock token for the source file")),
	), s.handleCopyFile)

	s.mcpServer.AddTool(mcp.NewTool("move_file",
		mcp.WithDescription("Move or rename a file or directory. The destination must not already exist."),
		mcp.WithString("source_path", mcp.Required(), mcp.Description("Path to move")),
		mcp.WithString("destination_path", mcp.Required(), mcp.Description("Target path; must not exist")),
		mcp.WithNumber("expected_mtime", mcp.Description("Lock token for the source")),
	), s.handleMoveFile)

	s.mcpServer.AddTool(mcp.NewTool("delete_file",
		mcp.WithDescription("Delete a single file. Refuses directories."),
		mcp.WithString("path", mcp.Required(), mcp.Description("File to delete")),
		mcp.WithNumber("expected_mtime", mcp.Description("Lock token from a prior read")),
	), s.handleDeleteFile)

	s.mcpServer.AddTool(mcp.NewTool("delete_directory",
		mcp.WithDescription("Recursively delete a directory. The active root, its ancestors, and critical system directories are always refused."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Directory to delete")),
		mcp.WithNumber("expected_mtime", mcp.Description("Lock token for the directory")),
	), s.handleDeleteDirectory)

	s.mcpServer.AddTool(mcp.NewTool("create_directory",
		mcp.WithDescription("Create a directory inside the allow-list, including parents."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Directory to create")),
	), s.handleCreateDirectory)

	s.mcpServer.AddTool(mcp.NewTool("get_file_info",
		mcp.WithDescription("Stat a file or directory: size, mtime (usable as expected_mtime), permissions, and line count for small text files."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to inspect")),
	), s.handleGetFileInfo)

	s.mcpServer.AddTool(mcp.NewTool("list_directory",
		mcp.WithDescription("List a directory. Tree format recurses to the given depth with [DIR]/[FILE] markers; flat format returns immediate children with metadata."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Directory to list")),
		mcp.WithString("format", mcp.Description("\"tree\" (default) or \"flat\"")),
		mcp.WithNumber("depth", mcp.Description("Recursion depth for tree format (default 1)")),
		mcp.WithArray("ignore_patterns", mcp.Description("Name patterns to skip in flat format (default .git, node_modules, __pycache__, .DS_Store)")),
	), s.handleListDirectory)

	s.mcpServer.AddTool(mcp.NewTool("list_allowed_roots",
		mcp.WithDescription("Return the active root and the full allow-list of directories the server may touch."),
	), s.handleListAllowedRoots)

	s.mcpServer.AddTool(mcp.NewTool("set_root_path",
		mcp.WithDescription("Switch the active root directory. The new root is added to the persisted allow-list if not already covered."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Directory to use as the new active root")),
	), s.handleSetRootPath)
}

// jsonResult renders a structured result as an indented JSON text payload.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// optionalFloat reads a number argument as a pointer, distinguishing
// "absent" from zero. Lock tokens need that distinction.
func optionalFloat(request mcp.CallToolRequest, key string) *float64 {
	v, ok := request.GetArguments()[key]
	if !ok || v == nil {
		return nil
	}
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	return &f
}

func optionalInt(request mcp.CallToolRequest, key string) *int {
	v, ok := request.GetArguments()[key]
	if !ok || v == nil {
		return nil
	}
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	n := int(f)
	return &n
}

func stringSliceArg(request mcp.CallToolRequest, key string) []string {
	raw, ok := request.GetArguments()[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (s *Server) handleReadFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	offset := request.GetInt("offset", 0)
	length := optionalInt(request, "length")
	encoding := request.GetString("encoding", "")

	result, err := s.engine.ReadFile(s.allowedSet(), path, offset, length, encoding)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (s *Server) handleWriteFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := request.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mode := request.GetString("mode", "rewrite")
	encoding := request.GetString("encoding", "")

	result, err := s.engine.WriteFile(s.allowedSet(), path, content, mode, encoding, optionalFloat(request, "expected_mtime"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (s *Server) handleEditLines(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	startLine, err := request.RequireInt("start_line")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	endLine, err := request.RequireInt("end_line")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	newContent, err := request.RequireString("new_content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	encoding := request.GetString("encoding", "")

	result, err := s.engine.EditLines(s.allowedSet(), path, startLine, endLine, newContent, encoding, optionalFloat(request, "expected_mtime"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (s *Server) handleInsertAtLine(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lineNumber, err := request.RequireInt("line_number")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := request.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	encoding := request.GetString("encoding", "")

	result, err := s.engine.InsertAtLine(s.allowedSet(), path, lineNumber, content, encoding, optionalFloat(request, "expected_mtime"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (s *Server) handleEditBlock(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	oldString, err := request.RequireString("old_string")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	newString, err := request.RequireString("new_string")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	expected := request.GetInt("expected_replacements", 1)
	ignoreWhitespace := request.GetBool("ignore_whitespace", false)
	encoding := request.GetString("encoding", "")

	result, err := s.engine.EditBlock(s.allowedSet(), path, oldString, newString, expected, ignoreWhitespace, encoding, optionalFloat(request, "expected_mtime"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (s *Server) handleEditBlocks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawEdits, ok := request.GetArguments()["edits"]
	if !ok {
		return mcp.NewToolResultError("edits is required"), nil
	}
	// Round-trip through JSON to map the loosely-typed argument array onto
	// the typed edit structs.
	data, err := json.Marshal(rawEdits)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid edits: %v", err)), nil
	}
	var edits []editor.BlockEdit
	if err := json.Unmarshal(data, &edits); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid edits: %v", err)), nil
	}
	policy := editor.Policy(request.GetString("error_policy", ""))

	result, err := s.engine.EditBlocks(s.allowedSet(), edits, policy)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (s *Server) handleApplyUnifiedDiff(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	diff, err := request.RequireString("diff")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	encoding := request.GetString("encoding", "")

	result, err := s.engine.ApplyDiff(s.allowedSet(), path, diff, encoding, optionalFloat(request, "expected_mtime"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (s *Server) handleCopyFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := request.RequireString("source_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dest, err := request.RequireString("destination_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := s.engine.CopyFile(s.allowedSet(), source, dest, optionalFloat(request, "expected_mtime"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (s *Server) handleMoveFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := request.RequireString("source_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dest, err := request.RequireString("destination_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := s.engine.MoveFile(s.allowedSet(), source, dest, optionalFloat(request, "expected_mtime"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (s *Server) handleDeleteFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	msg, err := s.engine.DeleteFile(s.allowedSet(), path, optionalFloat(request, "expected_mtime"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(msg), nil
}

func (s *Server) handleDeleteDirectory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	msg, err := s.engine.DeleteDirectory(s.allowedSet(), path, optionalFloat(request, "expected_mtime"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(msg), nil
}

func (s *Server) handleCreateDirectory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	msg, err := s.engine.CreateDirectory(s.allowedSet(), path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(msg), nil
}

func (s *Server) handleGetFileInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	info, err := s.engine.FileInfo(s.allowedSet(), path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(info)
}

func (s *Server) handleListDirectory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	format := request.GetString("format", "tree")

	switch format {
	case "tree":
		depth := request.GetInt("depth", 1)
		lines, err := s.engine.ListDirectoryTree(s.allowedSet(), path, depth)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if len(lines) == 0 {
			return mcp.NewToolResultText("(empty directory)"), nil
		}
		return mcp.NewToolResultText(strings.Join(lines, "\n")), nil

	case "flat":
		entries, err := s.engine.ListDirectoryFlat(s.allowedSet(), path, stringSliceArg(request, "ignore_patterns"))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(entries)

	default:
		return mcp.NewToolResultError(fmt.Sprintf("format must be \"tree\" or \"flat\", got %q", format)), nil
	}
}

func (s *Server) handleListAllowedRoots(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return jsonResult(map[string]any{
		"root":          s.allowed.Root(),
		"allowed_roots": s.allowed.Roots(),
	})
}

func (s *Server) handleSetRootPath(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid path: %v", err)), nil
	}
	info, err := os.Stat(abs)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot use %s as root: %v", abs, err)), nil
	}
	if !info.IsDir() {
		return mcp.NewToolResultError(fmt.Sprintf("%s is not a directory", abs)), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.config.SetRoot(abs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	allowed, err := pathguard.NewAllowedSet(s.config.Root, s.config.AllowedRoots)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("allow-list rejected: %v", err)), nil
	}
	s.allowed = allowed

	s.logger.Info("Active root changed", "root", abs)
	return jsonResult(map[string]any{
		"root":          s.config.Root,
		"allowed_roots": s.config.AllowedRoots,
	})
}
