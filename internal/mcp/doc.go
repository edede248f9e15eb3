// Package mcp implements the Model Context Protocol (MCP) server for
// codeedit using the mcp-go library.
//
// The server exposes the file-mutation and patch engine as MCP tools:
// reads, whole-file writes, line edits, exact-text substitution, batch
// editing, and unified-diff application, plus the supporting directory and
// metadata operations. Every path-bearing tool resolves its argument
// through the allow-list before touching the filesystem, and every
// mutating tool accepts an expected_mtime lock token.
//
// # Transport
//
// The server speaks JSON-RPC 2.0 over stdin/stdout and is typically
// started as a subprocess by an MCP client:
//
//	codeedit serve --root /path/to/project
//
// stdout belongs to the protocol; all logging goes to stderr or a file.
//
// # Architecture
//
// The Server struct is the composition root: it owns the configuration,
// the logger, the editor engine, and the current allow-list. Tool handlers
// are thin adapters that parse arguments, call one engine operation, and
// render the result as JSON. set_root_path is the only handler that
// mutates server state (the active allow-list), guarded by a mutex.
//
// # References
//
// - MCP Specification: https://modelcontextprotocol.io/specification
// - mcp-go Library: https://github.com/mark3labs/mcp-go
package mcp
