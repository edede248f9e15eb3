// Package fileops provides the low-level filesystem primitives used by the
// editing engine: atomic write and copy commits, reserved-directory
// protection, size-limit checks, and bounded directory scanning.
//
// Functions in this package operate on already-resolved absolute paths.
// Allow-list admission and symlink resolution happen in internal/pathguard
// before any path reaches this layer.
package fileops
