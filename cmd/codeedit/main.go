// Package main is the entry point for the codeedit MCP server.
//
// The binary loads its configuration (the allow-list of editable
// directories and the engine limits), then serves MCP over stdio. The
// active root comes from --root, the config file, or the current working
// directory, in that order of preference.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"codeedit/internal/config"
	"codeedit/internal/logging"
	"codeedit/internal/mcp"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "codeedit",
		Short:        "MCP file editing server",
		Long:         "codeedit serves file read, write, edit, and patch tools over the Model Context Protocol, confined to an allow-list of directories.",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(newServeCommand())
	return rootCmd
}

func newServeCommand() *cobra.Command {
	var (
		rootDir    string
		allowDirs  []string
		configPath string
	)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewAppLogger()

			cfg, err := resolveConfig(rootDir, allowDirs, configPath)
			if err != nil {
				return err
			}

			srv, err := mcp.NewServer(cfg, logger)
			if err != nil {
				return err
			}
			defer srv.Stop()
			return srv.Start()
		},
	}

	flags := serveCmd.Flags()
	flags.StringVar(&rootDir, "root", "", "active root directory (defaults to the config file's root, or the working directory)")
	flags.StringSliceVar(&allowDirs, "allow", nil, "additional allowed directories (repeatable)")
	flags.StringVar(&configPath, "config", "", "config file path (default: the platform config directory)")
	return serveCmd
}

// resolveConfig merges flags with the persisted configuration. Flags win;
// with no config file and no flags, the working directory becomes the root.
func resolveConfig(rootDir string, allowDirs []string, configPath string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	switch {
	case configPath != "":
		cfg, err = config.LoadFrom(configPath)
		if err != nil {
			return nil, err
		}
	case !config.IsFirstRun():
		cfg, err = config.Load()
		if err != nil {
			return nil, err
		}
	default:
		dir := rootDir
		if dir == "" {
			dir, err = os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("cannot determine working directory: %w", err)
			}
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("invalid root %q: %w", dir, err)
		}
		defaulted := config.DefaultConfig(abs)
		cfg = &defaulted
	}

	if rootDir != "" {
		abs, err := filepath.Abs(rootDir)
		if err != nil {
			return nil, fmt.Errorf("invalid root %q: %w", rootDir, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("cannot use %s as root: %w", abs, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", abs)
		}
		cfg.Root = abs
		if !cfg.CoveredBy(abs) {
			cfg.AllowedRoots = append(cfg.AllowedRoots, abs)
		}
	}

	for _, dir := range allowDirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("invalid allowed directory %q: %w", dir, err)
		}
		if !cfg.CoveredBy(abs) {
			cfg.AllowedRoots = append(cfg.AllowedRoots, abs)
		}
	}

	return cfg, nil
}
