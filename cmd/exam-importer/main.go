package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/a3tai/exam-pdf-importer/internal/config"
	"github.com/a3tai/exam-pdf-importer/internal/importer"
	"github.com/a3tai/exam-pdf-importer/internal/keywords"
	"github.com/a3tai/exam-pdf-importer/internal/logging"
	"github.com/a3tai/exam-pdf-importer/internal/mcp"
	"github.com/a3tai/exam-pdf-importer/internal/stability"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// Exit codes.
const (
	exitOK      = 0
	exitFailed  = 1
	exitUsage   = 2
	exitNothing = 3
)

func main() {
	cfg, err := config.LoadFromFlags()
	if errors.Is(err, config.ErrVersionRequested) {
		printVersion(os.Stdout)
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(exitUsage)
	}

	// Set version if it was provided during build
	if version != "dev" {
		cfg.Version = version
	}

	logger, closer, err := logging.New(cfg.LogOptions(os.Stdout, os.Stderr))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(exitUsage)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, cfg, logger)
	stop()
	_ = closer.Close()
	os.Exit(code)
}

// run executes the configured mode and returns the process exit code.
func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) int {
	if cfg.IsDebug() {
		logger.WithField("config", cfg.String()).Debug("configuration loaded")
	}

	tables, err := keywords.Load(cfg.KeywordsFile)
	if err != nil {
		logger.WithError(err).Error("failed to load keyword tables")
		return exitUsage
	}

	guard := stability.NewGuard(logger)
	guard.SetMemoryLimit(cfg.MemoryLimitMB)

	if cfg.IsStdioMode() {
		return runStdioMode(ctx, cfg, tables, logger, guard)
	}
	return runBatchMode(ctx, cfg, tables, logger, guard)
}

// runBatchMode imports the input directory once.
func runBatchMode(ctx context.Context, cfg *config.Config, tables *keywords.Tables, logger *logrus.Logger, guard *stability.Guard) int {
	imp := importer.New(cfg.ImportOptions(), tables, logger, importer.WithGuard(guard))

	sum, err := imp.ImportDir(ctx, cfg.InputDir)
	if err != nil {
		logger.WithError(err).Error("import failed")
		return exitFailed
	}
	if ctx.Err() != nil {
		logger.Warn("import interrupted")
		return exitFailed
	}
	if len(sum.Written) == 0 {
		logger.WithField("documents", len(sum.Results)).Error("no dataset was produced")
		return exitNothing
	}
	return exitOK
}

// runStdioMode serves the MCP tools until the client closes stdin.
func runStdioMode(ctx context.Context, cfg *config.Config, tables *keywords.Tables, logger *logrus.Logger, guard *stability.Guard) int {
	server, err := mcp.NewServer(cfg, tables, logger, importer.WithGuard(guard))
	if err != nil {
		logger.WithError(err).Error("failed to create MCP server")
		return exitFailed
	}
	if err := server.Run(ctx); err != nil {
		logger.WithError(err).Error("server error")
		return exitFailed
	}
	return exitOK
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "Exam PDF Importer\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}
