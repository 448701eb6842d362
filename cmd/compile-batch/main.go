package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/receipts-compiler/internal/app"
	"github.com/joseph-ayodele/receipts-compiler/internal/common"
	"github.com/joseph-ayodele/receipts-compiler/internal/request"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitConfig  = 2
	exitCompile = 3
)

const (
	sessionTTL      = 15 * time.Minute
	defaultLocalDir = "./data"
)

func main() {
	_ = godotenv.Load()
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one compilation and returns the process exit code. Every
// resource it opens is released before it returns.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("compile-batch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		reqPath  = fs.String("request", "", "path to a compile request JSON file (required)")
		token    = fs.String("token", "", "session token; overrides authToken in the request")
		asUser   = fs.String("as-user", "", "issue a short-lived session for this user id instead of passing --token")
		local    = fs.Bool("local", true, "use the sqlite datastore and local object store")
		localDir = fs.String("dir", defaultLocalDir, "root directory for --local state")
	)
	if err := fs.Parse(args); err != nil {
		return exitConfig
	}

	printError := func(format string, args ...any) {
		_, _ = fmt.Fprintf(stderr, format, args...)
	}

	if *reqPath == "" {
		printError("Error: --request is required\n")
		return exitConfig
	}
	body, err := os.ReadFile(*reqPath)
	if err != nil {
		printError("Error: read request: %v\n", err)
		return exitFailure
	}

	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if *local {
		cfg.Database.Driver = "sqlite"
		cfg.Database.DSN = filepath.Join(*localDir, "receipts.db")
		cfg.Database.ServiceDSN = ""
		cfg.Storage.Backend = "local"
		cfg.Storage.LocalDir = filepath.Join(*localDir, "objects")
	}
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		return exitConfig
	}

	req, err := request.Decode(body)
	if err != nil {
		printError("Error: %v\n", err)
		return exitFailure
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		return exitFailure
	}
	defer a.Close()

	tok := *token
	if *asUser != "" {
		tok, err = a.Sessions.Issue(ctx, *asUser, sessionTTL)
		if err != nil {
			logger.Error("failed to issue session", "user_id", *asUser, "error", err)
			return exitFailure
		}
	}

	in, err := req.ToEntity(tok)
	if err != nil {
		printError("Error: %v\n", err)
		return exitFailure
	}

	runID := uuid.NewString()
	handle, err := a.Compiler.Compile(common.WithRunID(ctx, runID), in)
	if err != nil {
		logger.Error("compilation failed", "run_id", runID, "kind", common.KindOf(err), "error", err)
		printError("%s\n", common.KindOf(err))
		return exitCompile
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(handle); err != nil {
		printError("Error: encode handle: %v\n", err)
		return exitFailure
	}
	return exitOK
}
