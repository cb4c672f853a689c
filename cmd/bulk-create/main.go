// Command bulk-create creates every problem listed in a YAML manifest, one
// after another, and stops at the first failure.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/stemsi/exstem-authoring/internal/bulk"
	"github.com/stemsi/exstem-authoring/internal/client"
	"github.com/stemsi/exstem-authoring/internal/config"
	"github.com/stemsi/exstem-authoring/internal/logger"
	"github.com/stemsi/exstem-authoring/internal/submission"
	"golang.org/x/term"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	var (
		manifestPath string
		assignmentID int64
		apiURL       string
	)
	flag.StringVar(&manifestPath, "manifest", "bulk.yaml", "Path to the YAML manifest")
	flag.Int64Var(&assignmentID, "assignment", 0, "Assignment to link every problem to (overrides the manifest)")
	flag.StringVar(&apiURL, "api", cfg.ProblemAPIURL, "Problem API base URL")
	flag.Parse()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.New(os.Stderr, cfg.LogLevel, "pretty")

	m, err := loadManifest(manifestPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load manifest")
	}
	if assignmentID == 0 {
		assignmentID = m.AssignmentID
	}

	token, err := readToken()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read API token")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = client.WithToken(ctx, token)

	// ─── Run ───────────────────────────────────────────────────────────
	api := client.NewProblemClient(strings.TrimRight(apiURL, "/"), cfg.UpstreamTimeout, log)
	orch := bulk.NewOrchestrator(api, cfg.MaxArchiveBytes, log)

	rows := m.rows(filepath.Dir(manifestPath))
	res, err := orch.CreateAll(ctx, rows, bulk.Options{
		AssignmentID: assignmentID,
		Defaults: submission.Defaults{
			TimeLimit:   firstNonEmpty(m.TimeLimit, cfg.DefaultTimeLimit),
			MemoryLimit: firstNonEmpty(m.MemoryLimit, cfg.DefaultMemoryLimit),
		},
		Progress: printProgress,
	})

	var ve *bulk.ValidationError
	if errors.As(err, &ve) {
		fmt.Fprintln(os.Stderr, "Manifest has invalid rows, nothing was created:")
		for _, r := range ve.Rows {
			fmt.Fprintf(os.Stderr, "  %v\n", r)
		}
		os.Exit(1)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Bulk run failed")
	}

	fmt.Println(summary(res))
	if res.FailedAt != nil {
		os.Exit(1)
	}
}

func printProgress(ev bulk.Event) {
	switch ev.Kind {
	case bulk.EventCreated:
		fmt.Printf("[%d/%d] created %q as problem %d\n", ev.Index+1, ev.Total, ev.Title, ev.ProblemID)
	case bulk.EventFailed:
		fmt.Printf("[%d/%d] failed %q: %s\n", ev.Index+1, ev.Total, ev.Title, ev.Error)
	}
}

// summary reports how far the run got.
func summary(res bulk.Result) string {
	if res.FailedAt == nil {
		return fmt.Sprintf("created %d of %d", len(res.Created), res.Total)
	}
	return fmt.Sprintf("created %d of %d, failed at row %d: %v", len(res.Created), res.Total, *res.FailedAt+1, res.Err)
}

// readToken takes PROBLEM_API_TOKEN, or prompts when stdin is a terminal.
func readToken() (string, error) {
	if t := strings.TrimSpace(os.Getenv("PROBLEM_API_TOKEN")); t != "" {
		return t, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("PROBLEM_API_TOKEN is not set")
	}

	fmt.Fprint(os.Stderr, "Enter API token: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	t := strings.TrimSpace(string(raw))
	if t == "" {
		return "", errors.New("token is required")
	}
	return t, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
