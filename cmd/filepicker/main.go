// Command filepicker is a small flag-driven demonstration of the
// coordinator: it indexes a base directory, runs one query against it, and
// prints the ranked results as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	filepicker "github.com/example/filepicker"
	"github.com/example/filepicker/internal/config"
	"github.com/example/filepicker/internal/tracing"
)

func main() {
	base := flag.String("base", ".", "base directory to index")
	query := flag.String("query", "", "search query; empty lists by frecency+mtime")
	max := flag.Uint("max", 20, "maximum results to return")
	currentFile := flag.String("current-file", "", "absolute path of the file currently focused, for de-ranking")
	logFile := flag.String("log-file", "", "log file path; empty logs to stderr")
	logLevel := flag.String("log-level", "info", "one of error|warn|info|debug|trace")
	debug := flag.Bool("debug", false, "include per-component score breakdowns")
	watch := flag.Bool("watch", false, "keep running and re-index on filesystem changes until interrupted")
	flag.Parse()

	resolvedLog, err := tracing.Init(*logFile, tracing.Level(*logLevel))
	if err != nil {
		fmt.Fprintf(os.Stderr, "init_tracing failed: %v\n", err)
		os.Exit(1)
	}
	if resolvedLog != "" {
		fmt.Fprintf(os.Stderr, "logging to %s\n", resolvedLog)
	}

	coord := filepicker.New(config.DefaultPath())
	if err := coord.InitDB(config.DefaultFrecencyDBPath(), true); err != nil && err != filepicker.ErrDbUnavailable {
		fmt.Fprintf(os.Stderr, "init_db failed: %v\n", err)
		os.Exit(1)
	}
	if err := coord.InitFilePicker(*base); err != nil {
		fmt.Fprintf(os.Stderr, "init_file_picker failed: %v\n", err)
		os.Exit(1)
	}
	coord.SetDebug(*debug)
	defer coord.CleanupFilePicker()

	if changed, err := coord.RefreshGitStatus(); err == nil {
		fmt.Fprintf(os.Stderr, "git status refreshed: %d changed\n", changed)
	}

	result, err := coord.FuzzySearchFiles(context.Background(), *query, *max, *currentFile, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "fuzzy_search_files failed: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)

	if !*watch {
		return
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}
