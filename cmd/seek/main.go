// Package main is the seek CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/seek/internal/cli"
	"github.com/hyperjump/seek/internal/config"
	"github.com/hyperjump/seek/internal/finder"
	"github.com/hyperjump/seek/internal/models"
	"github.com/hyperjump/seek/internal/ranking"
	"github.com/hyperjump/seek/internal/server"
	"github.com/hyperjump/seek/internal/session"
	"github.com/hyperjump/seek/internal/storage"
	"github.com/hyperjump/seek/internal/watcher"
	"github.com/hyperjump/seek/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/seek/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if it exists, and a missing default file yields the built-in defaults.
// Returns the config and the path that was actually loaded ("" for built-in defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		if code := runSearch(); code != 0 {
			os.Exit(code)
		}
	case "recent":
		runRecent()
	case "restore":
		runRestore()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("seek version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Storage  *storage.SQLiteStorage
	Executor *finder.FSExecutor
	Ranker   *ranking.Ranker
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath, cfg.Storage.MaxRecentQueries)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	execOpts := []finder.FSExecutorOption{
		finder.WithBatchSize(cfg.Search.BatchSize),
		finder.WithFlushInterval(cfg.Search.FlushInterval),
		finder.WithIncludeHidden(cfg.Search.IncludeHidden),
	}
	if debug {
		execOpts = append(execOpts, finder.WithLogger(logger))
	}
	return &Components{
		Storage:  store,
		Executor: finder.NewFSExecutor(execOpts...),
		Ranker:   ranking.NewRanker(nil),
	}, nil
}

// sessionOptions are the per-session settings taken from config.
func sessionOptions(cfg *config.Config, ranker *ranking.Ranker) []session.Option {
	return []session.Option{
		session.WithMinTermLength(cfg.Search.MinTermLength),
		session.WithRootDirectory(cfg.Search.RootDirectory),
		session.WithRanker(ranker),
	}
}

// setup loads config and opens the components shared by every command.
func setup(configPath string, debugFlag bool) (*config.Config, *zap.Logger, *Components, string) {
	cfg, resolvedConfigPath, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, logger, components, resolvedConfigPath
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (session events, directory changes)")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, components, resolvedConfigPath := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", cfg.Debug || *debug),
	)

	var manager *session.Manager
	opts := sessionOptions(cfg, components.Ranker)

	var watchSvc *watcher.Watcher
	if cfg.Watch.EnabledOrDefault() {
		watchSvc = watcher.NewWatcher(
			func(id string) {
				if err := manager.MarkStale(context.Background(), id); err != nil {
					logger.Debug("mark stale skipped", zap.String("session", id), zap.Error(err))
				}
			},
			watcher.WithLogger(logger),
			watcher.WithDebounce(cfg.Watch.Debounce),
		)
		opts = append(opts, session.WithTracker(watchSvc))
	}

	manager = session.NewManager(components.Executor, components.Storage,
		session.WithManagerLogger(logger),
		session.WithMaxSessions(cfg.Search.MaxSessions),
		session.WithPersistSnapshots(cfg.Storage.PersistSnapshotsOrDefault()),
		session.WithSessionOptions(opts...),
	)

	var watch server.WatchService
	if watchSvc != nil {
		watch = watchSvc
	}
	srv := server.NewServer(manager, components.Storage, cfg, logger, watch)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	if watchSvc != nil {
		if err := watchSvc.Start(gctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
	}
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Stop(shutdownCtx)
		manager.Shutdown(shutdownCtx)
		if watchSvc != nil {
			watchSvc.Stop()
		}
		return err
	})
	if err := g.Wait(); err != nil {
		logger.Error("Server failed", zap.Error(err))
		os.Exit(1)
	}
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: seek search [flags] <term> [term...]\n\n")
	fmt.Fprintf(fs.Output(), "Each argument is one term; an entry matches when its name contains any term.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Terms shorter than the configured minimum (3 by default) ask for confirmation first.
  • Use -yes to search with short terms without asking.
  • Terms containing *, ? or [ are matched as glob patterns against the whole name.
  • Press Ctrl-C once to stop the search and show what was found so far.

Examples:
  seek search invoice
  seek search -dir ~/Pictures cat dog
  seek search -format compact "*.pdf" | xargs ls -l
`)
}

// searchTerms drops blank arguments. Arguments are not split on spaces, so a quoted
// phrase stays one term.
func searchTerms(args []string) []string {
	terms := make([]string, 0, len(args))
	for _, a := range args {
		if strings.TrimSpace(a) != "" {
			terms = append(terms, a)
		}
	}
	return terms
}

// searchArgsReorder moves any flags (and their values) that appear after the terms to the
// front so that flag.Parse sees them. The flag package stops at the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// searchDirectory resolves the -dir flag; the current directory when empty.
func searchDirectory(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, dir[2:])
	}
	return filepath.Abs(dir)
}

// runSearch returns the process exit code so deferred cleanup runs before exiting.
func runSearch() int {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	dir := fs.String("dir", "", "directory to search (default: current directory)")
	voice := fs.Bool("voice", false, "treat terms as speech input: short terms are dropped and nothing is saved")
	yes := fs.Bool("yes", false, "search with short terms without asking")
	quiet := fs.Bool("quiet", false, "do not show progress")
	outputFormat := fs.String("format", "text", "output format: text (human-readable), compact (one path per line), or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	terms := searchTerms(fs.Args())
	if len(terms) == 0 {
		printSearchUsage(fs)
		return 1
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	directory, err := searchDirectory(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid directory: %v\n", err)
		return 1
	}

	cfg, logger, components, _ := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	obs := cli.NewTerminalObserver(os.Stderr, *quiet)
	manager := session.NewManager(components.Executor, components.Storage,
		session.WithManagerLogger(logger),
		session.WithObserverFactory(func(string) session.Observer { return obs }),
		session.WithSessionOptions(sessionOptions(cfg, components.Ranker)...),
	)

	ctx := context.Background()
	started := time.Now()
	sess, state, err := manager.Start(ctx, session.Input{Terms: terms, Voice: *voice, Directory: directory})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		return 1
	}
	defer manager.Shutdown(ctx)

	if state == session.StateAwaitingConfirmation {
		short := models.NewQuery(terms, false).ShortTerms(cfg.Search.MinTermLength)
		proceed := *yes
		if !proceed {
			proceed, err = cli.AskConfirmation(os.Stdin, os.Stderr, short, cfg.Search.MinTermLength)
			if err != nil && !errors.Is(err, cli.ErrNoAnswer) {
				fmt.Fprintf(os.Stderr, "Confirmation failed: %v\n", err)
				return 1
			}
		}
		if _, err := sess.Confirm(ctx, proceed); err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			return 1
		}
		if !proceed {
			_, _ = manager.Close(ctx, sess.ID())
			fmt.Fprintln(os.Stderr, "Search cancelled")
			return 0
		}
		started = time.Now()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	defer signal.Stop(sigChan)
	cancelled := false
wait:
	for {
		select {
		case <-obs.Finished():
			break wait
		case <-sigChan:
			if cancelled {
				return 130
			}
			ok, err := sess.Cancel(ctx)
			if err != nil {
				logger.Debug("cancel failed", zap.Error(err))
			}
			cancelled = ok
		}
	}
	if err := obs.Err(); err != nil {
		return 1
	}

	view, err := sess.View(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		return 1
	}
	report := &cli.SearchReport{
		Query:     view.Query.String(),
		Directory: view.Directory,
		ElapsedMS: time.Since(started).Milliseconds(),
		Cancelled: cancelled,
		Total:     view.Total,
		Results:   view.Results,
	}
	if cfg.Storage.PersistSnapshotsOrDefault() && view.State == session.StateDone {
		snap, err := sess.Snapshot(ctx)
		if err == nil {
			err = components.Storage.SaveSnapshot(ctx, snap)
		}
		if err != nil {
			logger.Warn("failed to save snapshot", zap.Error(err))
		} else {
			report.SnapshotID = snap.ID
		}
	}
	if _, err := manager.Close(ctx, sess.ID()); err != nil {
		logger.Debug("close session failed", zap.Error(err))
	}
	if err := cli.WriteSearchResults(os.Stdout, report, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		return 1
	}
	return 0
}

func runRecent() {
	fs := flag.NewFlagSet("recent", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	prefix := fs.String("prefix", "", "only terms starting with prefix")
	limit := fs.Int("limit", 20, "number of terms")
	clearAll := fs.Bool("clear", false, "forget all recent queries")
	outputFormat := fs.String("format", "text", "output format: text, compact, or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	_, logger, components, _ := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	if *clearAll {
		if err := components.Storage.ClearRecentQueries(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Clear failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Recent queries cleared")
		return
	}
	terms, err := components.Storage.RecentQueries(ctx, *prefix, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Recent queries failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteRecentQueries(os.Stdout, terms, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runRestore() {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	limit := fs.Int("limit", 20, "number of snapshots to list")
	del := fs.Bool("delete", false, "delete the snapshot instead of showing it")
	outputFormat := fs.String("format", "text", "output format: text, compact, or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, logger, components, _ := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	if fs.NArg() < 1 {
		snaps, err := components.Storage.ListSnapshots(ctx, *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "List snapshots failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteSnapshots(os.Stdout, snaps, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	id := fs.Arg(0)
	if *del {
		if err := components.Storage.DeleteSnapshot(ctx, id); err != nil {
			fmt.Fprintf(os.Stderr, "Delete failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Snapshot deleted: %s\n", id)
		return
	}

	manager := session.NewManager(components.Executor, components.Storage,
		session.WithManagerLogger(logger),
		session.WithSessionOptions(sessionOptions(cfg, components.Ranker)...),
	)
	defer manager.Shutdown(ctx)
	sess, err := manager.RestoreByID(ctx, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Restore failed: %v\n", err)
		os.Exit(1)
	}
	view, err := sess.View(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Restore failed: %v\n", err)
		os.Exit(1)
	}
	report := &cli.SearchReport{
		Query:      view.Query.String(),
		Directory:  view.Directory,
		Total:      len(view.Results),
		SnapshotID: id,
		Results:    view.Results,
	}
	if err := cli.WriteSearchResults(os.Stdout, report, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// statusResponse is the subset of GET /api/v1/status the CLI prints.
type statusResponse struct {
	Sessions       int      `json:"sessions"`
	RecentQueries  int64    `json:"recent_queries"`
	Snapshots      int64    `json:"snapshots"`
	DiskUsageBytes *int64   `json:"disk_usage_bytes,omitempty"`
	Watched        []string `json:"watched_directories,omitempty"`
	DatabasePath   string   `json:"database_path,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = read the database directly)")
	outputFormat := fs.String("format", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	} else {
		cfg, logger, components, _ := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		res, err := localStatus(context.Background(), components.Storage, cfg.Storage.DatabasePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	}
	if err := writeStatus(os.Stdout, &status, *outputFormat); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func localStatus(ctx context.Context, store storage.Storage, dbPath string) (*statusResponse, error) {
	recent, err := store.CountRecentQueries(ctx)
	if err != nil {
		return nil, fmt.Errorf("count recent queries: %w", err)
	}
	snaps, err := store.CountSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("count snapshots: %w", err)
	}
	status := &statusResponse{RecentQueries: recent, Snapshots: snaps, DatabasePath: dbPath}
	if diskBytes, err := storage.DatabaseSizeBytes(dbPath); err == nil {
		status.DiskUsageBytes = &diskBytes
	}
	return status, nil
}

func writeStatus(w io.Writer, status *statusResponse, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	case "text":
		fmt.Fprintf(w, "sessions:        %d\n", status.Sessions)
		fmt.Fprintf(w, "recent_queries:  %d\n", status.RecentQueries)
		fmt.Fprintf(w, "snapshots:       %d\n", status.Snapshots)
		if status.DiskUsageBytes != nil {
			fmt.Fprintf(w, "disk_usage:      %s\n", utils.HumanBytes(*status.DiskUsageBytes))
		}
		if status.DatabasePath != "" {
			fmt.Fprintf(w, "database_path:   %s\n", status.DatabasePath)
		}
		for _, d := range status.Watched {
			fmt.Fprintf(w, "watching:        %s\n", d)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format %q; use text or json", format)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(strings.TrimSuffix(serverURL, "/") + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var raw struct {
		statusResponse
		Config struct {
			DatabasePath string `json:"database_path"`
		} `json:"config"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	status := raw.statusResponse
	status.DatabasePath = raw.Config.DatabasePath
	return &status, nil
}

func printUsage() {
	fmt.Println(`seek - Find files and folders by name

Usage:
  seek server [flags]                 Start the HTTP server
  seek search [flags] <term>...       Search a directory tree
  seek recent [flags]                 List or clear recent queries
  seek restore [flags] [snapshot-id]  List saved snapshots, or show one
  seek status [flags]                 Show storage status
  seek version                        Show version
  seek help                           Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/seek/config.yaml)
  --debug            Enable debug logging

Search Flags:
  --dir string       Directory to search (default: current directory)
  --voice            Speech input: short terms are dropped, nothing is saved
  --yes              Do not ask before searching with short terms
  --quiet            Do not show progress
  --format string    Output format: text, compact, or json (default: text)

Recent Flags:
  --prefix string    Only terms starting with prefix
  --limit int        Number of terms (default: 20)
  --clear            Forget all recent queries

Restore Flags:
  --limit int        Number of snapshots to list (default: 20)
  --delete           Delete the snapshot
  --format string    Output format: text, compact, or json

Status Flags:
  --server string    Server URL; empty reads the database directly
  --format string    Output format: text or json (default: text)

Examples:
  seek server
  seek search invoice
  seek search -dir ~/Pictures cat dog
  seek search -format json "*.pdf"
  seek recent -prefix inv
  seek restore
  seek restore 3f2c9a1e-...
  seek status --format json`)
}
