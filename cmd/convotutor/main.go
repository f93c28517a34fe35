// Package main is the ConvoTutor CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/convotutor/internal/cli"
	"github.com/hyperjump/convotutor/internal/config"
	"github.com/hyperjump/convotutor/internal/extract"
	"github.com/hyperjump/convotutor/internal/indexer"
	"github.com/hyperjump/convotutor/internal/models"
	"github.com/hyperjump/convotutor/internal/server"
	"github.com/hyperjump/convotutor/internal/session"
	"github.com/hyperjump/convotutor/internal/watcher"
	"github.com/hyperjump/convotutor/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/convotutor/config.yaml"

// loadConfig loads config from path. When path is the default, ./config.yaml is preferred
// if it exists so that running from a project directory picks up the project's config.
// A missing default config yields the built-in defaults. Returns the config and the path
// it was loaded from (used to persist watch directory changes).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		cfg, err := config.LoadOrDefault(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
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
	case "index":
		runIndex()
	case "ask":
		runAsk()
	case "retrieve":
		runRetrieve()
	case "translate":
		runTranslate()
	case "status":
		runStatus()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("convotutor version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := initializeComponents(ctx, cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()
	sess := components.Session

	if restored, err := sess.Restore(ctx); err != nil {
		logger.Warn("snapshot restore failed", zap.Error(err))
	} else if restored {
		logger.Info("snapshot restored", zap.String("index_id", sess.Current().ID()))
	}

	exts := cfg.Watch.Extensions
	recursive := cfg.Watch.RecursiveOrDefault()
	var watchSvc *watcher.Watcher
	rebuild := func(reason string) {
		dirs := watchSvc.Directories()
		res, err := sess.ProcessDirectories(ctx, dirs, exts, recursive)
		if err != nil {
			logger.Warn("inbox rebuild failed", zap.String("reason", reason), zap.Strings("dirs", dirs), zap.Error(err))
			return
		}
		logger.Info("inbox rebuilt",
			zap.String("reason", reason),
			zap.Int("documents", res.Documents),
			zap.Int("units", res.Units),
			zap.Int("failed", len(res.Failed)))
	}
	watchOpts := []watcher.Option{watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMS) * time.Millisecond)}
	if debugMode {
		watchOpts = append(watchOpts, watcher.WithLogger(logger))
	}
	watchSvc = watcher.NewWatcher(cfg.Watch.Directories, exts, recursive,
		func(root string) { rebuild("changed: " + root) },
		watchOpts...)
	if err := watchSvc.Start(ctx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	if len(cfg.Watch.Directories) > 0 {
		go rebuild("startup")
	}

	srv := server.NewServer(sess, components.Translator, cfg, logger,
		server.WithStore(components.Store),
		server.WithWatcher(watchSvc, resolvedConfigPath))
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchSvc.Stop()
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// commonFlags are shared by the one-shot commands.
type commonFlags struct {
	configPath *string
	serverURL  *string
	output     *string
	debug      *bool
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		configPath: fs.String("config", defaultConfigPath, "config file path (direct mode)"),
		serverURL:  fs.String("server", "", "server URL, e.g. http://localhost:8080 (empty runs in-process)"),
		output:     fs.String("output", "text", "output format: text or json"),
		debug:      fs.Bool("debug", false, "enable debug logging"),
	}
}

func (f commonFlags) format() cli.OutputFormat {
	format, err := cli.ParseOutputFormat(*f.output)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

// direct builds an in-process pipeline for commands run without --server. The last
// snapshot is restored when one is configured.
func (f commonFlags) direct(ctx context.Context) (*Components, *config.Config, *zap.Logger) {
	cfg, _, err := loadConfig(*f.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *f.debug
	logger, err := utils.NewCLILogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(ctx, cfg, logger, debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	if _, err := components.Session.Restore(ctx); err != nil {
		logger.Warn("snapshot restore failed", zap.Error(err))
	}
	return components, cfg, logger
}

// fileList collects a repeatable string flag.
type fileList []string

func (f *fileList) String() string { return strings.Join(*f, ",") }

func (f *fileList) Set(v string) error {
	*f = append(*f, v)
	return nil
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	flags := addCommonFlags(fs)
	_ = fs.Parse(argsReorder(fs, os.Args[2:]))
	if fs.NArg() < 1 {
		fmt.Println("Usage: convotutor index [flags] <file|dir>...")
		os.Exit(1)
	}
	format := flags.format()
	ctx := context.Background()

	if *flags.serverURL != "" {
		paths, err := expandInputs(fs.Args(), nil, true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Index failed: %v\n", err)
			os.Exit(1)
		}
		sum, err := cli.NewClient(*flags.serverURL, nil).ProcessFiles(ctx, paths)
		if sum != nil {
			_ = cli.WriteProcessSummary(os.Stdout, sum, format)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Index failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	components, cfg, _ := flags.direct(ctx)
	defer components.Close()
	paths, err := expandInputs(fs.Args(), cfg.Watch.Extensions, cfg.Watch.RecursiveOrDefault())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Index failed: %v\n", err)
		os.Exit(1)
	}
	res, err := processPaths(ctx, components.Session, paths)
	_ = cli.WriteProcessSummary(os.Stdout, res.Summary(), format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Index failed: %v\n", err)
		os.Exit(1)
	}
	if components.Store == nil && format == cli.OutputText {
		fmt.Println("note: storage.snapshot_path is not set; the index is not kept after this command")
	}
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	flags := addCommonFlags(fs)
	language := fs.String("language", models.DefaultLanguage, "language of the answer")
	topK := fs.Int("top-k", 0, "passages to retrieve (0 uses the configured default)")
	var files fileList
	fs.Var(&files, "file", "document to process before asking (repeatable; direct mode)")
	_ = fs.Parse(argsReorder(fs, os.Args[2:]))
	question := buildQuestion(fs.Args())
	if question == "" {
		fmt.Println("Usage: convotutor ask [flags] <question>")
		os.Exit(1)
	}
	format := flags.format()
	ctx := context.Background()

	if *flags.serverURL != "" {
		res, err := cli.NewClient(*flags.serverURL, nil).Ask(ctx, question, *language, *topK)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		_ = cli.WriteAnswer(os.Stdout, res, format)
		return
	}

	components, _, _ := flags.direct(ctx)
	defer components.Close()
	sess := components.Session
	prepareDirect(ctx, sess, files)
	ready := sess.Current() != nil
	ans, err := sess.AnswerQuestion(ctx, question, *language, *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}
	res := &cli.AskResult{Answer: ans}
	if !ready {
		res.Warning = server.NoDocumentWarning
	}
	_ = cli.WriteAnswer(os.Stdout, res, format)
}

func runRetrieve() {
	fs := flag.NewFlagSet("retrieve", flag.ExitOnError)
	flags := addCommonFlags(fs)
	topK := fs.Int("top-k", 0, "passages to retrieve (0 uses the configured default)")
	var files fileList
	fs.Var(&files, "file", "document to process before retrieving (repeatable; direct mode)")
	_ = fs.Parse(argsReorder(fs, os.Args[2:]))
	question := buildQuestion(fs.Args())
	if question == "" {
		fmt.Println("Usage: convotutor retrieve [flags] <question>")
		os.Exit(1)
	}
	format := flags.format()
	ctx := context.Background()

	if *flags.serverURL != "" {
		res, err := cli.NewClient(*flags.serverURL, nil).Retrieve(ctx, question, *topK)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Retrieve failed: %v\n", err)
			os.Exit(1)
		}
		_ = cli.WriteRetrieval(os.Stdout, res, format)
		return
	}

	components, _, _ := flags.direct(ctx)
	defer components.Close()
	sess := components.Session
	prepareDirect(ctx, sess, files)
	ready := sess.Current() != nil
	rr, err := sess.Retrieve(ctx, question, *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Retrieve failed: %v\n", err)
		os.Exit(1)
	}
	res := &cli.RetrieveResult{RetrievalResult: rr, Context: rr.Context()}
	if !ready {
		res.Warning = server.NoDocumentWarning
	}
	_ = cli.WriteRetrieval(os.Stdout, res, format)
}

func runTranslate() {
	fs := flag.NewFlagSet("translate", flag.ExitOnError)
	flags := addCommonFlags(fs)
	source := fs.String("source", "auto", "source language code (auto detects)")
	target := fs.String("target", "en", "target language code")
	_ = fs.Parse(argsReorder(fs, os.Args[2:]))
	text := buildQuestion(fs.Args())
	if text == "" {
		fmt.Println("Usage: convotutor translate [flags] <text>")
		os.Exit(1)
	}
	format := flags.format()
	ctx := context.Background()

	var res *cli.TranslateResult
	if *flags.serverURL != "" {
		var err error
		res, err = cli.NewClient(*flags.serverURL, nil).Translate(ctx, text, *source, *target)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Translate failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		components, _, _ := flags.direct(ctx)
		defer components.Close()
		translated, ok := components.Translator.Translate(ctx, text, *source, *target)
		res = &cli.TranslateResult{Text: translated, OK: ok}
	}
	_ = cli.WriteTranslation(os.Stdout, res, format)
	if !res.OK {
		os.Exit(1)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	flags := addCommonFlags(fs)
	_ = fs.Parse(os.Args[2:])
	format := flags.format()
	ctx := context.Background()

	var st *cli.Status
	if *flags.serverURL != "" {
		var err error
		st, err = cli.NewClient(*flags.serverURL, nil).Status(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to get status from server: %v\n", err)
			os.Exit(1)
		}
	} else {
		components, cfg, _ := flags.direct(ctx)
		defer components.Close()
		st = directStatus(ctx, components, cfg)
	}
	if err := cli.WriteStatus(os.Stdout, st, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func directStatus(ctx context.Context, c *Components, cfg *config.Config) *cli.Status {
	s := c.Session.Status()
	st := &cli.Status{
		Index: cli.IndexStatus{
			SessionID:  s.SessionID,
			Ready:      s.Ready,
			IndexID:    s.IndexID,
			Units:      s.Units,
			Dimensions: s.Dimensions,
			BuiltAt:    s.BuiltAt,
			Sources:    s.Sources,
		},
		Config: map[string]interface{}{
			"embedding_provider":   cfg.Embedding.Provider,
			"embedding_dimensions": cfg.Embedding.Dimensions,
			"top_k":                cfg.Retrieval.TopK,
			"generation_model":     cfg.Generation.Model,
			"snapshot_path":        cfg.Storage.SnapshotPath,
		},
	}
	if c.Store != nil {
		if stats, err := c.Store.Stats(ctx); err == nil {
			st.DiskUsageBytes = stats.DiskBytes
		}
	}
	return st
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: convotutor watch <add|remove|list> [path]")
		fmt.Println("  convotutor watch add <path>     Add directory to watch")
		fmt.Println("  convotutor watch remove <path>  Remove directory from watch")
		fmt.Println("  convotutor watch list           List watched directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(argsReorder(fs, os.Args[3:]))
	client := cli.NewClient(*serverURL, nil)
	ctx := context.Background()

	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fmt.Println("Usage: convotutor watch add <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		if err := client.AddWatchDirectory(ctx, path, true); err != nil {
			fmt.Printf("Add failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added: %s\n", path)
	case "remove":
		if fs.NArg() < 1 {
			fmt.Println("Usage: convotutor watch remove <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		if err := client.RemoveWatchDirectory(ctx, path); err != nil {
			fmt.Printf("Remove failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		dirs, err := client.WatchDirectories(ctx)
		if err != nil {
			fmt.Printf("List failed: %v\n", err)
			os.Exit(1)
		}
		for _, d := range dirs {
			fmt.Println(d)
		}
	default:
		fmt.Printf("Unknown watch subcommand: %s\n", sub)
		os.Exit(1)
	}
}

// prepareDirect processes the --file documents, if any, replacing a restored snapshot.
func prepareDirect(ctx context.Context, sess *session.Session, files []string) {
	if len(files) == 0 {
		return
	}
	res, err := processPaths(ctx, sess, files)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Processing failed: %v\n", err)
		os.Exit(1)
	}
	for _, f := range res.Failed {
		fmt.Fprintf(os.Stderr, "skipped %s: %v\n", f.Name, f.Err)
	}
}

// processPaths reads every file and runs them through the session as one batch.
func processPaths(ctx context.Context, sess *session.Session, paths []string) (*indexer.BatchResult, error) {
	docs := make([]*models.DocumentInput, 0, len(paths))
	for _, p := range paths {
		doc, err := extract.ReadDocument(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		docs = append(docs, doc)
	}
	return sess.ProcessDocuments(ctx, docs)
}

// expandInputs turns file and directory arguments into a sorted list of files.
// Directories contribute their supported documents with an allowed extension
// (all supported documents when extensions is empty).
func expandInputs(args []string, extensions []string, recursive bool) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(abs)
			continue
		}
		var found []string
		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				if path != abs && !recursive {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() && extract.Supported(path) && extensionAllowed(path, extensions) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(found)
		for _, p := range found {
			add(p)
		}
	}
	return files, nil
}

func extensionAllowed(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// buildQuestion joins all positional args with spaces so multi-word questions work the
// same with or without shell quoting.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves the flags of fs (and their values) in front of the positional
// arguments so that flag.Parse sees them wherever they appear:
// "convotutor ask what is this --top-k 2". Positional arguments keep their order and
// follow a "--" terminator; a "--" in args ends flag scanning.
func argsReorder(fs *flag.FlagSet, args []string) []string {
	flags := make([]string, 0, len(args))
	var positional []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if len(a) < 2 || a[0] != '-' {
			positional = append(positional, a)
			continue
		}
		flags = append(flags, a)
		name := strings.TrimLeft(a, "-")
		if strings.Contains(name, "=") {
			continue
		}
		if f := fs.Lookup(name); f != nil && !isBoolFlag(f) && i+1 < len(args) {
			i++
			flags = append(flags, args[i])
		}
	}
	if len(positional) == 0 {
		return flags
	}
	return append(append(flags, "--"), positional...)
}

func isBoolFlag(f *flag.Flag) bool {
	b, ok := f.Value.(interface{ IsBoolFlag() bool })
	return ok && b.IsBoolFlag()
}

func printUsage() {
	fmt.Println(`convotutor - ask questions about your PDF documents

Usage:
  convotutor server [flags]                 Start the HTTP server
  convotutor index [flags] <file|dir>...    Process documents into the active index
  convotutor ask [flags] <question>         Answer a question from the processed documents
  convotutor retrieve [flags] <question>    Show the passages a question retrieves
  convotutor translate [flags] <text>       Translate text
  convotutor status [flags]                 Show index and snapshot status
  convotutor watch <add|remove|list>        Manage watched inbox directories
  convotutor version                        Show version
  convotutor help                           Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/convotutor/config.yaml)
  --debug            Enable debug logging

Common Flags (index, ask, retrieve, translate, status):
  --config string    Config file path for in-process mode
  --server string    Server URL. Empty (default) runs the pipeline in-process and uses
                     the last saved snapshot when storage.snapshot_path is set.
  --output string    Output format: text or json (default: text)
  --debug            Enable debug logging

Ask/Retrieve Flags:
  --language string  Answer language (ask only, default: English)
  --top-k int        Passages to retrieve (default from config)
  --file path        Document to process first (repeatable, in-process mode)

Translate Flags:
  --source string    Source language code (default: auto)
  --target string    Target language code (default: en)

Watch Flags:
  --server string    Server URL (default: http://localhost:8080)

Examples:
  convotutor server
  convotutor index lecture.pdf notes/
  convotutor ask --file lecture.pdf "What is the capital of France?"
  convotutor ask --server http://localhost:8080 --language Spanish "Summarise chapter 2"
  convotutor retrieve --top-k 2 what is entropy
  convotutor translate --target es "good morning"
  convotutor status --output json
  convotutor watch add /path/to/inbox`)
}
