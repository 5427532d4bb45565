package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/sdelrio0/xyflow-flow/cmd/vflow/internal/config"
	"github.com/sdelrio0/xyflow-flow/internal/cache"
	"github.com/sdelrio0/xyflow-flow/pkg/flow"
	"github.com/sdelrio0/xyflow-flow/pkg/live"
)

func newServeCommand() *cobra.Command {
	var addr, docPath, session, cacheDir string
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the live sync server",
		Long: `Serves flow sessions over websockets at /live/{session} and HTTP at
/flows. With --doc the named session starts from that document, and with
--watch external edits to it are diffed into the session.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromContext(cmd.Context())

			// CLI flags take precedence over the config file
			if cmd.Flags().Changed("addr") {
				cfg.Serve.Addr = addr
			}
			if cmd.Flags().Changed("doc") {
				cfg.Serve.Document = docPath
			}
			if cmd.Flags().Changed("session") {
				cfg.Serve.Session = session
			}
			if cmd.Flags().Changed("watch") {
				cfg.Serve.Watch = watch
			}
			if cmd.Flags().Changed("cache-dir") {
				cfg.Cache.Enabled = true
				cfg.Cache.Dir = cacheDir
			}

			return runServe(cmd.Context(), loggerFromContext(cmd.Context()), cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":7070", "Address to listen on")
	cmd.Flags().StringVar(&docPath, "doc", "", "Document to load into the session")
	cmd.Flags().StringVar(&session, "session", "default", "Session the document is loaded into")
	cmd.Flags().BoolVar(&watch, "watch", false, "Reload the document when it changes on disk")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "Persist session snapshots in this directory")

	return cmd
}

func runServe(ctx context.Context, logger *log.Logger, cfg *config.Config) error {
	serve := cfg.Serve

	var initial flow.Document
	if serve.Document != "" {
		doc, err := flow.ReadDocumentFile(serve.Document)
		if err != nil {
			return err
		}
		initial = doc
	}

	var snapshots *cache.Cache
	if cfg.Cache.Enabled {
		c, err := cache.New(cfg.CacheOptions())
		if err != nil {
			logger.Warnf("Failed to open snapshot cache: %v (continuing without it)", err)
		} else {
			snapshots = c
			defer snapshots.Close()
		}
	}

	server := live.NewServer(live.Options{
		Logger:     logger,
		Cache:      snapshots,
		SendBuffer: serve.SendBuffer,
		Initial: func(id string) flow.Document {
			if id == serve.Session {
				return initial
			}
			return flow.Document{}
		},
	})
	defer server.Close()

	session := server.OpenSession(serve.Session)
	if serve.Document != "" && snapshots != nil {
		// A restored snapshot may be older than the file on disk
		if cs, seq, err := session.SetDocument("", initial); err != nil {
			logger.Warnf("[Live Session %s] Failed to sync %s: %v", session.ID, serve.Document, err)
		} else if !cs.Empty() {
			logger.Infof("[Live Session %s] Synced %d changes from %s (seq %d)", session.ID, cs.Len(), serve.Document, seq)
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serve.Watch && serve.Document != "" {
		w, err := newDocumentWatcher(serve.Document, logger, func(doc flow.Document) {
			cs, seq, err := session.SetDocument("", doc)
			if err != nil {
				logger.Errorf("[Live Session %s] Failed to apply reload: %v", session.ID, err)
				return
			}
			if cs.Empty() {
				logger.Debugf("[Live Session %s] Reload produced no changes", session.ID)
				return
			}
			logger.Infof("[Live Session %s] Reloaded %s: %d changes (seq %d)", session.ID, serve.Document, cs.Len(), seq)
		})
		if err != nil {
			return err
		}
		defer w.Close()
		go w.Run(ctx)
	}

	srv := &http.Server{
		Addr:    serve.Addr,
		Handler: server.Routes(),
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down live server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Infof("Live server listening on %s (session %q)", serve.Addr, serve.Session)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// documentWatcher reloads a document file after it settles
type documentWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	logger   *log.Logger
	onReload func(flow.Document)
	debounce time.Duration
}

// newDocumentWatcher watches the file's directory so editors that save by
// rename are still seen
func newDocumentWatcher(path string, logger *log.Logger, onReload func(flow.Document)) (*documentWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	return &documentWatcher{
		path:     abs,
		watcher:  watcher,
		logger:   logger,
		onReload: onReload,
		debounce: 100 * time.Millisecond,
	}, nil
}

func (w *documentWatcher) Close() error {
	return w.watcher.Close()
}

// Run delivers reloads until ctx is done or the watcher closes
func (w *documentWatcher) Run(ctx context.Context) {
	debounce := time.NewTimer(0)
	<-debounce.C
	pending := false

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			pending = true
			debounce.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnf("[Watcher] %v", err)

		case <-debounce.C:
			if !pending {
				continue
			}
			pending = false
			doc, err := flow.ReadDocumentFile(w.path)
			if err != nil {
				// Half-written files fail to parse; the next write retries
				w.logger.Warnf("[Watcher] Skipping reload: %v", err)
				continue
			}
			w.onReload(doc)
		}
	}
}
