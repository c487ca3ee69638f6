package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xiao2945/danci-sub000/internal/library"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Debounce time.Duration
	Persist  bool // write every good reload to the database
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch [pattern...]",
		Short: "Reload library files whenever they change",
		Long: `Load the library files matching the patterns (or --library) and reload
them whenever one changes. Every reload is validated as a whole; a broken
edit is reported and the previous tables stay in place.

With --persist each successful reload replaces the tables in the database.
Runs until interrupted.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Debounce, "debounce", 200*time.Millisecond, "wait this long after a change before reloading")
	cmd.Flags().BoolVar(&opts.Persist, "persist", false, "store every successful reload in the database")

	return cmd
}

func runWatch(opts *WatchOptions, args []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	patterns := args
	if len(patterns) == 0 {
		patterns = opts.Library
	}
	if len(patterns) == 0 {
		return fail(f, ExitCommandError, ErrCodeInvalid, errors.New("no library patterns: pass them as arguments or set --library"))
	}

	var sess *session
	if opts.Persist {
		var err error
		sess, err = opts.openDatabase(cmd.Context())
		if err != nil {
			return report(f, err)
		}
		defer sess.Close()
	} else {
		sess = &session{engine: opts.newEngine(0)}
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	w, err := library.NewWatcher(sess.engine, library.WatcherConfig{
		Patterns: patterns,
		Debounce: opts.Debounce,
		Logger:   slog.Default(),
		OnReload: func(res library.ReloadResult) {
			printReload(f, res)
			if res.Err == nil && sess.store != nil {
				if err := sess.store.ReplaceSnapshot(ctx, sess.engine.Snapshot()); err != nil {
					slog.Error("failed to store reloaded tables", "error", err)
				}
			}
		},
	})
	if err != nil {
		return fail(f, ExitCommandError, ErrCodeIO, err)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	slog.Info("watching library", "patterns", patterns, "persist", opts.Persist)
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fail(f, ExitFailure, ErrCodeGeneric, err)
	}

	slog.Info("watch stopped")
	return nil
}

// printReload reports one reload attempt.
func printReload(f *OutputFormatter, res library.ReloadResult) {
	if f.Format == "json" {
		if res.Err != nil {
			_ = f.Error(ErrCodeInvalid, res.Err.Error(), map[string]interface{}{"files": res.Files})
			return
		}
		_ = f.Success(map[string]interface{}{
			"files":      res.Files,
			"rules":      res.Rules,
			"generation": res.Generation,
		})
		return
	}
	if res.Err != nil {
		fmt.Fprintf(f.Writer, "✗ Reload failed: %v\n", res.Err)
		return
	}
	fmt.Fprintf(f.Writer, "✓ Loaded %d rule(s) from %d file(s) (generation %d)\n", res.Rules, len(res.Files), res.Generation)
}
