package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"redact-backend/internal/shared/telemetry"
)

const (
	defaultSettle = 500 * time.Millisecond
	minSettle     = 20 * time.Millisecond
)

func newWatchCmd(opts *Options) *cobra.Command {
	var settle time.Duration
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Redact files as they land in a directory",
		Long:  `Watches a directory and runs every new or rewritten file through the pipeline once writes to it have settled.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return watchDir(cmd, rt, args[0], settle)
		},
	}
	cmd.Flags().DurationVar(&settle, "settle", defaultSettle, "Quiet period after the last write before a file is processed (minimum 20ms)")
	return cmd
}

func watchDir(cmd *cobra.Command, rt *runtime, dir string, settle time.Duration) error {
	ctx := cmd.Context()
	settle = max(settle, minSettle)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	telemetry.Info("redactctl.watch.started", map[string]any{"dir": dir})

	enc := json.NewEncoder(cmd.OutOrStdout())
	pending := map[string]time.Time{}
	ticker := time.NewTicker(settle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if strings.HasPrefix(filepath.Base(event.Name), ".") {
				continue
			}
			pending[event.Name] = time.Now()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			telemetry.Warn("redactctl.watch.error", map[string]any{"error": err.Error()})
		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < settle {
					continue
				}
				delete(pending, path)
				info, err := os.Stat(path)
				if err != nil || !info.Mode().IsRegular() {
					continue
				}
				out, err := redactFile(cmd, rt, path)
				if err != nil {
					telemetry.Error("redactctl.watch.failed", map[string]any{"file": path, "error": err.Error()})
					continue
				}
				if err := enc.Encode(out); err != nil {
					return err
				}
			}
		}
	}
}
