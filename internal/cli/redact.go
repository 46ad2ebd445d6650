package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"redact-backend/internal/results"
)

func newRedactCmd(opts *Options) *cobra.Command {
	var printText bool
	cmd := &cobra.Command{
		Use:   "redact <file>...",
		Short: "Redact files into the local store",
		Long:  `Uploads each file into the local store, runs it through classification, extraction and redaction, and prints one JSON outcome per file.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := newRuntime(ctx, opts)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, path := range args {
				out, err := redactFile(cmd, rt, path)
				if err != nil {
					return err
				}
				if printText && out.Status == string(results.StatusProcessed) {
					if err := copyObject(cmd, rt, out.OutputKey); err != nil {
						return err
					}
					continue
				}
				if err := enc.Encode(out); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&printText, "print", false, "Print redacted text instead of the outcome")
	return cmd
}

func redactFile(cmd *cobra.Command, rt *runtime, path string) (Outcome, error) {
	f, err := os.Open(path)
	if err != nil {
		return Outcome{}, err
	}
	defer f.Close()
	out, err := rt.process(cmd.Context(), filepath.Base(path), f)
	if err != nil {
		return Outcome{}, fmt.Errorf("redact %s: %w", path, err)
	}
	return out, nil
}

func copyObject(cmd *cobra.Command, rt *runtime, key string) error {
	rc, err := rt.store.Open(cmd.Context(), key)
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(cmd.OutOrStdout(), rc)
	return err
}
