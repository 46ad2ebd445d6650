// Package cli implements redactctl, a local front end to the redaction
// pipeline backed by a directory object store.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"redact-backend/internal/classify"
	"redact-backend/internal/documents"
	"redact-backend/internal/extract"
	"redact-backend/internal/filename"
	"redact-backend/internal/pipeline"
	"redact-backend/internal/queue"
	"redact-backend/internal/redaction"
	"redact-backend/internal/results"
	"redact-backend/internal/retry"
	"redact-backend/internal/routing"
	"redact-backend/internal/rules"
	"redact-backend/internal/shared/storage/object"
	localstore "redact-backend/internal/shared/storage/object/local"
)

// Options are the persistent flags shared by every subcommand.
type Options struct {
	StoreDir   string
	Owner      string
	ConfigFile string
	MaxBytes   int64
	Extension  string
	LineEnding string
}

// NewRootCmd builds the redactctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &Options{}
	root := &cobra.Command{
		Use:           "redactctl",
		Short:         "Run the document redaction pipeline locally",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.StoreDir, "store", "./data", "Local object store directory")
	flags.StringVar(&opts.Owner, "owner", "local", "Owner id documents are filed under")
	flags.StringVarP(&opts.ConfigFile, "config", "c", "", "Redaction rules file (.yaml, .yml or .json)")
	flags.Int64Var(&opts.MaxBytes, "max-bytes", classify.DefaultMaxSize, "Largest accepted document in bytes")
	flags.StringVar(&opts.Extension, "ext", ".txt", "Extension of redacted outputs")
	flags.StringVar(&opts.LineEnding, "line-ending", "lf", "Output line ending: lf or crlf")

	root.AddCommand(newRedactCmd(opts))
	root.AddCommand(newClassifyCmd(opts))
	root.AddCommand(newWatchCmd(opts))
	return root
}

// runtime is the pipeline wired against a local directory.
type runtime struct {
	opts      *Options
	store     object.ObjectStore
	documents *documents.Service
	processor *pipeline.Processor
}

func newRuntime(ctx context.Context, opts *Options) (*runtime, error) {
	store := localstore.New(opts.StoreDir)
	policy := retry.DefaultPolicy()
	src := &rules.ObjectSource{Store: store, Retry: policy}

	if opts.ConfigFile != "" {
		cfg, err := rules.ParseFile(opts.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("load rules %s: %w", opts.ConfigFile, err)
		}
		if _, err := src.Save(ctx, opts.Owner, cfg); err != nil {
			return nil, fmt.Errorf("save rules: %w", err)
		}
	}

	docs := documents.NewMemoryRepo()
	res := results.NewMemoryRepo()
	proc := &pipeline.Processor{
		Store:      store,
		Documents:  docs,
		Results:    res,
		Rules:      src,
		Classifier: classify.New(opts.MaxBytes),
		Extract:    extract.Options{LineEnding: extract.ParseLineEnding(opts.LineEnding)},
		Engine:     redaction.New(),
		Filenames:  filename.New(opts.Extension),
		Router:     &routing.Router{Store: store, Results: res, Retry: policy},
		Retry:      policy,
	}
	return &runtime{
		opts:      opts,
		store:     store,
		documents: &documents.Service{Store: store, Repo: docs, Results: res},
		processor: proc,
	}, nil
}

// Outcome is what redact and watch print per file.
type Outcome struct {
	File           string `json:"file"`
	DocumentID     string `json:"documentId"`
	Status         string `json:"status"`
	Reason         string `json:"reason,omitempty"`
	OutputKey      string `json:"outputKey"`
	RedactionCount int    `json:"redactionCount"`
}

func (rt *runtime) process(ctx context.Context, name string, data io.Reader) (Outcome, error) {
	requestID := uuid.NewString()
	doc, err := rt.documents.Upload(ctx, rt.opts.Owner, name, requestID, data)
	if err != nil {
		return Outcome{}, err
	}
	res, err := rt.processor.Process(ctx, queue.Message{
		DocumentID: doc.ID,
		OwnerID:    doc.OwnerID,
		ObjectKey:  doc.StorageKey,
		Filename:   doc.OriginalFilename,
		Size:       doc.SizeBytes,
		RequestID:  requestID,
	})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		File:           name,
		DocumentID:     doc.ID,
		Status:         string(res.Status),
		Reason:         res.Reason,
		OutputKey:      res.OutputKey,
		RedactionCount: res.RedactionCount,
	}, nil
}
