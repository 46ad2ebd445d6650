package cli

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"redact-backend/internal/classify"
)

const sniffBytes = 3072

type classification struct {
	File      string `json:"file"`
	Size      int64  `json:"size"`
	Strategy  string `json:"strategy"`
	Extension string `json:"extension"`
	MimeType  string `json:"mimeType,omitempty"`
	Detected  string `json:"detected,omitempty"`
	Rejected  bool   `json:"rejected"`
	Reason    string `json:"reason,omitempty"`
	Warning   string `json:"warning,omitempty"`
}

func newClassifyCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <file>...",
		Short: "Show how files would be classified",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := classify.New(opts.MaxBytes)
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, path := range args {
				out, err := classifyFile(c, path)
				if err != nil {
					return err
				}
				if err := enc.Encode(out); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func classifyFile(c *classify.Classifier, path string) (classification, error) {
	f, err := os.Open(path)
	if err != nil {
		return classification{}, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return classification{}, err
	}
	head := make([]byte, sniffBytes)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return classification{}, err
	}

	name := filepath.Base(path)
	res := c.Classify(name, info.Size(), head[:n])
	return classification{
		File:      name,
		Size:      info.Size(),
		Strategy:  res.Strategy.String(),
		Extension: res.Extension,
		MimeType:  res.MimeType,
		Detected:  res.Detected,
		Rejected:  res.Rejected,
		Reason:    res.Reason,
		Warning:   res.Warning,
	}, nil
}
