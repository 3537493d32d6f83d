package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"modelcache/internal/config"
	"modelcache/internal/modelerr"
	"modelcache/internal/registry"
	"modelcache/pkg/types"
)

func newScanCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "scan [dir]",
		Short: "List and hash the model files in a directory",
		Example: "  modelcached scan ~/models/llm\n" +
			"  modelcached scan --json ~/models/llm > manifest.json",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := scanDir(opts, args)
			if err != nil {
				return err
			}
			log, err := newLogger(cmd.ErrOrStderr(), opts.logLevel, opts.logFormat)
			if err != nil {
				return err
			}
			models, err := registry.New(registry.Options{Logger: &log}).Discover(dir)
			if models == nil && err != nil {
				return err
			}
			if asJSON {
				if werr := writeManifest(cmd.OutOrStdout(), models); werr != nil {
					return werr
				}
			} else {
				printModels(cmd.OutOrStdout(), models)
			}
			// Files that failed to register are reported after the listing.
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Write a JSON manifest usable by verify")
	return cmd
}

func newVerifyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "verify <manifest.json>",
		Short:   "Re-hash the models of a scan manifest and report changed or missing files",
		Example: "  modelcached verify manifest.json",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(cmd.ErrOrStderr(), opts.logLevel, opts.logFormat)
			if err != nil {
				return err
			}
			manifest, err := readManifest(args[0])
			if err != nil {
				return err
			}
			bad := verifyManifest(cmd.OutOrStdout(), registry.New(registry.Options{Logger: &log}), manifest, log)
			if bad > 0 {
				return fmt.Errorf("%d of %d models failed verification", bad, len(manifest))
			}
			return nil
		},
	}
}

// scanDir picks the directory argument, then the config's models_dir, then
// the default.
func scanDir(opts *rootOptions, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return "", err
	}
	if cfg.ModelsDir != "" {
		return cfg.ModelsDir, nil
	}
	return config.DefaultModelsDir, nil
}

func printModels(w io.Writer, models []types.Model) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFORMAT\tSIZE\tSHA256")
	var total int64
	for _, m := range models {
		hash := m.ContentHash
		if len(hash) > 12 {
			hash = hash[:12]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.ID, m.Format, humanize.IBytes(uint64(m.SizeBytes)), hash)
		total += m.SizeBytes
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "%d models, %s\n", len(models), humanize.IBytes(uint64(total)))
}

func writeManifest(w io.Writer, models []types.Model) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(types.ModelsResponse{Models: models})
}

func readManifest(path string) ([]types.Model, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m types.ModelsResponse
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if len(m.Models) == 0 {
		return nil, errors.New("manifest lists no models")
	}
	return m.Models, nil
}

// verifyManifest registers every manifest entry into reg and compares the
// fresh hash with the recorded one. It returns the number of failures.
func verifyManifest(w io.Writer, reg *registry.Registry, manifest []types.Model, log zerolog.Logger) int {
	bad := 0
	for _, want := range manifest {
		status := "ok"
		if err := reg.Register(want.ID, want.Path); err != nil {
			log.Debug().Err(err).Str("model", want.ID).Msg("verify")
			status = "error"
			if modelerr.IsNotFound(err) {
				status = "missing"
			}
		} else if got, _ := reg.Get(want.ID); got.ContentHash != want.ContentHash {
			status = "changed"
		}
		if status != "ok" {
			bad++
		}
		fmt.Fprintf(w, "%-8s %s\n", status, want.ID)
	}
	return bad
}
