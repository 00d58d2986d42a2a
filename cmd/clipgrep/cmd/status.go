package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clipgrep/clipgrep/internal/config"
	"github.com/clipgrep/clipgrep/pkg/version"
)

// statusInfo is the status report, printable as text or JSON.
type statusInfo struct {
	Version          string `json:"version"`
	ConfigPath       string `json:"config_path"`
	DataDir          string `json:"data_dir"`
	DatabasePath     string `json:"database_path"`
	IndexedImages    int    `json:"indexed_images"`
	VectorDims       int    `json:"vector_dimensions"`
	EncoderEndpoint  string `json:"encoder_endpoint"`
	EncoderModel     string `json:"encoder_model"`
	EncoderAvailable bool   `json:"encoder_available"`
	Offline          bool   `json:"offline"`
}

func newStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index and encoder status",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			count, err := a.store.Count(cmd.Context())
			if err != nil {
				return err
			}

			info := statusInfo{
				Version:          version.Short(),
				ConfigPath:       configDisplayPath(),
				DataDir:          a.cfg.DataDir,
				DatabasePath:     a.cfg.DatabasePath(),
				IndexedImages:    count,
				VectorDims:       a.encoder.Dimensions(),
				EncoderEndpoint:  a.cfg.Encoder.Endpoint,
				EncoderModel:     a.encoder.ModelName(),
				EncoderAvailable: a.encoder.Available(cmd.Context()),
				Offline:          a.cfg.Encoder.Offline,
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}

			fmt.Printf("clipgrep %s\n", info.Version)
			fmt.Printf("config:          %s\n", info.ConfigPath)
			fmt.Printf("data dir:        %s\n", info.DataDir)
			fmt.Printf("database:        %s\n", info.DatabasePath)
			fmt.Printf("indexed images:  %d\n", info.IndexedImages)
			fmt.Printf("vector dims:     %d\n", info.VectorDims)
			if info.Offline {
				fmt.Printf("encoder:         offline (%s)\n", info.EncoderModel)
			} else {
				fmt.Printf("encoder:         %s (%s)\n", info.EncoderEndpoint, info.EncoderModel)
				fmt.Printf("encoder ready:   %v\n", info.EncoderAvailable)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func configDisplayPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}
