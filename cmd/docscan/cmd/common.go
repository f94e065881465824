package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/docscan/internal/config"
	"github.com/MeKo-Tech/docscan/internal/pipeline"
	"github.com/spf13/cobra"
)

const (
	outputFormatJSON = "json"
	outputFormatCSV  = "csv"
	outputFormatText = "text"
)

// flagChanged reports whether cmd defines the flag and it was set.
func flagChanged(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}

// applyScannerFlags copies the detection and output flags a command defines
// onto cfg. Flags left unset keep the configured value.
func applyScannerFlags(cmd *cobra.Command, cfg *config.Config) {
	if flagChanged(cmd, "max-dimension") {
		cfg.Scanner.MaxDimension, _ = cmd.Flags().GetInt("max-dimension")
	}
	if flagChanged(cmd, "debug-stage") {
		cfg.Scanner.DebugStage, _ = cmd.Flags().GetString("debug-stage")
	}
	if flagChanged(cmd, "aspect") {
		cfg.Rectify.Aspect, _ = cmd.Flags().GetString("aspect")
	}
	if flagChanged(cmd, "color") {
		cfg.Rectify.ColorProfile, _ = cmd.Flags().GetString("color")
	}
	if flagChanged(cmd, "jpeg-quality") {
		cfg.Rectify.JPEGQuality, _ = cmd.Flags().GetInt("jpeg-quality")
	}
	if flagChanged(cmd, "rectify-debug-dir") {
		cfg.Rectify.DebugDir, _ = cmd.Flags().GetString("rectify-debug-dir")
	}
	if flagChanged(cmd, "workers") {
		cfg.Batch.Workers, _ = cmd.Flags().GetInt("workers")
	}
}

// buildPipeline creates a scan pipeline from cfg after flag overrides.
func buildPipeline(cmd *cobra.Command, cfg *config.Config) (*pipeline.Pipeline, error) {
	applyScannerFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pCfg, err := cfg.ToPipelineConfig()
	if err != nil {
		return nil, err
	}
	pl, err := pipeline.NewBuilder().WithConfig(pCfg).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	return pl, nil
}
