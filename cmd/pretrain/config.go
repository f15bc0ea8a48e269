package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// fileConfig is the optional YAML configuration file. Numeric fields are
// pointers so "not set" is distinguishable from zero values; explicit CLI
// flags always take precedence over file values.
type fileConfig struct {
	PretrainData   string `yaml:"pretrain_data"`
	PretrainFormat string `yaml:"pretrain_format"`
	TrainData      string `yaml:"train_data"`
	TrainFormat    string `yaml:"train_format"`

	Epochs          *int64   `yaml:"epochs"`
	ValidationSplit *float64 `yaml:"validation_split"`
	Patience        *int64   `yaml:"patience"`
	NoEarlyStopping *bool    `yaml:"no_early_stopping"`

	MaxWords     *int64 `yaml:"max_words"`
	EmbeddingDim *int64 `yaml:"embedding_dim"`
	EncoderDim   *int64 `yaml:"encoder_dim"`
	Seed         *int64 `yaml:"seed"`

	OutDir string `yaml:"out_dir"`
}

// loadConfig reads the YAML config file. An empty path returns a zero
// config; a missing file at an explicit path is an error.
func loadConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// applyConfig applies config file values to run variables whose
// corresponding CLI flag was not explicitly set.
func applyConfig(c *cli.Command, cfg fileConfig,
	pretrainData, pretrainFormat, trainData, trainFormat *string,
	epochs *int64, validationSplit *float64, patience *int64, noEarlyStopping *bool,
	maxWords, embeddingDim, encoderDim, seed *int64, outDir *string,
) {
	if cfg.PretrainData != "" && !c.IsSet("pretrain-data") {
		*pretrainData = cfg.PretrainData
	}
	if cfg.PretrainFormat != "" && !c.IsSet("pretrain-format") {
		*pretrainFormat = cfg.PretrainFormat
	}
	if cfg.TrainData != "" && !c.IsSet("train-data") {
		*trainData = cfg.TrainData
	}
	if cfg.TrainFormat != "" && !c.IsSet("train-format") {
		*trainFormat = cfg.TrainFormat
	}
	if cfg.Epochs != nil && !c.IsSet("epochs") {
		*epochs = *cfg.Epochs
	}
	if cfg.ValidationSplit != nil && !c.IsSet("validation-split") {
		*validationSplit = *cfg.ValidationSplit
	}
	if cfg.Patience != nil && !c.IsSet("patience") {
		*patience = *cfg.Patience
	}
	if cfg.NoEarlyStopping != nil && !c.IsSet("no-early-stopping") {
		*noEarlyStopping = *cfg.NoEarlyStopping
	}
	if cfg.MaxWords != nil && !c.IsSet("max-words") {
		*maxWords = *cfg.MaxWords
	}
	if cfg.EmbeddingDim != nil && !c.IsSet("embedding-dim") {
		*embeddingDim = *cfg.EmbeddingDim
	}
	if cfg.EncoderDim != nil && !c.IsSet("encoder-dim") {
		*encoderDim = *cfg.EncoderDim
	}
	if cfg.Seed != nil && !c.IsSet("seed") {
		*seed = *cfg.Seed
	}
	if cfg.OutDir != "" && !c.IsSet("out") {
		*outDir = cfg.OutDir
	}
}
