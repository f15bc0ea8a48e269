// Command pretrain runs an encoder pretraining pass against an auxiliary
// corpus, then continues with the solver's own training on the main corpus,
// demonstrating the shared-layer lifecycle end to end.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/quillml/textsolve/datasets"
	"github.com/quillml/textsolve/pretrain"
	"github.com/quillml/textsolve/solver"
)

func main() {
	app := &cli.Command{
		Name:  "pretrain",
		Usage: "Pretrain shared solver layers on an auxiliary corpus",
		Commands: []*cli.Command{
			runCmd(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
	}
	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCmd() *cli.Command {
	var (
		pretrainData   string
		pretrainFormat string
		trainData      string
		trainFormat    string

		epochs          int64
		validationSplit float64
		patience        int64
		noEarlyStopping bool

		maxWords     int64
		embeddingDim int64
		encoderDim   int64
		seed         int64

		outDir     string
		configFile string
	)

	return &cli.Command{
		Name:  "run",
		Usage: "Run pretraining followed by solver training",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "pretrain-data",
				Usage:       "path to the auxiliary pretraining corpus",
				Destination: &pretrainData,
			},
			&cli.StringFlag{
				Name:        "pretrain-format",
				Usage:       "pretraining corpus format: tsv or jsonl",
				Value:       "tsv",
				Destination: &pretrainFormat,
			},
			&cli.StringFlag{
				Name:        "train-data",
				Usage:       "path to the main training corpus",
				Destination: &trainData,
			},
			&cli.StringFlag{
				Name:        "train-format",
				Usage:       "main corpus format: tsv or jsonl",
				Value:       "tsv",
				Destination: &trainFormat,
			},
			&cli.Int64Flag{
				Name:        "epochs",
				Usage:       "pretraining epoch budget",
				Value:       30,
				Destination: &epochs,
			},
			&cli.Float64Flag{
				Name:        "validation-split",
				Usage:       "fraction of pretraining data withheld for validation",
				Value:       0.1,
				Destination: &validationSplit,
			},
			&cli.Int64Flag{
				Name:        "patience",
				Usage:       "non-improving epochs tolerated before early stopping",
				Value:       3,
				Destination: &patience,
			},
			&cli.BoolFlag{
				Name:        "no-early-stopping",
				Usage:       "run the full epoch budget regardless of validation loss",
				Destination: &noEarlyStopping,
			},
			&cli.Int64Flag{
				Name:        "max-words",
				Usage:       "token length every input is padded/truncated to",
				Value:       50,
				Destination: &maxWords,
			},
			&cli.Int64Flag{
				Name:        "embedding-dim",
				Usage:       "word embedding dimensionality",
				Value:       64,
				Destination: &embeddingDim,
			},
			&cli.Int64Flag{
				Name:        "encoder-dim",
				Usage:       "encoder output dimensionality",
				Value:       32,
				Destination: &encoderDim,
			},
			&cli.Int64Flag{
				Name:        "seed",
				Usage:       "random seed (0 = time-based)",
				Destination: &seed,
			},
			&cli.StringFlag{
				Name:        "out",
				Usage:       "output directory for training-history plots",
				Value:       "output",
				Destination: &outDir,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to YAML config file (flags take precedence)",
				Destination: &configFile,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			applyConfig(cmd, cfg,
				&pretrainData, &pretrainFormat, &trainData, &trainFormat,
				&epochs, &validationSplit, &patience, &noEarlyStopping,
				&maxWords, &embeddingDim, &encoderDim, &seed, &outDir)

			if pretrainData == "" {
				return fmt.Errorf("missing --pretrain-data (or pretrain_data in config)")
			}
			if trainData == "" {
				return fmt.Errorf("missing --train-data (or train_data in config)")
			}

			runID := uuid.NewString()
			log.Printf("Starting run %s", runID)

			mainDS, err := readDataset(trainData, trainFormat)
			if err != nil {
				return fmt.Errorf("failed to load main corpus: %w", err)
			}
			log.Printf("Main corpus loaded: %d instances, %d classes", mainDS.Len(), mainDS.NumClasses())

			sv := solver.New(solver.Config{
				MaxWords:     int(maxWords),
				NumSlots:     mainDS.NumSlots(),
				EmbeddingDim: int(embeddingDim),
				EncoderDim:   int(encoderDim),
				Seed:         seed,
			})

			task := pretrain.NewEncoderTask(sv, pretrainData, pretrainFormat)
			task.Seed = seed

			pcfg := pretrain.DefaultConfig()
			pcfg.NumEpochs = int(epochs)
			pcfg.ValidationSplit = validationSplit
			pcfg.EarlyStopping = !noEarlyStopping
			pcfg.Patience = int(patience)

			trainer, err := pretrain.NewPretrainer(sv, task, pcfg)
			if err != nil {
				return err
			}

			// Both corpora must contribute to the vocabulary before the
			// first layer access sizes the embedding table.
			if err := trainer.FitIndexer(sv.DataIndexer()); err != nil {
				return fmt.Errorf("failed to fit dictionary on pretraining corpus: %w", err)
			}
			sv.FitDictionary(mainDS)
			log.Printf("Vocabulary fit: %d words", sv.DataIndexer().VocabSize())

			log.Printf("Pretraining on %s (epochs=%d, validation=%.2f, early stopping=%v)",
				pretrainData, pcfg.NumEpochs, pcfg.ValidationSplit, pcfg.EarlyStopping)
			if err := trainer.Train(); err != nil {
				return fmt.Errorf("pretraining failed: %w", err)
			}
			ph := trainer.History()
			log.Printf("Pretraining finished: %d epochs run (stopped early: %v)",
				len(ph.Epochs), ph.StoppedEarly)
			if err := plotHistory(ph, "pretraining",
				filepath.Join(outDir, fmt.Sprintf("pretrain_%s.png", runID))); err != nil {
				log.Printf("warning: failed to plot pretraining history: %v", err)
			}

			log.Printf("Training solver on %s", trainData)
			if err := sv.Train(mainDS); err != nil {
				return fmt.Errorf("solver training failed: %w", err)
			}
			sh := sv.History()
			last := sh.Epochs[len(sh.Epochs)-1]
			log.Printf("Solver training finished: %d epochs, final loss=%.4f acc=%.4f",
				len(sh.Epochs), last.Loss, last.Accuracy)
			if err := plotHistory(sh, "solver training",
				filepath.Join(outDir, fmt.Sprintf("solver_%s.png", runID))); err != nil {
				log.Printf("warning: failed to plot solver history: %v", err)
			}
			return nil
		},
	}
}

func readDataset(path, format string) (*datasets.TextDataset, error) {
	switch format {
	case "", pretrain.FormatTSV:
		return datasets.ReadTSVDataset(path)
	case pretrain.FormatJSONL:
		return datasets.ReadJSONLDataset(path)
	default:
		return nil, fmt.Errorf("unknown dataset format %q", format)
	}
}
