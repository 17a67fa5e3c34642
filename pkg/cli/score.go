package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/churnscope/churnctl/pkg/model"
	"github.com/churnscope/churnctl/pkg/scoring"
	"github.com/churnscope/churnctl/pkg/store"
)

var (
	recordFileFlag = &cli.StringFlag{
		Name:  "file",
		Usage: "Path to the JSON input (reads stdin when omitted)",
	}

	scoreCmd = &cli.Command{
		Name:            "score",
		Aliases:         []string{"s"},
		Usage:           "Score customer records with the trained model",
		HideHelpCommand: true,
		Subcommands: []*cli.Command{
			{
				Name:    "one",
				Usage:   "Score a single customer record (JSON object) with explanation",
				Aliases: []string{"o"},
				Action:  cmdScoreOne,
				Flags: []cli.Flag{
					recordFileFlag,
					modelFileFlag,
				},
			},
			{
				Name:    "batch",
				Usage:   "Score a list of customer records (JSON array)",
				Aliases: []string{"b"},
				Action:  cmdScoreBatch,
				Flags: []cli.Flag{
					recordFileFlag,
					modelFileFlag,
				},
			},
			{
				Name:    "customers",
				Usage:   "Score all stored customers and persist the predictions",
				Aliases: []string{"c"},
				Action:  cmdScoreStored,
				Flags: []cli.Flag{
					modelFileFlag,
				},
			},
		},
	}
)

func cmdScoreOne(c *cli.Context) error {
	b, err := readInput(c)
	if err != nil {
		return err
	}

	var rec map[string]any
	if err := json.Unmarshal(b, &rec); err != nil {
		return fmt.Errorf("parsing record: %w", err)
	}

	forest, err := loadModel(c)
	if err != nil {
		return err
	}

	result, err := scoring.New(forest).ScoreOne(rec)
	if err != nil {
		return fmt.Errorf("scoring record: %w", err)
	}
	return encode(result)
}

func cmdScoreBatch(c *cli.Context) error {
	b, err := readInput(c)
	if err != nil {
		return err
	}

	var recs []map[string]any
	if err := json.Unmarshal(b, &recs); err != nil {
		return fmt.Errorf("parsing records: %w", err)
	}

	forest, err := loadModel(c)
	if err != nil {
		return err
	}

	results, err := scoring.New(forest).ScoreBatch(recs)
	if err != nil {
		return fmt.Errorf("scoring records: %w", err)
	}
	return encode(results)
}

func cmdScoreStored(c *cli.Context) error {
	cfg := getConfig(c)
	ctx := c.Context

	forest, err := loadModel(c)
	if err != nil {
		return err
	}

	st, closeStore, err := cfg.dataStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	customers, err := st.Customers(ctx)
	if err != nil {
		return fmt.Errorf("loading customers: %w", err)
	}
	if len(customers) == 0 {
		slog.Info("no stored customers to score")
		return encode([]scoring.BatchResult{})
	}

	batch, err := scoreCustomers(forest, customers)
	if err != nil {
		return err
	}

	preds := make([]*store.Prediction, 0, len(batch))
	for _, b := range batch {
		preds = append(preds, &store.Prediction{
			CustomerID:       b.CustomerID,
			ChurnProbability: b.ChurnProbability,
			RiskSegment:      b.RiskSegment,
			ModelVersion:     forest.ID,
		})
	}
	if err := st.SavePredictions(ctx, preds); err != nil {
		return fmt.Errorf("saving predictions: %w", err)
	}

	slog.Info("predictions saved", "customers", len(preds))
	return encode(batch)
}

func readInput(c *cli.Context) ([]byte, error) {
	if p := c.String(recordFileFlag.Name); p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading input file %s: %w", p, err)
		}
		return b, nil
	}

	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	return b, nil
}

func loadModel(c *cli.Context) (*model.Forest, error) {
	p := modelPath(c)
	forest, err := model.Load(p)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("no trained model at %s, run 'churnctl train' first: %w", p, err)
		}
		return nil, fmt.Errorf("loading model from %s: %w", p, err)
	}
	return forest, nil
}
