package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

const predictionListLimitDefault = 500

var (
	predictionLimitFlag = &cli.IntFlag{
		Name:  "limit",
		Usage: "Limits number of results returned",
		Value: predictionListLimitDefault,
	}

	predictionsCmd = &cli.Command{
		Name:            "predictions",
		Aliases:         []string{"p"},
		Usage:           "List stored churn predictions, highest risk first",
		HideHelpCommand: true,
		Action:          cmdPredictionsList,
		Flags: []cli.Flag{
			predictionLimitFlag,
		},
	}
)

func cmdPredictionsList(c *cli.Context) error {
	cfg := getConfig(c)
	ctx := c.Context

	st, closeStore, err := cfg.dataStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	preds, err := st.Predictions(ctx, c.Int(predictionLimitFlag.Name))
	if err != nil {
		return fmt.Errorf("loading predictions: %w", err)
	}
	return encode(preds)
}
