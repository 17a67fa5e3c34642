package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/churnscope/churnctl/pkg/store"
)

var (
	customersCmd = &cli.Command{
		Name:            "customers",
		Aliases:         []string{"c"},
		Usage:           "Manage stored customer records",
		HideHelpCommand: true,
		Subcommands: []*cli.Command{
			{
				Name:    "import",
				Usage:   "Import customers from a JSON array file",
				Aliases: []string{"i"},
				Action:  cmdCustomersImport,
				Flags: []cli.Flag{
					recordFileFlag,
				},
			},
			{
				Name:    "list",
				Usage:   "List stored customers",
				Aliases: []string{"l"},
				Action:  cmdCustomersList,
			},
		},
	}
)

func cmdCustomersImport(c *cli.Context) error {
	cfg := getConfig(c)
	ctx := c.Context

	b, err := readInput(c)
	if err != nil {
		return err
	}

	var customers []*store.Customer
	if err := json.Unmarshal(b, &customers); err != nil {
		return fmt.Errorf("parsing customers: %w", err)
	}
	if len(customers) == 0 {
		return fmt.Errorf("no customers in input")
	}
	for i, cust := range customers {
		if cust.CustomerID == "" {
			return fmt.Errorf("customer at index %d has no customer_id", i)
		}
	}

	st, closeStore, err := cfg.dataStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := st.SaveCustomers(ctx, customers); err != nil {
		return fmt.Errorf("saving customers: %w", err)
	}

	slog.Info("customers imported", "count", len(customers))
	return encode(map[string]int{"imported": len(customers)})
}

func cmdCustomersList(c *cli.Context) error {
	cfg := getConfig(c)
	ctx := c.Context

	st, closeStore, err := cfg.dataStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	customers, err := st.Customers(ctx)
	if err != nil {
		return fmt.Errorf("loading customers: %w", err)
	}
	return encode(customers)
}
