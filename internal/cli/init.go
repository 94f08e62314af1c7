package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// initResult is printed by "unhitch init".
type initResult struct {
	DataDir  string   `json:"data_dir"`
	Database string   `json:"database"`
	Customer string   `json:"customer"`
	Orders   []string `json:"orders"`
	Written  int      `json:"written"`
}

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the store and seed sample orders",
		Long: "Create the configuration and data directories, open the SQLite store,\n" +
			"and seed a sample customer with two orders and their items.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInit(cmd)
		},
	}
}

func (a *app) runInit(cmd *cobra.Command) error {
	backend, repo, err := a.openShop()
	if err != nil {
		return err
	}
	defer backend.Close()

	session, err := repo.NewSession(cmd.Context())
	if err != nil {
		return err
	}
	seeded, err := session.Seed(time.Now())
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	result := initResult{
		DataDir:  a.config.DataDir,
		Database: backend.Path(),
		Customer: seeded.Customer.CustomerID,
		Written:  seeded.Written,
	}
	for _, o := range seeded.Orders {
		result.Orders = append(result.Orders, o.OrderID)
	}

	out := cmd.OutOrStdout()
	if a.flags.jsonMode {
		return writeJSON(out, result)
	}
	fmt.Fprintf(out, "Initialized store %s (%d records)\n", result.Database, result.Written)
	fmt.Fprintf(out, "customer %s\n", result.Customer)
	for _, key := range result.Orders {
		fmt.Fprintf(out, "order    %s\n", key)
	}
	return nil
}
