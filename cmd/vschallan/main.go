package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/invento-software-limited/Smart-Vat-Challan/app"
	"github.com/invento-software-limited/Smart-Vat-Challan/config"
	"github.com/invento-software-limited/Smart-Vat-Challan/models"
	"github.com/invento-software-limited/Smart-Vat-Challan/utils"
	"github.com/invento-software-limited/Smart-Vat-Challan/vschallan"
)

var rootCmd = &cobra.Command{
	Use:   "vschallan",
	Short: "Operate the VAT Smart Challan integration",
	Long: `vschallan runs the VAT Smart Challan operations against the configured
database: vendor configuration, tokens, reference data, registrations,
invoice syncs and the scheduled auto-sync.

Database, Redis and Pub/Sub settings are read from the environment (.env is
loaded when present).`,
	SilenceUsage: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx = utils.SetCorrelationIdInContext(ctx, uuid.NewString())
	ctx = utils.SetTriggeredByInContext(ctx, models.SyncTriggeredManual)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		config.LogError(config.GetLogger(), "vschallan-cli", "main", "command failed", os.Args[1:], err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// withService builds the service for one command and closes it afterwards.
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *vschallan.Service) error) error {
	ctx := cmd.Context()
	rt, err := app.Build(ctx, config.Load())
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt.Service)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
