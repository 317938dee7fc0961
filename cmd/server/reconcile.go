package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/warp/settlement-engine/api"
	"github.com/warp/settlement-engine/settlement"
)

// ─── reconcile ──────────────────────────────────────────────────────────────

var (
	reconcileClient string
	reconcileAll    bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Recompute allocations for one client or all clients",
	Long: `Recompute a client's allocations, settled flags and available credit
from its current items and payments. Use after importing records outside
the API.`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

// ─── summary ────────────────────────────────────────────────────────────────

var summaryCmd = &cobra.Command{
	Use:   "summary CLIENT_ID",
	Short: "Print a client's balance summary as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runSummary,
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileClient, "client", "", "Client ID to reconcile")
	reconcileCmd.Flags().BoolVar(&reconcileAll, "all", false, "Reconcile every client")
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(summaryCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	if (reconcileClient == "") == !reconcileAll {
		return errors.New("exactly one of --client or --all is required")
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if reconcileAll {
		done, err := a.service.ReconcileAll(ctx)
		fmt.Fprintf(cmd.OutOrStdout(), "reconciled %d clients\n", done)
		return err
	}

	summary, err := a.service.Reconcile(ctx, settlement.ClientID(reconcileClient))
	if err != nil {
		return err
	}
	return printSummary(cmd, *summary)
}

func runSummary(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := a.service.GetClientSummary(cmd.Context(), settlement.ClientID(args[0]))
	if err != nil {
		return err
	}
	return printSummary(cmd, *summary)
}

func printSummary(cmd *cobra.Command, s settlement.Summary) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(api.ToSummaryDTO(s))
}
