package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"raffler/config"
	"raffler/domain/interfaces"

	"github.com/spf13/cobra"
)

// withEngine runs fn against a freshly wired app and closes it afterwards
func withEngine(cmd *cobra.Command, fn func(ctx context.Context, a *app) (any, error)) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, config.Get())
	if err != nil {
		return err
	}
	defer a.close()

	out, err := fn(ctx, a)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

func drawCommand() *cobra.Command {
	var abortReason string
	var abort bool

	cmd := &cobra.Command{
		Use:   "draw <raffle-id>",
		Short: "Draw a raffle now, or abort a stuck draw with --abort",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raffleID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd, func(ctx context.Context, a *app) (any, error) {
				if abort {
					return a.engine.AbortDraw(ctx, raffleID, abortReason)
				}
				return a.engine.InitiateDraw(ctx, raffleID)
			})
		},
	}
	cmd.Flags().BoolVar(&abort, "abort", false, "cancel a raffle stuck in drawing and refund its entries")
	cmd.Flags().StringVar(&abortReason, "reason", "", "reason recorded with --abort")
	return cmd
}

func verifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <raffle-id>",
		Short: "Recompute a draw from its stored seed and compare the winners",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raffleID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd, func(ctx context.Context, a *app) (any, error) {
				audit, err := a.engine.AuditDraw(ctx, raffleID)
				if err != nil {
					return nil, err
				}
				if !audit.Match {
					if err := printJSON(cmd.OutOrStdout(), audit); err != nil {
						return nil, err
					}
					return nil, fmt.Errorf("draw for raffle %d does not match its stored winners", raffleID)
				}
				return audit, nil
			})
		},
	}
}

func payoutCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payout",
		Short: "Send or retry winner payouts",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "send <winner-id>",
		Short: "Pay one winner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			winnerID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd, func(ctx context.Context, a *app) (any, error) {
				return a.engine.SendPayout(ctx, winnerID)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "send-all <raffle-id>",
		Short: "Pay every pending winner of a raffle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raffleID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd, func(ctx context.Context, a *app) (any, error) {
				return a.engine.SendAllPayouts(ctx, raffleID)
			})
		},
	})

	var requestedBy, reason string
	retryCmd := &cobra.Command{
		Use:   "retry <winner-id>",
		Short: "Reopen a failed payout so it can be sent again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			winnerID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd, func(ctx context.Context, a *app) (any, error) {
				return a.engine.RequestRetry(ctx, interfaces.RetryRequest{
					WinnerID:    winnerID,
					RequestedBy: requestedBy,
					Reason:      reason,
				})
			})
		},
	}
	retryCmd.Flags().StringVar(&requestedBy, "by", "cli", "operator requesting the retry")
	retryCmd.Flags().StringVar(&reason, "reason", "", "why the payout is being retried")
	cmd.AddCommand(retryCmd)

	return cmd
}
