package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/openbuilders/sepa-collector/internal/eligibility"
	"github.com/openbuilders/sepa-collector/internal/helpers"
	"github.com/openbuilders/sepa-collector/internal/mandate"

	"github.com/spf13/cobra"
)

func mandatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mandates",
		Short: "Inspect and maintain direct debit mandates",
	}

	cmd.AddCommand(toTerminateCmd())
	cmd.AddCommand(toAnonymizeCmd())
	cmd.AddCommand(sequenceCmd())

	return cmd
}

type eligibleOutput struct {
	Action  string  `json:"action"`
	IDs     []int64 `json:"ids"`
	Applied bool    `json:"applied"`
}

func toTerminateCmd() *cobra.Command {
	return eligibleCmd("to-terminate", "terminate",
		"List active mandates that are no longer used",
		func(ctx context.Context, l *mandate.Ledger, ids []int64, now time.Time, loc *time.Location) error {
			return l.Terminate(ctx, ids, helpers.Midnight(now, loc))
		},
		(*eligibility.Service).ToTerminate,
	)
}

func toAnonymizeCmd() *cobra.Command {
	return eligibleCmd("to-anonymize", "anonymize",
		"List ended mandates whose account data may be removed",
		func(ctx context.Context, l *mandate.Ledger, ids []int64, _ time.Time, _ *time.Location) error {
			return l.Anonymize(ctx, ids)
		},
		(*eligibility.Service).ToAnonymize,
	)
}

type applyFunc func(ctx context.Context, l *mandate.Ledger, ids []int64, now time.Time, loc *time.Location) error

type listFunc func(s *eligibility.Service, ctx context.Context, now time.Time) ([]int64, error)

func eligibleCmd(use, action, short string, apply applyFunc, list listFunc) *cobra.Command {
	var doApply bool

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			svc := eligibility.NewService(&eligibility.Config{
				Windows:  a.cfg.Windows,
				Epoch:    a.cfg.Epoch,
				Location: a.cfg.Location,
			}, a.db)
			now := time.Now()

			if !doApply {
				ids, err := list(svc, cmd.Context(), now)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), eligibleOutput{Action: action, IDs: ids})
			}

			lock, err := a.lock(cmd.Context())
			if err != nil {
				return err
			}

			ledger := mandate.New(&mandate.Config{Location: a.cfg.Location}, a.db)

			var ids []int64
			err = lock.Do(cmd.Context(), func(ctx context.Context) error {
				// the set is evaluated again under the lock
				ids, err = list(svc, ctx, now)
				if err != nil || len(ids) == 0 {
					return err
				}
				return apply(ctx, ledger, ids, now, a.cfg.Location)
			})
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), eligibleOutput{Action: action, IDs: ids, Applied: true})
		},
	}

	cmd.Flags().BoolVar(&doApply, "apply", false, "apply the action to every listed mandate")

	return cmd
}

func sequenceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sequence <mandate-id>",
		Short: "Print the sequence type of the next instruction of a mandate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid mandate id %q", args[0])
			}

			a, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			ledger := mandate.New(&mandate.Config{Location: a.cfg.Location}, a.db)

			seq, err := ledger.NextSequenceType(cmd.Context(), id)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), seq)
			return nil
		},
	}
}
