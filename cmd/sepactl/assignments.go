package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/openbuilders/sepa-collector/internal/report"

	"github.com/spf13/cobra"
)

func assignmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assignments",
		Short: "Work with committed direct debit assignments",
	}

	cmd.AddCommand(exportCmd())

	return cmd
}

func exportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export <assignment-id>",
		Short: "Write an assignment with its batches and instructions to a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid assignment id %q", args[0])
			}

			a, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			detail, err := a.db.GetAssignmentDetail(cmd.Context(), id)
			if err != nil {
				return err
			}

			if out == "" {
				out = fmt.Sprintf("%s.xlsx", a.cfg.Prefixes.FileIdentification(id))
			}

			f, err := os.Create(out)
			if err != nil {
				return err
			}

			if err := report.Write(f, detail, a.cfg.Prefixes); err != nil {
				_ = f.Close()
				return err
			}

			if err := f.Close(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: <file identification>.xlsx)")

	return cmd
}
