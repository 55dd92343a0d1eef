// Package report exports an assignment to a spreadsheet for the treasurer.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/openbuilders/sepa-collector/internal/types"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	SheetBatches      = "Batches"
	SheetInstructions = "Instructions"

	// built-in number format "0.00"
	numFmtAmount = 2
)

var (
	batchHeader = []any{
		"Payment information", "Execution date", "Sequence type", "Status",
		"Number of transactions", "Control sum", "Reversed sum",
	}
	instructionHeader = []any{
		"End-to-end id", "Payment information", "Mandate reference", "Debtor", "IBAN", "BIC",
		"Amount", "Description", "Reversal reason", "Reversal date",
	}
)

// Workbook builds the workbook of an assignment: one row per batch with
// totals, and one row per instruction.
func Workbook(detail *types.AssignmentDetail, prefixes types.Prefixes) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", SheetBatches); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SheetInstructions); err != nil {
		return nil, err
	}

	amount, err := f.NewStyle(&excelize.Style{NumFmt: numFmtAmount})
	if err != nil {
		return nil, err
	}

	if err := writeBatches(f, detail, prefixes, amount); err != nil {
		return nil, fmt.Errorf("batches sheet: %w", err)
	}
	if err := writeInstructions(f, detail, prefixes, amount); err != nil {
		return nil, fmt.Errorf("instructions sheet: %w", err)
	}

	return f, nil
}

// Write streams the workbook as xlsx.
func Write(w io.Writer, detail *types.AssignmentDetail, prefixes types.Prefixes) error {
	f, err := Workbook(detail, prefixes)
	if err != nil {
		return err
	}
	defer f.Close()

	return f.Write(w)
}

func writeBatches(f *excelize.File, detail *types.AssignmentDetail, prefixes types.Prefixes, amount int) error {
	if err := f.SetSheetRow(SheetBatches, "A1", &batchHeader); err != nil {
		return err
	}

	row := 2
	for i := range detail.Batches {
		b := &detail.Batches[i]
		values := []any{
			prefixes.PaymentInfoReference(b.ID),
			date(b.ExecutionDate),
			string(b.SequenceType),
			string(b.Status),
			b.NumberOfTransactions(),
			money(b.ControlSum()),
			money(b.ReversedSum()),
		}
		if err := setRow(f, SheetBatches, row, values); err != nil {
			return err
		}
		row++
	}

	totals := []any{
		prefixes.FileIdentification(detail.ID), "", "", "Total",
		detail.NumberOfTransactions(),
		money(detail.ControlSum()),
		money(detail.ReversedSum()),
	}
	if err := setRow(f, SheetBatches, row, totals); err != nil {
		return err
	}

	return styleColumns(f, SheetBatches, "F", "G", row, amount)
}

func writeInstructions(f *excelize.File, detail *types.AssignmentDetail, prefixes types.Prefixes, amount int) error {
	if err := f.SetSheetRow(SheetInstructions, "A1", &instructionHeader); err != nil {
		return err
	}

	row := 2
	for _, b := range detail.Batches {
		for _, i := range b.Instructions {
			debtor := ""
			if i.Person != nil {
				debtor = i.Person.IncompleteName()
			}

			reason, reversed := "", ""
			if i.Reversal != nil {
				reason = i.Reversal.Reason.Description()
				reversed = date(i.Reversal.Date)
			}

			values := []any{
				i.EndToEndID,
				prefixes.PaymentInfoReference(b.ID),
				prefixes.MandateReference(i.MandateID),
				debtor,
				i.Mandate.IBAN,
				i.Mandate.BIC,
				money(i.Amount),
				i.Description,
				reason,
				reversed,
			}
			if err := setRow(f, SheetInstructions, row, values); err != nil {
				return err
			}
			row++
		}
	}

	return styleColumns(f, SheetInstructions, "G", "G", row, amount)
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func styleColumns(f *excelize.File, sheet, from, to string, lastRow, style int) error {
	if lastRow < 2 {
		return nil
	}
	return f.SetCellStyle(sheet, fmt.Sprintf("%s2", from), fmt.Sprintf("%s%d", to, lastRow), style)
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func date(t time.Time) string {
	return t.Format(time.DateOnly)
}
