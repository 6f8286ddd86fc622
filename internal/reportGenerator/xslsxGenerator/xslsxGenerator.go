package xslsxGenerator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/portfolio_tracker_api/internal/model"
	"github.com/KotFed0t/portfolio_tracker_api/utils"
	"github.com/xuri/excelize/v2"
)

type XSLSXGenerator struct{}

func New() *XSLSXGenerator {
	return &XSLSXGenerator{}
}

// Generate renders a portfolio positions snapshot into a single-sheet xlsx.
func (g *XSLSXGenerator) Generate(ctx context.Context, details model.PortfolioDetails) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XSLSXGenerator.Generate"

	if details.Name == "" {
		return nil, "", errors.New("empty portfolio")
	}

	slog.Debug("Generate start", slog.String("rqID", rqID), slog.String("op", op))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	if err := g.fillSheet(f, details); err != nil {
		slog.Error("got error while filling sheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		slog.Error("got error while saving file to bytes buffer", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	slog.Debug("Generate completed", slog.String("rqID", rqID), slog.String("op", op))

	return buf.Bytes(), ".xlsx", nil
}

func (g *XSLSXGenerator) fillSheet(f *excelize.File, details model.PortfolioDetails) error {
	sheetName := details.Name
	idx, err := f.NewSheet(sheetName)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	if err := f.MergeCell(sheetName, "A1", "H1"); err != nil {
		return err
	}

	f.SetCellValue(sheetName, "A1", "Positions")

	styleID, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Font: &excelize.Font{
			Bold: true,
			Size: 11,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{"#cfe2f3"},
		},
	})
	if err != nil {
		return err
	}

	if err := f.SetCellStyle(sheetName, "A1", "A1", styleID); err != nil {
		return fmt.Errorf("apply style: %w", err)
	}

	_ = f.SetCellStr(sheetName, "A2", "symbol")
	_ = f.SetCellStr(sheetName, "B2", "name")
	_ = f.SetCellStr(sheetName, "C2", "quantity")
	_ = f.SetCellStr(sheetName, "D2", "cost per share")
	_ = f.SetCellStr(sheetName, "E2", "purchase date")
	_ = f.SetCellStr(sheetName, "F2", "total cost")
	_ = f.SetCellStr(sheetName, "G2", "current price")
	_ = f.SetCellStr(sheetName, "H2", "current value")

	for i, position := range details.Positions {
		rowNum := i + 3
		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", rowNum), position.Symbol)
		_ = f.SetCellStr(sheetName, fmt.Sprintf("B%d", rowNum), position.StockName)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", rowNum), position.Quantity.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", rowNum), position.PurchasePrice.InexactFloat64())
		_ = f.SetCellStr(sheetName, fmt.Sprintf("E%d", rowNum), position.PurchaseDate.Format("2006-01-02"))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("F%d", rowNum), position.TotalCost().InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("G%d", rowNum), position.CurrentPrice.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("H%d", rowNum), position.CurrentValue.InexactFloat64())
	}

	totalsRow := len(details.Positions) + 4

	_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", totalsRow), "total")
	_ = f.SetCellValue(sheetName, fmt.Sprintf("F%d", totalsRow), details.TotalCost.InexactFloat64())
	_ = f.SetCellValue(sheetName, fmt.Sprintf("H%d", totalsRow), details.TotalValue.InexactFloat64())

	return nil
}
