package portfolioService

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/KotFed0t/portfolio_tracker_api/data/repository"
	"github.com/KotFed0t/portfolio_tracker_api/internal/externalApi"
	"github.com/KotFed0t/portfolio_tracker_api/internal/model"
	"github.com/KotFed0t/portfolio_tracker_api/internal/service"
	"github.com/KotFed0t/portfolio_tracker_api/utils"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// ImportCSV runs the whole parse+validate pipeline for one uploaded file and
// stages the outcome on a new import job. Structural failures (undecodable
// file, missing symbol column, panic) mark the job failed; per-row problems
// only mark the affected rows and the job still reaches preview.
func (s *PortfolioService) ImportCSV(ctx context.Context, portfolioID int64, filename, content string) (result model.ImportResult, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.ImportCSV"

	slog.Debug("ImportCSV start", slog.String("rqID", rqID), slog.String("op", op), slog.String("filename", filename))
	defer func() {
		slog.Debug("ImportCSV finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("filename", filename))
	}()

	if _, err := s.repo.GetPortfolio(ctx, portfolioID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.ImportResult{}, service.ErrNotFound
		}
		return model.ImportResult{}, err
	}

	importID, err := s.repo.CreateImport(ctx, portfolioID, filename)
	if err != nil {
		return model.ImportResult{}, err
	}

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error(
				"panic recovered in ImportCSV",
				slog.String("rqID", rqID),
				slog.String("op", op),
				slog.Any("panic", rec),
				slog.String("stacktrace", string(debug.Stack())),
			)

			systemErr := model.ImportError{Type: model.ImportErrSystem, Message: fmt.Sprintf("System error: %v", rec), Row: 0}
			_ = s.repo.FailImport(context.WithoutCancel(ctx), importID, []model.ImportError{systemErr})

			result = model.ImportResult{ImportID: importID, Errors: []model.ImportError{systemErr}}
			err = nil
		}
	}()

	records, decodeErr := s.parser.Decode(content)
	if decodeErr != nil || len(records) == 0 {
		message := "Failed to parse CSV file"
		if decodeErr != nil {
			message = decodeErr.Error()
		}
		return s.failImport(ctx, importID, model.ImportError{Type: model.ImportErrParse, Message: message, Row: 0})
	}

	mapping, mappingErr := s.parser.DetectColumns(records[0])
	if mappingErr != nil {
		return s.failImport(ctx, importID, model.ImportError{Type: model.ImportErrColumn, Message: mappingErr.Error(), Row: 0})
	}

	dataRows := records[1:]
	rows := make([]model.ParsedRow, 0, len(dataRows))
	for i, cells := range dataRows {
		if len(cells) == 0 || s.parser.IsBlankRow(cells) {
			continue
		}
		// header occupies row 1, first data row is 2
		rows = append(rows, s.parser.NormalizeRow(cells, i+2, mapping))
	}

	s.validateSymbols(ctx, rows)

	validRows, errorRows := countRows(rows)

	preview := model.ImportPreview{Rows: rows, ColumnMapping: mapping, TotalErrors: errorRows}
	err = s.repo.UpdateImportPreview(ctx, importID, len(dataRows), validRows, errorRows, preview, nil)
	if err != nil {
		return model.ImportResult{}, err
	}

	return model.ImportResult{
		ImportID:      importID,
		Success:       true,
		TotalRows:     len(dataRows),
		ValidRows:     validRows,
		ErrorRows:     errorRows,
		Rows:          rows,
		ColumnMapping: mapping,
		Errors:        []model.ImportError{},
	}, nil
}

func (s *PortfolioService) failImport(ctx context.Context, importID int64, importErr model.ImportError) (model.ImportResult, error) {
	if err := s.repo.FailImport(ctx, importID, []model.ImportError{importErr}); err != nil {
		return model.ImportResult{}, err
	}
	return model.ImportResult{ImportID: importID, Errors: []model.ImportError{importErr}}, nil
}

func (s *PortfolioService) GetImportStatus(ctx context.Context, importID int64) (model.ImportJob, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.GetImportStatus"

	slog.Debug("GetImportStatus start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("importID", importID))
	defer func() {
		slog.Debug("GetImportStatus finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("importID", importID))
	}()

	job, err := s.repo.GetImport(ctx, importID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.ImportJob{}, service.ErrNotFound
		}
		return model.ImportJob{}, err
	}

	return job, nil
}

// ConfirmImport merges the staged rows of a previewed job into portfolio
// positions. Only a job still in preview can be confirmed; the guarded status
// transition makes a second confirmation lose even under a race.
func (s *PortfolioService) ConfirmImport(ctx context.Context, importID int64) (result model.ConfirmResult, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.ConfirmImport"

	slog.Debug("ConfirmImport start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("importID", importID))
	defer func() {
		slog.Debug("ConfirmImport finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("importID", importID))
	}()

	job, err := s.repo.GetImport(ctx, importID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.ConfirmResult{}, service.ErrNotFound
		}
		return model.ConfirmResult{}, err
	}

	if job.Status != model.ImportStatusPreview || job.Preview == nil {
		return model.ConfirmResult{}, service.ErrImportNotConfirmable
	}

	err = s.repo.TransitionImportStatus(ctx, importID, model.ImportStatusPreview, model.ImportStatusProcessing)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// somebody confirmed it between our read and the transition
			return model.ConfirmResult{}, service.ErrImportNotConfirmable
		}
		return model.ConfirmResult{}, err
	}

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error(
				"panic recovered in ConfirmImport",
				slog.String("rqID", rqID),
				slog.String("op", op),
				slog.Any("panic", rec),
				slog.String("stacktrace", string(debug.Stack())),
			)

			message := fmt.Sprintf("Import confirmation failed: %v", rec)
			_ = s.repo.FailImport(context.WithoutCancel(ctx), importID, []model.ImportError{{Message: message}})

			result = model.ConfirmResult{}
			err = errors.New(message)
		}
	}()

	createdPositions := 0
	mergeErrors := []model.ImportError{}

	for _, row := range job.Preview.Rows {
		if !row.Valid() {
			continue // already reported at preview time
		}

		if mergeErr := s.mergeRow(ctx, job.PortfolioID, row); mergeErr != nil {
			slog.Error(
				"row merge failed",
				slog.String("rqID", rqID),
				slog.String("op", op),
				slog.Int("rowNumber", row.RowNumber),
				slog.String("err", mergeErr.Error()),
			)
			mergeErrors = append(mergeErrors, model.ImportError{
				Row:     row.RowNumber,
				Message: fmt.Sprintf("Failed to create position: %s", mergeErr),
			})
			continue
		}

		createdPositions++
	}

	err = s.repo.CompleteImport(ctx, importID, createdPositions, len(mergeErrors), model.ImportStatusCompleted, mergeErrors)
	if err != nil {
		return model.ConfirmResult{}, err
	}

	return model.ConfirmResult{CreatedPositions: createdPositions, Errors: mergeErrors}, nil
}

// validateSymbols checks every distinct symbol against the market-data
// collaborator, one lookup per symbol no matter how many rows share it.
// A lookup outage downgrades to a warning so connectivity problems can't
// block an otherwise valid import; only a definite "not found" rejects rows.
func (s *PortfolioService) validateSymbols(ctx context.Context, rows []model.ParsedRow) {
	symbolRows := make(map[string][]int)
	symbols := make([]string, 0)

	for i, row := range rows {
		if row.Symbol == "" || !row.Valid() {
			continue
		}
		if _, ok := symbolRows[row.Symbol]; !ok {
			symbols = append(symbols, row.Symbol)
		}
		symbolRows[row.Symbol] = append(symbolRows[row.Symbol], i)
	}

	limit := s.cfg.Import.LookupConcurrency
	if limit < 1 {
		limit = 1
	}

	// plain Group, not WithContext: one failed lookup must not cancel the rest
	g := errgroup.Group{}
	g.SetLimit(limit)

	for _, symbol := range symbols {
		indexes := symbolRows[symbol]
		g.Go(func() error {
			stockInfo, err := s.lookupStockInfo(ctx, symbol)
			switch {
			case err == nil:
				for _, i := range indexes {
					rows[i].StockName = stockInfo.Name
				}
			case errors.Is(err, externalApi.ErrNotFound):
				for _, i := range indexes {
					rows[i].Errors = append(rows[i].Errors, fmt.Sprintf("Stock symbol '%s' not found", symbol))
				}
			default:
				for _, i := range indexes {
					rows[i].Warnings = append(rows[i].Warnings, fmt.Sprintf("Could not validate symbol '%s': %s", symbol, err))
				}
			}
			return nil
		})
	}

	_ = g.Wait()
}

func (s *PortfolioService) mergeRow(ctx context.Context, portfolioID int64, row model.ParsedRow) error {
	name := row.StockName
	if name == "" {
		name = row.Symbol
	}

	stock, err := s.repo.GetOrCreateStock(ctx, row.Symbol, name)
	if err != nil {
		return err
	}

	return s.mergePosition(ctx, model.Position{
		PortfolioID:   portfolioID,
		StockID:       stock.StockID,
		Quantity:      row.Quantity,
		PurchasePrice: row.PurchasePrice,
		PurchaseDate:  row.PurchaseDate,
	})
}

// mergePosition upserts a holding under the one-position-per-(portfolio,
// stock) invariant. Merging sums quantities, recalculates the cost basis as
// a weighted average and keeps the earlier acquisition date.
func (s *PortfolioService) mergePosition(ctx context.Context, incoming model.Position) error {
	existing, err := s.repo.GetPosition(ctx, incoming.PortfolioID, incoming.StockID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		err = s.repo.CreatePosition(ctx, incoming)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrAlreadyExists) {
			return err
		}

		// a concurrent import created it first, merge into that one
		existing, err = s.repo.GetPosition(ctx, incoming.PortfolioID, incoming.StockID)
		if err != nil {
			return err
		}
	}

	totalQuantity := existing.Quantity.Add(incoming.Quantity)

	averagePrice := decimal.Zero
	if totalQuantity.IsPositive() {
		totalCost := existing.Quantity.Mul(existing.PurchasePrice).Add(incoming.Quantity.Mul(incoming.PurchasePrice))
		averagePrice = totalCost.Div(totalQuantity)
	}

	purchaseDate := existing.PurchaseDate
	if incoming.PurchaseDate.Before(purchaseDate) {
		purchaseDate = incoming.PurchaseDate
	}

	return s.repo.UpdatePosition(ctx, existing.PositionID, totalQuantity, averagePrice, purchaseDate)
}

func countRows(rows []model.ParsedRow) (validRows, errorRows int) {
	for _, row := range rows {
		if row.Valid() {
			validRows++
		} else {
			errorRows++
		}
	}
	return validRows, errorRows
}
