package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/portfolio_tracker_api/internal/converter/dbConverter"
	"github.com/KotFed0t/portfolio_tracker_api/internal/model"
	"github.com/KotFed0t/portfolio_tracker_api/internal/model/dbModel"
	"github.com/KotFed0t/portfolio_tracker_api/utils"
)

func (r *Postgres) CreateImport(ctx context.Context, portfolioID int64, filename string) (importID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.CreateImport"
	query := `
		INSERT INTO portfolio_imports(portfolio_id, filename, status)
		VALUES($1, $2, $3)
		RETURNING import_id
		`

	slog.Debug("CreateImport start", slog.String("rqID", rqID), slog.String("op", op), slog.String("filename", filename))
	defer func() {
		if err != nil {
			slog.Error("CreateImport failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("CreateImport completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	err = r.db.QueryRowContext(ctx, query, portfolioID, filename, model.ImportStatusParsing).Scan(&importID)
	if err != nil {
		return 0, err
	}

	return importID, nil
}

func (r *Postgres) GetImport(ctx context.Context, importID int64) (job model.ImportJob, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetImport"
	query := `
		SELECT import_id, portfolio_id, filename, status, total_rows,
			successful_imports, failed_imports, error_log, preview_data, dt_create
		FROM portfolio_imports
		WHERE import_id = $1
		`

	slog.Debug("GetImport start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("importID", importID))
	defer func() {
		if err != nil && !errors.Is(err, ErrNotFound) {
			slog.Error("GetImport failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetImport completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	dbJob := dbModel.ImportJob{}
	err = r.db.QueryRowxContext(ctx, query, importID).StructScan(&dbJob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ImportJob{}, ErrNotFound
		}
		return model.ImportJob{}, err
	}

	return dbConverter.ConvertImportJob(dbJob)
}

// UpdateImportPreview stages the parse+validate outcome on the job and moves
// it to preview in one statement.
func (r *Postgres) UpdateImportPreview(
	ctx context.Context,
	importID int64,
	totalRows, successfulImports, failedImports int,
	preview model.ImportPreview,
	errorLog []model.ImportError,
) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.UpdateImportPreview"
	query := `
		UPDATE portfolio_imports
		SET
			status = $1,
			total_rows = $2,
			successful_imports = $3,
			failed_imports = $4,
			preview_data = $5,
			error_log = $6
		WHERE import_id = $7
		`

	slog.Debug("UpdateImportPreview start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("importID", importID))
	defer func() {
		if err != nil {
			slog.Error("UpdateImportPreview failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpdateImportPreview completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	previewJson, err := json.Marshal(preview)
	if err != nil {
		return fmt.Errorf("marshal preview_data: %w", err)
	}

	errorLogJson, err := marshalErrorLog(errorLog)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, model.ImportStatusPreview, totalRows, successfulImports, failedImports, previewJson, errorLogJson, importID)
	return err
}

// TransitionImportStatus moves a job between statuses only when it is still
// in the expected one. ErrNotFound means the job is missing or already moved
// on, which is how a second confirmation of the same job gets rejected.
func (r *Postgres) TransitionImportStatus(ctx context.Context, importID int64, from, to model.ImportStatus) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.TransitionImportStatus"
	query := `
		UPDATE portfolio_imports
		SET status = $1
		WHERE import_id = $2
		AND status = $3
		`

	slog.Debug("TransitionImportStatus start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("importID", importID), slog.String("from", string(from)), slog.String("to", string(to)))
	defer func() {
		if err != nil && !errors.Is(err, ErrNotFound) {
			slog.Error("TransitionImportStatus failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("TransitionImportStatus completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	res, err := r.db.ExecContext(ctx, query, to, importID, from)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// CompleteImport writes the confirmation outcome: final counts, terminal
// status and the merge-stage error log.
func (r *Postgres) CompleteImport(
	ctx context.Context,
	importID int64,
	successfulImports, failedImports int,
	status model.ImportStatus,
	errorLog []model.ImportError,
) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.CompleteImport"
	query := `
		UPDATE portfolio_imports
		SET
			status = $1,
			successful_imports = $2,
			failed_imports = $3,
			error_log = $4
		WHERE import_id = $5
		`

	slog.Debug("CompleteImport start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("importID", importID), slog.String("status", string(status)))
	defer func() {
		if err != nil {
			slog.Error("CompleteImport failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("CompleteImport completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	errorLogJson, err := marshalErrorLog(errorLog)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, status, successfulImports, failedImports, errorLogJson, importID)
	return err
}

// FailImport marks the job failed and stores whatever structural errors were
// collected before the pipeline aborted.
func (r *Postgres) FailImport(ctx context.Context, importID int64, errorLog []model.ImportError) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.FailImport"
	query := `
		UPDATE portfolio_imports
		SET status = $1, error_log = $2
		WHERE import_id = $3
		`

	slog.Debug("FailImport start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("importID", importID))
	defer func() {
		if err != nil {
			slog.Error("FailImport failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("FailImport completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	errorLogJson, err := marshalErrorLog(errorLog)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, model.ImportStatusFailed, errorLogJson, importID)
	return err
}

func marshalErrorLog(errorLog []model.ImportError) ([]byte, error) {
	if errorLog == nil {
		errorLog = []model.ImportError{}
	}
	errorLogJson, err := json.Marshal(errorLog)
	if err != nil {
		return nil, fmt.Errorf("marshal error_log: %w", err)
	}
	return errorLogJson, nil
}
