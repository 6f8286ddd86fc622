package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/KotFed0t/portfolio_tracker_api/config"
	"github.com/KotFed0t/portfolio_tracker_api/internal/model"
	"github.com/KotFed0t/portfolio_tracker_api/internal/service"
	"github.com/KotFed0t/portfolio_tracker_api/utils"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

const internalErrMsg = "internal server error"

type PortfolioService interface {
	CreatePortfolio(ctx context.Context, name, description string) (model.Portfolio, error)
	GetPortfolios(ctx context.Context, page int) (portfolios []model.Portfolio, hasNextPage bool, err error)
	GetPortfolioDetails(ctx context.Context, portfolioID int64) (model.PortfolioDetails, error)
	DeletePortfolio(ctx context.Context, portfolioID int64) error
	AddPosition(ctx context.Context, portfolioID int64, symbol string, quantity, purchasePrice decimal.Decimal, purchaseDate time.Time) (model.Position, error)
	GetPortfolioReport(ctx context.Context, portfolioID int64) (downloadLink string, err error)
	ImportCSV(ctx context.Context, portfolioID int64, filename, content string) (model.ImportResult, error)
	GetImportStatus(ctx context.Context, importID int64) (model.ImportJob, error)
	ConfirmImport(ctx context.Context, importID int64) (model.ConfirmResult, error)
}

type Controller struct {
	cfg              *config.Config
	portfolioService PortfolioService
}

func NewController(cfg *config.Config, portfolioService PortfolioService) *Controller {
	return &Controller{
		cfg:              cfg,
		portfolioService: portfolioService,
	}
}

type createPortfolioRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type addPositionRequest struct {
	Symbol        string          `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	PurchaseDate  string          `json:"purchase_date"`
}

type portfolioResponse struct {
	PortfolioID int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

type positionResponse struct {
	PositionID    int64           `json:"id"`
	Symbol        string          `json:"symbol"`
	StockName     string          `json:"stock_name"`
	Quantity      decimal.Decimal `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	PurchaseDate  string          `json:"purchase_date"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	CurrentValue  decimal.Decimal `json:"current_value"`
}

type importResponse struct {
	ImportID      int64               `json:"import_id"`
	Success       bool                `json:"success"`
	TotalRows     int                 `json:"total_rows"`
	ValidRows     int                 `json:"valid_rows"`
	ErrorRows     int                 `json:"error_rows"`
	SampleRows    []model.ParsedRow   `json:"sample_rows"`
	ColumnMapping map[string]int      `json:"column_mapping"`
	Errors        []model.ImportError `json:"errors"`
}

type importStatusResponse struct {
	ImportID          int64               `json:"import_id"`
	Status            string              `json:"status"`
	Filename          string              `json:"filename"`
	TotalRows         int                 `json:"total_rows"`
	SuccessfulImports int                 `json:"successful_imports"`
	FailedImports     int                 `json:"failed_imports"`
	SampleRows        []model.ParsedRow   `json:"sample_rows"`
	ColumnMapping     map[string]int      `json:"column_mapping"`
	Errors            []model.ImportError `json:"errors"`
}

func (ctrl *Controller) CreatePortfolio(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rqID := utils.GetRequestIDFromCtx(ctx)

	req := createPortfolioRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	portfolio, err := ctrl.portfolioService.CreatePortfolio(ctx, strings.TrimSpace(req.Name), req.Description)
	if err != nil {
		slog.Error("got error from portfolioService.CreatePortfolio", slog.String("rqID", rqID), slog.String("err", err.Error()))
		writeError(w, http.StatusInternalServerError, internalErrMsg)
		return
	}

	writeJSON(w, http.StatusCreated, convertPortfolio(portfolio))
}

func (ctrl *Controller) GetPortfolios(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rqID := utils.GetRequestIDFromCtx(ctx)

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	portfolios, hasNextPage, err := ctrl.portfolioService.GetPortfolios(ctx, page)
	if err != nil {
		slog.Error("got error from portfolioService.GetPortfolios", slog.String("rqID", rqID), slog.String("err", err.Error()))
		writeError(w, http.StatusInternalServerError, internalErrMsg)
		return
	}

	res := make([]portfolioResponse, 0, len(portfolios))
	for _, portfolio := range portfolios {
		res = append(res, convertPortfolio(portfolio))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"portfolios":    res,
		"page":          page,
		"has_next_page": hasNextPage,
	})
}

func (ctrl *Controller) GetPortfolioDetails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rqID := utils.GetRequestIDFromCtx(ctx)

	portfolioID, ok := pathID(w, r, "portfolioID")
	if !ok {
		return
	}

	details, err := ctrl.portfolioService.GetPortfolioDetails(ctx, portfolioID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			writeError(w, http.StatusNotFound, "portfolio not found")
			return
		}
		slog.Error("got error from portfolioService.GetPortfolioDetails", slog.String("rqID", rqID), slog.String("err", err.Error()))
		writeError(w, http.StatusInternalServerError, internalErrMsg)
		return
	}

	positions := make([]positionResponse, 0, len(details.Positions))
	for _, position := range details.Positions {
		positions = append(positions, convertPosition(position))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"portfolio":   convertPortfolio(details.Portfolio),
		"positions":   positions,
		"total_cost":  details.TotalCost,
		"total_value": details.TotalValue,
	})
}

func (ctrl *Controller) DeletePortfolio(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rqID := utils.GetRequestIDFromCtx(ctx)

	portfolioID, ok := pathID(w, r, "portfolioID")
	if !ok {
		return
	}

	err := ctrl.portfolioService.DeletePortfolio(ctx, portfolioID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			writeError(w, http.StatusNotFound, "portfolio not found")
			return
		}
		slog.Error("got error from portfolioService.DeletePortfolio", slog.String("rqID", rqID), slog.String("err", err.Error()))
		writeError(w, http.StatusInternalServerError, internalErrMsg)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (ctrl *Controller) AddPosition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rqID := utils.GetRequestIDFromCtx(ctx)

	portfolioID, ok := pathID(w, r, "portfolioID")
	if !ok {
		return
	}

	req := addPositionRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Symbol) == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	if req.Quantity.IsNegative() || req.PurchasePrice.IsNegative() {
		writeError(w, http.StatusBadRequest, "quantity and purchase_price cannot be negative")
		return
	}

	purchaseDate := time.Now().UTC()
	if req.PurchaseDate != "" {
		parsed, err := time.Parse("2006-01-02", req.PurchaseDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "purchase_date must be YYYY-MM-DD")
			return
		}
		purchaseDate = parsed
	}

	position, err := ctrl.portfolioService.AddPosition(ctx, portfolioID, req.Symbol, req.Quantity, req.PurchasePrice, purchaseDate)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			writeError(w, http.StatusNotFound, "portfolio or symbol not found")
			return
		}
		slog.Error("got error from portfolioService.AddPosition", slog.String("rqID", rqID), slog.String("err", err.Error()))
		writeError(w, http.StatusInternalServerError, internalErrMsg)
		return
	}

	writeJSON(w, http.StatusCreated, convertPosition(position))
}

func (ctrl *Controller) ExportPortfolio(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rqID := utils.GetRequestIDFromCtx(ctx)

	portfolioID, ok := pathID(w, r, "portfolioID")
	if !ok {
		return
	}

	downloadLink, err := ctrl.portfolioService.GetPortfolioReport(ctx, portfolioID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			writeError(w, http.StatusNotFound, "portfolio not found")
			return
		}
		slog.Error("got error from portfolioService.GetPortfolioReport", slog.String("rqID", rqID), slog.String("err", err.Error()))
		writeError(w, http.StatusInternalServerError, internalErrMsg)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"download_link": downloadLink})
}

// ImportCSV receives the multipart upload and hands the raw content to the
// import pipeline. File constraints (.csv, size cap) are enforced here, the
// pipeline itself never sees the transport.
func (ctrl *Controller) ImportCSV(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rqID := utils.GetRequestIDFromCtx(ctx)

	portfolioID, ok := pathID(w, r, "portfolioID")
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(ctrl.cfg.Import.FileLimitInBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("csv_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "csv_file is required")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		writeError(w, http.StatusBadRequest, "file must have a .csv extension")
		return
	}

	if header.Size > ctrl.cfg.Import.FileLimitInBytes {
		writeError(w, http.StatusBadRequest, "file is too large")
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		slog.Error("can't read uploaded file", slog.String("rqID", rqID), slog.String("err", err.Error()))
		writeError(w, http.StatusInternalServerError, internalErrMsg)
		return
	}

	result, err := ctrl.portfolioService.ImportCSV(ctx, portfolioID, header.Filename, string(content))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			writeError(w, http.StatusNotFound, "portfolio not found")
			return
		}
		slog.Error("got error from portfolioService.ImportCSV", slog.String("rqID", rqID), slog.String("err", err.Error()))
		writeError(w, http.StatusInternalServerError, internalErrMsg)
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadRequest
	}

	writeJSON(w, status, importResponse{
		ImportID:      result.ImportID,
		Success:       result.Success,
		TotalRows:     result.TotalRows,
		ValidRows:     result.ValidRows,
		ErrorRows:     result.ErrorRows,
		SampleRows:    sampleRows(result.Rows, ctrl.cfg.Import.PreviewRowsLimit),
		ColumnMapping: result.ColumnMapping,
		Errors:        result.Errors,
	})
}

func (ctrl *Controller) GetImportStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rqID := utils.GetRequestIDFromCtx(ctx)

	importID, ok := pathID(w, r, "importID")
	if !ok {
		return
	}

	job, err := ctrl.portfolioService.GetImportStatus(ctx, importID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			writeError(w, http.StatusNotFound, "import not found")
			return
		}
		slog.Error("got error from portfolioService.GetImportStatus", slog.String("rqID", rqID), slog.String("err", err.Error()))
		writeError(w, http.StatusInternalServerError, internalErrMsg)
		return
	}

	res := importStatusResponse{
		ImportID:          job.ImportID,
		Status:            string(job.Status),
		Filename:          job.Filename,
		TotalRows:         job.TotalRows,
		SuccessfulImports: job.SuccessfulImports,
		FailedImports:     job.FailedImports,
		Errors:            job.ErrorLog,
	}
	if job.Preview != nil {
		res.SampleRows = sampleRows(job.Preview.Rows, ctrl.cfg.Import.PreviewRowsLimit)
		res.ColumnMapping = job.Preview.ColumnMapping
	}

	writeJSON(w, http.StatusOK, res)
}

func (ctrl *Controller) ConfirmImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rqID := utils.GetRequestIDFromCtx(ctx)

	importID, ok := pathID(w, r, "importID")
	if !ok {
		return
	}

	result, err := ctrl.portfolioService.ConfirmImport(ctx, importID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			writeError(w, http.StatusNotFound, "import not found")
		case errors.Is(err, service.ErrImportNotConfirmable):
			writeError(w, http.StatusConflict, "import is not awaiting confirmation")
		default:
			slog.Error("got error from portfolioService.ConfirmImport", slog.String("rqID", rqID), slog.String("err", err.Error()))
			writeError(w, http.StatusInternalServerError, internalErrMsg)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"created_positions": result.CreatedPositions,
		"errors":            result.Errors,
	})
}

func convertPortfolio(portfolio model.Portfolio) portfolioResponse {
	return portfolioResponse{
		PortfolioID: portfolio.PortfolioID,
		Name:        portfolio.Name,
		Description: portfolio.Description,
		CreatedAt:   portfolio.CreatedAt.Format(time.RFC3339),
	}
}

func convertPosition(position model.Position) positionResponse {
	return positionResponse{
		PositionID:    position.PositionID,
		Symbol:        position.Symbol,
		StockName:     position.StockName,
		Quantity:      position.Quantity,
		PurchasePrice: position.PurchasePrice,
		PurchaseDate:  position.PurchaseDate.Format("2006-01-02"),
		TotalCost:     position.TotalCost(),
		CurrentPrice:  position.CurrentPrice,
		CurrentValue:  position.CurrentValue,
	}
}

func sampleRows(rows []model.ParsedRow, limit int) []model.ParsedRow {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("can't encode response", slog.String("err", err.Error()))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
