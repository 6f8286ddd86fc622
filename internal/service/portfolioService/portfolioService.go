package portfolioService

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/KotFed0t/portfolio_tracker_api/config"
	"github.com/KotFed0t/portfolio_tracker_api/data/repository"
	"github.com/KotFed0t/portfolio_tracker_api/internal/csvParser"
	"github.com/KotFed0t/portfolio_tracker_api/internal/externalApi"
	"github.com/KotFed0t/portfolio_tracker_api/internal/model"
	"github.com/KotFed0t/portfolio_tracker_api/internal/service"
	"github.com/KotFed0t/portfolio_tracker_api/utils"
	"github.com/shopspring/decimal"
)

type MarketApi interface {
	GetStockInfo(ctx context.Context, symbol string) (model.StockInfo, error)
	GetStocksInfo(ctx context.Context, symbols []string) (map[string]model.StockInfo, error)
}

type Cache interface {
	GetStockInfo(ctx context.Context, symbol string) (model.StockInfo, error)
	GetStocksInfo(ctx context.Context, symbols []string) (map[string]model.StockInfo, error)
	SetStockInfo(ctx context.Context, stock model.StockInfo) error
	SetStocks(ctx context.Context, stocks []model.StockInfo) error
}

type Parser interface {
	Decode(content string) ([][]string, error)
	DetectColumns(header []string) (csvParser.ColumnMapping, error)
	IsBlankRow(cells []string) bool
	NormalizeRow(cells []string, rowNumber int, mapping csvParser.ColumnMapping) model.ParsedRow
}

type ReportGenerator interface {
	Generate(ctx context.Context, details model.PortfolioDetails) (fileBytes []byte, fileExtension string, err error)
}

type CloudStorage interface {
	UploadFile(ctx context.Context, reader io.Reader, filename string) (downloadLink string, err error)
	DeleteOldFiles(ctx context.Context) error
}

type Repository interface {
	CreatePortfolio(ctx context.Context, name, description string) (portfolioID int64, err error)
	GetPortfolio(ctx context.Context, portfolioID int64) (model.Portfolio, error)
	GetPortfolios(ctx context.Context, limit, offset int) (portfolios []model.Portfolio, hasNextPage bool, err error)
	DeletePortfolio(ctx context.Context, portfolioID int64) error
	GetOrCreateStock(ctx context.Context, symbol, name string) (model.Stock, error)
	GetStockSymbols(ctx context.Context) ([]string, error)
	UpdateStocksTable(ctx context.Context, stocksInfo []model.StockInfo) error
	GetPosition(ctx context.Context, portfolioID, stockID int64) (model.Position, error)
	GetPositions(ctx context.Context, portfolioID int64) ([]model.Position, error)
	CreatePosition(ctx context.Context, position model.Position) error
	UpdatePosition(ctx context.Context, positionID int64, quantity, purchasePrice decimal.Decimal, purchaseDate time.Time) error
	CreateImport(ctx context.Context, portfolioID int64, filename string) (importID int64, err error)
	GetImport(ctx context.Context, importID int64) (model.ImportJob, error)
	UpdateImportPreview(ctx context.Context, importID int64, totalRows, successfulImports, failedImports int, preview model.ImportPreview, errorLog []model.ImportError) error
	TransitionImportStatus(ctx context.Context, importID int64, from, to model.ImportStatus) error
	CompleteImport(ctx context.Context, importID int64, successfulImports, failedImports int, status model.ImportStatus, errorLog []model.ImportError) error
	FailImport(ctx context.Context, importID int64, errorLog []model.ImportError) error
}

type PortfolioService struct {
	cfg             *config.Config
	repo            Repository
	cache           Cache
	marketApi       MarketApi
	parser          Parser
	reportGenerator ReportGenerator
	cloudStorage    CloudStorage
}

func New(
	cfg *config.Config,
	repo Repository,
	cache Cache,
	marketApi MarketApi,
	parser Parser,
	reportGenerator ReportGenerator,
	cloudStorage CloudStorage,
) *PortfolioService {
	return &PortfolioService{
		cfg:             cfg,
		repo:            repo,
		cache:           cache,
		marketApi:       marketApi,
		parser:          parser,
		reportGenerator: reportGenerator,
		cloudStorage:    cloudStorage,
	}
}

func (s *PortfolioService) CreatePortfolio(ctx context.Context, name, description string) (model.Portfolio, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.CreatePortfolio"

	slog.Debug("CreatePortfolio start", slog.String("rqID", rqID), slog.String("op", op), slog.String("name", name))
	defer func() {
		slog.Debug("CreatePortfolio finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("name", name))
	}()

	portfolioID, err := s.repo.CreatePortfolio(ctx, name, description)
	if err != nil {
		slog.Error("got error from repo.CreatePortfolio", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Portfolio{}, err
	}

	return s.repo.GetPortfolio(ctx, portfolioID)
}

func (s *PortfolioService) GetPortfolios(ctx context.Context, page int) (portfolios []model.Portfolio, hasNextPage bool, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.GetPortfolios"

	slog.Debug("GetPortfolios start", slog.String("rqID", rqID), slog.String("op", op), slog.Int("page", page))
	defer func() {
		slog.Debug("GetPortfolios finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int("page", page))
	}()

	if page < 1 {
		page = 1
	}

	limit := s.cfg.PortfoliosPerPage
	offset := (page - 1) * limit

	portfolios, hasNextPage, err = s.repo.GetPortfolios(ctx, limit, offset)
	if err != nil {
		slog.Error("got error from repo.GetPortfolios", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, false, err
	}

	return portfolios, hasNextPage, nil
}

func (s *PortfolioService) GetPortfolioDetails(ctx context.Context, portfolioID int64) (details model.PortfolioDetails, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.GetPortfolioDetails"

	slog.Debug("GetPortfolioDetails start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("portfolioID", portfolioID))
	defer func() {
		slog.Debug("GetPortfolioDetails finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("portfolioID", portfolioID))
	}()

	portfolio, err := s.repo.GetPortfolio(ctx, portfolioID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.PortfolioDetails{}, service.ErrNotFound
		}
		return model.PortfolioDetails{}, err
	}

	positions, err := s.repo.GetPositions(ctx, portfolioID)
	if err != nil {
		return model.PortfolioDetails{}, err
	}

	symbols := make([]string, 0, len(positions))
	for _, position := range positions {
		symbols = append(symbols, position.Symbol)
	}

	stocksInfoMap, err := s.cache.GetStocksInfo(ctx, symbols)
	if err != nil {
		slog.Warn("can't get stocks info from cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		stocksInfoMap = map[string]model.StockInfo{}
	}

	details = model.PortfolioDetails{Portfolio: portfolio, Positions: positions}
	for i := range details.Positions {
		details.TotalCost = details.TotalCost.Add(details.Positions[i].TotalCost())

		stockInfo, ok := stocksInfoMap[details.Positions[i].Symbol]
		if !ok {
			continue
		}

		details.Positions[i].CurrentPrice = stockInfo.Price
		details.Positions[i].CurrentValue = stockInfo.Price.Mul(details.Positions[i].Quantity)
		details.TotalValue = details.TotalValue.Add(details.Positions[i].CurrentValue)
	}

	return details, nil
}

func (s *PortfolioService) DeletePortfolio(ctx context.Context, portfolioID int64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.DeletePortfolio"

	slog.Debug("DeletePortfolio start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("portfolioID", portfolioID))
	defer func() {
		slog.Debug("DeletePortfolio finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("portfolioID", portfolioID))
	}()

	// positions and import jobs go with it via FK cascade
	err := s.repo.DeletePortfolio(ctx, portfolioID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return service.ErrNotFound
		}
		slog.Error("got error from repo.DeletePortfolio", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return nil
}

// AddPosition adds a single holding by hand. It goes through the same
// weighted-average merge as the CSV importer so a repeated symbol never
// produces a duplicate position.
func (s *PortfolioService) AddPosition(
	ctx context.Context,
	portfolioID int64,
	symbol string,
	quantity, purchasePrice decimal.Decimal,
	purchaseDate time.Time,
) (model.Position, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.AddPosition"

	slog.Debug("AddPosition start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	defer func() {
		slog.Debug("AddPosition finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	}()

	if _, err := s.repo.GetPortfolio(ctx, portfolioID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Position{}, service.ErrNotFound
		}
		return model.Position{}, err
	}

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	name := symbol

	stockInfo, err := s.lookupStockInfo(ctx, symbol)
	switch {
	case err == nil:
		name = stockInfo.Name
	case errors.Is(err, externalApi.ErrNotFound):
		return model.Position{}, service.ErrNotFound
	default:
		// fail open on lookup outage, symbol doubles as the display name
		slog.Warn("can't validate symbol", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.String("err", err.Error()))
	}

	stock, err := s.repo.GetOrCreateStock(ctx, symbol, name)
	if err != nil {
		return model.Position{}, err
	}

	err = s.mergePosition(ctx, model.Position{
		PortfolioID:   portfolioID,
		StockID:       stock.StockID,
		Quantity:      quantity,
		PurchasePrice: purchasePrice,
		PurchaseDate:  purchaseDate,
	})
	if err != nil {
		return model.Position{}, err
	}

	return s.repo.GetPosition(ctx, portfolioID, stock.StockID)
}

// GetPortfolioReport builds an xlsx snapshot of the portfolio positions,
// uploads it to cloud storage and returns the download link.
func (s *PortfolioService) GetPortfolioReport(ctx context.Context, portfolioID int64) (downloadLink string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.GetPortfolioReport"

	slog.Debug("GetPortfolioReport start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("portfolioID", portfolioID))
	defer func() {
		slog.Debug("GetPortfolioReport finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("portfolioID", portfolioID))
	}()

	details, err := s.GetPortfolioDetails(ctx, portfolioID)
	if err != nil {
		return "", err
	}

	fileBytes, fileExtension, err := s.reportGenerator.Generate(ctx, details)
	if err != nil {
		slog.Error("got error from reportGenerator.Generate", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	filename := fmt.Sprintf("portfolio_%d_positions_%s%s", portfolioID, time.Now().Format("2006-01-02"), fileExtension)

	downloadLink, err = s.cloudStorage.UploadFile(ctx, bytes.NewReader(fileBytes), filename)
	if err != nil {
		slog.Error("got error from cloudStorage.UploadFile", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	return downloadLink, nil
}

// RefreshStocks re-fetches market data for every known symbol, refills the
// lookup cache and refreshes stored display names. Runs on a schedule.
func (s *PortfolioService) RefreshStocks(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.RefreshStocks"

	symbols, err := s.repo.GetStockSymbols(ctx)
	if err != nil {
		return err
	}

	if len(symbols) == 0 {
		slog.Debug("no stocks to refresh", slog.String("rqID", rqID), slog.String("op", op))
		return nil
	}

	stocksInfoMap, err := s.marketApi.GetStocksInfo(ctx, symbols)
	if err != nil {
		slog.Error("got error from marketApi.GetStocksInfo", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	stocksInfo := make([]model.StockInfo, 0, len(stocksInfoMap))
	for _, stockInfo := range stocksInfoMap {
		stocksInfo = append(stocksInfo, stockInfo)
	}

	if err := s.cache.SetStocks(ctx, stocksInfo); err != nil {
		slog.Error("got error from cache.SetStocks", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	return s.repo.UpdateStocksTable(ctx, stocksInfo)
}

// CleanupStorage drops expired export files from cloud storage.
func (s *PortfolioService) CleanupStorage(ctx context.Context) error {
	return s.cloudStorage.DeleteOldFiles(ctx)
}

// lookupStockInfo resolves one symbol through the cache with a fallback to
// the market-data API. Each API call is bounded by the client timeout.
func (s *PortfolioService) lookupStockInfo(ctx context.Context, symbol string) (model.StockInfo, error) {
	stockInfo, err := s.cache.GetStockInfo(ctx, symbol)
	if err == nil {
		return stockInfo, nil
	}

	stockInfo, err = s.marketApi.GetStockInfo(ctx, symbol)
	if err != nil {
		return model.StockInfo{}, err
	}

	go s.cache.SetStockInfo(context.WithoutCancel(ctx), stockInfo)

	return stockInfo, nil
}
