package portfolioService

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/KotFed0t/portfolio_tracker_api/config"
	"github.com/KotFed0t/portfolio_tracker_api/data/repository"
	"github.com/KotFed0t/portfolio_tracker_api/internal/csvParser"
	"github.com/KotFed0t/portfolio_tracker_api/internal/externalApi"
	"github.com/KotFed0t/portfolio_tracker_api/internal/model"
	"github.com/shopspring/decimal"
)

func testConfig() *config.Config {
	return &config.Config{
		Import: config.Import{
			FileLimitInBytes:  10 << 20,
			PreviewRowsLimit:  10,
			LookupConcurrency: 4,
		},
		PortfoliosPerPage: 5,
	}
}

func newTestService(repo *fakeRepo, marketApi *fakeMarketApi, cache *fakeCache) *PortfolioService {
	return New(testConfig(), repo, cache, marketApi, csvParser.New(), &fakeReportGenerator{}, &fakeCloudStorage{})
}

type positionKey struct {
	portfolioID int64
	stockID     int64
}

type fakeRepo struct {
	mu sync.Mutex

	portfolios map[int64]model.Portfolio
	stocks     map[string]model.Stock
	positions  map[positionKey]model.Position
	imports    map[int64]model.ImportJob

	nextStockID    int64
	nextPositionID int64
	nextImportID   int64

	createPositionErr    error
	skipFirstGetPosition bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		portfolios: map[int64]model.Portfolio{},
		stocks:     map[string]model.Stock{},
		positions:  map[positionKey]model.Position{},
		imports:    map[int64]model.ImportJob{},
	}
}

func (r *fakeRepo) addPortfolio(portfolioID int64, name string) {
	r.portfolios[portfolioID] = model.Portfolio{PortfolioID: portfolioID, Name: name, CreatedAt: time.Now()}
}

func (r *fakeRepo) CreatePortfolio(_ context.Context, name, description string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	portfolioID := int64(len(r.portfolios) + 1)
	r.portfolios[portfolioID] = model.Portfolio{PortfolioID: portfolioID, Name: name, Description: description, CreatedAt: time.Now()}
	return portfolioID, nil
}

func (r *fakeRepo) GetPortfolio(_ context.Context, portfolioID int64) (model.Portfolio, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	portfolio, ok := r.portfolios[portfolioID]
	if !ok {
		return model.Portfolio{}, repository.ErrNotFound
	}
	return portfolio, nil
}

func (r *fakeRepo) GetPortfolios(_ context.Context, limit, offset int) ([]model.Portfolio, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	portfolios := make([]model.Portfolio, 0, len(r.portfolios))
	for _, portfolio := range r.portfolios {
		portfolios = append(portfolios, portfolio)
	}
	return portfolios, false, nil
}

func (r *fakeRepo) DeletePortfolio(_ context.Context, portfolioID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.portfolios[portfolioID]; !ok {
		return repository.ErrNotFound
	}
	delete(r.portfolios, portfolioID)
	return nil
}

func (r *fakeRepo) GetOrCreateStock(_ context.Context, symbol, name string) (model.Stock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if stock, ok := r.stocks[symbol]; ok {
		return stock, nil
	}

	r.nextStockID++
	stock := model.Stock{StockID: r.nextStockID, Symbol: symbol, Name: name}
	r.stocks[symbol] = stock
	return stock, nil
}

func (r *fakeRepo) GetStockSymbols(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	symbols := make([]string, 0, len(r.stocks))
	for symbol := range r.stocks {
		symbols = append(symbols, symbol)
	}
	return symbols, nil
}

func (r *fakeRepo) UpdateStocksTable(_ context.Context, stocksInfo []model.StockInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, stockInfo := range stocksInfo {
		stock, ok := r.stocks[stockInfo.Symbol]
		if !ok {
			continue
		}
		stock.Name = stockInfo.Name
		stock.Exchange = stockInfo.Exchange
		r.stocks[stockInfo.Symbol] = stock
	}
	return nil
}

func (r *fakeRepo) GetPosition(_ context.Context, portfolioID, stockID int64) (model.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.skipFirstGetPosition {
		r.skipFirstGetPosition = false
		return model.Position{}, repository.ErrNotFound
	}

	position, ok := r.positions[positionKey{portfolioID, stockID}]
	if !ok {
		return model.Position{}, repository.ErrNotFound
	}
	return r.withStock(position), nil
}

func (r *fakeRepo) GetPositions(_ context.Context, portfolioID int64) ([]model.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	positions := make([]model.Position, 0)
	for key, position := range r.positions {
		if key.portfolioID == portfolioID {
			positions = append(positions, r.withStock(position))
		}
	}
	return positions, nil
}

func (r *fakeRepo) CreatePosition(_ context.Context, position model.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createPositionErr != nil {
		return r.createPositionErr
	}

	key := positionKey{position.PortfolioID, position.StockID}
	if _, ok := r.positions[key]; ok {
		return repository.ErrAlreadyExists
	}

	r.nextPositionID++
	position.PositionID = r.nextPositionID
	r.positions[key] = position
	return nil
}

func (r *fakeRepo) UpdatePosition(_ context.Context, positionID int64, quantity, purchasePrice decimal.Decimal, purchaseDate time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, position := range r.positions {
		if position.PositionID == positionID {
			position.Quantity = quantity
			position.PurchasePrice = purchasePrice
			position.PurchaseDate = purchaseDate
			r.positions[key] = position
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeRepo) CreateImport(_ context.Context, portfolioID int64, filename string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextImportID++
	r.imports[r.nextImportID] = model.ImportJob{
		ImportID:    r.nextImportID,
		PortfolioID: portfolioID,
		Filename:    filename,
		Status:      model.ImportStatusParsing,
		CreatedAt:   time.Now(),
	}
	return r.nextImportID, nil
}

func (r *fakeRepo) GetImport(_ context.Context, importID int64) (model.ImportJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.imports[importID]
	if !ok {
		return model.ImportJob{}, repository.ErrNotFound
	}
	return job, nil
}

func (r *fakeRepo) UpdateImportPreview(_ context.Context, importID int64, totalRows, successfulImports, failedImports int, preview model.ImportPreview, errorLog []model.ImportError) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job := r.imports[importID]
	job.Status = model.ImportStatusPreview
	job.TotalRows = totalRows
	job.SuccessfulImports = successfulImports
	job.FailedImports = failedImports
	job.Preview = &preview
	job.ErrorLog = errorLog
	r.imports[importID] = job
	return nil
}

func (r *fakeRepo) TransitionImportStatus(_ context.Context, importID int64, from, to model.ImportStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.imports[importID]
	if !ok || job.Status != from {
		return repository.ErrNotFound
	}
	job.Status = to
	r.imports[importID] = job
	return nil
}

func (r *fakeRepo) CompleteImport(_ context.Context, importID int64, successfulImports, failedImports int, status model.ImportStatus, errorLog []model.ImportError) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job := r.imports[importID]
	job.Status = status
	job.SuccessfulImports = successfulImports
	job.FailedImports = failedImports
	job.ErrorLog = errorLog
	r.imports[importID] = job
	return nil
}

func (r *fakeRepo) FailImport(_ context.Context, importID int64, errorLog []model.ImportError) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job := r.imports[importID]
	job.Status = model.ImportStatusFailed
	job.ErrorLog = errorLog
	r.imports[importID] = job
	return nil
}

// withStock mirrors the repository join that fills symbol and display name.
func (r *fakeRepo) withStock(position model.Position) model.Position {
	for _, stock := range r.stocks {
		if stock.StockID == position.StockID {
			position.Symbol = stock.Symbol
			position.StockName = stock.Name
			break
		}
	}
	return position
}

type fakeMarketApi struct {
	mu sync.Mutex

	stocks   map[string]model.StockInfo
	failWith map[string]error
	calls    map[string]int
}

func newFakeMarketApi(stocks ...model.StockInfo) *fakeMarketApi {
	api := &fakeMarketApi{
		stocks:   map[string]model.StockInfo{},
		failWith: map[string]error{},
		calls:    map[string]int{},
	}
	for _, stock := range stocks {
		api.stocks[stock.Symbol] = stock
	}
	return api
}

func (a *fakeMarketApi) GetStockInfo(_ context.Context, symbol string) (model.StockInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls[symbol]++

	if err, ok := a.failWith[symbol]; ok {
		return model.StockInfo{}, err
	}
	if stockInfo, ok := a.stocks[symbol]; ok {
		return stockInfo, nil
	}
	return model.StockInfo{}, externalApi.ErrNotFound
}

func (a *fakeMarketApi) GetStocksInfo(_ context.Context, symbols []string) (map[string]model.StockInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	res := map[string]model.StockInfo{}
	for _, symbol := range symbols {
		if stockInfo, ok := a.stocks[symbol]; ok {
			res[symbol] = stockInfo
		}
	}
	return res, nil
}

func (a *fakeMarketApi) callCount(symbol string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[symbol]
}

type fakeCache struct {
	mu     sync.Mutex
	stocks map[string]model.StockInfo
}

func newFakeCache() *fakeCache {
	return &fakeCache{stocks: map[string]model.StockInfo{}}
}

func (c *fakeCache) GetStockInfo(_ context.Context, symbol string) (model.StockInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if stockInfo, ok := c.stocks[symbol]; ok {
		return stockInfo, nil
	}
	return model.StockInfo{}, errors.New("cache miss")
}

func (c *fakeCache) GetStocksInfo(_ context.Context, symbols []string) (map[string]model.StockInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := map[string]model.StockInfo{}
	for _, symbol := range symbols {
		if stockInfo, ok := c.stocks[symbol]; ok {
			res[symbol] = stockInfo
		}
	}
	return res, nil
}

func (c *fakeCache) SetStockInfo(_ context.Context, stock model.StockInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stocks[stock.Symbol] = stock
	return nil
}

func (c *fakeCache) SetStocks(_ context.Context, stocks []model.StockInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, stock := range stocks {
		c.stocks[stock.Symbol] = stock
	}
	return nil
}

type fakeReportGenerator struct{}

func (g *fakeReportGenerator) Generate(_ context.Context, _ model.PortfolioDetails) ([]byte, string, error) {
	return []byte("report"), ".xlsx", nil
}

type fakeCloudStorage struct{}

func (s *fakeCloudStorage) UploadFile(_ context.Context, _ io.Reader, filename string) (string, error) {
	return "https://storage.example/" + filename, nil
}

func (s *fakeCloudStorage) DeleteOldFiles(_ context.Context) error {
	return nil
}
