package portfolioService

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KotFed0t/portfolio_tracker_api/internal/model"
	"github.com/KotFed0t/portfolio_tracker_api/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddPositionMergesRepeatedSymbol(t *testing.T) {
	repo := newFakeRepo()
	repo.addPortfolio(1, "main")
	api := newFakeMarketApi(appleStock())
	s := newTestService(repo, api, newFakeCache())

	ctx := context.Background()

	first, err := s.AddPosition(ctx, 1, "aapl",
		decimal.RequireFromString("10"), decimal.RequireFromString("100"),
		time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "AAPL", first.Symbol)
	assert.Equal(t, "Apple Inc.", first.StockName)

	second, err := s.AddPosition(ctx, 1, "AAPL",
		decimal.RequireFromString("10"), decimal.RequireFromString("300"),
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.True(t, second.Quantity.Equal(decimal.RequireFromString("20")), "got %s", second.Quantity)
	assert.True(t, second.PurchasePrice.Equal(decimal.RequireFromString("200")), "got %s", second.PurchasePrice)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), second.PurchaseDate)

	positions, err := repo.GetPositions(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, positions, 1)
}

func TestAddPositionUnknownSymbol(t *testing.T) {
	repo := newFakeRepo()
	repo.addPortfolio(1, "main")
	s := newTestService(repo, newFakeMarketApi(), newFakeCache())

	_, err := s.AddPosition(context.Background(), 1, "FAKE",
		decimal.RequireFromString("1"), decimal.RequireFromString("1"), time.Now())
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestAddPositionLookupOutageFallsBackToSymbol(t *testing.T) {
	repo := newFakeRepo()
	repo.addPortfolio(1, "main")
	api := newFakeMarketApi()
	api.failWith["AAPL"] = errors.New("connection timeout")
	s := newTestService(repo, api, newFakeCache())

	position, err := s.AddPosition(context.Background(), 1, "AAPL",
		decimal.RequireFromString("5"), decimal.RequireFromString("100"), time.Now())
	require.NoError(t, err)

	assert.Equal(t, "AAPL", position.Symbol)
	assert.Equal(t, "AAPL", position.StockName)
}

func TestAddPositionPortfolioNotFound(t *testing.T) {
	s := newTestService(newFakeRepo(), newFakeMarketApi(), newFakeCache())

	_, err := s.AddPosition(context.Background(), 42, "AAPL",
		decimal.RequireFromString("1"), decimal.RequireFromString("1"), time.Now())
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestGetPortfolioDetailsTotals(t *testing.T) {
	repo := newFakeRepo()
	repo.addPortfolio(1, "main")
	api := newFakeMarketApi(appleStock(), microsoftStock())
	cache := newFakeCache()
	require.NoError(t, cache.SetStocks(context.Background(), []model.StockInfo{appleStock(), microsoftStock()}))
	s := newTestService(repo, api, cache)

	ctx := context.Background()

	_, err := s.AddPosition(ctx, 1, "AAPL",
		decimal.RequireFromString("10"), decimal.RequireFromString("100"),
		time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	_, err = s.AddPosition(ctx, 1, "MSFT",
		decimal.RequireFromString("2"), decimal.RequireFromString("300"),
		time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	details, err := s.GetPortfolioDetails(ctx, 1)
	require.NoError(t, err)

	require.Len(t, details.Positions, 2)
	// cost: 10*100 + 2*300, value at cached prices: 10*190 + 2*410
	assert.True(t, details.TotalCost.Equal(decimal.RequireFromString("1600")), "got %s", details.TotalCost)
	assert.True(t, details.TotalValue.Equal(decimal.RequireFromString("2720")), "got %s", details.TotalValue)
}

func TestGetPortfolioDetailsNotFound(t *testing.T) {
	s := newTestService(newFakeRepo(), newFakeMarketApi(), newFakeCache())

	_, err := s.GetPortfolioDetails(context.Background(), 42)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestGetPortfolioReport(t *testing.T) {
	repo := newFakeRepo()
	repo.addPortfolio(1, "main")
	s := newTestService(repo, newFakeMarketApi(appleStock()), newFakeCache())

	downloadLink, err := s.GetPortfolioReport(context.Background(), 1)
	require.NoError(t, err)
	assert.Contains(t, downloadLink, "https://storage.example/portfolio_1_positions_")
	assert.Contains(t, downloadLink, ".xlsx")
}

func TestRefreshStocks(t *testing.T) {
	repo := newFakeRepo()
	api := newFakeMarketApi(appleStock())
	cache := newFakeCache()
	s := newTestService(repo, api, cache)

	ctx := context.Background()

	_, err := repo.GetOrCreateStock(ctx, "AAPL", "AAPL")
	require.NoError(t, err)

	require.NoError(t, s.RefreshStocks(ctx))

	// stored display name refreshed from market data
	stock, err := repo.GetOrCreateStock(ctx, "AAPL", "ignored")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", stock.Name)

	// and the lookup cache is warm now
	cached, err := cache.GetStockInfo(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", cached.Name)
}
