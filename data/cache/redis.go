package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/KotFed0t/portfolio_tracker_api/config"
	"github.com/KotFed0t/portfolio_tracker_api/internal/model"
	"github.com/KotFed0t/portfolio_tracker_api/utils"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	redis *redis.Client
	cfg   *config.Config
}

func NewRedisCache(redisClient *redis.Client, cfg *config.Config) *RedisCache {
	return &RedisCache{redis: redisClient, cfg: cfg}
}

func (r *RedisCache) SetStocks(ctx context.Context, stocks []model.StockInfo) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("start SetStocks", slog.String("rqID", rqID))

	pipe := r.redis.Pipeline()
	for _, stock := range stocks {
		stockJson, err := json.Marshal(stock)
		if err != nil {
			slog.Error(
				"can't marshall stock in SetStocks",
				slog.String("rqID", rqID),
				slog.String("err", err.Error()),
				slog.Any("stock", stock),
			)
			return errors.New("can't marshall stock")
		}

		_, err = pipe.Set(ctx, stock.Symbol, stockJson, r.cfg.Cache.StocksExpiration).Result()
		if err != nil {
			slog.Error(
				"failed on pipe.Set",
				slog.String("rqID", rqID),
				slog.String("err", err.Error()),
				slog.Any("stock", stock),
			)
			return err
		}
	}

	_, err := pipe.Exec(ctx)
	if err != nil {
		slog.Error("failed on pipe.Exec", slog.String("rqID", rqID), slog.String("err", err.Error()))
	}

	slog.Debug("SetStocks completed", slog.String("rqID", rqID))

	return nil
}

func (r *RedisCache) SetStockInfo(ctx context.Context, stock model.StockInfo) error {
	return r.SetStocks(ctx, []model.StockInfo{stock})
}

func (r *RedisCache) GetStockInfo(ctx context.Context, symbol string) (model.StockInfo, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("GetStockInfo start", slog.String("rqID", rqID))

	res, err := r.redis.Get(ctx, symbol).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Error("failed on redis.Get", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.String("key", symbol))
		}
		return model.StockInfo{}, err
	}

	stockInfo := model.StockInfo{}
	err = json.Unmarshal([]byte(res), &stockInfo)
	if err != nil {
		slog.Error(
			"can't unmarshall stock in GetStockInfo",
			slog.String("rqID", rqID),
			slog.String("err", err.Error()),
			slog.String("resultFromRedis", res),
		)
		return model.StockInfo{}, errors.New("can't unmarshall stock")
	}

	slog.Debug("GetStockInfo finished", slog.String("rqID", rqID))

	return stockInfo, nil
}

// GetStocksInfo returns whatever subset of the requested symbols is cached.
func (r *RedisCache) GetStocksInfo(ctx context.Context, symbols []string) (map[string]model.StockInfo, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("GetStocksInfo start", slog.String("rqID", rqID))

	if len(symbols) == 0 {
		return map[string]model.StockInfo{}, nil
	}

	values, err := r.redis.MGet(ctx, symbols...).Result()
	if err != nil {
		slog.Error("failed on redis.MGet", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return nil, err
	}

	res := make(map[string]model.StockInfo, len(symbols))
	for i, value := range values {
		strValue, ok := value.(string)
		if !ok {
			continue // cache miss for this symbol
		}

		stockInfo := model.StockInfo{}
		if err := json.Unmarshal([]byte(strValue), &stockInfo); err != nil {
			slog.Error(
				"can't unmarshall stock in GetStocksInfo",
				slog.String("rqID", rqID),
				slog.String("err", err.Error()),
				slog.String("symbol", symbols[i]),
			)
			continue
		}
		res[symbols[i]] = stockInfo
	}

	slog.Debug("GetStocksInfo finished", slog.String("rqID", rqID))

	return res, nil
}
