package yahooApi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/KotFed0t/portfolio_tracker_api/config"
	"github.com/KotFed0t/portfolio_tracker_api/internal/externalApi"
	"github.com/KotFed0t/portfolio_tracker_api/internal/model"
	"github.com/KotFed0t/portfolio_tracker_api/internal/model/yahooModel"
	"github.com/KotFed0t/portfolio_tracker_api/utils"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

type YahooApi struct {
	client *resty.Client
}

func New(cfg *config.Config) *YahooApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.YahooApi.Url)
	return &YahooApi{client: client}
}

func (a *YahooApi) GetStockInfo(ctx context.Context, symbol string) (model.StockInfo, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "YahooApi.GetStockInfo"

	slog.Debug("GetStockInfo start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))

	quotes, err := a.getQuotes(ctx, []string{symbol})
	if err != nil {
		return model.StockInfo{}, err
	}

	if len(quotes) == 0 {
		slog.Debug("symbol not found in YahooApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
		return model.StockInfo{}, externalApi.ErrNotFound
	}

	slog.Debug("GetStockInfo completed", slog.String("rqID", rqID), slog.String("op", op))

	return parseRawQuote(quotes[0]), nil
}

func (a *YahooApi) GetStocksInfo(ctx context.Context, symbols []string) (map[string]model.StockInfo, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "YahooApi.GetStocksInfo"

	slog.Debug("GetStocksInfo start", slog.String("rqID", rqID), slog.String("op", op), slog.Int("symbols", len(symbols)))

	quotes, err := a.getQuotes(ctx, symbols)
	if err != nil {
		return nil, err
	}

	res := make(map[string]model.StockInfo, len(quotes))
	for _, quote := range quotes {
		stockInfo := parseRawQuote(quote)
		res[stockInfo.Symbol] = stockInfo
	}

	slog.Debug("GetStocksInfo completed", slog.String("rqID", rqID), slog.String("op", op))

	return res, nil
}

func (a *YahooApi) getQuotes(ctx context.Context, symbols []string) ([]yahooModel.RawQuote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	url := "/v7/finance/quote"
	params := map[string]string{
		"symbols": strings.Join(symbols, ","),
		"fields":  "symbol,longName,shortName,fullExchangeName,regularMarketPrice",
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParams(params).
		Get(url)

	if err != nil {
		slog.Error("error while dialing YahooApi", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return nil, err
	}

	if resp.IsError() {
		slog.Error("YahooApi returned error status", slog.Int("status", resp.StatusCode()), slog.String("rqID", rqID))
		return nil, fmt.Errorf("yahoo api status %d", resp.StatusCode())
	}

	rawQuoteResponse := yahooModel.RawQuoteResponse{}
	err = json.Unmarshal(resp.Body(), &rawQuoteResponse)
	if err != nil {
		slog.Error("can't unmarshall response into yahooModel.RawQuoteResponse", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return nil, err
	}

	if respErr := rawQuoteResponse.QuoteResponse.Error; respErr != nil {
		return nil, fmt.Errorf("yahoo api error %s: %s", respErr.Code, respErr.Description)
	}

	return rawQuoteResponse.QuoteResponse.Result, nil
}

func parseRawQuote(quote yahooModel.RawQuote) model.StockInfo {
	name := quote.LongName
	if name == "" {
		name = quote.ShortName
	}
	if name == "" {
		name = quote.Symbol
	}

	return model.StockInfo{
		Symbol:   strings.ToUpper(quote.Symbol),
		Name:     name,
		Exchange: quote.FullExchangeName,
		Price:    decimal.NewFromFloat(quote.RegularMarketPrice),
	}
}
