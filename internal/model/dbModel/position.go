package dbModel

import (
	"time"

	"github.com/shopspring/decimal"
)

type Position struct {
	PositionID    int64           `db:"position_id"`
	PortfolioID   int64           `db:"portfolio_id"`
	StockID       int64           `db:"stock_id"`
	Symbol        string          `db:"symbol"`
	StockName     string          `db:"stock_name"`
	Quantity      decimal.Decimal `db:"quantity"`
	PurchasePrice decimal.Decimal `db:"purchase_price"`
	PurchaseDate  time.Time       `db:"purchase_date"`
}
