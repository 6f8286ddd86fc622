package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Position struct {
	PositionID    int64
	PortfolioID   int64
	StockID       int64
	Symbol        string
	StockName     string
	Quantity      decimal.Decimal
	PurchasePrice decimal.Decimal
	PurchaseDate  time.Time
	CurrentPrice  decimal.Decimal
	CurrentValue  decimal.Decimal
}

func (p Position) TotalCost() decimal.Decimal {
	return p.Quantity.Mul(p.PurchasePrice)
}
