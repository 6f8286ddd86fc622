package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Portfolio struct {
	PortfolioID int64
	Name        string
	Description string
	CreatedAt   time.Time
}

type PortfolioDetails struct {
	Portfolio
	TotalCost  decimal.Decimal
	TotalValue decimal.Decimal
	Positions  []Position
}
