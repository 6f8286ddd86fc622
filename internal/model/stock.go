package model

import "github.com/shopspring/decimal"

type Stock struct {
	StockID  int64
	Symbol   string
	Name     string
	Exchange string
}

// StockInfo is what the market-data collaborator returns for one symbol.
type StockInfo struct {
	Symbol   string
	Name     string
	Exchange string
	Price    decimal.Decimal
}
