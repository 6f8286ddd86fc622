package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ImportStatus string

const (
	ImportStatusParsing    ImportStatus = "parsing"
	ImportStatusPreview    ImportStatus = "preview"
	ImportStatusProcessing ImportStatus = "processing"
	ImportStatusCompleted  ImportStatus = "completed"
	ImportStatusFailed     ImportStatus = "failed"
)

const (
	ImportErrParse  = "parse_error"
	ImportErrColumn = "column_error"
	ImportErrSystem = "system_error"
)

// ImportError is a structural (decoder/mapper/system level) or merge-stage
// error tied to a row number. Row 0 means the whole file.
type ImportError struct {
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
	Row     int    `json:"row"`
}

// ParsedRow is one normalized CSV row staged inside an import job. A row with
// a non-empty Errors list stays in the preview for reporting but is never
// merged into positions.
type ParsedRow struct {
	RowNumber     int             `json:"row_number"`
	Symbol        string          `json:"symbol,omitempty"`
	Quantity      decimal.Decimal `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	PurchaseDate  time.Time       `json:"purchase_date"`
	Notes         string          `json:"notes,omitempty"`
	StockName     string          `json:"stock_name,omitempty"`
	Errors        []string        `json:"errors"`
	Warnings      []string        `json:"warnings"`
}

func (r ParsedRow) Valid() bool {
	return len(r.Errors) == 0
}

// ImportPreview is the staged payload held by a job between preview and
// confirmation.
type ImportPreview struct {
	Rows          []ParsedRow    `json:"valid_rows"`
	ColumnMapping map[string]int `json:"column_mapping"`
	TotalErrors   int            `json:"total_errors"`
}

type ImportJob struct {
	ImportID          int64
	PortfolioID       int64
	Filename          string
	Status            ImportStatus
	TotalRows         int
	SuccessfulImports int
	FailedImports     int
	ErrorLog          []ImportError
	Preview           *ImportPreview
	CreatedAt         time.Time
}

// ImportResult is returned from parse+validate, before any confirmation.
type ImportResult struct {
	ImportID      int64
	Success       bool
	TotalRows     int
	ValidRows     int
	ErrorRows     int
	Rows          []ParsedRow
	ColumnMapping map[string]int
	Errors        []ImportError
}

// ConfirmResult is returned from confirming a previewed import.
type ConfirmResult struct {
	CreatedPositions int
	Errors           []ImportError
}
