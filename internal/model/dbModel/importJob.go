package dbModel

import "time"

type ImportJob struct {
	ImportID          int64     `db:"import_id"`
	PortfolioID       int64     `db:"portfolio_id"`
	Filename          string    `db:"filename"`
	Status            string    `db:"status"`
	TotalRows         int       `db:"total_rows"`
	SuccessfulImports int       `db:"successful_imports"`
	FailedImports     int       `db:"failed_imports"`
	ErrorLog          []byte    `db:"error_log"`
	PreviewData       []byte    `db:"preview_data"`
	DtCreate          time.Time `db:"dt_create"`
}
