package dbModel

import "time"

type Portfolio struct {
	PortfolioID int64     `db:"portfolio_id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	DtCreate    time.Time `db:"dt_create"`
}
