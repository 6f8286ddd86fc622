package dbConverter

import (
	"encoding/json"
	"fmt"

	"github.com/KotFed0t/portfolio_tracker_api/internal/model"
	"github.com/KotFed0t/portfolio_tracker_api/internal/model/dbModel"
)

func ConvertPortfolio(dbPortfolio dbModel.Portfolio) model.Portfolio {
	return model.Portfolio{
		PortfolioID: dbPortfolio.PortfolioID,
		Name:        dbPortfolio.Name,
		Description: dbPortfolio.Description,
		CreatedAt:   dbPortfolio.DtCreate,
	}
}

func ConvertStock(dbStock dbModel.Stock) model.Stock {
	return model.Stock{
		StockID:  dbStock.StockID,
		Symbol:   dbStock.Symbol,
		Name:     dbStock.Name,
		Exchange: dbStock.Exchange,
	}
}

func ConvertPosition(dbPosition dbModel.Position) model.Position {
	return model.Position{
		PositionID:    dbPosition.PositionID,
		PortfolioID:   dbPosition.PortfolioID,
		StockID:       dbPosition.StockID,
		Symbol:        dbPosition.Symbol,
		StockName:     dbPosition.StockName,
		Quantity:      dbPosition.Quantity,
		PurchasePrice: dbPosition.PurchasePrice,
		PurchaseDate:  dbPosition.PurchaseDate,
	}
}

func ConvertImportJob(dbJob dbModel.ImportJob) (model.ImportJob, error) {
	job := model.ImportJob{
		ImportID:          dbJob.ImportID,
		PortfolioID:       dbJob.PortfolioID,
		Filename:          dbJob.Filename,
		Status:            model.ImportStatus(dbJob.Status),
		TotalRows:         dbJob.TotalRows,
		SuccessfulImports: dbJob.SuccessfulImports,
		FailedImports:     dbJob.FailedImports,
		CreatedAt:         dbJob.DtCreate,
	}

	if len(dbJob.ErrorLog) > 0 {
		if err := json.Unmarshal(dbJob.ErrorLog, &job.ErrorLog); err != nil {
			return model.ImportJob{}, fmt.Errorf("unmarshal error_log: %w", err)
		}
	}

	if len(dbJob.PreviewData) > 0 {
		preview := model.ImportPreview{}
		if err := json.Unmarshal(dbJob.PreviewData, &preview); err != nil {
			return model.ImportJob{}, fmt.Errorf("unmarshal preview_data: %w", err)
		}
		job.Preview = &preview
	}

	return job, nil
}
