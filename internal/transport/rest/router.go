package rest

import (
	"github.com/KotFed0t/portfolio_tracker_api/internal/transport/rest/middleware"
	"github.com/go-chi/chi/v5"
)

func NewRouter(ctrl *Controller) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Route("/portfolios", func(r chi.Router) {
			r.Post("/", ctrl.CreatePortfolio)
			r.Get("/", ctrl.GetPortfolios)

			r.Route("/{portfolioID}", func(r chi.Router) {
				r.Get("/", ctrl.GetPortfolioDetails)
				r.Delete("/", ctrl.DeletePortfolio)
				r.Post("/positions", ctrl.AddPosition)
				r.Post("/import-csv", ctrl.ImportCSV)
				r.Get("/export", ctrl.ExportPortfolio)
			})
		})

		r.Route("/imports/{importID}", func(r chi.Router) {
			r.Get("/status", ctrl.GetImportStatus)
			r.Post("/confirm", ctrl.ConfirmImport)
		})
	})

	return r
}
