package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/KotFed0t/portfolio_tracker_api/config"
	"github.com/KotFed0t/portfolio_tracker_api/internal/model"
	"github.com/KotFed0t/portfolio_tracker_api/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	importResult  model.ImportResult
	importErr     error
	confirmResult model.ConfirmResult
	confirmErr    error
	job           model.ImportJob
	jobErr        error

	gotFilename string
	gotContent  string
}

func (s *stubService) CreatePortfolio(_ context.Context, name, description string) (model.Portfolio, error) {
	return model.Portfolio{PortfolioID: 1, Name: name, Description: description, CreatedAt: time.Now()}, nil
}

func (s *stubService) GetPortfolios(_ context.Context, _ int) ([]model.Portfolio, bool, error) {
	return nil, false, nil
}

func (s *stubService) GetPortfolioDetails(_ context.Context, _ int64) (model.PortfolioDetails, error) {
	return model.PortfolioDetails{}, nil
}

func (s *stubService) DeletePortfolio(_ context.Context, _ int64) error {
	return nil
}

func (s *stubService) AddPosition(_ context.Context, _ int64, symbol string, quantity, purchasePrice decimal.Decimal, purchaseDate time.Time) (model.Position, error) {
	return model.Position{PositionID: 1, Symbol: symbol, Quantity: quantity, PurchasePrice: purchasePrice, PurchaseDate: purchaseDate}, nil
}

func (s *stubService) GetPortfolioReport(_ context.Context, _ int64) (string, error) {
	return "https://storage.example/report.xlsx", nil
}

func (s *stubService) ImportCSV(_ context.Context, _ int64, filename, content string) (model.ImportResult, error) {
	s.gotFilename = filename
	s.gotContent = content
	return s.importResult, s.importErr
}

func (s *stubService) GetImportStatus(_ context.Context, _ int64) (model.ImportJob, error) {
	return s.job, s.jobErr
}

func (s *stubService) ConfirmImport(_ context.Context, _ int64) (model.ConfirmResult, error) {
	return s.confirmResult, s.confirmErr
}

func newTestServer(t *testing.T, stub *stubService) *httptest.Server {
	t.Helper()

	cfg := &config.Config{
		Import: config.Import{FileLimitInBytes: 1024, PreviewRowsLimit: 2},
	}

	server := httptest.NewServer(NewRouter(NewController(cfg, stub)))
	t.Cleanup(server.Close)
	return server
}

func uploadCSV(t *testing.T, url, filename, content string) *http.Response {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("csv_file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	resp, err := http.Post(url, writer.FormDataContentType(), body)
	require.NoError(t, err)
	return resp
}

func TestImportCSVUpload(t *testing.T) {
	stub := &stubService{
		importResult: model.ImportResult{
			ImportID:  7,
			Success:   true,
			TotalRows: 3,
			ValidRows: 3,
			Rows: []model.ParsedRow{
				{RowNumber: 2}, {RowNumber: 3}, {RowNumber: 4},
			},
		},
	}
	server := newTestServer(t, stub)

	resp := uploadCSV(t, server.URL+"/api/portfolios/1/import-csv", "holdings.csv", "Symbol,Quantity\nAAPL,10\n")
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "holdings.csv", stub.gotFilename)
	assert.Equal(t, "Symbol,Quantity\nAAPL,10\n", stub.gotContent)

	var payload importResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, int64(7), payload.ImportID)
	assert.True(t, payload.Success)
	// preview sample is capped by config
	assert.Len(t, payload.SampleRows, 2)
}

func TestImportCSVUploadRejectsExtension(t *testing.T) {
	server := newTestServer(t, &stubService{})

	resp := uploadCSV(t, server.URL+"/api/portfolios/1/import-csv", "holdings.xlsx", "whatever")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestImportCSVUploadRejectsOversize(t *testing.T) {
	server := newTestServer(t, &stubService{})

	resp := uploadCSV(t, server.URL+"/api/portfolios/1/import-csv", "holdings.csv", strings.Repeat("a", 2048))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestImportCSVUploadRequiresFile(t *testing.T) {
	server := newTestServer(t, &stubService{})

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.Close())

	resp, err := http.Post(server.URL+"/api/portfolios/1/import-csv", writer.FormDataContentType(), body)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestImportCSVUploadPortfolioNotFound(t *testing.T) {
	server := newTestServer(t, &stubService{importErr: service.ErrNotFound})

	resp := uploadCSV(t, server.URL+"/api/portfolios/99/import-csv", "holdings.csv", "Symbol\nAAPL\n")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestImportCSVUploadFailedParse(t *testing.T) {
	stub := &stubService{
		importResult: model.ImportResult{
			ImportID: 7,
			Errors:   []model.ImportError{{Type: model.ImportErrParse, Message: "Failed to parse CSV file"}},
		},
	}
	server := newTestServer(t, stub)

	resp := uploadCSV(t, server.URL+"/api/portfolios/1/import-csv", "holdings.csv", "garbage")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConfirmImportConflict(t *testing.T) {
	server := newTestServer(t, &stubService{confirmErr: service.ErrImportNotConfirmable})

	resp, err := http.Post(server.URL+"/api/imports/7/confirm", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestGetImportStatus(t *testing.T) {
	stub := &stubService{
		job: model.ImportJob{
			ImportID:          7,
			Status:            model.ImportStatusCompleted,
			Filename:          "holdings.csv",
			TotalRows:         3,
			SuccessfulImports: 3,
			ErrorLog:          []model.ImportError{},
		},
	}
	server := newTestServer(t, stub)

	resp, err := http.Get(server.URL + "/api/imports/7/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload importStatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, "completed", payload.Status)
	assert.Equal(t, 3, payload.SuccessfulImports)
}

func TestGetImportStatusNotFound(t *testing.T) {
	server := newTestServer(t, &stubService{jobErr: service.ErrNotFound})

	resp, err := http.Get(server.URL + "/api/imports/7/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreatePortfolioValidation(t *testing.T) {
	server := newTestServer(t, &stubService{})

	resp, err := http.Post(server.URL+"/api/portfolios", "application/json", strings.NewReader(`{"name":"  "}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAddPositionValidation(t *testing.T) {
	server := newTestServer(t, &stubService{})

	tests := []struct {
		name string
		body string
	}{
		{name: "missing symbol", body: `{"quantity":"1","purchase_price":"1"}`},
		{name: "negative quantity", body: `{"symbol":"AAPL","quantity":"-1","purchase_price":"1"}`},
		{name: "bad date", body: `{"symbol":"AAPL","quantity":"1","purchase_price":"1","purchase_date":"15.01.2024"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(server.URL+"/api/portfolios/1/positions", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}
