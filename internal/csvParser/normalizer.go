package csvParser

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/KotFed0t/portfolio_tracker_api/internal/model"
	"github.com/shopspring/decimal"
)

var (
	nonNumericRe = regexp.MustCompile(`[^0-9.\-]`)

	// unit words and prefixes brokers stick onto numeric cells
	quantityReplacer = strings.NewReplacer(",", "", " ", "", "shares", "", "qty:", "", "qty", "")
	priceReplacer    = strings.NewReplacer("$", "", "€", "", "£", "", ",", "", " ", "", "USD", "", "usd", "", "price:", "", "cost:", "")
)

// ordered: first successful format wins
var dateFormats = []string{
	"2006-01-02",
	"1/2/2006",
	"2/1/2006",
	"2006-01-02 15:04:05",
}

// IsBlankRow reports whether a row is empty or all-whitespace. Such rows are
// skipped entirely, they are neither errors nor successes.
func (p *CSVParser) IsBlankRow(cells []string) bool {
	for _, cell := range cells {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// NormalizeRow cleans and coerces one data row into a ParsedRow. Field
// failures are independent: a bad quantity does not stop date extraction.
// Row numbers are 1-based with the header occupying row 1.
func (p *CSVParser) NormalizeRow(cells []string, rowNumber int, mapping ColumnMapping) model.ParsedRow {
	row := model.ParsedRow{
		RowNumber: rowNumber,
		Errors:    []string{},
		Warnings:  []string{},
	}

	if idx, ok := mapping[FieldSymbol]; ok && idx < len(cells) {
		symbol := strings.ToUpper(strings.TrimSpace(cells[idx]))
		if symbol != "" {
			row.Symbol = symbol
		} else {
			row.Errors = append(row.Errors, "Symbol is required")
		}
	} else {
		row.Errors = append(row.Errors, "Symbol column not found")
	}

	if idx, ok := mapping[FieldQuantity]; ok && idx < len(cells) {
		raw := strings.TrimSpace(cells[idx])
		cleaned := cleanNumeric(raw, quantityReplacer)

		switch quantity, err := decimal.NewFromString(cleaned); {
		case cleaned == "":
			row.Quantity = decimal.Zero
			row.Warnings = append(row.Warnings, "No quantity provided, defaulted to 0")
		case err != nil:
			row.Errors = append(row.Errors, fmt.Sprintf("Could not parse quantity '%s'", raw))
		case quantity.IsNegative():
			row.Errors = append(row.Errors, "Quantity cannot be negative")
		default:
			row.Quantity = quantity
		}
	} else {
		row.Quantity = decimal.Zero
		row.Warnings = append(row.Warnings, "Quantity column not found, defaulted to 0")
	}

	if idx, ok := mapping[FieldPurchasePrice]; ok && idx < len(cells) {
		raw := strings.TrimSpace(cells[idx])
		cleaned := cleanNumeric(raw, priceReplacer)

		switch price, err := decimal.NewFromString(cleaned); {
		case cleaned == "":
			row.PurchasePrice = decimal.Zero
			row.Warnings = append(row.Warnings, "No purchase price provided, defaulted to 0")
		case err != nil:
			row.Errors = append(row.Errors, fmt.Sprintf("Could not parse price '%s'", raw))
		case price.IsNegative():
			row.Errors = append(row.Errors, "Purchase price cannot be negative")
		default:
			row.PurchasePrice = price
		}
	} else {
		row.PurchasePrice = decimal.Zero
		row.Warnings = append(row.Warnings, "Purchase price column not found, defaulted to 0")
	}

	row.PurchaseDate = dateOnly(time.Now().UTC())
	if idx, ok := mapping[FieldPurchaseDate]; ok && idx < len(cells) {
		if raw := strings.TrimSpace(cells[idx]); raw != "" {
			if parsed, ok := parseDate(raw); ok {
				row.PurchaseDate = parsed
			} else {
				row.Warnings = append(row.Warnings, fmt.Sprintf("Could not parse date '%s', using today's date", raw))
			}
		}
	}

	if idx, ok := mapping[FieldNotes]; ok && idx < len(cells) {
		if notes := strings.TrimSpace(cells[idx]); notes != "" {
			row.Notes = notes
		}
	}

	return row
}

func cleanNumeric(s string, replacer *strings.Replacer) string {
	return nonNumericRe.ReplaceAllString(replacer.Replace(s), "")
}

func parseDate(s string) (time.Time, bool) {
	for _, format := range dateFormats {
		if parsed, err := time.Parse(format, s); err == nil {
			return dateOnly(parsed), true
		}
	}
	return time.Time{}, false
}

func dateOnly(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
