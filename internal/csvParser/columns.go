package csvParser

import (
	"fmt"
	"strings"
)

// Logical fields a CSV column can map to.
const (
	FieldSymbol        = "symbol"
	FieldQuantity      = "quantity"
	FieldPurchasePrice = "purchase_price"
	FieldPurchaseDate  = "purchase_date"
	FieldNotes         = "notes"
)

// ColumnMapping maps a logical field to its column index in the header row.
type ColumnMapping map[string]int

type fieldAliases struct {
	field    string
	required bool
	aliases  []string
}

// Alias table is data, not branches: supporting a new broker header is an
// entry here. Matching is trimmed and case-insensitive.
var columnAliases = []fieldAliases{
	{FieldSymbol, true, []string{"Symbol", "Ticker", "Stock"}},
	{FieldQuantity, false, []string{"Quantity", "Shares", "Qty"}},
	{FieldPurchasePrice, false, []string{"Purchase Price", "Buy Price", "Cost Basis", "Price Paid", "Cost Per Share", "Avg Cost", "Purchase_Price"}},
	{FieldPurchaseDate, false, []string{"Purchase Date", "Buy Date", "Date", "Date Acquired", "Acquisition Date", "Purchase_Date"}},
	{FieldNotes, false, []string{"Notes", "Comments", "Description"}},
}

// DetectColumns resolves the header row into a ColumnMapping. Only the symbol
// column is mandatory; every other field is optional and handled with
// defaults downstream. For each field the first matching header cell wins.
func (p *CSVParser) DetectColumns(header []string) (ColumnMapping, error) {
	mapping := make(ColumnMapping, len(columnAliases))

	for _, fa := range columnAliases {
		idx, found := findColumn(header, fa.aliases)
		if found {
			mapping[fa.field] = idx
			continue
		}

		if fa.required {
			return nil, fmt.Errorf("required column '%s' not found, looking for: %s", fa.field, strings.Join(fa.aliases, ", "))
		}
	}

	return mapping, nil
}

func findColumn(header []string, aliases []string) (int, bool) {
	for i, cell := range header {
		trimmed := strings.TrimSpace(cell)
		for _, alias := range aliases {
			if strings.EqualFold(trimmed, alias) {
				return i, true
			}
		}
	}
	return 0, false
}
