package csvParser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectColumns(t *testing.T) {
	p := New()

	tests := []struct {
		name   string
		header []string
		want   ColumnMapping
	}{
		{
			name:   "canonical headers",
			header: []string{"Symbol", "Quantity", "Purchase Price", "Purchase Date", "Notes"},
			want: ColumnMapping{
				FieldSymbol:        0,
				FieldQuantity:      1,
				FieldPurchasePrice: 2,
				FieldPurchaseDate:  3,
				FieldNotes:         4,
			},
		},
		{
			name:   "broker style aliases",
			header: []string{"Ticker", "Shares", "Cost Basis", "Date"},
			want: ColumnMapping{
				FieldSymbol:        0,
				FieldQuantity:      1,
				FieldPurchasePrice: 2,
				FieldPurchaseDate:  3,
			},
		},
		{
			name:   "case insensitive with surrounding spaces",
			header: []string{" ticker ", "QTY", "avg cost"},
			want: ColumnMapping{
				FieldSymbol:        0,
				FieldQuantity:      1,
				FieldPurchasePrice: 2,
			},
		},
		{
			name:   "only symbol present",
			header: []string{"Stock"},
			want: ColumnMapping{
				FieldSymbol: 0,
			},
		},
		{
			name:   "first matching cell wins",
			header: []string{"Stock", "Ticker", "Shares"},
			want: ColumnMapping{
				FieldSymbol:   0,
				FieldQuantity: 2,
			},
		},
		{
			name:   "underscored exports",
			header: []string{"Symbol", "Quantity", "Purchase_Price", "Purchase_Date"},
			want: ColumnMapping{
				FieldSymbol:        0,
				FieldQuantity:      1,
				FieldPurchasePrice: 2,
				FieldPurchaseDate:  3,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.DetectColumns(tt.header)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectColumnsMissingSymbol(t *testing.T) {
	p := New()

	_, err := p.DetectColumns([]string{"Quantity", "Purchase Price"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required column 'symbol' not found")
	assert.Contains(t, err.Error(), "Ticker")
}
