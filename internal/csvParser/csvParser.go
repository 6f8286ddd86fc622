// Package csvParser turns raw CSV exports from brokers into normalized
// position rows. It tolerates different delimiters, header namings and
// numeric/date formats; anything it cannot make sense of is reported as a
// row error or warning instead of aborting the whole file.
package csvParser

import (
	"encoding/csv"
	"fmt"
	"strings"
)

// sniffWindow is how much of the file head is inspected for delimiter detection.
const sniffWindow = 1024

var delimiterCandidates = []rune{',', '\t', ';', '|'}

type CSVParser struct{}

func New() *CSVParser {
	return &CSVParser{}
}

// Decode parses the whole content with an auto-detected delimiter and returns
// raw rows of cells. Rows may have differing lengths.
func (p *CSVParser) Decode(content string) ([][]string, error) {
	reader := csv.NewReader(strings.NewReader(content))
	reader.Comma = detectDelimiter(content)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}

	return records, nil
}

// detectDelimiter infers the field delimiter from the leading sample of the
// content: a candidate wins when it appears in the first line and its count
// is consistent across the sampled lines. Falls back to comma.
func detectDelimiter(content string) rune {
	sample := content
	truncated := false
	if len(sample) > sniffWindow {
		sample = sample[:sniffWindow]
		truncated = true
	}

	lines := strings.Split(strings.ReplaceAll(sample, "\r\n", "\n"), "\n")
	if truncated && len(lines) > 1 {
		lines = lines[:len(lines)-1] // last line may be cut mid-row
	}

	nonEmpty := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			nonEmpty = append(nonEmpty, line)
		}
	}

	if len(nonEmpty) == 0 {
		return ','
	}

	bestDelimiter := ','
	bestScore := 0
	for _, candidate := range delimiterCandidates {
		count := strings.Count(nonEmpty[0], string(candidate))
		if count == 0 {
			continue
		}

		consistent := true
		for _, line := range nonEmpty[1:] {
			if strings.Count(line, string(candidate)) != count {
				consistent = false
				break
			}
		}

		if consistent && count > bestScore {
			bestScore = count
			bestDelimiter = candidate
		}
	}

	if bestScore > 0 {
		return bestDelimiter
	}

	// no consistent candidate - take whatever occurs most in the header line
	for _, candidate := range delimiterCandidates {
		if count := strings.Count(nonEmpty[0], string(candidate)); count > bestScore {
			bestScore = count
			bestDelimiter = candidate
		}
	}

	return bestDelimiter
}
