package yahooModel

// RawQuoteResponse mirrors the Yahoo Finance v7 quote endpoint payload.
type RawQuoteResponse struct {
	QuoteResponse QuoteResponse `json:"quoteResponse"`
}

type QuoteResponse struct {
	Result []RawQuote `json:"result"`
	Error  *RawError  `json:"error"`
}

type RawError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type RawQuote struct {
	Symbol             string  `json:"symbol"`
	LongName           string  `json:"longName"`
	ShortName          string  `json:"shortName"`
	FullExchangeName   string  `json:"fullExchangeName"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
}
