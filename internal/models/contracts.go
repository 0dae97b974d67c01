package models

type Quote struct {
	Price            float64 `json:"price"`
	Volume24h        float64 `json:"volume_24h"`
	VolumeChange24h  float64 `json:"volume_change_24h"`
	PercentChange1h  float64 `json:"percent_change_1h"`
	PercentChange24h float64 `json:"percent_change_24h"`
	PercentChange7d  float64 `json:"percent_change_7d"`
	MarketCap        float64 `json:"market_cap"`
	MarketCapDom     float64 `json:"market_cap_dominance"`
	LastUpdated      string  `json:"last_updated"`
}

type Listing struct {
	ID                int              `json:"id"`
	Name              string           `json:"name"`
	Symbol            string           `json:"symbol"`
	Slug              string           `json:"slug"`
	CMCRank           int              `json:"cmc_rank"`
	CirculatingSupply float64          `json:"circulating_supply"`
	TotalSupply       float64          `json:"total_supply"`
	MaxSupply         *float64         `json:"max_supply"`
	LastUpdated       string           `json:"last_updated"`
	Quote             map[string]Quote `json:"quote"`
}

// QuoteIn returns the quote for currency, zero if the upstream did not convert to it.
func (l Listing) QuoteIn(currency string) Quote {
	return l.Quote[currency]
}

type GlobalQuote struct {
	TotalMarketCap          float64 `json:"total_market_cap"`
	TotalVolume24h          float64 `json:"total_volume_24h"`
	AltcoinMarketCap        float64 `json:"altcoin_market_cap"`
	AltcoinVolume24h        float64 `json:"altcoin_volume_24h"`
	DefiMarketCap           float64 `json:"defi_market_cap"`
	StablecoinMarketCap     float64 `json:"stablecoin_market_cap"`
	TotalMarketCapYesterday float64 `json:"total_market_cap_yesterday"`
	TotalMarketCapChangePct float64 `json:"total_market_cap_yesterday_percentage_change"`
	TotalVolume24hYesterday float64 `json:"total_volume_24h_yesterday"`
	TotalVolume24hChangePct float64 `json:"total_volume_24h_yesterday_percentage_change"`
	LastUpdated             string  `json:"last_updated"`
}

type GlobalMetrics struct {
	ActiveCryptocurrencies int                    `json:"active_cryptocurrencies"`
	TotalCryptocurrencies  int                    `json:"total_cryptocurrencies"`
	ActiveMarketPairs      int                    `json:"active_market_pairs"`
	ActiveExchanges        int                    `json:"active_exchanges"`
	BTCDominance           float64                `json:"btc_dominance"`
	ETHDominance           float64                `json:"eth_dominance"`
	LastUpdated            string                 `json:"last_updated"`
	Quote                  map[string]GlobalQuote `json:"quote"`
}

func (g GlobalMetrics) QuoteIn(currency string) GlobalQuote {
	return g.Quote[currency]
}

type NewsItem struct {
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	URL           string  `json:"url"`
	ImageURL      *string `json:"image_url,omitempty"`
	PublishedDate string  `json:"published_date"`
	Source        string  `json:"source"`
}

type Meta struct {
	Source    string `json:"source"`
	Stale     bool   `json:"stale"`
	Error     string `json:"error,omitempty"`
	FetchedAt string `json:"fetched_at,omitempty"`
}

type ListingsResponse struct {
	TsISO    string    `json:"tsISO"`
	Start    int       `json:"start"`
	Limit    int       `json:"limit"`
	Convert  string    `json:"convert"`
	Listings []Listing `json:"listings"`
	Meta     Meta      `json:"meta"`
}

type GlobalResponse struct {
	TsISO   string        `json:"tsISO"`
	Convert string        `json:"convert"`
	Global  GlobalMetrics `json:"global"`
	Meta    Meta          `json:"meta"`
}

type NewsPageResponse struct {
	TsISO    string     `json:"tsISO"`
	Epoch    string     `json:"epoch"`
	Page     int        `json:"page"`
	PageSize int        `json:"pageSize"`
	Total    int        `json:"total"`
	Filter   string     `json:"filter"`
	Query    string     `json:"q,omitempty"`
	Items    []NewsItem `json:"items"`
	Meta     Meta       `json:"meta"`
}

type HealthResponse struct {
	Ok          bool                 `json:"ok"`
	TsISO       string               `json:"tsISO"`
	Service     string               `json:"service"`
	Version     string               `json:"version"`
	Deps        []string             `json:"deps"`
	DepsStatus  map[string]DepStatus `json:"deps_status"`
	DataMissing []string             `json:"data_missing"`
	Env         map[string]bool      `json:"env"`
	NewsCache   NewsCacheStatus      `json:"news_cache"`
}

type DepStatus struct {
	Ok    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type NewsCacheStatus struct {
	Source    string `json:"source"`
	Epoch     string `json:"epoch,omitempty"`
	Items     int    `json:"items"`
	FetchedAt string `json:"fetched_at,omitempty"`
	Hits      int64  `json:"hits"`
	Misses    int64  `json:"misses"`
	Failures  int64  `json:"failures"`
	Stale     int64  `json:"stale_served"`
}
