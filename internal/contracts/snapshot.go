package contracts

import "time"

// Candle represents one OHLCV bar.
type Candle struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
	Amount float64   `json:"amount"` // turnover in CNY
}

// FlowPoint represents one day of capital flow for a symbol.
type FlowPoint struct {
	Date         time.Time `json:"date"`
	NetInflow    float64   `json:"net_inflow"`     // main capital net inflow, CNY
	NetInflowPct float64   `json:"net_inflow_pct"` // as a share of turnover
}

// NewsItem is one company announcement headline.
type NewsItem struct {
	Date   time.Time `json:"date"`
	Title  string    `json:"title"`
	Source string    `json:"source"`
}

// CompanyProfile carries name and industry recovered from a secondary
// source when the quote payload omits them.
type CompanyProfile struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Industry string `json:"industry"`
}

// Availability flags which snapshot sections were actually fetched this
// cycle. A false flag means the section is missing, not zero.
type Availability struct {
	Quote     bool `json:"quote"`
	History   bool `json:"history"`
	Flow      bool `json:"flow"`
	Valuation bool `json:"valuation"`
	News      bool `json:"news"`
}

// Complete reports whether every core section was fetched. News is an
// enrichment section and does not gate completeness.
func (a Availability) Complete() bool {
	return a.Quote && a.History && a.Flow && a.Valuation
}

// MarketSnapshot is the per-symbol input to the signal engine, assembled by
// the aggregator. Immutable once a cycle starts.
// ⭐ SSOT: aggregator → signal/scoring data handoff
type MarketSnapshot struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Industry string `json:"industry"`

	// Latest quote
	Price        float64 `json:"price"`
	ChangePct    float64 `json:"change_pct"`
	TurnoverRate float64 `json:"turnover_rate"`
	VolumeRatio  float64 `json:"volume_ratio"`

	// Valuation
	PETTM float64 `json:"pe_ttm"`
	PB    float64 `json:"pb"`

	History []Candle    `json:"history"` // oldest first
	Flow    []FlowPoint `json:"flow"`    // oldest first
	News    []NewsItem  `json:"news"`    // newest first

	Availability Availability      `json:"availability"`
	Sources      map[string]string `json:"sources"` // section -> provider that won it
	FetchedAt    time.Time         `json:"fetched_at"`
}

// Closes returns the close series, oldest first.
func (s *MarketSnapshot) Closes() []float64 {
	out := make([]float64, len(s.History))
	for i, c := range s.History {
		out[i] = c.Close
	}
	return out
}

// Volumes returns the volume series, oldest first.
func (s *MarketSnapshot) Volumes() []float64 {
	out := make([]float64, len(s.History))
	for i, c := range s.History {
		out[i] = c.Volume
	}
	return out
}

// HasHistory reports whether at least n bars are available.
func (s *MarketSnapshot) HasHistory(n int) bool {
	return s.Availability.History && len(s.History) >= n
}

// LatestFlow returns the most recent flow point, if any.
func (s *MarketSnapshot) LatestFlow() (FlowPoint, bool) {
	if len(s.Flow) == 0 {
		return FlowPoint{}, false
	}
	return s.Flow[len(s.Flow)-1], true
}
