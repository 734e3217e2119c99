package contracts

import (
	"context"
	"time"
)

// MarketDataProvider is one upstream quote/history/flow source.
// Implementations must be safe for concurrent use.
type MarketDataProvider interface {
	Name() string

	// Quote returns the latest quote fields for a symbol.
	Quote(ctx context.Context, symbol string) (*MarketSnapshot, error)

	// DailyBars returns up to limit daily candles, oldest first.
	DailyBars(ctx context.Context, symbol string, limit int) ([]Candle, error)

	// FundFlow returns recent capital flow points, oldest first.
	FundFlow(ctx context.Context, symbol string, limit int) ([]FlowPoint, error)

	// News returns up to limit recent announcements, newest first.
	News(ctx context.Context, symbol string, limit int) ([]NewsItem, error)
}

// ProfileProvider is implemented by providers that can recover name and
// industry from a secondary page when the quote payload omits them.
type ProfileProvider interface {
	Profile(ctx context.Context, symbol string) (*CompanyProfile, error)
}

// TradingCalendar answers session questions for the target exchange.
type TradingCalendar interface {
	IsTradingDay(t time.Time) bool
	IsSessionOpen(t time.Time) bool
	NextOpen(t time.Time) time.Time
}

// NotificationService delivers a completed cycle summary. Errors are
// logged by callers, never propagated.
type NotificationService interface {
	NotifyResult(ctx context.Context, result *RankedResult) error
}
