// Package fetcher retrieves one portfolio's positions and reduces them to
// the published metric set.
package fetcher

import (
	"context"
	"errors"
	"log"
	"time"

	apperrors "investing_monitor/internal/errors"
	"investing_monitor/internal/investing"
	"investing_monitor/internal/models"
	"investing_monitor/internal/session"
)

// Client is the provider API surface the fetcher needs.
type Client interface {
	GetPositions(ctx context.Context, token, udid string, portfolioID int64) (*investing.PositionsResult, error)
}

// Fetcher fetches and reduces one portfolio at a time. Stateless apart
// from its collaborators; safe for concurrent use.
type Fetcher struct {
	client   Client
	sessions *session.Manager
}

// New creates a Fetcher sharing the given session manager.
func New(client Client, sessions *session.Manager) *Fetcher {
	return &Fetcher{
		client:   client,
		sessions: sessions,
	}
}

// Fetch retrieves the current snapshot for one portfolio.
//
// A token rejection triggers exactly one silent re-authentication and one
// retried call. A second consecutive rejection means the provider has
// revoked access for these credentials and surfaces as InvalidCredentials
// without further retries.
func (f *Fetcher) Fetch(ctx context.Context, portfolioID int64) (*models.PortfolioSnapshot, error) {
	tok, err := f.sessions.Token(ctx)
	if err != nil {
		return nil, err
	}

	result, err := f.client.GetPositions(ctx, tok.Value, tok.UDID, portfolioID)
	if errors.Is(err, investing.ErrTokenExpired) {
		log.Printf("[Fetcher] Token rejected for portfolio %d, re-authenticating", portfolioID)
		f.sessions.Invalidate(tok.Value)

		tok, err = f.sessions.Token(ctx)
		if err != nil {
			return nil, err
		}

		result, err = f.client.GetPositions(ctx, tok.Value, tok.UDID, portfolioID)
		if errors.Is(err, investing.ErrTokenExpired) {
			f.sessions.MarkInvalid()
			return nil, apperrors.Wrap(apperrors.ErrInvalidCredentials, "provider rejected a freshly issued token", err)
		}
	}
	if err != nil {
		return nil, classify(err)
	}

	return reduce(portfolioID, result, time.Now()), nil
}

// classify converts provider errors into the application taxonomy so the
// scheduler never has to interpret raw transport errors.
func classify(err error) error {
	switch {
	case errors.Is(err, investing.ErrPortfolioNotFound):
		return apperrors.Wrap(apperrors.ErrPortfolioNotFound, "portfolio missing upstream", err)
	case errors.Is(err, investing.ErrMalformedResponse):
		return apperrors.Wrap(apperrors.ErrDecode, "unexpected response shape", err)
	default:
		return apperrors.Wrap(apperrors.ErrNetwork, "fetching positions", err)
	}
}

// reduce aggregates the open position list to the five published metrics.
// Percentages are relative to the invested-capital baseline; when invested
// capital is zero they resolve to zero rather than dividing by it.
func reduce(portfolioID int64, result *investing.PositionsResult, now time.Time) *models.PortfolioSnapshot {
	var invested, openPL, dailyPL float64
	for _, p := range result.Positions {
		invested += investing.ParseEuropeanNumber(p.MarketValue)
		openPL += investing.ParseEuropeanNumber(p.OpenPL)
		dailyPL += investing.ParseEuropeanNumber(p.DailyPL)
	}

	var openPct, dailyPct float64
	if invested != 0 {
		openPct = openPL / invested * 100
		dailyPct = dailyPL / invested * 100
	}

	return &models.PortfolioSnapshot{
		PortfolioID:     portfolioID,
		InvestedCapital: invested,
		OpenPL:          openPL,
		OpenPLPercent:   openPct,
		DailyPL:         dailyPL,
		DailyPLPercent:  dailyPct,
		Currency:        result.Currency,
		FetchedAt:       now,
	}
}
