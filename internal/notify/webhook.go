package notify

import (
	"context"
	"time"

	"github.com/quantumalpha/backend/internal/contracts"
	"github.com/quantumalpha/backend/pkg/config"
	"github.com/quantumalpha/backend/pkg/httputil"
	"github.com/quantumalpha/backend/pkg/logger"
)

// summaryTopN bounds how many candidates ride in one webhook payload.
const summaryTopN = 10

// Webhook posts a ranked summary to every configured URL. Delivery is
// best effort: failures are logged and never bubble up to the pipeline.
type Webhook struct {
	client *httputil.Client
	urls   []string
	logger *logger.Logger
}

// New creates the webhook notifier. Returns nil when no URLs are
// configured so callers can treat notification as absent.
func New(client *httputil.Client, cfg *config.Config, log *logger.Logger) *Webhook {
	if len(cfg.WebhookURLs) == 0 {
		return nil
	}
	return &Webhook{client: client, urls: cfg.WebhookURLs, logger: log}
}

// payload is the wire shape delivered to each webhook.
type payload struct {
	GeneratedAt time.Time   `json:"generated_at"`
	Degraded    bool        `json:"degraded"`
	Total       int         `json:"total"`
	Candidates  []candidate `json:"candidates"`
}

type candidate struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Signal    string  `json:"signal"`
	Score     float64 `json:"score"`
	BuyPrice  float64 `json:"buy_price"`
	Narrative string  `json:"narrative"`
}

// NotifyResult delivers the cycle summary to every URL. A failed URL does
// not stop delivery to the rest; the first error is returned for logging.
func (w *Webhook) NotifyResult(ctx context.Context, result *contracts.RankedResult) error {
	body := payload{
		GeneratedAt: result.GeneratedAt,
		Degraded:    result.Degraded,
		Total:       len(result.Candidates),
	}
	for _, rec := range result.TopN(summaryTopN) {
		body.Candidates = append(body.Candidates, candidate{
			Symbol:    rec.Symbol,
			Name:      rec.Name,
			Signal:    string(rec.Signal),
			Score:     rec.Score,
			BuyPrice:  rec.BuyPrice,
			Narrative: rec.Narrative,
		})
	}

	var firstErr error
	for _, url := range w.urls {
		resp, err := w.client.PostJSON(ctx, url, body)
		if err != nil {
			w.logger.WithFields(map[string]interface{}{
				"url":   url,
				"error": err.Error(),
			}).Warn("Webhook delivery failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		resp.Body.Close()
		w.logger.WithFields(map[string]interface{}{
			"url":    url,
			"status": resp.StatusCode,
		}).Debug("Webhook delivered")
	}
	return firstErr
}
