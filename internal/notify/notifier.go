// Package notify fans out fire-and-forget vote notifications. Delivery
// failures are logged and never roll back settlement; the calls are
// asynchronous and must not sit on the settlement path.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/votechain/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Notifier interface {
	NotifyVoteRecorded(businessID snowflake.ID, proposalID string)
}

type NoOpNotifier struct{}

func (NoOpNotifier) NotifyVoteRecorded(businessID snowflake.ID, proposalID string) {}

type webhookNotifier struct {
	url  string
	http *http.Client
	log  *zap.Logger
}

func New(cfg config.Config, log *zap.Logger) Notifier {
	if cfg.NotifyWebhookURL == "" {
		return NoOpNotifier{}
	}
	return &webhookNotifier{
		url:  cfg.NotifyWebhookURL,
		http: &http.Client{Timeout: 5 * time.Second},
		log:  log.Named("notify.webhook"),
	}
}

func (n *webhookNotifier) NotifyVoteRecorded(businessID snowflake.ID, proposalID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		payload, err := json.Marshal(map[string]string{
			"event":       "vote.recorded",
			"business_id": businessID.String(),
			"proposal_id": proposalID,
		})
		if err != nil {
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.http.Do(req)
		if err != nil {
			n.log.Warn("vote notification failed",
				zap.String("business_id", businessID.String()),
				zap.Error(err),
			)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			n.log.Warn("vote notification rejected",
				zap.String("business_id", businessID.String()),
				zap.Int("status", resp.StatusCode),
			)
		}
	}()
}

var Module = fx.Module("notify",
	fx.Provide(New),
)
