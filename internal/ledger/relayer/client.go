// Package relayer implements the ledger client against the HTTP relayer
// service that fronts the chain.
package relayer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/smallbiznis/votechain/internal/config"
	ledgerdomain "github.com/smallbiznis/votechain/internal/ledger/domain"
	"go.uber.org/zap"
)

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *zap.Logger
}

func New(cfg config.Config, log *zap.Logger) ledgerdomain.Client {
	timeout := time.Duration(cfg.RelayerTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.RelayerBaseURL,
		apiKey:  cfg.RelayerAPIKey,
		http:    &http.Client{Timeout: timeout},
		log:     log.Named("ledger.relayer"),
	}
}

func (c *Client) DeployContract(ctx context.Context) (*ledgerdomain.DeployResult, error) {
	var result ledgerdomain.DeployResult
	if err := c.post(ctx, "/v1/contracts", map[string]any{}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) CreateRound(ctx context.Context, contractAddress, metadataURI string) (*ledgerdomain.RoundResult, error) {
	path := fmt.Sprintf("/v1/contracts/%s/rounds", url.PathEscape(contractAddress))
	var result ledgerdomain.RoundResult
	err := c.post(ctx, path, map[string]any{"metadata_uri": metadataURI}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) SubmitBatch(ctx context.Context, contractAddress string, roundIDs, voteIDs, signatures []string) (*ledgerdomain.SubmitResult, error) {
	if len(roundIDs) != len(voteIDs) || len(voteIDs) != len(signatures) {
		return nil, fmt.Errorf("submit batch: mismatched array lengths %d/%d/%d",
			len(roundIDs), len(voteIDs), len(signatures))
	}
	path := fmt.Sprintf("/v1/contracts/%s/batches", url.PathEscape(contractAddress))
	payload := map[string]any{
		"round_ids":  roundIDs,
		"vote_ids":   voteIDs,
		"signatures": signatures,
	}
	var result ledgerdomain.SubmitResult
	if err := c.post(ctx, path, payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) GetRoundEvents(ctx context.Context, contractAddress string) ([]ledgerdomain.RoundEvent, error) {
	path := fmt.Sprintf("/v1/contracts/%s/events/rounds", url.PathEscape(contractAddress))
	var events []ledgerdomain.RoundEvent
	if err := c.get(ctx, path, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *Client) GetVoteEvents(ctx context.Context, contractAddress string) ([]ledgerdomain.VoteEvent, error) {
	path := fmt.Sprintf("/v1/contracts/%s/events/votes", url.PathEscape(contractAddress))
	var events []ledgerdomain.VoteEvent
	if err := c.get(ctx, path, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ledgerdomain.ErrLedgerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn("relayer call failed",
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("%w: status %d: %s", ledgerdomain.ErrLedgerUnavailable, resp.StatusCode, string(snippet))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ledgerdomain.ErrLedgerUnavailable, err)
	}
	return nil
}
