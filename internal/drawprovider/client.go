// Package drawprovider fetches official lottery results over HTTP.
package drawprovider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/R3E-Network/lotterybets/pkg/logger"
	"github.com/R3E-Network/lotterybets/services/bets"
)

// DefaultEndpoint serves /{modality}/{contest} and /{modality}/ultimo.
const DefaultEndpoint = "https://api.guidi.dev.br/loteria"

const maxPayloadBytes = 1 << 20

// Client implements bets.Provider against a REST results API.
type Client struct {
	client   *http.Client
	endpoint *url.URL
	limiter  *rate.Limiter
	log      *logger.Logger
}

// NewClient constructs a provider client. rps <= 0 disables client-side rate limiting.
func NewClient(client *http.Client, endpoint string, rps float64, log *logger.Logger) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse provider endpoint: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("provider endpoint must be http(s): %s", endpoint)
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("drawprovider")
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}

	return &Client{
		client:   client,
		endpoint: parsed,
		limiter:  limiter,
		log:      log,
	}, nil
}

// GetResult fetches the raw result of a contest. contest 0 asks for the latest one.
func (c *Client) GetResult(ctx context.Context, modalityID string, contest int) ([]byte, error) {
	game := bets.NormalizeModalityID(modalityID)
	if game == "" {
		return nil, fmt.Errorf("modality id required")
	}
	ref := "ultimo"
	if contest > 0 {
		ref = strconv.Itoa(contest)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	requestURL := *c.endpoint
	requestURL.Path = path.Join(requestURL.Path, game, ref)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s/%s", bets.ErrResultNotFound, game, ref)
	case resp.StatusCode != http.StatusOK:
		c.log.WithField("modality", game).
			WithField("contest", ref).
			WithField("status", resp.StatusCode).
			Warn("draw provider returned unexpected status")
		return nil, fmt.Errorf("provider status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, fmt.Errorf("read provider response: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, fmt.Errorf("%w: empty body for %s/%s", bets.ErrResultNotFound, game, ref)
	}
	return body, nil
}

// Draw fetches and normalizes one contest of a modality. contest 0 asks for the latest one.
func (c *Client) Draw(ctx context.Context, modalityID string, contest int) (bets.DrawResult, error) {
	payload, err := c.GetResult(ctx, modalityID, contest)
	if err != nil {
		return bets.DrawResult{}, err
	}
	result, err := bets.NormalizeDrawResult(payload)
	if err != nil {
		return bets.DrawResult{}, err
	}
	if contest > 0 && result.ContestNumber != 0 && result.ContestNumber != contest {
		return bets.DrawResult{}, fmt.Errorf("%w: provider answered contest %d for %d",
			bets.ErrNotYetDrawn, result.ContestNumber, contest)
	}
	return result, nil
}

// Latest fetches and normalizes the most recent drawn contest of a modality.
func (c *Client) Latest(ctx context.Context, modalityID string) (bets.DrawResult, error) {
	return c.Draw(ctx, modalityID, 0)
}
