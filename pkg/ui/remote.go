// Package ui provides the Bubble Tea dashboard for the prediction market AMM.
package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"

	"github.com/fd1az/prediction-amm/business/amm/domain"
	market "github.com/fd1az/prediction-amm/business/market/domain"
	"github.com/fd1az/prediction-amm/internal/httpclient"
	"github.com/fd1az/prediction-amm/internal/logger"
	"github.com/fd1az/prediction-amm/internal/wsconn"
	"github.com/fd1az/prediction-amm/pkg/ui/components"
)

// Watch subscribes to a remote /ws event stream and hands every event to
// onEvent until ctx is done. The connection is redialled after drops.
func Watch(ctx context.Context, url string, onEvent func(domain.Event), onState func(state, detail string), log logger.LoggerInterface) error {
	if log == nil {
		log = logger.Discard()
	}

	client, err := wsconn.New(wsconn.DefaultConfig(url, "engine"))
	if err != nil {
		return err
	}
	defer client.Close()

	client.OnMessage(func(ctx context.Context, msg []byte) {
		var e domain.Event
		if err := json.Unmarshal(msg, &e); err != nil {
			log.Warn(ctx, "skipping malformed event", "error", err)
			return
		}
		onEvent(e)
	})
	client.OnStateChange(func(state wsconn.State, err error) {
		detail := ""
		if err != nil {
			detail = err.Error()
		}
		onState(string(state), detail)
	})

	if err := client.Connect(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

// HTTPBase derives the API base URL from a /ws stream URL.
func HTTPBase(wsURL string) (string, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	case "http", "https":
	default:
		return "", fmt.Errorf("ui: unsupported stream scheme %q", u.Scheme)
	}
	u.Path, u.RawQuery, u.Fragment = "", "", ""
	return u.String(), nil
}

type remoteSummary struct {
	Market struct {
		ID      uint64         `json:"id"`
		Quest   string         `json:"quest"`
		Outcome market.Outcome `json:"outcome"`
		Expired bool           `json:"expired"`
	} `json:"market"`
	PriceYes decimal.Decimal `json:"priceYes"`
	PriceNo  decimal.Decimal `json:"priceNo"`
	TotalLP  decimal.Decimal `json:"totalLp"`
	Holders  int             `json:"holders"`
}

// RemoteMarkets reads the market list of a remote engine over its HTTP API.
type RemoteMarkets struct {
	client httpclient.Client
}

// NewRemoteMarkets creates a reader for the engine at baseURL.
func NewRemoteMarkets(baseURL string) (*RemoteMarkets, error) {
	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithBaseURL(baseURL),
		httpclient.WithProviderName("engine"),
		httpclient.WithRequestTimeout(5*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &RemoteMarkets{client: client}, nil
}

// Markets fetches GET /api/markets as table rows. The remote list carries no
// collateral totals, so Liquidity shows the LP supply.
func (r *RemoteMarkets) Markets(ctx context.Context, now time.Time) ([]components.MarketRow, error) {
	var summaries []remoteSummary
	_, err := r.client.NewRequestWithOptions(
		httpclient.WithLabels(httpclient.Label{Key: "endpoint", Value: "markets"}),
	).
		SetResult(&summaries).
		Get(ctx, "/api/markets")
	if err != nil {
		return nil, err
	}

	rows := make([]components.MarketRow, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, components.MarketRow{
			ID:        s.Market.ID,
			Quest:     s.Market.Quest,
			PriceYes:  s.PriceYes,
			PriceNo:   s.PriceNo,
			Liquidity: s.TotalLP,
			Holders:   s.Holders,
			Outcome:   s.Market.Outcome.String(),
			Expired:   s.Market.Expired,
			UpdatedAt: now,
		})
	}
	return rows, nil
}

// PollRemote sends a SnapshotMsg from the remote engine immediately and then
// every interval until ctx is done. Failed polls are reported as ErrorMsg.
func PollRemote(ctx context.Context, src *RemoteMarkets, interval time.Duration, now func() time.Time, send func(tea.Msg)) {
	push := func() {
		at := now()
		rows, err := src.Markets(ctx, at)
		if err != nil {
			if ctx.Err() == nil {
				send(ErrorMsg{Error: err})
			}
			return
		}
		send(SnapshotMsg{Markets: rows, At: at})
	}

	push()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			push()
		}
	}
}
