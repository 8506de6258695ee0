// Package fetcher implements the upstream HTTP scrape and JSONP parse
// described in the spec's upstream fetcher component.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"time"

	"github.com/gencurrent/async-socket-exchange-rate/internal/rpcerr"
)

const fetchTimeout = 2500 * time.Millisecond

var envelopeRegexp = regexp.MustCompile(`(?s)^null\((.*)\);$`)

// RateDTO is one element of the upstream Rates array. Additional
// fields on the upstream payload (Spread, ProductType, 52-week
// high/low, ...) are tolerated and ignored by the json decoder.
type RateDTO struct {
	Symbol string  `json:"Symbol"`
	Bid    float64 `json:"Bid"`
	Ask    float64 `json:"Ask"`
}

// Mid returns the arithmetic mean of bid and ask, the value persisted
// for an observation.
func (d RateDTO) Mid() float64 {
	return (d.Bid + d.Ask) / 2
}

type envelope struct {
	Rates []RateDTO `json:"Rates"`
}

// Fetcher holds the single reusable HTTP client used by every
// ingestion worker, keeping connections alive across ticks.
type Fetcher struct {
	url    string
	client *http.Client
}

// New builds a Fetcher with a 2.5s connect timeout and a 2.5s overall
// request timeout, backed by one shared keep-alive transport.
func New(url string) *Fetcher {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: fetchTimeout,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Fetcher{
		url: url,
		client: &http.Client{
			Transport: transport,
			Timeout:   fetchTimeout,
		},
	}
}

// FetchRates performs the HTTP GET, strips the JSONP envelope and
// decodes the Rates array. Any transport error is reported as
// rpcerr.ErrUpstreamTimeout; any shape mismatch as rpcerr.ErrUpstreamFormat.
func (f *Fetcher) FetchRates(ctx context.Context) ([]RateDTO, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rates: %w", rpcerr.ErrUpstreamTimeout)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", rpcerr.ErrUpstreamTimeout)
	}

	match := envelopeRegexp.FindSubmatch(body)
	if match == nil {
		return nil, fmt.Errorf("envelope did not match null(...); shape: %w", rpcerr.ErrUpstreamFormat)
	}

	var env envelope
	if err := json.Unmarshal(match[1], &env); err != nil {
		return nil, fmt.Errorf("decode rates json: %w", rpcerr.ErrUpstreamFormat)
	}
	if env.Rates == nil {
		return nil, fmt.Errorf("Rates field absent or not an array: %w", rpcerr.ErrUpstreamFormat)
	}

	return env.Rates, nil
}
