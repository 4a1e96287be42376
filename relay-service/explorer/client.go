// Package explorer is a client for Etherscan-compatible block explorer APIs
// such as Polygonscan.
package explorer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/cosmwasm-lightclient/relayer/relay-service/eth"
)

const (
	DefaultRateLimit = 5
	DefaultTimeout   = 15 * time.Second

	// Responses larger than this are rejected.
	maxResponseSize = 64 << 20
)

type Client struct {
	log     log.Logger
	url     string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

type Option func(*Client)

// WithAPIKey sets the key sent as the apikey parameter.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithRateLimit caps the request rate. A non-positive rate disables the
// limit.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func NewClient(log log.Logger, apiURL string, opts ...Option) (*Client, error) {
	if _, err := url.ParseRequestURI(apiURL); err != nil {
		return nil, errors.Wrapf(err, "invalid explorer url %q", apiURL)
	}
	c := &Client{
		log:     log,
		url:     strings.TrimRight(apiURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BlockNumberByTime returns the last block produced at or before t.
func (c *Client) BlockNumberByTime(ctx context.Context, t time.Time) (uint64, error) {
	params := url.Values{
		"module":    {"block"},
		"action":    {"getblocknobytime"},
		"timestamp": {strconv.FormatInt(t.Unix(), 10)},
		"closest":   {"before"},
	}
	resp, err := c.get(ctx, params)
	if err != nil {
		return 0, err
	}
	if err := resp.err(); err != nil {
		return 0, err
	}
	// The block number is a decimal string, some deployments send a number.
	var s string
	if err := json.Unmarshal(resp.Result, &s); err != nil {
		s = string(resp.Result)
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid block number %q", s)
	}
	return n, nil
}

// Transactions lists the normal transactions sent to or from contract in
// the inclusive range [fromBlock, toBlock], newest first.
func (c *Client) Transactions(ctx context.Context, contract common.Address, fromBlock, toBlock uint64) ([]eth.Transaction, error) {
	params := url.Values{
		"module":     {"account"},
		"action":     {"txlist"},
		"address":    {contract.Hex()},
		"startblock": {strconv.FormatUint(fromBlock, 10)},
		"endblock":   {strconv.FormatUint(toBlock, 10)},
		"sort":       {"desc"},
	}
	resp, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}
	if resp.empty() {
		return nil, nil
	}
	if err := resp.err(); err != nil {
		return nil, err
	}
	var raw []Transaction
	if err := json.Unmarshal(resp.Result, &raw); err != nil {
		return nil, errors.Wrap(err, "failed to decode transaction list")
	}
	txs := make([]eth.Transaction, 0, len(raw))
	for i := range raw {
		tx, err := raw[i].ToEth()
		if err != nil {
			c.log.Warn("ignoring malformed explorer entry", "hash", raw[i].Hash, "err", err)
			continue
		}
		if tx.Input == nil && raw[i].Input != "" {
			c.log.Warn("explorer returned invalid calldata", "hash", tx.Hash)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func (c *Client) get(ctx context.Context, params url.Values) (*response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		params.Set("apikey", c.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "explorer request %s failed", params.Get("action"))
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, errors.Errorf("explorer request %s failed with status %s", params.Get("action"), res.Status)
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseSize))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read explorer response")
	}
	var out response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, errors.Wrap(err, "failed to decode explorer response")
	}
	c.log.Trace("explorer request", "action", params.Get("action"), "status", out.Status, "took", time.Since(start))
	return &out, nil
}
