// Package explorer is a client for Etherscan-compatible contract verification APIs.
package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the unified Etherscan v2 endpoint serving every chain
const DefaultBaseURL = "https://api.etherscan.io/v2/api"

// Status values returned by the API
const (
	StatusOK    = "1"
	StatusError = "0"
)

// Poll results with special meaning
const (
	ResultVerified = "Pass - Verified"
	resultFailTag  = "Fail"
)

// Verification settings sent with every submission. They mirror the
// settings the compiler adapter builds with.
const (
	codeFormatSingleFile = "solidity-single-file"
	optimizationUsed     = "1"
	optimizerRuns        = "200"
)

// Client talks to an Etherscan-compatible API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithRateLimit bounds outgoing requests per second. Free API keys allow 5.
func WithRateLimit(perSecond float64) Option {
	return func(client *Client) {
		if perSecond > 0 {
			client.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// New creates a new explorer client
func New(baseURL, apiKey string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// SubmitRequest is a single-file source verification submission
type SubmitRequest struct {
	ChainID         int
	Address         string
	SourceCode      string
	ContractName    string
	CompilerVersion string // normalized with NormalizeCompilerVersion
	ConstructorArgs string // ABI-encoded, no 0x prefix
}

// Response is the envelope every API call returns
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  string `json:"result"`
}

// OK reports whether the API accepted the call
func (r *Response) OK() bool {
	return r.Status == StatusOK
}

// Verified reports whether a status poll found the contract verified
func (r *Response) Verified() bool {
	return r.Result == ResultVerified
}

// Failed reports whether a status poll found verification rejected
func (r *Response) Failed() bool {
	return strings.Contains(r.Result, resultFailTag)
}

// UnmarshalJSON tolerates non-string result fields, which some
// explorers return on errors.
func (r *Response) UnmarshalJSON(data []byte) error {
	var raw struct {
		Status  json.RawMessage `json:"status"`
		Message string          `json:"message"`
		Result  json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Status = rawString(raw.Status)
	r.Message = raw.Message
	r.Result = rawString(raw.Result)
	return nil
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Submit posts source code for verification. On acceptance the
// response Result holds the GUID to poll.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*Response, error) {
	form := url.Values{
		"apikey":                {c.apiKey},
		"module":                {"contract"},
		"action":                {"verifysourcecode"},
		"contractaddress":       {req.Address},
		"sourceCode":            {req.SourceCode},
		"codeformat":            {codeFormatSingleFile},
		"contractname":          {req.ContractName},
		"compilerversion":       {req.CompilerVersion},
		"optimizationUsed":      {optimizationUsed},
		"runs":                  {optimizerRuns},
		"constructorArguements": {req.ConstructorArgs}, // sic, the API's spelling
	}

	endpoint := c.baseURL + "?chainid=" + strconv.Itoa(req.ChainID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(httpReq)
}

// CheckStatus polls the state of a submission
func (c *Client) CheckStatus(ctx context.Context, chainID int, guid string) (*Response, error) {
	query := url.Values{
		"apikey":  {c.apiKey},
		"chainid": {strconv.Itoa(chainID)},
		"module":  {"contract"},
		"action":  {"checkverifystatus"},
		"guid":    {guid},
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return c.do(httpReq)
}

func (c *Client) do(req *http.Request) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}

	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading explorer response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("explorer HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decoding explorer response: %w", err)
	}
	return &out, nil
}
