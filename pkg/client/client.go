// Package client provides a Go client for the Contraforge API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Client is a Contraforge API client
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// New creates a new Contraforge client. Builds and verifications can take
// minutes, so the default timeout is generous.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// CompileRequest is the request for compiling a contract
type CompileRequest struct {
	SourceCode      string `json:"sourceCode"`
	ContractName    string `json:"contractName"`
	CompilerVersion string `json:"compilerVersion,omitempty"`
}

// TestRequest is the request for running a contract's tests
type TestRequest struct {
	SourceCode      string `json:"sourceCode"`
	ContractName    string `json:"contractName"`
	TestCode        string `json:"testCode"`
	CompilerVersion string `json:"compilerVersion,omitempty"`
}

// CompilationResult is the outcome of a compile. Failed compilations are
// results, not errors.
type CompilationResult struct {
	Success         bool            `json:"success"`
	ABI             json.RawMessage `json:"abi"`
	Bytecode        string          `json:"bytecode"`
	ContractName    string          `json:"contractName"`
	CompilerVersion string          `json:"compilerVersion"`
	Error           string          `json:"error,omitempty"`
}

// TestRecord is one test case result
type TestRecord struct {
	Name     string        `json:"name"`
	File     string        `json:"file,omitempty"`
	Status   string        `json:"status"`
	Duration time.Duration `json:"duration"`
	Reason   string        `json:"reason,omitempty"`
}

// TestOutcome is the outcome of a test run
type TestOutcome struct {
	Success bool         `json:"success"`
	Total   int          `json:"total"`
	Passed  int          `json:"passed"`
	Failed  int          `json:"failed"`
	Results []TestRecord `json:"results"`
	Error   string       `json:"error,omitempty"`
}

// ComplianceReport is the RWA compliance score of an ABI
type ComplianceReport struct {
	Compliant        bool     `json:"compliant"`
	Confidence       float64  `json:"confidence"`
	DetectedFeatures []string `json:"detectedFeatures"`
	Standard         string   `json:"standard,omitempty"`
}

// VerifyRequest is the request for verifying a deployed contract
type VerifyRequest struct {
	ContractAddress string `json:"contractAddress"`
	SourceCode      string `json:"sourceCode"`
	ContractName    string `json:"contractName"`
	CompilerVersion string `json:"compilerVersion,omitempty"`
	ConstructorArgs string `json:"constructorArgs,omitempty"`
	Network         string `json:"network,omitempty"`
}

// Verification session states
const (
	StateVerified = "verified"
	StateFailed   = "failed"
	StateTimedOut = "timed_out"
)

// Session is a verification session as reported by the server
type Session struct {
	GUID         string `json:"guid,omitempty"`
	Network      string `json:"network"`
	ChainID      int    `json:"chainId"`
	Address      string `json:"address"`
	ContractName string `json:"contractName"`
	State        string `json:"state"`
	Message      string `json:"message,omitempty"`
	Attempts     int    `json:"attempts"`
}

// Build is a recorded compile or test run
type Build struct {
	ID              string    `json:"id"`
	Kind            string    `json:"kind"`
	ContractName    string    `json:"contractName"`
	CompilerVersion string    `json:"compilerVersion"`
	SourceHash      string    `json:"sourceHash"`
	Success         bool      `json:"success"`
	Error           string    `json:"error,omitempty"`
	Passed          int       `json:"passed,omitempty"`
	Failed          int       `json:"failed,omitempty"`
	Cached          bool      `json:"cached,omitempty"`
	DurationMs      int64     `json:"durationMs"`
	CreatedAt       time.Time `json:"createdAt"`
}

// ListBuildsOptions filters build history
type ListBuildsOptions struct {
	Kind     string
	Contract string
	Limit    int
	Cursor   string
}

// ListBuildsResponse is a page of build history
type ListBuildsResponse struct {
	Data       []Build `json:"data"`
	HasMore    bool    `json:"hasMore"`
	NextCursor string  `json:"nextCursor,omitempty"`
}

// Verification is a recorded verification session
type Verification struct {
	ID              string    `json:"id"`
	GUID            string    `json:"guid,omitempty"`
	Network         string    `json:"network"`
	ChainID         int64     `json:"chainId"`
	Address         string    `json:"address"`
	ContractName    string    `json:"contractName"`
	CompilerVersion string    `json:"compilerVersion,omitempty"`
	State           string    `json:"state"`
	Message         string    `json:"message,omitempty"`
	Attempts        int       `json:"attempts"`
	CreatedAt       time.Time `json:"createdAt"`
}

// ListVerificationsResponse is a page of verification history
type ListVerificationsResponse struct {
	Data       []Verification `json:"data"`
	HasMore    bool           `json:"hasMore"`
	NextCursor string         `json:"nextCursor,omitempty"`
}

// APIError represents an API error response
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Compile compiles a contract
func (c *Client) Compile(ctx context.Context, req CompileRequest) (*CompilationResult, error) {
	var resp CompilationResult
	if err := c.post(ctx, "/api/v1/compile", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Test compiles a contract with its test file and runs the suite
func (c *Client) Test(ctx context.Context, req TestRequest) (*TestOutcome, error) {
	var resp TestOutcome
	if err := c.post(ctx, "/api/v1/test", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Score scores an ABI (or an artifact with an "abi" field)
func (c *Client) Score(ctx context.Context, abi json.RawMessage) (*ComplianceReport, error) {
	var resp ComplianceReport
	if err := c.post(ctx, "/api/v1/compliance", map[string]json.RawMessage{"abi": abi}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Verify submits a contract for verification and waits for the outcome.
// A failed or timed out verification is a session state, not an error.
func (c *Client) Verify(ctx context.Context, req VerifyRequest) (*Session, error) {
	var resp Session
	err := c.post(ctx, "/api/v1/verify", req, &resp, http.StatusAccepted, http.StatusUnprocessableEntity)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerificationStatus re-checks a submission, typically after a timeout
func (c *Client) VerificationStatus(ctx context.Context, network, guid string) (*Session, error) {
	var resp Session
	path := "/api/v1/verify/" + url.PathEscape(guid)
	if network != "" {
		path += "?network=" + url.QueryEscape(network)
	}
	if err := c.get(ctx, path, &resp, http.StatusAccepted, http.StatusUnprocessableEntity); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Networks lists the networks the server can verify on
func (c *Client) Networks(ctx context.Context) (map[string]int, error) {
	var resp struct {
		Networks map[string]int `json:"networks"`
	}
	if err := c.get(ctx, "/api/v1/networks", &resp); err != nil {
		return nil, err
	}
	return resp.Networks, nil
}

// GetBuild gets a recorded build by ID
func (c *Client) GetBuild(ctx context.Context, id string) (*Build, error) {
	var resp Build
	if err := c.get(ctx, "/api/v1/builds/"+url.PathEscape(id), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListBuilds lists recorded builds, newest first
func (c *Client) ListBuilds(ctx context.Context, opts ListBuildsOptions) (*ListBuildsResponse, error) {
	q := url.Values{}
	if opts.Kind != "" {
		q.Set("kind", opts.Kind)
	}
	if opts.Contract != "" {
		q.Set("contract", opts.Contract)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		q.Set("cursor", opts.Cursor)
	}

	var resp ListBuildsResponse
	if err := c.get(ctx, withQuery("/api/v1/builds", q), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListVerifications lists recorded verifications of an address, newest first
func (c *Client) ListVerifications(ctx context.Context, address string) (*ListVerificationsResponse, error) {
	q := url.Values{}
	if address != "" {
		q.Set("address", address)
	}

	var resp ListVerificationsResponse
	if err := c.get(ctx, withQuery("/api/v1/verifications", q), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

func (c *Client) get(ctx context.Context, path string, result any, okStatuses ...int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	return c.do(req, result, okStatuses)
}

func (c *Client) post(ctx context.Context, path string, body, result any, okStatuses ...int) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, result, okStatuses)
}

// do decodes 2xx responses and any status listed in okStatuses into result
func (c *Client) do(req *http.Request, result any, okStatuses []int) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && !slices.Contains(okStatuses, resp.StatusCode) {
		return parseError(resp)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var errResp struct {
		Error APIError `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Code == "" {
		return &APIError{StatusCode: resp.StatusCode, Code: "HTTP_" + strconv.Itoa(resp.StatusCode), Message: strings.TrimSpace(string(body))}
	}
	errResp.Error.StatusCode = resp.StatusCode
	return &errResp.Error
}
