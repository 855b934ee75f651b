// Package client is a Go client for the reserve HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"flashreserve/crypto"
	"flashreserve/native/reserve"
	"flashreserve/rpc"
	"flashreserve/storage/history"
)

const defaultTimeout = 30 * time.Second

// Error is a failed call decoded from the server's error envelope.
type Error struct {
	Status int
	rpc.ErrorBody
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc %d %s: %s", e.Status, e.Code, e.Message)
}

// Client talks to one reserve server. Mutating calls need a signing key.
type Client struct {
	base string
	http *http.Client
	key  *crypto.PrivateKey
	now  func() time.Time
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

func WithKey(key *crypto.PrivateKey) Option { return func(c *Client) { c.key = key } }

func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: defaultTimeout},
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Address is the caller address of signed requests.
func (c *Client) Address() (crypto.Address, error) {
	if c.key == nil {
		return crypto.Address{}, errors.New("client: no signing key")
	}
	return c.key.PubKey().Address(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if w, ok := out.(io.Writer); ok {
		_, err = io.Copy(w, resp.Body)
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var envelope struct {
		Error rpc.ErrorBody `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Error.Code == "" {
		return &Error{Status: resp.StatusCode, ErrorBody: rpc.ErrorBody{
			Code:    "http_error",
			Message: strings.TrimSpace(string(data)),
		}}
	}
	return &Error{Status: resp.StatusCode, ErrorBody: envelope.Error}
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	if c.key == nil {
		return errors.New("client: signing key required")
	}
	env, err := rpc.Sign(c.key, path, body, c.now())
	if err != nil {
		return err
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(payload), out)
}

func (c *Client) Config(ctx context.Context) (*rpc.ConfigView, error) {
	out := new(rpc.ConfigView)
	return out, c.get(ctx, "/v1/config", out)
}

func (c *Client) Snapshot(ctx context.Context) (*reserve.Snapshot, error) {
	out := new(reserve.Snapshot)
	return out, c.get(ctx, "/v1/snapshot", out)
}

func (c *Client) Quote(ctx context.Context, amount uint64) (*reserve.FeeQuote, error) {
	out := new(reserve.FeeQuote)
	return out, c.get(ctx, "/v1/quote?amount="+strconv.FormatUint(amount, 10), out)
}

func (c *Client) Record(ctx context.Context, addr crypto.Address) (*rpc.RecordView, error) {
	out := new(rpc.RecordView)
	return out, c.get(ctx, "/v1/records/"+addr.String(), out)
}

func (c *Client) Holdings(ctx context.Context, addr crypto.Address) (*reserve.Holdings, error) {
	out := new(reserve.Holdings)
	return out, c.get(ctx, "/v1/holdings/"+addr.String(), out)
}

func (c *Client) Receivers(ctx context.Context) ([]crypto.Address, error) {
	var out rpc.ReceiversResponse
	if err := c.get(ctx, "/v1/receivers", &out); err != nil {
		return nil, err
	}
	return out.Receivers, nil
}

func historyQuery(f history.Filter) url.Values {
	q := url.Values{}
	if f.Type != "" {
		q.Set("type", f.Type)
	}
	if f.Actor != "" {
		q.Set("actor", f.Actor)
	}
	if f.AfterID > 0 {
		q.Set("after", strconv.FormatUint(f.AfterID, 10))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return q
}

func (c *Client) History(ctx context.Context, f history.Filter) ([]history.Entry, error) {
	var out []history.Entry
	path := "/v1/history"
	if q := historyQuery(f).Encode(); q != "" {
		path += "?" + q
	}
	return out, c.get(ctx, path, &out)
}

// ExportHistory streams the matching journal entries to w as parquet.
func (c *Client) ExportHistory(ctx context.Context, w io.Writer, f history.Filter) error {
	q := historyQuery(f)
	q.Set("format", "parquet")
	return c.get(ctx, "/v1/history?"+q.Encode(), w)
}

func (c *Client) Stake(ctx context.Context, amount uint64) (*reserve.StakeReceipt, error) {
	out := new(reserve.StakeReceipt)
	return out, c.post(ctx, "/v1/stake", rpc.AmountRequest{Amount: amount}, out)
}

func (c *Client) Unstake(ctx context.Context, claim uint64) (*reserve.UnstakeReceipt, error) {
	out := new(reserve.UnstakeReceipt)
	return out, c.post(ctx, "/v1/unstake", rpc.AmountRequest{Amount: claim}, out)
}

func (c *Client) Harvest(ctx context.Context, claim uint64) (*reserve.HarvestReceipt, error) {
	out := new(reserve.HarvestReceipt)
	return out, c.post(ctx, "/v1/harvest", rpc.AmountRequest{Amount: claim}, out)
}

func (c *Client) FlashLoan(ctx context.Context, req rpc.FlashLoanRequest) (*reserve.FlashLoanReceipt, error) {
	out := new(reserve.FlashLoanReceipt)
	return out, c.post(ctx, "/v1/flash-loan", req, out)
}

// Admin runs the named admin operation and returns the updated configuration.
func (c *Client) Admin(ctx context.Context, op string, req rpc.AdminRequest) (*rpc.ConfigView, error) {
	out := new(rpc.ConfigView)
	return out, c.post(ctx, "/v1/admin/"+url.PathEscape(op), req, out)
}

func (c *Client) Faucet(ctx context.Context) (*rpc.FundResponse, error) {
	out := new(rpc.FundResponse)
	return out, c.post(ctx, "/v1/faucet", struct{}{}, out)
}
