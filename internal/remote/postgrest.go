package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Client is a resty-backed Store implementation speaking the hosted
// backend's REST conventions.
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger

	pollInterval time.Duration

	mu         sync.Mutex
	handlers   map[string]map[int]func([]byte) // channel|event -> handlers
	nextHandle int
}

// apiError mirrors the backend's error payload.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// NewClient builds a Store client from the connection secrets.
func NewClient(baseURL, anonKey string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := strings.TrimSuffix(baseURL, "/")

	restyClient := resty.New()
	restyClient.
		SetBaseURL(base).
		SetHeader("apikey", anonKey).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", anonKey)).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)

	return &Client{
		httpClient:   restyClient,
		logger:       logger,
		pollInterval: 10 * time.Second,
		handlers:     make(map[string]map[int]func([]byte)),
	}
}

// SetAccessToken switches the Authorization header to a signed-in user's
// token so row-level security applies to their role.
func (c *Client) SetAccessToken(token string) {
	c.httpClient.SetHeader("Authorization", fmt.Sprintf("Bearer %s", token))
}

func (c *Client) Select(ctx context.Context, table string, filter Filter) ([]Row, error) {
	var rows []Row
	apiErr := new(apiError)

	req := c.httpClient.R().
		SetContext(ctx).
		SetResult(&rows).
		SetError(apiErr).
		SetQueryParam("select", "*")
	applyFilter(req, filter)

	resp, err := req.Get(fmt.Sprintf("/rest/v1/%s", table))
	if err != nil {
		return nil, &StoreError{Kind: KindNetwork, Table: table, Message: err.Error()}
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return nil, storeErrorFrom(table, resp.StatusCode(), apiErr)
	}
	return rows, nil
}

func (c *Client) Insert(ctx context.Context, table string, rows []Row) error {
	apiErr := new(apiError)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=minimal").
		SetBody(rows).
		SetError(apiErr).
		Post(fmt.Sprintf("/rest/v1/%s", table))
	if err != nil {
		return &StoreError{Kind: KindNetwork, Table: table, Message: err.Error()}
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return storeErrorFrom(table, resp.StatusCode(), apiErr)
	}
	return nil
}

func (c *Client) Update(ctx context.Context, table string, id string, patch Row) error {
	apiErr := new(apiError)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=minimal").
		SetQueryParam("id", "eq."+id).
		SetBody(patch).
		SetError(apiErr).
		Patch(fmt.Sprintf("/rest/v1/%s", table))
	if err != nil {
		return &StoreError{Kind: KindNetwork, Table: table, Message: err.Error()}
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return storeErrorFrom(table, resp.StatusCode(), apiErr)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, table string, id string) error {
	apiErr := new(apiError)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("id", "eq."+id).
		SetError(apiErr).
		Delete(fmt.Sprintf("/rest/v1/%s", table))
	if err != nil {
		return &StoreError{Kind: KindNetwork, Table: table, Message: err.Error()}
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return storeErrorFrom(table, resp.StatusCode(), apiErr)
	}
	return nil
}

func (c *Client) Count(ctx context.Context, table string, filter Filter) (int, error) {
	req := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Prefer", "count=exact")
	applyFilter(req, filter)

	resp, err := req.Head(fmt.Sprintf("/rest/v1/%s", table))
	if err != nil {
		return 0, &StoreError{Kind: KindNetwork, Table: table, Message: err.Error()}
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return 0, &StoreError{Kind: KindValidation, Table: table, Message: resp.Status()}
	}

	// Content-Range: 0-24/3573
	parts := strings.Split(resp.Header().Get("Content-Range"), "/")
	if len(parts) != 2 {
		return 0, &StoreError{Kind: KindValidation, Table: table, Message: "missing content-range header"}
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, &StoreError{Kind: KindValidation, Table: table, Message: "bad content-range: " + parts[1]}
	}
	return n, nil
}

// Subscribe polls the table's updated_at cursor and reports rows changed
// since the previous pass. The socket transport can replace this without
// touching consumers.
func (c *Client) Subscribe(ctx context.Context, table string, fn func(Change)) (func(), error) {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()
		cursor := time.Now().UTC()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
			}
			rows, err := c.Select(ctx, table, Filter{"updated_at": "gt." + cursor.Format(time.RFC3339Nano)})
			if err != nil {
				c.logger.Debug("subscription poll failed", zap.String("table", table), zap.Error(err))
				continue
			}
			cursor = time.Now().UTC()
			for _, row := range rows {
				fn(Change{Table: table, Row: row})
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(stop) }) }, nil
}

func (c *Client) Broadcast(ctx context.Context, channel, event string, payload any) error {
	apiErr := new(apiError)
	body := map[string]any{
		"messages": []map[string]any{
			{"topic": channel, "event": event, "payload": payload},
		},
	}
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(body).
		SetError(apiErr).
		Post("/realtime/v1/api/broadcast")
	if err != nil {
		return &StoreError{Kind: KindNetwork, Table: channel, Message: err.Error()}
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return storeErrorFrom(channel, resp.StatusCode(), apiErr)
	}

	c.deliverLocal(channel, event, payload)
	return nil
}

// deliverLocal hands a published message to this process's own handlers; the
// broadcast endpoint does not echo messages back to the sender.
func (c *Client) deliverLocal(channel, event string, payload any) {
	c.mu.Lock()
	handlers := make([]func([]byte), 0, len(c.handlers[channel+"|"+event]))
	for _, fn := range c.handlers[channel+"|"+event] {
		handlers = append(handlers, fn)
	}
	c.mu.Unlock()
	if len(handlers) == 0 {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		c.logger.Warn("broadcast payload not marshalable", zap.Error(err))
		return
	}
	for _, fn := range handlers {
		fn(data)
	}
}

// OnBroadcast registers a handler for a channel/event pair. Over the plain
// HTTP transport only loopback delivery is available; cross-client delivery
// arrives once the socket transport is plugged in.
func (c *Client) OnBroadcast(channel, event string, fn func(payload []byte)) func() {
	key := channel + "|" + event
	c.mu.Lock()
	if c.handlers[key] == nil {
		c.handlers[key] = make(map[int]func([]byte))
	}
	handle := c.nextHandle
	c.nextHandle++
	c.handlers[key][handle] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers[key], handle)
	}
}

func storeErrorFrom(table string, status int, apiErr *apiError) *StoreError {
	message := apiErr.Message
	if message == "" {
		message = fmt.Sprintf("status %d", status)
	}
	return &StoreError{
		Kind:    classify(status, apiErr.Code, message),
		Table:   table,
		Message: message,
	}
}

func applyFilter(req *resty.Request, filter Filter) {
	for col, val := range filter {
		s := toString(val)
		// Callers may pass pre-built operators ("gt.2024-01-01"); bare
		// values default to equality.
		if !hasOperatorPrefix(s) {
			s = "eq." + s
		}
		req.SetQueryParam(col, s)
	}
}

func hasOperatorPrefix(s string) bool {
	for _, op := range []string{"eq.", "gt.", "gte.", "lt.", "lte.", "neq.", "like.", "in."} {
		if strings.HasPrefix(s, op) {
			return true
		}
	}
	return false
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}
