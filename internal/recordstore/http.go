package recordstore

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
)

// DefaultTimeout bounds every request to the hosted store.
const DefaultTimeout = 15 * time.Second

// HTTPStore is the Airtable-dialect REST client.  Each call is bounded by
// the configured timeout; a deadline hit is reported as ErrTimeout.
type HTTPStore struct {
	baseURL string
	token   string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPStore builds a client for {apiURL}/{baseID}.
func NewHTTPStore(apiURL, baseID, token string, timeout time.Duration) *HTTPStore {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPStore{
		baseURL: strings.TrimRight(apiURL, "/") + "/" + url.PathEscape(baseID),
		token:   token,
		timeout: timeout,
		client:  &http.Client{},
	}
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset"`
}

type createRequest struct {
	Records []struct {
		Fields Fields `json:"fields"`
	} `json:"records"`
}

// List follows the offset cursor until all matching records are read or
// MaxRecords is reached.
func (s *HTTPStore) List(ctx context.Context, table string, opts ListOptions) ([]Record, error) {
	var out []Record
	offset := ""
	for {
		q := url.Values{}
		if f := opts.Filter.Formula(); f != "" {
			q.Set("filterByFormula", f)
		}
		if opts.MaxRecords > 0 {
			q.Set("maxRecords", strconv.Itoa(opts.MaxRecords))
		}
		if offset != "" {
			q.Set("offset", offset)
		}
		var page listResponse
		if err := s.do(ctx, http.MethodGet, s.tableURL(table, "")+"?"+q.Encode(), nil, &page); err != nil {
			return nil, err
		}
		out = append(out, page.Records...)
		if page.Offset == "" || (opts.MaxRecords > 0 && len(out) >= opts.MaxRecords) {
			break
		}
		offset = page.Offset
	}
	if opts.MaxRecords > 0 && len(out) > opts.MaxRecords {
		out = out[:opts.MaxRecords]
	}
	return out, nil
}

func (s *HTTPStore) Get(ctx context.Context, table, id string) (Record, error) {
	var rec Record
	err := s.do(ctx, http.MethodGet, s.tableURL(table, id), nil, &rec)
	return rec, err
}

func (s *HTTPStore) Create(ctx context.Context, table string, fields Fields) (Record, error) {
	var body createRequest
	body.Records = append(body.Records, struct {
		Fields Fields `json:"fields"`
	}{Fields: fields})
	var resp listResponse
	if err := s.do(ctx, http.MethodPost, s.tableURL(table, ""), body, &resp); err != nil {
		return Record{}, err
	}
	if len(resp.Records) == 0 {
		return Record{}, &APIError{Status: http.StatusBadGateway, Type: "EMPTY_RESPONSE", Message: "create returned no records"}
	}
	return resp.Records[0], nil
}

func (s *HTTPStore) Update(ctx context.Context, table, id string, fields Fields) (Record, error) {
	var rec Record
	err := s.do(ctx, http.MethodPatch, s.tableURL(table, id), map[string]any{"fields": fields}, &rec)
	return rec, err
}

func (s *HTTPStore) Delete(ctx context.Context, table, id string) error {
	return s.do(ctx, http.MethodDelete, s.tableURL(table, id), nil, nil)
}

func (s *HTTPStore) tableURL(table, id string) string {
	u := s.baseURL + "/" + url.PathEscape(table)
	if id != "" {
		u += "/" + url.PathEscape(id)
	}
	return u
}

// do executes one request under the store timeout and decodes the JSON
// answer into out when non-nil.
func (s *HTTPStore) do(ctx context.Context, method, u string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("recordstore: encode body: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("recordstore: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return fmt.Errorf("recordstore: %s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return fmt.Errorf("recordstore: read body: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 300 {
		return decodeAPIError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("recordstore: decode response: %w", err)
	}
	return nil
}

// decodeAPIError understands both {"error":"TYPE"} and
// {"error":{"type":"...","message":"..."}} bodies.
func decodeAPIError(status int, raw []byte) error {
	apiErr := &APIError{Status: status}
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(raw, &envelope) == nil && len(envelope.Error) > 0 {
		var detail struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		}
		if json.Unmarshal(envelope.Error, &detail) == nil {
			apiErr.Type, apiErr.Message = detail.Type, detail.Message
		} else {
			_ = json.Unmarshal(envelope.Error, &apiErr.Type)
		}
	}
	if apiErr.Type == "" {
		apiErr.Type = http.StatusText(status)
	}
	return apiErr
}
