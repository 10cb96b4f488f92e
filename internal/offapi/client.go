// Package offapi is a client for the Open Food Facts analytic query
// endpoint, a hosted SQL-over-HTTP service over the public product database.
package offapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"novawatch/internal/assert"
	"novawatch/internal/components/telemetry"
	"novawatch/internal/offsql"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const DefaultBaseUrl = "https://mirabelle.openfoodfacts.org/products.json"

const (
	report_client_query  = "client.query"
	report_client_decode = "client.decode"
	report_client_rows   = "client.rows"
)

// StatusError is returned when the endpoint answers with a non-2xx status.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("query endpoint returned %s", e.Status)
}

// Row is one flat object of the response array.
type Row map[string]any

// String renders a cell as text, null and missing cells are empty. Numbers
// keep the exact textual form they had in the response.
func (r Row) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Int parses a cell as an integer, it accepts integral floats ("12.0").
func (r Row) Int(key string) (int, error) {
	text := r.String(key)
	n, err := strconv.Atoi(text)
	if err == nil {
		return n, nil
	}
	f, ferr := strconv.ParseFloat(text, 64)
	if ferr != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("%s: %q is not an integer", key, text)
	}
	return int(f), nil
}

type Options struct {
	// defaults to DefaultBaseUrl
	BaseUrl   string
	UserAgent string
	// maximum requests per second, 0 means unlimited
	RequestsPerSecond float64
	// if set, every request/response pair is written here
	MessageOutput telemetry.MessageOutput
}

type Client struct {
	baseUrl string
	http    *resty.Client
	tel     telemetry.API
}

func NewClient(opts Options, tel telemetry.API) (*Client, error) {
	assert.NotNil(tel, "telemetry")

	tel = telemetry.NewScopedAPI("offapi", tel)

	baseUrl := opts.BaseUrl
	if baseUrl == "" {
		baseUrl = DefaultBaseUrl
	}
	parsed, err := url.Parse(baseUrl)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseUrl)
	}

	httpClient := resty.New()
	httpClient.SetHeader("accept", "application/json")
	if opts.UserAgent != "" {
		httpClient.SetHeader("user-agent", opts.UserAgent)
	}

	if opts.RequestsPerSecond > 0 {
		// burst of 1, requests are made one after another anyways
		limiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(httpClient, tel, opts.MessageOutput)

	return &Client{
		baseUrl: baseUrl,
		http:    httpClient,
		tel:     tel,
	}, nil
}

// Query runs q against the endpoint and returns the rows of the response.
func (c *Client) Query(ctx context.Context, q offsql.Query) ([]Row, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(q.Values()).
		Get(c.baseUrl)
	if err != nil {
		c.tel.ReportBroken(report_client_query, err)
		return nil, fmt.Errorf("query endpoint: %w", err)
	}
	if !res.IsSuccess() {
		c.tel.ReportBroken(report_client_query, res.Status())
		return nil, &StatusError{Code: res.StatusCode(), Status: res.Status()}
	}

	rows, err := decodeRows(res.Body())
	if err != nil {
		c.tel.ReportBroken(report_client_decode, err)
		return nil, err
	}
	c.tel.ReportCount(report_client_rows, int64(len(rows)))
	return rows, nil
}

func decodeRows(body []byte) ([]Row, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var rows []Row
	err := dec.Decode(&rows)
	if err != nil {
		return nil, fmt.Errorf("decode response array: %w", err)
	}
	return rows, nil
}
