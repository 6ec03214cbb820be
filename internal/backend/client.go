// Package backend talks to the franchise operations API: the chat assistant,
// the voice command endpoint and the weather lookup.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	log "log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	QueryPath   = "/api/chatbot/query"
	VoicePath   = "/api/voice/command"
	WeatherPath = "/api/weather/"

	maxBody = 1 << 20
)

// Answerer produces a reply for a question the local resolver could not
// handle.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

type Client struct {
	base string
	http *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: httpClient,
	}
}

// Answer implements Answerer on top of Query.
func (c *Client) Answer(ctx context.Context, question string) (string, error) {
	return c.Query(ctx, question)
}

// Query asks the backend assistant. A reply without a non-empty string
// "answer" field is ErrMalformedReply.
func (c *Client) Query(ctx context.Context, question string) (string, error) {
	body, err := c.post(ctx, QueryPath, map[string]string{"question": question})
	if err != nil {
		return "", err
	}
	return stringField(QueryPath, body, "answer")
}

// VoiceCommand sends a spoken command and returns the reply to speak.
func (c *Client) VoiceCommand(ctx context.Context, query string) (string, error) {
	body, err := c.post(ctx, VoicePath, map[string]string{"query": query})
	if err != nil {
		return "", err
	}
	return stringField(VoicePath, body, "reply")
}

type WeatherAlert struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

type ForecastDay struct {
	Date          string  `json:"date"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Condition     string  `json:"condition"`
	Precipitation float64 `json:"precipitation"`
}

type Weather struct {
	City        string         `json:"city"`
	Temperature float64        `json:"temperature"`
	Condition   string         `json:"condition"`
	Humidity    float64        `json:"humidity"`
	WindSpeed   float64        `json:"wind_speed"`
	Visibility  float64        `json:"visibility"`
	Alerts      []WeatherAlert `json:"alerts"`
	Forecast    []ForecastDay  `json:"forecast"`
}

// Weather fetches current conditions for a city.
func (c *Client) Weather(ctx context.Context, city string) (Weather, error) {
	endpoint := WeatherPath + "?city=" + url.QueryEscape(city)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+endpoint, nil)
	if err != nil {
		return Weather{}, fmt.Errorf("build request: %w", err)
	}

	body, err := c.do(req, WeatherPath)
	if err != nil {
		return Weather{}, err
	}

	var w Weather
	if err := json.Unmarshal(body, &w); err != nil {
		return Weather{}, malformedErr(WeatherPath, err.Error())
	}
	if w.City == "" {
		w.City = city
	}
	return w, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, path)
}

func (c *Client) do(req *http.Request, path string) ([]byte, error) {
	log.Debug("Backend request", "method", req.Method, "path", path)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, networkErr(path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, networkErr(path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Endpoint: path}
	}

	return body, nil
}

func stringField(path string, body []byte, field string) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", malformedErr(path, "invalid json")
	}

	v := gjson.GetBytes(body, field)
	if v.Type != gjson.String || v.Str == "" {
		return "", malformedErr(path, "missing "+field)
	}
	return v.Str, nil
}
