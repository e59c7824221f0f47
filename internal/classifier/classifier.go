package classifier

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-hclog"
)

const (
	DefaultLabel  = "No issues detected"
	FailedMessage = "Failed to analyze code"
)

// Result is the normalized answer of the classification service. When the
// call fails only Error is set; callers must check Failed before reading
// Label or Confidence.
type Result struct {
	Label      string  `json:"label,omitempty"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error,omitempty"`
}

func (r Result) Failed() bool {
	return r.Error != ""
}

// MarshalJSON drops label and confidence from failure markers.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Failed() {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{Error: r.Error})
	}
	return json.Marshal(struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	}{Label: r.Label, Confidence: r.Confidence})
}

type prediction struct {
	Label *string  `json:"label"`
	Score *float64 `json:"score"`
}

type Client struct {
	http   *resty.Client
	url    string
	apiKey string
	logger hclog.Logger
}

func New(httpc *resty.Client, url string, apiKey string, logger hclog.Logger) *Client {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Client{
		http:   httpc,
		url:    strings.TrimSpace(url),
		apiKey: strings.TrimSpace(apiKey),
		logger: logger.Named("classifier"),
	}
}

// Classify sends text to the classification service. Failures never
// surface as errors; they produce a failure marker instead.
func (c *Client) Classify(ctx context.Context, text string) Result {
	if c.url == "" {
		c.logger.Warn("classifier endpoint not configured")
		return Result{Error: FailedMessage}
	}

	req := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"inputs": text})
	if c.apiKey != "" {
		req.SetAuthToken(c.apiKey)
	}

	resp, err := req.Post(c.url)
	if err != nil {
		c.logger.Warn("classification request failed", "error", err)
		return Result{Error: FailedMessage}
	}
	if resp.IsError() {
		c.logger.Warn("classification service returned an error", "status", resp.StatusCode())
		return Result{Error: FailedMessage}
	}

	return normalize(resp.Body())
}

// normalize takes the first prediction of a flat or nested result array.
// Bodies without a usable prediction fall back to the default label and a
// zero confidence. Scores are clamped to [0, 1].
func normalize(body []byte) Result {
	result := Result{Label: DefaultLabel}

	first, ok := firstPrediction(body)
	if !ok {
		return result
	}
	if first.Label != nil && *first.Label != "" {
		result.Label = *first.Label
	}
	if first.Score != nil {
		result.Confidence = math.Min(1, math.Max(0, *first.Score))
	}
	return result
}

func firstPrediction(raw []byte) (prediction, bool) {
	var nested [][]prediction
	if err := json.Unmarshal(raw, &nested); err == nil {
		if len(nested) > 0 && len(nested[0]) > 0 {
			return nested[0][0], true
		}
		return prediction{}, false
	}

	var flat []prediction
	if err := json.Unmarshal(raw, &flat); err == nil && len(flat) > 0 {
		return flat[0], true
	}
	return prediction{}, false
}
