package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"skwatch/internal/config"
)

// CaptchaSolver obtains a reCAPTCHA response token for a page.
type CaptchaSolver interface {
	Solve(ctx context.Context, siteKey, pageURL string) (string, error)
}

// TwoCaptchaSolver submits captcha tasks to the 2captcha HTTP API and polls
// for the solution.
type TwoCaptchaSolver struct {
	cfg        config.CaptchaConfig
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewTwoCaptchaSolver creates a solver, or nil when no API key is configured.
func NewTwoCaptchaSolver(cfg config.CaptchaConfig, logger zerolog.Logger) *TwoCaptchaSolver {
	if cfg.APIKey == "" {
		return nil
	}
	return &TwoCaptchaSolver{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With().Str("component", "TwoCaptchaSolver").Logger(),
	}
}

type twoCaptchaResponse struct {
	Status  int    `json:"status"`
	Request string `json:"request"`
}

// Solve submits the task and polls until a token is available or the poll
// budget is exhausted.
func (s *TwoCaptchaSolver) Solve(ctx context.Context, siteKey, pageURL string) (string, error) {
	form := url.Values{}
	form.Set("key", s.cfg.APIKey)
	form.Set("method", "userrecaptcha")
	form.Set("googlekey", siteKey)
	form.Set("pageurl", pageURL)
	form.Set("json", "1")

	submitted, err := s.call(ctx, http.MethodPost, s.cfg.APIBaseURL+"/in.php", form)
	if err != nil {
		return "", fmt.Errorf("captcha task submission failed: %w", err)
	}
	if submitted.Status != 1 {
		return "", fmt.Errorf("captcha task rejected: %s", submitted.Request)
	}
	requestID := submitted.Request
	s.logger.Debug().Str("request_id", requestID).Msg("Captcha task submitted")

	pollInterval := time.Duration(s.cfg.PollIntervalSecs) * time.Second
	for poll := 0; poll < s.cfg.MaxPolls; poll++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(pollInterval):
		}

		params := url.Values{}
		params.Set("key", s.cfg.APIKey)
		params.Set("action", "get")
		params.Set("id", requestID)
		params.Set("json", "1")

		result, err := s.call(ctx, http.MethodGet, s.cfg.APIBaseURL+"/res.php?"+params.Encode(), nil)
		if err != nil {
			return "", fmt.Errorf("captcha poll failed: %w", err)
		}
		if result.Status == 1 {
			return result.Request, nil
		}
		if result.Request != "CAPCHA_NOT_READY" {
			return "", fmt.Errorf("captcha solver error: %s", result.Request)
		}
	}
	return "", fmt.Errorf("captcha solver did not return a solution in time")
}

func (s *TwoCaptchaSolver) call(ctx context.Context, method, endpoint string, form url.Values) (*twoCaptchaResponse, error) {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)
	}

	var parsed twoCaptchaResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode solver response: %w", err)
	}
	return &parsed, nil
}
