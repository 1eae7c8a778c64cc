package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// HTTPSMSSender pushes text messages through a JSON SMS gateway.
type HTTPSMSSender struct {
	apiToken string
	sender   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewHTTPSMSSender 构造短信网关告警器。
func NewHTTPSMSSender(baseURL, apiToken, sender string, timeout time.Duration, logger zerolog.Logger) *HTTPSMSSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &HTTPSMSSender{
		apiToken: apiToken,
		sender:   sender,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_sms").Logger(),
	}
}

// SendSMS posts body to the gateway's /messages endpoint.
func (n *HTTPSMSSender) SendSMS(ctx context.Context, to, body string) error {
	payload := map[string]string{
		"to":   to,
		"body": body,
	}
	if n.sender != "" {
		payload["from"] = n.sender
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/messages", bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("create sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+n.apiToken)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK    *bool  `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if result.OK != nil && !*result.OK {
			return fmt.Errorf("sms gateway 返回 ok=false: %s", result.Error)
		}
	}

	n.logger.Info().Str("to", to).Msg("告警已发送 (SMS)")
	return nil
}

var _ SMSSender = (*HTTPSMSSender)(nil)
