package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/satrioramadhan/scansek-api/internal/domain"
	"github.com/satrioramadhan/scansek-api/pkg/httpclient"
	"github.com/satrioramadhan/scansek-api/pkg/logger"
)

// SendGridConfig configures the SendGrid v3 mail/send client.
type SendGridConfig struct {
	URL         string
	APIKey      string
	FromAddress string
	FromName    string
	OTPTTL      time.Duration
	// Timeout bounds one SendOTP call end to end.
	Timeout time.Duration
}

type doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// SendGridSender delivers OTP emails through the SendGrid HTTP API.
type SendGridSender struct {
	client doer
	cfg    SendGridConfig
	logger *slog.Logger
}

// NewSendGridClient returns the breaker-wrapped HTTP client for SendGrid.
// It makes a single attempt per send: a POST that timed out may still have
// been delivered, and the user retries through resend-otp.
func NewSendGridClient(timeout time.Duration, l *slog.Logger) *httpclient.CircuitBreakerClient {
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = timeout
	cfg.MaxRetries = 0
	return httpclient.NewCircuitBreakerClient(
		httpclient.New(cfg),
		httpclient.DefaultCircuitBreakerConfig("sendgrid"),
		l,
	)
}

// NewSendGridSender returns a sender that posts through client.
func NewSendGridSender(cfg SendGridConfig, client *httpclient.CircuitBreakerClient, l *slog.Logger) *SendGridSender {
	return &SendGridSender{client: client, cfg: cfg, logger: l}
}

type sgAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgPersonalization struct {
	To []sgAddress `json:"to"`
}

type sgRequest struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgAddress           `json:"from"`
	Subject          string              `json:"subject"`
	Content          []sgContent         `json:"content"`
}

// SendOTP renders and sends the OTP email. Only HTTP 202 counts as success.
func (s *SendGridSender) SendOTP(ctx context.Context, to, code string, purpose domain.OTPPurpose) error {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	msg, err := Render(code, purpose, s.cfg.OTPTTL)
	if err != nil {
		return err
	}

	body, err := json.Marshal(sgRequest{
		Personalizations: []sgPersonalization{{To: []sgAddress{{Email: to}}}},
		From:             sgAddress{Email: s.cfg.FromAddress, Name: s.cfg.FromName},
		Subject:          msg.Subject,
		Content: []sgContent{
			{Type: "text/plain", Value: msg.Text},
			{Type: "text/html", Value: msg.HTML},
		},
	})
	if err != nil {
		return fmt.Errorf("marshal sendgrid request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sendgrid request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("send otp email: %w", err)
	}

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("send otp email: %w", httpclient.ParseResponseError(resp, "sendgrid"))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	s.logger.InfoContext(ctx, "otp email sent",
		slog.String("to", logger.MaskEmail(to)),
		slog.String("purpose", string(purpose)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}
