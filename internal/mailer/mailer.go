// Package mailer delivers OTP emails.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"github.com/satrioramadhan/scansek-api/internal/domain"
	"github.com/satrioramadhan/scansek-api/pkg/logger"
)

// Sender delivers an OTP to an email address. A nil error means the provider
// accepted the message.
type Sender interface {
	SendOTP(ctx context.Context, to, code string, purpose domain.OTPPurpose) error
}

// Message is a rendered OTP email.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

type copyText struct {
	subject     string
	title       string
	description string
}

var copyByPurpose = map[domain.OTPPurpose]copyText{
	domain.OTPPurposeVerification: {
		subject:     "Kode OTP Verifikasi ScanSek",
		title:       "Verifikasi Email Anda",
		description: "Halo, berikut adalah kode verifikasi email Anda:",
	},
	domain.OTPPurposeReset: {
		subject:     "Kode OTP Reset Password ScanSek",
		title:       "Reset Password Anda",
		description: "Halo, berikut adalah kode untuk mereset password Anda:",
	},
}

var htmlBody = template.Must(template.New("otp").Parse(`<!DOCTYPE html>
<html lang="id">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Subject}}</title>
</head>
<body style="font-family: Arial, sans-serif; background-color: #f2f2f2; padding: 20px;">
    <div style="max-width: 600px; margin: auto; background-color: #ffffff; padding: 30px; border-radius: 8px;">
        <h2 style="color: #4CAF50; text-align: center;">{{.Title}}</h2>
        <p style="text-align: center; font-size: 16px;">{{.Description}}</p>
        <h1 style="color: #4CAF50; font-size: 36px; text-align: center; letter-spacing: 4px;">{{.Code}}</h1>
        <p style="text-align: center; font-size: 14px; color: #555;">Kode berlaku selama {{.Minutes}} menit. Jangan bagikan kepada siapa pun.</p>
        <hr style="margin-top: 30px;">
        <p style="font-size: 12px; color: #999; text-align: center;">&copy; {{.Year}} ScanSek. Semua hak dilindungi.</p>
    </div>
</body>
</html>
`))

// Render builds the OTP email for purpose. ttl is only used for the validity
// note shown to the user.
func Render(code string, purpose domain.OTPPurpose, ttl time.Duration) (Message, error) {
	c, ok := copyByPurpose[purpose]
	if !ok {
		return Message{}, fmt.Errorf("no email copy for otp purpose %q", purpose)
	}

	var buf bytes.Buffer
	err := htmlBody.Execute(&buf, map[string]any{
		"Subject":     c.subject,
		"Title":       c.title,
		"Description": c.description,
		"Code":        code,
		"Minutes":     int(ttl.Minutes()),
		"Year":        time.Now().Year(),
	})
	if err != nil {
		return Message{}, fmt.Errorf("render otp email: %w", err)
	}

	return Message{
		Subject: c.subject,
		Text:    "Kode OTP kamu adalah: " + code,
		HTML:    buf.String(),
	}, nil
}

// LogSender writes the OTP to the log instead of mailing it. It is only
// wired in development without a SendGrid key, so a local account can still
// be verified; config rejects a missing key in every other environment.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender returns a Sender that writes to l.
func NewLogSender(l *slog.Logger) *LogSender {
	return &LogSender{logger: l}
}

// SendOTP logs the code and always succeeds.
func (s *LogSender) SendOTP(ctx context.Context, to, code string, purpose domain.OTPPurpose) error {
	s.logger.InfoContext(ctx, "otp email not sent, development code",
		slog.String("to", logger.MaskEmail(to)),
		slog.String("purpose", string(purpose)),
		slog.String("otp", code),
	)
	return nil
}
