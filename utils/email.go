package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Mailer interface {
	Send(ctx context.Context, to, toName, subject, htmlBody string) error
}

// email request payload for ZeptoMail API
type emailRequest struct {
	From     emailAddress  `json:"from"`
	To       []toRecipient `json:"to"`
	Subject  string        `json:"subject"`
	HtmlBody string        `json:"htmlbody"`
}

type emailAddress struct {
	Address string `json:"address"`
}

type toRecipient struct {
	Email emailWithName `json:"email_address"`
}

type emailWithName struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// ZeptoMailer sends HTML email through the ZeptoMail HTTP API.
type ZeptoMailer struct {
	APIURL string // e.g. https://api.zeptomail.com/v1.1/email
	APIKey string // e.g. Zoho-enczapikey xxxxx
	From   string
	Client *http.Client
	Log    *zap.Logger
}

func NewZeptoMailer(apiURL, apiKey, from string, log *zap.Logger) *ZeptoMailer {
	return &ZeptoMailer{
		APIURL: apiURL,
		APIKey: apiKey,
		From:   from,
		Client: &http.Client{Timeout: 15 * time.Second},
		Log:    log,
	}
}

func (m *ZeptoMailer) Send(ctx context.Context, to, toName, subject, htmlBody string) error {
	if m.APIURL == "" || m.APIKey == "" || m.From == "" {
		return fmt.Errorf("missing required email config")
	}

	payload := emailRequest{
		From:     emailAddress{Address: m.From},
		To:       []toRecipient{{Email: emailWithName{Address: to, Name: toName}}},
		Subject:  subject,
		HtmlBody: htmlBody,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.APIURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("create email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", m.APIKey)

	resp, err := m.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("zeptomail API error: %s", resp.Status)
	}

	if m.Log != nil {
		m.Log.Info("email sent", zap.String("to", to), zap.String("subject", subject))
	}
	return nil
}

// LogMailer writes messages to the log instead of sending them. It stands in
// when no mail provider is configured.
type LogMailer struct {
	Log *zap.Logger
}

func (m LogMailer) Send(_ context.Context, to, _, subject, _ string) error {
	m.Log.Warn("email not sent, no provider configured",
		zap.String("to", to), zap.String("subject", subject))
	return nil
}

func PasswordResetEmail(name, otp string) (subject, body string) {
	subject = "Your CharityChain password reset code"
	body = fmt.Sprintf(
		"<p>Hi %s,</p><p>Your password reset code is <strong>%s</strong>. It expires in %d minutes.</p>"+
			"<p>If you did not ask for a reset you can ignore this email.</p>",
		html.EscapeString(name), otp, int(OTPTTL.Minutes()))
	return subject, body
}

func NGOVerifiedEmail(name string) (subject, body string) {
	subject = "Your NGO account has been verified"
	body = fmt.Sprintf(
		"<p>Hi %s,</p><p>An administrator has verified your organisation. You can now sign in and start campaigns.</p>",
		html.EscapeString(name))
	return subject, body
}
