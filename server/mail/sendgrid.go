package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"tenantdesk/server/common/log"
)

const sendEndpoint = "https://api.sendgrid.com/v3/mail/send"

var addressPattern = regexp.MustCompile(`([a-zA-Z0-9._-]+@[a-zA-Z0-9._-]+\.[a-zA-Z0-9_-]+)`)

// ExtractAddress pulls a bare address out of an RFC-822-ish From header
// value like "Jane Doe <jane@example.com>".
func ExtractAddress(from string) (string, bool) {
	match := addressPattern.FindString(from)
	if match == "" {
		return "", false
	}
	return match, true
}

// Htmlify renders plain reply text as a minimal HTML body.
func Htmlify(text string) string {
	return "<p>" + strings.ReplaceAll(text, "\n", "<br>") + "</p>"
}

type emailAddress struct {
	Email string `json:"email"`
}

type personalization struct {
	To []emailAddress `json:"to"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             emailAddress      `json:"from"`
	Subject          string            `json:"subject"`
	Content          []content         `json:"content"`
}

// SendGrid sends outbound email through the vendor v3 API. Without an
// API key it runs in mock mode: sends are logged, not performed.
type SendGrid struct {
	apiKey     string
	from       string
	httpClient *http.Client
}

func NewSendGrid(apiKey, from string) *SendGrid {
	if from == "" {
		from = "property@example.com"
	}
	s := &SendGrid{
		apiKey:     apiKey,
		from:       from,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	if s.Mock() {
		log.Infof("no email credentials found, mailer running in mock mode")
	}
	return s
}

func (s *SendGrid) Mock() bool {
	return s.apiKey == ""
}

func (s *SendGrid) Send(ctx context.Context, to, subject, text, html string) error {
	if s.Mock() {
		log.Infof("[mock email] to=%s subject=%q", to, subject)
		return nil
	}
	if html == "" {
		html = Htmlify(text)
	}

	payload := sendRequest{
		Personalizations: []personalization{{To: []emailAddress{{Email: to}}}},
		From:             emailAddress{Email: s.from},
		Subject:          subject,
		Content: []content{
			{Type: "text/plain", Value: text},
			{Type: "text/html", Value: html},
		},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sendEndpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("email send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("email send status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	log.Infof("email sent to %s", to)
	return nil
}
