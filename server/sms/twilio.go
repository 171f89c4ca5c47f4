package sms

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"tenantdesk/server/common/log"
)

const messagesEndpoint = "https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json"

// DeliveryError carries the vendor error taxonomy for a rejected send.
type DeliveryError struct {
	Code    int    `json:"code"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("sms delivery failed (code %d): %s", e.Code, e.Message)
}

// Hint maps common vendor error codes to a remediation note surfaced on
// the test-send endpoint.
func (e *DeliveryError) Hint() string {
	switch e.Code {
	case 21211:
		return "Invalid phone number format. Use E.164 format (e.g. +15551234567)."
	case 21608:
		return "This number isn't verified for the trial account."
	case 21219:
		return "Invalid sender number. Check the configured outbound phone number."
	default:
		return "Check the recipient number and account status."
	}
}

// Twilio sends SMS through the vendor REST API. Without credentials it
// runs in mock mode: sends are logged and a synthetic SID is returned.
type Twilio struct {
	accountSID     string
	authToken      string
	from           string
	defaultCountry string
	httpClient     *http.Client
}

func NewTwilio(accountSID, authToken, from, defaultCountry string) *Twilio {
	if defaultCountry == "" {
		defaultCountry = "1"
	}
	t := &Twilio{
		accountSID:     accountSID,
		authToken:      authToken,
		defaultCountry: defaultCountry,
		httpClient:     &http.Client{Timeout: 10 * time.Second},
	}
	t.from = NormalizePhone(from, defaultCountry)
	if t.Mock() {
		log.Infof("no SMS credentials found, sender running in mock mode")
	}
	return t
}

func (t *Twilio) Mock() bool {
	return t.accountSID == "" || t.authToken == ""
}

func (t *Twilio) From() string {
	return t.from
}

// Send delivers body to recipient and returns the vendor message SID.
// The recipient is normalized to E.164 before dispatch.
func (t *Twilio) Send(ctx context.Context, to, body string) (string, error) {
	formattedTo := NormalizePhone(to, t.defaultCountry)

	if t.Mock() {
		log.Infof("[mock sms] to=%s body=%q", formattedTo, truncate(body, 80))
		return fmt.Sprintf("mock-sid-%d", time.Now().UnixNano()), nil
	}

	form := url.Values{}
	form.Set("To", formattedTo)
	form.Set("From", t.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf(messagesEndpoint, t.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(t.accountSID, t.authToken)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sms send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var derr DeliveryError
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err := json.Unmarshal(body, &derr); err != nil || derr.Message == "" {
			derr = DeliveryError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		}
		if derr.Status == 0 {
			derr.Status = resp.StatusCode
		}
		return "", &derr
	}

	var parsed struct {
		SID string `json:"sid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode sms send response: %w", err)
	}
	log.Infof("sms sent to %s (sid=%s)", formattedTo, parsed.SID)
	return parsed.SID, nil
}

// NormalizePhone applies the documented heuristic: keep digits only,
// prefix +, and assume the default country code for bare 10-digit
// numbers. It is not a general phone number parser.
func NormalizePhone(raw, defaultCountry string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	hadPlus := strings.HasPrefix(raw, "+")

	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if d == "" {
		return ""
	}
	if !hadPlus && len(d) == 10 {
		return "+" + defaultCountry + d
	}
	return "+" + d
}

// ValidateSignature checks the vendor webhook signature: base64 of
// HMAC-SHA1 over the full URL followed by the sorted POST parameters.
func ValidateSignature(authToken, fullURL string, params url.Values, signature string) bool {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(fullURL)
	for _, k := range keys {
		for _, v := range params[k] {
			payload.WriteString(k)
			payload.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(payload.String()))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
