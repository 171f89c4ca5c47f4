package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantdesk/server/domain"
)

func chatStub(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestClassifyUsesModelOutput(t *testing.T) {
	srv := chatStub(t, `{"urgency":"emergency","category":"plumbing","summary":"Unit 3B is flooding from a burst pipe"}`)
	defer srv.Close()

	client := NewClient("test-key", "gpt-4o")
	client.SetBaseURL(srv.URL)
	classifier := NewClassifier(client, 2*time.Second, nil)

	result := classifier.Classify(context.Background(), "There's water everywhere, a pipe burst!")
	assert.Equal(t, domain.UrgencyEmergency, result.Urgency)
	assert.Equal(t, "plumbing", result.Category)
	assert.Equal(t, domain.AISourceModel, result.Source)
}

func TestClassifyFallsBackOnInvalidJSON(t *testing.T) {
	srv := chatStub(t, "sorry, I cannot help with that")
	defer srv.Close()

	client := NewClient("test-key", "gpt-4o")
	client.SetBaseURL(srv.URL)
	classifier := NewClassifier(client, 2*time.Second, nil)

	result := classifier.Classify(context.Background(), "the sink drips a little")
	assert.Equal(t, domain.AISourceFallback, result.Source)
	assert.Equal(t, domain.UrgencyMedium, result.Urgency)
	assert.Equal(t, "maintenance", result.Category)
}

func TestClassifyFallsBackOnInvalidUrgency(t *testing.T) {
	srv := chatStub(t, `{"urgency":"catastrophic","category":"plumbing","summary":"bad"}`)
	defer srv.Close()

	client := NewClient("test-key", "gpt-4o")
	client.SetBaseURL(srv.URL)
	classifier := NewClassifier(client, 2*time.Second, nil)

	result := classifier.Classify(context.Background(), "the sink drips")
	assert.Equal(t, domain.AISourceFallback, result.Source)
}

func TestClassifyFallbackKeywordEscalation(t *testing.T) {
	classifier := NewClassifier(NewClient("", ""), 2*time.Second, nil)

	cases := []struct {
		text string
		want domain.Urgency
	}{
		{"I smell GAS in the hallway", domain.UrgencyEmergency},
		{"Water is pouring through the ceiling", domain.UrgencyEmergency},
		{"there is a fire in the dumpster", domain.UrgencyEmergency},
		{"what are the pool hours?", domain.UrgencyMedium},
		{"the closet door squeaks", domain.UrgencyMedium},
	}
	for _, tc := range cases {
		result := classifier.Classify(context.Background(), tc.text)
		assert.Equal(t, tc.want, result.Urgency, "text: %s", tc.text)
		assert.Equal(t, domain.AISourceFallback, result.Source)
	}
}

func TestClassifyCustomKeywords(t *testing.T) {
	classifier := NewClassifier(NewClient("", ""), 2*time.Second, []string{"elevator"})

	stuck := classifier.Classify(context.Background(), "someone is stuck in the ELEVATOR")
	assert.Equal(t, domain.UrgencyEmergency, stuck.Urgency)

	// flood is no longer a keyword once the list is overridden
	flood := classifier.Classify(context.Background(), "minor flood in the laundry room")
	assert.Equal(t, domain.UrgencyMedium, flood.Urgency)
}

func TestDraftUsesModelReply(t *testing.T) {
	srv := chatStub(t, "Hi David, a plumber is on the way to unit 3B right now.")
	defer srv.Close()

	client := NewClient("test-key", "gpt-4o")
	client.SetBaseURL(srv.URL)
	responder := NewResponder(client, 2*time.Second)

	result := responder.Draft(context.Background(), "David Wilson", "pipe burst", Classification{
		Urgency:  domain.UrgencyEmergency,
		Category: "plumbing",
		Summary:  "burst pipe",
	})
	assert.Equal(t, domain.AISourceModel, result.Source)
	assert.Contains(t, result.Text, "David")
}

func TestDraftFallsBackWhenDisabled(t *testing.T) {
	responder := NewResponder(NewClient("", ""), 2*time.Second)

	result := responder.Draft(context.Background(), "Lisa Rodriguez", "AC broken", Classification{
		Urgency:  domain.UrgencyHigh,
		Category: "hvac",
	})
	assert.Equal(t, domain.AISourceFallback, result.Source)
	assert.Equal(t, FallbackReply, result.Text)
}

func TestDraftFallsBackOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient("test-key", "gpt-4o")
	client.SetBaseURL(srv.URL)
	responder := NewResponder(client, 2*time.Second)

	result := responder.Draft(context.Background(), "Lisa Rodriguez", "AC broken", Classification{
		Urgency:  domain.UrgencyHigh,
		Category: "hvac",
	})
	assert.Equal(t, domain.AISourceFallback, result.Source)
	assert.Equal(t, FallbackReply, result.Text)
}

func TestTranscribeRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/audio/transcriptions", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "whisper-1", r.FormValue("model"))
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "my heater stopped working"})
	}))
	defer srv.Close()

	client := NewClient("test-key", "")
	client.SetBaseURL(srv.URL)
	transcriber := NewTranscriber(client, 2*time.Second)

	text, err := transcriber.Transcribe(context.Background(), []byte("fake-audio"))
	require.NoError(t, err)
	assert.Equal(t, "my heater stopped working", text)
}

func TestTranscribeDisabledFails(t *testing.T) {
	transcriber := NewTranscriber(NewClient("", ""), 2*time.Second)
	_, err := transcriber.Transcribe(context.Background(), []byte("fake-audio"))
	require.ErrorIs(t, err, ErrDisabled)
}
