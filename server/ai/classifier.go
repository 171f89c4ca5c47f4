package ai

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"tenantdesk/server/common/log"
	"tenantdesk/server/domain"
)

const classifySystemPrompt = `You are an AI assistant for property managers. Analyze tenant messages and classify them by urgency and category.
Return JSON with the following structure: {
  "urgency": "emergency" | "high" | "medium" | "low",
  "category": (maintenance category like "plumbing", "hvac", "electrical", "general", etc.),
  "summary": (brief 1-sentence summary of the issue)
}

Urgency levels:
- emergency: life-threatening, severe property damage, safety hazard (flooding, fire, gas leak, no heat in winter, etc.)
- high: serious issues that affect habitability but not immediately dangerous (AC not working in summer, hot water out, multiple fixtures not working)
- medium: important issues that should be addressed soon (appliance malfunction, minor leaks, some electrical outlets not working)
- low: general inquiries, minor aesthetics, amenity questions, non-urgent requests`

const (
	fallbackCategory = "maintenance"
	fallbackSummary  = "Tenant reported an issue that needs attention"
)

// DefaultEmergencyKeywords escalate the keyword fallback when the model
// is unavailable.
var DefaultEmergencyKeywords = []string{"flood", "fire", "gas", "water", "emergency"}

type Classification struct {
	Urgency  domain.Urgency `json:"urgency"`
	Category string         `json:"category"`
	Summary  string         `json:"summary"`
}

// ClassifyResult tags the classification with where it came from so
// callers can tell degraded output from genuine model output.
type ClassifyResult struct {
	Classification
	Source string
}

// Classifier triages free-text tenant messages. One model call per
// message, bounded by a per-call timeout; any failure or structurally
// invalid reply drops to the keyword heuristic.
type Classifier struct {
	client   *Client
	timeout  time.Duration
	keywords []string
}

func NewClassifier(client *Client, timeout time.Duration, keywords []string) *Classifier {
	if len(keywords) == 0 {
		keywords = DefaultEmergencyKeywords
	}
	return &Classifier{client: client, timeout: timeout, keywords: keywords}
}

func (c *Classifier) Classify(ctx context.Context, text string) ClassifyResult {
	if !c.client.Enabled() {
		log.Debugf("classifier running without credentials, using keyword fallback")
		return c.fallback(text)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.client.Chat(callCtx, classifySystemPrompt, text, true)
	if err != nil {
		log.Warnf("classification call failed, using keyword fallback: %v", err)
		return c.fallback(text)
	}

	var parsed Classification
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		log.Warnf("classification response is not valid JSON, using keyword fallback: %v", err)
		return c.fallback(text)
	}
	if !parsed.Urgency.Valid() || parsed.Category == "" || parsed.Summary == "" {
		log.Warnf("classification response failed validation (urgency=%q), using keyword fallback", parsed.Urgency)
		return c.fallback(text)
	}
	return ClassifyResult{Classification: parsed, Source: domain.AISourceModel}
}

func (c *Classifier) fallback(text string) ClassifyResult {
	urgency := domain.UrgencyMedium
	lowered := strings.ToLower(text)
	for _, kw := range c.keywords {
		if strings.Contains(lowered, strings.ToLower(kw)) {
			urgency = domain.UrgencyEmergency
			break
		}
	}
	return ClassifyResult{
		Classification: Classification{
			Urgency:  urgency,
			Category: fallbackCategory,
			Summary:  fallbackSummary,
		},
		Source: domain.AISourceFallback,
	}
}
