package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tenantdesk/server/common/log"
	"tenantdesk/server/domain"
)

// FallbackReply is sent verbatim when the draft call fails.
const FallbackReply = "I'll look into this issue and get back to you as soon as possible."

const responderSystemPrompt = `You are an AI assistant for a property manager responding to tenant communications.
Create a professional, helpful, and empathetic response to the tenant message.
Address the tenant by name. The message is classified as %s urgency in the category of %s.

Keep responses under 150 words. Be specific about next steps and when the tenant can expect assistance.
For emergencies, emphasize immediate action being taken.
For high urgency, provide specific timeframes for resolution.
For medium urgency, provide general timeframes and clear expectations.
For low urgency, be courteous but indicate the request will be handled in normal business order.`

type ReplyResult struct {
	Text   string
	Source string
}

// Responder drafts the automatic acknowledgment reply. Same single-call,
// timeout-bounded discipline as the classifier.
type Responder struct {
	client  *Client
	timeout time.Duration
}

func NewResponder(client *Client, timeout time.Duration) *Responder {
	return &Responder{client: client, timeout: timeout}
}

func (r *Responder) Draft(ctx context.Context, tenantName, text string, cls Classification) ReplyResult {
	if !r.client.Enabled() {
		log.Debugf("responder running without credentials, using fallback reply")
		return ReplyResult{Text: FallbackReply, Source: domain.AISourceFallback}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	system := fmt.Sprintf(responderSystemPrompt, cls.Urgency, cls.Category)
	user := fmt.Sprintf("Tenant name: %s\nMessage: %s\nClassification: %s urgency, %s category",
		tenantName, text, cls.Urgency, cls.Category)

	reply, err := r.client.Chat(callCtx, system, user, false)
	if err != nil {
		log.Warnf("reply draft call failed, using fallback reply: %v", err)
		return ReplyResult{Text: FallbackReply, Source: domain.AISourceFallback}
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return ReplyResult{Text: FallbackReply, Source: domain.AISourceFallback}
	}
	return ReplyResult{Text: reply, Source: domain.AISourceModel}
}
