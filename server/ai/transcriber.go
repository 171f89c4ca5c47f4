package ai

import (
	"context"
	"fmt"
	"time"
)

// Transcriber converts recorded voicemail audio into text. Unlike the
// classifier and responder there is no fallback: a failed transcription
// fails the voicemail webhook.
type Transcriber struct {
	client  *Client
	timeout time.Duration
}

func NewTranscriber(client *Client, timeout time.Duration) *Transcriber {
	return &Transcriber{client: client, timeout: timeout}
}

func (t *Transcriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	filename := fmt.Sprintf("voicemail-%d.mp3", time.Now().UnixNano())
	return t.client.Transcribe(callCtx, filename, audio)
}
