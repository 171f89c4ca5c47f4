package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tenantdesk/server/common/log"
	"tenantdesk/server/common/transport/httpresp"
	"tenantdesk/server/domain"
	"tenantdesk/server/mail"
	"tenantdesk/server/service"
	"tenantdesk/server/sms"
)

const recordedAction = "/api/voice/recorded"

// Transcriber converts voicemail audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// RecordingArchiver persists the raw voicemail audio; nil-able.
type RecordingArchiver interface {
	Store(ctx context.Context, recordingSID string, audio []byte) (string, error)
}

// WebhookHandler terminates the vendor webhooks: inbound SMS, the voice
// record prompt, finished voicemail recordings, and inbound email.
type WebhookHandler struct {
	intake         *service.IntakeService
	transcriber    Transcriber
	archive        RecordingArchiver
	authToken      string
	checkSignature bool
	publicBaseURL  string
	defaultCountry string
	httpClient     *http.Client
}

func NewWebhookHandler(intake *service.IntakeService, transcriber Transcriber, authToken, defaultCountry string) *WebhookHandler {
	return &WebhookHandler{
		intake:         intake,
		transcriber:    transcriber,
		authToken:      authToken,
		defaultCountry: defaultCountry,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
	}
}

// WithSignatureValidation rejects webhook posts whose vendor signature
// does not verify against publicBaseURL plus the request path.
func (h *WebhookHandler) WithSignatureValidation(publicBaseURL string) *WebhookHandler {
	h.checkSignature = true
	h.publicBaseURL = strings.TrimSuffix(publicBaseURL, "/")
	return h
}

// WithArchive stores voicemail audio in object storage after intake.
func (h *WebhookHandler) WithArchive(archive RecordingArchiver) *WebhookHandler {
	h.archive = archive
	return h
}

func (h *WebhookHandler) RegisterRoutes(r *gin.Engine) {
	twilio := r.Group("/api", h.verifySignature)
	{
		twilio.POST("/sms/incoming", h.incomingSMS)
		twilio.POST("/voice/incoming", h.incomingVoice)
		twilio.POST(strings.TrimPrefix(recordedAction, "/api"), h.recordedVoice)
	}
	r.POST("/api/email/incoming", h.incomingEmail)
}

// verifySignature checks the vendor HMAC on form webhooks. Validation
// is opt-in: without a public base URL configured the check is skipped,
// matching local tunnel development where the signed URL is unknowable.
func (h *WebhookHandler) verifySignature(c *gin.Context) {
	if !h.checkSignature {
		return
	}
	if err := c.Request.ParseForm(); err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	fullURL := h.publicBaseURL + c.Request.URL.RequestURI()
	signature := c.GetHeader("X-Twilio-Signature")
	if !sms.ValidateSignature(h.authToken, fullURL, c.Request.PostForm, signature) {
		log.Warnf("rejected webhook %s: bad signature", c.Request.URL.Path)
		c.AbortWithStatus(http.StatusForbidden)
		return
	}
}

func (h *WebhookHandler) incomingSMS(c *gin.Context) {
	from := c.PostForm("From")
	body := c.PostForm("Body")
	if from == "" || body == "" {
		c.String(http.StatusBadRequest, httpresp.ErrMissingSenderBody)
		return
	}

	result, err := h.intake.Process(c.Request.Context(), service.IntakeRequest{
		Channel:          domain.ChannelSMS,
		Sender:           sms.NormalizePhone(from, h.defaultCountry),
		Content:          body,
		AllowPlaceholder: true,
	})
	if err != nil {
		log.Errorf("sms intake from %s: %v", from, err)
		c.String(http.StatusInternalServerError, "Error processing message")
		return
	}
	log.Infof("sms intake stored message %d urgency=%s source=%s", result.Message.ID, result.Message.Urgency, result.Classification.Source)

	// The auto-reply already went out as a direct send; tell the vendor
	// not to send anything itself.
	c.Data(http.StatusOK, "text/xml", []byte(sms.TwiMLEmpty()))
}

func (h *WebhookHandler) incomingVoice(c *gin.Context) {
	c.Data(http.StatusOK, "text/xml", []byte(sms.TwiMLRecordPrompt(recordedAction, 60)))
}

func (h *WebhookHandler) recordedVoice(c *gin.Context) {
	from := c.PostForm("From")
	recordingURL := c.PostForm("RecordingUrl")
	recordingSID := c.PostForm("RecordingSid")
	if from == "" || recordingURL == "" {
		c.String(http.StatusBadRequest, httpresp.ErrMissingSenderBody)
		return
	}

	audio, err := h.fetchRecording(c.Request.Context(), recordingURL)
	if err != nil {
		log.Errorf("fetch recording %s: %v", recordingSID, err)
		h.voiceError(c)
		return
	}

	transcription, err := h.transcriber.Transcribe(c.Request.Context(), audio)
	if err != nil {
		log.Errorf("transcribe recording %s: %v", recordingSID, err)
		h.voiceError(c)
		return
	}

	result, err := h.intake.Process(c.Request.Context(), service.IntakeRequest{
		Channel:      domain.ChannelVoicemail,
		Sender:       sms.NormalizePhone(from, h.defaultCountry),
		Content:      transcription,
		RecordingURL: recordingURL,
		RecordingSID: recordingSID,
	})
	if err != nil {
		if errors.Is(err, service.ErrUnknownSender) {
			log.Warnf("voicemail from unknown number %s", from)
			c.Data(http.StatusOK, "text/xml", []byte(sms.TwiMLSay(
				"Thank you for your message. However, we could not identify your account. Please contact property management directly.")))
			return
		}
		log.Errorf("voicemail intake from %s: %v", from, err)
		h.voiceError(c)
		return
	}
	log.Infof("voicemail intake stored message %d urgency=%s", result.Message.ID, result.Message.Urgency)

	if h.archive != nil {
		if key, err := h.archive.Store(c.Request.Context(), recordingSID, audio); err != nil {
			log.Warnf("archive recording %s: %v", recordingSID, err)
		} else {
			log.Debugf("archived recording at %s", key)
		}
	}

	c.Data(http.StatusOK, "text/xml", []byte(sms.TwiMLSay("Thank you for your message. We'll get back to you shortly.")))
}

func (h *WebhookHandler) voiceError(c *gin.Context) {
	c.Data(http.StatusOK, "text/xml", []byte(sms.TwiMLSay(
		"We're sorry, but there was an error processing your message. Please try again later or contact property management directly.")))
}

func (h *WebhookHandler) fetchRecording(ctx context.Context, recordingURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, recordingURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("recording fetch status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 16<<20))
}

func (h *WebhookHandler) incomingEmail(c *gin.Context) {
	var payload struct {
		From    string `json:"from" form:"from"`
		Subject string `json:"subject" form:"subject"`
		Text    string `json:"text" form:"text"`
	}
	if err := c.ShouldBind(&payload); err != nil {
		c.JSON(http.StatusBadRequest, httpresp.NewErrorResponse(err.Error()))
		return
	}

	// An inextricable sender is dropped, not rejected: the mail vendor
	// retries on non-2xx and this payload will never parse better.
	address, ok := mail.ExtractAddress(payload.From)
	if !ok {
		log.Warnf("could not extract email address from %q, dropping", payload.From)
		c.String(http.StatusOK, "OK")
		return
	}

	analysis := fmt.Sprintf("Subject: %s\n\n%s", payload.Subject, payload.Text)
	result, err := h.intake.Process(c.Request.Context(), service.IntakeRequest{
		Channel:          domain.ChannelEmail,
		Sender:           address,
		Content:          payload.Text,
		AnalysisText:     analysis,
		Subject:          payload.Subject,
		AllowPlaceholder: true,
	})
	if err != nil {
		if errors.Is(err, service.ErrMissingContent) || errors.Is(err, service.ErrMissingSender) {
			c.JSON(http.StatusBadRequest, httpresp.NewErrorResponse(httpresp.ErrMissingSenderBody))
			return
		}
		log.Errorf("email intake from %s: %v", address, err)
		c.JSON(http.StatusInternalServerError, httpresp.NewErrorResponse("failed to process email"))
		return
	}
	log.Infof("email intake stored message %d urgency=%s", result.Message.ID, result.Message.Urgency)
	c.String(http.StatusOK, "OK")
}
