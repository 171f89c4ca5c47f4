package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"tenantdesk/server/common/log"
	"tenantdesk/server/common/transport/httpresp"
	"tenantdesk/server/domain"
	"tenantdesk/server/service"
	"tenantdesk/server/sms"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dashboard sessions come from the embedded frontend; the API has
	// no cross-origin browser clients.
	CheckOrigin: func(*http.Request) bool { return true },
}

// HubRegistry is the live-session side of the websocket hub.
type HubRegistry interface {
	Register(conn *websocket.Conn)
	Unregister(conn *websocket.Conn)
}

type Handler struct {
	messages *service.MessageService
	intake   *service.IntakeService
	hub      HubRegistry
	ready    func(ctx *gin.Context) error

	webhooks *WebhookHandler
}

func NewHandler(messages *service.MessageService, intake *service.IntakeService, webhooks *WebhookHandler) *Handler {
	return &Handler{messages: messages, intake: intake, webhooks: webhooks}
}

// WithHub enables the /ws endpoint.
func (h *Handler) WithHub(hub HubRegistry) *Handler {
	h.hub = hub
	return h
}

// WithReadiness adds a dependency probe to /health.
func (h *Handler) WithReadiness(check func(ctx *gin.Context) error) *Handler {
	h.ready = check
	return h
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", h.health)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	if h.hub != nil {
		r.GET("/ws", h.serveWS)
	}

	api := r.Group("/api")
	{
		api.GET("/messages", h.listMessages)
		api.GET("/messages/stats", h.messageStats)
		api.GET("/messages/:id", h.getMessage)
		api.POST("/messages/respond", h.respondMessage)
		api.POST("/messages/assign", h.assignMessage)
		api.POST("/messages/:id/resolve", h.resolveMessage)
		api.POST("/messages/:id/status", h.updateStatus)

		api.GET("/tenants", h.listTenants)
		api.POST("/tenants", h.createTenant)
		api.GET("/properties", h.listProperties)
		api.POST("/properties", h.createProperty)

		api.POST("/test-sms", h.testSMS)
	}

	h.webhooks.RegisterRoutes(r)
}

func (h *Handler) health(c *gin.Context) {
	if h.ready != nil {
		if err := h.ready(c); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) serveWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warnf("websocket upgrade failed: %v", err)
		return
	}
	h.hub.Register(conn)
	go func() {
		defer func() {
			h.hub.Unregister(conn)
			_ = conn.Close()
		}()
		// Dashboard sockets are push-only; the read loop exists to
		// detect disconnects.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Handler) listMessages(c *gin.Context) {
	filter, err := parseMessageFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpresp.NewErrorResponse(httpresp.ErrInvalidFilter))
		return
	}
	items, err := h.messages.ListMessages(c.Request.Context(), filter)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidFilter) {
			c.JSON(http.StatusBadRequest, httpresp.NewErrorResponse(httpresp.ErrInvalidFilter))
			return
		}
		c.JSON(http.StatusInternalServerError, httpresp.NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) messageStats(c *gin.Context) {
	stats, err := h.messages.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, httpresp.NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) getMessage(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpresp.NewErrorResponse("invalid message id"))
		return
	}
	msg, err := h.messages.GetMessage(c.Request.Context(), id)
	if err != nil {
		h.messageError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *Handler) respondMessage(c *gin.Context) {
	var req struct {
		MessageID       int    `json:"messageId" binding:"required"`
		ResponseContent string `json:"responseContent" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpresp.NewErrorResponse(err.Error()))
		return
	}
	msg, err := h.messages.Respond(c.Request.Context(), req.MessageID, req.ResponseContent)
	if err != nil {
		h.messageError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *Handler) assignMessage(c *gin.Context) {
	var req struct {
		MessageID int `json:"messageId" binding:"required"`
		UserID    int `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpresp.NewErrorResponse(err.Error()))
		return
	}
	msg, err := h.messages.Assign(c.Request.Context(), req.MessageID, req.UserID)
	if err != nil {
		h.messageError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *Handler) resolveMessage(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpresp.NewErrorResponse("invalid message id"))
		return
	}
	msg, err := h.messages.Resolve(c.Request.Context(), id)
	if err != nil {
		h.messageError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *Handler) updateStatus(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpresp.NewErrorResponse("invalid message id"))
		return
	}
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpresp.NewErrorResponse(err.Error()))
		return
	}
	msg, err := h.messages.UpdateStatus(c.Request.Context(), id, domain.Status(req.Status))
	if err != nil {
		if errors.Is(err, service.ErrInvalidStatus) {
			c.JSON(http.StatusBadRequest, httpresp.NewErrorResponse(httpresp.ErrInvalidStatus))
			return
		}
		h.messageError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *Handler) listTenants(c *gin.Context) {
	items, err := h.messages.ListTenants(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, httpresp.NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) createTenant(c *gin.Context) {
	var req struct {
		Name       string `json:"name"`
		Email      string `json:"email"`
		Phone      string `json:"phone"`
		PropertyID int    `json:"propertyId"`
		UnitNumber string `json:"unitNumber"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpresp.NewErrorResponse(err.Error()))
		return
	}
	tenant, err := h.messages.CreateTenant(c.Request.Context(), domain.Tenant{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		PropertyID: req.PropertyID,
		UnitNumber: req.UnitNumber,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingTenantFields):
			c.JSON(http.StatusBadRequest, httpresp.NewErrorResponse(httpresp.ErrNameAndUnitNeeded))
		case errors.Is(err, domain.ErrNotFound):
			c.JSON(http.StatusNotFound, httpresp.NewErrorResponse(httpresp.ErrPropertyNotFound))
		default:
			c.JSON(http.StatusInternalServerError, httpresp.NewErrorResponse(err.Error()))
		}
		return
	}
	c.JSON(http.StatusCreated, tenant)
}

func (h *Handler) listProperties(c *gin.Context) {
	items, err := h.messages.ListProperties(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, httpresp.NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) createProperty(c *gin.Context) {
	var req struct {
		Name    string `json:"name" binding:"required"`
		Address string `json:"address"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpresp.NewErrorResponse(err.Error()))
		return
	}
	property, err := h.messages.CreateProperty(c.Request.Context(), domain.Property{
		Name:    req.Name,
		Address: req.Address,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, httpresp.NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, property)
}

func (h *Handler) testSMS(c *gin.Context) {
	var req struct {
		PhoneNumber string `json:"phoneNumber"`
		Message     string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.PhoneNumber == "" || req.Message == "" {
		c.JSON(http.StatusBadRequest, httpresp.NewSendFailure(httpresp.ErrPhoneAndBodyNeeded, 0, ""))
		return
	}
	sid, err := h.messages.TestSMS(c.Request.Context(), req.PhoneNumber, req.Message)
	if err != nil {
		var delivery *sms.DeliveryError
		if errors.As(err, &delivery) {
			c.JSON(http.StatusBadGateway, httpresp.NewSendFailure(delivery.Message, delivery.Code, delivery.Hint()))
			return
		}
		c.JSON(http.StatusInternalServerError, httpresp.NewSendFailure(err.Error(), 0, ""))
		return
	}
	c.JSON(http.StatusOK, httpresp.NewSendResult(sid))
}

func (h *Handler) messageError(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, httpresp.NewErrorResponse(httpresp.ErrMessageNotFound))
		return
	}
	c.JSON(http.StatusInternalServerError, httpresp.NewErrorResponse(err.Error()))
}

func parseMessageFilter(c *gin.Context) (domain.MessageFilter, error) {
	var filter domain.MessageFilter
	if v := c.Query("propertyId"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return filter, err
		}
		filter.PropertyID = &id
	}
	if v := c.Query("tenantId"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return filter, err
		}
		filter.TenantID = &id
	}
	if v := c.Query("urgency"); v != "" {
		u := domain.Urgency(v)
		filter.Urgency = &u
	}
	if v := c.Query("status"); v != "" {
		s := domain.Status(v)
		filter.Status = &s
	}
	if v := c.Query("category"); v != "" {
		filter.Category = &v
	}
	if v := c.Query("channel"); v != "" {
		ch := domain.Channel(v)
		filter.Channel = &ch
	}
	filter.SortOrder = domain.SortOrder(c.Query("sortOrder"))
	return filter, nil
}
