package message

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/institute-api/internal/handler"
	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/internal/service/message"
)

type Handler struct {
	service message.MessageService
}

func NewHandler(service message.MessageService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup, limit ...gin.HandlerFunc) {
	r.POST("/contact", append(limit, h.Contact)...)
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	messages := r.Group("/messages")
	{
		messages.POST("", h.Send)
		messages.GET("", h.Inbox)
		messages.GET("/unread-count", h.UnreadCount)
		messages.GET("/:id", h.Get)
		messages.PATCH("/:id/read", h.MarkRead)
		messages.DELETE("/:id", h.Delete)
	}
}

func (h *Handler) Contact(c *gin.Context) {
	var req model.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.FailBind(c, err)
		return
	}

	if _, err := h.service.Contact(c.Request.Context(), req); err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse("message received"))
}

func (h *Handler) Send(c *gin.Context) {
	var req model.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.FailBind(c, err)
		return
	}

	msg, err := h.service.Send(c.Request.Context(), handler.Actor(c), req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(msg))
}

// Inbox lists received messages; ?unread=true limits it to unread ones.
func (h *Handler) Inbox(c *gin.Context) {
	var q struct {
		Unread bool `form:"unread"`
		model.Pagination
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		handler.FailBind(c, err)
		return
	}

	page, err := h.service.Inbox(c.Request.Context(), handler.Actor(c), q.Unread, q.Pagination)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(page))
}

func (h *Handler) UnreadCount(c *gin.Context) {
	n, err := h.service.UnreadCount(c.Request.Context(), handler.Actor(c))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"unread": n}))
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	msg, err := h.service.Get(c.Request.Context(), handler.Actor(c), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(msg))
}

func (h *Handler) MarkRead(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	msg, err := h.service.MarkRead(c.Request.Context(), handler.Actor(c), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(msg))
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), handler.Actor(c), id); err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse("message deleted"))
}
