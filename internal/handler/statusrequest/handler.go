package statusrequest

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/institute-api/internal/handler"
	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/internal/service/statusrequest"
)

type Handler struct {
	service statusrequest.StatusRequestService
}

func NewHandler(service statusrequest.StatusRequestService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	requests := r.Group("/status-requests", handler.Staff)
	{
		requests.POST("", h.Create)
		requests.GET("", h.List)
		requests.GET("/:id", h.Get)
		requests.POST("/:id/approve", handler.AdminOnly, h.Approve)
		requests.POST("/:id/reject", handler.AdminOnly, h.Reject)
		requests.DELETE("/:id", h.Withdraw)
	}
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreateStatusRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.FailBind(c, err)
		return
	}

	sr, err := h.service.Create(c.Request.Context(), handler.Actor(c), req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(sr))
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	sr, err := h.service.Get(c.Request.Context(), handler.Actor(c), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(sr))
}

func (h *Handler) List(c *gin.Context) {
	var filter model.StatusRequestFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		handler.FailBind(c, err)
		return
	}
	if !handler.QueryUUID(c, "patient_id", &filter.PatientID) || !handler.QueryUUID(c, "professional_id", &filter.ProfessionalID) {
		return
	}

	list, err := h.service.List(c.Request.Context(), handler.Actor(c), filter)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(list))
}

func (h *Handler) Approve(c *gin.Context) {
	h.review(c, h.service.Approve)
}

func (h *Handler) Reject(c *gin.Context) {
	h.review(c, h.service.Reject)
}

type decision func(ctx context.Context, actor model.Actor, id uuid.UUID, note string) (*model.StatusRequest, error)

func (h *Handler) review(c *gin.Context, decide decision) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	var req model.ReviewStatusRequestRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			handler.FailBind(c, err)
			return
		}
	}

	sr, err := decide(c.Request.Context(), handler.Actor(c), id, req.Note)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(sr))
}

func (h *Handler) Withdraw(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Withdraw(c.Request.Context(), handler.Actor(c), id); err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse("request withdrawn"))
}
