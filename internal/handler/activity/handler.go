package activity

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/institute-api/internal/handler"
	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/internal/service/activity"
)

type Handler struct {
	service activity.ActivityService
}

func NewHandler(service activity.ActivityService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup, cache ...gin.HandlerFunc) {
	activities := r.Group("/activities", cache...)
	{
		activities.GET("", h.ListUpcoming)
		activities.GET("/:id", h.GetPublic)
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	manage := r.Group("/manage/activities", handler.AdminOnly)
	{
		manage.POST("", h.Create)
		manage.GET("", h.List)
		manage.GET("/:id", h.Get)
		manage.PUT("/:id", h.Update)
		manage.DELETE("/:id", h.Delete)
	}
}

// ListUpcoming lists active activities that have not ended, optionally filtered by ?kind=.
func (h *Handler) ListUpcoming(c *gin.Context) {
	list, err := h.service.Upcoming(c.Request.Context(), model.ActivityKind(c.Query("kind")))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(list))
}

func (h *Handler) GetPublic(c *gin.Context) {
	h.get(c, false)
}

func (h *Handler) Get(c *gin.Context) {
	h.get(c, true)
}

func (h *Handler) get(c *gin.Context, includeInactive bool) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	a, err := h.service.Get(c.Request.Context(), id, includeInactive)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(a))
}

func (h *Handler) List(c *gin.Context) {
	var filter model.ActivityFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		handler.FailBind(c, err)
		return
	}

	list, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(list))
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreateActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.FailBind(c, err)
		return
	}

	a, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(a))
}

func (h *Handler) Update(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	var req model.UpdateActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.FailBind(c, err)
		return
	}

	a, err := h.service.Update(c.Request.Context(), id, req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(a))
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse("activity deleted"))
}
