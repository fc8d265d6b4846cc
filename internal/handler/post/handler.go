package post

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/institute-api/internal/handler"
	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/internal/service/post"
)

type Handler struct {
	service post.PostService
}

func NewHandler(service post.PostService) *Handler {
	return &Handler{service: service}
}

// RegisterPublicRoutes mounts the published blog; cache sets response caching headers.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup, cache ...gin.HandlerFunc) {
	posts := r.Group("/posts", cache...)
	{
		posts.GET("", h.ListPublished)
		posts.GET("/:slug", h.GetPublished)
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	manage := r.Group("/manage/posts", handler.Staff)
	{
		manage.POST("", h.Create)
		manage.GET("", h.List)
		manage.GET("/:id", h.Get)
		manage.PUT("/:id", h.Update)
		manage.DELETE("/:id", h.Delete)
	}
}

func (h *Handler) ListPublished(c *gin.Context) {
	var filter model.PostFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		handler.FailBind(c, err)
		return
	}

	page, err := h.service.ListPublished(c.Request.Context(), filter)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(page))
}

func (h *Handler) GetPublished(c *gin.Context) {
	p, err := h.service.GetPublished(c.Request.Context(), c.Param("slug"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(p))
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.FailBind(c, err)
		return
	}

	p, err := h.service.Create(c.Request.Context(), handler.Actor(c), req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(p))
}

// List is the authoring view, drafts included.
func (h *Handler) List(c *gin.Context) {
	var filter model.PostFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		handler.FailBind(c, err)
		return
	}
	if !handler.QueryUUID(c, "author_id", &filter.AuthorID) {
		return
	}

	page, err := h.service.List(c.Request.Context(), handler.Actor(c), filter)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(page))
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	p, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(p))
}

func (h *Handler) Update(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	var req model.UpdatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.FailBind(c, err)
		return
	}

	p, err := h.service.Update(c.Request.Context(), handler.Actor(c), id, req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(p))
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
	c.JSON(http.StatusOK, handler.NewSuccessResponse("post deleted"))
}
