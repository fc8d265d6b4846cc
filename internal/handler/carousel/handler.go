package carousel

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/institute-api/internal/handler"
	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/internal/service/carousel"
	"github.com/jwalitptl/institute-api/pkg/errors"
)

type Handler struct {
	service carousel.CarouselService
}

func NewHandler(service carousel.CarouselService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup, cache ...gin.HandlerFunc) {
	r.GET("/carousel", append(cache, h.List)...)
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	manage := r.Group("/carousel", handler.AdminOnly)
	{
		manage.POST("", h.Upload)
		manage.PUT("/order", h.Reorder)
		manage.DELETE("/:id", h.Delete)
	}
}

func (h *Handler) List(c *gin.Context) {
	images, err := h.service.List(c.Request.Context())
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(images))
}

// Upload accepts a multipart form with a "file" part and optional "title" and "link_url".
func (h *Handler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		handler.Fail(c, errors.BadRequest("file is required"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		handler.Fail(c, errors.BadRequest("cannot read uploaded file"))
		return
	}
	defer f.Close()

	img, err := h.service.Upload(c.Request.Context(), carousel.Upload{
		Title:   c.PostForm("title"),
		LinkURL: c.PostForm("link_url"),
		Content: f,
	})
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(img))
}

func (h *Handler) Reorder(c *gin.Context) {
	var req model.ReorderCarouselRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.FailBind(c, err)
		return
	}

	images, err := h.service.Reorder(c.Request.Context(), req.IDs)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(images))
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
	c.JSON(http.StatusOK, handler.NewSuccessResponse("image deleted"))
}
