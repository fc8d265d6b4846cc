package finance

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/institute-api/internal/handler"
	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/internal/service/finance"
)

type Handler struct {
	service finance.FinanceService
}

func NewHandler(service finance.FinanceService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/finance/summary", handler.Staff, h.Summary)
}

// Summary accepts professional_id and inclusive YYYY-MM-DD from/to dates.
func (h *Handler) Summary(c *gin.Context) {
	var filter model.FinanceFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		handler.FailBind(c, err)
		return
	}
	if !handler.QueryUUID(c, "professional_id", &filter.ProfessionalID) {
		return
	}

	summary, err := h.service.Summary(c.Request.Context(), handler.Actor(c), filter)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(summary))
}
