package appointment

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/institute-api/internal/handler"
	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/internal/service/appointment"
	"github.com/jwalitptl/institute-api/pkg/errors"
)

type Handler struct {
	service appointment.AppointmentService
}

func NewHandler(service appointment.AppointmentService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.GET("/appointments/availability", h.GetAvailability)
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.POST("", handler.Staff, h.CreateAppointment)
		appointments.GET("", h.ListAppointments)
		appointments.GET("/:id", h.GetAppointment)
		appointments.PUT("/:id", handler.Staff, h.UpdateAppointment)
		appointments.POST("/:id/cancel", h.CancelAppointment)
		appointments.PATCH("/:id/status", handler.Staff, h.UpdateStatus)
		appointments.PATCH("/:id/payment", handler.Staff, h.UpdatePayment)
		appointments.DELETE("/:id", handler.Staff, h.DeleteAppointment)
	}
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.FailBind(c, err)
		return
	}

	apt, err := h.service.Create(c.Request.Context(), handler.Actor(c), req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(apt))
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	apt, err := h.service.Get(c.Request.Context(), handler.Actor(c), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(apt))
}

// ListAppointments accepts professional_id, patient_id, status and RFC 3339 from/to bounds.
func (h *Handler) ListAppointments(c *gin.Context) {
	var filter model.AppointmentFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		handler.FailBind(c, err)
		return
	}
	if !handler.QueryUUID(c, "professional_id", &filter.ProfessionalID) || !handler.QueryUUID(c, "patient_id", &filter.PatientID) {
		return
	}

	var err error
	if filter.From, err = queryTime(c, "from"); err != nil {
		handler.Fail(c, err)
		return
	}
	if filter.To, err = queryTime(c, "to"); err != nil {
		handler.Fail(c, err)
		return
	}

	apts, err := h.service.List(c.Request.Context(), handler.Actor(c), filter)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(apts))
}

func (h *Handler) UpdateAppointment(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	var req model.UpdateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.FailBind(c, err)
		return
	}

	apt, err := h.service.Update(c.Request.Context(), handler.Actor(c), id, req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(apt))
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	var req model.CancelAppointmentRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			handler.FailBind(c, err)
			return
		}
	}

	apt, err := h.service.Cancel(c.Request.Context(), handler.Actor(c), id, req.Reason)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(apt))
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	var req model.UpdateAppointmentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.FailBind(c, err)
		return
	}

	apt, err := h.service.UpdateStatus(c.Request.Context(), handler.Actor(c), id, req.Status)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(apt))
}

func (h *Handler) UpdatePayment(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	var req model.UpdatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.FailBind(c, err)
		return
	}

	apt, err := h.service.UpdatePayment(c.Request.Context(), handler.Actor(c), id, req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(apt))
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), handler.Actor(c), id); err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse("appointment deleted"))
}

// GetAvailability lists the free slots of a professional on a YYYY-MM-DD date.
func (h *Handler) GetAvailability(c *gin.Context) {
	professionalID, err := uuid.Parse(c.Query("professional_id"))
	if err != nil {
		handler.Fail(c, errors.BadRequest("invalid professional_id"))
		return
	}

	availability, err := h.service.Availability(c.Request.Context(), professionalID, c.Query("date"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(availability))
}

func queryTime(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, errors.BadRequest("invalid %s, expected RFC 3339 time", name)
	}
	return &t, nil
}
