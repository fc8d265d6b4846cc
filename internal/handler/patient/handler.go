package patient

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/institute-api/internal/handler"
	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/internal/service/patient"
	"github.com/jwalitptl/institute-api/pkg/errors"
)

type Handler struct {
	service patient.PatientService
}

func NewHandler(service patient.PatientService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.POST("", handler.AdminOnly, h.CreatePatient)
		patients.GET("", handler.Staff, h.ListPatients)
		patients.GET("/me", handler.RequireRole(model.RolePatient), h.GetOwnRecord)
		patients.GET("/:id", h.GetPatient)
		patients.PUT("/:id", handler.AdminOnly, h.UpdatePatient)
		patients.DELETE("/:id", handler.AdminOnly, h.DeletePatient)

		patients.POST("/:id/audio-notes", handler.Staff, h.UploadAudioNote)
		patients.GET("/:id/audio-notes", handler.Staff, h.ListAudioNotes)
		patients.GET("/:id/audio-notes/:noteId", handler.Staff, h.StreamAudioNote)
		patients.DELETE("/:id/audio-notes/:noteId", handler.Staff, h.DeleteAudioNote)
	}
}

func (h *Handler) CreatePatient(c *gin.Context) {
	var req model.CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.FailBind(c, err)
		return
	}

	p, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(p))
}

func (h *Handler) GetPatient(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	p, err := h.service.Get(c.Request.Context(), handler.Actor(c), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(p))
}

func (h *Handler) GetOwnRecord(c *gin.Context) {
	p, err := h.service.Mine(c.Request.Context(), handler.Actor(c))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(p))
}

func (h *Handler) ListPatients(c *gin.Context) {
	var filter model.PatientFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		handler.FailBind(c, err)
		return
	}
	if !handler.QueryUUID(c, "professional_id", &filter.ProfessionalID) {
		return
	}

	page, err := h.service.List(c.Request.Context(), handler.Actor(c), filter)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(page))
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	var req model.UpdatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.FailBind(c, err)
		return
	}

	p, err := h.service.Update(c.Request.Context(), id, req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(p))
}

func (h *Handler) DeletePatient(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse("patient deactivated"))
}

// UploadAudioNote accepts a multipart form with a "file" part and an optional "description".
func (h *Handler) UploadAudioNote(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

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

	note, err := h.service.AddAudioNote(c.Request.Context(), handler.Actor(c), id, patient.AudioUpload{
		Filename:    fh.Filename,
		Description: c.PostForm("description"),
		Content:     f,
	})
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(note))
}

func (h *Handler) ListAudioNotes(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	notes, err := h.service.ListAudioNotes(c.Request.Context(), handler.Actor(c), id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(notes))
}

// StreamAudioNote serves the recording itself, with range support for seeking.
func (h *Handler) StreamAudioNote(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	noteID, ok := handler.ParamID(c, "noteId")
	if !ok {
		return
	}

	note, content, err := h.service.OpenAudioNote(c.Request.Context(), handler.Actor(c), id, noteID)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	defer content.Close()

	c.Header("Content-Type", note.MimeType)
	c.Header("Cache-Control", "private, no-store")
	c.Header("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": note.Filename}))
	http.ServeContent(c.Writer, c.Request, note.Filename, note.CreatedAt, content)
}

func (h *Handler) DeleteAudioNote(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	noteID, ok := handler.ParamID(c, "noteId")
	if !ok {
		return
	}

	if err := h.service.DeleteAudioNote(c.Request.Context(), handler.Actor(c), id, noteID); err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse("audio note deleted"))
}
