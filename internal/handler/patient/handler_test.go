package patient

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/institute-api/internal/handler"
	"github.com/jwalitptl/institute-api/internal/middleware"
	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/internal/repository/repotest"
	"github.com/jwalitptl/institute-api/internal/service/patient"
	"github.com/jwalitptl/institute-api/internal/storage/storagetest"
	jwtauth "github.com/jwalitptl/institute-api/pkg/auth"
	"github.com/jwalitptl/institute-api/pkg/metrics"
)

type testResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type fixture struct {
	store  *repotest.Store
	media  *storagetest.Memory
	engine *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repotest.NewStore()
	media := storagetest.NewMemory()
	svc := patient.NewService(store.Patients, store.Users, store.AudioNotes, media, nil,
		metrics.NewDomain(prometheus.NewRegistry(), "test"))

	engine := gin.New()
	engine.Use(middleware.ErrorHandler())
	group := engine.Group("", func(c *gin.Context) {
		id, err := uuid.Parse(c.GetHeader("X-Test-User"))
		require.NoError(t, err)
		u, err := store.Users.Get(c.Request.Context(), id)
		require.NoError(t, err)
		actor := repotest.ActorFor(u)
		handler.SetAuth(c, &jwtauth.Claims{UserID: u.ID, Role: string(u.Role)}, &actor)
		c.Next()
	})
	NewHandler(svc).RegisterRoutes(group)

	return &fixture{store: store, media: media, engine: engine}
}

func (f *fixture) do(t *testing.T, req *http.Request, as *model.User) (int, testResponse) {
	t.Helper()
	req.Header.Set("X-Test-User", as.ID.String())
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	var resp testResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

func uploadRequest(t *testing.T, patientID uuid.UUID, content []byte, description string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if content != nil {
		part, err := mw.CreateFormFile("file", "sessao.wav")
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	if description != "" {
		require.NoError(t, mw.WriteField("description", description))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/patients/"+patientID.String()+"/audio-notes", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestAudioNotes(t *testing.T) {
	f := newFixture(t)
	prof := f.store.NewUser(model.RoleProfessional)
	other := f.store.NewUser(model.RoleProfessional)
	p := f.store.NewPatient(prof.ID)

	code, resp := f.do(t, uploadRequest(t, p.ID, storagetest.WAV(800), "primeira sessão"), prof)
	require.Equal(t, http.StatusCreated, code, resp.Message)

	var note model.AudioNote
	require.NoError(t, json.Unmarshal(resp.Data, &note))
	assert.Equal(t, p.ID, note.PatientID)
	assert.Equal(t, prof.ID, note.UploadedBy)
	assert.Equal(t, "primeira sessão", note.Description)
	assert.Equal(t, 1, f.media.Len())

	t.Run("rejects non audio content", func(t *testing.T) {
		code, _ := f.do(t, uploadRequest(t, p.ID, storagetest.PNG, ""), prof)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, 1, f.media.Len())
	})

	t.Run("requires a file part", func(t *testing.T) {
		code, resp := f.do(t, uploadRequest(t, p.ID, nil, "sem arquivo"), prof)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "file is required", resp.Message)
	})

	t.Run("other professionals cannot see the patient", func(t *testing.T) {
		code, _ := f.do(t, uploadRequest(t, p.ID, storagetest.WAV(10), ""), other)
		assert.Equal(t, http.StatusNotFound, code)
	})

	t.Run("patients cannot reach staff routes", func(t *testing.T) {
		patientUser := f.store.NewUser(model.RolePatient)
		code, resp := f.do(t, httptest.NewRequest(http.MethodGet, "/patients/"+p.ID.String()+"/audio-notes", nil), patientUser)
		assert.Equal(t, http.StatusForbidden, code)
		assert.Equal(t, "insufficient permissions", resp.Message)
	})

	code, resp = f.do(t, httptest.NewRequest(http.MethodGet, "/patients/"+p.ID.String()+"/audio-notes", nil), prof)
	require.Equal(t, http.StatusOK, code)
	var notes []model.AudioNote
	require.NoError(t, json.Unmarshal(resp.Data, &notes))
	assert.Len(t, notes, 1)

	path := "/patients/" + p.ID.String() + "/audio-notes/" + note.ID.String()
	code, _ = f.do(t, httptest.NewRequest(http.MethodDelete, path, nil), prof)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, f.media.Len())

	code, _ = f.do(t, httptest.NewRequest(http.MethodDelete, path, nil), prof)
	assert.Equal(t, http.StatusNotFound, code)
}
