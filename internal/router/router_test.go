package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	activityh "github.com/jwalitptl/institute-api/internal/handler/activity"
	appointmenth "github.com/jwalitptl/institute-api/internal/handler/appointment"
	authh "github.com/jwalitptl/institute-api/internal/handler/auth"
	carouselh "github.com/jwalitptl/institute-api/internal/handler/carousel"
	financeh "github.com/jwalitptl/institute-api/internal/handler/finance"
	"github.com/jwalitptl/institute-api/internal/handler/health"
	messageh "github.com/jwalitptl/institute-api/internal/handler/message"
	patienth "github.com/jwalitptl/institute-api/internal/handler/patient"
	posth "github.com/jwalitptl/institute-api/internal/handler/post"
	"github.com/jwalitptl/institute-api/internal/handler/prometheus"
	statusrequesth "github.com/jwalitptl/institute-api/internal/handler/statusrequest"
	userh "github.com/jwalitptl/institute-api/internal/handler/user"
	"github.com/jwalitptl/institute-api/internal/middleware"
	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/internal/repository/repotest"
	"github.com/jwalitptl/institute-api/internal/schedule"
	"github.com/jwalitptl/institute-api/internal/service/activity"
	"github.com/jwalitptl/institute-api/internal/service/appointment"
	"github.com/jwalitptl/institute-api/internal/service/auth"
	"github.com/jwalitptl/institute-api/internal/service/carousel"
	"github.com/jwalitptl/institute-api/internal/service/event"
	"github.com/jwalitptl/institute-api/internal/service/finance"
	"github.com/jwalitptl/institute-api/internal/service/message"
	"github.com/jwalitptl/institute-api/internal/service/patient"
	"github.com/jwalitptl/institute-api/internal/service/post"
	"github.com/jwalitptl/institute-api/internal/service/statusrequest"
	"github.com/jwalitptl/institute-api/internal/service/user"
	"github.com/jwalitptl/institute-api/internal/storage"
	"github.com/jwalitptl/institute-api/internal/storage/storagetest"
	jwtauth "github.com/jwalitptl/institute-api/pkg/auth"
	"github.com/jwalitptl/institute-api/pkg/metrics"
	"github.com/jwalitptl/institute-api/pkg/security"
)

const testPassword = "correct-horse"

type TestResponse struct {
	Code    int
	Header  http.Header
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  []json.RawMessage `json:"errors"`
}

func (r TestResponse) IsSuccess() bool {
	return r.Status == "success"
}

func (r TestResponse) Decode(t *testing.T, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Data, v))
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

type testEnv struct {
	store  *repotest.Store
	engine *gin.Engine
	hasher security.PasswordHasher
}

func newTestEnv(t *testing.T, limit float64, burst int) *testEnv {
	t.Helper()
	return newTestEnvWithMedia(t, limit, burst, storagetest.NewMemory(), "")
}

// newTestEnvWithMedia serves uploadsDir under /uploads when it is not empty.
func newTestEnvWithMedia(t *testing.T, limit float64, burst int, media storage.Store, uploadsDir string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repotest.NewStore()
	registry := promclient.NewRegistry()
	domain := metrics.NewDomain(registry, "test")
	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	jwt := jwtauth.NewJWTManager("test-secret", "institute-test", time.Hour)
	events := event.NewService(store.Outbox)
	hours := schedule.DefaultHours()

	authSvc := auth.NewService(store.Users, store.Tokens, hasher, jwt)

	h := Handlers{
		Health:        health.NewHandler(pingerFunc(func(context.Context) error { return nil })),
		Metrics:       prometheus.New(registry, "test"),
		Auth:          authh.NewHandler(authSvc, authh.CookieConfig{Name: "token"}),
		User:          userh.NewHandler(user.NewService(store.Users, hasher)),
		Patient:       patienth.NewHandler(patient.NewService(store.Patients, store.Users, store.AudioNotes, media, nil, domain)),
		Appointment:   appointmenth.NewHandler(appointment.NewService(store.Appointments, store.Patients, store.Users, events, hours, domain)),
		StatusRequest: statusrequesth.NewHandler(statusrequest.NewService(store.StatusRequests, store.Patients, store.Users, events, domain)),
		Post:          posth.NewHandler(post.NewService(store.Posts)),
		Activity:      activityh.NewHandler(activity.NewService(store.Activities)),
		Message:       messageh.NewHandler(message.NewService(store.Messages, store.Users, events, domain)),
		Finance:       financeh.NewHandler(finance.NewService(store.Appointments, time.UTC)),
		Carousel:      carouselh.NewHandler(carousel.NewService(store.Carousel, media, domain)),
	}

	r := NewRouter(middleware.NewAuthMiddleware(authSvc, "token"), h, RouterConfig{
		Mode:           gin.TestMode,
		AllowedOrigins: []string{"http://localhost:3000"},
		RateLimit:      rate.Limit(limit),
		RateBurst:      burst,
		UploadsPath:    "/uploads",
		UploadsDir:     uploadsDir,
	})
	r.Setup()

	return &testEnv{store: store, engine: r.Engine(), hasher: hasher}
}

func (e *testEnv) makeRequest(method, path string, body interface{}, token string, cookies ...*http.Cookie) TestResponse {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			panic(err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	resp := TestResponse{Code: w.Code, Header: w.Header()}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

// login creates an active user with a known password and returns a bearer token for it.
func (e *testEnv) login(t *testing.T, role model.Role) (*model.User, string) {
	t.Helper()
	u := e.store.NewUser(role)
	hash, err := e.hasher.Hash(testPassword)
	require.NoError(t, err)
	u.PasswordHash = hash
	require.NoError(t, e.store.Users.Update(context.Background(), u))

	resp := e.makeRequest(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    u.Email,
		"password": testPassword,
	}, "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Message)

	var out model.LoginResponse
	resp.Decode(t, &out)
	return u, out.Token
}

func TestHealthAndHeaders(t *testing.T) {
	env := newTestEnv(t, 100, 100)

	resp := env.makeRequest(http.MethodGet, "/api/v1/health/live", nil, "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "1.0", resp.Header.Get("X-API-Version"))
	assert.NotEmpty(t, resp.Header.Get(middleware.HeaderXRequestID))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	resp = env.makeRequest(http.MethodGet, "/api/v1/health/ready", nil, "")
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = env.makeRequest(http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestAuthenticationFlow(t *testing.T) {
	env := newTestEnv(t, 100, 100)

	t.Run("protected route requires a token", func(t *testing.T) {
		resp := env.makeRequest(http.MethodGet, "/api/v1/auth/me", nil, "")
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
		assert.Equal(t, "error", resp.Status)
		assert.Equal(t, "authentication required", resp.Message)
	})

	t.Run("malformed credentials are a validation error", func(t *testing.T) {
		resp := env.makeRequest(http.MethodPost, "/api/v1/auth/login", map[string]string{
			"email": "not-an-email",
		}, "")
		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, "validation failed", resp.Message)
		assert.Len(t, resp.Errors, 2)
	})

	t.Run("wrong password", func(t *testing.T) {
		u := env.store.NewUser(model.RoleProfessional)
		resp := env.makeRequest(http.MethodPost, "/api/v1/auth/login", map[string]string{
			"email":    u.Email,
			"password": "nope-nope-nope",
		}, "")
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("bearer token, cookie and logout", func(t *testing.T) {
		u, token := env.login(t, model.RoleProfessional)

		resp := env.makeRequest(http.MethodGet, "/api/v1/auth/me", nil, token)
		require.Equal(t, http.StatusOK, resp.Code)
		var me model.User
		resp.Decode(t, &me)
		assert.Equal(t, u.Email, me.Email)

		resp = env.makeRequest(http.MethodGet, "/api/v1/auth/me", nil, "", &http.Cookie{Name: "token", Value: token})
		assert.Equal(t, http.StatusOK, resp.Code)

		resp = env.makeRequest(http.MethodPost, "/api/v1/auth/logout", nil, token)
		require.Equal(t, http.StatusOK, resp.Code)

		resp = env.makeRequest(http.MethodGet, "/api/v1/auth/me", nil, token)
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})
}

func TestRoleGuards(t *testing.T) {
	env := newTestEnv(t, 100, 100)
	_, profToken := env.login(t, model.RoleProfessional)
	_, adminToken := env.login(t, model.RoleAdmin)

	body := map[string]string{
		"name":     "Dra. Marina",
		"email":    "marina@example.com",
		"password": "long-enough-pw",
		"role":     "professional",
	}

	resp := env.makeRequest(http.MethodPost, "/api/v1/users", body, profToken)
	assert.Equal(t, http.StatusForbidden, resp.Code)
	assert.Equal(t, "insufficient permissions", resp.Message)

	resp = env.makeRequest(http.MethodPost, "/api/v1/users", body, adminToken)
	assert.Equal(t, http.StatusCreated, resp.Code, resp.Message)

	resp = env.makeRequest(http.MethodGet, "/api/v1/professionals", nil, "")
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestAppointmentBooking(t *testing.T) {
	env := newTestEnv(t, 100, 100)
	prof, token := env.login(t, model.RoleProfessional)
	patient := env.store.NewPatient(prof.ID)

	day := time.Now().UTC().AddDate(0, 0, 2)
	start := time.Date(day.Year(), day.Month(), day.Day(), 10, 0, 0, 0, time.UTC)
	book := func(from time.Time) TestResponse {
		return env.makeRequest(http.MethodPost, "/api/v1/appointments", map[string]interface{}{
			"patient_id": patient.ID,
			"start_time": from,
			"end_time":   from.Add(time.Hour),
		}, token)
	}

	resp := book(start)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Message)
	var apt model.Appointment
	resp.Decode(t, &apt)
	assert.Equal(t, prof.ID, apt.ProfessionalID)

	resp = book(start.Add(30 * time.Minute))
	assert.Equal(t, http.StatusConflict, resp.Code)

	resp = env.makeRequest(http.MethodGet, fmt.Sprintf("/api/v1/appointments/availability?professional_id=%s&date=%s",
		prof.ID, start.Format("2006-01-02")), nil, "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Message)
	var avail model.Availability
	resp.Decode(t, &avail)
	assert.Len(t, avail.Slots, 7)
	for _, s := range avail.Slots {
		assert.False(t, s.Start.Equal(start), "booked slot must not be offered")
	}

	resp = env.makeRequest(http.MethodGet, "/api/v1/appointments/"+uuid.NewString(), nil, token)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = env.makeRequest(http.MethodGet, "/api/v1/appointments/not-a-uuid", nil, token)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "invalid id", resp.Message)
}

func TestContactIsRateLimited(t *testing.T) {
	env := newTestEnv(t, 0.01, 2)
	env.store.NewUser(model.RoleAdmin)

	body := map[string]string{
		"name":    "Visitante",
		"email":   "visitor@example.com",
		"subject": "Horários",
		"body":    "Vocês atendem aos sábados?",
	}
	for i := 0; i < 2; i++ {
		resp := env.makeRequest(http.MethodPost, "/api/v1/contact", body, "")
		require.Equal(t, http.StatusCreated, resp.Code, resp.Message)
	}

	resp := env.makeRequest(http.MethodPost, "/api/v1/contact", body, "")
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestPublicContentIsCacheable(t *testing.T) {
	env := newTestEnv(t, 100, 100)

	resp := env.makeRequest(http.MethodGet, "/api/v1/posts", nil, "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Header.Get("Cache-Control"), "max-age=60")

	resp = env.makeRequest(http.MethodGet, "/api/v1/posts/missing-post", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	resp = env.makeRequest(http.MethodGet, "/api/v1/carousel", nil, "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, resp.IsSuccess())
}

func TestAudioNotesAreNotPublic(t *testing.T) {
	local, err := storage.NewLocal(t.TempDir(), "/uploads", 1<<20)
	require.NoError(t, err)
	env := newTestEnvWithMedia(t, 100, 100, local, local.Root())

	owner, ownerToken := env.login(t, model.RoleProfessional)
	_, otherToken := env.login(t, model.RoleProfessional)
	p := env.store.NewPatient(owner.ID)
	recording := storagetest.WAV(400)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "session.wav")
	require.NoError(t, err)
	_, err = part.Write(recording)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/patients/"+p.ID.String()+"/audio-notes", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+ownerToken)
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Data model.AudioNote `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	note := created.Data
	assert.Equal(t, fmt.Sprintf("/api/v1/patients/%s/audio-notes/%s", p.ID, note.ID), note.URL)

	stored, err := env.store.AudioNotes.Get(context.Background(), note.ID)
	require.NoError(t, err)

	t.Run("the upload directory does not serve audio", func(t *testing.T) {
		resp := env.makeRequest(http.MethodGet, "/uploads/"+stored.Path, nil, "")
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("streaming requires authentication", func(t *testing.T) {
		resp := env.makeRequest(http.MethodGet, note.URL, nil, "")
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("other professionals cannot stream", func(t *testing.T) {
		resp := env.makeRequest(http.MethodGet, note.URL, nil, otherToken)
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("the managing professional streams the recording", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, note.URL, nil)
		req.Header.Set("Authorization", "Bearer "+ownerToken)
		w := httptest.NewRecorder()
		env.engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, note.MimeType, w.Header().Get("Content-Type"))
		assert.Equal(t, "private, no-store", w.Header().Get("Cache-Control"))
		assert.Equal(t, recording, w.Body.Bytes())
	})

	t.Run("images stay public", func(t *testing.T) {
		img, err := local.Save(context.Background(), storage.Image, "carousel", bytes.NewReader(storagetest.PNG))
		require.NoError(t, err)

		resp := env.makeRequest(http.MethodGet, img.URL, nil, "")
		assert.Equal(t, http.StatusOK, resp.Code)
	})
}
