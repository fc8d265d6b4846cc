package patient

import (
	"bytes"
	"context"
	"crypto/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/internal/repository/repotest"
	"github.com/jwalitptl/institute-api/internal/storage/storagetest"
	"github.com/jwalitptl/institute-api/pkg/errors"
	"github.com/jwalitptl/institute-api/pkg/metrics"
	"github.com/jwalitptl/institute-api/pkg/security"
)

type fixture struct {
	store        *repotest.Store
	files        *storagetest.Memory
	svc          *Service
	admin        model.Actor
	professional *model.User
}

func newFixture(t *testing.T, cipher NotesCipher) *fixture {
	t.Helper()
	store := repotest.NewStore()
	files := storagetest.NewMemory()
	m := metrics.NewDomain(prometheus.NewRegistry(), "test")
	return &fixture{
		store:        store,
		files:        files,
		svc:          NewService(store.Patients, store.Users, store.AudioNotes, files, cipher, m),
		admin:        repotest.ActorFor(store.NewUser(model.RoleAdmin)),
		professional: store.NewUser(model.RoleProfessional),
	}
}

func (f *fixture) create(t *testing.T, notes string) *model.Patient {
	t.Helper()
	p, err := f.svc.Create(context.Background(), model.CreatePatientRequest{
		ProfessionalID: f.professional.ID,
		FirstName:      " Maria ",
		LastName:       "Silva",
		Email:          "Maria@Example.com",
		BirthDate:      "1990-05-17",
		SessionPrice:   20000,
		Notes:          notes,
	})
	require.NoError(t, err)
	return p
}

func TestCreatePatient(t *testing.T) {
	f := newFixture(t, nil)
	p := f.create(t, "")

	assert.Equal(t, "Maria", p.FirstName)
	assert.Equal(t, "maria@example.com", p.Email)
	assert.Equal(t, model.FrequencyWeekly, p.Frequency)
	assert.Equal(t, model.PatientStatusActive, p.Status)
	assert.True(t, p.Active)
	require.NotNil(t, p.BirthDate)
	assert.Equal(t, 1990, p.BirthDate.Year())
}

func TestCreatePatientRequiresActiveProfessional(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for _, id := range []uuid.UUID{uuid.New(), f.admin.UserID} {
		_, err := f.svc.Create(ctx, model.CreatePatientRequest{ProfessionalID: id, FirstName: "X"})
		assert.True(t, errors.Is(err, errors.KindBadRequest))
	}
}

func TestPatientLoginLinkIsUnique(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	login := f.store.NewUser(model.RolePatient)

	_, err := f.svc.Create(ctx, model.CreatePatientRequest{ProfessionalID: f.professional.ID, FirstName: "A", UserID: &login.ID})
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, model.CreatePatientRequest{ProfessionalID: f.professional.ID, FirstName: "B", UserID: &login.ID})
	assert.True(t, errors.Is(err, errors.KindConflict))

	_, err = f.svc.Create(ctx, model.CreatePatientRequest{ProfessionalID: f.professional.ID, FirstName: "C", UserID: &f.professional.ID})
	assert.True(t, errors.Is(err, errors.KindBadRequest), "linked user must be a patient login")
}

func TestVisibility(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	p := f.create(t, "private")

	got, err := f.svc.Get(ctx, repotest.ActorFor(f.professional), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "private", got.Notes)

	other := repotest.ActorFor(f.store.NewUser(model.RoleProfessional))
	_, err = f.svc.Get(ctx, other, p.ID)
	assert.True(t, errors.Is(err, errors.KindNotFound))

	page, err := f.svc.List(ctx, other, model.PatientFilter{ProfessionalID: f.professional.ID})
	require.NoError(t, err)
	assert.Empty(t, page.Items, "professional filter is forced to the caller")

	login := f.store.NewUser(model.RolePatient)
	_, err = f.svc.Update(ctx, p.ID, model.UpdatePatientRequest{UserID: &login.ID})
	require.NoError(t, err)

	mine, err := f.svc.Mine(ctx, repotest.ActorFor(login))
	require.NoError(t, err)
	assert.Equal(t, p.ID, mine.ID)
	assert.Empty(t, mine.Notes, "clinical notes are hidden from patients")
}

func TestNotesAreEncryptedAtRest(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	cipher, err := security.NewFieldCipher(key)
	require.NoError(t, err)

	f := newFixture(t, cipher)
	ctx := context.Background()
	p := f.create(t, "session notes")
	assert.Equal(t, "session notes", p.Notes)

	raw, err := f.store.Patients.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.NotContains(t, raw.Notes, "session notes")

	got, err := f.svc.Get(ctx, f.admin, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "session notes", got.Notes)

	name := "Mariana"
	updated, err := f.svc.Update(ctx, p.ID, model.UpdatePatientRequest{FirstName: &name})
	require.NoError(t, err)
	assert.Equal(t, "session notes", updated.Notes, "notes survive an unrelated update")
}

func TestDeleteIsSoft(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	p := f.create(t, "")

	require.NoError(t, f.svc.Delete(ctx, p.ID))

	got, err := f.svc.Get(ctx, f.admin, p.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Equal(t, model.PatientStatusInactive, got.Status)
}

func TestAudioNotes(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	p := f.create(t, "")
	actor := repotest.ActorFor(f.professional)

	note, err := f.svc.AddAudioNote(ctx, actor, p.ID, AudioUpload{
		Filename:    "session.wav",
		Description: "first session",
		Content:     bytes.NewReader(storagetest.WAV(800)),
	})
	require.NoError(t, err)
	assert.Equal(t, p.ID, note.PatientID)
	assert.Equal(t, f.professional.ID, note.UploadedBy)
	assert.Contains(t, note.URL, "/uploads/audio/"+p.ID.String())
	assert.Equal(t, 1, f.files.Len())

	notes, err := f.svc.ListAudioNotes(ctx, actor, p.ID)
	require.NoError(t, err)
	assert.Len(t, notes, 1)

	require.NoError(t, f.svc.DeleteAudioNote(ctx, actor, p.ID, note.ID))
	assert.Equal(t, 0, f.files.Len())
}

func TestAudioNotesRejectNonAudio(t *testing.T) {
	f := newFixture(t, nil)
	p := f.create(t, "")

	_, err := f.svc.AddAudioNote(context.Background(), f.admin, p.ID, AudioUpload{
		Filename: "photo.png",
		Content:  bytes.NewReader(storagetest.PNG),
	})
	assert.True(t, errors.Is(err, errors.KindBadRequest))
	assert.Equal(t, 0, f.files.Len())
}

func TestAudioNotesPermissions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	p := f.create(t, "")

	login := f.store.NewUser(model.RolePatient)
	_, err := f.svc.Update(ctx, p.ID, model.UpdatePatientRequest{UserID: &login.ID})
	require.NoError(t, err)

	_, err = f.svc.ListAudioNotes(ctx, repotest.ActorFor(login), p.ID)
	assert.True(t, errors.Is(err, errors.KindForbidden))

	other := repotest.ActorFor(f.store.NewUser(model.RoleProfessional))
	_, err = f.svc.ListAudioNotes(ctx, other, p.ID)
	assert.True(t, errors.Is(err, errors.KindNotFound))
}
