// Package repotest provides in-memory repositories for tests. They mirror the constraints of
// the postgres implementations that services rely on: unique emails and slugs, one pending
// status request per patient and serialized checked appointment writes.
package repotest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/internal/repository"
	"github.com/jwalitptl/institute-api/internal/schedule"
	"github.com/jwalitptl/institute-api/pkg/errors"
)

// Store bundles one of every repository over shared state.
type Store struct {
	Users          *UserRepo
	Patients       *PatientRepo
	AudioNotes     *AudioNoteRepo
	Appointments   *AppointmentRepo
	StatusRequests *StatusRequestRepo
	Posts          *PostRepo
	Activities     *ActivityRepo
	Messages       *MessageRepo
	Carousel       *CarouselRepo
	Outbox         *OutboxRepo
	Tokens         *TokenStore
}

func NewStore() *Store {
	patients := &PatientRepo{items: map[uuid.UUID]model.Patient{}}
	return &Store{
		Users:          &UserRepo{items: map[uuid.UUID]model.User{}},
		Patients:       patients,
		AudioNotes:     &AudioNoteRepo{items: map[uuid.UUID]model.AudioNote{}},
		Appointments:   &AppointmentRepo{items: map[uuid.UUID]model.Appointment{}},
		StatusRequests: &StatusRequestRepo{items: map[uuid.UUID]model.StatusRequest{}, patients: patients},
		Posts:          &PostRepo{items: map[uuid.UUID]model.Post{}},
		Activities:     &ActivityRepo{items: map[uuid.UUID]model.Activity{}},
		Messages:       &MessageRepo{items: map[uuid.UUID]model.Message{}},
		Carousel:       &CarouselRepo{items: map[uuid.UUID]model.CarouselImage{}},
		Outbox:         &OutboxRepo{},
		Tokens:         &TokenStore{revoked: map[string]time.Time{}},
	}
}

func page[T any](items []T, p model.Pagination) []T {
	off, limit := p.Offset(), p.Limit()
	if off >= len(items) {
		return nil
	}
	end := off + limit
	if end > len(items) {
		end = len(items)
	}
	return items[off:end]
}

type UserRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]model.User
}

var _ repository.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) emailTaken(email string, except uuid.UUID) bool {
	for _, u := range r.items {
		if u.ID != except && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (r *UserRepo) Create(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.emailTaken(u.Email, u.ID) {
		return errors.Conflict("user already exists")
	}
	r.items[u.ID] = *u
	return nil
}

func (r *UserRepo) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.items[id]
	if !ok {
		return nil, errors.NotFound("user")
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.items {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, errors.NotFound("user")
}

func (r *UserRepo) Update(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[u.ID]; !ok {
		return errors.NotFound("user")
	}
	if r.emailTaken(u.Email, u.ID) {
		return errors.Conflict("user already exists")
	}
	r.items[u.ID] = *u
	return nil
}

func (r *UserRepo) List(_ context.Context, f model.UserFilter) ([]*model.User, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.User
	for _, u := range r.items {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.Active != nil && u.Active != *f.Active {
			continue
		}
		u := u
		out = append(out, &u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return page(out, f.Pagination), len(out), nil
}

func (r *UserRepo) CountByRole(_ context.Context, role model.Role) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, u := range r.items {
		if u.Role == role && u.Active {
			n++
		}
	}
	return n, nil
}

func (r *UserRepo) TouchLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.items[id]
	if !ok {
		return errors.NotFound("user")
	}
	u.LastLoginAt = &at
	r.items[id] = u
	return nil
}

type PatientRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]model.Patient
}

var _ repository.PatientRepository = (*PatientRepo)(nil)

func (r *PatientRepo) Create(_ context.Context, p *model.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[p.ID] = *p
	return nil
}

func (r *PatientRepo) Get(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return nil, errors.NotFound("patient")
	}
	return &p, nil
}

func (r *PatientRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*model.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.items {
		if p.UserID != nil && *p.UserID == userID {
			return &p, nil
		}
	}
	return nil, errors.NotFound("patient")
}

func (r *PatientRepo) Update(_ context.Context, p *model.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[p.ID]; !ok {
		return errors.NotFound("patient")
	}
	r.items[p.ID] = *p
	return nil
}

func (r *PatientRepo) List(_ context.Context, f model.PatientFilter) ([]*model.Patient, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Patient
	search := strings.ToLower(f.Search)
	for _, p := range r.items {
		if !f.IncludeDeleted && !p.Active {
			continue
		}
		if f.ProfessionalID != uuid.Nil && p.ProfessionalID != f.ProfessionalID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.FirstName+" "+p.LastName+" "+p.Email), search) {
			continue
		}
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName() < out[j].FullName() })
	return page(out, f.Pagination), len(out), nil
}

type AudioNoteRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]model.AudioNote
}

var _ repository.AudioNoteRepository = (*AudioNoteRepo)(nil)

func (r *AudioNoteRepo) Create(_ context.Context, n *model.AudioNote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[n.ID] = *n
	return nil
}

func (r *AudioNoteRepo) Get(_ context.Context, id uuid.UUID) (*model.AudioNote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.items[id]
	if !ok {
		return nil, errors.NotFound("audio note")
	}
	return &n, nil
}

func (r *AudioNoteRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*model.AudioNote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.AudioNote
	for _, n := range r.items {
		if n.PatientID == patientID {
			n := n
			out = append(out, &n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *AudioNoteRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return errors.NotFound("audio note")
	}
	delete(r.items, id)
	return nil
}

// AppointmentRepo holds its mutex across check and write, which is what the per-day
// advisory lock guarantees in postgres.
type AppointmentRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]model.Appointment
}

var _ repository.AppointmentRepository = (*AppointmentRepo)(nil)

func (r *AppointmentRepo) blocking(professionalID uuid.UUID, day schedule.Interval, exclude uuid.UUID) []*model.Appointment {
	var out []*model.Appointment
	for _, a := range r.items {
		if a.ProfessionalID != professionalID || a.ID == exclude || !a.Blocks() {
			continue
		}
		if !schedule.Overlaps(a.Interval(), day) {
			continue
		}
		a := a
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

func (r *AppointmentRepo) CreateChecked(_ context.Context, apt *model.Appointment, day schedule.Interval, check repository.ConflictCheck) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := check(r.blocking(apt.ProfessionalID, day, apt.ID)); err != nil {
		return err
	}
	r.items[apt.ID] = *apt
	return nil
}

func (r *AppointmentRepo) UpdateChecked(_ context.Context, id uuid.UUID, change repository.AppointmentChange, guard repository.SlotGuard) (*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	apt, ok := r.items[id]
	if !ok {
		return nil, errors.NotFound("appointment")
	}
	if err := change(&apt); err != nil {
		return nil, err
	}
	day, check := guard(&apt)
	if err := check(r.blocking(apt.ProfessionalID, day, apt.ID)); err != nil {
		return nil, err
	}
	r.items[id] = apt
	return &apt, nil
}

func (r *AppointmentRepo) Modify(_ context.Context, id uuid.UUID, change repository.AppointmentChange) (*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	apt, ok := r.items[id]
	if !ok {
		return nil, errors.NotFound("appointment")
	}
	if err := change(&apt); err != nil {
		return nil, err
	}
	r.items[id] = apt
	return &apt, nil
}

func (r *AppointmentRepo) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return nil, errors.NotFound("appointment")
	}
	return &a, nil
}

func (r *AppointmentRepo) List(_ context.Context, f model.AppointmentFilter) ([]*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Appointment
	for _, a := range r.items {
		if f.ProfessionalID != uuid.Nil && a.ProfessionalID != f.ProfessionalID {
			continue
		}
		if f.PatientID != uuid.Nil && a.PatientID != f.PatientID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.From != nil && a.StartTime.Before(*f.From) {
			continue
		}
		if f.To != nil && !a.StartTime.Before(*f.To) {
			continue
		}
		a := a
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (r *AppointmentRepo) ListBlocking(_ context.Context, professionalID uuid.UUID, day schedule.Interval) ([]*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.blocking(professionalID, day, uuid.Nil), nil
}

func (r *AppointmentRepo) DeleteCancelled(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if apt, ok := r.items[id]; !ok || apt.Status != model.AppointmentStatusCancelled {
		return errors.NotFound("cancelled appointment")
	}
	delete(r.items, id)
	return nil
}

type StatusRequestRepo struct {
	mu       sync.Mutex
	items    map[uuid.UUID]model.StatusRequest
	patients *PatientRepo
}

var _ repository.StatusRequestRepository = (*StatusRequestRepo)(nil)

func (r *StatusRequestRepo) Create(_ context.Context, req *model.StatusRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.PatientID == req.PatientID && existing.Status == model.StatusRequestPending {
			return errors.Conflict("patient already has a pending status request")
		}
	}
	r.items[req.ID] = *req
	return nil
}

func (r *StatusRequestRepo) Get(_ context.Context, id uuid.UUID) (*model.StatusRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.items[id]
	if !ok {
		return nil, errors.NotFound("status request")
	}
	return &req, nil
}

func (r *StatusRequestRepo) GetPendingByPatient(_ context.Context, patientID uuid.UUID) (*model.StatusRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.items {
		if req.PatientID == patientID && req.Status == model.StatusRequestPending {
			return &req, nil
		}
	}
	return nil, errors.NotFound("pending status request")
}

func (r *StatusRequestRepo) List(_ context.Context, f model.StatusRequestFilter) ([]*model.StatusRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.StatusRequest
	for _, req := range r.items {
		if f.PatientID != uuid.Nil && req.PatientID != f.PatientID {
			continue
		}
		if f.ProfessionalID != uuid.Nil && req.ProfessionalID != f.ProfessionalID {
			continue
		}
		if f.Status != "" && req.Status != f.Status {
			continue
		}
		req := req
		out = append(out, &req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *StatusRequestRepo) ApplyDecision(_ context.Context, req *model.StatusRequest, change repository.PatientChange) (*model.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.items[req.ID]
	if !ok {
		return nil, errors.NotFound("status request")
	}
	if current.Status != model.StatusRequestPending {
		return nil, errors.Conflict("status request has already been reviewed")
	}

	r.patients.mu.Lock()
	defer r.patients.mu.Unlock()
	patient, ok := r.patients.items[req.PatientID]
	if !ok {
		return nil, errors.NotFound("patient")
	}
	if change != nil {
		if err := change(&patient); err != nil {
			return nil, err
		}
		r.patients.items[patient.ID] = patient
	}
	r.items[req.ID] = *req
	return &patient, nil
}

func (r *StatusRequestRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.items[id]
	if !ok || req.Status != model.StatusRequestPending {
		return errors.NotFound("pending status request")
	}
	delete(r.items, id)
	return nil
}

type PostRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]model.Post
}

var _ repository.PostRepository = (*PostRepo)(nil)

func (r *PostRepo) slugTaken(slug string, except uuid.UUID) bool {
	for _, p := range r.items {
		if p.ID != except && p.Slug == slug {
			return true
		}
	}
	return false
}

func (r *PostRepo) Create(_ context.Context, p *model.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.slugTaken(p.Slug, p.ID) {
		return errors.Conflict("post already exists")
	}
	r.items[p.ID] = *p
	return nil
}

func (r *PostRepo) Get(_ context.Context, id uuid.UUID) (*model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return nil, errors.NotFound("post")
	}
	return &p, nil
}

func (r *PostRepo) GetBySlug(_ context.Context, slug string) (*model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.items {
		if p.Slug == slug {
			return &p, nil
		}
	}
	return nil, errors.NotFound("post")
}

func (r *PostRepo) Update(_ context.Context, p *model.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[p.ID]; !ok {
		return errors.NotFound("post")
	}
	if r.slugTaken(p.Slug, p.ID) {
		return errors.Conflict("post already exists")
	}
	r.items[p.ID] = *p
	return nil
}

func (r *PostRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return errors.NotFound("post")
	}
	delete(r.items, id)
	return nil
}

func (r *PostRepo) List(_ context.Context, f model.PostFilter) ([]*model.Post, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Post
	for _, p := range r.items {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.AuthorID != uuid.Nil && p.AuthorID != f.AuthorID {
			continue
		}
		if f.Tag != "" && !containsTag(p.Tags, f.Tag) {
			continue
		}
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return sortKey(out[i]).After(sortKey(out[j])) })
	return page(out, f.Pagination), len(out), nil
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func sortKey(p *model.Post) time.Time {
	if p.PublishedAt != nil {
		return *p.PublishedAt
	}
	return p.CreatedAt
}

func (r *PostRepo) SlugExists(_ context.Context, slug string, excludeID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slugTaken(slug, excludeID), nil
}

type ActivityRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]model.Activity
}

var _ repository.ActivityRepository = (*ActivityRepo)(nil)

func (r *ActivityRepo) Create(_ context.Context, a *model.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[a.ID] = *a
	return nil
}

func (r *ActivityRepo) Get(_ context.Context, id uuid.UUID) (*model.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return nil, errors.NotFound("activity")
	}
	return &a, nil
}

func (r *ActivityRepo) Update(_ context.Context, a *model.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[a.ID]; !ok {
		return errors.NotFound("activity")
	}
	r.items[a.ID] = *a
	return nil
}

func (r *ActivityRepo) List(_ context.Context, f model.ActivityFilter) ([]*model.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Activity
	for _, a := range r.items {
		if !f.IncludeDeleted && !a.Active {
			continue
		}
		if f.Kind != "" && a.Kind != f.Kind {
			continue
		}
		if f.UpcomingAfter != nil && !a.EndsAt.After(*f.UpcomingAfter) {
			continue
		}
		a := a
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

type MessageRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]model.Message
}

var _ repository.MessageRepository = (*MessageRepo)(nil)

func (r *MessageRepo) Create(_ context.Context, m *model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[m.ID] = *m
	return nil
}

func (r *MessageRepo) Get(_ context.Context, id uuid.UUID) (*model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok {
		return nil, errors.NotFound("message")
	}
	return &m, nil
}

func (r *MessageRepo) matches(m model.Message, f model.MessageFilter) bool {
	inbox := m.RecipientID != nil && *m.RecipientID == f.RecipientID
	if f.IncludeAdminInbox && m.RecipientID == nil {
		inbox = true
	}
	return inbox && (!f.UnreadOnly || m.ReadAt == nil)
}

func (r *MessageRepo) List(_ context.Context, f model.MessageFilter) ([]*model.Message, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Message
	for _, m := range r.items {
		if r.matches(m, f) {
			m := m
			out = append(out, &m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Pagination), len(out), nil
}

func (r *MessageRepo) CountUnread(_ context.Context, f model.MessageFilter) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f.UnreadOnly = true
	n := 0
	for _, m := range r.items {
		if r.matches(m, f) {
			n++
		}
	}
	return n, nil
}

func (r *MessageRepo) MarkRead(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok {
		return errors.NotFound("message")
	}
	if m.ReadAt == nil {
		m.ReadAt = &at
	}
	r.items[id] = m
	return nil
}

func (r *MessageRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return errors.NotFound("message")
	}
	delete(r.items, id)
	return nil
}

type CarouselRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]model.CarouselImage
}

var _ repository.CarouselRepository = (*CarouselRepo)(nil)

func (r *CarouselRepo) Create(_ context.Context, img *model.CarouselImage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[img.ID] = *img
	return nil
}

func (r *CarouselRepo) Get(_ context.Context, id uuid.UUID) (*model.CarouselImage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	img, ok := r.items[id]
	if !ok {
		return nil, errors.NotFound("carousel image")
	}
	return &img, nil
}

func (r *CarouselRepo) List(_ context.Context) ([]*model.CarouselImage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.CarouselImage
	for _, img := range r.items {
		if img.Active {
			img := img
			out = append(out, &img)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r *CarouselRepo) NextPosition(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := 0
	for _, img := range r.items {
		if img.Position >= next {
			next = img.Position + 1
		}
	}
	return next, nil
}

func (r *CarouselRepo) Reorder(_ context.Context, ids []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if _, ok := r.items[id]; !ok {
			return errors.NotFound("carousel image")
		}
	}
	for i, id := range ids {
		img := r.items[id]
		img.Position = i
		r.items[id] = img
	}
	return nil
}

func (r *CarouselRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return errors.NotFound("carousel image")
	}
	delete(r.items, id)
	return nil
}

type OutboxRepo struct {
	mu     sync.Mutex
	Events []*model.OutboxEvent
	// CreateErr, when set, is returned by Create.
	CreateErr error
}

var _ repository.OutboxRepository = (*OutboxRepo)(nil)

func (r *OutboxRepo) Create(_ context.Context, e *model.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CreateErr != nil {
		return r.CreateErr
	}
	cp := *e
	r.Events = append(r.Events, &cp)
	return nil
}

func (r *OutboxRepo) ProcessPending(ctx context.Context, limit int, handle repository.OutboxHandler) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	claimed := 0
	for _, e := range r.Events {
		if claimed == limit {
			break
		}
		if e.Status != model.OutboxStatusPending {
			continue
		}
		claimed++
		if err := handle(ctx, e); err != nil {
			msg := err.Error()
			e.Status = model.OutboxStatusFailed
			e.ErrorMessage = &msg
			e.RetryCount++
			continue
		}
		now := time.Now()
		e.Status = model.OutboxStatusProcessed
		e.ProcessedAt = &now
	}
	return claimed, nil
}

func (r *OutboxRepo) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*model.OutboxEvent
	var deleted int64
	for _, e := range r.Events {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.Events = kept
	return deleted, nil
}

// Types returns the event types recorded so far, in order.
func (r *OutboxRepo) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.EventType)
	}
	return out
}

type TokenStore struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

var _ repository.TokenStore = (*TokenStore)(nil)

func (s *TokenStore) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[tokenID] = time.Now().Add(ttl)
	return nil
}

func (s *TokenStore) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.revoked[tokenID]
	return ok && time.Now().Before(exp), nil
}
