package repository

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/interpreter-booking-api/internal/models"
)

type memoryState struct {
	requests     map[string]models.InterpreterRequest
	interpreters map[string]models.Interpreter
	patients     map[string]models.Patient
	users        map[string]models.User
	audit        []models.AuditLog
}

// MemoryStore keeps every record in process memory behind one mutex. It
// mirrors the guarded updates of the Postgres repositories and backs the
// memory store driver and the concurrency tests.
type MemoryStore struct {
	mu    sync.RWMutex
	state memoryState
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: memoryState{
		requests:     make(map[string]models.InterpreterRequest),
		interpreters: make(map[string]models.Interpreter),
		patients:     make(map[string]models.Patient),
		users:        make(map[string]models.User),
	}}
}

// Requests exposes the request table.
func (s *MemoryStore) Requests() *MemoryRequests { return &MemoryRequests{s: s} }

// Interpreters exposes the interpreter table.
func (s *MemoryStore) Interpreters() *MemoryInterpreters { return &MemoryInterpreters{s: s} }

// Patients exposes the patient table.
func (s *MemoryStore) Patients() *MemoryPatients { return &MemoryPatients{s: s} }

// Users exposes the login table and audit trail.
func (s *MemoryStore) Users() *MemoryUsers { return &MemoryUsers{s: s} }

// AuditLogs returns a copy of the recorded audit entries.
func (s *MemoryStore) AuditLogs() []models.AuditLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.AuditLog, len(s.state.audit))
	copy(out, s.state.audit)
	return out
}

// MemoryRequests is the in-memory request table.
type MemoryRequests struct{ s *MemoryStore }

// Create inserts a request.
func (m *MemoryRequests) Create(_ context.Context, req *models.InterpreterRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.RequestStatusPending
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now().UTC()
	}
	req.UpdatedAt = req.RequestedAt

	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, exists := m.s.state.requests[req.ID]; exists {
		return ErrDuplicate
	}
	m.s.state.requests[req.ID] = cloneRequest(*req)
	return nil
}

// GetByID returns a copy of the request or sql.ErrNoRows.
func (m *MemoryRequests) GetByID(_ context.Context, id string) (*models.InterpreterRequest, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	req, ok := m.s.state.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := cloneRequest(req)
	return &out, nil
}

// ListByStatus returns requests in status, oldest first.
func (m *MemoryRequests) ListByStatus(_ context.Context, status models.RequestStatus) ([]models.InterpreterRequest, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	var out []models.InterpreterRequest
	for _, req := range m.s.state.requests {
		if req.Status == status {
			out = append(out, cloneRequest(req))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].RequestedAt.Before(out[j].RequestedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// List returns requests STAT first then newest first.
func (m *MemoryRequests) List(_ context.Context, filter models.RequestFilter) ([]models.InterpreterRequest, error) {
	m.s.mu.RLock()
	var out []models.InterpreterRequest
	for _, req := range m.s.state.requests {
		if filter.Status != nil && req.Status != *filter.Status {
			continue
		}
		if filter.InterpreterID != "" && !req.AssignedTo(filter.InterpreterID) {
			continue
		}
		out = append(out, cloneRequest(req))
	}
	m.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].IsStat != out[j].IsStat {
			return out[i].IsStat
		}
		if !out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].RequestedAt.After(out[j].RequestedAt)
		}
		return out[i].ID < out[j].ID
	})
	limit, offset := normalizePage(filter.Limit, filter.Offset)
	if offset >= len(out) {
		return []models.InterpreterRequest{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Accept mirrors RequestRepository.Accept.
func (m *MemoryRequests) Accept(_ context.Context, params AcceptParams) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	req, ok := m.s.state.requests[params.RequestID]
	if !ok || req.Status != models.RequestStatusPending {
		return ErrStatusConflict
	}
	interpreter, ok := m.s.state.interpreters[params.InterpreterID]
	if !ok || interpreter.AvailabilityStatus != models.AvailabilityAvailable {
		return ErrAvailabilityConflict
	}

	id := params.InterpreterID
	accepted := params.AcceptedAt
	req.Status = models.RequestStatusAccepted
	req.InterpreterID = &id
	req.AcceptedAt = &accepted
	req.UpdatedAt = accepted
	interpreter.AvailabilityStatus = models.AvailabilityBusy
	interpreter.UpdatedAt = accepted

	m.s.state.requests[req.ID] = req
	m.s.state.interpreters[interpreter.ID] = interpreter
	return nil
}

// Complete mirrors RequestRepository.Complete.
func (m *MemoryRequests) Complete(_ context.Context, params CompleteParams) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	req, ok := m.s.state.requests[params.RequestID]
	if !ok || req.Status != models.RequestStatusAccepted || !req.AssignedTo(params.InterpreterID) {
		return ErrStatusConflict
	}
	interpreter, ok := m.s.state.interpreters[params.InterpreterID]
	if !ok {
		return ErrAvailabilityConflict
	}

	notes := params.EncounterNotes
	completed := params.CompletedAt
	req.Status = models.RequestStatusCompleted
	req.EncounterNotes = &notes
	req.CompletedAt = &completed
	req.UpdatedAt = completed
	interpreter.AvailabilityStatus = models.AvailabilityAvailable
	interpreter.UpdatedAt = completed

	m.s.state.requests[req.ID] = req
	m.s.state.interpreters[interpreter.ID] = interpreter
	return nil
}

// Cancel mirrors RequestRepository.Cancel.
func (m *MemoryRequests) Cancel(_ context.Context, params CancelParams) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	req, ok := m.s.state.requests[params.RequestID]
	if !ok || req.Status != params.From {
		return ErrStatusConflict
	}
	release := params.From == models.RequestStatusAccepted && params.InterpreterID != nil
	var interpreter models.Interpreter
	if release {
		interpreter, ok = m.s.state.interpreters[*params.InterpreterID]
		if !ok {
			return ErrAvailabilityConflict
		}
	}

	cancelled := params.CancelledAt
	req.Status = models.RequestStatusCancelled
	req.InterpreterID = nil
	req.CancelledAt = &cancelled
	req.UpdatedAt = cancelled
	m.s.state.requests[req.ID] = req
	if release {
		interpreter.AvailabilityStatus = models.AvailabilityAvailable
		interpreter.UpdatedAt = cancelled
		m.s.state.interpreters[interpreter.ID] = interpreter
	}
	return nil
}

// MemoryInterpreters is the in-memory interpreter table.
type MemoryInterpreters struct{ s *MemoryStore }

// CreateWithLogin inserts the login and profile together.
func (m *MemoryInterpreters) CreateWithLogin(_ context.Context, user *models.User, interpreter *models.Interpreter) error {
	now := time.Now().UTC()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt, user.UpdatedAt = now, now
	if interpreter.ID == "" {
		interpreter.ID = uuid.NewString()
	}
	interpreter.LoginID = user.ID
	if interpreter.AvailabilityStatus == "" {
		interpreter.AvailabilityStatus = models.AvailabilityAvailable
	}
	interpreter.CreatedAt, interpreter.UpdatedAt = now, now

	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.usernameTaken(user.Username) {
		return ErrDuplicate
	}
	if _, exists := m.s.state.interpreters[interpreter.ID]; exists {
		return ErrDuplicate
	}
	m.s.state.users[user.ID] = *user
	m.s.state.interpreters[interpreter.ID] = cloneInterpreter(*interpreter)
	return nil
}

// GetByID returns a copy of the interpreter or sql.ErrNoRows.
func (m *MemoryInterpreters) GetByID(_ context.Context, id string) (*models.Interpreter, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	interpreter, ok := m.s.state.interpreters[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := cloneInterpreter(interpreter)
	return &out, nil
}

// GetByLoginID returns the interpreter bound to a login.
func (m *MemoryInterpreters) GetByLoginID(_ context.Context, loginID string) (*models.Interpreter, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	for _, interpreter := range m.s.state.interpreters {
		if interpreter.LoginID == loginID {
			out := cloneInterpreter(interpreter)
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

// List returns interpreters ordered by name.
func (m *MemoryInterpreters) List(_ context.Context, filter models.InterpreterFilter) ([]models.Interpreter, error) {
	lang := strings.ToLower(strings.TrimSpace(filter.Language))
	m.s.mu.RLock()
	var out []models.Interpreter
	for _, interpreter := range m.s.state.interpreters {
		if lang != "" && strings.ToLower(strings.TrimSpace(interpreter.Language)) != lang {
			continue
		}
		if filter.AvailableOnly && interpreter.AvailabilityStatus != models.AvailabilityAvailable {
			continue
		}
		out = append(out, cloneInterpreter(interpreter))
	}
	m.s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpdateContact updates the self-editable contact fields.
func (m *MemoryInterpreters) UpdateContact(_ context.Context, interpreter *models.Interpreter) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	current, ok := m.s.state.interpreters[interpreter.ID]
	if !ok {
		return sql.ErrNoRows
	}
	interpreter.UpdatedAt = time.Now().UTC()
	current.Name = interpreter.Name
	current.PhoneNumber = cloneString(interpreter.PhoneNumber)
	current.Email = cloneString(interpreter.Email)
	current.Gender = cloneString(interpreter.Gender)
	current.GenderPreference = cloneString(interpreter.GenderPreference)
	current.UpdatedAt = interpreter.UpdatedAt
	m.s.state.interpreters[current.ID] = current
	return nil
}

// SetAvailability swaps the availability flag when it currently equals from.
func (m *MemoryInterpreters) SetAvailability(_ context.Context, id string, from, to models.Availability, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	interpreter, ok := m.s.state.interpreters[id]
	if !ok || interpreter.AvailabilityStatus != from {
		return ErrAvailabilityConflict
	}
	interpreter.AvailabilityStatus = to
	interpreter.UpdatedAt = at
	m.s.state.interpreters[id] = interpreter
	return nil
}

// MemoryPatients is the in-memory patient table. fhir_id is unique.
type MemoryPatients struct{ s *MemoryStore }

// GetByFHIRID returns the cached patient for an external identifier.
func (m *MemoryPatients) GetByFHIRID(_ context.Context, fhirID string) (*models.Patient, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	for _, patient := range m.s.state.patients {
		if patient.FHIRID == fhirID {
			out := clonePatient(patient)
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

// GetByID returns a patient by local identifier.
func (m *MemoryPatients) GetByID(_ context.Context, id string) (*models.Patient, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	patient, ok := m.s.state.patients[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := clonePatient(patient)
	return &out, nil
}

// List returns patients by name with the total count.
func (m *MemoryPatients) List(_ context.Context, offset, limit int) ([]models.Patient, int, error) {
	m.s.mu.RLock()
	out := make([]models.Patient, 0, len(m.s.state.patients))
	for _, patient := range m.s.state.patients {
		out = append(out, clonePatient(patient))
	}
	m.s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	total := len(out)
	limit, offset = normalizePage(limit, offset)
	if offset >= total {
		return []models.Patient{}, total, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

// Create inserts a patient, enforcing fhir_id uniqueness.
func (m *MemoryPatients) Create(_ context.Context, patient *models.Patient) error {
	if patient.ID == "" {
		patient.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	patient.CreatedAt, patient.UpdatedAt = now, now

	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.state.patients {
		if existing.FHIRID == patient.FHIRID {
			return ErrDuplicate
		}
	}
	m.s.state.patients[patient.ID] = clonePatient(*patient)
	return nil
}

// MemoryUsers is the in-memory login table.
type MemoryUsers struct{ s *MemoryStore }

// FindByUsername returns a login by username.
func (m *MemoryUsers) FindByUsername(_ context.Context, username string) (*models.User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	for _, user := range m.s.state.users {
		if user.Username == username {
			out := user
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

// FindByID returns a login by identifier.
func (m *MemoryUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	user, ok := m.s.state.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &user, nil
}

// UpdateLastLogin records the login time.
func (m *MemoryUsers) UpdateLastLogin(_ context.Context, id string, ts time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	user, ok := m.s.state.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.LastLogin = &ts
	user.UpdatedAt = ts
	m.s.state.users[id] = user
	return nil
}

// Create inserts a login. Taken usernames yield ErrDuplicate.
func (m *MemoryUsers) Create(_ context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.usernameTaken(user.Username) {
		return ErrDuplicate
	}
	m.s.state.users[user.ID] = *user
	return nil
}

// CreateAuditLog appends an audit entry.
func (m *MemoryUsers) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	m.s.mu.Lock()
	m.s.state.audit = append(m.s.state.audit, *log)
	m.s.mu.Unlock()
	return nil
}

func (s *MemoryStore) usernameTaken(username string) bool {
	for _, existing := range s.state.users {
		if existing.Username == username {
			return true
		}
	}
	return false
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneRequest(r models.InterpreterRequest) models.InterpreterRequest {
	r.InterpreterID = cloneString(r.InterpreterID)
	r.PatientType = cloneString(r.PatientType)
	r.RequestNotes = cloneString(r.RequestNotes)
	r.EncounterNotes = cloneString(r.EncounterNotes)
	r.AcceptedAt = cloneTime(r.AcceptedAt)
	r.CompletedAt = cloneTime(r.CompletedAt)
	r.CancelledAt = cloneTime(r.CancelledAt)
	return r
}

func cloneInterpreter(i models.Interpreter) models.Interpreter {
	i.PhoneNumber = cloneString(i.PhoneNumber)
	i.Email = cloneString(i.Email)
	i.Gender = cloneString(i.Gender)
	i.GenderPreference = cloneString(i.GenderPreference)
	return i
}

func clonePatient(p models.Patient) models.Patient {
	p.Location = cloneString(p.Location)
	p.Birthdate = cloneString(p.Birthdate)
	p.Gender = cloneString(p.Gender)
	p.Address = cloneString(p.Address)
	p.PhoneNumber = cloneString(p.PhoneNumber)
	p.Email = cloneString(p.Email)
	return p
}
