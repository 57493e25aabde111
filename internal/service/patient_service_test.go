package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/interpreter-booking-api/internal/dto"
	"github.com/noah-isme/interpreter-booking-api/internal/models"
	"github.com/noah-isme/interpreter-booking-api/internal/repository"
	appErrors "github.com/noah-isme/interpreter-booking-api/pkg/errors"
	"github.com/noah-isme/interpreter-booking-api/pkg/fhir"
)

type stubRegistry struct {
	mu        sync.Mutex
	patients  map[string]fhir.Patient
	getErr    error
	getCalls  int32
	search    []fhir.Patient
	searches  int32
	created   []fhir.Patient
	createdID string
	delay     time.Duration
	arrived   *sync.WaitGroup
	release   chan struct{}
}

func (s *stubRegistry) GetPatient(ctx context.Context, id string) (*fhir.Patient, error) {
	atomic.AddInt32(&s.getCalls, 1)
	if s.arrived != nil {
		s.arrived.Done()
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.getErr != nil {
		return nil, s.getErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	patient, ok := s.patients[id]
	if !ok {
		return nil, fhir.ErrNotFound
	}
	return &patient, nil
}

func (s *stubRegistry) SearchPatients(_ context.Context, _, _ string) ([]fhir.Patient, error) {
	atomic.AddInt32(&s.searches, 1)
	return s.search, nil
}

func (s *stubRegistry) CreatePatient(_ context.Context, patient fhir.Patient) (*fhir.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	patient.ID = s.createdID
	s.created = append(s.created, patient)
	return &patient, nil
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string][]byte)
	}
	c.entries[key] = raw
	return nil
}

func (c *memoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

func registryPatient(id string) fhir.Patient {
	return fhir.Patient{
		ResourceType: "Patient",
		ID:           id,
		Name:         []fhir.HumanName{{Given: []string{"Mei"}, Family: "Wong"}},
		Gender:       "female",
		BirthDate:    "1950-02-11",
		Communication: []fhir.Communication{{
			Language:  fhir.CodeableConcept{Coding: []fhir.Coding{{Code: "zh", Display: "Mandarin"}}},
			Preferred: true,
		}},
	}
}

func newPatientService(store *repository.MemoryStore, registry *stubRegistry, cache *CacheService) *PatientService {
	return NewPatientService(store.Patients(), registry, store.Users(), cache, time.Minute, nil, NewMetricsService(), zap.NewNop())
}

func TestSyncPatientCreatesOnce(t *testing.T) {
	store := repository.NewMemoryStore()
	registry := &stubRegistry{patients: map[string]fhir.Patient{"fhir-42": registryPatient("fhir-42")}, delay: 20 * time.Millisecond}
	svc := newPatientService(store, registry, nil)

	const callers = 8
	var wg sync.WaitGroup
	ids := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			patient, err := svc.SyncPatient(context.Background(), staffActor, "fhir-42")
			errs[i] = err
			if err == nil {
				ids[i] = patient.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	patients, total, err := store.Patients().List(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Mei Wong", patients[0].Name)
	assert.Equal(t, "Mandarin", patients[0].Language)

	again, err := svc.SyncPatient(context.Background(), staffActor, "fhir-42")
	require.NoError(t, err)
	assert.Equal(t, ids[0], again.ID)
	assert.LessOrEqual(t, atomic.LoadInt32(&registry.getCalls), int32(callers))
}

func TestSyncPatientSettlesInsertRace(t *testing.T) {
	store := repository.NewMemoryStore()
	arrived := &sync.WaitGroup{}
	arrived.Add(2)
	registry := &stubRegistry{
		patients: map[string]fhir.Patient{"fhir-7": registryPatient("fhir-7")},
		arrived:  arrived,
		release:  make(chan struct{}),
	}
	// two instances model two processes sharing one store
	first := newPatientService(store, registry, nil)
	second := newPatientService(store, registry, nil)

	results := make(chan *models.Patient, 2)
	errs := make(chan error, 2)
	for _, svc := range []*PatientService{first, second} {
		go func(svc *PatientService) {
			patient, err := svc.SyncPatient(context.Background(), staffActor, "fhir-7")
			errs <- err
			results <- patient
		}(svc)
	}
	arrived.Wait()
	close(registry.release)

	require.NoError(t, <-errs)
	require.NoError(t, <-errs)
	a, b := <-results, <-results
	assert.Equal(t, a.ID, b.ID)

	_, total, err := store.Patients().List(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	var syncs int
	for _, entry := range store.AuditLogs() {
		if entry.Action == models.AuditActionPatientSync {
			syncs++
		}
	}
	assert.Equal(t, 1, syncs)
}

func TestSyncPatientCancelledCallerDoesNotFailOthers(t *testing.T) {
	store := repository.NewMemoryStore()
	arrived := &sync.WaitGroup{}
	arrived.Add(1)
	registry := &stubRegistry{
		patients: map[string]fhir.Patient{"fhir-5": registryPatient("fhir-5")},
		arrived:  arrived,
		release:  make(chan struct{}),
	}
	svc := newPatientService(store, registry, nil)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.SyncPatient(ctx, staffActor, "fhir-5")
		firstErr <- err
	}()
	arrived.Wait()

	secondErr := make(chan error, 1)
	second := make(chan *models.Patient, 1)
	go func() {
		patient, err := svc.SyncPatient(context.Background(), staffActor, "fhir-5")
		secondErr <- err
		second <- patient
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)
	close(registry.release)

	require.NoError(t, <-secondErr)
	patient := <-second
	assert.Equal(t, "fhir-5", patient.FHIRID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&registry.getCalls))

	_, total, err := store.Patients().List(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestSyncPatientRegistryFailure(t *testing.T) {
	store := repository.NewMemoryStore()
	registry := &stubRegistry{getErr: errors.New("connection refused")}
	svc := newPatientService(store, registry, nil)

	_, err := svc.SyncPatient(context.Background(), staffActor, "fhir-9")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrExternalLookup))

	_, err = store.Patients().GetByFHIRID(context.Background(), "fhir-9")
	assert.Error(t, err)

	registry.getErr = nil
	_, err = svc.SyncPatient(context.Background(), staffActor, "fhir-9")
	assert.True(t, errors.Is(err, appErrors.ErrExternalLookup), "unknown ids are lookup failures")

	_, err = svc.SyncPatient(context.Background(), staffActor, "  ")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestPatientSearchUsesCache(t *testing.T) {
	store := repository.NewMemoryStore()
	registry := &stubRegistry{search: []fhir.Patient{registryPatient("fhir-1")}}
	metrics := NewMetricsService()
	cache := NewCacheService(&memoryCache{}, metrics, time.Minute, zap.NewNop(), true)
	svc := newPatientService(store, registry, cache)

	query := dto.PatientSearchQuery{Name: "Wong", Language: "Mandarin"}
	first, hit, err := svc.Search(context.Background(), query)
	require.NoError(t, err)
	assert.False(t, hit)
	second, hit, err := svc.Search(context.Background(), dto.PatientSearchQuery{Name: " wong", Language: "mandarin "})
	require.NoError(t, err)
	assert.True(t, hit)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&registry.searches))
	assert.Equal(t, uint64(1), metrics.Snapshot().CacheHits)
}

func TestPatientCreateRegistersAndCaches(t *testing.T) {
	store := repository.NewMemoryStore()
	registry := &stubRegistry{createdID: "fhir-new"}
	cache := NewCacheService(&memoryCache{}, nil, time.Minute, zap.NewNop(), true)
	svc := newPatientService(store, registry, cache)
	require.NoError(t, cache.Set(context.Background(), CacheKey(searchCachePrefix, "x", "y"), []fhir.Patient{}, time.Minute))

	location := "Ward 3"
	patient, err := svc.Create(context.Background(), staffActor, dto.CreatePatientPayload{
		Name:      "Amina Yusuf Hassan",
		Language:  "Somali",
		Birthdate: "1988-07-01",
		Gender:    "female",
		Location:  &location,
	})
	require.NoError(t, err)
	assert.Equal(t, "fhir-new", patient.FHIRID)
	assert.Equal(t, "Somali", patient.Language)
	require.NotNil(t, patient.Location)
	assert.Equal(t, "Ward 3", *patient.Location)
	require.Len(t, registry.created, 1)

	var cached []fhir.Patient
	hit, _ := cache.Get(context.Background(), CacheKey(searchCachePrefix, "x", "y"), &cached)
	assert.False(t, hit)

	_, err = svc.Create(context.Background(), staffActor, dto.CreatePatientPayload{Name: "No Birthdate", Language: "Somali", Gender: "female"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestPatientGetAndFetchExternal(t *testing.T) {
	store := repository.NewMemoryStore()
	registry := &stubRegistry{patients: map[string]fhir.Patient{"fhir-1": registryPatient("fhir-1")}}
	svc := newPatientService(store, registry, nil)

	_, err := svc.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	resource, err := svc.FetchExternal(context.Background(), "fhir-1")
	require.NoError(t, err)
	assert.Equal(t, "fhir-1", resource.ID)

	_, err = svc.FetchExternal(context.Background(), "fhir-2")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
