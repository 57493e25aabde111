package service

import (
	"sort"
	"strings"
	"sync"

	"github.com/noah-isme/interpreter-booking-api/internal/models"
)

// MatchingIndex is an in-memory view of pending requests by language and of
// each interpreter's current assignment. It holds nothing that cannot be
// rebuilt from the record store.
type MatchingIndex struct {
	mu          sync.RWMutex
	pending     map[string]map[string]models.InterpreterRequest
	languageOf  map[string]string
	assignments map[string]string
}

// NewMatchingIndex returns an empty index.
func NewMatchingIndex() *MatchingIndex {
	return &MatchingIndex{
		pending:     make(map[string]map[string]models.InterpreterRequest),
		languageOf:  make(map[string]string),
		assignments: make(map[string]string),
	}
}

// LanguageKey normalises a language token for matching.
func LanguageKey(language string) string {
	return strings.ToLower(strings.TrimSpace(language))
}

// Index registers a pending request under its language. Non-pending requests
// are ignored.
func (m *MatchingIndex) Index(req models.InterpreterRequest) {
	if req.Status != models.RequestStatusPending {
		return
	}
	key := LanguageKey(req.Language)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(req.ID)
	bucket, ok := m.pending[key]
	if !ok {
		bucket = make(map[string]models.InterpreterRequest)
		m.pending[key] = bucket
	}
	bucket[req.ID] = req
	m.languageOf[req.ID] = key
}

// Remove drops a request from the pending buckets.
func (m *MatchingIndex) Remove(requestID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(requestID)
}

func (m *MatchingIndex) removeLocked(requestID string) {
	key, ok := m.languageOf[requestID]
	if !ok {
		return
	}
	delete(m.languageOf, requestID)
	bucket := m.pending[key]
	delete(bucket, requestID)
	if len(bucket) == 0 {
		delete(m.pending, key)
	}
}

// Assign records interpreterID as the owner of requestID.
func (m *MatchingIndex) Assign(interpreterID, requestID string) {
	m.mu.Lock()
	m.assignments[interpreterID] = requestID
	m.mu.Unlock()
}

// Release clears interpreterID's assignment.
func (m *MatchingIndex) Release(interpreterID string) {
	m.mu.Lock()
	delete(m.assignments, interpreterID)
	m.mu.Unlock()
}

// AssignmentOf returns the accepted request owned by interpreterID, if any.
func (m *MatchingIndex) AssignmentOf(interpreterID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.assignments[interpreterID]
	return id, ok
}

// PendingFor returns pending requests for language, STAT first then oldest
// first. The ordering is for display and grants no priority when accepting.
func (m *MatchingIndex) PendingFor(language string) []models.InterpreterRequest {
	key := LanguageKey(language)
	m.mu.RLock()
	bucket := m.pending[key]
	out := make([]models.InterpreterRequest, 0, len(bucket))
	for _, req := range bucket {
		out = append(out, req)
	}
	m.mu.RUnlock()

	sortPending(out)
	return out
}

func sortPending(reqs []models.InterpreterRequest) {
	sort.Slice(reqs, func(i, j int) bool {
		if reqs[i].IsStat != reqs[j].IsStat {
			return reqs[i].IsStat
		}
		if !reqs[i].RequestedAt.Equal(reqs[j].RequestedAt) {
			return reqs[i].RequestedAt.Before(reqs[j].RequestedAt)
		}
		return reqs[i].ID < reqs[j].ID
	})
}

// Contains reports whether requestID is held as pending.
func (m *MatchingIndex) Contains(requestID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.languageOf[requestID]
	return ok
}

// PendingIDs lists every pending request id held.
func (m *MatchingIndex) PendingIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.languageOf))
	for id := range m.languageOf {
		ids = append(ids, id)
	}
	return ids
}

// Assignments returns a copy of the interpreter to request map.
func (m *MatchingIndex) Assignments() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.assignments))
	for k, v := range m.assignments {
		out[k] = v
	}
	return out
}

// Len returns the number of pending requests held.
func (m *MatchingIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.languageOf)
}

// Rebuild replaces the index contents from a store scan. It is meant for
// startup; while writers are active use AssignmentService.Reconcile.
func (m *MatchingIndex) Rebuild(pending, accepted []models.InterpreterRequest) {
	next := NewMatchingIndex()
	for _, req := range pending {
		next.Index(req)
	}
	for _, req := range accepted {
		if req.Status == models.RequestStatusAccepted && req.InterpreterID != nil {
			next.assignments[*req.InterpreterID] = req.ID
		}
	}

	m.mu.Lock()
	m.pending = next.pending
	m.languageOf = next.languageOf
	m.assignments = next.assignments
	m.mu.Unlock()
}
