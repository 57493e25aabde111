package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/interpreter-booking-api/internal/models"
	"github.com/noah-isme/interpreter-booking-api/internal/repository"
)

// Repair kinds reported by Reconcile.
const (
	RepairIndexAdded      = "index_added"
	RepairIndexRemoved    = "index_removed"
	RepairAssignmentFixed = "assignment_fixed"
	RepairReleasedIdle    = "released_idle"
	RepairMarkedBusy      = "marked_busy"
)

const reconcileAgent = "system:reconcile"

// ReconcileReport summarises one reconciliation pass.
type ReconcileReport struct {
	Repairs map[string]int `json:"repairs"`
	Pending int            `json:"pending"`
}

func (r *ReconcileReport) add(kind string) {
	if r.Repairs == nil {
		r.Repairs = make(map[string]int)
	}
	r.Repairs[kind]++
}

// Total is the number of repairs applied.
func (r *ReconcileReport) Total() int {
	total := 0
	for _, n := range r.Repairs {
		total += n
	}
	return total
}

// Reconcile compares the matching index and interpreter availability with the
// store and repairs drift. Every repair re-reads the record under the same
// lock the state machine uses, so it never undoes a concurrent transition.
func (s *AssignmentService) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{}

	pending, err := s.requests.ListByStatus(ctx, models.RequestStatusPending)
	if err != nil {
		return nil, fmt.Errorf("scan pending requests: %w", err)
	}
	accepted, err := s.requests.ListByStatus(ctx, models.RequestStatusAccepted)
	if err != nil {
		return nil, fmt.Errorf("scan accepted requests: %w", err)
	}

	storePending := make(map[string]struct{}, len(pending))
	for _, req := range pending {
		storePending[req.ID] = struct{}{}
		if s.index.Contains(req.ID) {
			continue
		}
		if s.reindex(ctx, req.ID) {
			report.add(RepairIndexAdded)
		}
	}
	for _, id := range s.index.PendingIDs() {
		if _, ok := storePending[id]; ok {
			continue
		}
		if s.reindex(ctx, id) {
			report.add(RepairIndexRemoved)
		}
	}

	owners := make(map[string]string, len(accepted))
	for _, req := range accepted {
		if req.InterpreterID == nil {
			continue
		}
		owners[*req.InterpreterID] = req.ID
		if current, ok := s.index.AssignmentOf(*req.InterpreterID); !ok || current != req.ID {
			if s.reassign(ctx, req.ID) {
				report.add(RepairAssignmentFixed)
			}
		}
	}
	for interpreterID, requestID := range s.index.Assignments() {
		if owners[interpreterID] == requestID {
			continue
		}
		if s.reassign(ctx, requestID) {
			report.add(RepairAssignmentFixed)
		}
	}

	interpreters, err := s.interpreters.List(ctx, models.InterpreterFilter{})
	if err != nil {
		return nil, fmt.Errorf("scan interpreters: %w", err)
	}
	for _, interpreter := range interpreters {
		requestID, owns := owners[interpreter.ID]
		switch {
		case interpreter.AvailabilityStatus == models.AvailabilityBusy && !owns:
			if s.releaseIdle(ctx, interpreter.ID) {
				report.add(RepairReleasedIdle)
			}
		case interpreter.AvailabilityStatus != models.AvailabilityBusy && owns:
			if s.markBusy(ctx, requestID) {
				report.add(RepairMarkedBusy)
			}
		}
	}

	report.Pending = s.index.Len()
	s.metrics.SetPendingRequests(report.Pending)
	for kind, n := range report.Repairs {
		s.metrics.RecordRepair(kind, n)
	}
	if len(report.Repairs) > 0 {
		s.logger.Warn("reconciliation repaired drift", zap.Any("repairs", report.Repairs))
	} else {
		s.logger.Debug("reconciliation found no drift", zap.Int("pending", report.Pending))
	}
	return report, nil
}

// reindex makes the index entry for requestID match the store.
func (s *AssignmentService) reindex(ctx context.Context, requestID string) bool {
	unlock := s.locks.Lock(requestKey(requestID))
	defer unlock()

	req, err := s.requests.GetByID(ctx, requestID)
	indexed := s.index.Contains(requestID)
	switch {
	case err == nil && req.Status == models.RequestStatusPending:
		if indexed {
			return false
		}
		s.index.Index(*req)
		return true
	case err == nil || isNoRows(err):
		if !indexed {
			return false
		}
		s.index.Remove(requestID)
		return true
	default:
		s.logger.Warn("reconcile: load request failed", zap.String("request_id", requestID), zap.Error(err))
		return false
	}
}

// reassign makes the assignment entry for requestID match the store.
func (s *AssignmentService) reassign(ctx context.Context, requestID string) bool {
	unlock := s.locks.Lock(requestKey(requestID))
	defer unlock()

	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil && !isNoRows(err) {
		s.logger.Warn("reconcile: load request failed", zap.String("request_id", requestID), zap.Error(err))
		return false
	}
	changed := false
	for interpreterID, assigned := range s.index.Assignments() {
		if assigned != requestID {
			continue
		}
		if err == nil && req.Status == models.RequestStatusAccepted && req.AssignedTo(interpreterID) {
			continue
		}
		s.index.Release(interpreterID)
		changed = true
	}
	if err == nil && req.Status == models.RequestStatusAccepted && req.InterpreterID != nil {
		if current, ok := s.index.AssignmentOf(*req.InterpreterID); !ok || current != req.ID {
			s.index.Assign(*req.InterpreterID, req.ID)
			changed = true
		}
	}
	return changed
}

// releaseIdle frees a busy interpreter that owns no accepted request.
func (s *AssignmentService) releaseIdle(ctx context.Context, interpreterID string) bool {
	unlock := s.locks.Lock(interpreterKey(interpreterID))
	defer unlock()

	interpreter, err := s.interpreters.GetByID(ctx, interpreterID)
	if err != nil || interpreter.AvailabilityStatus != models.AvailabilityBusy {
		return false
	}
	// read after the interpreter row: the accept that made it busy is visible here
	status := models.RequestStatusAccepted
	owned, err := s.requests.List(ctx, models.RequestFilter{Status: &status, InterpreterID: interpreterID, Limit: 1})
	if err != nil || len(owned) > 0 {
		return false
	}
	if err := s.interpreters.SetAvailability(ctx, interpreterID, models.AvailabilityBusy, models.AvailabilityAvailable, s.now()); err != nil {
		if !errors.Is(err, repository.ErrAvailabilityConflict) {
			s.logger.Warn("reconcile: release interpreter failed", zap.String("interpreter_id", interpreterID), zap.Error(err))
		}
		return false
	}
	s.index.Release(interpreterID)
	s.recordRepair(ctx, interpreterID, models.AvailabilityBusy, models.AvailabilityAvailable)
	return true
}

// markBusy flags the owner of an accepted request as busy.
func (s *AssignmentService) markBusy(ctx context.Context, requestID string) bool {
	unlock := s.locks.Lock(requestKey(requestID))
	defer unlock()

	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil || req.Status != models.RequestStatusAccepted || req.InterpreterID == nil {
		return false
	}
	interpreter, err := s.interpreters.GetByID(ctx, *req.InterpreterID)
	if err != nil || interpreter.AvailabilityStatus == models.AvailabilityBusy {
		return false
	}
	from := interpreter.AvailabilityStatus
	if err := s.interpreters.SetAvailability(ctx, interpreter.ID, from, models.AvailabilityBusy, s.now()); err != nil {
		if !errors.Is(err, repository.ErrAvailabilityConflict) {
			s.logger.Warn("reconcile: mark busy failed", zap.String("interpreter_id", interpreter.ID), zap.Error(err))
		}
		return false
	}
	s.index.Assign(interpreter.ID, req.ID)
	s.recordRepair(ctx, interpreter.ID, from, models.AvailabilityBusy)
	return true
}

func (s *AssignmentService) recordRepair(ctx context.Context, interpreterID string, from, to models.Availability) {
	s.record(ctx, models.Actor{UserAgent: reconcileAgent}, models.AuditActionAvailabilityRepair, interpreterID,
		map[string]interface{}{"availability_status": from},
		map[string]interface{}{"availability_status": to},
	)
	s.logger.Warn("availability drift repaired",
		zap.String("interpreter_id", interpreterID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
