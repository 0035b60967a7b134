// Package audit appends the who/what/when trail and the incident log that
// operators reconcile partial failures from.
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"go-pos-engine/internal/apperr"
	"go-pos-engine/internal/models"
	"go-pos-engine/internal/store"
)

const DefaultPurgePhrase = "PURGE AUDIT LOG"

// Entry is one change to be recorded. Before and After are marshalled into the
// details payload when set; Details carries anything else worth keeping.
type Entry struct {
	ActionType string
	Resource   string
	RecordID   string
	Before     any
	After      any
	Details    any
	ActorID    uint
}

// Actor is the authorization capability handed in by the caller.
type Actor struct {
	ID      uint
	IsAdmin bool
}

type Recorder struct {
	audits      store.AuditStore
	incidents   store.IncidentStore
	purgePhrase string
	log         logrus.FieldLogger
}

func NewRecorder(audits store.AuditStore, incidents store.IncidentStore, purgePhrase string, log logrus.FieldLogger) *Recorder {
	if purgePhrase == "" {
		purgePhrase = DefaultPurgePhrase
	}
	return &Recorder{
		audits:      audits,
		incidents:   incidents,
		purgePhrase: purgePhrase,
		log:         log.WithField("module", "audit"),
	}
}

// Record appends one entry and returns it with its id filled in.
func (r *Recorder) Record(ctx context.Context, e Entry) (*models.AuditLog, error) {
	details, err := encodeDetails(e)
	if err != nil {
		return nil, errors.Wrap(err, "encode audit details")
	}
	entry := &models.AuditLog{
		ActionType: e.ActionType,
		Resource:   e.Resource,
		RecordID:   e.RecordID,
		Details:    details,
		UserID:     e.ActorID,
	}
	if err := r.audits.CreateAuditLog(ctx, entry); err != nil {
		r.log.WithFields(logrus.Fields{
			"action_type": e.ActionType,
			"table_name":  e.Resource,
			"record_id":   e.RecordID,
			"user_id":     e.ActorID,
		}).WithError(err).Error("audit entry not written")
		return nil, err
	}
	return entry, nil
}

func encodeDetails(e Entry) (string, error) {
	if e.Before == nil && e.After == nil {
		if e.Details == nil {
			return "", nil
		}
		if s, ok := e.Details.(string); ok {
			return s, nil
		}
		b, err := json.Marshal(e.Details)
		return string(b), err
	}
	payload := map[string]any{}
	if e.Before != nil {
		payload["before"] = e.Before
	}
	if e.After != nil {
		payload["after"] = e.After
	}
	if e.Details != nil {
		payload["details"] = e.Details
	}
	b, err := json.Marshal(payload)
	return string(b), err
}

// ReportIncident persists an incident and logs it at error level. The log line is
// written even when the store rejects the row so the event is never lost silently.
func (r *Recorder) ReportIncident(ctx context.Context, inc models.Incident) error {
	fields := logrus.Fields{
		"incident":    true,
		"kind":        inc.Kind,
		"operation":   inc.Operation,
		"step":        inc.Step,
		"quantity":    inc.Quantity,
		"compensated": inc.Compensated,
	}
	if inc.SaleID != nil {
		fields["sale_id"] = *inc.SaleID
	}
	if inc.ProductID != nil {
		fields["product_id"] = *inc.ProductID
	}
	r.log.WithFields(fields).Error(inc.Detail)

	if err := r.incidents.CreateIncident(ctx, &inc); err != nil {
		r.log.WithFields(fields).WithError(err).Error("incident not persisted")
		return err
	}
	return nil
}

// ReportPartial records a PartialFailure as an incident.
func (r *Recorder) ReportPartial(ctx context.Context, pf *apperr.PartialFailure) error {
	inc := models.Incident{
		Kind:        models.IncidentPartialFailure,
		Operation:   pf.Operation,
		Step:        pf.Step,
		Quantity:    pf.Quantity,
		Compensated: pf.Compensated,
		Detail:      pf.Error(),
	}
	if pf.SaleID != 0 {
		id := pf.SaleID
		inc.SaleID = &id
	}
	if pf.ProductID != 0 {
		id := pf.ProductID
		inc.ProductID = &id
	}
	return r.ReportIncident(ctx, inc)
}

// PurgeAll deletes every audit entry except the PURGE entry it writes first.
// The confirmation must match the configured phrase exactly.
func (r *Recorder) PurgeAll(ctx context.Context, actor Actor, confirmation string) (int64, error) {
	if !actor.IsAdmin {
		return 0, apperr.ErrUnauthorized
	}
	if confirmation != r.purgePhrase {
		return 0, apperr.ErrBadConfirmation
	}

	marker, err := r.Record(ctx, Entry{
		ActionType: models.ActionPurge,
		Resource:   "audit_logs",
		RecordID:   "all",
		Details:    map[string]any{"requested_by": actor.ID},
		ActorID:    actor.ID,
	})
	if err != nil {
		return 0, errors.Wrap(err, "write purge marker")
	}

	deleted, err := r.audits.DeleteAuditLogsExcept(ctx, marker.ID)
	if err != nil {
		return 0, err
	}
	r.log.WithFields(logrus.Fields{
		"user_id": actor.ID,
		"deleted": deleted,
		"kept_id": marker.ID,
	}).Warn("audit log purged")
	return deleted, nil
}

// RecordID formats a numeric primary key the way audit rows store it.
func RecordID(id uint) string {
	return fmt.Sprintf("%d", id)
}
