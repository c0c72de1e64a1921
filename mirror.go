package billing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/civicledger/billing/id"
	"github.com/civicledger/billing/mirror"
	"github.com/civicledger/billing/transaction"
	"github.com/civicledger/billing/types"
	"github.com/civicledger/billing/utilitypay"
)

// ──────────────────────────────────────────────────
// Ledger Mirror
// ──────────────────────────────────────────────────

// mirrorJob is one queued replication attempt plus the primary-side address
// where its outcome is recorded.
type mirrorJob struct {
	req       mirror.Request
	recordKey utilitypay.Key   // set for utility payment mirrors
	txnID     id.TransactionID // set for transaction mirrors
}

// scheduleEntryMirror enqueues an external ledger write for one payment
// entry.
func (e *Engine) scheduleEntryMirror(rec *utilitypay.Record, entry utilitypay.PaymentEntry) {
	e.enqueueMirror(mirrorJob{
		req: mirror.Request{
			Kind:     mirror.KindUtilityPayment,
			OriginID: entry.ID,
			EntryID:  entry.ID,
			Record: mirror.Record{
				OriginID:    entry.ID,
				Kind:        mirror.KindUtilityPayment,
				SubjectID:   rec.HouseholdID,
				Amount:      entry.Amount,
				OccurredAt:  entry.PaidAt,
				Description: fmt.Sprintf("%s fee payment for %s", rec.FeeType, rec.Period),
			},
		},
		recordKey: rec.Key(),
	})
}

// enqueueMirror hands a job to the dispatch worker without blocking. A full
// queue leaves the primary row pending for the outbox sweep to pick up.
func (e *Engine) enqueueMirror(job mirrorJob) {
	select {
	case e.mirrorQueue <- job:
	default:
		e.logger.Warn("mirror queue full, leaving row pending",
			"kind", job.req.Kind,
			"origin_id", job.req.OriginID,
		)
	}
}

// mirrorWorker drains the mirror queue until Stop. Attempts run detached
// from the caller's request context: cancelling a payment request never
// cancels its already-dispatched mirror.
func (e *Engine) mirrorWorker() {
	defer e.wg.Done()

	for {
		select {
		case <-e.stopChan:
			// Drain whatever was enqueued before shutdown.
			for {
				select {
				case job := <-e.mirrorQueue:
					e.attemptMirror(job)
				default:
					return
				}
			}
		case job := <-e.mirrorQueue:
			e.attemptMirror(job)
		}
	}
}

// attemptMirror performs one idempotent replication attempt: read before
// create, never overwrite, re-check once on an ambiguous duplicate error.
func (e *Engine) attemptMirror(job mirrorJob) {
	ctx, cancel := context.WithTimeout(context.Background(), e.mirrorTimeout)
	defer cancel()

	outcome, txID, err := e.replicate(ctx, job.req.Record)
	e.settleMirror(ctx, job, outcome, txID, err)
}

func (e *Engine) replicate(ctx context.Context, rec mirror.Record) (mirror.Outcome, string, error) {
	if e.chain == nil {
		return mirror.OutcomeFailed, "", ErrChainUnavailable
	}

	existing, err := e.chain.Get(ctx, rec.OriginID)
	switch {
	case err == nil:
		return mirror.OutcomeSkippedExists, existing.TxID, nil
	case !errors.Is(err, mirror.ErrNotRegistered):
		return mirror.OutcomeFailed, "", err
	}

	rec.ID = id.NewMirrorID()
	rec.RecordedAt = time.Now().UTC()
	txID, err := e.chain.Submit(ctx, &rec)
	if err == nil {
		return mirror.OutcomeCreated, txID, nil
	}

	// An "already exists" style error is ambiguous: a concurrent writer may
	// have won the race. Re-check once before declaring failure.
	if errors.Is(err, mirror.ErrAlreadyExists) {
		if existing, rerr := e.chain.Get(ctx, rec.OriginID); rerr == nil {
			return mirror.OutcomeSkippedExists, existing.TxID, nil
		}
	}
	return mirror.OutcomeFailed, "", err
}

// settleMirror records the outcome on the primary row and notifies plugins.
// Failures here are warnings; the sweep reconciles later.
func (e *Engine) settleMirror(ctx context.Context, job mirrorJob, outcome mirror.Outcome, txID string, cause error) {
	status := types.MirrorApplied
	if outcome == mirror.OutcomeFailed {
		status = types.MirrorFailed
	}

	var err error
	switch job.req.Kind {
	case mirror.KindUtilityPayment:
		err = e.store.SetEntryMirrorStatus(ctx, job.recordKey, job.req.EntryID, status)
	case mirror.KindTransaction:
		err = e.store.SetTransactionMirrorStatus(ctx, job.txnID, status)
	}
	if err != nil {
		e.logger.Warn("mirror status write failed",
			"kind", job.req.Kind,
			"origin_id", job.req.OriginID,
			"outcome", outcome,
			"error", err,
		)
	}

	switch outcome {
	case mirror.OutcomeCreated:
		e.plugins.EmitMirrorApplied(ctx, string(job.req.Kind), job.req.OriginID.String(), txID)
	case mirror.OutcomeSkippedExists:
		e.plugins.EmitMirrorSkipped(ctx, string(job.req.Kind), job.req.OriginID.String())
	case mirror.OutcomeFailed:
		e.logger.Warn("mirror attempt failed",
			"kind", job.req.Kind,
			"origin_id", job.req.OriginID,
			"error", cause,
		)
		e.plugins.EmitMirrorFailed(ctx, string(job.req.Kind), job.req.OriginID.String(), cause)
	}
}

// VerifyIntegrity compares a primary-side content hash against the external
// record for the origin. currentHash empty means the primary artifact no
// longer exists. The five states are mutually exclusive and exhaustive.
func (e *Engine) VerifyIntegrity(ctx context.Context, originID id.ID, currentHash string) (mirror.IntegrityStatus, error) {
	if e.chain == nil {
		return mirror.IntegrityError, ErrChainUnavailable
	}

	rec, err := e.chain.Get(ctx, originID)
	switch {
	case errors.Is(err, mirror.ErrNotRegistered):
		return mirror.IntegrityNotRegistered, nil
	case err != nil:
		return mirror.IntegrityError, err
	}

	status := mirror.IntegrityVerified
	switch {
	case currentHash == "" || rec.Deleted:
		status = mirror.IntegrityDeleted
	case rec.ContentHash != currentHash:
		status = mirror.IntegrityEdited
	}

	e.plugins.EmitIntegrityChecked(ctx, originID.String(), string(status))
	return status, nil
}

// ResidentScopedView reconstructs a resident's mirrored financial history.
// Mirrored rows carry whatever subject was known at mirror time, often the
// household or its head rather than the resident, so the query expands to
// the full household and unions the results, deduplicated by transaction
// key. Newest first.
func (e *Engine) ResidentScopedView(ctx context.Context, residentID id.ResidentID) ([]mirror.Record, error) {
	if e.chain == nil {
		return nil, ErrChainUnavailable
	}

	subjects := []id.ID{residentID}
	householdID, err := e.households.HouseholdOf(ctx, residentID)
	switch {
	case err == nil:
		subjects = append(subjects, householdID)
		if info, err := e.households.Lookup(ctx, householdID); err == nil && !info.HeadResidentID.IsNil() {
			subjects = append(subjects, info.HeadResidentID)
		}
		members, err := e.households.Members(ctx, householdID)
		if err != nil {
			return nil, err
		}
		subjects = append(subjects, members...)
	case !errors.Is(err, ErrHouseholdNotFound):
		return nil, err
	}

	seen := make(map[string]bool, len(subjects))
	var union []mirror.Record
	for _, subject := range subjects {
		if subject.IsNil() || seen[subject.String()] {
			continue
		}
		seen[subject.String()] = true

		records, err := e.chain.ListBySubject(ctx, subject)
		if err != nil {
			return nil, err
		}
		union = append(union, records...)
	}

	deduped := mirror.Deduplicate(union)
	sort.SliceStable(deduped, func(i, j int) bool {
		return deduped[i].OccurredAt.After(deduped[j].OccurredAt)
	})
	return deduped, nil
}

// MirrorBacklog lists primary rows whose external replication is still
// pending or has failed, the input to the reconciliation sweep.
type MirrorBacklog struct {
	Records      []*utilitypay.Record
	Transactions []*transaction.Transaction
}

// Empty reports whether nothing awaits replication.
func (b *MirrorBacklog) Empty() bool {
	return len(b.Records) == 0 && len(b.Transactions) == 0
}

// PendingMirrors returns up to limit unreplicated rows per origin store.
// limit <= 0 means no cap.
func (e *Engine) PendingMirrors(ctx context.Context, limit int) (*MirrorBacklog, error) {
	records, err := e.store.ListUnmirroredEntries(ctx, limit)
	if err != nil {
		return nil, err
	}
	txns, err := e.store.ListUnmirroredTransactions(ctx, limit)
	if err != nil {
		return nil, err
	}
	return &MirrorBacklog{Records: records, Transactions: txns}, nil
}

// RequeuePendingMirrors re-enqueues every backlog row for dispatch and
// returns the number of requests queued. Called by the out-of-band sweep.
func (e *Engine) RequeuePendingMirrors(ctx context.Context, limit int) (int, error) {
	backlog, err := e.PendingMirrors(ctx, limit)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, rec := range backlog.Records {
		for _, entry := range rec.Entries {
			if !entry.MirrorStatus.NeedsMirror() {
				continue
			}
			e.scheduleEntryMirror(rec, entry)
			queued++
		}
	}
	for _, txn := range backlog.Transactions {
		e.scheduleTransactionMirror(txn)
		queued++
	}
	return queued, nil
}
