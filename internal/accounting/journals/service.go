package journals

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	internalShared "github.com/meridian-erp/meridian-erp/internal/shared"

	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/accounting/types"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// AuditPort records who did what to the ledger.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// postRetries bounds how often a serialization conflict is retried before
// it surfaces as ErrConcurrencyConflict.
const postRetries = 3

// Service is the journal engine: the only component allowed to mutate
// account balances.
type Service struct {
	repo     Repository
	registry *types.Registry
	kinds    *KindSet
	audit    AuditPort
	now      func() time.Time
}

func NewService(repo Repository, registry *types.Registry, kinds *KindSet, audit AuditPort) *Service {
	return &Service{repo: repo, registry: registry, kinds: kinds, audit: audit, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) Get(ctx context.Context, id int64) (JournalEntry, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]JournalEntry, error) {
	return s.repo.List(ctx, filter)
}

// Post validates the input and applies it in a single transaction: every
// line's balance delta lands and the entry becomes POSTED, or nothing
// changes. Serialization conflicts are retried a bounded number of times.
func (s *Service) Post(ctx context.Context, input PostingInput) (JournalEntry, error) {
	if err := input.Validate(); err != nil {
		return JournalEntry{}, err
	}
	if input.Source != nil && !s.kinds.Known(input.Source.Kind) {
		return JournalEntry{}, fmt.Errorf("journals: source kind %q: %w", input.Source.Kind, shared.ErrUnknownSourceKind)
	}

	var entry JournalEntry
	err := s.withRetry(ctx, func(ctx context.Context, tx TxRepository) error {
		posted, err := s.postLines(ctx, tx, input, nil)
		if err != nil {
			return err
		}
		entry = posted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.recordAudit(ctx, input.CreatedBy, "journal.post", entry.ID, map[string]any{
		"number": entry.Number,
		"source": sourceMeta(entry.Source),
	})
	return entry, nil
}

// postLines inserts a POSTED entry for the (validated) input and applies
// the balance deltas. reverses, when set, links the new entry back to the
// original it reverses.
func (s *Service) postLines(ctx context.Context, tx TxRepository, input PostingInput, reverses *int64) (JournalEntry, error) {
	lines, totalDebit, totalCredit := input.normalize()

	if err := s.applyDeltas(ctx, tx, lines); err != nil {
		return JournalEntry{}, err
	}

	now := s.now()
	entry := JournalEntry{
		Date:        input.Date,
		Description: input.Description,
		Status:      StatusPosted,
		TotalDebit:  totalDebit,
		TotalCredit: totalCredit,
		Source:      input.Source,
		CreatedBy:   input.CreatedBy,
		PostedAt:    &now,
		Reverses:    reverses,
	}
	inserted, err := tx.InsertEntry(ctx, entry)
	if err != nil {
		return JournalEntry{}, err
	}
	modelLines := toLines(inserted.ID, lines)
	if err := tx.InsertLines(ctx, inserted.ID, modelLines); err != nil {
		return JournalEntry{}, err
	}
	if input.Source != nil {
		if err := tx.LinkSource(ctx, *input.Source, inserted.ID); err != nil {
			return JournalEntry{}, err
		}
	}
	inserted.Lines = modelLines
	return inserted, nil
}

// applyDeltas locks the touched accounts in deterministic order, verifies
// every line hits a postable leaf, and moves the balances.
func (s *Service) applyDeltas(ctx context.Context, tx TxRepository, lines []LineInput) error {
	ids := make([]int64, 0, len(lines))
	seen := make(map[int64]struct{}, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.AccountID]; ok {
			continue
		}
		seen[line.AccountID] = struct{}{}
		ids = append(ids, line.AccountID)
	}

	locked, err := tx.LockAccounts(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[int64]types.Category, len(locked))
	for _, account := range locked {
		if !account.Postable() {
			return fmt.Errorf("journals: account %d (%s): %w", account.ID, account.Code, shared.ErrInvalidAccount)
		}
		byID[account.ID] = account.Category
	}
	for id := range seen {
		if _, ok := byID[id]; !ok {
			return fmt.Errorf("journals: account %d: %w", id, shared.ErrInvalidAccount)
		}
	}

	deltas := make(map[int64]decimal.Decimal, len(ids))
	for _, line := range lines {
		delta := s.registry.Delta(byID[line.AccountID], line.Debit, line.Credit)
		deltas[line.AccountID] = deltas[line.AccountID].Add(delta)
	}
	for _, id := range ids {
		if deltas[id].IsZero() {
			continue
		}
		if err := tx.ApplyDelta(ctx, id, deltas[id]); err != nil {
			return err
		}
	}
	return nil
}

// Reverse posts the exact inverse of a posted entry and cancels the
// original. Reason and actor are required and kept in the audit trail.
func (s *Service) Reverse(ctx context.Context, input ReverseInput) (JournalEntry, error) {
	if input.EntryID == 0 {
		return JournalEntry{}, fmt.Errorf("journals: entry id required")
	}
	if input.Reason == "" {
		return JournalEntry{}, fmt.Errorf("journals: reversal reason required")
	}
	if input.ActorID == 0 {
		return JournalEntry{}, fmt.Errorf("journals: reversal actor required")
	}

	var reversal JournalEntry
	err := s.withRetry(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetForUpdate(ctx, input.EntryID)
		if err != nil {
			return err
		}
		if original.Status.Terminal() {
			return shared.ErrAlreadyReversed
		}
		if original.Status != StatusPosted {
			return shared.ErrNotPosted
		}

		posting := PostingInput{
			Date:        original.Date,
			Description: fmt.Sprintf("Reversal of %s: %s", original.EntryNumber(), input.Reason),
			CreatedBy:   input.ActorID,
			Lines:       inverseLines(original.Lines),
		}
		posted, err := s.postLines(ctx, tx, posting, &original.ID)
		if err != nil {
			return err
		}
		if err := tx.MarkReversed(ctx, original.ID, posted.ID); err != nil {
			return err
		}
		if err := tx.UpdateStatus(ctx, original.ID, StatusCancelled); err != nil {
			return err
		}
		reversal = posted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.recordAudit(ctx, input.ActorID, "journal.reverse", input.EntryID, map[string]any{
		"reversal_id":     reversal.ID,
		"reversal_number": reversal.Number,
		"reason":          input.Reason,
	})
	return reversal, nil
}

// Archive moves a posted entry to the terminal ARCHIVED state without any
// balance effect.
func (s *Service) Archive(ctx context.Context, id, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		entry, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if entry.Status.Terminal() {
			return shared.ErrAlreadyReversed
		}
		if entry.Status != StatusPosted {
			return shared.ErrNotPosted
		}
		return tx.UpdateStatus(ctx, id, StatusArchived)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "journal.archive", id, nil)
	return nil
}

// SaveDraft stores a candidate entry without any balance effect. Drafts
// skip balance validation so partially built entries can be parked.
func (s *Service) SaveDraft(ctx context.Context, input PostingInput) (JournalEntry, error) {
	if input.Date.IsZero() {
		input.Date = s.now()
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lines, totalDebit, totalCredit := input.normalize()
		draft := JournalEntry{
			Date:        input.Date,
			Description: input.Description,
			Status:      StatusDraft,
			TotalDebit:  totalDebit,
			TotalCredit: totalCredit,
			CreatedBy:   input.CreatedBy,
		}
		inserted, err := tx.InsertEntry(ctx, draft)
		if err != nil {
			return err
		}
		modelLines := toLines(inserted.ID, lines)
		if err := tx.InsertLines(ctx, inserted.ID, modelLines); err != nil {
			return err
		}
		inserted.Lines = modelLines
		entry = inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

// UpdateDraft replaces a draft's header and lines.
func (s *Service) UpdateDraft(ctx context.Context, id int64, input PostingInput) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return shared.ErrNotDraft
		}
		date := input.Date
		if date.IsZero() {
			date = current.Date
		}
		lines, totalDebit, totalCredit := input.normalize()
		if err := tx.UpdateDraftHeader(ctx, id, date, input.Description, totalDebit, totalCredit); err != nil {
			return err
		}
		modelLines := toLines(id, lines)
		if err := tx.ReplaceLines(ctx, id, modelLines); err != nil {
			return err
		}
		current.Date = date
		current.Description = input.Description
		current.TotalDebit = totalDebit
		current.TotalCredit = totalCredit
		current.Lines = modelLines
		entry = current
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

// DiscardDraft deletes a draft entirely. Posted entries cannot be deleted;
// they go through Reverse.
func (s *Service) DiscardDraft(ctx context.Context, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return shared.ErrNotDraft
		}
		return tx.DeleteEntry(ctx, id)
	})
}

// PostDraft validates and posts an existing draft in place, keeping its id
// and number.
func (s *Service) PostDraft(ctx context.Context, id, actorID int64) (JournalEntry, error) {
	var entry JournalEntry
	err := s.withRetry(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return shared.ErrNotDraft
		}
		input := PostingInput{
			Date:        current.Date,
			Description: current.Description,
			CreatedBy:   actorID,
			Lines:       toLineInputs(current.Lines),
		}
		if err := input.Validate(); err != nil {
			return err
		}
		lines, totalDebit, totalCredit := input.normalize()
		if err := s.applyDeltas(ctx, tx, lines); err != nil {
			return err
		}
		if err := tx.MarkPosted(ctx, id, totalDebit, totalCredit, s.now()); err != nil {
			return err
		}
		current.Status = StatusPosted
		current.TotalDebit = totalDebit
		current.TotalCredit = totalCredit
		entry = current
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.recordAudit(ctx, actorID, "journal.post", entry.ID, map[string]any{"number": entry.Number, "draft": true})
	return entry, nil
}

// withRetry reruns the transaction on serialization failures, then gives
// up with ErrConcurrencyConflict. A stale delta is never applied silently.
func (s *Service) withRetry(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	var lastErr error
	for attempt := 0; attempt < postRetries; attempt++ {
		lastErr = s.repo.WithTx(ctx, fn)
		if lastErr == nil {
			return nil
		}
		if !db.IsSerializationFailure(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("journals: %w: %w", shared.ErrConcurrencyConflict, lastErr)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entryID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "journal_entry",
		EntityID: fmt.Sprintf("%d", entryID),
		Meta:     meta,
		At:       s.now(),
	})
}

func inverseLines(lines []Line) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineInput{
			AccountID:    line.AccountID,
			Debit:        line.Credit,
			Credit:       line.Debit,
			Description:  line.Description,
			Currency:     line.Currency,
			ExchangeRate: line.ExchangeRate,
			ProductID:    line.ProductID,
			Quantity:     line.Quantity,
		})
	}
	return out
}

func toLines(entryID int64, lines []LineInput) []Line {
	out := make([]Line, 0, len(lines))
	for _, line := range lines {
		amount := line.Debit.Add(line.Credit).Mul(line.ExchangeRate)
		out = append(out, Line{
			JournalID:               entryID,
			AccountID:               line.AccountID,
			Debit:                   line.Debit,
			Credit:                  line.Credit,
			Description:             line.Description,
			Currency:                line.Currency,
			ExchangeRate:            line.ExchangeRate,
			AmountInAccountCurrency: amount,
			ProductID:               line.ProductID,
			Quantity:                line.Quantity,
		})
	}
	return out
}

func toLineInputs(lines []Line) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineInput{
			AccountID:    line.AccountID,
			Debit:        line.Debit,
			Credit:       line.Credit,
			Description:  line.Description,
			Currency:     line.Currency,
			ExchangeRate: line.ExchangeRate,
			ProductID:    line.ProductID,
			Quantity:     line.Quantity,
		})
	}
	return out
}

func sourceMeta(ref *SourceRef) any {
	if ref == nil {
		return nil
	}
	return ref.String()
}
