package journals

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status enumerates the journal entry lifecycle. CANCELLED and ARCHIVED
// are terminal.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPosted    Status = "POSTED"
	StatusCancelled Status = "CANCELLED"
	StatusArchived  Status = "ARCHIVED"
)

// Terminal reports whether no further mutation is allowed.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusArchived
}

// SourceKind tags the sub-ledger that owns a journal entry.
type SourceKind string

// KindReversal marks entries generated by the reversal operation itself.
const KindReversal SourceKind = "REVERSAL"

// KindSet is the closed set of source kinds accepted at the posting
// boundary. Sub-ledgers register their kind at wiring time; free-form
// strings are rejected.
type KindSet struct {
	kinds map[SourceKind]struct{}
}

// NewKindSet builds the set from the registered sub-ledger kinds.
func NewKindSet(kinds ...SourceKind) *KindSet {
	set := &KindSet{kinds: make(map[SourceKind]struct{}, len(kinds)+1)}
	set.kinds[KindReversal] = struct{}{}
	for _, k := range kinds {
		set.kinds[k] = struct{}{}
	}
	return set
}

// Register adds a kind after construction, for late-bound sub-ledgers.
func (s *KindSet) Register(kind SourceKind) {
	s.kinds[kind] = struct{}{}
}

// Known reports whether the kind was registered.
func (s *KindSet) Known(kind SourceKind) bool {
	if s == nil {
		return false
	}
	_, ok := s.kinds[kind]
	return ok
}

// SourceRef is a typed reference to the owning sub-ledger record.
type SourceRef struct {
	Kind SourceKind
	ID   uuid.UUID
}

func (ref SourceRef) String() string {
	return fmt.Sprintf("%s:%s", ref.Kind, ref.ID)
}

// JournalEntry is the posting header plus its balanced line set.
type JournalEntry struct {
	ID          int64
	Number      int64
	Date        time.Time
	Description string
	Status      Status
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Source      *SourceRef
	CreatedBy   int64
	PostedAt    *time.Time
	// ReversedBy points at the reversal entry once cancelled;
	// Reverses points back from a reversal to its original.
	ReversedBy *int64
	Reverses   *int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Lines      []Line
}

// EntryNumber renders the sequential number in its human-readable form.
func (e JournalEntry) EntryNumber() string {
	return fmt.Sprintf("JE-%06d", e.Number)
}

// Line stores a debit or credit amount for one account. Exactly one of
// Debit/Credit is nonzero.
type Line struct {
	ID                      int64
	JournalID               int64
	AccountID               int64
	Debit                   decimal.Decimal
	Credit                  decimal.Decimal
	Description             string
	Currency                string
	ExchangeRate            decimal.Decimal
	AmountInAccountCurrency decimal.Decimal
	ProductID               *int64
	Quantity                *decimal.Decimal
	CreatedAt               time.Time
}
