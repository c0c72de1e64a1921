// Package id defines TypeID-based identity types for all billing entities.
//
// Every entity in the billing engine uses a single ID struct with a prefix
// that identifies the entity type. IDs are K-sortable (UUIDv7-based),
// globally unique, and URL-safe in the format "prefix_suffix".
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefix constants for all billing entity types.
const (
	PrefixHousehold   Prefix = "hh"   // Household
	PrefixResident    Prefix = "res"  // Resident (household member)
	PrefixRecord      Prefix = "upay" // Utility payment record
	PrefixEntry       Prefix = "pent" // Payment entry within a record
	PrefixFeeEntry    Prefix = "fee"  // Fee schedule entry
	PrefixTransaction Prefix = "txn"  // Ledger transaction
	PrefixDocument    Prefix = "doc"  // Document service order
	PrefixMirror      Prefix = "mir"  // External ledger mirror record
)

// ID is the primary identifier type for all billing entities.
// It wraps a TypeID providing a prefix-qualified, globally unique,
// sortable, URL-safe identifier in the format "prefix_suffix".
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string (e.g., "hh_01h2xcejqtf2nbrexx3vqjhp41")
// into an ID. Returns an error if the string is not valid.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses a TypeID string and validates that its prefix
// matches the expected value.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded ID values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// MustParseWithPrefix is like ParseWithPrefix but panics on error.
func MustParseWithPrefix(s string, expected Prefix) ID {
	parsed, err := ParseWithPrefix(s, expected)
	if err != nil {
		panic(fmt.Sprintf("id: must parse with prefix %q: %v", expected, err))
	}

	return parsed
}

// ──────────────────────────────────────────────────
// Per-entity type aliases
// ──────────────────────────────────────────────────

// HouseholdID is a type-safe identifier for households (prefix: "hh").
type HouseholdID = ID

// ResidentID is a type-safe identifier for residents (prefix: "res").
type ResidentID = ID

// RecordID is a type-safe identifier for utility payment records (prefix: "upay").
type RecordID = ID

// EntryID is a type-safe identifier for payment entries (prefix: "pent").
type EntryID = ID

// FeeEntryID is a type-safe identifier for fee schedule entries (prefix: "fee").
type FeeEntryID = ID

// TransactionID is a type-safe identifier for ledger transactions (prefix: "txn").
type TransactionID = ID

// DocumentID is a type-safe identifier for document service orders (prefix: "doc").
type DocumentID = ID

// MirrorID is a type-safe identifier for mirror records (prefix: "mir").
type MirrorID = ID

// AnyID is a type alias that accepts any valid prefix.
type AnyID = ID

// ──────────────────────────────────────────────────
// Convenience constructors
// ──────────────────────────────────────────────────

// NewHouseholdID generates a new unique household ID.
func NewHouseholdID() ID { return New(PrefixHousehold) }

// NewResidentID generates a new unique resident ID.
func NewResidentID() ID { return New(PrefixResident) }

// NewRecordID generates a new unique utility payment record ID.
func NewRecordID() ID { return New(PrefixRecord) }

// NewEntryID generates a new unique payment entry ID.
func NewEntryID() ID { return New(PrefixEntry) }

// NewFeeEntryID generates a new unique fee schedule entry ID.
func NewFeeEntryID() ID { return New(PrefixFeeEntry) }

// NewTransactionID generates a new unique ledger transaction ID.
func NewTransactionID() ID { return New(PrefixTransaction) }

// NewDocumentID generates a new unique document order ID.
func NewDocumentID() ID { return New(PrefixDocument) }

// NewMirrorID generates a new unique mirror record ID.
func NewMirrorID() ID { return New(PrefixMirror) }

// ──────────────────────────────────────────────────
// Convenience parsers
// ──────────────────────────────────────────────────

// ParseHouseholdID parses a string and validates the "hh" prefix.
func ParseHouseholdID(s string) (ID, error) { return ParseWithPrefix(s, PrefixHousehold) }

// ParseResidentID parses a string and validates the "res" prefix.
func ParseResidentID(s string) (ID, error) { return ParseWithPrefix(s, PrefixResident) }

// ParseRecordID parses a string and validates the "upay" prefix.
func ParseRecordID(s string) (ID, error) { return ParseWithPrefix(s, PrefixRecord) }

// ParseEntryID parses a string and validates the "pent" prefix.
func ParseEntryID(s string) (ID, error) { return ParseWithPrefix(s, PrefixEntry) }

// ParseFeeEntryID parses a string and validates the "fee" prefix.
func ParseFeeEntryID(s string) (ID, error) { return ParseWithPrefix(s, PrefixFeeEntry) }

// ParseTransactionID parses a string and validates the "txn" prefix.
func ParseTransactionID(s string) (ID, error) { return ParseWithPrefix(s, PrefixTransaction) }

// ParseDocumentID parses a string and validates the "doc" prefix.
func ParseDocumentID(s string) (ID, error) { return ParseWithPrefix(s, PrefixDocument) }

// ParseMirrorID parses a string and validates the "mir" prefix.
func ParseMirrorID(s string) (ID, error) { return ParseWithPrefix(s, PrefixMirror) }

// ParseAny parses a string into an ID without type checking the prefix.
func ParseAny(s string) (ID, error) { return Parse(s) }

// ──────────────────────────────────────────────────
// ID methods
// ──────────────────────────────────────────────────

// String returns the full TypeID string representation (prefix_suffix).
// Returns an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// Value implements driver.Valuer for database storage.
// Returns nil for the Nil ID so that optional foreign key columns store NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}

	return i.inner.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (i *ID) Scan(src any) error {
	if src == nil {
		*i = Nil

		return nil
	}

	switch v := src.(type) {
	case string:
		if v == "" {
			*i = Nil

			return nil
		}

		return i.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == 0 {
			*i = Nil

			return nil
		}

		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
