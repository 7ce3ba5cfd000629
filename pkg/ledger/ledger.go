// Package ledger is the public API for the encrypted journal storage
// engine.
//
// This is the only package external applications should import; internal
// implementation details (the embedded SQLite image, the passphrase
// envelope, the atomic-file writer) stay behind it.
//
// Example usage:
//
//	cfg := ledger.Config{Path: "journal.ledger"}
//	l, deviceID, err := ledger.Create("correct horse battery staple", cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Close("correct horse battery staple")
//
//	typeID, err := l.CreateEntryType(ledger.NewEntryType{
//	    Name:       "journal",
//	    SchemaJSON: []byte(`{"fields":[{"name":"body","type":"text","required":true}]}`),
//	})
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hotsaucejake/ledger-sub000/internal/model"
	"github.com/hotsaucejake/ledger-sub000/internal/store"
)

// Config contains configuration options for a Ledger. No config file
// parsing lives in this package — it only accepts programmatic Config
// structs, the caller's own flags/env/file layer feeds it.
type Config struct {
	// Path is the location of the encrypted ledger file.
	Path string

	// Logger receives structured diagnostics. The zero value logs nowhere;
	// pass a configured zerolog.Logger to surface engine internals.
	Logger *zerolog.Logger

	// MaxListLimit caps ListEntries results when the caller's filter leaves
	// Limit at its zero value. 0 means no implicit cap.
	MaxListLimit int
}

func (c Config) resolvedLogger() zerolog.Logger {
	if c.Logger != nil {
		return *c.Logger
	}
	return zerolog.Nop()
}

// Ledger is a single open handle on one encrypted journal file. It is safe
// for concurrent use; internally all operations serialize on the
// underlying store.
type Ledger struct {
	s            *store.Store
	maxListLimit int
}

// Create builds a brand-new ledger file at cfg.Path, sealed under
// passphrase. It fails if a file already exists there.
func Create(passphrase string, cfg Config) (*Ledger, uuid.UUID, error) {
	s, deviceID, err := store.Create(cfg.Path, passphrase, cfg.resolvedLogger())
	if err != nil {
		return nil, uuid.Nil, err
	}
	return &Ledger{s: s, maxListLimit: cfg.MaxListLimit}, deviceID, nil
}

// Open decrypts and loads the existing ledger file at cfg.Path.
func Open(passphrase string, cfg Config) (*Ledger, error) {
	s, err := store.Open(cfg.Path, passphrase, cfg.resolvedLogger())
	if err != nil {
		return nil, err
	}
	return &Ledger{s: s, maxListLimit: cfg.MaxListLimit}, nil
}

// Close serializes the ledger, re-encrypts it under passphrase (which may
// differ from the passphrase it was opened with, rekeying the file), and
// atomically writes it back to disk.
func (l *Ledger) Close(passphrase string) error {
	return l.s.Close(passphrase)
}

// Metadata describes the ledger itself.
type Metadata struct {
	FormatVersion string
	DeviceID      uuid.UUID
	CreatedAt     time.Time
	LastModified  time.Time
}

// Metadata returns a snapshot of the ledger's metadata row.
func (l *Ledger) Metadata() (Metadata, error) {
	m, err := l.s.Metadata()
	if err != nil {
		return Metadata{}, err
	}
	return Metadata(m), nil
}

// CheckIntegrity verifies the cross-table invariants of the embedded store
// without attempting any repair. If any invariant is violated, it returns a
// non-nil error alongside a report naming each one.
func (l *Ledger) CheckIntegrity() (IntegrityReport, error) {
	report, err := l.s.CheckIntegrity()
	return toIntegrityReport(report), err
}

// IntegrityViolation names a single failed invariant.
type IntegrityViolation struct {
	Invariant string
	Detail    string
}

// IntegrityReport is the result of CheckIntegrity.
type IntegrityReport struct {
	Violations []IntegrityViolation
}

// OK reports whether the ledger has no detected integrity violations.
func (r IntegrityReport) OK() bool { return len(r.Violations) == 0 }

func toIntegrityReport(r model.IntegrityReport) IntegrityReport {
	out := IntegrityReport{Violations: make([]IntegrityViolation, len(r.Violations))}
	for i, v := range r.Violations {
		out.Violations[i] = IntegrityViolation{Invariant: v.Invariant, Detail: v.Detail}
	}
	return out
}
