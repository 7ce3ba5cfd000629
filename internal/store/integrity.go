package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/hotsaucejake/ledger-sub000/internal/model"
)

// CheckIntegrity verifies the cross-table invariants of the store. It never
// attempts repair; a broken invariant is reported, not fixed. If any
// invariant is violated, the returned error is a Storage error naming which
// ones, alongside the populated report for callers that want the detail.
func (s *Store) CheckIntegrity() (model.IntegrityReport, error) {
	var report model.IntegrityReport
	err := s.withLock(func() error {
		if v, err := s.checkForeignKeys(); err != nil {
			return err
		} else {
			report.Violations = append(report.Violations, v...)
		}
		if v, err := s.checkFTSCoherence(); err != nil {
			return err
		} else {
			report.Violations = append(report.Violations, v...)
		}
		if v, err := s.checkActiveVersionUniqueness("entry_type_versions", "entry_type_id"); err != nil {
			return err
		} else {
			report.Violations = append(report.Violations, v...)
		}
		if v, err := s.checkTemplateActiveVersionUniqueness(); err != nil {
			return err
		} else {
			report.Violations = append(report.Violations, v...)
		}
		if v, err := s.checkMetaCompleteness(); err != nil {
			return err
		} else {
			report.Violations = append(report.Violations, v...)
		}
		return nil
	})
	if err != nil {
		return report, err
	}
	if len(report.Violations) > 0 {
		return report, model.ErrorStorage(nil, "integrity check found %d violation(s): %s",
			len(report.Violations), summarizeViolations(report.Violations))
	}
	return report, nil
}

// summarizeViolations names each distinct violated invariant and how many
// rows triggered it, in first-seen order.
func summarizeViolations(violations []model.IntegrityViolation) string {
	counts := make(map[string]int, len(violations))
	var order []string
	for _, v := range violations {
		if counts[v.Invariant] == 0 {
			order = append(order, v.Invariant)
		}
		counts[v.Invariant]++
	}
	parts := make([]string, len(order))
	for i, name := range order {
		parts[i] = fmt.Sprintf("%s(%d)", name, counts[name])
	}
	return strings.Join(parts, ", ")
}

func (s *Store) checkForeignKeys() ([]model.IntegrityViolation, error) {
	rows, err := s.db.Query(`PRAGMA foreign_key_check`)
	if err != nil {
		return nil, model.ErrorStorage(err, "failed to run foreign_key_check")
	}
	defer rows.Close()

	var violations []model.IntegrityViolation
	for rows.Next() {
		var table string
		var rowid any
		var parent string
		var fkid int
		if err := rows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return nil, model.ErrorStorage(err, "failed to scan foreign_key_check row")
		}
		violations = append(violations, model.IntegrityViolation{
			Invariant: "referential_integrity",
			Detail:    table + " has a row referencing a missing " + parent + " id",
		})
	}
	return violations, rows.Err()
}

func (s *Store) checkFTSCoherence() ([]model.IntegrityViolation, error) {
	var entriesCount, ftsCount, orphanEntries, orphanFTS int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM entries`).Scan(&entriesCount); err != nil {
		return nil, model.ErrorStorage(err, "failed to count entries")
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM entries_fts`).Scan(&ftsCount); err != nil {
		return nil, model.ErrorStorage(err, "failed to count entries_fts rows")
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM entries e WHERE NOT EXISTS (SELECT 1 FROM entries_fts f WHERE f.entry_id = e.id)`).
		Scan(&orphanEntries); err != nil {
		return nil, model.ErrorStorage(err, "failed to find entries missing an FTS row")
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM entries_fts f WHERE NOT EXISTS (SELECT 1 FROM entries e WHERE e.id = f.entry_id)`).
		Scan(&orphanFTS); err != nil {
		return nil, model.ErrorStorage(err, "failed to find FTS rows missing an entry")
	}

	var violations []model.IntegrityViolation
	if entriesCount != ftsCount || orphanEntries > 0 || orphanFTS > 0 {
		violations = append(violations, model.IntegrityViolation{
			Invariant: "fts_coherence",
			Detail: fmt.Sprintf("entries=%d fts=%d orphan_entries=%d orphan_fts=%d",
				entriesCount, ftsCount, orphanEntries, orphanFTS),
		})
	}
	return violations, nil
}

// checkActiveVersionUniqueness verifies exactly one active=1 row per
// groupCol in table.
func (s *Store) checkActiveVersionUniqueness(table, groupCol string) ([]model.IntegrityViolation, error) {
	rows, err := s.db.Query(`
		SELECT ` + groupCol + `, SUM(active) AS active_count FROM ` + table + `
		GROUP BY ` + groupCol + ` HAVING active_count <> 1
	`)
	if err != nil {
		return nil, model.ErrorStorage(err, "failed to check active-version uniqueness on %s", table)
	}
	defer rows.Close()

	var violations []model.IntegrityViolation
	for rows.Next() {
		var groupID string
		var count int
		if err := rows.Scan(&groupID, &count); err != nil {
			return nil, model.ErrorStorage(err, "failed to scan active-version uniqueness row")
		}
		violations = append(violations, model.IntegrityViolation{
			Invariant: "active_version_uniqueness",
			Detail:    fmt.Sprintf("%s %s=%s has %s active versions, expected 1", table, groupCol, groupID, strconv.Itoa(count)),
		})
	}
	return violations, rows.Err()
}

// checkTemplateActiveVersionUniqueness is the template-specific variant of
// checkActiveVersionUniqueness: it only considers template_id groups that
// still have at least one version row (a template with zero versions, e.g.
// mid-deletion, is not a violation).
func (s *Store) checkTemplateActiveVersionUniqueness() ([]model.IntegrityViolation, error) {
	return s.checkActiveVersionUniqueness("template_versions", "template_id")
}

func (s *Store) checkMetaCompleteness() ([]model.IntegrityViolation, error) {
	required := []string{"format_version", "device_id", "created_at", "last_modified"}
	var violations []model.IntegrityViolation
	for _, key := range required {
		var exists int
		err := s.db.QueryRow(`SELECT 1 FROM meta WHERE key = ?`, key).Scan(&exists)
		if err != nil && err != sql.ErrNoRows {
			return nil, model.ErrorStorage(err, "failed to check meta key %s", key)
		}
		if exists == 0 {
			violations = append(violations, model.IntegrityViolation{
				Invariant: "meta_completeness",
				Detail:    "meta is missing required key " + key,
			})
		}
	}
	return violations, nil
}
