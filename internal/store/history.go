package store

import (
	"context"
	"time"

	"plugup/internal/domain"
)

// InstallRecord is one plugin of one install batch.
type InstallRecord struct {
	BatchID     string
	Component   string
	Version     domain.Version
	InstalledAt time.Time
	Success     bool
}

// RecordInstall appends records to the install log in one transaction.
func (s *Store) RecordInstall(ctx context.Context, records []InstallRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageError("begin install log", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO install_log (batch_id, component, version, installed_at, success)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return storageError("prepare install log", err)
	}
	defer func() {
		_ = stmt.Close()
	}()
	for _, r := range records {
		success := 0
		if r.Success {
			success = 1
		}
		if _, err := stmt.ExecContext(ctx, r.BatchID, r.Component, int64(r.Version), r.InstalledAt.Unix(), success); err != nil {
			return storageError("insert install record "+r.Component, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return storageError("commit install log", err)
	}
	return nil
}

// InstallHistory returns install records, newest first. An empty component
// returns every plugin. limit <= 0 means no limit.
func (s *Store) InstallHistory(ctx context.Context, component string, limit int) ([]InstallRecord, error) {
	query := `
		SELECT batch_id, component, version, installed_at, success
		FROM install_log
	`
	var args []any
	if component != "" {
		query += ` WHERE component = ?`
		args = append(args, component)
	}
	query += ` ORDER BY installed_at DESC, batch_id, component`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageError("query install log", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []InstallRecord
	for rows.Next() {
		var (
			r           InstallRecord
			version     int64
			installedAt int64
			success     int
		)
		if err := rows.Scan(&r.BatchID, &r.Component, &version, &installedAt, &success); err != nil {
			return nil, storageError("scan install record", err)
		}
		r.Version = domain.Version(version)
		r.InstalledAt = unixTime(installedAt)
		r.Success = success != 0
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("read install log", err)
	}
	return out, nil
}
