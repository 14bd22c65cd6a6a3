package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"plugup/internal/domain"
)

// FetchState describes the last successful fetch of the update feed.
type FetchState struct {
	FetchedAt time.Time
	Provider  string
	ForBranch string
	Ticket    string
}

// ReplaceUpdates swaps the cached feed for updates and records state, in one
// transaction. Feed order is kept.
func (s *Store) ReplaceUpdates(ctx context.Context, state FetchState, updates []domain.UpdateCandidate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageError("begin update cache", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM update_cache`); err != nil {
		return storageError("clear update cache", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO update_cache (position, component, version, release_name, maturity, url, download, downloadmd5)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return storageError("prepare update cache", err)
	}
	defer func() {
		_ = stmt.Close()
	}()
	for i, u := range updates {
		if _, err := stmt.ExecContext(ctx, i, u.Component, int64(u.Version), u.Release, int(u.Maturity), u.URL, u.Download, u.DownloadMD5); err != nil {
			return storageError("insert update "+u.Component, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM fetch_state WHERE name = ?`, feedStateName); err != nil {
		return storageError("clear fetch state", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO fetch_state (name, fetched_at, provider, for_branch, ticket)
		VALUES (?, ?, ?, ?, ?)
	`, feedStateName, state.FetchedAt.Unix(), state.Provider, state.ForBranch, state.Ticket); err != nil {
		return storageError("record fetch state", err)
	}

	if err := tx.Commit(); err != nil {
		return storageError("commit update cache", err)
	}
	return nil
}

// Updates returns the cached candidates for component in feed order.
func (s *Store) Updates(ctx context.Context, component string) ([]domain.UpdateCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT component, version, release_name, maturity, url, download, downloadmd5
		FROM update_cache
		WHERE component = ?
		ORDER BY position
	`, component)
	if err != nil {
		return nil, storageError("query updates", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []domain.UpdateCandidate
	for rows.Next() {
		var (
			u                 domain.UpdateCandidate
			version           int64
			maturity          int
			pageURL, download sql.NullString
		)
		if err := rows.Scan(&u.Component, &version, &u.Release, &maturity, &pageURL, &download, &u.DownloadMD5); err != nil {
			return nil, storageError("scan update", err)
		}
		u.Version = domain.Version(version)
		u.Maturity = domain.Maturity(maturity)
		u.URL = pageURL.String
		u.Download = download.String
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("read updates", err)
	}
	return out, nil
}

// LastFetch returns the state of the last fetch. ok is false if the feed was
// never fetched.
func (s *Store) LastFetch(ctx context.Context) (FetchState, bool, error) {
	var (
		state     FetchState
		fetchedAt int64
		ticket    sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT fetched_at, provider, for_branch, ticket
		FROM fetch_state
		WHERE name = ?
	`, feedStateName).Scan(&fetchedAt, &state.Provider, &state.ForBranch, &ticket)
	if errors.Is(err, sql.ErrNoRows) {
		return FetchState{}, false, nil
	}
	if err != nil {
		return FetchState{}, false, storageError("query fetch state", err)
	}
	state.FetchedAt = unixTime(fetchedAt)
	state.Ticket = ticket.String
	return state, true, nil
}
