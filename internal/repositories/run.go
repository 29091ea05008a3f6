package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/nrx/internal/models"
	"github.com/desertthunder/nrx/internal/shared"
)

const runColumns = `id, sequence, status, playlist_id, playlist_url, playlist_name, artist_count, album_count, track_count,
	error_kind, error_message, started_at, finished_at, created_at, updated_at`

// RunRepository implements models.Repository[*models.Run] for pipeline history.
type RunRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db, now: time.Now}
}

var _ models.Repository[*models.Run] = (*RunRepository)(nil)

// Create inserts a new run with a generated ID and sequence
func (r *RunRepository) Create(ctx context.Context, run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()

	query := `INSERT INTO runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	pl := run.Playlist()
	_, err = r.db.ExecContext(ctx, query,
		id,
		sequence,
		string(run.Status()),
		pl.ID,
		pl.URL,
		pl.Name,
		run.ArtistCount(),
		run.AlbumCount(),
		run.TrackCount(),
		run.ErrorKind(),
		run.ErrorMessage(),
		run.StartedAt().UTC(),
		nullTime(run.FinishedAt()),
		run.CreatedAt().UTC(),
		run.UpdatedAt().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	run.SetID(id)
	run.SetSequence(sequence)
	return nil
}

// Get retrieves a run and its albums by ID
func (r *RunRepository) Get(ctx context.Context, id string) (*models.Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	albums, err := r.Albums(ctx, id)
	if err != nil {
		return nil, err
	}
	run.SetAlbums(albums)
	return run, nil
}

// Latest retrieves the run with the highest sequence
func (r *RunRepository) Latest(ctx context.Context) (*models.Run, error) {
	var id string
	err := r.db.QueryRowContext(ctx, "SELECT id FROM runs ORDER BY sequence DESC LIMIT 1").Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}
	return r.Get(ctx, id)
}

// Update writes the run's outcome and counts
func (r *RunRepository) Update(ctx context.Context, run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := r.now().UTC()
	run.SetUpdatedAt(now)

	query := `
		UPDATE runs
		SET status = ?, playlist_id = ?, playlist_url = ?, playlist_name = ?,
			artist_count = ?, album_count = ?, track_count = ?,
			error_kind = ?, error_message = ?, finished_at = ?, updated_at = ?
		WHERE id = ?
	`

	pl := run.Playlist()
	result, err := r.db.ExecContext(ctx, query,
		string(run.Status()),
		pl.ID,
		pl.URL,
		pl.Name,
		run.ArtistCount(),
		run.AlbumCount(),
		run.TrackCount(),
		run.ErrorKind(),
		run.ErrorMessage(),
		nullTime(run.FinishedAt()),
		now,
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRunNotFound, run.ID())
	}
	return nil
}

// Delete removes a run. Its albums are removed by the foreign key cascade.
func (r *RunRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
	}
	return nil
}

// List retrieves runs newest first.
//
// Supported criteria: "status" (string or [models.RunStatus]) and "limit" (int).
func (r *RunRepository) List(ctx context.Context, criteria map[string]any) ([]*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1 = 1`
	args := []any{}

	switch status := criteria["status"].(type) {
	case string:
		if status != "" {
			query += " AND status = ?"
			args = append(args, status)
		}
	case models.RunStatus:
		query += " AND status = ?"
		args = append(args, string(status))
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// SaveAlbums replaces the albums recorded for a run, preserving order.
func (r *RunRepository) SaveAlbums(ctx context.Context, runID string, albums []models.Album) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM run_albums WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("failed to clear run albums: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_albums (run_id, position, album_id, name, artist, release_date)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare album insert: %w", err)
	}
	defer stmt.Close()

	for i, a := range albums {
		if _, err := stmt.ExecContext(ctx, runID, i, a.ID, a.Name, a.Artist, a.Released()); err != nil {
			return fmt.Errorf("failed to insert album %s: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run albums: %w", err)
	}
	return nil
}

// Albums returns the albums recorded for a run in processing order.
func (r *RunRepository) Albums(ctx context.Context, runID string) ([]models.Album, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT album_id, name, artist, release_date
		FROM run_albums
		WHERE run_id = ?
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run albums: %w", err)
	}
	defer rows.Close()

	var albums []models.Album
	for rows.Next() {
		var (
			a        models.Album
			released string
		)
		if err := rows.Scan(&a.ID, &a.Name, &a.Artist, &released); err != nil {
			return nil, fmt.Errorf("failed to scan run album: %w", err)
		}
		if a.ReleaseDate, err = time.Parse(models.ReleaseDateLayout, released); err != nil {
			return nil, fmt.Errorf("invalid stored release date %q: %w", released, err)
		}
		albums = append(albums, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return albums, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRun scans a single row from [sql.Row] or [sql.Rows] into a [models.Run]
func scanRun(s scanner) (*models.Run, error) {
	var (
		id           string
		sequence     int
		status       string
		playlist     models.Playlist
		artistCount  int
		albumCount   int
		trackCount   int
		errorKind    string
		errorMessage string
		startedAt    time.Time
		finishedAt   sql.NullTime
		createdAt    time.Time
		updatedAt    time.Time
	)

	err := s.Scan(&id, &sequence, &status, &playlist.ID, &playlist.URL, &playlist.Name,
		&artistCount, &albumCount, &trackCount, &errorKind, &errorMessage,
		&startedAt, &finishedAt, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run := models.NewRun(startedAt)
	run.SetID(id)
	run.SetSequence(sequence)
	run.SetStatus(models.RunStatus(status))
	run.SetPlaylist(playlist)
	run.SetCounts(artistCount, albumCount, trackCount)
	run.SetError(errorKind, errorMessage)
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)
	if finishedAt.Valid {
		t := finishedAt.Time
		run.SetFinishedAt(&t)
	}
	return run, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
