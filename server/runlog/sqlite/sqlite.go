// Package sqlite is a runlog.Store backed by modernc.org/sqlite: a tiny store
// wrapper plus one *sql.DB-holding repository with an init() that creates its table if
// needed.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dekarrin/llmctl/server/runlog"
	"github.com/google/uuid"
	"modernc.org/sqlite"
)

type store struct {
	db   *sql.DB
	runs *RunsDB
}

// NewStore opens (creating if necessary) a sqlite database at file and
// returns a runlog.Store backed by it.
func NewStore(file string) (runlog.Store, error) {
	db, err := sql.Open("sqlite", file)
	if err != nil {
		return nil, wrapDBError(err)
	}

	s := &store{db: db, runs: &RunsDB{db: db}}
	if err := s.runs.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *store) Runs() runlog.RunRepository { return s.runs }
func (s *store) Close() error               { return s.db.Close() }

type RunsDB struct {
	db *sql.DB
}

func (repo *RunsDB) init() error {
	_, err := repo.db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id TEXT NOT NULL PRIMARY KEY,
		seq_id TEXT NOT NULL,
		parent_id TEXT NOT NULL,
		step_index INTEGER NOT NULL,
		kind TEXT NOT NULL,
		backtrack INTEGER NOT NULL,
		ff_tokens INTEGER NOT NULL,
		bias_count INTEGER NOT NULL,
		suspended INTEGER NOT NULL,
		recorded INTEGER NOT NULL
	);`)
	if err != nil {
		return wrapDBError(err)
	}
	return nil
}

func (repo *RunsDB) Close() error { return nil }

func (repo *RunsDB) Create(ctx context.Context, e runlog.Entry) (runlog.Entry, error) {
	newID, err := uuid.NewRandom()
	if err != nil {
		return runlog.Entry{}, fmt.Errorf("could not generate ID: %w", err)
	}
	e.ID = newID
	if e.Recorded.IsZero() {
		e.Recorded = time.Now()
	}

	_, err = repo.db.ExecContext(ctx,
		`INSERT INTO runs (id, seq_id, parent_id, step_index, kind, backtrack, ff_tokens, bias_count, suspended, recorded)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.SeqID.String(), e.ParentID.String(), e.StepIndex, string(e.Kind),
		e.Backtrack, e.FFTokens, e.BiasCount, boolToInt(e.Suspended), e.Recorded.Unix(),
	)
	if err != nil {
		return runlog.Entry{}, wrapDBError(err)
	}
	return e, nil
}

func (repo *RunsDB) GetByID(ctx context.Context, id uuid.UUID) (runlog.Entry, error) {
	row := repo.db.QueryRowContext(ctx,
		`SELECT id, seq_id, parent_id, step_index, kind, backtrack, ff_tokens, bias_count, suspended, recorded
		 FROM runs WHERE id=?;`, id.String())
	e, err := scanEntry(row.Scan)
	if err != nil {
		return runlog.Entry{}, wrapDBError(err)
	}
	return e, nil
}

func (repo *RunsDB) GetAllBySeq(ctx context.Context, seqID uuid.UUID) ([]runlog.Entry, error) {
	rows, err := repo.db.QueryContext(ctx,
		`SELECT id, seq_id, parent_id, step_index, kind, backtrack, ff_tokens, bias_count, suspended, recorded
		 FROM runs WHERE seq_id=? ORDER BY step_index ASC;`, seqID.String())
	if err != nil {
		return nil, wrapDBError(err)
	}
	defer rows.Close()

	var all []runlog.Entry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, wrapDBError(err)
		}
		all = append(all, e)
	}
	if err := rows.Err(); err != nil {
		return all, wrapDBError(err)
	}
	return all, nil
}

func (repo *RunsDB) ListSeqIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := repo.db.QueryContext(ctx,
		`SELECT seq_id, MAX(recorded) AS last FROM runs GROUP BY seq_id ORDER BY last DESC;`)
	if err != nil {
		return nil, wrapDBError(err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var idStr string
		var last int64
		if err := rows.Scan(&idStr, &last); err != nil {
			return nil, wrapDBError(err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return out, fmt.Errorf("stored UUID %q is invalid", idStr)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return out, wrapDBError(err)
	}
	return out, nil
}

func (repo *RunsDB) DeleteBySeq(ctx context.Context, seqID uuid.UUID) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM runs WHERE seq_id=?;`, seqID.String())
	if err != nil {
		return wrapDBError(err)
	}
	return nil
}

type scanner func(dest ...interface{}) error

func scanEntry(scan scanner) (runlog.Entry, error) {
	var e runlog.Entry
	var idStr, seqStr, parentStr, kind string
	var suspended int
	var recorded int64

	err := scan(&idStr, &seqStr, &parentStr, &e.StepIndex, &kind, &e.Backtrack, &e.FFTokens, &e.BiasCount, &suspended, &recorded)
	if err != nil {
		return runlog.Entry{}, err
	}

	e.ID, err = uuid.Parse(idStr)
	if err != nil {
		return runlog.Entry{}, fmt.Errorf("stored UUID %q is invalid", idStr)
	}
	e.SeqID, err = uuid.Parse(seqStr)
	if err != nil {
		return runlog.Entry{}, fmt.Errorf("stored seq UUID %q is invalid", seqStr)
	}
	if parentStr != "" && parentStr != uuid.Nil.String() {
		e.ParentID, err = uuid.Parse(parentStr)
		if err != nil {
			return runlog.Entry{}, fmt.Errorf("stored parent UUID %q is invalid", parentStr)
		}
	}
	e.Kind = runlog.DecisionKind(kind)
	e.Suspended = suspended != 0
	e.Recorded = time.Unix(recorded, 0)
	return e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func wrapDBError(err error) error {
	sqliteErr := &sqlite.Error{}
	if errors.As(err, &sqliteErr) {
		return fmt.Errorf("%s", sqlite.ErrorCodeString[sqliteErr.Code()])
	} else if errors.Is(err, sql.ErrNoRows) {
		return runlog.ErrNotFound
	}
	return err
}
