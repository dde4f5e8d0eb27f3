package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// matterRepo implements MatterRepo.
type matterRepo struct {
	db  *sql.DB
	now func() time.Time
}

var matterSelect = []string{
	"id", "principal_id", "subject", "chapter", "objective",
	"difficulty", "progression", "created_at", "updated_at",
}

func (r *matterRepo) GetOrCreate(ctx context.Context, key MatterKey, difficulty string) (*Matter, bool, error) {
	if difficulty == "" {
		difficulty = DifficultyMedium
	}
	now := r.now()

	// The unique (principal_id, subject, chapter) index makes the insert a
	// no-op for an existing key, so concurrent callers converge on one row.
	q, args := builder().Insert(tableMatters).
		Columns("principal_id", "subject", "chapter", "difficulty", "progression", "created_at", "updated_at").
		Values(key.PrincipalID, key.Subject, key.Chapter, difficulty, 0.0, now, now).
		OnConflict(
			entsql.ConflictColumns("principal_id", "subject", "chapter"),
			entsql.DoNothing(),
		).
		Query()
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, false, fmt.Errorf("insert matter: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("insert matter: %w", err)
	}

	m, err := r.matterWhere(ctx, entsql.And(
		entsql.EQ("principal_id", key.PrincipalID),
		entsql.EQ("subject", key.Subject),
		entsql.EQ("chapter", key.Chapter),
	))
	if err != nil {
		return nil, false, err
	}
	if m == nil {
		return nil, false, fmt.Errorf("matter %q/%q vanished after upsert", key.Subject, key.Chapter)
	}
	return m, n == 1, nil
}

func (r *matterRepo) Matter(ctx context.Context, id int) (*Matter, error) {
	return r.matterWhere(ctx, entsql.EQ("id", id))
}

func (r *matterRepo) ListMatters(ctx context.Context, principalID int) ([]*Matter, error) {
	b := builder()
	q, args := b.Select(matterSelect...).
		From(b.Table(tableMatters)).
		Where(entsql.EQ("principal_id", principalID)).
		OrderBy(entsql.Desc("updated_at"), entsql.Desc("id")).
		Query()
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query matters: %w", err)
	}
	defer rows.Close()

	var out []*Matter
	for rows.Next() {
		m, err := scanMatter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *matterRepo) SetObjective(ctx context.Context, id int, objective string) error {
	q, args := builder().Update(tableMatters).
		Set("objective", nullString(objective)).
		Set("updated_at", r.now()).
		Where(entsql.EQ("id", id)).
		Query()
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("set objective: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set objective on matter %d: %w", id, ErrNotFound)
	}
	return nil
}

func (r *matterRepo) matterWhere(ctx context.Context, pred *entsql.Predicate) (*Matter, error) {
	b := builder()
	q, args := b.Select(matterSelect...).From(b.Table(tableMatters)).Where(pred).Query()
	m, err := scanMatter(r.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

func scanMatter(s scanner) (*Matter, error) {
	var (
		m         Matter
		objective sql.NullString
	)
	err := s.Scan(&m.ID, &m.PrincipalID, &m.Subject, &m.Chapter, &objective,
		&m.Difficulty, &m.Progression, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan matter: %w", err)
	}
	m.Objective = objective.String
	return &m, nil
}
