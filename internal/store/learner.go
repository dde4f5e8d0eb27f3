package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// learnerRepo implements LearnerRepo.
type learnerRepo struct {
	db  *sql.DB
	now func() time.Time
}

var principalSelect = []string{"id", "username", "first_name", "role", "created_at"}

var profileSelect = []string{
	"id", "principal_id", "class_level", "level", "learning_style",
	"diagnostic_completed", "diagnostic_date", "pending_questions",
	"created_at", "updated_at",
}

func (r *learnerRepo) CreatePrincipal(ctx context.Context, p *Principal) (*Principal, error) {
	out := *p
	if out.Role == "" {
		out.Role = RoleStudent
	}
	out.CreatedAt = r.now()

	q, args := builder().Insert(tablePrincipals).
		Columns("username", "first_name", "role", "created_at").
		Values(out.Username, out.FirstName, out.Role, out.CreatedAt).
		Query()
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("insert principal %q: %w", p.Username, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("principal id: %w", err)
	}
	out.ID = int(id)
	return &out, nil
}

func (r *learnerRepo) Principal(ctx context.Context, id int) (*Principal, error) {
	return r.principalWhere(ctx, entsql.EQ("id", id))
}

func (r *learnerRepo) PrincipalByUsername(ctx context.Context, username string) (*Principal, error) {
	return r.principalWhere(ctx, entsql.EQ("username", username))
}

func (r *learnerRepo) ListPrincipals(ctx context.Context) ([]*Principal, error) {
	b := builder()
	q, args := b.Select(principalSelect...).From(b.Table(tablePrincipals)).OrderBy("id").Query()
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query principals: %w", err)
	}
	defer rows.Close()

	var out []*Principal
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *learnerRepo) principalWhere(ctx context.Context, pred *entsql.Predicate) (*Principal, error) {
	b := builder()
	q, args := b.Select(principalSelect...).From(b.Table(tablePrincipals)).Where(pred).Query()
	p, err := scanPrincipal(r.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func scanPrincipal(s scanner) (*Principal, error) {
	var p Principal
	if err := s.Scan(&p.ID, &p.Username, &p.FirstName, &p.Role, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan principal: %w", err)
	}
	return &p, nil
}

func (r *learnerRepo) CreateProfile(ctx context.Context, p *LearnerProfile) (*LearnerProfile, error) {
	out := *p
	if out.Level == "" {
		out.Level = LevelBeginner
	}
	if out.LearningStyle == "" {
		out.LearningStyle = StyleMixed
	}
	now := r.now()
	out.CreatedAt, out.UpdatedAt = now, now

	q, args := builder().Insert(tableProfiles).
		Columns("principal_id", "class_level", "level", "learning_style",
			"diagnostic_completed", "diagnostic_date", "pending_questions",
			"created_at", "updated_at").
		Values(out.PrincipalID, nullString(out.ClassLevel), out.Level, out.LearningStyle,
			out.DiagnosticCompleted, nullTime(out.DiagnosticDate), nullJSON(out.PendingQuestions),
			now, now).
		Query()
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("insert learner profile for principal %d: %w", p.PrincipalID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("profile id: %w", err)
	}
	out.ID = int(id)
	return &out, nil
}

func (r *learnerRepo) Profile(ctx context.Context, principalID int) (*LearnerProfile, error) {
	b := builder()
	q, args := b.Select(profileSelect...).
		From(b.Table(tableProfiles)).
		Where(entsql.EQ("principal_id", principalID)).
		Query()

	var (
		p          LearnerProfile
		classLevel sql.NullString
		diagDate   sql.NullTime
		pending    sql.NullString
	)
	err := r.db.QueryRowContext(ctx, q, args...).Scan(
		&p.ID, &p.PrincipalID, &classLevel, &p.Level, &p.LearningStyle,
		&p.DiagnosticCompleted, &diagDate, &pending,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query learner profile: %w", err)
	}

	p.ClassLevel = classLevel.String
	if diagDate.Valid {
		t := diagDate.Time
		p.DiagnosticDate = &t
	}
	if pending.Valid && pending.String != "" && pending.String != "null" {
		p.PendingQuestions = json.RawMessage(pending.String)
	}
	return &p, nil
}

func (r *learnerRepo) SetClassLevel(ctx context.Context, principalID int, classLevel string) error {
	q, args := builder().Update(tableProfiles).
		Set("class_level", classLevel).
		Set("updated_at", r.now()).
		Where(entsql.EQ("principal_id", principalID)).
		Query()
	return r.execOne(ctx, q, args, "set class level")
}

func (r *learnerRepo) SetPendingQuestions(ctx context.Context, principalID int, questions json.RawMessage) error {
	q, args := builder().Update(tableProfiles).
		Set("pending_questions", nullJSON(questions)).
		Set("updated_at", r.now()).
		Where(entsql.EQ("principal_id", principalID)).
		Query()
	return r.execOne(ctx, q, args, "set pending questions")
}

func (r *learnerRepo) CompleteDiagnostic(ctx context.Context, principalID int, outcome DiagnosticOutcome) (bool, error) {
	at := outcome.CompletedAt
	if at.IsZero() {
		at = r.now()
	}

	u := builder().Update(tableProfiles).
		Set("diagnostic_completed", true).
		Set("diagnostic_date", at).
		SetNull("pending_questions").
		Set("updated_at", r.now())
	if outcome.Level != "" {
		u.Set("level", outcome.Level)
	}
	if outcome.LearningStyle != "" {
		u.Set("learning_style", outcome.LearningStyle)
	}
	q, args := u.Where(entsql.And(
		entsql.EQ("principal_id", principalID),
		entsql.EQ("diagnostic_completed", false),
		entsql.NotNull("pending_questions"),
	)).Query()

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("complete diagnostic: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete diagnostic: %w", err)
	}
	return n == 1, nil
}

func (r *learnerRepo) ResetDiagnostic(ctx context.Context, principalID int) error {
	q, args := builder().Update(tableProfiles).
		Set("diagnostic_completed", false).
		SetNull("diagnostic_date").
		SetNull("pending_questions").
		Set("updated_at", r.now()).
		Where(entsql.EQ("principal_id", principalID)).
		Query()
	return r.execOne(ctx, q, args, "reset diagnostic")
}

// execOne runs an update that must touch exactly one profile row.
func (r *learnerRepo) execOne(ctx context.Context, q string, args []any, what string) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
