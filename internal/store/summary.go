package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// summaryRepo implements SummaryRepo.
type summaryRepo struct {
	db  *sql.DB
	now func() time.Time
}

func (r *summaryRepo) CreateSummary(ctx context.Context, s *ConversationSummary) (*ConversationSummary, error) {
	out := *s
	if out.KeyConcepts == nil {
		out.KeyConcepts = []string{}
	}
	concepts, err := json.Marshal(out.KeyConcepts)
	if err != nil {
		return nil, fmt.Errorf("marshal key concepts: %w", err)
	}
	out.CreatedAt = r.now()
	if out.ConversationDate.IsZero() {
		out.ConversationDate = out.CreatedAt
	}

	q, args := builder().Insert(tableSummaries).
		Columns("principal_id", "matter_id", "summary_text", "key_concepts",
			"document_id", "conversation_date", "created_at").
		Values(out.PrincipalID, out.MatterID, out.Text, string(concepts),
			nullString(out.DocumentID), out.ConversationDate.UTC(), out.CreatedAt).
		Query()
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("insert conversation summary: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("summary id: %w", err)
	}
	out.ID = int(id)
	return &out, nil
}

func (r *summaryRepo) AttachDocument(ctx context.Context, summaryID int, documentID string) (bool, error) {
	q, args := builder().Update(tableSummaries).
		Set("document_id", documentID).
		Where(entsql.And(
			entsql.EQ("id", summaryID),
			entsql.IsNull("document_id"),
		)).
		Query()
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("attach document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("attach document: %w", err)
	}
	return n == 1, nil
}

func (r *summaryRepo) ListSummaries(ctx context.Context, principalID int, opts HistoryOpts) ([]*ConversationSummary, error) {
	b := builder()
	s := b.Table(tableSummaries)
	m := b.Table(tableMatters)

	sel := b.Select(
		s.C("id"), s.C("principal_id"), s.C("matter_id"), s.C("summary_text"),
		s.C("key_concepts"), s.C("document_id"), s.C("conversation_date"), s.C("created_at"),
		m.C("subject"), m.C("chapter"),
	).
		From(s).
		Join(m).On(s.C("matter_id"), m.C("id")).
		Where(entsql.EQ(s.C("principal_id"), principalID)).
		OrderBy(entsql.Desc(s.C("created_at")), entsql.Desc(s.C("id")))
	if opts.Subject != "" {
		sel.Where(entsql.EQ(m.C("subject"), opts.Subject))
	}
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}

	q, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	var out []*ConversationSummary
	for rows.Next() {
		var (
			cs       ConversationSummary
			concepts sql.NullString
			docID    sql.NullString
		)
		if err := rows.Scan(&cs.ID, &cs.PrincipalID, &cs.MatterID, &cs.Text,
			&concepts, &docID, &cs.ConversationDate, &cs.CreatedAt,
			&cs.Subject, &cs.Chapter); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		cs.DocumentID = docID.String
		cs.KeyConcepts = []string{}
		if concepts.Valid && concepts.String != "" {
			if err := json.Unmarshal([]byte(concepts.String), &cs.KeyConcepts); err != nil {
				return nil, fmt.Errorf("decode key concepts of summary %d: %w", cs.ID, err)
			}
		}
		out = append(out, &cs)
	}
	return out, rows.Err()
}
