// Package session persists analysis sessions, their documents and topic
// membership in SQLite.
package session

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kailas-cloud/topicdex/internal/domain"
	"github.com/kailas-cloud/topicdex/internal/domain/analysis"
	"github.com/kailas-cloud/topicdex/internal/domain/corpus"
	"github.com/kailas-cloud/topicdex/internal/domain/topic"
)

const defaultListLimit = 20

// docIDColumn is the id reported for a stored document: the caller's id
// when one was given, the row id otherwise.
const docIDColumn = "COALESCE(NULLIF(d.external_id, ''), d.id)"

// Repo implements the session repository over database/sql.
//
// Every stored document gets its own row id. The caller's id is kept as
// external_id, so sessions that reuse an id never share or overwrite rows.
type Repo struct {
	db  *sql.DB
	now func() time.Time

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// New creates a session repository.
func New(db *sql.DB) *Repo {
	return &Repo{db: db, now: time.Now, entropy: ulid.Monotonic(rand.Reader, 0)}
}

// SaveDocuments stores documents as new rows.
func (r *Repo) SaveDocuments(ctx context.Context, docs []corpus.Document) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := r.insertDocuments(ctx, tx, docs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// insertDocuments writes one row per document and returns the row ids in
// input order.
func (r *Repo) insertDocuments(ctx context.Context, tx *sql.Tx, docs []corpus.Document) ([]string, error) {
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO documents (id, external_id, date, theme, text, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare document insert: %w", err)
	}
	defer stmt.Close()

	now := r.now()
	created := formatTime(now)
	rowIDs := make([]string, len(docs))
	for i, d := range docs {
		rowIDs[i] = r.rowID(now)
		if _, err := stmt.ExecContext(ctx, rowIDs[i], d.ID(), formatDate(d), d.Theme(), d.Text(), created); err != nil {
			return nil, fmt.Errorf("insert document %s: %w", d.ID(), err)
		}
	}
	return rowIDs, nil
}

func (r *Repo) rowID(now time.Time) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), r.entropy).String()
}

// Save stores a session with its documents, topic rows and memberships in
// one transaction.
func (r *Repo) Save(ctx context.Context, s analysis.Session) error {
	res := s.Result()
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	docs := s.Documents()
	rowIDs, err := r.insertDocuments(ctx, tx, docs)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO sessions (id, name, description, algorithm, strategy, created_at, result_json)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID(), s.Name(), s.Description(), s.Algorithm(), string(res.Metadata.Strategy),
		formatTime(s.CreatedAt()), string(raw),
	); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	for i, d := range docs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO session_documents (session_id, position, document_id) VALUES (?, ?, ?)`,
			s.ID(), i, rowIDs[i],
		); err != nil {
			return fmt.Errorf("link document %s: %w", d.ID(), err)
		}
	}

	if err := insertTopics(ctx, tx, s.ID(), res, len(docs)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertTopics(ctx context.Context, tx *sql.Tx, sessionID string, res analysis.Result, n int) error {
	confidence := make(map[int]float64, len(res.Consensus))
	for _, c := range res.Consensus {
		confidence[c.DocumentIndex] = c.Confidence
	}

	for _, st := range res.Topics {
		if st.DocumentCount == 0 {
			continue
		}
		kw, err := json.Marshal(nonNil(st.Keywords))
		if err != nil {
			return fmt.Errorf("marshal keywords: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO topic_results (session_id, topic_id, name, category, keywords, document_count, confidence)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sessionID, st.ID, st.Name, st.Category, string(kw), st.DocumentCount, st.AverageConfidence,
		); err != nil {
			return fmt.Errorf("insert topic %d: %w", st.ID, err)
		}
		for _, idx := range st.DocumentIndices {
			if idx < 0 || idx >= n {
				return fmt.Errorf("%w: topic %d references document %d", domain.ErrInvalidInput, st.ID, idx)
			}
			conf, ok := confidence[idx]
			if !ok {
				conf = st.AverageConfidence
			}
			if _, err := tx.ExecContext(ctx, `
INSERT INTO topic_documents (session_id, topic_id, position, confidence) VALUES (?, ?, ?, ?)`,
				sessionID, st.ID, idx, conf,
			); err != nil {
				return fmt.Errorf("insert topic document %d: %w", idx, err)
			}
		}
	}
	return nil
}

// Get loads a session with its documents and result.
func (r *Repo) Get(ctx context.Context, id string) (analysis.Session, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, description, created_at, result_json FROM sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return analysis.Session{}, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
		}
		return analysis.Session{}, err
	}

	docs, err := r.sessionDocuments(ctx, id)
	if err != nil {
		return analysis.Session{}, err
	}
	return analysis.ReconstructSession(s.id, s.name, s.description, s.createdAt, docs, s.result), nil
}

// List returns sessions newest first, without their documents.
func (r *Repo) List(ctx context.Context, limit, offset int) ([]analysis.Session, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, description, created_at, result_json FROM sessions
ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limit, max(offset, 0))
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []analysis.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, analysis.ReconstructSession(s.id, s.name, s.description, s.createdAt, nil, s.result))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

func (r *Repo) sessionDocuments(ctx context.Context, sessionID string) ([]corpus.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+docIDColumn+`, d.text, d.theme, d.date FROM session_documents sd
JOIN documents d ON d.id = sd.document_id
WHERE sd.session_id = ? ORDER BY sd.position`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session documents: %w", err)
	}
	defer rows.Close()

	var docs []corpus.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session documents: %w", err)
	}
	return docs, nil
}

// Period counts the session's documents dated within [start, end] and how
// many of them each topic holds. Undated documents never match.
func (r *Repo) Period(ctx context.Context, sessionID string, start, end time.Time) (analysis.Period, error) {
	if err := r.exists(ctx, sessionID); err != nil {
		return analysis.Period{}, err
	}
	from, to := start.Format(corpus.DateLayout), end.Format(corpus.DateLayout)
	p := analysis.Period{SessionID: sessionID, Start: start, End: end}

	if err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM session_documents sd
JOIN documents d ON d.id = sd.document_id
WHERE sd.session_id = ? AND d.date != '' AND d.date BETWEEN ? AND ?`,
		sessionID, from, to,
	).Scan(&p.TotalDocuments); err != nil {
		return analysis.Period{}, fmt.Errorf("count period documents: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT tr.topic_id, tr.name, tr.category, tr.keywords, tr.confidence, COUNT(*)
FROM topic_results tr
JOIN topic_documents td ON td.session_id = tr.session_id AND td.topic_id = tr.topic_id
JOIN session_documents sd ON sd.session_id = td.session_id AND sd.position = td.position
JOIN documents d ON d.id = sd.document_id
WHERE tr.session_id = ? AND d.date != '' AND d.date BETWEEN ? AND ?
GROUP BY tr.topic_id ORDER BY tr.topic_id`,
		sessionID, from, to,
	)
	if err != nil {
		return analysis.Period{}, fmt.Errorf("query period topics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			pt analysis.PeriodTopic
			kw string
		)
		if err := rows.Scan(&pt.TopicID, &pt.Name, &pt.Category, &kw, &pt.Confidence, &pt.DocumentCount); err != nil {
			return analysis.Period{}, fmt.Errorf("scan period topic: %w", err)
		}
		if err := json.Unmarshal([]byte(kw), &pt.Keywords); err != nil {
			return analysis.Period{}, fmt.Errorf("decode keywords: %w", err)
		}
		p.Topics = append(p.Topics, pt)
	}
	if err := rows.Err(); err != nil {
		return analysis.Period{}, fmt.Errorf("iterate period topics: %w", err)
	}
	return p, nil
}

// TopicDocuments returns a topic row and its member documents dated within
// [start, end], in corpus order.
func (r *Repo) TopicDocuments(
	ctx context.Context, sessionID string, topicID int, start, end time.Time,
) (topic.Stat, []corpus.Document, error) {
	var (
		st topic.Stat
		kw string
	)
	err := r.db.QueryRowContext(ctx, `
SELECT topic_id, name, category, keywords, document_count, confidence
FROM topic_results WHERE session_id = ? AND topic_id = ?`, sessionID, topicID,
	).Scan(&st.ID, &st.Name, &st.Category, &kw, &st.DocumentCount, &st.AverageConfidence)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return topic.Stat{}, nil, fmt.Errorf("topic %d of session %s: %w", topicID, sessionID, domain.ErrNotFound)
		}
		return topic.Stat{}, nil, fmt.Errorf("query topic: %w", err)
	}
	if err := json.Unmarshal([]byte(kw), &st.Keywords); err != nil {
		return topic.Stat{}, nil, fmt.Errorf("decode keywords: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT `+docIDColumn+`, d.text, d.theme, d.date, td.position FROM topic_documents td
JOIN session_documents sd ON sd.session_id = td.session_id AND sd.position = td.position
JOIN documents d ON d.id = sd.document_id
WHERE td.session_id = ? AND td.topic_id = ? AND d.date != '' AND d.date BETWEEN ? AND ?
ORDER BY td.position`,
		sessionID, topicID, start.Format(corpus.DateLayout), end.Format(corpus.DateLayout),
	)
	if err != nil {
		return topic.Stat{}, nil, fmt.Errorf("query topic documents: %w", err)
	}
	defer rows.Close()

	var docs []corpus.Document
	for rows.Next() {
		var (
			id, text, theme, date string
			pos                   int
		)
		if err := rows.Scan(&id, &text, &theme, &date, &pos); err != nil {
			return topic.Stat{}, nil, fmt.Errorf("scan topic document: %w", err)
		}
		docs = append(docs, corpus.Reconstruct(id, text, theme, parseDate(date)))
		st.DocumentIndices = append(st.DocumentIndices, pos)
	}
	if err := rows.Err(); err != nil {
		return topic.Stat{}, nil, fmt.Errorf("iterate topic documents: %w", err)
	}
	return st, docs, nil
}

func (r *Repo) exists(ctx context.Context, id string) error {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("query session: %w", err)
	}
	return nil
}
