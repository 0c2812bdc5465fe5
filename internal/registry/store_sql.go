package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"examledger/internal/exam"
	"examledger/internal/payment"
	"examledger/pkg/domain"
)

// SQLStore persists the registry state in SQL. The same statements run on
// postgres (pgx) and sqlite (modernc); the service serializes writes, so
// the store needs no advisory locking of its own.
type SQLStore struct {
	db *sql.DB
}

const sqlSchema = `
CREATE TABLE IF NOT EXISTS exams (
	code            TEXT PRIMARY KEY,
	seq             BIGINT NOT NULL,
	title           TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	duration_min    INTEGER NOT NULL DEFAULT 0,
	total_questions INTEGER NOT NULL DEFAULT 0,
	minimum_score   INTEGER NOT NULL DEFAULT 0,
	native_cost     BIGINT NOT NULL DEFAULT 0,
	token_cost      BIGINT NOT NULL DEFAULT 0,
	token_name      TEXT NOT NULL,
	token_symbol    TEXT NOT NULL,
	creator         TEXT NOT NULL,
	instance        TEXT NOT NULL,
	created_at      BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS recognized_instances (
	instance TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS participant_history (
	participant     TEXT NOT NULL,
	pos             INTEGER NOT NULL,
	exam_code       TEXT NOT NULL,
	instance        TEXT NOT NULL,
	title           TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	time_taken      TEXT NOT NULL DEFAULT '',
	submitted_at    TEXT NOT NULL DEFAULT '',
	correct_answers INTEGER NOT NULL DEFAULT 0,
	score           INTEGER NOT NULL DEFAULT 0,
	status          TEXT NOT NULL,
	PRIMARY KEY (participant, pos),
	UNIQUE (participant, exam_code)
);
CREATE TABLE IF NOT EXISTS credentials (
	participant    TEXT NOT NULL,
	exam_code      TEXT NOT NULL,
	certificate_id TEXT NOT NULL,
	PRIMARY KEY (participant, certificate_id),
	UNIQUE (participant, exam_code)
);
`

// NewSQLStore ensures the schema exists and returns the store.
func NewSQLStore(ctx context.Context, db *sql.DB) (*SQLStore, error) {
	if _, err := db.ExecContext(ctx, sqlSchema); err != nil {
		return nil, fmt.Errorf("ensure registry schema: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) SaveExam(ctx context.Context, record exam.Record) error {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM exams WHERE code = $1`, record.Config.Code.String()).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check exam code: %w", err)
	}
	if exists > 0 {
		return ErrDuplicate
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO exams (code, seq, title, description, duration_min, total_questions,
			minimum_score, native_cost, token_cost, token_name, token_symbol,
			creator, instance, created_at)
		 VALUES ($1, (SELECT COALESCE(MAX(seq), 0) + 1 FROM exams), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		record.Config.Code.String(),
		record.Config.Title,
		record.Config.Description,
		record.Config.DurationMinutes,
		record.Config.TotalQuestions,
		record.Config.MinimumScore,
		int64(record.Config.NativeCost),
		int64(record.Config.TokenCost),
		record.TokenConfig.Name,
		record.TokenConfig.Symbol,
		record.Creator.String(),
		record.Instance.String(),
		record.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert exam: %w", err)
	}
	return nil
}

func (s *SQLStore) DeleteExam(ctx context.Context, code domain.ExamCode) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM exams WHERE code = $1`, code.String())
	if err != nil {
		return fmt.Errorf("delete exam: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const examColumns = `code, title, description, duration_min, total_questions, minimum_score,
	native_cost, token_cost, token_name, token_symbol, creator, instance, created_at`

func (s *SQLStore) GetExam(ctx context.Context, code domain.ExamCode) (exam.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+examColumns+` FROM exams WHERE code = $1`, code.String())
	record, err := scanExam(row)
	if errors.Is(err, sql.ErrNoRows) {
		return exam.Record{}, ErrNotFound
	}
	if err != nil {
		return exam.Record{}, fmt.Errorf("get exam: %w", err)
	}
	return record, nil
}

func (s *SQLStore) ListExams(ctx context.Context, offset, limit int) ([]exam.Record, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exams`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count exams: %w", err)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+examColumns+` FROM exams ORDER BY seq LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list exams: %w", err)
	}
	defer rows.Close()

	records := []exam.Record{}
	for rows.Next() {
		record, err := scanExam(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan exam: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list exams: %w", err)
	}
	return records, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExam(row rowScanner) (exam.Record, error) {
	var (
		record     exam.Record
		code       string
		creator    string
		instance   string
		nativeCost int64
		tokenCost  int64
		createdAt  int64
	)
	err := row.Scan(
		&code,
		&record.Config.Title,
		&record.Config.Description,
		&record.Config.DurationMinutes,
		&record.Config.TotalQuestions,
		&record.Config.MinimumScore,
		&nativeCost,
		&tokenCost,
		&record.TokenConfig.Name,
		&record.TokenConfig.Symbol,
		&creator,
		&instance,
		&createdAt,
	)
	if err != nil {
		return exam.Record{}, err
	}
	record.Config.Code = domain.ExamCode(code)
	record.Config.NativeCost = payment.Amount(nativeCost)
	record.Config.TokenCost = payment.Amount(tokenCost)
	record.Creator = domain.Address(creator)
	record.Instance = domain.Address(instance)
	record.CreatedAt = time.Unix(createdAt, 0).UTC()
	return record, nil
}

func (s *SQLStore) Recognize(ctx context.Context, instance domain.Address) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recognized_instances (instance) VALUES ($1) ON CONFLICT (instance) DO NOTHING`,
		instance.String())
	if err != nil {
		return fmt.Errorf("recognize instance: %w", err)
	}
	return nil
}

func (s *SQLStore) IsRecognized(ctx context.Context, instance domain.Address) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recognized_instances WHERE instance = $1`, instance.String()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check recognized: %w", err)
	}
	return count > 0, nil
}

func (s *SQLStore) AppendHistory(ctx context.Context, participant domain.Address, entry HistoryEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO participant_history (participant, pos, exam_code, instance, title,
			description, time_taken, submitted_at, correct_answers, score, status)
		 VALUES ($1,
			(SELECT COALESCE(MAX(pos), -1) + 1 FROM participant_history WHERE participant = $1),
			$2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		participant.String(),
		entry.ExamCode.String(),
		entry.Instance.String(),
		entry.Title,
		entry.Description,
		entry.Result.TimeTaken,
		entry.Result.SubmittedAt,
		entry.Result.CorrectAnswers,
		entry.Result.Score,
		entry.Status.String(),
	)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (s *SQLStore) UpdateHistory(ctx context.Context, participant domain.Address, code domain.ExamCode, result exam.Result, status domain.ParticipantStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE participant_history
		 SET time_taken = $1, submitted_at = $2, correct_answers = $3, score = $4, status = $5
		 WHERE participant = $6 AND exam_code = $7`,
		result.TimeTaken,
		result.SubmittedAt,
		result.CorrectAnswers,
		result.Score,
		status.String(),
		participant.String(),
		code.String(),
	)
	if err != nil {
		return fmt.Errorf("update history: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const historyColumns = `exam_code, instance, title, description, time_taken, submitted_at,
	correct_answers, score, status`

func (s *SQLStore) HistoryFor(ctx context.Context, participant domain.Address) ([]HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+historyColumns+` FROM participant_history WHERE participant = $1 ORDER BY pos`,
		participant.String())
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	entries := []HistoryEntry{}
	for rows.Next() {
		entry, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return entries, nil
}

func (s *SQLStore) HistoryEntry(ctx context.Context, participant domain.Address, code domain.ExamCode) (HistoryEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+historyColumns+` FROM participant_history WHERE participant = $1 AND exam_code = $2`,
		participant.String(), code.String())
	entry, err := scanHistory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return HistoryEntry{}, ErrNotFound
	}
	if err != nil {
		return HistoryEntry{}, fmt.Errorf("get history entry: %w", err)
	}
	return entry, nil
}

func scanHistory(row rowScanner) (HistoryEntry, error) {
	var (
		entry    HistoryEntry
		code     string
		instance string
		status   string
	)
	err := row.Scan(
		&code,
		&instance,
		&entry.Title,
		&entry.Description,
		&entry.Result.TimeTaken,
		&entry.Result.SubmittedAt,
		&entry.Result.CorrectAnswers,
		&entry.Result.Score,
		&status,
	)
	if err != nil {
		return HistoryEntry{}, err
	}
	entry.ExamCode = domain.ExamCode(code)
	entry.Instance = domain.Address(instance)
	entry.Status = domain.ParticipantStatus(status)
	return entry, nil
}

func (s *SQLStore) LinkCredential(ctx context.Context, participant domain.Address, code domain.ExamCode, certificateID domain.CertificateID) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (participant, exam_code, certificate_id) VALUES ($1, $2, $3)
		 ON CONFLICT (participant, certificate_id) DO NOTHING`,
		participant.String(), code.String(), certificateID.String())
	if err != nil {
		return fmt.Errorf("link credential: %w", err)
	}
	return nil
}

func (s *SQLStore) ExamForCertificate(ctx context.Context, participant domain.Address, certificateID domain.CertificateID) (domain.ExamCode, error) {
	var code string
	err := s.db.QueryRowContext(ctx,
		`SELECT exam_code FROM credentials WHERE participant = $1 AND certificate_id = $2`,
		participant.String(), certificateID.String()).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve certificate: %w", err)
	}
	return domain.ExamCode(code), nil
}

func (s *SQLStore) CertificateFor(ctx context.Context, participant domain.Address, code domain.ExamCode) (domain.CertificateID, error) {
	var certificateID string
	err := s.db.QueryRowContext(ctx,
		`SELECT certificate_id FROM credentials WHERE participant = $1 AND exam_code = $2`,
		participant.String(), code.String()).Scan(&certificateID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve certificate: %w", err)
	}
	return domain.CertificateID(certificateID), nil
}

var _ Store = (*SQLStore)(nil)
