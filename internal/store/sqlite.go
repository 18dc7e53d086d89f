package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yourorg/featuregen/pkg/types"
)

const defaultListLimit = 50

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// Sequence ids are allocated inside a transaction; one connection keeps
	// concurrent writers from racing on the same prefix.
	db.SetMaxOpenConns(1)
	s := &SQLiteStore{db: db}
	if err := s.Init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Init() error {
	if _, err := s.db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return err
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS generations (
			id TEXT PRIMARY KEY,
			operation TEXT NOT NULL,
			tier TEXT NOT NULL,
			tier_label TEXT NOT NULL,
			requirement TEXT NOT NULL,
			api_context TEXT NOT NULL,
			output TEXT NOT NULL,
			valid INTEGER NOT NULL,
			errors TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			endpoint TEXT NOT NULL,
			method TEXT NOT NULL,
			execution_type TEXT NOT NULL,
			total INTEGER NOT NULL,
			passed INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			success_rate TEXT NOT NULL,
			results TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_generations_created ON generations(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) SaveGeneration(rec *types.GenerationRecord) error {
	if rec == nil {
		return errors.New("generation record is nil")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	errs, err := json.Marshal(rec.Errors)
	if err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if rec.ID == "" {
		if rec.ID, err = nextID(tx, "generations", "gen", rec.CreatedAt); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(`INSERT INTO generations(id,operation,tier,tier_label,requirement,api_context,output,valid,errors,created_at) VALUES(?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, rec.Operation, string(rec.Tier), rec.TierLabel, rec.Requirement, rec.APIContext, rec.Output, rec.Valid, string(errs), rec.CreatedAt); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetGeneration(id string) (*types.GenerationRecord, error) {
	row := s.db.QueryRow(`SELECT id,operation,tier,tier_label,requirement,api_context,output,valid,errors,created_at FROM generations WHERE id=?`, id)
	rec, err := scanGeneration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

func (s *SQLiteStore) ListGenerations(limit int) ([]types.GenerationRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.Query(`SELECT id,operation,tier,tier_label,requirement,api_context,output,valid,errors,created_at FROM generations ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]types.GenerationRecord, 0)
	for rows.Next() {
		rec, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteGeneration(id string) error {
	res, err := s.db.Exec(`DELETE FROM generations WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) SaveRun(rec *types.RunRecord) error {
	if rec == nil {
		return errors.New("run record is nil")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	results, err := json.Marshal(rec.Results)
	if err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if rec.ID == "" {
		if rec.ID, err = nextID(tx, "runs", "run", rec.CreatedAt); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(`INSERT INTO runs(id,endpoint,method,execution_type,total,passed,failed,success_rate,results,created_at) VALUES(?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, rec.Endpoint, rec.Method, string(rec.ExecutionType), rec.Total, rec.Passed, rec.Failed, rec.SuccessRate, string(results), rec.CreatedAt); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetRun(id string) (*types.RunRecord, error) {
	row := s.db.QueryRow(`SELECT id,endpoint,method,execution_type,total,passed,failed,success_rate,results,created_at FROM runs WHERE id=?`, id)
	rec, err := scanRun(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// ListRuns returns run summaries without per-case results.
func (s *SQLiteStore) ListRuns(limit int) ([]types.RunRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.Query(`SELECT id,endpoint,method,execution_type,total,passed,failed,success_rate,results,created_at FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]types.RunRecord, 0)
	for rows.Next() {
		rec, err := scanRun(rows, false)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return errors.New("store is nil")
	}
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGeneration(row scanner) (*types.GenerationRecord, error) {
	var rec types.GenerationRecord
	var tier, errs string
	if err := row.Scan(&rec.ID, &rec.Operation, &tier, &rec.TierLabel, &rec.Requirement, &rec.APIContext, &rec.Output, &rec.Valid, &errs, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.Tier = types.Tier(tier)
	if errs != "" && errs != "null" {
		_ = json.Unmarshal([]byte(errs), &rec.Errors)
	}
	return &rec, nil
}

func scanRun(row scanner, withResults bool) (*types.RunRecord, error) {
	var rec types.RunRecord
	var execType, results string
	if err := row.Scan(&rec.ID, &rec.Endpoint, &rec.Method, &execType, &rec.Total, &rec.Passed, &rec.Failed, &rec.SuccessRate, &results, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.ExecutionType = types.ExecutionType(execType)
	if withResults && results != "" && results != "null" {
		if err := json.Unmarshal([]byte(results), &rec.Results); err != nil {
			return nil, fmt.Errorf("decode run results: %w", err)
		}
	}
	return &rec, nil
}

// nextID allocates "<kind>_YYYYMMDD_NNN" ids, one sequence per day.
func nextID(tx *sql.Tx, table, kind string, now time.Time) (string, error) {
	prefix := fmt.Sprintf("%s_%s_", kind, now.Format("20060102"))
	rows, err := tx.Query(`SELECT id FROM `+table+` WHERE id LIKE ?`, prefix+"%")
	if err != nil {
		return "", err
	}
	defer rows.Close()
	maxN := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(id, prefix)); err == nil && n > maxN {
			maxN = n
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%03d", prefix, maxN+1), nil
}
