// Package storage provides persistent history, file-artifact, and user
// stores backed by SQLite. Records are addressed by analysis timestamp;
// all public methods are safe for concurrent use (SQLite serializes
// writes).
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound indicates the addressed record does not exist.
var ErrNotFound = errors.New("storage: record not found")

// History is one saved analysis run.
type History struct {
	ID          int64
	Filename    string
	Summary     string
	Timestamp   string
	UploadDate  time.Time
	CycleAssets string // JSON array of problem-asset rows
	UserEmail   string
	SheetName   string
}

// File is a stored dataset artifact, JSON content keyed by filename.
type File struct {
	ID          int64
	Filename    string
	FileType    string
	JSONContent string
	UploadDate  time.Time
}

// User is a system account managed by the admin tools.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Role         string
}

// DB bundles the concern-specific stores over one SQLite handle.
type DB struct {
	sql     *sql.DB
	History *HistoryStore
	Files   *FileStore
	Users   *UserStore
}

// Open creates or opens the database at path and migrates the schema.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &DB{
		sql:     db,
		History: &HistoryStore{db: db},
		Files:   &FileStore{db: db},
		Users:   &UserStore{db: db},
	}, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS analysis_history (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		filename     TEXT NOT NULL,
		summary      TEXT NOT NULL,
		timestamp    TEXT NOT NULL UNIQUE,
		upload_date  TEXT NOT NULL,
		cycle_assets TEXT,
		user_email   TEXT,
		sheet_name   TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_history_timestamp ON analysis_history(timestamp);

	CREATE TABLE IF NOT EXISTS uploaded_files (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		filename     TEXT NOT NULL UNIQUE,
		file_type    TEXT NOT NULL,
		json_content TEXT NOT NULL,
		upload_date  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_files_filename ON uploaded_files(filename);

	CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// HistoryStore persists analysis history entries.
type HistoryStore struct {
	db *sql.DB
}

// Save inserts a history entry and returns it with its assigned id.
func (s *HistoryStore) Save(h History) (History, error) {
	res, err := s.db.Exec(
		`INSERT INTO analysis_history (filename, summary, timestamp, upload_date, cycle_assets, user_email, sheet_name)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		h.Filename, h.Summary, h.Timestamp, h.UploadDate.Format(time.RFC3339), h.CycleAssets, h.UserEmail, h.SheetName,
	)
	if err != nil {
		return History{}, fmt.Errorf("save history: %w", err)
	}
	h.ID, _ = res.LastInsertId()
	return h, nil
}

// GetLatest returns the most recent entry, or ErrNotFound when no
// analysis has been saved yet.
func (s *HistoryStore) GetLatest() (History, error) {
	row := s.db.QueryRow(`SELECT id, filename, summary, timestamp, upload_date, cycle_assets, user_email, sheet_name
		FROM analysis_history ORDER BY upload_date DESC LIMIT 1`)
	return scanHistory(row)
}

// GetByTimestamp returns the entry with the given analysis timestamp.
func (s *HistoryStore) GetByTimestamp(timestamp string) (History, error) {
	row := s.db.QueryRow(`SELECT id, filename, summary, timestamp, upload_date, cycle_assets, user_email, sheet_name
		FROM analysis_history WHERE timestamp = ?`, timestamp)
	return scanHistory(row)
}

// GetAll returns every entry, newest first.
func (s *HistoryStore) GetAll() ([]History, error) {
	rows, err := s.db.Query(`SELECT id, filename, summary, timestamp, upload_date, cycle_assets, user_email, sheet_name
		FROM analysis_history ORDER BY upload_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []History
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// DeleteByTimestamp removes the entry; ErrNotFound when absent.
func (s *HistoryStore) DeleteByTimestamp(timestamp string) error {
	res, err := s.db.Exec(`DELETE FROM analysis_history WHERE timestamp = ?`, timestamp)
	if err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByID removes one entry by primary key. Used to roll back a saved
// entry when the paired artifact write fails.
func (s *HistoryStore) DeleteByID(id int64) error {
	_, err := s.db.Exec(`DELETE FROM analysis_history WHERE id = ?`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHistory(r rowScanner) (History, error) {
	var h History
	var upload string
	err := r.Scan(&h.ID, &h.Filename, &h.Summary, &h.Timestamp, &upload, &h.CycleAssets, &h.UserEmail, &h.SheetName)
	if errors.Is(err, sql.ErrNoRows) {
		return History{}, ErrNotFound
	}
	if err != nil {
		return History{}, fmt.Errorf("scan history: %w", err)
	}
	h.UploadDate, _ = time.Parse(time.RFC3339, upload)
	return h, nil
}

// FileStore persists dataset artifacts.
type FileStore struct {
	db *sql.DB
}

// Save inserts or replaces an artifact by filename.
func (s *FileStore) Save(f File) (File, error) {
	res, err := s.db.Exec(
		`INSERT INTO uploaded_files (filename, file_type, json_content, upload_date) VALUES (?, ?, ?, ?)
		 ON CONFLICT(filename) DO UPDATE SET file_type=excluded.file_type, json_content=excluded.json_content, upload_date=excluded.upload_date`,
		f.Filename, f.FileType, f.JSONContent, f.UploadDate.Format(time.RFC3339),
	)
	if err != nil {
		return File{}, fmt.Errorf("save file: %w", err)
	}
	f.ID, _ = res.LastInsertId()
	return f, nil
}

// FindByFilename returns the artifact with the exact filename.
func (s *FileStore) FindByFilename(filename string) (File, error) {
	row := s.db.QueryRow(`SELECT id, filename, file_type, json_content, upload_date
		FROM uploaded_files WHERE filename = ?`, filename)
	return scanFile(row)
}

// FindByTimestamp returns the artifact whose filename embeds the analysis
// timestamp (artifacts are named data_<sheet>_<timestamp>.json).
func (s *FileStore) FindByTimestamp(timestamp string) (File, error) {
	row := s.db.QueryRow(`SELECT id, filename, file_type, json_content, upload_date
		FROM uploaded_files WHERE filename LIKE '%' || ? || '%' ORDER BY upload_date DESC LIMIT 1`, timestamp)
	return scanFile(row)
}

// GetAll returns every artifact, newest first.
func (s *FileStore) GetAll() ([]File, error) {
	rows, err := s.db.Query(`SELECT id, filename, file_type, json_content, upload_date
		FROM uploaded_files ORDER BY upload_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var out []File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// DeleteByTimestamp removes artifacts tied to an analysis timestamp.
func (s *FileStore) DeleteByTimestamp(timestamp string) error {
	_, err := s.db.Exec(`DELETE FROM uploaded_files WHERE filename LIKE '%' || ? || '%'`, timestamp)
	return err
}

func scanFile(r rowScanner) (File, error) {
	var f File
	var upload string
	err := r.Scan(&f.ID, &f.Filename, &f.FileType, &f.JSONContent, &upload)
	if errors.Is(err, sql.ErrNoRows) {
		return File{}, ErrNotFound
	}
	if err != nil {
		return File{}, fmt.Errorf("scan file: %w", err)
	}
	f.UploadDate, _ = time.Parse(time.RFC3339, upload)
	return f, nil
}

// UserStore persists system accounts.
type UserStore struct {
	db *sql.DB
}

// Create inserts a user and returns it with its assigned id.
func (s *UserStore) Create(u User) (User, error) {
	res, err := s.db.Exec(`INSERT INTO users (email, password_hash, role) VALUES (?, ?, ?)`,
		u.Email, u.PasswordHash, u.Role)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	u.ID, _ = res.LastInsertId()
	return u, nil
}

// GetAll returns every user ordered by id.
func (s *UserStore) GetAll() ([]User, error) {
	rows, err := s.db.Query(`SELECT id, email, password_hash, role FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// FindByEmail returns the user with the given email.
func (s *UserStore) FindByEmail(email string) (User, error) {
	var u User
	err := s.db.QueryRow(`SELECT id, email, password_hash, role FROM users WHERE email = ?`, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

// FindByID returns the user with the given id.
func (s *UserStore) FindByID(id int64) (User, error) {
	var u User
	err := s.db.QueryRow(`SELECT id, email, password_hash, role FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

// Delete removes a user by id; ErrNotFound when absent.
func (s *UserStore) Delete(id int64) error {
	res, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateEmail changes a user's email; ErrNotFound when absent.
func (s *UserStore) UpdateEmail(id int64, email string) error {
	res, err := s.db.Exec(`UPDATE users SET email = ? WHERE id = ?`, email, id)
	if err != nil {
		return fmt.Errorf("update user email: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateRole changes a user's role; ErrNotFound when absent.
func (s *UserStore) UpdateRole(id int64, role string) error {
	res, err := s.db.Exec(`UPDATE users SET role = ? WHERE id = ?`, role, id)
	if err != nil {
		return fmt.Errorf("update user role: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
