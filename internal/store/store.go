package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"ZhaoYaoJing/internal/model"
	"ZhaoYaoJing/internal/utils"
)

// ErrNotFound 查询的扫描记录不存在
var ErrNotFound = errors.New("扫描记录不存在")

// ScanRecord 一条落库的扫描记录
type ScanRecord struct {
	ID        string            `json:"id"`
	Domain    string            `json:"domain"`
	Profile   model.ScanProfile `json:"profile"`
	CreatedAt time.Time         `json:"created_at"`
	Result    *model.ScanResult `json:"result"`
}

// ScanStore 扫描历史存储
type ScanStore interface {
	Save(ctx context.Context, record *ScanRecord) error
	Get(ctx context.Context, id string) (*ScanRecord, error)
	Latest(ctx context.Context, domain string) (*ScanRecord, error)
	History(ctx context.Context, domain string, limit int) ([]*ScanRecord, error)
	Close() error
}

// SQLiteStore 基于sqlite的扫描历史存储。
// 结果主体序列化为JSON存储，域名和时间单独建列用于检索
type SQLiteStore struct {
	db     *sql.DB
	logger *utils.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS scans (
	id         TEXT PRIMARY KEY,
	domain     TEXT NOT NULL,
	profile    TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	result     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scans_domain_time ON scans(domain, created_at DESC);
`

// NewSQLiteStore 打开(必要时创建)数据库文件并初始化表结构
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("创建数据库目录失败: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化表结构失败: %w", err)
	}

	logger := utils.NewLogger("store")
	logger.Info("扫描历史数据库就绪: %s", path)
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, record *ScanRecord) error {
	payload, err := json.Marshal(record.Result)
	if err != nil {
		return fmt.Errorf("序列化扫描结果失败: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scans (id, domain, profile, created_at, result) VALUES (?, ?, ?, ?, ?)`,
		record.ID, record.Domain, string(record.Profile), record.CreatedAt.UTC(), string(payload),
	)
	if err != nil {
		return fmt.Errorf("写入扫描记录失败: %w", err)
	}
	s.logger.Debug("扫描记录已保存: %s (%s)", record.ID, record.Domain)
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*ScanRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, domain, profile, created_at, result FROM scans WHERE id = ?`, id)
	return scanRow(row)
}

// Latest 返回目标域名最近一次扫描
func (s *SQLiteStore) Latest(ctx context.Context, domain string) (*ScanRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, domain, profile, created_at, result FROM scans
		 WHERE domain = ? ORDER BY created_at DESC LIMIT 1`, domain)
	return scanRow(row)
}

// History 按时间倒序返回目标域名的扫描历史
func (s *SQLiteStore) History(ctx context.Context, domain string, limit int) ([]*ScanRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, domain, profile, created_at, result FROM scans
		 WHERE domain = ? ORDER BY created_at DESC LIMIT ?`, domain, limit)
	if err != nil {
		return nil, fmt.Errorf("查询扫描历史失败: %w", err)
	}
	defer rows.Close()

	var records []*ScanRecord
	for rows.Next() {
		record, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(row rowScanner) (*ScanRecord, error) {
	var record ScanRecord
	var profile, payload string
	err := row.Scan(&record.ID, &record.Domain, &profile, &record.CreatedAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("读取扫描记录失败: %w", err)
	}
	record.Profile = model.ScanProfile(profile)

	var result model.ScanResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("反序列化扫描结果失败: %w", err)
	}
	record.Result = &result
	return &record, nil
}
