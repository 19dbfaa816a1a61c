package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/shouni/go-crawl-pilot/pkg/types"
)

const (
	// DefaultPath は要約レコードの保存先ファイルです。
	DefaultPath = "summary.csv"
	// DateLayout は date 列の書式です。
	DateLayout = "2006-01-02 15:04:05.000000"
)

// Header は保存先ファイルの列です。
var Header = []string{"title", "summary", "date"}

// StorageError は、レコードファイルへの書き込み失敗を示します。
type StorageError struct {
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("レコードファイル(%s)への書き込みに失敗しました: %v", e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// CSVStore は、要約レコードをCSVファイルに追記します。
// 書き込みは単一プロセスからのみ行われる前提で、ロックは行いません。
type CSVStore struct {
	path string
}

// NewCSVStore は新しい CSVStore を生成します。path が空の場合は DefaultPath を使用します。
func NewCSVStore(path string) *CSVStore {
	if path == "" {
		path = DefaultPath
	}
	return &CSVStore{path: path}
}

// Path は保存先ファイルのパスを返します。
func (s *CSVStore) Path() string { return s.path }

// Append は1件のレコードを追記します。
// 呼び出し前にファイルが存在しなかった場合のみ、先にヘッダー行を書き込みます。
func (s *CSVStore) Append(ctx context.Context, record types.StoredRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	existed, err := fileExists(s.path)
	if err != nil {
		return &StorageError{Path: s.path, Err: err}
	}
	if !existed {
		if err := ensureDir(s.path); err != nil {
			return &StorageError{Path: s.path, Err: err}
		}
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &StorageError{Path: s.path, Err: err}
	}

	if err := writeRecord(f, record, !existed); err != nil {
		f.Close()
		return &StorageError{Path: s.path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &StorageError{Path: s.path, Err: err}
	}
	return nil
}

func writeRecord(f *os.File, record types.StoredRecord, withHeader bool) error {
	writer := csv.NewWriter(f)
	writer.UseCRLF = true

	if withHeader {
		if err := writer.Write(Header); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}
	row := []string{record.Title, record.Summary, record.Date.Format(DateLayout)}
	if err := writer.Write(row); err != nil {
		return fmt.Errorf("write csv record: %w", err)
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv record: %w", err)
	}
	return nil
}

func fileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err == nil {
		if info.IsDir() {
			return false, fmt.Errorf("%s はディレクトリです", path)
		}
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
