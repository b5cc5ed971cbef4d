package storage

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"proxyrotation/proxypool/model"
)

const (
	delimiter = "|"
	numFields = 5 // RunID|Endpoint|Live|LatencyMs|CheckedAt
)

// Store 接口定义了验证结果的记录行为。只写不读：池不会从这里恢复状态。
type Store interface {
	Record(runID string, r model.ValidationResult) error
	Close() error
}

// Open builds the Store for driver ("file" or "sqlite"). An empty driver returns nil, nil.
func Open(driver, path string) (Store, error) {
	switch driver {
	case "":
		return nil, nil
	case "file":
		fs, err := NewFileStore(path)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case "sqlite":
		ss, err := NewSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		return ss, nil
	default:
		return nil, fmt.Errorf("unknown report driver %q", driver)
	}
}

// FileStore appends one pipe-delimited line per validation result.
type FileStore struct {
	filePath string
	mu       sync.Mutex
	file     *os.File
}

// NewFileStore opens (or creates) the report file in append mode.
func NewFileStore(filePath string) (*FileStore, error) {
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open report file: %w", err)
	}
	return &FileStore{
		filePath: filePath,
		file:     f,
	}, nil
}

func (fs *FileStore) Record(runID string, r model.ValidationResult) error {
	line := formatResult(runID, r) + "\n"

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.file == nil {
		return fmt.Errorf("report file %s is closed", fs.filePath)
	}
	if _, err := fs.file.WriteString(line); err != nil {
		return fmt.Errorf("failed to write report line: %w", err)
	}
	return nil
}

func (fs *FileStore) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.file == nil {
		return nil
	}
	err := fs.file.Close()
	fs.file = nil
	return err
}

// formatResult 将一条验证结果格式化为一行文本。
// The endpoint may itself contain '|' only in credentials, which we escape.
func formatResult(runID string, r model.ValidationResult) string {
	return strings.Join([]string{
		runID,
		strings.ReplaceAll(r.Endpoint.String(), delimiter, "%7C"),
		strconv.FormatBool(r.Live),
		strconv.FormatInt(r.Latency.Milliseconds(), 10),
		strconv.FormatInt(r.CheckedAt.Unix(), 10),
	}, delimiter)
}
