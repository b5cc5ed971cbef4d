package source

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"proxyrotation/internal/shared/logger"
	"proxyrotation/proxypool/model"
)

// maxLineSize 限制单行长度，超过时整个来源加载失败
const maxLineSize = 1024 * 1024

// Source 接口定义了获取候选代理列表的行为。
type Source interface {
	// Load returns the candidate endpoints. On error the returned slice is empty.
	Load() ([]model.Endpoint, error)

	// Name 返回来源名称，用于日志记录。
	Name() string
}

// ParseLines turns every non-empty, whitespace-trimmed line into an endpoint.
// Duplicates are kept.
func ParseLines(r io.Reader) ([]model.Endpoint, error) {
	var endpoints []model.Endpoint
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		endpoints = append(endpoints, model.Endpoint(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return endpoints, nil
}

// FromStrings applies the same rules as ParseLines to an in-memory list.
func FromStrings(lines []string) []model.Endpoint {
	endpoints := make([]model.Endpoint, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			endpoints = append(endpoints, model.Endpoint(line))
		}
	}
	return endpoints
}

// StaticSource serves a fixed list of raw strings.
type StaticSource struct {
	lines []string
}

func NewStaticSource(lines ...string) *StaticSource {
	return &StaticSource{lines: lines}
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) Load() ([]model.Endpoint, error) {
	return FromStrings(s.lines), nil
}

// FileSource reads one proxy per line from a local file.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Name() string { return "file:" + s.path }

func (s *FileSource) Load() ([]model.Endpoint, error) {
	l := logger.WithComponent("ProxyPool/Source")

	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open proxy list %s: %w", s.path, err)
	}
	defer file.Close()

	endpoints, err := ParseLines(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read proxy list %s: %w", s.path, err)
	}

	l.Info().Str("path", s.path).Int("count", len(endpoints)).Msg("Loaded proxies from file.")
	return endpoints, nil
}

// LoadAll loads every source and concatenates the results in order. A failing
// source contributes nothing; its error is joined into the returned error and
// the remaining sources are still loaded.
func LoadAll(sources ...Source) ([]model.Endpoint, error) {
	l := logger.WithComponent("ProxyPool/Source")

	var all []model.Endpoint
	var errs []error
	for _, s := range sources {
		endpoints, err := s.Load()
		if err != nil {
			l.Warn().Err(err).Str("source", s.Name()).Msg("Source failed, continuing without it.")
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		all = append(all, endpoints...)
	}
	return all, errors.Join(errs...)
}
