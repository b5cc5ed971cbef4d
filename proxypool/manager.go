package manager

import (
	"errors"
	"fmt"

	"proxyrotation/internal/shared/logger"
	"proxyrotation/internal/shared/types"
	"proxyrotation/proxypool/fetch"
	"proxyrotation/proxypool/model"
	"proxyrotation/proxypool/pool"
	"proxyrotation/proxypool/source"
	"proxyrotation/proxypool/storage"
	"proxyrotation/proxypool/validator"
)

// Manager 是代理池模块的总控制器：加载候选列表、验证、填充代理池。
// 每个 Manager 拥有自己的 Pool，没有任何进程级全局状态。
type Manager struct {
	cfg         *types.Config
	sources     []source.Source
	coordinator *validator.Coordinator
	pool        *pool.Pool
	store       storage.Store
}

// NewManager builds the sources, checker and optional report store described by cfg.
func NewManager(cfg *types.Config) (*Manager, error) {
	store, err := storage.Open(cfg.Driver, cfg.ReportConf.Path)
	if err != nil {
		return nil, err
	}

	checker := validator.NewHTTPChecker(cfg.ValidationTarget, cfg.PoolConf.Timeout())
	m := New(cfg, checker)
	m.store = store
	if store != nil {
		m.coordinator.WithReporter(store)
	}

	if cfg.File != "" {
		m.AddSource(source.NewFileSource(cfg.File))
	}
	if cfg.RemoteURL != "" {
		m.AddSource(source.NewRemoteSource(cfg.RemoteURL))
	}
	if cfg.HTMLURL != "" {
		m.AddSource(source.NewHTMLTableSource(cfg.HTMLURL, cfg.HTMLRows, cfg.HTMLProto))
	}
	return m, nil
}

// New creates a manager around an explicit checker and no sources.
func New(cfg *types.Config, checker validator.Checker) *Manager {
	return &Manager{
		cfg:         cfg,
		coordinator: validator.NewCoordinator(checker, cfg.MaxConcurrency),
		pool:        pool.New(),
	}
}

// AddSource 添加一个代理来源。
func (m *Manager) AddSource(s source.Source) {
	m.sources = append(m.sources, s)
}

// Pool returns the managed pool. Callers use it for Next and MarkInvalid.
func (m *Manager) Pool() *pool.Pool {
	return m.pool
}

// Run loads every source and validates the result into the pool. A source
// failure is returned alongside the summary but does not stop the run: with no
// candidates the pool simply stays empty.
func (m *Manager) Run() (validator.Summary, error) {
	l := logger.WithComponent("ProxyPool/Manager")

	if len(m.sources) == 0 {
		return validator.Summary{}, errors.New("no proxy source configured")
	}

	endpoints, loadErr := source.LoadAll(m.sources...)
	if loadErr != nil {
		l.Error().Err(loadErr).Msg("Failed to load some proxy sources.")
	}

	summary := m.coordinator.ValidateAll(m.pool, endpoints)
	l.Info().
		Int("valid", m.pool.ValidCount()).
		Int("invalid", m.pool.InvalidCount()).
		Msg("Proxy pool ready.")
	return summary, loadErr
}

// ImportAndValidate validates additional raw proxy strings into the same pool.
// Endpoints the pool already classified keep their state.
func (m *Manager) ImportAndValidate(lines []string) validator.Summary {
	l := logger.WithComponent("ProxyPool/Manager")

	fresh := make([]model.Endpoint, 0, len(lines))
	for _, e := range source.FromStrings(lines) {
		if m.pool.State(e) != model.StateUnknown {
			l.Debug().Str("proxy", e.String()).Msg("Proxy already classified, skipping import.")
			continue
		}
		fresh = append(fresh, e)
	}

	l.Info().Int("count", len(fresh)).Msg("Starting manual proxy import.")
	return m.coordinator.ValidateAll(m.pool, fresh)
}

// Fetcher returns a rotating fetcher over the managed pool.
func (m *Manager) Fetcher() *fetch.Fetcher {
	return fetch.NewFetcher(m.pool, m.cfg.MaxAttempts, m.cfg.FetchConf.Timeout())
}

// ExportValid writes the current valid set to the configured export file, if any.
func (m *Manager) ExportValid() error {
	if m.cfg.ValidFile == "" {
		return nil
	}
	return storage.ExportValid(m.cfg.ValidFile, m.pool.ValidSnapshot())
}

// Close releases the report store.
func (m *Manager) Close() error {
	if m.store == nil {
		return nil
	}
	if err := m.store.Close(); err != nil {
		return fmt.Errorf("failed to close report store: %w", err)
	}
	return nil
}
