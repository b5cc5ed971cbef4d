package pool

import (
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"proxyrotation/internal/shared/logger"
	"proxyrotation/proxypool/model"
)

// Pool 是可用/不可用代理的线程安全注册表。
//
// 可用集合与不可用集合始终不相交。一个 mutex 同时保护两个集合和轮询游标，
// 这样 Next 计算下标时看到的集合大小不会被并发的 MarkInvalid 改变。
type Pool struct {
	mu      sync.Mutex
	order   []model.Endpoint // valid endpoints in rotation order
	valid   map[model.Endpoint]struct{}
	invalid map[model.Endpoint]struct{}
	unknown map[model.Endpoint]struct{}
	cursor  uint64

	log zerolog.Logger
}

// New creates an empty pool.
func New() *Pool {
	return &Pool{
		valid:   make(map[model.Endpoint]struct{}),
		invalid: make(map[model.Endpoint]struct{}),
		unknown: make(map[model.Endpoint]struct{}),
		log:     logger.WithComponent("ProxyPool/Pool"),
	}
}

// Register records endpoints as Unknown. Endpoints the pool already knows keep their state.
func (p *Pool) Register(endpoints ...model.Endpoint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range endpoints {
		if p.stateLocked(e) == model.StateUnknown {
			p.unknown[e] = struct{}{}
		}
	}
}

// Record applies a validation outcome. Only an endpoint that is still Unknown
// is classified; the return value reports whether the state changed.
func (p *Pool) Record(r model.ValidationResult) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stateLocked(r.Endpoint) != model.StateUnknown {
		return false
	}
	delete(p.unknown, r.Endpoint)
	if r.Live {
		p.valid[r.Endpoint] = struct{}{}
		p.order = append(p.order, r.Endpoint)
	} else {
		p.invalid[r.Endpoint] = struct{}{}
	}
	return true
}

// Next returns the next valid endpoint in round-robin order, or false when
// no endpoint is currently valid. It never blocks waiting for proxies.
func (p *Pool) Next() (model.Endpoint, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.order) == 0 {
		return "", false
	}
	e := p.order[p.cursor%uint64(len(p.order))]
	p.cursor++
	return e, true
}

// MarkInvalid demotes a valid endpoint. Calls for endpoints that are not
// currently valid are no-ops. It reports whether a demotion happened.
func (p *Pool) MarkInvalid(e model.Endpoint) bool {
	p.mu.Lock()
	if _, ok := p.valid[e]; !ok {
		p.mu.Unlock()
		return false
	}
	delete(p.valid, e)
	if i := slices.Index(p.order, e); i >= 0 {
		p.order = slices.Delete(p.order, i, i+1)
	}
	p.invalid[e] = struct{}{}
	remaining := len(p.order)
	p.mu.Unlock()

	p.log.Debug().Str("proxy", e.String()).Int("remaining_valid", remaining).Msg("Proxy demoted to invalid.")
	return true
}

// State returns the current state of e. Endpoints never seen are Unknown.
func (p *Pool) State(e model.Endpoint) model.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked(e)
}

// 调用方必须持有 p.mu
func (p *Pool) stateLocked(e model.Endpoint) model.State {
	if _, ok := p.valid[e]; ok {
		return model.StateValid
	}
	if _, ok := p.invalid[e]; ok {
		return model.StateInvalid
	}
	return model.StateUnknown
}

// ValidCount is a point-in-time count and may be stale under concurrent use.
func (p *Pool) ValidCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.order)
}

// InvalidCount is a point-in-time count and may be stale under concurrent use.
func (p *Pool) InvalidCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.invalid)
}

// UnknownCount returns how many registered endpoints have not been classified yet.
func (p *Pool) UnknownCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.unknown)
}

// ValidSnapshot returns a copy of the valid endpoints in rotation order.
func (p *Pool) ValidSnapshot() []model.Endpoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.order)
}
