package model

import (
	"strings"
	"time"
)

// Endpoint 是一个代理地址的原始字符串 (scheme://[user:pass@]host:port)。
// 它是值类型，相等性即字符串完全相等。
type Endpoint string

func (e Endpoint) String() string { return string(e) }

// URL returns the endpoint with an explicit scheme, defaulting to http://.
func (e Endpoint) URL() string {
	s := string(e)
	if strings.Contains(s, "://") {
		return s
	}
	return "http://" + s
}

// State 是代理在池中的生命周期状态。
// 只允许 Unknown->Valid, Unknown->Invalid, Valid->Invalid 三种迁移。
type State int

const (
	StateUnknown State = iota
	StateValid
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// ValidationResult is the outcome of one liveness check. It is handed from the
// validator to the pool and to an optional report store, never kept beyond that.
type ValidationResult struct {
	Endpoint  Endpoint
	Live      bool
	Latency   time.Duration // 0 when the check failed
	CheckedAt time.Time
}
