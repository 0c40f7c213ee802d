package frpei

// ProviderSnapshot is the observable state of one provider's circuit
// breaker, exposed via GET /metrics and GET /status.
type ProviderSnapshot struct {
	Provider     string  `json:"provider"`
	State        string  `json:"state"`
	Successes    int     `json:"successes"`
	Failures     int     `json:"failures"`
	Timeouts     int     `json:"timeouts"`
	EMALatencyMs float64 `json:"emaLatencyMs"`
	LastError    string  `json:"lastError,omitempty"`
}

// Snapshot is the full metrics/status payload.
type Snapshot struct {
	Providers []ProviderSnapshot `json:"providers"`
}

func (s BreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Snapshot reports per-provider circuit breaker counters for
// GET /metrics and GET /status.
func (r *Router) Snapshot() Snapshot {
	names := make([]string, 0, len(r.registry.breakers))
	for name := range r.registry.breakers {
		names = append(names, name)
	}

	snapshot := Snapshot{Providers: make([]ProviderSnapshot, 0, len(names))}
	for _, name := range names {
		b := r.registry.breakers[name]
		b.mu.Lock()
		snapshot.Providers = append(snapshot.Providers, ProviderSnapshot{
			Provider: name, State: b.state.String(), Successes: b.Successes,
			Failures: b.Failures, Timeouts: b.Timeouts, EMALatencyMs: b.EMALatencyMs,
			LastError: errString(b.LastError),
		})
		b.mu.Unlock()
	}
	return snapshot
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
