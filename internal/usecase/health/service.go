package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks. A failing cache backend degrades
// service health but never makes it unhealthy: the resolver still answers
// from the remaining tiers.
type Service struct {
	hot  Pinger
	cold Pinger
}

// New creates a Service. Either pinger can be nil.
func New(hot, cold Pinger) *Service {
	return &Service{hot: hot, cold: cold}
}

// Check runs health checks against all storage backends.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if s.hot != nil {
		checks["hot_cache"] = check(ctx, s.hot)
	}
	if s.cold != nil {
		checks["cold_cache"] = check(ctx, s.cold)
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}

func check(ctx context.Context, p Pinger) CheckResult {
	if err := p.Ping(ctx); err != nil {
		return CheckError
	}
	return CheckOK
}
