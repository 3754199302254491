package health

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/topicdex/internal/logger"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names reported in Report.Checks.
const (
	ComponentDatabase = "database"
	ComponentCache    = "cache"
	ComponentLLM      = "llm"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	database Pinger
	cache    Pinger
	llm      LLMChecker
}

// New creates a Service. Any component can be nil and is then skipped.
func New(database, cache Pinger, llm LLMChecker) *Service {
	return &Service{database: database, cache: cache, llm: llm}
}

// Check runs health checks against all configured components. The status is
// Unhealthy when every check fails and Degraded when some do.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	run := func(name string, check func(context.Context) error) {
		if err := check(ctx); err != nil {
			logger.FromContext(ctx).Warn("Health check failed", zap.String("component", name), zap.Error(err))
			checks[name] = CheckError
			return
		}
		checks[name] = CheckOK
	}

	if s.database != nil {
		run(ComponentDatabase, s.database.Ping)
	}
	if s.cache != nil {
		run(ComponentCache, s.cache.Ping)
	}
	if s.llm != nil {
		run(ComponentLLM, s.llm.HealthCheck)
	}

	failed := 0
	for _, v := range checks {
		if v == CheckError {
			failed++
		}
	}
	status := Healthy
	switch {
	case failed > 0 && failed == len(checks):
		status = Unhealthy
	case failed > 0:
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}
