package health

import "context"

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
	// CheckMissing indicates the catalog index does not exist.
	CheckMissing CheckResult = "missing"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
	// Pending is the number of deferred writes, or -1 when unknown.
	Pending int64
}

// Service coordinates health checks.
type Service struct {
	db      DBPinger
	index   IndexChecker
	name    string
	pending PendingCounter
}

// New creates a Service. index and pending can be nil.
func New(db DBPinger, index IndexChecker, indexName string, pending PendingCounter) *Service {
	return &Service{db: db, index: index, name: indexName, pending: pending}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.db.Ping(ctx); err != nil {
		// Nothing else can be answered without the database.
		return Report{Status: Unhealthy, Checks: map[string]CheckResult{"database": CheckError}, Pending: -1}
	}
	checks["database"] = CheckOK

	if s.index != nil {
		switch ok, err := s.index.IndexExists(ctx, s.name); {
		case err != nil:
			checks["index"] = CheckError
		case !ok:
			checks["index"] = CheckMissing
		default:
			checks["index"] = CheckOK
		}
	}

	pending := int64(-1)
	if s.pending != nil {
		if n, err := s.pending.Pending(ctx); err != nil {
			checks["pending"] = CheckError
		} else {
			checks["pending"] = CheckOK
			pending = n
		}
	}

	status := Healthy
	for _, v := range checks {
		if v != CheckOK {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks, Pending: pending}
}
