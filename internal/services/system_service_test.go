package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/atlas-naturals/api/internal/domain"
)

type stubHealthRepository struct {
	report domain.SystemHealthReport
	err    error
	calls  int
}

func (s *stubHealthRepository) Collect(_ context.Context) (domain.SystemHealthReport, error) {
	s.calls++
	return s.report, s.err
}

func TestSystemServiceHealthEnrichesMetadata(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(5 * time.Minute)
	repo := &stubHealthRepository{
		report: domain.SystemHealthReport{
			Checks: map[string]domain.SystemHealthCheck{
				"firestore": {Status: domain.HealthStatusOK},
			},
		},
	}

	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: repo,
		Clock:            func() time.Time { return now },
		Build: BuildInfo{
			Version:     "1.4.0",
			Environment: "staging",
			StartedAt:   start,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	report, err := svc.Health(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Version != "1.4.0" || report.Environment != "staging" {
		t.Fatalf("expected build metadata, got %+v", report)
	}
	if report.Uptime != 5*time.Minute {
		t.Fatalf("expected 5m uptime, got %v", report.Uptime)
	}
	if report.Status != domain.HealthStatusOK {
		t.Fatalf("expected ok status, got %q", report.Status)
	}
	if report.GeneratedAt != now {
		t.Fatalf("expected generated timestamp %v, got %v", now, report.GeneratedAt)
	}
	if repo.calls != 1 {
		t.Fatalf("expected one collect call, got %d", repo.calls)
	}
}

func TestSystemServiceHealthDerivesDegradedStatus(t *testing.T) {
	repo := &stubHealthRepository{
		report: domain.SystemHealthReport{
			Checks: map[string]domain.SystemHealthCheck{
				"firestore": {Status: domain.HealthStatusOK},
				"pubsub":    {Status: domain.HealthStatusDegraded},
			},
		},
	}
	svc, err := NewSystemService(SystemServiceDeps{HealthRepository: repo})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	report, err := svc.Health(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Status != domain.HealthStatusDegraded {
		t.Fatalf("expected degraded, got %q", report.Status)
	}
}

func TestSystemServiceHealthPropagatesErrors(t *testing.T) {
	repo := &stubHealthRepository{err: errors.New("collect failed")}
	svc, err := NewSystemService(SystemServiceDeps{HealthRepository: repo})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Health(context.Background()); err == nil {
		t.Fatalf("expected error propagation")
	}
}
