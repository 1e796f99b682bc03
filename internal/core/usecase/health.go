package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/megachat/sales-assistant/internal/core/domain"
	"github.com/megachat/sales-assistant/internal/core/ports"
)

const defaultHealthProbeTimeout = 2 * time.Second

// HealthUseCase pings every dependency concurrently. A failing probe
// degrades the report; it never fails the check itself.
type HealthUseCase struct {
	probes  []ports.HealthProbe
	timeout time.Duration
}

func NewHealthUseCase(timeout time.Duration, probes ...ports.HealthProbe) *HealthUseCase {
	if timeout <= 0 {
		timeout = defaultHealthProbeTimeout
	}
	return &HealthUseCase{probes: probes, timeout: timeout}
}

func (uc *HealthUseCase) Check(ctx context.Context) domain.HealthReport {
	report := domain.HealthReport{
		Status:    domain.HealthStatusHealthy,
		Timestamp: time.Now().UTC(),
		Services:  make(map[string]string, len(uc.probes)),
	}

	var mu sync.Mutex
	var g errgroup.Group
	for _, probe := range uc.probes {
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(ctx, uc.timeout)
			defer cancel()

			status := domain.HealthStatusHealthy
			if err := probe.Ping(probeCtx); err != nil {
				slog.Warn("health_probe_failed", "service", probe.Name(), "error", err)
				status = "unhealthy"
			}

			mu.Lock()
			defer mu.Unlock()
			report.Services[probe.Name()] = status
			if status != domain.HealthStatusHealthy {
				report.Status = domain.HealthStatusDegraded
			}
			return nil
		})
	}
	_ = g.Wait()
	return report
}
