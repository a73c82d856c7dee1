package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunLock serializes generation runs across service instances.
type RunLock interface {
	AcquireGenerateLock(owner string) (bool, error)
	ReleaseGenerateLock(owner string) error
}

// Runner fires one generation run per day at the configured local
// hour:minute, through the same code path as the admin trigger.
type Runner struct {
	Service *ScheduleService
	Lock    RunLock
	Hour    int
	Minute  int
}

func NewRunner(svc *ScheduleService, lock RunLock, hour, minute int) *Runner {
	return &Runner{Service: svc, Lock: lock, Hour: hour, Minute: minute}
}

func (r *Runner) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	r.Service.Logger.LogSchedule("RUNNER_STARTED",
		fmt.Sprintf("daily generation scheduled at %02d:%02d", r.Hour, r.Minute))

	var lastRun string
	for {
		select {
		case <-ctx.Done():
			r.Service.Logger.LogSchedule("RUNNER_STOPPED", "daily generation runner shut down")
			return
		case <-ticker.C:
			now := r.Service.Clock.Now().In(r.Service.loc)
			if now.Hour() != r.Hour || now.Minute() != r.Minute {
				continue
			}
			day := now.Format("2006-01-02")
			if day == lastRun {
				continue
			}
			lastRun = day
			r.run()
		}
	}
}

func (r *Runner) run() {
	owner := uuid.NewString()
	ok, err := r.Lock.AcquireGenerateLock(owner)
	if err != nil {
		r.Service.Logger.Error("SCHEDULE", fmt.Sprintf("generate lock error: %v", err))
		return
	}
	if !ok {
		r.Service.Logger.LogSchedule("RUN_SKIPPED", "another instance holds the generate lock")
		return
	}
	defer func() {
		if err := r.Lock.ReleaseGenerateLock(owner); err != nil {
			r.Service.Logger.Error("SCHEDULE", fmt.Sprintf("generate lock release error: %v", err))
		}
	}()

	if _, err := r.Service.GenerateInstances(0); err != nil {
		r.Service.Logger.Error("SCHEDULE", fmt.Sprintf("daily generation failed: %v", err))
	}
}
