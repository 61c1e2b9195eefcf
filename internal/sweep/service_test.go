package sweep

import (
	"context"
	"errors"
	"testing"

	"github.com/monkelabs/monke-backend/pkg/logger"
)

type fakeLock struct {
	acquired bool
	denied   bool
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.denied || f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error { f.acquired = false; return nil }

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "sweep-test"})
	registry := NewRegistry(&testJob{name: "success"}, &testJob{name: "fail", err: errors.New("boom")})
	service, err := NewService(ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     &fakeLock{},
		Interval: 0,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	for _, job := range registry.Jobs() {
		typed, ok := job.(*testJob)
		if !ok {
			t.Fatalf("job type mismatch")
		}
		if typed.runs != 1 {
			t.Fatalf("expected job %s to run once, ran %d", typed.name, typed.runs)
		}
	}
}

func TestServiceRunCycleSkipsWhenLockHeld(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "sweep-test"})
	job := &testJob{name: "noop"}
	service, err := NewService(ServiceParams{
		Logger:   logg,
		Registry: NewRegistry(job),
		Lock:     &fakeLock{denied: true},
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("expected job to be skipped, ran %d", job.runs)
	}
}

func TestRegistryStoresJobs(t *testing.T) {
	registry := NewRegistry()
	jobA := &testJob{name: "a"}
	jobB := &testJob{name: "b"}
	registry.Register(jobA)
	registry.Register(jobB)
	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0] != Job(jobA) || jobs[1] != Job(jobB) {
		t.Fatalf("jobs returned out of order")
	}
	// ensure caller cannot mutate internal slice
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
}
