package app

import (
	"context"
	"slices"
	"testing"

	"github.com/therockpusher/taskweaver/internal/domain"
)

func TestRankedOpenTasksOrdering(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, ServiceConfig{})
	unlock := mustCreateTask(t, svc, "unlock", 10, 10)
	solo := mustCreateTask(t, svc, "solo", 10, 50)
	gated := mustCreateTask(t, svc, "gated", 10, 90)
	small := mustCreateTask(t, svc, "small", 1, 1)
	later := mustCreateTask(t, svc, "later", 1, 1)
	finished := mustCreateTask(t, svc, "finished", 1, 100)
	mustAddDependency(t, svc, gated.ID, unlock.ID)
	if _, err := svc.CompleteTask(ctx, finished.ID); err != nil {
		t.Fatalf("CompleteTask() error = %v", err)
	}

	ranked, err := svc.RankedOpenTasks(ctx)
	if err != nil {
		t.Fatalf("RankedOpenTasks() error = %v", err)
	}
	got := make([]string, 0, len(ranked))
	for _, row := range ranked {
		got = append(got, row.ID)
	}
	want := []string{unlock.ID, solo.ID, small.ID, later.ID, gated.ID}
	if !slices.Equal(got, want) {
		t.Fatalf("RankedOpenTasks() order = %v, want %v", got, want)
	}

	first := ranked[0]
	if first.IntrinsicPriority != 1 || first.EffectivePriority != 9 {
		t.Fatalf("unexpected priorities for unlock %+v", first)
	}
	if !first.Ready() || first.TasksBlockedCount != 1 {
		t.Fatalf("unexpected counts for unlock %+v", first.TaskWithCounts)
	}
	last := ranked[len(ranked)-1]
	if last.Ready() || last.ActiveBlockerCount != 1 {
		t.Fatalf("expected gated task to be blocked, got %+v", last.TaskWithCounts)
	}
}

func TestCompareRankedTieBreaks(t *testing.T) {
	base := domain.RankedTask{EffectivePriority: 2}
	busy := base
	busy.ID = "b"
	busy.TasksBlockedCount = 3
	idle := base
	idle.ID = "a"
	if compareRanked(busy, idle) >= 0 {
		t.Fatal("expected task blocking more work to rank first")
	}
	idle.TasksBlockedCount = 3
	if compareRanked(idle, busy) >= 0 {
		t.Fatal("expected id to break remaining ties")
	}
}

func TestOpenTasksWithCountsEmpty(t *testing.T) {
	svc, _ := newTestService(t, ServiceConfig{})
	rows, err := svc.OpenTasksWithCounts(context.Background())
	if err != nil {
		t.Fatalf("OpenTasksWithCounts() error = %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows, got %d", len(rows))
	}
}
