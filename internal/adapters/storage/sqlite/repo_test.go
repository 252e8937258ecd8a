package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/therockpusher/taskweaver/internal/app"
	"github.com/therockpusher/taskweaver/internal/domain"
)

// newTestTask builds a valid task for repository tests.
func newTestTask(t *testing.T, id string, durationMin int, value float64, now time.Time) domain.Task {
	t.Helper()
	task, err := domain.NewTask(domain.TaskInput{
		ID:          id,
		Title:       "Task " + id,
		Description: "details",
		DurationMin: durationMin,
		Value:       value,
	}, now)
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}
	return task
}

// openTestRepo opens a file-backed repository cleaned up with the test.
func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "nested", "taskweaver.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	return repo
}

func TestRepository_TaskLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)

	task := newTestTask(t, "t1", 45, 90, now)
	task.Requirement = "ship it"
	if err := repo.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	loaded, err := repo.GetTask(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if loaded.Title != "Task t1" || loaded.Requirement != "ship it" || loaded.DurationMin != 45 || loaded.Value != 90 {
		t.Fatalf("unexpected loaded task %#v", loaded)
	}
	if !loaded.CreatedAt.Equal(now) || loaded.Status != domain.StatusPending {
		t.Fatalf("unexpected loaded metadata %#v", loaded)
	}

	loaded.Status = domain.StatusInProgress
	loaded.UpdatedAt = now.Add(time.Minute)
	if err := repo.UpdateTask(ctx, loaded); err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}
	inProgress, err := repo.ListTasks(ctx, app.TaskFilter{Statuses: []domain.Status{domain.StatusInProgress}})
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(inProgress) != 1 || !inProgress[0].UpdatedAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("unexpected filtered tasks %#v", inProgress)
	}

	if err := repo.DeleteTask(ctx, "t1"); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	if _, err := repo.GetTask(ctx, "t1"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.UpdateTask(ctx, loaded); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
	if err := repo.DeleteTask(ctx, "t1"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on delete, got %v", err)
	}
}

func TestRepository_SchemaRejectsInvalidRows(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)

	bad := newTestTask(t, "t1", 10, 10, now)
	bad.DurationMin = 0
	if err := repo.CreateTask(ctx, bad); err == nil {
		t.Fatal("expected CHECK violation for duration_min")
	}
	bad = newTestTask(t, "t1", 10, 10, now)
	bad.Status = "archived"
	if err := repo.CreateTask(ctx, bad); err == nil {
		t.Fatal("expected CHECK violation for status")
	}

	if err := repo.CreateTask(ctx, newTestTask(t, "t1", 10, 10, now)); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if err := repo.InsertEdge(ctx, domain.Dependency{TaskID: "t1", BlockerID: "t1", CreatedAt: now}); err == nil {
		t.Fatal("expected CHECK violation for self edge")
	}
	if err := repo.InsertEdge(ctx, domain.Dependency{TaskID: "t1", BlockerID: "ghost", CreatedAt: now}); err == nil {
		t.Fatal("expected foreign key violation for unknown blocker")
	}

	version, err := repo.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != schemaVersion {
		t.Fatalf("expected schema version %d, got %d", schemaVersion, version)
	}
}

func TestRepository_EdgesAndCascade(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := repo.CreateTask(ctx, newTestTask(t, id, 10, 10, now.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("CreateTask(%s) error = %v", id, err)
		}
	}
	for _, edge := range [][2]string{{"a", "b"}, {"a", "c"}, {"b", "c"}} {
		if err := repo.InsertEdge(ctx, domain.Dependency{TaskID: edge[0], BlockerID: edge[1], CreatedAt: now}); err != nil {
			t.Fatalf("InsertEdge(%v) error = %v", edge, err)
		}
	}
	err := repo.InsertEdge(ctx, domain.Dependency{TaskID: "a", BlockerID: "b", CreatedAt: now})
	if !errors.Is(err, domain.ErrDuplicateEdge) {
		t.Fatalf("expected ErrDuplicateEdge, got %v", err)
	}

	blockers, err := repo.DirectBlockers(ctx, "a")
	if err != nil {
		t.Fatalf("DirectBlockers() error = %v", err)
	}
	if !slices.Equal(blockers, []string{"b", "c"}) {
		t.Fatalf("unexpected blockers %v", blockers)
	}
	blocked, err := repo.DirectBlocked(ctx, "c")
	if err != nil {
		t.Fatalf("DirectBlocked() error = %v", err)
	}
	if !slices.Equal(blocked, []string{"a", "b"}) {
		t.Fatalf("unexpected blocked %v", blocked)
	}
	has, err := repo.HasEdge(ctx, "b", "c")
	if err != nil || !has {
		t.Fatalf("HasEdge(b, c) = %v, %v", has, err)
	}

	removed, err := repo.DeleteEdge(ctx, "a", "b")
	if err != nil || !removed {
		t.Fatalf("DeleteEdge() = %v, %v", removed, err)
	}
	removed, err = repo.DeleteEdge(ctx, "a", "b")
	if err != nil || removed {
		t.Fatalf("second DeleteEdge() = %v, %v", removed, err)
	}

	if err := repo.DeleteTask(ctx, "c"); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	edges, err := repo.ListEdges(ctx)
	if err != nil {
		t.Fatalf("ListEdges() error = %v", err)
	}
	if len(edges) != 0 {
		t.Fatalf("expected edges to cascade, got %#v", edges)
	}
}

func TestRepository_ListTasksWithCounts(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"t1", "t2", "t3", "t4"} {
		if err := repo.CreateTask(ctx, newTestTask(t, id, 10, 10, now.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("CreateTask(%s) error = %v", id, err)
		}
	}
	for _, edge := range [][2]string{{"t3", "t1"}, {"t3", "t2"}, {"t4", "t3"}} {
		if err := repo.InsertEdge(ctx, domain.Dependency{TaskID: edge[0], BlockerID: edge[1], CreatedAt: now}); err != nil {
			t.Fatalf("InsertEdge(%v) error = %v", edge, err)
		}
	}
	done, err := repo.GetTask(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	done.Status = domain.StatusCompleted
	if err := repo.UpdateTask(ctx, done); err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}

	rows, err := repo.ListTasksWithCounts(ctx, app.TaskFilter{Statuses: []domain.Status{domain.StatusPending, domain.StatusInProgress}})
	if err != nil {
		t.Fatalf("ListTasksWithCounts() error = %v", err)
	}
	got := map[string][2]int{}
	for _, row := range rows {
		got[row.ID] = [2]int{row.ActiveBlockerCount, row.TasksBlockedCount}
	}
	want := map[string][2]int{
		"t2": {0, 1},
		"t3": {1, 1},
		"t4": {1, 0},
	}
	if len(got) != len(want) {
		t.Fatalf("unexpected rows %v", got)
	}
	for id, counts := range want {
		if got[id] != counts {
			t.Fatalf("counts for %s = %v, want %v", id, got[id], counts)
		}
	}
}

func TestRepository_WithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	boom := errors.New("boom")

	err := repo.WithinTx(ctx, func(tx app.GraphTx) error {
		if err := tx.CreateTask(ctx, newTestTask(t, "t1", 10, 10, now)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	tasks, err := repo.ListTasks(ctx, app.TaskFilter{})
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected rollback, got %d tasks", len(tasks))
	}
}

func TestRepository_ReplaceAll(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	if err := repo.CreateTask(ctx, newTestTask(t, "old", 10, 10, now)); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	tasks := []domain.Task{newTestTask(t, "x", 10, 10, now), newTestTask(t, "y", 10, 10, now)}
	edges := []domain.Dependency{{TaskID: "x", BlockerID: "y", CreatedAt: now}}
	if err := repo.ReplaceAll(ctx, tasks, edges); err != nil {
		t.Fatalf("ReplaceAll() error = %v", err)
	}
	if _, err := repo.GetTask(ctx, "old"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected old task to be replaced, got %v", err)
	}
	listed, err := repo.ListEdges(ctx)
	if err != nil {
		t.Fatalf("ListEdges() error = %v", err)
	}
	if len(listed) != 1 || listed[0].TaskID != "x" || listed[0].BlockerID != "y" {
		t.Fatalf("unexpected edges %#v", listed)
	}

	badEdges := []domain.Dependency{{TaskID: "x", BlockerID: "ghost", CreatedAt: now}}
	if err := repo.ReplaceAll(ctx, tasks, badEdges); err == nil {
		t.Fatal("expected ReplaceAll() to fail on dangling edge")
	}
	listed, err = repo.ListEdges(ctx)
	if err != nil {
		t.Fatalf("ListEdges() error = %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("failed replace should roll back, got %#v", listed)
	}
}

func TestService_WithSQLiteRepository(t *testing.T) {
	ctx := context.Background()
	repo, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})

	next := 0
	idGen := func() string {
		next++
		return fmt.Sprintf("t%d", next)
	}
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	svc := app.NewService(repo, idGen, clock, app.ServiceConfig{})

	ids := make([]string, 0, 3)
	for i, value := range []float64{1, 1, 9} {
		task, err := svc.CreateTask(ctx, app.CreateTaskInput{Title: fmt.Sprintf("task %d", i), DurationMin: 1, Value: value})
		if err != nil {
			t.Fatalf("CreateTask() error = %v", err)
		}
		ids = append(ids, task.ID)
	}
	if _, err := svc.AddDependency(ctx, ids[1], ids[0]); err != nil {
		t.Fatalf("AddDependency() error = %v", err)
	}
	if _, err := svc.AddDependency(ctx, ids[2], ids[1]); err != nil {
		t.Fatalf("AddDependency() error = %v", err)
	}

	_, err = svc.AddDependency(ctx, ids[0], ids[2])
	var cycleErr *domain.CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	if want := []string{ids[0], ids[2], ids[1], ids[0]}; !slices.Equal(cycleErr.Path, want) {
		t.Fatalf("cycle path = %v, want %v", cycleErr.Path, want)
	}

	got, err := svc.EffectivePriority(ctx, ids[0])
	if err != nil {
		t.Fatalf("EffectivePriority() error = %v", err)
	}
	if got != 9 {
		t.Fatalf("EffectivePriority() = %v, want 9", got)
	}
	ranked, err := svc.RankedOpenTasks(ctx)
	if err != nil {
		t.Fatalf("RankedOpenTasks() error = %v", err)
	}
	if len(ranked) != 3 || ranked[0].ID != ids[0] || !ranked[0].Ready() {
		t.Fatalf("unexpected ranking %#v", ranked)
	}
}

func TestOpenInMemoryIsolated(t *testing.T) {
	ctx := context.Background()
	first, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	defer first.Close()
	second, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	defer second.Close()

	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	if err := first.CreateTask(ctx, newTestTask(t, "t1", 10, 10, now)); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	tasks, err := second.ListTasks(ctx, app.TaskFilter{})
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected isolated databases, got %d tasks", len(tasks))
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
