package app

import (
	"context"
	"slices"
	"strings"

	"github.com/therockpusher/taskweaver/internal/domain"
)

// EffectivePriority returns max(intrinsic priority, effective priority of every
// task taskID directly blocks), propagated over the transitive blocked closure.
func (s *Service) EffectivePriority(ctx context.Context, taskID string) (float64, error) {
	taskID = strings.TrimSpace(taskID)
	var out float64
	err := s.repo.ReadTx(ctx, func(r GraphReader) error {
		p := newPropagator(r, s.activeOnly)
		v, err := p.effective(ctx, taskID)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		return 0, err
	}
	return out, nil
}

// EffectivePriorities computes the effective priority of every task in one
// reverse topological pass.
func (s *Service) EffectivePriorities(ctx context.Context) (map[string]float64, error) {
	var out map[string]float64
	err := s.repo.ReadTx(ctx, func(r GraphReader) error {
		var err error
		out, err = effectivePriorities(ctx, r, s.activeOnly)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// VerifyGraph reports GraphInconsistent when the stored edges contain a cycle.
func (s *Service) VerifyGraph(ctx context.Context) error {
	_, err := s.EffectivePriorities(ctx)
	return err
}

// propagator evaluates effective priority lazily from one root, memoizing
// results so overlapping closures are computed once.
type propagator struct {
	reader     GraphReader
	activeOnly bool
	tasks      map[string]domain.Task
	memo       map[string]float64
	onStack    map[string]bool
}

func newPropagator(r GraphReader, activeOnly bool) *propagator {
	return &propagator{
		reader:     r,
		activeOnly: activeOnly,
		tasks:      map[string]domain.Task{},
		memo:       map[string]float64{},
		onStack:    map[string]bool{},
	}
}

// propagationFrame is one explicit-stack entry of the depth-first walk.
type propagationFrame struct {
	id       string
	children []string
	next     int
	best     float64
}

func (p *propagator) effective(ctx context.Context, rootID string) (float64, error) {
	if v, ok := p.memo[rootID]; ok {
		return v, nil
	}

	stack := []*propagationFrame{}
	push := func(id string) error {
		task, err := p.task(ctx, id)
		if err != nil {
			return err
		}
		children, err := p.children(ctx, id)
		if err != nil {
			return err
		}
		p.onStack[id] = true
		stack = append(stack, &propagationFrame{id: id, children: children, best: task.IntrinsicPriority()})
		return nil
	}
	if err := push(rootID); err != nil {
		return 0, err
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next < len(top.children) {
			child := top.children[top.next]
			top.next++
			if v, ok := p.memo[child]; ok {
				top.best = max(top.best, v)
				continue
			}
			if p.onStack[child] {
				return 0, &domain.GraphInconsistentError{TaskIDs: stackCycle(stack, child)}
			}
			if err := push(child); err != nil {
				return 0, err
			}
			continue
		}

		p.memo[top.id] = top.best
		delete(p.onStack, top.id)
		stack = stack[:len(stack)-1]
		if len(stack) > 0 {
			parent := stack[len(stack)-1]
			parent.best = max(parent.best, top.best)
		}
	}
	return p.memo[rootID], nil
}

func (p *propagator) task(ctx context.Context, id string) (domain.Task, error) {
	if task, ok := p.tasks[id]; ok {
		return task, nil
	}
	task, err := lookupTask(ctx, p.reader, id)
	if err != nil {
		return domain.Task{}, err
	}
	p.tasks[id] = task
	return task, nil
}

// children lists the tasks id blocks that contribute to its priority.
func (p *propagator) children(ctx context.Context, id string) ([]string, error) {
	blocked, err := p.reader.DirectBlocked(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.activeOnly {
		return blocked, nil
	}
	out := make([]string, 0, len(blocked))
	for _, childID := range blocked {
		child, err := p.task(ctx, childID)
		if err != nil {
			return nil, err
		}
		if child.Status.IsActive() {
			out = append(out, childID)
		}
	}
	return out, nil
}

// stackCycle returns the frames from the revisited node to the top of the stack.
func stackCycle(stack []*propagationFrame, revisited string) []string {
	out := []string{}
	found := false
	for _, frame := range stack {
		if frame.id == revisited {
			found = true
		}
		if found {
			out = append(out, frame.id)
		}
	}
	return append(out, revisited)
}

// effectivePriorities runs Kahn's algorithm over the blocks relation starting
// at tasks that block nothing, so every task is settled after all tasks it blocks.
// Tasks left unsettled sit on or upstream of a cycle.
func effectivePriorities(ctx context.Context, r GraphReader, activeOnly bool) (map[string]float64, error) {
	tasks, err := r.ListTasks(ctx, TaskFilter{})
	if err != nil {
		return nil, err
	}
	edges, err := r.ListEdges(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.Task, len(tasks))
	for _, task := range tasks {
		byID[task.ID] = task
	}
	blocks := map[string][]string{}
	blockedBy := map[string][]string{}
	pending := make(map[string]int, len(tasks))
	for _, edge := range edges {
		if _, ok := byID[edge.TaskID]; !ok {
			continue
		}
		if _, ok := byID[edge.BlockerID]; !ok {
			continue
		}
		blocks[edge.BlockerID] = append(blocks[edge.BlockerID], edge.TaskID)
		blockedBy[edge.TaskID] = append(blockedBy[edge.TaskID], edge.BlockerID)
		pending[edge.BlockerID]++
	}

	queue := make([]string, 0, len(tasks))
	for _, task := range tasks {
		if pending[task.ID] == 0 {
			queue = append(queue, task.ID)
		}
	}

	out := make(map[string]float64, len(tasks))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		best := byID[id].IntrinsicPriority()
		for _, childID := range blocks[id] {
			if activeOnly && !byID[childID].Status.IsActive() {
				continue
			}
			best = max(best, out[childID])
		}
		out[id] = best

		for _, blockerID := range blockedBy[id] {
			pending[blockerID]--
			if pending[blockerID] == 0 {
				queue = append(queue, blockerID)
			}
		}
	}

	if len(out) < len(tasks) {
		return nil, &domain.GraphInconsistentError{TaskIDs: cycleWitness(blocks, out)}
	}
	return out, nil
}

// cycleWitness extracts one cycle among unsettled tasks with a colored DFS.
func cycleWitness(blocks map[string][]string, settled map[string]float64) []string {
	const (
		white = iota
		gray
		black
	)
	nodes := make([]string, 0, len(blocks))
	for id := range blocks {
		if _, ok := settled[id]; !ok {
			nodes = append(nodes, id)
		}
	}
	slices.Sort(nodes)

	color := map[string]int{}
	type frame struct {
		id   string
		next int
	}
	for _, start := range nodes {
		if color[start] != white {
			continue
		}
		stack := []frame{{id: start}}
		color[start] = gray
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			children := blocks[top.id]
			if top.next >= len(children) {
				color[top.id] = black
				stack = stack[:len(stack)-1]
				continue
			}
			child := children[top.next]
			top.next++
			if _, ok := settled[child]; ok {
				continue
			}
			switch color[child] {
			case white:
				color[child] = gray
				stack = append(stack, frame{id: child})
			case gray:
				out := []string{}
				found := false
				for _, f := range stack {
					if f.id == child {
						found = true
					}
					if found {
						out = append(out, f.id)
					}
				}
				return append(out, child)
			}
		}
	}
	return nodes
}
