package preload

import (
	"container/heap"
	"time"
)

// Task is one queued preload.
type Task struct {
	ID        string
	ModelID   string
	Path      string
	Priority  int64
	CreatedAt time.Time

	seq   uint64
	index int
}

// taskQueue is a container/heap of tasks. With fifo set, tasks leave in
// insertion order; otherwise by descending priority, ties in insertion order.
type taskQueue struct {
	tasks []*Task
	fifo  bool
}

func (q *taskQueue) Len() int { return len(q.tasks) }

func (q *taskQueue) Less(i, j int) bool {
	a, b := q.tasks[i], q.tasks[j]
	if !q.fifo && a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.seq < b.seq
}

func (q *taskQueue) Swap(i, j int) {
	q.tasks[i], q.tasks[j] = q.tasks[j], q.tasks[i]
	q.tasks[i].index = i
	q.tasks[j].index = j
}

func (q *taskQueue) Push(x any) {
	t := x.(*Task)
	t.index = len(q.tasks)
	q.tasks = append(q.tasks, t)
}

func (q *taskQueue) Pop() any {
	old := q.tasks
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	q.tasks = old[:n-1]
	return t
}

func (q *taskQueue) find(modelID string) *Task {
	for _, t := range q.tasks {
		if t.ModelID == modelID {
			return t
		}
	}
	return nil
}

func (q *taskQueue) remove(t *Task) { heap.Remove(q, t.index) }

// ordered returns the tasks in the order they would be popped.
func (q *taskQueue) ordered() []Task {
	cp := &taskQueue{tasks: make([]*Task, len(q.tasks)), fifo: q.fifo}
	for i, t := range q.tasks {
		c := *t
		c.index = i
		cp.tasks[i] = &c
	}
	out := make([]Task, 0, len(cp.tasks))
	for cp.Len() > 0 {
		out = append(out, *heap.Pop(cp).(*Task))
	}
	return out
}
