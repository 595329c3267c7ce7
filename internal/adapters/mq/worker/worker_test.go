package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/stcurve/internal/adapters/mq/queue"
	"github.com/okian/stcurve/internal/adapters/mq/worker"
	"github.com/okian/stcurve/internal/domain/model"
	"github.com/okian/stcurve/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type mockQueue struct {
	ch chan worker.Job
}

func newMockQueue() *mockQueue { return &mockQueue{ch: make(chan worker.Job, 16)} }

func (m *mockQueue) Dequeue(context.Context) <-chan worker.Job { return m.ch }

func (m *mockQueue) Close() error {
	close(m.ch)
	return nil
}

type mockSaver struct {
	mu      sync.Mutex
	results map[string]model.Result
	err     error
}

func newMockSaver() *mockSaver { return &mockSaver{results: map[string]model.Result{}} }

func (m *mockSaver) Save(_ context.Context, r model.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.results[r.TrajectoryID] = r
	return nil
}

func (m *mockSaver) get(id string) (model.Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.results[id]
	return r, ok
}

func (m *mockSaver) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.results)
}

// waitFor polls cond until it holds or a second passes.
func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func turnJob(id string) worker.Job {
	return worker.Job{
		JobID:        "job-" + id,
		TrajectoryID: id,
		Tolerance:    0,
		Points: []model.Point{
			{ID: "p1", X: 0, Y: 0, T: 0},
			{ID: "p2", X: 1, Y: 1, T: 1},
			{ID: "p3", X: 2, Y: 2, T: 2},
			{ID: "p4", X: 3, Y: 1, T: 3},
			{ID: "p5", X: 4, Y: 0, T: 4},
		},
	}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker with a mock queue and saver", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := newMockQueue()
		s := newMockSaver()
		fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		w := worker.NewInMemoryWorker(q, s, worker.WithName("w0"), worker.WithClock(func() time.Time { return fixed }))
		go w.Run(ctx)

		convey.Convey("When a job is queued", func() {
			q.ch <- turnJob("t1")

			convey.Convey("Then the compressed result should be saved", func() {
				convey.So(waitFor(func() bool { return s.len() == 1 }), convey.ShouldBeTrue)
				r, _ := s.get("t1")
				convey.So(r.JobID, convey.ShouldEqual, "job-t1")
				convey.So(r.Original, convey.ShouldEqual, 5)
				// p2 and p4 lie on straight segments, p3 is the apex
				ids := []string{}
				for _, p := range r.Points {
					ids = append(ids, p.ID)
				}
				convey.So(ids, convey.ShouldResemble, []string{"p1", "p3", "p5"})
				convey.So(r.Rate, convey.ShouldAlmostEqual, 5.0/3.0)
				convey.So(r.Completed.Equal(fixed), convey.ShouldBeTrue)
				convey.So(waitFor(func() bool { return w.Processed() == 1 }), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When saving fails", func() {
			s.mu.Lock()
			s.err = errors.New("disk full")
			s.mu.Unlock()
			q.ch <- turnJob("t2")

			convey.Convey("Then the worker should keep running and count nothing", func() {
				time.Sleep(50 * time.Millisecond)
				convey.So(w.Processed(), convey.ShouldEqual, 0)

				s.mu.Lock()
				s.err = nil
				s.mu.Unlock()
				q.ch <- turnJob("t3")
				convey.So(waitFor(func() bool { return w.Processed() == 1 }), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When shutting down", func() {
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()

			convey.Convey("Then it should stop promptly", func() {
				convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
			})
		})
	})
}

func TestWorkerFailureHandler(t *testing.T) {
	convey.Convey("Given a worker whose saver always fails", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := newMockQueue()
		s := newMockSaver()
		s.err = errors.New("disk full")

		failed := make(chan string, 1)
		w := worker.NewInMemoryWorker(q, s, worker.WithFailureHandler(func(_ context.Context, job worker.Job, err error) {
			if errors.Is(err, s.err) {
				failed <- job.TrajectoryID
			}
		}))
		go w.Run(ctx)

		convey.Convey("When a job is processed", func() {
			q.ch <- turnJob("t1")

			convey.Convey("Then the handler should receive the failed job", func() {
				select {
				case id := <-failed:
					convey.So(id, convey.ShouldEqual, "t1")
				case <-time.After(time.Second):
					convey.So("handler not called", convey.ShouldBeEmpty)
				}
				convey.So(w.Processed(), convey.ShouldEqual, 0)
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool over a real queue", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue(queue.WithCapacity(64))
		s := newMockSaver()
		p := worker.NewPool(4, q, s)
		p.Start(ctx)

		convey.So(p.Size(), convey.ShouldEqual, 4)

		convey.Convey("When many jobs are enqueued and the pool shuts down", func() {
			for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
				convey.So(q.Enqueue(ctx, turnJob(id)), convey.ShouldBeTrue)
			}
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			err := p.Shutdown(sctx)

			convey.Convey("Then every queued job should be drained and saved", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(s.len(), convey.ShouldEqual, 8)
				convey.So(p.Processed(), convey.ShouldEqual, 8)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When stopped", func() {
			convey.Convey("Then Stop should return", func() {
				convey.So(func() { p.Stop() }, convey.ShouldNotPanic)
			})
		})
	})

	convey.Convey("Given a non-positive worker count", t, func() {
		p := worker.NewPool(0, newMockQueue(), newMockSaver())

		convey.Convey("Then it should default to a CPU based size", func() {
			convey.So(p.Size(), convey.ShouldBeGreaterThan, 0)
		})
	})
}
