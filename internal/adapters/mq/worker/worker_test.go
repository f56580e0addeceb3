package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	queue "github.com/pauloqxm/portal-comite/internal/adapters/mq/queue"
	worker "github.com/pauloqxm/portal-comite/internal/adapters/mq/worker"
	"github.com/pauloqxm/portal-comite/internal/domain/contact"
	logging "github.com/pauloqxm/portal-comite/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	ch chan queue.Message
}

func newMockQueue() *mockQueue {
	return &mockQueue{ch: make(chan queue.Message, 10)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.Message { return mq.ch }

func (mq *mockQueue) Close() error {
	close(mq.ch)
	return nil
}

type mockSink struct {
	name      string
	mu        sync.Mutex
	delivered []string
	failures  int
	attempts  int
}

func (s *mockSink) Name() string { return s.name }

func (s *mockSink) Deliver(_ context.Context, m worker.Message) error { //nolint:gocritic // hugeParam
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.failures > 0 {
		s.failures--
		return errors.New("upstream unavailable")
	}
	s.delivered = append(s.delivered, m.ID)
	return nil
}

func (s *mockSink) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.delivered...)
}

func (s *mockSink) tries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func message(id string) queue.Message {
	return contact.Message{ID: id, ReceivedAt: time.Now(), Form: contact.Form{Name: "Maria"}}
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker with two sinks", t, func() {
		_ = logging.Init()
		q := newMockQueue()
		db := &mockSink{name: "sqlite"}
		chat := &mockSink{name: "telegram"}
		w := worker.NewInMemoryWorker(q, []worker.Sink{db, chat}, worker.WithName("w1"), worker.WithRetryBackoff(0))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a message is queued", func() {
			q.ch <- message("a")

			convey.Convey("Then every sink receives it", func() {
				convey.So(waitFor(func() bool { return len(db.ids()) == 1 && len(chat.ids()) == 1 }), convey.ShouldBeTrue)
				convey.So(db.ids(), convey.ShouldResemble, []string{"a"})
			})
		})

		convey.Convey("When a sink fails transiently", func() {
			chat.failures = 1
			q.ch <- message("b")

			convey.Convey("Then it is retried", func() {
				convey.So(waitFor(func() bool { return len(chat.ids()) == 1 }), convey.ShouldBeTrue)
				convey.So(chat.tries(), convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When shut down", func() {
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()
			convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
			convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
		})
	})
}

func TestWorkerRetriesExhausted(t *testing.T) {
	convey.Convey("Given a sink that keeps failing", t, func() {
		_ = logging.Init()
		q := newMockQueue()
		bad := &mockSink{name: "sheets", failures: 100}
		good := &mockSink{name: "sqlite"}
		w := worker.NewInMemoryWorker(q, []worker.Sink{bad, good}, worker.WithRetries(2), worker.WithRetryBackoff(0))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)
		q.ch <- message("c")

		convey.Convey("Then the other sinks still receive the message", func() {
			convey.So(waitFor(func() bool { return len(good.ids()) == 1 }), convey.ShouldBeTrue)
			convey.So(waitFor(func() bool { return bad.tries() == 3 }), convey.ShouldBeTrue)
			convey.So(bad.ids(), convey.ShouldBeEmpty)
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a pool over a real queue", t, func() {
		_ = logging.Init()
		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		sink := &mockSink{name: "sqlite"}
		pool := worker.NewPool(4, q, []worker.Sink{sink}, worker.WithRetryBackoff(0))
		convey.So(pool.Size(), convey.ShouldEqual, 4)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		for i := 0; i < 20; i++ {
			convey.So(q.Enqueue(ctx, message(fmt.Sprintf("m%d", i))), convey.ShouldBeTrue)
		}

		convey.Convey("Then shutdown drains the queue", func() {
			convey.So(waitFor(func() bool { return len(sink.ids()) == 20 }), convey.ShouldBeTrue)
			convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
			convey.So(q.IsClosed(), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given a non-positive worker count", t, func() {
		_ = logging.Init()
		pool := worker.NewPool(0, newMockQueue(), nil)
		convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
	})
}
