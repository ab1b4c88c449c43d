package queue_test

import (
	"context"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"reviewstats.app/listener/internal/domain"
	"reviewstats.app/listener/internal/queue"
)

const (
	testStream = "gerrit_events"
	testGroup  = "reviewstats"
)

var _ = Describe("Redis queue", func() {
	var (
		ctx      context.Context
		mr       *miniredis.Miniredis
		client   *redis.Client
		producer queue.Producer
		consumer *queue.RedisConsumer
	)

	BeforeEach(func() {
		ctx = context.Background()
		mr = miniredis.RunT(GinkgoT())
		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		DeferCleanup(client.Close)

		producer = queue.NewRedisProducer(client, testStream, nil)

		var err error
		consumer, err = queue.NewRedisConsumer(ctx, client, queue.ConsumerConfig{
			Stream:   testStream,
			Group:    testGroup,
			Consumer: "worker-test",
			Block:    50 * time.Millisecond,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("tolerates an existing consumer group", func() {
		_, err := queue.NewRedisConsumer(ctx, client, queue.ConsumerConfig{
			Stream:   testStream,
			Group:    testGroup,
			Consumer: "worker-other",
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("delivers an enqueued event with its message metadata", func() {
		traceID := "4bf92f3577b34da6a3ce929d0e0e4736"
		id, err := producer.Enqueue(ctx, queue.EventMessage{
			EventType: "reviewer-added",
			Payload:   []byte(`{"type":"reviewer-added","change":{"number":4711,"project":"p","branch":"main","subject":"s"},"reviewer":{"username":"rev"}}`),
			TraceID:   &traceID,
		})
		Expect(err).NotTo(HaveOccurred())

		d, err := consumer.Next(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Message.ID).To(Equal(id))
		Expect(d.Message.EventType).To(Equal("reviewer-added"))
		Expect(d.Message.TraceID).To(Equal(traceID))

		ev, ok := d.Event.(domain.ReviewerAdded)
		Expect(ok).To(BeTrue())
		Expect(ev.Change.Number).To(Equal(int64(4711)))
		Expect(ev.Reviewer.Username).To(Equal("rev"))
	})

	It("acknowledges messages as soon as they are read", func() {
		_, err := producer.Enqueue(ctx, queue.EventMessage{
			EventType: "change-merged",
			Payload:   []byte(`{"type":"change-merged","change":{"number":1},"submitter":{"username":"sub"}}`),
		})
		Expect(err).NotTo(HaveOccurred())

		_, err = consumer.Next(ctx)
		Expect(err).NotTo(HaveOccurred())

		pending, err := client.XPending(ctx, testStream, testGroup).Result()
		Expect(err).NotTo(HaveOccurred())
		Expect(pending.Count).To(BeZero())
	})

	It("delivers events in stream order", func() {
		for _, n := range []string{"1", "2", "3"} {
			_, err := producer.Enqueue(ctx, queue.EventMessage{
				EventType: "patchset-created",
				Payload:   []byte(`{"type":"patchset-created","change":{"number":` + n + `}}`),
			})
			Expect(err).NotTo(HaveOccurred())
		}

		var got []int64
		for range 3 {
			d, err := consumer.Next(ctx)
			Expect(err).NotTo(HaveOccurred())
			scope, ok := domain.Scope(d.Event)
			Expect(ok).To(BeTrue())
			got = append(got, scope.Change.Number)
		}
		Expect(got).To(Equal([]int64{1, 2, 3}))
	})

	It("reports undecodable payloads as malformed and still acknowledges them", func() {
		_, err := producer.Enqueue(ctx, queue.EventMessage{
			EventType: "ref-updated",
			Payload:   []byte(`{"type":"ref-updated","refUpdate":{"project":"p"}}`),
		})
		Expect(err).NotTo(HaveOccurred())

		d, err := consumer.Next(ctx)
		Expect(err).To(MatchError(queue.ErrMalformedEvent))
		Expect(err).To(MatchError(domain.ErrNoChange))
		Expect(d.Message.EventType).To(Equal("ref-updated"))

		pending, err := client.XPending(ctx, testStream, testGroup).Result()
		Expect(err).NotTo(HaveOccurred())
		Expect(pending.Count).To(BeZero())
	})

	It("passes error-event through as a domain event", func() {
		_, err := producer.Enqueue(ctx, queue.EventMessage{
			EventType: "error-event",
			Payload:   []byte(`{"type":"error-event","reason":"upstream closed"}`),
		})
		Expect(err).NotTo(HaveOccurred())

		d, err := consumer.Next(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Event).To(Equal(domain.ErrorEvent{Reason: "upstream closed"}))
	})

	It("reports a destroyed consumer group as a terminal error-event", func() {
		Expect(client.XGroupDestroy(ctx, testStream, testGroup).Err()).To(Succeed())

		d, err := consumer.Next(ctx)
		Expect(err).NotTo(HaveOccurred())

		ev, ok := d.Event.(domain.ErrorEvent)
		Expect(ok).To(BeTrue())
		Expect(ev.Reason).To(HavePrefix("NOGROUP"))
	})

	It("returns the context error once cancelled", func() {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := consumer.Next(cancelled)
		Expect(err).To(MatchError(context.Canceled))
	})

	It("omits the trace id field when none is given", func() {
		_, err := producer.Enqueue(ctx, queue.EventMessage{EventType: "x", Payload: []byte(`{}`)})
		Expect(err).NotTo(HaveOccurred())

		msgs, err := client.XRange(ctx, testStream, "-", "+").Result()
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(HaveLen(1))
		Expect(msgs[0].Values).NotTo(HaveKey("trace_id"))
		Expect(msgs[0].Values).To(HaveKeyWithValue("payload", "{}"))
	})
})
