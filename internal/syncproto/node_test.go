package syncproto_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/quakesim/internal/log"
	"github.com/san-kum/quakesim/internal/scene"
	"github.com/san-kum/quakesim/internal/session"
	"github.com/san-kum/quakesim/internal/syncproto"
)

const interval = 20 * time.Millisecond

// flakyClient fails the first n fetches and counts pushes.
type flakyClient struct {
	session.Client
	failFetches atomic.Int32
	failPushes  atomic.Bool
}

var errOffline = errors.New("offline")

func (f *flakyClient) Fetch(ctx context.Context) (session.State, error) {
	if f.failFetches.Add(-1) >= 0 {
		return session.State{}, errOffline
	}
	return f.Client.Fetch(ctx)
}

func (f *flakyClient) PushMagnitude(ctx context.Context, m float64) error {
	if f.failPushes.Load() {
		return errOffline
	}
	return f.Client.PushMagnitude(ctx, m)
}

func ids(ds []scene.Detection) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.ID
	}
	return out
}

var _ = Describe("ParseRole", func() {
	DescribeTable("accepts role names",
		func(in string, want syncproto.Role) {
			r, err := syncproto.ParseRole(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(r).To(Equal(want))
		},
		Entry("controller", "controller", syncproto.Controller),
		Entry("laptop alias", "Laptop", syncproto.Controller),
		Entry("sensor", "sensor", syncproto.Sensor),
		Entry("phone alias", " phone ", syncproto.Sensor),
	)

	It("rejects anything else", func() {
		_, err := syncproto.ParseRole("tablet")
		Expect(err).To(MatchError(syncproto.ErrUnknownRole))
	})
})

var _ = Describe("Node", func() {
	var (
		store      *session.Store
		controller *syncproto.Node
		sensor     *syncproto.Node
		ctx        context.Context
		cancel     context.CancelFunc
	)

	BeforeEach(func() {
		store = session.NewStore(session.FullRange, 0)
		opts := []syncproto.Option{syncproto.WithInterval(interval), syncproto.WithLogger(log.Discard())}
		controller = syncproto.NewNode(syncproto.Controller, session.NewLocal(store), opts...)
		sensor = syncproto.NewNode(syncproto.Sensor, session.NewLocal(store), opts...)
		ctx, cancel = context.WithCancel(context.Background())
		DeferCleanup(cancel)
	})

	runBoth := func() {
		go controller.Run(ctx)
		go sensor.Run(ctx)
	}

	It("delivers the controller's magnitude to the sensor within a poll interval", func() {
		runBoth()
		Expect(controller.SetMagnitude(ctx, 5.0)).To(Succeed())
		Expect(store.Snapshot().Magnitude).To(Equal(5.0))

		Eventually(sensor.Magnitude).WithTimeout(5 * interval).WithPolling(interval / 4).Should(Equal(5.0))
	})

	It("delivers the sensor's detections to the controller", func() {
		runBoth()
		published := []scene.Detection{
			scene.NewDetection("bookshelf", -3, -5),
			scene.NewDetection("lamp", 2, -1),
			scene.NewDetection("tv", 0, -9),
		}
		Expect(sensor.PublishDetections(ctx, published)).To(Succeed())

		Eventually(func() []string { return ids(controller.Detections()) }).
			WithTimeout(5 * interval).
			Should(Equal(ids(published)))
	})

	It("converges on the last magnitude after a burst of writes", func() {
		runBoth()
		for _, m := range []float64{1, 2.5, 8, 7.2} {
			Expect(controller.SetMagnitude(ctx, m)).To(Succeed())
		}
		Eventually(sensor.Magnitude).WithTimeout(5 * interval).Should(Equal(7.2))
	})

	It("rejects writes to fields the role does not own", func() {
		Expect(sensor.SetMagnitude(ctx, 4)).To(MatchError(syncproto.ErrNotOwner))
		Expect(controller.PublishDetections(ctx, nil)).To(MatchError(syncproto.ErrNotOwner))
		Expect(store.Snapshot().Version).To(BeZero())
	})

	It("seeds the controller magnitude from the store once", func() {
		store.SetMagnitude(6)
		Expect(controller.Poll(ctx)).To(Succeed())
		Expect(controller.Magnitude()).To(Equal(6.0))

		store.SetMagnitude(2)
		Expect(controller.Poll(ctx)).To(Succeed())
		Expect(controller.Magnitude()).To(Equal(6.0))
	})

	It("never lets the sensor adopt detections from the store", func() {
		store.SetDetections([]scene.Detection{scene.NewDetection("chair", 0, 0)})
		Expect(sensor.Poll(ctx)).To(Succeed())
		Expect(sensor.Detections()).To(BeEmpty())
	})

	It("fires change hooks when adopting remote state", func() {
		var seen atomic.Value
		sensor.OnChange(func(s syncproto.Snapshot) { seen.Store(s.Magnitude) })

		store.SetMagnitude(3.3)
		Expect(sensor.Poll(ctx)).To(Succeed())
		Expect(seen.Load()).To(Equal(3.3))
	})

	Context("when the store is unreachable", func() {
		var flaky *flakyClient

		BeforeEach(func() {
			flaky = &flakyClient{Client: session.NewLocal(store)}
			sensor = syncproto.NewNode(syncproto.Sensor, flaky,
				syncproto.WithInterval(interval), syncproto.WithLogger(log.Discard()), syncproto.WithMagnitude(1))
		})

		It("keeps polling and keeps local state until a poll succeeds", func() {
			flaky.failFetches.Store(3)
			store.SetMagnitude(4.5)

			Expect(sensor.Poll(ctx)).To(MatchError(errOffline))
			Expect(sensor.Magnitude()).To(Equal(1.0))
			Expect(sensor.Status().ConsecutiveFailures).To(Equal(1))
			Expect(sensor.Status().Healthy()).To(BeFalse())

			go sensor.Run(ctx)
			Eventually(func() bool { return sensor.Status().Healthy() }).WithTimeout(10 * interval).Should(BeTrue())
			Expect(sensor.Magnitude()).To(Equal(4.5))

			st := sensor.Status()
			Expect(st.Failures).To(BeEquivalentTo(3))
			Expect(st.LastError).To(BeNil())
		})

		It("keeps the controller's local magnitude when a push fails", func() {
			flaky.failPushes.Store(true)
			c := syncproto.NewNode(syncproto.Controller, flaky, syncproto.WithLogger(log.Discard()))

			Expect(c.SetMagnitude(ctx, 8)).To(MatchError(errOffline))
			Expect(c.Magnitude()).To(Equal(8.0))
			Expect(store.Snapshot().Magnitude).To(BeZero())
		})
	})

	It("stops polling when the context is cancelled", func() {
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer GinkgoRecover()
			defer wg.Done()
			Expect(sensor.Run(ctx)).To(Succeed())
		}()

		Eventually(func() uint64 { return sensor.Status().Polls }).Should(BeNumerically(">=", 2))
		cancel()
		wg.Wait()

		polls := sensor.Status().Polls
		Consistently(func() uint64 { return sensor.Status().Polls }).WithTimeout(3 * interval).Should(Equal(polls))
	})

	It("clamps magnitudes to the configured range", func() {
		live := syncproto.NewNode(syncproto.Controller, session.NewLocal(store),
			syncproto.WithRange(session.Range{Min: 4, Max: 9}), syncproto.WithLogger(log.Discard()))
		Expect(live.SetMagnitude(ctx, 2)).To(Succeed())
		Expect(live.Magnitude()).To(Equal(4.0))
	})
})
