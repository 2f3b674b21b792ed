package detect_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/quakesim/internal/camera"
	"github.com/san-kum/quakesim/internal/detect"
	"github.com/san-kum/quakesim/internal/log"
	"github.com/san-kum/quakesim/internal/scene"
	"github.com/san-kum/quakesim/internal/vision"
)

const interval = 20 * time.Millisecond

type fakeSink struct {
	magnitude float64

	mu        sync.Mutex
	published [][]scene.Detection
	err       error
}

func (s *fakeSink) Magnitude() float64 { return s.magnitude }

func (s *fakeSink) PublishDetections(_ context.Context, ds []scene.Detection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, ds)
	return s.err
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.published)
}

func (s *fakeSink) last() []scene.Detection {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.published) == 0 {
		return nil
	}
	return s.published[len(s.published)-1]
}

var frame = camera.Static{Frame: camera.Frame{Data: []byte{0xff, 0xd8}, MIME: "image/jpeg"}}

var _ = Describe("Loop", func() {
	var (
		sink   *fakeSink
		ctx    context.Context
		cancel context.CancelFunc
	)

	BeforeEach(func() {
		sink = &fakeSink{magnitude: 6}
		ctx, cancel = context.WithCancel(context.Background())
		DeferCleanup(cancel)
	})

	newLoop := func(a vision.Analyzer) *detect.Loop {
		return detect.New(frame, a, sink, detect.WithInterval(interval), detect.WithLogger(log.Discard()))
	}

	It("publishes the analyzer's detections and returns to idle", func() {
		var gotMagnitude atomic.Value
		l := newLoop(&vision.Mock{AnalyzeFunc: func(_ context.Context, f camera.Frame, m float64) ([]scene.Detection, error) {
			gotMagnitude.Store(m)
			return []scene.Detection{scene.NewDetection("lamp", 1, -2)}, nil
		}})

		Expect(l.Tick(ctx)).To(BeTrue())
		l.Wait()

		Expect(l.Phase()).To(Equal(detect.Idle))
		Expect(gotMagnitude.Load()).To(Equal(6.0))
		Expect(sink.last()).To(HaveLen(1))
		Expect(l.Detections()).To(HaveLen(1))

		st := l.Status()
		Expect(st.LastOutcome).To(Equal(detect.OutcomeOK))
		Expect(st.Cycles).To(BeEquivalentTo(1))
		Expect(st.Detections).To(Equal(1))
	})

	It("never has more than one analysis in flight when the analyzer is slow", func() {
		var inFlight, maxInFlight atomic.Int32
		l := newLoop(&vision.Mock{AnalyzeFunc: func(context.Context, camera.Frame, float64) ([]scene.Detection, error) {
			n := inFlight.Add(1)
			for {
				m := maxInFlight.Load()
				if n <= m || maxInFlight.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(3 * interval)
			inFlight.Add(-1)
			return []scene.Detection{}, nil
		}})

		runCtx, stop := context.WithTimeout(ctx, 20*interval)
		defer stop()
		Expect(l.Run(runCtx)).To(Succeed())
		l.Wait()

		Expect(maxInFlight.Load()).To(BeEquivalentTo(1))
		st := l.Status()
		Expect(st.Skips).To(BeNumerically(">", 0))
		Expect(st.Cycles).To(BeNumerically(">=", 2))
		Expect(st.Phase).To(Equal(detect.Idle))
	})

	It("skips a tick while a cycle is running and keeps the last outcome", func() {
		var calls atomic.Int32
		release := make(chan struct{})
		l := newLoop(&vision.Mock{AnalyzeFunc: func(context.Context, camera.Frame, float64) ([]scene.Detection, error) {
			if calls.Add(1) == 1 {
				return nil, errors.New("service unavailable")
			}
			<-release
			return nil, nil
		}})

		l.Tick(ctx)
		l.Wait()
		Expect(l.Status().LastOutcome).To(Equal(detect.OutcomeFailed))

		Expect(l.Tick(ctx)).To(BeTrue())
		Eventually(l.Phase).Should(Equal(detect.Awaiting))
		Expect(l.Tick(ctx)).To(BeFalse())

		st := l.Status()
		Expect(st.Skips).To(BeEquivalentTo(1))
		Expect(st.LastOutcome).To(Equal(detect.OutcomeFailed))

		close(release)
		l.Wait()
		Expect(l.Phase()).To(Equal(detect.Idle))
		Expect(l.Status().LastOutcome).To(Equal(detect.OutcomeOK))
	})

	It("returns to idle and counts the failure when analysis fails", func() {
		var calls atomic.Int32
		l := newLoop(&vision.Mock{AnalyzeFunc: func(context.Context, camera.Frame, float64) ([]scene.Detection, error) {
			if calls.Add(1) == 1 {
				return nil, errors.New("service unavailable")
			}
			return []scene.Detection{scene.NewDetection("tv", 0, -9)}, nil
		}})

		l.Tick(ctx)
		l.Wait()
		st := l.Status()
		Expect(st.Phase).To(Equal(detect.Idle))
		Expect(st.LastOutcome).To(Equal(detect.OutcomeFailed))
		Expect(st.LastError).To(MatchError(ContainSubstring("service unavailable")))
		Expect(st.Failures).To(BeEquivalentTo(1))
		Expect(sink.count()).To(BeZero())

		l.Tick(ctx)
		l.Wait()
		Expect(l.Status().LastOutcome).To(Equal(detect.OutcomeOK))
		Expect(l.Status().LastError).To(BeNil())
		Expect(sink.last()).To(HaveLen(1))
	})

	It("treats capture errors as failed cycles", func() {
		l := detect.New(failingSource{}, &vision.Mock{}, sink, detect.WithLogger(log.Discard()))
		l.Tick(ctx)
		l.Wait()
		Expect(l.Status().LastOutcome).To(Equal(detect.OutcomeFailed))
		Expect(l.Phase()).To(Equal(detect.Idle))
	})

	It("publishes an empty list for a malformed answer", func() {
		sink.published = nil
		l := newLoop(&vision.Mock{AnalyzeFunc: func(context.Context, camera.Frame, float64) ([]scene.Detection, error) {
			return scene.ParseDetections("not json at all"), nil
		}})
		l.Tick(ctx)
		l.Wait()

		Expect(l.Status().LastOutcome).To(Equal(detect.OutcomeOK))
		Expect(sink.count()).To(Equal(1))
		Expect(sink.last()).NotTo(BeNil())
		Expect(sink.last()).To(BeEmpty())
	})

	It("records a publish failure but keeps the local result", func() {
		sink.err = errors.New("store offline")
		l := newLoop(&vision.Mock{AnalyzeFunc: func(context.Context, camera.Frame, float64) ([]scene.Detection, error) {
			return []scene.Detection{scene.NewDetection("plant", 0, 0)}, nil
		}})
		l.Tick(ctx)
		l.Wait()

		Expect(l.Status().LastOutcome).To(Equal(detect.OutcomeFailed))
		Expect(l.Detections()).To(HaveLen(1))
	})

	It("lets an in-flight request finish after stop and discards its result", func() {
		started := make(chan struct{})
		release := make(chan struct{})
		var sawCancel atomic.Bool
		l := newLoop(&vision.Mock{AnalyzeFunc: func(reqCtx context.Context, _ camera.Frame, _ float64) ([]scene.Detection, error) {
			close(started)
			<-release
			sawCancel.Store(reqCtx.Err() != nil)
			return []scene.Detection{scene.NewDetection("chair", 0, 0)}, nil
		}})

		done := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			defer close(done)
			Expect(l.Run(ctx)).To(Succeed())
		}()

		Eventually(started).Should(BeClosed())
		cancel()
		Eventually(done).Should(BeClosed())

		close(release)
		l.Wait()

		Expect(sawCancel.Load()).To(BeFalse())
		Expect(sink.count()).To(BeZero())
		Expect(l.Detections()).To(BeEmpty())
		Expect(l.Status().Discarded).To(BeEquivalentTo(1))
		Expect(l.Phase()).To(Equal(detect.Idle))
	})
})

type failingSource struct{}

func (failingSource) Capture(context.Context) (camera.Frame, error) {
	return camera.Frame{}, errors.New("camera unplugged")
}
