package pool_test

import (
	"context"
	"errors"
	"time"

	. "github.com/bsm/ginkgo/v2"
	. "github.com/bsm/gomega"
	"github.com/google/uuid"

	"gosuda.org/shmsync/pool"
)

var _ = Describe("Pool", func() {
	var factory *countingFactory
	var p *pool.Pool[int]

	BeforeEach(func() {
		factory = &countingFactory{}

		var err error
		p, err = pool.New(pool.Options[int]{
			Factory: factory.make,
			Close:   factory.close,
			Min:     1,
			Norm:    2,
			Max:     3,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = p.Close()
	})

	It("creates nothing before the first acquire", func() {
		Expect(p.Len()).To(Equal(0))
		Expect(p.IdleLen()).To(Equal(0))
	})

	It("grows lazily up to norm on first exhaustion", func() {
		res := mustAcquire(p)
		Expect(p.Len()).To(Equal(2))
		Expect(p.IdleLen()).To(Equal(1))

		Expect(p.Release(res)).NotTo(HaveOccurred())
		Expect(p.IdleLen()).To(Equal(2))
	})

	It("restores the idle floor before serving", func() {
		floored, err := pool.New(pool.Options[int]{
			Factory: factory.make,
			Close:   factory.close,
			Min:     2,
			Norm:    3,
			Max:     4,
		})
		Expect(err).NotTo(HaveOccurred())
		defer floored.Close()

		a := mustAcquire(floored)
		Expect(floored.Len()).To(Equal(3))
		Expect(floored.IdleLen()).To(Equal(2))

		b := mustAcquire(floored)
		Expect(floored.Len()).To(Equal(3))
		Expect(floored.IdleLen()).To(Equal(1))

		// One idle instance is below the floor of two: the third acquire
		// must grow before handing an instance out.
		c := mustAcquire(floored)
		Expect(floored.Len()).To(Equal(4))
		Expect(floored.IdleLen()).To(Equal(1))

		Expect(floored.Release(a)).NotTo(HaveOccurred())
		Expect(floored.Release(b)).NotTo(HaveOccurred())
		Expect(floored.Release(c)).NotTo(HaveOccurred())
	})

	It("grows on exhaustion with a zero idle floor", func() {
		eager, err := pool.New(pool.Options[int]{
			Factory: factory.make,
			Close:   factory.close,
			Min:     0,
			Norm:    1,
			Max:     2,
		})
		Expect(err).NotTo(HaveOccurred())
		defer eager.Close()

		a := mustAcquire(eager)
		Expect(eager.Len()).To(Equal(1))
		b := mustAcquire(eager)
		Expect(eager.Len()).To(Equal(2))

		Expect(eager.Release(a)).NotTo(HaveOccurred())
		Expect(eager.Release(b)).NotTo(HaveOccurred())
	})

	It("reuses released resources instead of growing", func() {
		res := mustAcquire(p)
		id := res.ID
		Expect(p.Release(res)).NotTo(HaveOccurred())

		res = mustAcquire(p)
		Expect(res.ID).To(Equal(id))
		Expect(p.Len()).To(Equal(2))
	})

	It("caps allocation at max and queues the next acquirer", func() {
		a := mustAcquire(p)
		b := mustAcquire(p)
		c := mustAcquire(p)
		Expect(p.Len()).To(Equal(3))

		done := make(chan *pool.Resource[int], 1)
		go func() {
			defer GinkgoRecover()
			done <- mustAcquire(p)
		}()

		// The fourth acquire must queue rather than create a fourth
		// instance or fail.
		Consistently(done, 50*time.Millisecond).ShouldNot(Receive())
		Expect(p.Len()).To(Equal(3))

		Expect(p.Release(a)).NotTo(HaveOccurred())
		var got *pool.Resource[int]
		Eventually(done).Should(Receive(&got))
		Expect(got.ID).To(Equal(a.ID))
		Expect(p.Len()).To(Equal(3))

		Expect(p.Release(b)).NotTo(HaveOccurred())
		Expect(p.Release(c)).NotTo(HaveOccurred())
		Expect(p.Release(got)).NotTo(HaveOccurred())
	})

	It("delivers queued acquirers in FIFO order", func() {
		a := mustAcquire(p)
		b := mustAcquire(p)
		c := mustAcquire(p)

		first := make(chan uuid.UUID, 1)
		go func() {
			defer GinkgoRecover()
			first <- mustAcquire(p).ID
		}()
		Eventually(func() uint32 { return p.Stats().Waits }).Should(Equal(uint32(1)))

		second := make(chan uuid.UUID, 1)
		go func() {
			defer GinkgoRecover()
			second <- mustAcquire(p).ID
		}()
		Eventually(func() uint32 { return p.Stats().Waits }).Should(Equal(uint32(2)))

		// The earlier-queued acquirer receives the earlier release.
		Expect(p.Release(a)).NotTo(HaveOccurred())
		Expect(p.Release(b)).NotTo(HaveOccurred())
		Eventually(first).Should(Receive(Equal(a.ID)))
		Eventually(second).Should(Receive(Equal(b.ID)))

		Expect(p.Release(c)).NotTo(HaveOccurred())
	})

	It("returns factory errors to the acquirer without corrupting bookkeeping", func() {
		boom := errors.New("factory down")
		broken := true
		failing, err := pool.New(pool.Options[int]{
			Factory: func() (int, error) {
				if broken {
					return 0, boom
				}
				return 1, nil
			},
			Min:  1,
			Norm: 2,
			Max:  3,
		})
		Expect(err).NotTo(HaveOccurred())
		defer failing.Close()

		_, err = failing.Acquire(context.Background())
		Expect(err).To(MatchError(boom))
		Expect(failing.Len()).To(Equal(0))

		// Once the factory recovers, growth proceeds as usual.
		broken = false
		res, err := failing.Acquire(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(failing.Len()).To(Equal(2))
		Expect(failing.Release(res)).NotTo(HaveOccurred())
	})

	It("cancels a queued acquire", func() {
		a := mustAcquire(p)
		b := mustAcquire(p)
		c := mustAcquire(p)

		ctx, cancel := context.WithCancel(context.Background())
		errs := make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			_, err := p.Acquire(ctx)
			errs <- err
		}()
		Eventually(func() uint32 { return p.Stats().Waits }).Should(Equal(uint32(1)))

		cancel()
		Eventually(errs).Should(Receive(MatchError(context.Canceled)))

		// With the waiter gone, a release lands on the idle list.
		Expect(p.Release(a)).NotTo(HaveOccurred())
		Expect(p.IdleLen()).To(Equal(1))

		Expect(p.Release(b)).NotTo(HaveOccurred())
		Expect(p.Release(c)).NotTo(HaveOccurred())
	})

	It("tracks stats", func() {
		res := mustAcquire(p)
		Expect(p.Release(res)).NotTo(HaveOccurred())
		res = mustAcquire(p)
		Expect(p.Release(res)).NotTo(HaveOccurred())

		stats := p.Stats()
		Expect(stats.Requests).To(Equal(uint32(2)))
		Expect(stats.Hits).To(Equal(uint32(1)))
		Expect(stats.Grown).To(Equal(uint32(2)))
		Expect(stats.Allocated).To(Equal(uint32(2)))
		Expect(stats.Idle).To(Equal(uint32(2)))
	})

	It("supports non-blocking acquisition", func() {
		a, err := p.TryAcquire()
		Expect(err).NotTo(HaveOccurred())
		Expect(a).NotTo(BeNil())
		b, err := p.TryAcquire()
		Expect(err).NotTo(HaveOccurred())
		c, err := p.TryAcquire()
		Expect(err).NotTo(HaveOccurred())

		// Exhausted: no queueing, no error, just nothing.
		res, err := p.TryAcquire()
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(BeNil())

		Expect(p.Release(a)).NotTo(HaveOccurred())
		Expect(p.Release(b)).NotTo(HaveOccurred())
		Expect(p.Release(c)).NotTo(HaveOccurred())
	})

	It("close fails queued acquirers and destroys idle resources", func() {
		a := mustAcquire(p)
		b := mustAcquire(p)
		c := mustAcquire(p)

		errs := make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			_, err := p.Acquire(context.Background())
			errs <- err
		}()
		Eventually(func() uint32 { return p.Stats().Waits }).Should(Equal(uint32(1)))

		Expect(p.Release(a)).NotTo(HaveOccurred())
		Eventually(errs).Should(Receive(BeNil()))

		errs2 := make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			_, err := p.Acquire(context.Background())
			errs2 <- err
		}()
		Eventually(func() uint32 { return p.Stats().Waits }).Should(Equal(uint32(2)))

		Expect(p.Close()).NotTo(HaveOccurred())
		Eventually(errs2).Should(Receive(MatchError(pool.ErrClosed)))

		// Held resources are destroyed as they come back.
		Expect(p.Release(b)).NotTo(HaveOccurred())
		Expect(p.Release(c)).NotTo(HaveOccurred())
		Expect(int(factory.destroyed.Load())).To(Equal(2))
	})

	It("rejects acquire after close", func() {
		Expect(p.Close()).NotTo(HaveOccurred())

		_, err := p.Acquire(context.Background())
		Expect(err).To(MatchError(pool.ErrClosed))
		_, err = p.TryAcquire()
		Expect(err).To(MatchError(pool.ErrClosed))
		Expect(p.Close()).To(MatchError(pool.ErrClosed))
	})

	It("rejects releasing nil", func() {
		Expect(p.Release(nil)).To(MatchError(pool.ErrNilResource))
	})

	It("validates options", func() {
		_, err := pool.New(pool.Options[int]{Min: 1, Norm: 2, Max: 3})
		Expect(err).To(MatchError(pool.ErrBadOptions))

		_, err = pool.New(pool.Options[int]{Factory: factory.make, Min: 2, Norm: 1, Max: 3})
		Expect(err).To(MatchError(pool.ErrBadOptions))

		_, err = pool.New(pool.Options[int]{Factory: factory.make, Min: 0, Norm: 4, Max: 3})
		Expect(err).To(MatchError(pool.ErrBadOptions))

		// A zero growth target could never make progress.
		_, err = pool.New(pool.Options[int]{Factory: factory.make, Min: 0, Norm: 0, Max: 3})
		Expect(err).To(MatchError(pool.ErrBadOptions))

		_, err = pool.New(pool.Options[int]{Factory: factory.make})
		Expect(err).To(MatchError(pool.ErrBadOptions))
	})
})
