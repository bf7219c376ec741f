package keylock_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/keylock"
)

var _ = Describe("Registry", func() {
	var (
		reg *keylock.Registry
		ctx context.Context
	)

	BeforeEach(func() {
		reg = keylock.New()
		ctx = context.Background()
	})

	It("serializes holders of the same key", func() {
		var (
			active  atomic.Int32
			maxSeen atomic.Int32
			wg      sync.WaitGroup
		)

		for range 20 {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()

				unlock, err := reg.Lock(ctx, "s1")
				Expect(err).NotTo(HaveOccurred())
				defer unlock()

				n := active.Add(1)
				if n > maxSeen.Load() {
					maxSeen.Store(n)
				}
				time.Sleep(time.Millisecond)
				active.Add(-1)
			}()
		}
		wg.Wait()

		Expect(maxSeen.Load()).To(Equal(int32(1)))
	})

	It("does not block different keys", func() {
		unlockA, err := reg.Lock(ctx, "a")
		Expect(err).NotTo(HaveOccurred())
		defer unlockA()

		done := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			unlockB, err := reg.Lock(ctx, "b")
			Expect(err).NotTo(HaveOccurred())
			unlockB()
			close(done)
		}()
		Eventually(done).Should(BeClosed())
	})

	It("gives up when the context ends", func() {
		unlock, err := reg.Lock(ctx, "s1")
		Expect(err).NotTo(HaveOccurred())

		waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		_, err = reg.Lock(waitCtx, "s1")
		Expect(err).To(MatchError(context.DeadlineExceeded))

		unlock()
		Expect(reg.Len()).To(Equal(0))
	})

	It("reaps entries once nobody holds them", func() {
		unlock, err := reg.Lock(ctx, "s1")
		Expect(err).NotTo(HaveOccurred())
		Expect(reg.Len()).To(Equal(1))

		unlock()
		unlock()
		Expect(reg.Len()).To(Equal(0))

		again, err := reg.Lock(ctx, "s1")
		Expect(err).NotTo(HaveOccurred())
		again()
	})

	It("hands the lock to a waiter", func() {
		unlock, err := reg.Lock(ctx, "s1")
		Expect(err).NotTo(HaveOccurred())

		acquired := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			next, err := reg.Lock(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			close(acquired)
			next()
		}()

		Consistently(acquired, 30*time.Millisecond).ShouldNot(BeClosed())
		unlock()
		Eventually(acquired).Should(BeClosed())
		Eventually(reg.Len).Should(Equal(0))
	})
})
