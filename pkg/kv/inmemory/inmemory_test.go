package inmemory_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/kv"
	"github.com/papercomputeco/recall/pkg/kv/inmemory"
)

var _ = Describe("Driver", func() {
	var (
		driver *inmemory.Driver
		ctx    context.Context
		now    time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

		var err error
		driver, err = inmemory.NewDriver(0, inmemory.WithClock(func() time.Time { return now }))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		driver.Close()
	})

	It("returns NotFoundError for missing keys", func() {
		_, err := driver.Get(ctx, "missing")
		Expect(kv.IsNotFound(err)).To(BeTrue())
	})

	It("stores several entries at once", func() {
		Expect(driver.Set(ctx, time.Hour,
			kv.Entry{Key: "a", Value: []byte("1")},
			kv.Entry{Key: "b", Value: []byte("2")},
		)).To(Succeed())

		v, err := driver.Get(ctx, "a")
		Expect(err).NotTo(HaveOccurred())
		Expect(string(v)).To(Equal("1"))

		v, err = driver.Get(ctx, "b")
		Expect(err).NotTo(HaveOccurred())
		Expect(string(v)).To(Equal("2"))
	})

	It("does not alias caller buffers", func() {
		buf := []byte("abc")
		Expect(driver.Set(ctx, time.Hour, kv.Entry{Key: "a", Value: buf})).To(Succeed())
		buf[0] = 'z'

		v, err := driver.Get(ctx, "a")
		Expect(err).NotTo(HaveOccurred())
		Expect(string(v)).To(Equal("abc"))
	})

	It("expires keys after their TTL", func() {
		Expect(driver.Set(ctx, time.Hour, kv.Entry{Key: "a", Value: []byte("1")})).To(Succeed())

		now = now.Add(59 * time.Minute)
		_, err := driver.Get(ctx, "a")
		Expect(err).NotTo(HaveOccurred())

		now = now.Add(time.Minute)
		_, err = driver.Get(ctx, "a")
		Expect(kv.IsNotFound(err)).To(BeTrue())
	})

	It("refreshes TTLs with Expire", func() {
		Expect(driver.Set(ctx, time.Hour, kv.Entry{Key: "a", Value: []byte("1")})).To(Succeed())

		now = now.Add(50 * time.Minute)
		Expect(driver.Expire(ctx, time.Hour, "a", "missing")).To(Succeed())

		now = now.Add(50 * time.Minute)
		_, err := driver.Get(ctx, "a")
		Expect(err).NotTo(HaveOccurred())

		_, err = driver.Get(ctx, "missing")
		Expect(kv.IsNotFound(err)).To(BeTrue())
	})

	It("does not revive expired keys", func() {
		Expect(driver.Set(ctx, time.Minute, kv.Entry{Key: "a", Value: []byte("1")})).To(Succeed())
		now = now.Add(2 * time.Minute)
		Expect(driver.Expire(ctx, time.Hour, "a")).To(Succeed())

		_, err := driver.Get(ctx, "a")
		Expect(kv.IsNotFound(err)).To(BeTrue())
	})

	It("deletes keys", func() {
		Expect(driver.Set(ctx, time.Hour, kv.Entry{Key: "a", Value: []byte("1")})).To(Succeed())
		Expect(driver.Delete(ctx, "a", "missing")).To(Succeed())

		_, err := driver.Get(ctx, "a")
		Expect(kv.IsNotFound(err)).To(BeTrue())
	})

	It("evicts least recently used keys beyond its size", func() {
		small, err := inmemory.NewDriver(2)
		Expect(err).NotTo(HaveOccurred())
		defer small.Close()

		for _, k := range []string{"a", "b", "c"} {
			Expect(small.Set(ctx, time.Hour, kv.Entry{Key: k, Value: []byte(k)})).To(Succeed())
		}
		Expect(small.Len()).To(Equal(2))

		_, err = small.Get(ctx, "a")
		Expect(kv.IsNotFound(err)).To(BeTrue())
	})

	It("evicts a key group as a whole", func() {
		small, err := inmemory.NewDriver(2)
		Expect(err).NotTo(HaveOccurred())
		defer small.Close()

		for _, id := range []string{"s1", "s2"} {
			Expect(small.Set(ctx, time.Hour,
				kv.Entry{Key: "recall:session:" + id + ":turns", Value: []byte("t")},
				kv.Entry{Key: "recall:session:" + id + ":summary", Value: []byte("s")},
			)).To(Succeed())
		}
		Expect(small.Len()).To(Equal(4))

		_, err = small.Get(ctx, "recall:session:s1:turns")
		Expect(err).NotTo(HaveOccurred())

		Expect(small.Set(ctx, time.Hour, kv.Entry{Key: "recall:session:s3:turns", Value: []byte("t")})).To(Succeed())
		Expect(small.Len()).To(Equal(3))

		_, err = small.Get(ctx, "recall:session:s2:turns")
		Expect(kv.IsNotFound(err)).To(BeTrue())
		_, err = small.Get(ctx, "recall:session:s2:summary")
		Expect(kv.IsNotFound(err)).To(BeTrue())

		_, err = small.Get(ctx, "recall:session:s1:summary")
		Expect(err).NotTo(HaveOccurred())
	})

	It("removes entries marked for deletion inside Set", func() {
		Expect(driver.Set(ctx, time.Hour,
			kv.Entry{Key: "g:a", Value: []byte("1")},
			kv.Entry{Key: "g:b", Value: []byte("2")},
		)).To(Succeed())
		Expect(driver.Set(ctx, time.Hour,
			kv.Entry{Key: "g:a", Value: []byte("3")},
			kv.Remove("g:b"),
			kv.Remove("g:missing"),
		)).To(Succeed())

		v, err := driver.Get(ctx, "g:a")
		Expect(err).NotTo(HaveOccurred())
		Expect(string(v)).To(Equal("3"))
		_, err = driver.Get(ctx, "g:b")
		Expect(kv.IsNotFound(err)).To(BeTrue())
	})

	It("fails after Close", func() {
		Expect(driver.Close()).To(Succeed())
		_, err := driver.Get(ctx, "a")
		Expect(err).To(MatchError(kv.ErrClosed))
	})
})
