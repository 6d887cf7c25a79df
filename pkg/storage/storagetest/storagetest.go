// Package storagetest holds the behaviour every storage.Driver must show,
// shared by the driver test suites.
package storagetest

import (
	"context"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/relay/pkg/storage"
)

// DriverBehaviour registers specs against the driver returned by newDriver.
// newDriver is called once per spec and must return an empty store.
func DriverBehaviour(newDriver func() storage.Driver) {
	var (
		driver storage.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver()
	})

	AfterEach(func() {
		if driver != nil {
			driver.Close()
		}
	})

	It("pings", func() {
		Expect(driver.Ping(ctx)).To(Succeed())
	})

	It("returns ErrNotFound for absent keys", func() {
		_, err := driver.Get(ctx, "551100000@s.whatsapp.net")
		Expect(err).To(MatchError(storage.ErrNotFound))
	})

	It("stores and retrieves a value", func() {
		Expect(driver.Set(ctx, "k", `[{"role":"user","content":"hello"}]`)).To(Succeed())

		v, err := driver.Get(ctx, "k")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(`[{"role":"user","content":"hello"}]`))
	})

	It("overwrites previous values", func() {
		Expect(driver.Set(ctx, "k", "one")).To(Succeed())
		Expect(driver.Set(ctx, "k", "two")).To(Succeed())

		v, err := driver.Get(ctx, "k")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal("two"))
	})

	It("keeps keys independent", func() {
		Expect(driver.Set(ctx, "a@s.whatsapp.net", "A")).To(Succeed())
		Expect(driver.Set(ctx, "b@g.us", "B")).To(Succeed())

		a, err := driver.Get(ctx, "a@s.whatsapp.net")
		Expect(err).NotTo(HaveOccurred())
		b, err := driver.Get(ctx, "b@g.us")
		Expect(err).NotTo(HaveOccurred())
		Expect(a).To(Equal("A"))
		Expect(b).To(Equal("B"))
	})

	It("round-trips unicode and empty values", func() {
		Expect(driver.Set(ctx, "k", "olá, tudo bem? 👋\n")).To(Succeed())
		v, err := driver.Get(ctx, "k")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal("olá, tudo bem? 👋\n"))

		Expect(driver.Set(ctx, "empty", "")).To(Succeed())
		v, err = driver.Get(ctx, "empty")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(BeEmpty())
	})

	It("lists keys by prefix in order", func() {
		Expect(driver.Set(ctx, "relay:b@s.whatsapp.net", "B")).To(Succeed())
		Expect(driver.Set(ctx, "relay:a@s.whatsapp.net", "A")).To(Succeed())
		Expect(driver.Set(ctx, "other:c@s.whatsapp.net", "C")).To(Succeed())

		keys, err := driver.Keys(ctx, "relay:")
		Expect(err).NotTo(HaveOccurred())
		Expect(keys).To(Equal([]string{"relay:a@s.whatsapp.net", "relay:b@s.whatsapp.net"}))

		all, err := driver.Keys(ctx, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(all).To(HaveLen(3))
	})

	It("treats glob and LIKE characters in prefixes literally", func() {
		Expect(driver.Set(ctx, "a*b", "1")).To(Succeed())
		Expect(driver.Set(ctx, "a%b", "2")).To(Succeed())
		Expect(driver.Set(ctx, "axb", "3")).To(Succeed())

		keys, err := driver.Keys(ctx, "a*")
		Expect(err).NotTo(HaveOccurred())
		Expect(keys).To(Equal([]string{"a*b"}))

		keys, err = driver.Keys(ctx, "a%")
		Expect(err).NotTo(HaveOccurred())
		Expect(keys).To(Equal([]string{"a%b"}))
	})

	It("lists nothing from an empty store", func() {
		keys, err := driver.Keys(ctx, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(keys).To(BeEmpty())
	})

	It("is safe for concurrent writers on distinct keys", func() {
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				defer GinkgoRecover()
				Expect(driver.Set(ctx, fmt.Sprintf("key-%d", i), fmt.Sprint(i))).To(Succeed())
			}(i)
		}
		wg.Wait()

		for i := 0; i < 16; i++ {
			v, err := driver.Get(ctx, fmt.Sprintf("key-%d", i))
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(fmt.Sprint(i)))
		}
	})
}
