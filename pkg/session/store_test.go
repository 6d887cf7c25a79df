package session_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/relay/pkg/llm"
	"github.com/papercomputeco/relay/pkg/session"
	"github.com/papercomputeco/relay/pkg/storage"
	"github.com/papercomputeco/relay/pkg/storage/inmemory"
)

// faultyDriver wraps an in-memory driver with injectable failures.
type faultyDriver struct {
	*inmemory.Driver
	pingErr error
	getErr  error
	setErr  error
	gets    int
	sets    int
}

func (f *faultyDriver) Ping(ctx context.Context) error {
	if f.pingErr != nil {
		return f.pingErr
	}
	return f.Driver.Ping(ctx)
}

func (f *faultyDriver) Get(ctx context.Context, key string) (string, error) {
	f.gets++
	if f.getErr != nil {
		return "", f.getErr
	}
	return f.Driver.Get(ctx, key)
}

func (f *faultyDriver) Set(ctx context.Context, key, value string) error {
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	return f.Driver.Set(ctx, key, value)
}

// slowDriver blocks until the context is done.
type slowDriver struct {
	*inmemory.Driver
}

func (s *slowDriver) Get(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

var _ storage.Driver = (*faultyDriver)(nil)

var _ = Describe("Store", func() {
	var (
		ctx    context.Context
		driver *faultyDriver
		store  *session.Store
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = &faultyDriver{Driver: inmemory.NewDriver()}
		store = session.NewStore(driver, session.StoreOptions{}, zap.NewNop())
	})

	Describe("Load", func() {
		It("returns an empty session for an unknown key", func() {
			s, err := store.Load(ctx, "551199999@s.whatsapp.net")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Key).To(Equal("551199999@s.whatsapp.net"))
			Expect(s.Turns).To(BeEmpty())
			Expect(s.Degraded).To(BeFalse())
		})

		It("fails hard when the store is unreachable", func() {
			driver.pingErr = errors.New("dial tcp: connection refused")

			s, err := store.Load(ctx, "k")
			Expect(s).To(BeNil())
			Expect(err).To(MatchError(session.ErrStoreUnavailable))
			Expect(err.Error()).To(ContainSubstring("connection refused"))
			Expect(driver.gets).To(BeZero())
		})

		It("degrades to an empty session when a read fails", func() {
			driver.getErr = errors.New("i/o timeout")

			s, err := store.Load(ctx, "k")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Turns).To(BeEmpty())
			Expect(s.Degraded).To(BeTrue())
		})

		It("degrades to an empty session when the value is corrupt", func() {
			Expect(driver.Driver.Set(ctx, "k", "{not json")).To(Succeed())

			s, err := store.Load(ctx, "k")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Turns).To(BeEmpty())
			Expect(s.Degraded).To(BeTrue())
		})

		It("bounds reads by the configured timeout", func() {
			slow := session.NewStore(&slowDriver{Driver: inmemory.NewDriver()},
				session.StoreOptions{Timeout: 20 * time.Millisecond}, zap.NewNop())

			start := time.Now()
			s, err := slow.Load(ctx, "k")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Degraded).To(BeTrue())
			Expect(time.Since(start)).To(BeNumerically("<", time.Second))
		})
	})

	Describe("Persist", func() {
		It("round-trips through load", func() {
			s, err := store.Load(ctx, "k")
			Expect(err).NotTo(HaveOccurred())

			s = session.Append(s, llm.UserTurn("hello"), llm.AssistantTurn("hi!"))
			Expect(store.Persist(ctx, "k", s)).To(Succeed())

			loaded, err := store.Load(ctx, "k")
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Turns).To(Equal(s.Turns))

			next := session.Append(loaded, llm.UserTurn("again"))
			Expect(store.Persist(ctx, "k", next)).To(Succeed())

			reloaded, err := store.Load(ctx, "k")
			Expect(err).NotTo(HaveOccurred())
			Expect(reloaded.Turns).To(Equal(next.Turns))
			Expect(reloaded.Turns[len(reloaded.Turns)-1]).To(Equal(llm.UserTurn("again")))
		})

		It("overwrites the previous value", func() {
			Expect(store.Persist(ctx, "k", session.Append(session.New("k"), llm.UserTurn("a")))).To(Succeed())
			Expect(store.Persist(ctx, "k", session.Append(session.New("k"), llm.UserTurn("b")))).To(Succeed())

			s, err := store.Load(ctx, "k")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Turns).To(Equal([]llm.Turn{llm.UserTurn("b")}))
		})

		It("reports failed writes as store unavailability", func() {
			driver.setErr = errors.New("READONLY You can't write against a read only replica")

			err := store.Persist(ctx, "k", session.New("k"))
			Expect(err).To(MatchError(session.ErrStoreUnavailable))
		})

		It("applies the key prefix", func() {
			prefixed := session.NewStore(driver, session.StoreOptions{KeyPrefix: "relay:session:"}, zap.NewNop())
			Expect(prefixed.Persist(ctx, "k", session.Append(session.New("k"), llm.UserTurn("x")))).To(Succeed())

			_, err := driver.Driver.Get(ctx, "relay:session:k")
			Expect(err).NotTo(HaveOccurred())
			_, err = driver.Driver.Get(ctx, "k")
			Expect(err).To(MatchError(storage.ErrNotFound))

			s, err := prefixed.Load(ctx, "k")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Key).To(Equal("k"))
			Expect(s.Turns).To(HaveLen(1))
		})
	})

	Describe("Keys", func() {
		It("lists conversation keys without the prefix", func() {
			prefixed := session.NewStore(driver, session.StoreOptions{KeyPrefix: "relay:session:"}, zap.NewNop())
			one := session.Append(session.New("b"), llm.UserTurn("Oi"))
			Expect(prefixed.Persist(ctx, "b", one)).To(Succeed())
			Expect(prefixed.Persist(ctx, "a", one)).To(Succeed())
			Expect(driver.Driver.Set(ctx, "unrelated", "x")).To(Succeed())

			keys, err := prefixed.Keys(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(keys).To(Equal([]string{"a", "b"}))
		})
	})
})
