package inmemory_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/relay/pkg/storage"
	"github.com/papercomputeco/relay/pkg/storage/inmemory"
	"github.com/papercomputeco/relay/pkg/storage/storagetest"
)

var _ = Describe("Driver", func() {
	storagetest.DriverBehaviour(func() storage.Driver {
		return inmemory.NewDriver()
	})

	It("counts stored keys", func() {
		d := inmemory.NewDriver()
		Expect(d.Len()).To(Equal(0))
		Expect(d.Set(context.Background(), "k", "v")).To(Succeed())
		Expect(d.Set(context.Background(), "k", "w")).To(Succeed())
		Expect(d.Len()).To(Equal(1))
	})
})
