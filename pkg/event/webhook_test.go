package event_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/relay/pkg/event"
)

var _ = Describe("Decode", func() {
	DescribeTable("rejects bodies that are not JSON objects",
		func(body string) {
			w, err := event.Decode([]byte(body))
			Expect(w).To(BeNil())
			Expect(err).To(MatchError(event.ErrMalformedPayload))
		},
		Entry("empty", ``),
		Entry("array", `[{"event":"messages.upsert"}]`),
		Entry("string", `"messages.upsert"`),
		Entry("truncated", `{"event":"messages.upsert","data":{`),
	)

	DescribeTable("treats an event tag that is not a string as absent",
		func(body string) {
			w, err := event.Decode([]byte(body))
			Expect(err).NotTo(HaveOccurred())
			Expect(w.Event).To(BeNil())
			Expect(w.EventType()).To(BeEmpty())
			Expect(w.Data).To(BeNil())
		},
		Entry("number", `{"event":123,"data":{"key":{"remoteJid":"1@s.whatsapp.net"},"message":{"conversation":"hi"}}}`),
		Entry("array", `{"event":["messages.upsert"],"data":{"key":{"remoteJid":"1@s.whatsapp.net"},"message":{"conversation":"hi"}}}`),
		Entry("object", `{"event":{"name":"messages.upsert"}}`),
		Entry("null", `{"event":null}`),
	)

	It("keeps absent fields nil", func() {
		w, err := event.Decode([]byte(`{"event":"messages.upsert","data":{"key":{"remoteJid":"1@s.whatsapp.net"}}}`))
		Expect(err).NotTo(HaveOccurred())

		Expect(w.Data.Key.FromMe).To(BeNil())
		Expect(w.Data.Message).To(BeNil())
		Expect(w.FromSelf()).To(BeFalse())
		Expect(w.Text()).To(BeEmpty())
	})

	It("exposes the sender display name", func() {
		w, err := event.Decode([]byte(`{"event":"messages.upsert","data":{"pushName":"Maria","key":{"remoteJid":"1@s.whatsapp.net"}}}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(w.SenderName()).To(Equal("Maria"))
	})

	It("tolerates unknown fields", func() {
		w, err := event.Decode([]byte(`{"event":"messages.upsert","instance":"bot","data":{"messageTimestamp":1700000000,"key":{"id":"ABC","remoteJid":"1@s.whatsapp.net"},"message":{"conversation":"hi"}}}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Text()).To(Equal("hi"))
	})

	It("is nil-safe", func() {
		var w *event.Webhook
		Expect(w.EventType()).To(BeEmpty())
		Expect(w.SenderKey()).To(BeEmpty())
		Expect(w.FromSelf()).To(BeFalse())
	})
})

var _ = Describe("Decode data", func() {
	It("does not look into data for other event types", func() {
		w, err := event.Decode([]byte(`{"event":"presence.update","data":"not an object"}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Data).To(BeNil())
	})

	It("rejects upsert events whose data has the wrong shape", func() {
		_, err := event.Decode([]byte(`{"event":"messages.upsert","data":{"key":"1@s.whatsapp.net"}}`))
		Expect(err).To(MatchError(event.ErrMalformedPayload))
	})

	DescribeTable("only a literal true marks a message as self-authored",
		func(fromMe string, self bool) {
			w, err := event.Decode([]byte(`{"event":"messages.upsert","data":{"key":{"remoteJid":"1@s.whatsapp.net","fromMe":` + fromMe + `},"message":{"conversation":"hi"}}}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(w.FromSelf()).To(Equal(self))
		},
		Entry("true", `true`, true),
		Entry("false", `false`, false),
		Entry("string false", `"false"`, false),
		Entry("string true", `"true"`, false),
		Entry("number", `1`, false),
		Entry("object", `{}`, false),
		Entry("null", `null`, false),
	)
})
