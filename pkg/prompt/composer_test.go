package prompt_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/relay/pkg/llm"
	"github.com/papercomputeco/relay/pkg/prompt"
	"github.com/papercomputeco/relay/pkg/session"
)

var _ = Describe("Composer", func() {
	var (
		saoPaulo *time.Location
		fixed    time.Time
		history  *session.Session
	)

	BeforeEach(func() {
		var err error
		saoPaulo, err = time.LoadLocation("America/Sao_Paulo")
		Expect(err).NotTo(HaveOccurred())

		fixed = time.Date(2026, time.March, 2, 15, 4, 0, 0, time.UTC)
		history = session.Append(session.New("k"),
			llm.UserTurn("hi"),
			llm.AssistantTurn("hello!"),
		)
	})

	It("sends one user turn for an empty session", func() {
		c := prompt.NewComposer(prompt.Config{})
		turns := c.Build(session.New("k"), "hello")

		Expect(turns).To(Equal([]llm.Turn{llm.UserTurn("hello")}))
	})

	It("appends the new turn after history", func() {
		c := prompt.NewComposer(prompt.Config{})
		turns := c.Build(history, "how are you?")

		Expect(turns).To(Equal([]llm.Turn{
			llm.UserTurn("hi"),
			llm.AssistantTurn("hello!"),
			llm.UserTurn("how are you?"),
		}))
	})

	It("prepends the current time in the configured zone", func() {
		c := prompt.NewComposer(prompt.Config{
			InjectTime: true,
			Location:   saoPaulo,
			TimeLayout: "Monday, 02 January 2006 15:04 MST",
		}).WithClock(func() time.Time { return fixed })

		turns := c.Build(history, "que horas são?")

		Expect(turns).To(HaveLen(4))
		Expect(turns[0].Role).To(Equal(llm.RoleSystem))
		Expect(turns[0].Content).To(Equal("Current date and time: Monday, 02 March 2026 12:04 -03."))
		Expect(turns[3]).To(Equal(llm.UserTurn("que horas são?")))
	})

	It("combines the static system prompt with the time", func() {
		c := prompt.NewComposer(prompt.Config{
			System:     "You are a helpful assistant on WhatsApp.",
			InjectTime: true,
			TimeLayout: time.RFC3339,
		}).WithClock(func() time.Time { return fixed })

		turns := c.Build(nil, "hi")

		Expect(turns[0].Content).To(HavePrefix("You are a helpful assistant on WhatsApp."))
		Expect(turns[0].Content).To(HaveSuffix("2026-03-02T15:04:00Z."))
	})

	It("never mutates or extends the history", func() {
		before := append([]llm.Turn(nil), history.Turns...)
		c := prompt.NewComposer(prompt.Config{InjectTime: true})

		turns := c.Build(history, "next")
		turns[1].Content = "tampered"

		Expect(history.Turns).To(Equal(before))
	})

	It("trims the oldest history turns when capped", func() {
		long := session.Append(history, llm.UserTurn("q2"), llm.AssistantTurn("a2"))
		c := prompt.NewComposer(prompt.Config{MaxHistoryTurns: 2})

		turns := c.Build(long, "q3")

		Expect(turns).To(Equal([]llm.Turn{
			llm.UserTurn("q2"),
			llm.AssistantTurn("a2"),
			llm.UserTurn("q3"),
		}))
		Expect(long.Turns).To(HaveLen(4))
	})
})
