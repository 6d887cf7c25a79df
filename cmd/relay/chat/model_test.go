package chatcmder

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/relay/relay"
)

var _ = Describe("Chat Model", func() {
	var (
		outbox *consoleDispatcher
		sent   []string
		fail   bool
		m      model
	)

	converse := func(ctx context.Context, key, text string) relay.Outcome {
		sent = append(sent, text)
		if fail {
			return relay.Outcome{Status: relay.StatusStoreUnavailable, Err: errors.New("connection refused")}
		}
		_ = outbox.Send(ctx, key, "echo: "+text)
		return relay.Outcome{Status: relay.StatusSuccess, Key: key}
	}

	update := func(msg tea.Msg) tea.Cmd {
		next, cmd := m.Update(msg)
		m = next.(model)
		return cmd
	}

	typeText := func(text string) {
		update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	}

	BeforeEach(func() {
		outbox = &consoleDispatcher{}
		sent = nil
		fail = false
		m = newModel("console", converse, outbox)
		update(tea.WindowSizeMsg{Width: 80, Height: 24})
	})

	It("sends the typed text and shows the reply", func() {
		typeText("Oi")
		cmd := update(tea.KeyMsg{Type: tea.KeyEnter})
		Expect(cmd).NotTo(BeNil())
		Expect(m.waiting).To(BeTrue())
		Expect(m.input.Value()).To(BeEmpty())
		Expect(m.View()).To(ContainSubstring("thinking"))

		update(cmd())
		Expect(sent).To(Equal([]string{"Oi"}))
		Expect(m.waiting).To(BeFalse())
		Expect(m.View()).To(ContainSubstring("echo: Oi"))
	})

	It("ignores an empty line", func() {
		typeText("   ")
		cmd := update(tea.KeyMsg{Type: tea.KeyEnter})
		Expect(cmd).To(BeNil())
		Expect(sent).To(BeEmpty())
	})

	It("does not send while waiting for a reply", func() {
		typeText("Oi")
		first := update(tea.KeyMsg{Type: tea.KeyEnter})
		typeText("de novo")
		Expect(update(tea.KeyMsg{Type: tea.KeyEnter})).To(BeNil())

		update(first())
		Expect(sent).To(Equal([]string{"Oi"}))
	})

	It("shows the failure status", func() {
		fail = true
		typeText("Oi")
		cmd := update(tea.KeyMsg{Type: tea.KeyEnter})
		update(cmd())
		Expect(m.View()).To(ContainSubstring(relay.StatusStoreUnavailable))
	})

	It("quits on esc", func() {
		cmd := update(tea.KeyMsg{Type: tea.KeyEsc})
		Expect(cmd()).To(Equal(tea.Quit()))
	})
})

var _ = Describe("consoleDispatcher", func() {
	It("hands each reply out once", func() {
		d := &consoleDispatcher{}
		Expect(d.Send(context.Background(), "a", "hello")).To(Succeed())

		text, ok := d.Take("a")
		Expect(ok).To(BeTrue())
		Expect(text).To(Equal("hello"))

		_, ok = d.Take("a")
		Expect(ok).To(BeFalse())
	})
})
