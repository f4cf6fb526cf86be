package gateway_test

import (
	"bytes"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/promptgate/pkg/gateway"
)

var _ = Describe("Event", func() {
	Describe("MarshalSSE", func() {
		It("frames a response event", func() {
			frame, err := gateway.ResponseEvent("Hel").MarshalSSE()

			Expect(err).NotTo(HaveOccurred())
			Expect(string(frame)).To(Equal("data: {\"response\":\"Hel\"}\n\n"))
		})

		It("frames done and error events", func() {
			done, _ := gateway.DoneEvent().MarshalSSE()
			failed, _ := gateway.ErrorEvent("boom").MarshalSSE()

			Expect(string(done)).To(Equal("data: {\"done\":true}\n\n"))
			Expect(string(failed)).To(Equal("data: {\"error\":\"boom\"}\n\n"))
		})

		It("keeps an empty fragment", func() {
			frame, _ := gateway.ResponseEvent("").MarshalSSE()

			Expect(string(frame)).To(Equal("data: {\"response\":\"\"}\n\n"))
		})

		It("escapes quotes and newlines so the event stays on one line", func() {
			frame, err := gateway.ResponseEvent("say \"hi\"\nthen <leave>").MarshalSSE()

			Expect(err).NotTo(HaveOccurred())
			Expect(string(frame)).To(Equal("data: {\"response\":\"say \\\"hi\\\"\\nthen <leave>\"}\n\n"))
			Expect(strings.Count(string(frame), "\n")).To(Equal(2))
		})
	})

	Describe("Kind", func() {
		It("names each shape", func() {
			Expect(gateway.ResponseEvent("x").Kind()).To(Equal("response"))
			Expect(gateway.DoneEvent().Kind()).To(Equal("done"))
			Expect(gateway.ErrorEvent("x").Kind()).To(Equal("error"))
		})
	})

	Describe("DecodeEvents", func() {
		It("round-trips written events in order", func() {
			var buf bytes.Buffer
			for _, ev := range []gateway.Event{
				gateway.ResponseEvent("a \"b\"\n"),
				gateway.ResponseEvent("c"),
				gateway.DoneEvent(),
			} {
				_, err := ev.WriteTo(&buf)
				Expect(err).NotTo(HaveOccurred())
			}

			var got []gateway.Event
			err := gateway.DecodeEvents(&buf, func(ev gateway.Event) error {
				got = append(got, ev)
				return nil
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal([]gateway.Event{
				gateway.ResponseEvent("a \"b\"\n"),
				gateway.ResponseEvent("c"),
				gateway.DoneEvent(),
			}))
		})

		It("ignores comments and other fields", func() {
			stream := ": keep-alive\nevent: message\ndata: {\"done\":true}\n"

			var got []gateway.Event
			err := gateway.DecodeEvents(strings.NewReader(stream), func(ev gateway.Event) error {
				got = append(got, ev)
				return nil
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal([]gateway.Event{gateway.DoneEvent()}))
		})

		It("stops at the first callback error", func() {
			stream := "data: {\"response\":\"a\"}\n\ndata: {\"response\":\"b\"}\n\n"
			stop := errors.New("stop")

			calls := 0
			err := gateway.DecodeEvents(strings.NewReader(stream), func(gateway.Event) error {
				calls++
				return stop
			})

			Expect(err).To(MatchError(stop))
			Expect(calls).To(Equal(1))
		})

		It("reports undecodable data", func() {
			err := gateway.DecodeEvents(strings.NewReader("data: nope\n\n"), func(gateway.Event) error { return nil })

			Expect(err).To(MatchError(ContainSubstring("decode event")))
		})
	})
})
