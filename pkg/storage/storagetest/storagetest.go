// Package storagetest holds the behaviour every storage.Driver must share.
// Driver test suites call DescribeDriver from inside a ginkgo container.
package storagetest

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/promptgate/pkg/storage"
)

// DescribeDriver registers the shared driver specs. newDriver is invoked
// before every spec and the returned driver is closed after it.
func DescribeDriver(newDriver func() storage.Driver) {
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
			Expect(driver.Close()).To(Succeed())
		}
	})

	makePrompt := func(id, text string) storage.Prompt {
		return storage.Prompt{
			ID:          id,
			Name:        "name-" + id,
			Prompt:      text,
			Description: "",
			CreatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		}
	}

	Describe("Settings", func() {
		It("returns the defaults when nothing was saved", func() {
			settings, err := driver.LoadSettings(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(settings).To(Equal(storage.DefaultSettings()))
		})

		It("round-trips a saved record", func() {
			model := "mistral"
			temp := 0.2
			err := driver.SaveSettings(ctx, storage.Settings{Model: &model, Temperature: &temp})
			Expect(err).NotTo(HaveOccurred())

			settings, err := driver.LoadSettings(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(settings.Model).To(HaveValue(Equal("mistral")))
			Expect(settings.Temperature).To(HaveValue(Equal(0.2)))
		})

		It("keeps missing fields missing", func() {
			model := "mistral"
			Expect(driver.SaveSettings(ctx, storage.Settings{Model: &model})).To(Succeed())

			settings, err := driver.LoadSettings(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(settings.TopP).To(BeNil())
			Expect(settings.SystemPrompt).To(BeNil())
		})
	})

	Describe("Prompts", func() {
		It("starts empty", func() {
			prompts, err := driver.ListPrompts(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(prompts).To(BeEmpty())
		})

		It("stores and retrieves a prompt", func() {
			p := makePrompt("a", "You are a pirate.")
			Expect(driver.PutPrompt(ctx, p)).To(Succeed())

			got, err := driver.GetPrompt(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal("a"))
			Expect(got.Prompt).To(Equal("You are a pirate."))
			Expect(got.CreatedAt).To(BeTemporally("==", p.CreatedAt))
			Expect(got.LastUsed).To(BeNil())
		})

		It("replaces a prompt with the same ID", func() {
			Expect(driver.PutPrompt(ctx, makePrompt("a", "one"))).To(Succeed())
			Expect(driver.PutPrompt(ctx, makePrompt("a", "two"))).To(Succeed())

			prompts, err := driver.ListPrompts(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(prompts).To(HaveLen(1))
			Expect(prompts["a"].Prompt).To(Equal("two"))
		})

		It("persists last_used", func() {
			p := makePrompt("a", "text")
			used := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)
			p.LastUsed = &used
			Expect(driver.PutPrompt(ctx, p)).To(Succeed())

			got, err := driver.GetPrompt(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.LastUsed).NotTo(BeNil())
			Expect(*got.LastUsed).To(BeTemporally("==", used))
		})

		It("lists every prompt keyed by ID", func() {
			Expect(driver.PutPrompt(ctx, makePrompt("a", "one"))).To(Succeed())
			Expect(driver.PutPrompt(ctx, makePrompt("b", "two"))).To(Succeed())

			prompts, err := driver.ListPrompts(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(prompts).To(HaveKey("a"))
			Expect(prompts).To(HaveKey("b"))
		})

		It("returns ErrNotFound for unknown IDs", func() {
			_, err := driver.GetPrompt(ctx, "missing")
			Expect(err).To(HaveOccurred())

			var notFound storage.ErrNotFound
			Expect(err).To(BeAssignableToTypeOf(notFound))
		})

		It("deletes a prompt and returns it", func() {
			Expect(driver.PutPrompt(ctx, makePrompt("a", "one"))).To(Succeed())

			deleted, err := driver.DeletePrompt(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted.Name).To(Equal("name-a"))

			_, err = driver.GetPrompt(ctx, "a")
			Expect(err).To(BeAssignableToTypeOf(storage.ErrNotFound{}))
		})

		It("returns ErrNotFound when deleting unknown IDs", func() {
			_, err := driver.DeletePrompt(ctx, "missing")
			Expect(err).To(BeAssignableToTypeOf(storage.ErrNotFound{}))
		})

		It("rejects prompts without an ID", func() {
			err := driver.PutPrompt(ctx, makePrompt("", "text"))
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("id is required"))
		})
	})
}
