package promptscmder

import (
	"bytes"
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/promptgate/pkg/storage"
	"github.com/papercomputeco/promptgate/pkg/storage/sqlite"
)

var _ = Describe("Prompts Command", func() {
	var (
		ctx       context.Context
		storePath string
	)

	BeforeEach(func() {
		ctx = context.Background()
		storePath = filepath.Join(GinkgoT().TempDir(), "store.db")
	})

	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		cmd := NewPromptsCmd()
		cmd.SetOut(&out)
		cmd.SetErr(GinkgoWriter)
		cmd.SetArgs(args)
		err := cmd.ExecuteContext(ctx)
		return out.String(), err
	}

	stored := func() map[string]storage.Prompt {
		driver, err := sqlite.NewDriver(ctx, storePath)
		Expect(err).NotTo(HaveOccurred())
		defer driver.Close()
		prompts, err := driver.ListPrompts(ctx)
		Expect(err).NotTo(HaveOccurred())
		return prompts
	}

	It("adds, lists and removes prompts", func() {
		out, err := run("add", "--store", storePath, "--name", "pirate", "-d", "arr", "Talk like a pirate.")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring(`Saved prompt "pirate" as `))

		prompts := stored()
		Expect(prompts).To(HaveLen(1))
		var id string
		for k, p := range prompts {
			id = k
			Expect(p.Prompt).To(Equal("Talk like a pirate."))
			Expect(p.Description).To(Equal("arr"))
			Expect(p.LastUsed).To(BeNil())
		}

		out, err = run("list", "--store", storePath)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring(id))
		Expect(out).To(ContainSubstring("pirate"))
		Expect(out).To(ContainSubstring("never"))

		out, err = run("rm", "--store", storePath, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring(`Deleted prompt "pirate"`))
		Expect(stored()).To(BeEmpty())
	})

	It("shows when a prompt was last used", func() {
		used := time.Date(2026, 2, 3, 4, 5, 6, 0, time.Local)
		driver, err := sqlite.NewDriver(ctx, storePath)
		Expect(err).NotTo(HaveOccurred())
		Expect(driver.PutPrompt(ctx, storage.Prompt{ID: "x", Name: "n", Prompt: "p", CreatedAt: used, LastUsed: &used})).To(Succeed())
		driver.Close()

		out, err := run("list", "--store", storePath)

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("2026-02-03 04:05:06"))
	})

	It("reports an empty library", func() {
		out, err := run("list", "--store", storePath)

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("No saved prompts."))
	})

	It("requires a name when adding", func() {
		_, err := run("add", "--store", storePath, "text")

		Expect(err).To(HaveOccurred())
	})

	It("reports an unknown ID on rm", func() {
		_, err := run("rm", "--store", storePath, "missing")

		Expect(err).To(MatchError("no saved prompt with ID missing"))
	})

	It("wires the merge and push subcommands", func() {
		cmd := NewPromptsCmd()

		names := []string{}
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("list", "add", "rm", "merge", "push"))
	})
})
