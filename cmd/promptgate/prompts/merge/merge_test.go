package mergecmder

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/promptgate/pkg/storage"
	"github.com/papercomputeco/promptgate/pkg/storage/sqlite"
)

var _ = Describe("Merge Command", func() {
	var (
		ctx     context.Context
		tmpDir  string
		srcPath string
		dstPath string
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		tmpDir, err = os.MkdirTemp("", "promptgate-merge-test-*")
		Expect(err).NotTo(HaveOccurred())
		srcPath = filepath.Join(tmpDir, "source.db")
		dstPath = filepath.Join(tmpDir, "target.db")
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	makePrompt := func(id, text string) storage.Prompt {
		return storage.Prompt{
			ID:        id,
			Name:      id,
			Prompt:    text,
			CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		}
	}

	seed := func(path string, prompts ...storage.Prompt) {
		driver, err := sqlite.NewDriver(ctx, path)
		Expect(err).NotTo(HaveOccurred())
		defer driver.Close()
		for _, p := range prompts {
			Expect(driver.PutPrompt(ctx, p)).To(Succeed())
		}
	}

	listTarget := func() map[string]storage.Prompt {
		dst, err := sqlite.NewDriver(ctx, dstPath)
		Expect(err).NotTo(HaveOccurred())
		defer dst.Close()
		prompts, err := dst.ListPrompts(ctx)
		Expect(err).NotTo(HaveOccurred())
		return prompts
	}

	run := func(args ...string) string {
		var out bytes.Buffer
		cmd := NewMergeCmd()
		cmd.SetOut(&out)
		cmd.SetArgs(append([]string{"--store", dstPath}, args...))
		Expect(cmd.ExecuteContext(ctx)).To(Succeed())
		return out.String()
	}

	It("merges prompts from source into target", func() {
		seed(srcPath, makePrompt("a", "alpha"), makePrompt("b", "beta"))
		seed(dstPath, makePrompt("c", "gamma"))

		out := run(srcPath)

		Expect(listTarget()).To(HaveLen(3))
		Expect(out).To(ContainSubstring("Merged 2 new prompts from 1 sources (0 already existed)"))
	})

	It("keeps the target copy of an existing ID", func() {
		seed(srcPath, makePrompt("a", "from source"))
		seed(dstPath, makePrompt("a", "from target"))

		out := run(srcPath)

		prompts := listTarget()
		Expect(prompts).To(HaveLen(1))
		Expect(prompts["a"].Prompt).To(Equal("from target"))
		Expect(out).To(ContainSubstring("0 new, 1 already existed"))
	})

	It("deduplicates when merging the same source twice", func() {
		seed(srcPath, makePrompt("a", "dedup test"))

		run(srcPath)
		run(srcPath)

		Expect(listTarget()).To(HaveLen(1))
	})

	It("merges multiple sources of different kinds", func() {
		seed(srcPath, makePrompt("a", "from sqlite"))

		jsonDir := filepath.Join(tmpDir, "webui")
		Expect(os.MkdirAll(jsonDir, 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(jsonDir, "saved_prompts.json"), []byte(`{
  "b": {
    "id": "b",
    "name": "pirate",
    "prompt": "Talk like a pirate.",
    "description": "",
    "created_at": "2025-05-01T12:00:00.000001",
    "last_used": null
  }
}`), 0o644)).To(Succeed())

		run(srcPath, jsonDir)

		prompts := listTarget()
		Expect(prompts).To(HaveLen(2))
		Expect(prompts["b"].Prompt).To(Equal("Talk like a pirate."))
	})

	It("requires a source", func() {
		cmd := NewMergeCmd()
		cmd.SetOut(GinkgoWriter)
		cmd.SetErr(GinkgoWriter)
		cmd.SetArgs([]string{"--store", dstPath})

		Expect(cmd.ExecuteContext(ctx)).To(HaveOccurred())
	})
})
