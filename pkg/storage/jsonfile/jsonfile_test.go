package jsonfile_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/promptgate/pkg/storage"
	"github.com/papercomputeco/promptgate/pkg/storage/jsonfile"
	"github.com/papercomputeco/promptgate/pkg/storage/storagetest"
)

var _ = Describe("Driver", func() {
	storagetest.DescribeDriver(func() storage.Driver {
		d, err := jsonfile.NewDriver(GinkgoT().TempDir(), zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		return d
	})

	var (
		ctx context.Context
		dir string
		d   *jsonfile.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
		var err error
		d, err = jsonfile.NewDriver(dir, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		d.Close()
	})

	It("reads the saved_prompts.json layout keyed by ID", func() {
		doc := `{
  "abc": {
    "id": "abc",
    "name": "Pirate",
    "prompt": "Talk like a pirate.",
    "description": "",
    "created_at": "2026-01-02T03:04:05Z",
    "last_used": null
  }
}`
		Expect(os.WriteFile(filepath.Join(dir, jsonfile.PromptsFile), []byte(doc), 0o644)).To(Succeed())

		Eventually(func() (map[string]storage.Prompt, error) {
			return d.ListPrompts(ctx)
		}).Should(HaveKey("abc"))

		p, err := d.GetPrompt(ctx, "abc")
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Name).To(Equal("Pirate"))
		Expect(p.LastUsed).To(BeNil())
	})

	It("writes config.json on save", func() {
		model := "mistral"
		Expect(d.SaveSettings(ctx, storage.Settings{Model: &model})).To(Succeed())

		data, err := os.ReadFile(filepath.Join(dir, jsonfile.ConfigFile))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`"model": "mistral"`))
	})

	It("picks up external edits to config.json", func() {
		// prime the cache
		settings, err := d.LoadSettings(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(settings.Model).To(HaveValue(Equal("llama3.2")))

		Expect(os.WriteFile(filepath.Join(dir, jsonfile.ConfigFile), []byte(`{"model":"phi3"}`), 0o644)).To(Succeed())

		Eventually(func() string {
			s, err := d.LoadSettings(ctx)
			if err != nil || s.Model == nil {
				return ""
			}
			return *s.Model
		}, 2*time.Second, 20*time.Millisecond).Should(Equal("phi3"))
	})

	It("reports malformed files", func() {
		Expect(os.WriteFile(filepath.Join(dir, jsonfile.ConfigFile), []byte(`{not json`), 0o644)).To(Succeed())

		Eventually(func() error {
			_, err := d.LoadSettings(ctx)
			return err
		}, 2*time.Second, 20*time.Millisecond).Should(MatchError(ContainSubstring("parse config.json")))
	})
})
