package storepath_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/promptgate/cmd/promptgate/storepath"
	"github.com/papercomputeco/promptgate/pkg/storage/inmemory"
	"github.com/papercomputeco/promptgate/pkg/storage/jsonfile"
	"github.com/papercomputeco/promptgate/pkg/storage/sqlite"
)

var _ = Describe("Resolve", func() {
	BeforeEach(func() {
		GinkgoT().Setenv(storepath.EnvStore, "")
	})

	It("prefers the flag", func() {
		GinkgoT().Setenv(storepath.EnvStore, "/from/env.db")

		path, err := storepath.Resolve("/from/flag.db")

		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("/from/flag.db"))
	})

	It("falls back to the environment", func() {
		GinkgoT().Setenv(storepath.EnvStore, "/from/env.db")

		path, err := storepath.Resolve("")

		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("/from/env.db"))
	})

	It("defaults to a database under the home directory", func() {
		home := GinkgoT().TempDir()
		GinkgoT().Setenv("HOME", home)

		path, err := storepath.Resolve("")

		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(filepath.Join(home, ".promptgate", "promptgate.db")))
		Expect(filepath.Join(home, ".promptgate")).To(BeADirectory())
	})
})

var _ = Describe("Open", func() {
	var (
		ctx    context.Context
		tmpDir string
	)

	BeforeEach(func() {
		ctx = context.Background()
		tmpDir = GinkgoT().TempDir()
	})

	It("opens memory stores", func() {
		driver, err := storepath.Open(ctx, storepath.Memory, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		defer driver.Close()

		Expect(driver).To(BeAssignableToTypeOf(&inmemory.Driver{}))
		Expect(storepath.Kind(storepath.Memory)).To(Equal("inmemory"))
	})

	It("opens a directory as a JSON file store", func() {
		driver, err := storepath.Open(ctx, tmpDir, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		defer driver.Close()

		Expect(driver).To(BeAssignableToTypeOf(&jsonfile.Driver{}))
	})

	It("opens the directory of a .json path", func() {
		location := filepath.Join(tmpDir, "app", jsonfile.PromptsFile)

		driver, err := storepath.Open(ctx, location, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		defer driver.Close()

		Expect(driver).To(BeAssignableToTypeOf(&jsonfile.Driver{}))
		Expect(filepath.Join(tmpDir, "app")).To(BeADirectory())
	})

	It("opens anything else as SQLite", func() {
		location := filepath.Join(tmpDir, "store.db")

		driver, err := storepath.Open(ctx, location, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		defer driver.Close()

		Expect(driver).To(BeAssignableToTypeOf(&sqlite.Driver{}))
		Expect(location).To(BeAnExistingFile())
	})

	It("names redis URLs", func() {
		Expect(storepath.Kind("redis://localhost:6379/0")).To(Equal("redis"))
		Expect(storepath.Kind("rediss://cache:6380")).To(Equal("redis"))
	})

	It("fails on an unreachable redis", func() {
		_, err := storepath.Open(ctx, "redis://127.0.0.1:1/0", zap.NewNop())
		Expect(err).To(HaveOccurred())
	})

	It("treats a missing path as SQLite", func() {
		Expect(storepath.Kind(filepath.Join(tmpDir, "nope"))).To(Equal("sqlite"))
		_, statErr := os.Stat(filepath.Join(tmpDir, "nope"))
		Expect(os.IsNotExist(statErr)).To(BeTrue())
	})
})
