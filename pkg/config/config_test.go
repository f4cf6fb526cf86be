package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/promptgate/pkg/config"
)

var _ = Describe("Load", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		for _, key := range []string{
			config.EnvListen, config.EnvUpstream, config.EnvTimeout,
			config.EnvStaticDir, config.EnvStore, config.EnvDebug, config.EnvJSONLogs,
		} {
			GinkgoT().Setenv(key, "")
		}
	})

	write := func(body string) string {
		path := filepath.Join(tmpDir, "promptgate.toml")
		Expect(os.WriteFile(path, []byte(body), 0o644)).To(Succeed())
		return path
	}

	It("returns the defaults without a file", func() {
		cfg, err := config.Load("")

		Expect(err).NotTo(HaveOccurred())
		Expect(cfg).To(Equal(config.Default()))
		Expect(cfg.Timeout.Duration).To(Equal(60 * time.Second))
	})

	It("decodes a TOML file over the defaults", func() {
		path := write(`
listen = "127.0.0.1:9000"
timeout = "90s"

[log]
debug = true
`)

		cfg, err := config.Load(path)

		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Listen).To(Equal("127.0.0.1:9000"))
		Expect(cfg.Timeout.Duration).To(Equal(90 * time.Second))
		Expect(cfg.Log.Debug).To(BeTrue())
		Expect(cfg.Upstream).To(Equal(config.DefaultUpstream))
	})

	It("lets the environment override the file", func() {
		path := write(`upstream = "http://gpu-box:11434"`)
		GinkgoT().Setenv(config.EnvUpstream, "http://other:11434")
		GinkgoT().Setenv(config.EnvJSONLogs, "true")

		cfg, err := config.Load(path)

		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Upstream).To(Equal("http://other:11434"))
		Expect(cfg.Log.JSON).To(BeTrue())
	})

	It("rejects unknown keys", func() {
		path := write(`listn = ":1"`)

		_, err := config.Load(path)

		Expect(err).To(MatchError(ContainSubstring(`unknown key "listn"`)))
	})

	It("rejects a bad duration", func() {
		path := write(`timeout = "soon"`)

		_, err := config.Load(path)

		Expect(err).To(HaveOccurred())
	})

	It("rejects a bad environment value", func() {
		GinkgoT().Setenv(config.EnvDebug, "maybe")

		_, err := config.Load("")

		Expect(err).To(MatchError(ContainSubstring(config.EnvDebug)))
	})

	It("reports a missing file", func() {
		_, err := config.Load(filepath.Join(tmpDir, "nope.toml"))

		Expect(err).To(MatchError(ContainSubstring("not found")))
	})
})
