package ollama_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/promptgate/pkg/llm"
	"github.com/papercomputeco/promptgate/pkg/ollama"
)

var _ = Describe("Client", func() {
	var (
		ctx    context.Context
		server *httptest.Server
		client *ollama.Client
	)

	start := func(h http.HandlerFunc) {
		server = httptest.NewServer(h)
		client = ollama.NewClient(ollama.Config{BaseURL: server.URL + "/"}, zap.NewNop())
	}

	BeforeEach(func() {
		ctx = context.Background()
	})

	AfterEach(func() {
		if server != nil {
			server.Close()
		}
	})

	Describe("Generate", func() {
		It("posts the request and yields body lines", func() {
			start(func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.Method).To(Equal(http.MethodPost))
				Expect(r.URL.Path).To(Equal("/api/generate"))
				Expect(r.Header.Get("Content-Type")).To(Equal("application/json"))

				var req llm.GenerateRequest
				Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
				Expect(req.Model).To(Equal("llama3.2"))
				Expect(req.System).To(Equal("[ID:x] be nice"))

				fmt.Fprint(w, "{\"response\":\"a\"}\n{\"done\":true}\n")
			})

			stream, err := client.Generate(ctx, &llm.GenerateRequest{
				Model:  "llama3.2",
				Prompt: "hi",
				System: "[ID:x] be nice",
				Stream: true,
			})
			Expect(err).NotTo(HaveOccurred())
			defer stream.Close()

			var lines []string
			for stream.Next() {
				lines = append(lines, string(stream.Line()))
			}
			Expect(stream.Err()).NotTo(HaveOccurred())
			Expect(lines).To(Equal([]string{`{"response":"a"}`, `{"done":true}`}))
		})

		It("returns a StatusError and no stream on a non-success status", func() {
			start(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, "model crashed\n")
			})

			stream, err := client.Generate(ctx, &llm.GenerateRequest{Model: "m"})

			Expect(stream).To(BeNil())
			var statusErr *ollama.StatusError
			Expect(errors.As(err, &statusErr)).To(BeTrue())
			Expect(statusErr.StatusCode).To(Equal(500))
			Expect(statusErr.Body).To(Equal("model crashed"))
		})

		It("returns a ConnectionError when the engine is down", func() {
			start(func(http.ResponseWriter, *http.Request) {})
			server.Close()

			_, err := client.Generate(ctx, &llm.GenerateRequest{Model: "m"})

			var connErr *ollama.ConnectionError
			Expect(errors.As(err, &connErr)).To(BeTrue())
			var statusErr *ollama.StatusError
			Expect(errors.As(err, &statusErr)).To(BeFalse())
		})
	})

	Describe("Tags", func() {
		It("fetches /api/tags", func() {
			start(func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.URL.Path).To(Equal("/api/tags"))
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				fmt.Fprint(w, `{"models":[{"name":"llama3.2"}]}`)
			})

			resp, err := client.Tags(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(200))
			Expect(resp.IsJSON()).To(BeTrue())
			Expect(string(resp.Body)).To(ContainSubstring("llama3.2"))
		})
	})

	Describe("Forward", func() {
		It("relays method, path, query and body", func() {
			start(func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.Method).To(Equal(http.MethodPut))
				Expect(r.URL.Path).To(Equal("/api/show"))
				Expect(r.URL.RawQuery).To(Equal("verbose=1"))
				body, _ := io.ReadAll(r.Body)
				Expect(string(body)).To(Equal(`{"name":"m"}`))
				fmt.Fprint(w, "plain")
			})

			resp, err := client.Forward(ctx, http.MethodPut, "/show", "verbose=1", []byte(`{"name":"m"}`))

			Expect(err).NotTo(HaveOccurred())
			Expect(resp.IsJSON()).To(BeFalse())
			Expect(string(resp.Body)).To(Equal("plain"))
		})
	})

	It("trims the trailing slash of the base URL", func() {
		c := ollama.NewClient(ollama.Config{BaseURL: "http://localhost:11434/"}, zap.NewNop())

		Expect(c.BaseURL()).To(Equal("http://localhost:11434"))
	})
})

var _ = Describe("LineStream", func() {
	It("closes the body once", func() {
		body := &countingCloser{Reader: strings.NewReader("a\nb\n")}
		stream := ollama.NewLineStream(body)

		Expect(stream.Close()).To(Succeed())
		Expect(stream.Close()).To(Succeed())
		Expect(body.closed).To(Equal(1))
	})

	It("reports over-long lines", func() {
		stream := ollama.NewLineStream(io.NopCloser(strings.NewReader(strings.Repeat("x", 2<<20))))

		Expect(stream.Next()).To(BeFalse())
		Expect(stream.Err()).To(HaveOccurred())
	})
})

type countingCloser struct {
	io.Reader
	closed int
}

func (c *countingCloser) Close() error {
	c.closed++
	return nil
}
