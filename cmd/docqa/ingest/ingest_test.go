package ingestcmder_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	ingestcmder "github.com/papercomputeco/docqa/cmd/docqa/ingest"
	"github.com/papercomputeco/docqa/pkg/cliui"
	"github.com/papercomputeco/docqa/pkg/document"
)

// fakeOllama answers /api/embed with one 3-dimensional vector per input.
func fakeOllama(status int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}

		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		embeddings := make([][]float32, len(req.Input))
		for i := range req.Input {
			embeddings[i] = []float32{1, float32(i + 1), 0.5}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": embeddings})
	}))
}

var _ = Describe("Ingest command", func() {
	var (
		tmpDir    string
		docsDir   string
		configDir string
		out       *bytes.Buffer
	)

	newCmd := func(args ...string) *cobra.Command {
		cmd := ingestcmder.NewIngestCmd()
		cmd.PersistentFlags().Bool("debug", false, "")
		cmd.PersistentFlags().String("config-dir", "", "")
		cmd.SetOut(out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(append([]string{"--config-dir", configDir, "--docs", docsDir}, args...))
		return cmd
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "docqa-ingest-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { _ = os.RemoveAll(tmpDir) })

		docsDir = filepath.Join(tmpDir, "documents")
		configDir = filepath.Join(tmpDir, ".docqa")
		Expect(os.MkdirAll(docsDir, 0o755)).To(Succeed())
		Expect(os.MkdirAll(configDir, 0o755)).To(Succeed())

		out = &bytes.Buffer{}
	})

	It("registers the ingestion flags", func() {
		cmd := ingestcmder.NewIngestCmd()
		for _, name := range []string{"docs", "chunk-size", "chunk-overlap", "vector-store-provider",
			"vector-store-path", "embedding-provider", "embedding-model", "batch-size"} {
			Expect(cmd.Flags().Lookup(name)).NotTo(BeNil(), name)
		}
	})

	It("builds the index from the documents directory", func() {
		server := fakeOllama(http.StatusOK)
		defer server.Close()

		Expect(os.WriteFile(filepath.Join(docsDir, "guide.md"),
			[]byte("Paris is the capital of France.\n\nBerlin is the capital of Germany."), 0o644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(docsDir, "notes.txt"),
			[]byte("The warranty lasts two years."), 0o644)).To(Succeed())

		err := newCmd("--embedding-target", server.URL, "--embedding-dimensions", "3").Execute()
		Expect(err).NotTo(HaveOccurred())

		Expect(filepath.Join(configDir, "index.sqlite")).To(BeAnExistingFile())
		Expect(out.String()).To(ContainSubstring("2 documents"))
		for _, step := range []string{"Loading documents", "Splitting into chunks", "Embedding chunks", "Persisting index"} {
			Expect(out.String()).To(ContainSubstring(cliui.SuccessMark+" "+step), step)
		}
	})

	It("fails without replacing the index when embedding fails", func() {
		server := fakeOllama(http.StatusInternalServerError)
		defer server.Close()

		Expect(os.WriteFile(filepath.Join(docsDir, "guide.md"), []byte("Some text."), 0o644)).To(Succeed())

		err := newCmd("--embedding-target", server.URL, "--embedding-dimensions", "3").Execute()
		Expect(err).To(HaveOccurred())
		Expect(filepath.Join(configDir, "index.sqlite")).NotTo(BeAnExistingFile())
		Expect(out.String()).To(ContainSubstring(cliui.SuccessMark + " Splitting into chunks"))
		Expect(out.String()).To(ContainSubstring(cliui.FailMark + " Embedding chunks"))
		Expect(out.String()).NotTo(ContainSubstring("Persisting index"))
	})

	It("fails when the documents directory is missing", func() {
		docsDir = filepath.Join(tmpDir, "missing")

		err := newCmd().Execute()
		Expect(err).To(MatchError(document.ErrRootNotFound))
	})

	It("rejects an overlap that is not smaller than the chunk size", func() {
		err := newCmd("--chunk-size", "100", "--chunk-overlap", "100").Execute()
		Expect(err).To(HaveOccurred())
	})
})
