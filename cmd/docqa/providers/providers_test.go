package providers_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/docqa/cmd/docqa/providers"
	"github.com/papercomputeco/docqa/pkg/config"
	"github.com/papercomputeco/docqa/pkg/credentials"
	"github.com/papercomputeco/docqa/pkg/logger"
	"github.com/papercomputeco/docqa/pkg/vector"
)

var _ = Describe("Providers", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "docqa-providers-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { _ = os.RemoveAll(tmpDir) })
	})

	Describe("ResolveConfig", func() {
		var (
			cmd  *cobra.Command
			topK uint
		)

		BeforeEach(func() {
			cmd = &cobra.Command{Use: "test"}
			cmd.Flags().String("config-dir", "", "")
			config.AddUintFlag(cmd, config.Flags, config.FlagTopK, &topK)
		})

		It("layers config file and flags", func() {
			Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"),
				[]byte("[llm]\nmodel = \"mistral\"\n\n[retrieval]\ntop_k = 4\n"), 0o600)).To(Succeed())
			Expect(cmd.ParseFlags([]string{"--config-dir", tmpDir, "--top-k", "7"})).To(Succeed())

			cfg, err := providers.ResolveConfig(cmd, []string{config.FlagTopK})
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.LLM.Model).To(Equal("mistral"))
			Expect(cfg.Retrieval.TopK).To(Equal(uint(7)))
		})

		It("lets DOCQA_ environment variables override the file", func() {
			Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"),
				[]byte("[llm]\nmodel = \"mistral\"\n"), 0o600)).To(Succeed())
			GinkgoT().Setenv("DOCQA_LLM_MODEL", "phi3")
			Expect(cmd.ParseFlags([]string{"--config-dir", tmpDir})).To(Succeed())

			cfg, err := providers.ResolveConfig(cmd, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.LLM.Model).To(Equal("phi3"))
		})

		It("reads the vector store API key from the environment", func() {
			Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"),
				[]byte("[vector_store]\nprovider = \"qdrant\"\ntarget = \"qdrant.internal:6334\"\n"), 0o600)).To(Succeed())
			GinkgoT().Setenv("DOCQA_VECTOR_STORE_API_KEY", "qd-secret")
			Expect(cmd.ParseFlags([]string{"--config-dir", tmpDir})).To(Succeed())

			cfg, err := providers.ResolveConfig(cmd, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.VectorStore.APIKey).To(Equal("qd-secret"))

			opts, err := providers.VectorDriverOpts(cfg, tmpDir, vector.ModeLoad, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(opts.ProviderType).To(Equal("qdrant"))
			Expect(opts.TargetURL).To(Equal("qdrant.internal:6334"))
			Expect(opts.APIKey).To(Equal("qd-secret"))
		})

		It("rejects an overlap that is not smaller than the size", func() {
			Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"),
				[]byte("[chunking]\nsize = 100\noverlap = 100\n"), 0o600)).To(Succeed())
			Expect(cmd.ParseFlags([]string{"--config-dir", tmpDir})).To(Succeed())

			_, err := providers.ResolveConfig(cmd, nil)
			Expect(err).To(MatchError(config.ErrInvalidConfig))
		})
	})

	Describe("IndexPath", func() {
		It("prefers vector_store.path", func() {
			cfg := config.NewDefaultConfig()
			cfg.VectorStore.Path = "/data/index.sqlite"

			path, err := providers.IndexPath(cfg, tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(Equal("/data/index.sqlite"))
		})

		It("defaults to the .docqa directory", func() {
			path, err := providers.IndexPath(config.NewDefaultConfig(), tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(HaveSuffix(filepath.Join(filepath.Base(tmpDir), "index.sqlite")))
		})
	})

	Describe("NewEmbedder", func() {
		It("builds an ollama embedder without credentials", func() {
			embedder, err := providers.NewEmbedder(config.NewDefaultConfig(), tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(embedder.Close()).To(Succeed())
		})

		It("fails when an openai key cannot be resolved", func() {
			GinkgoT().Setenv("OPENAI_API_KEY", "")
			cfg, err := config.PresetConfig("openai")
			Expect(err).NotTo(HaveOccurred())

			_, err = providers.NewEmbedder(cfg, tmpDir)
			Expect(err).To(MatchError(credentials.ErrMissingCredentials))
		})

		It("uses stored credentials", func() {
			GinkgoT().Setenv("OPENAI_API_KEY", "")
			mgr, err := credentials.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(mgr.SetKey("openai", "sk-test")).To(Succeed())

			cfg, err := config.PresetConfig("openai")
			Expect(err).NotTo(HaveOccurred())

			embedder, err := providers.NewEmbedder(cfg, tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(embedder.Close()).To(Succeed())
		})
	})

	Describe("NewGenerator", func() {
		It("builds the default ollama generator", func() {
			generator, err := providers.NewGenerator(config.NewDefaultConfig(), tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(generator.Close()).To(Succeed())
		})

		It("rejects unknown providers", func() {
			cfg := config.NewDefaultConfig()
			cfg.LLM.Provider = "unknown"

			_, err := providers.NewGenerator(cfg, tmpDir)
			Expect(err).To(MatchError(ContainSubstring("unsupported llm provider")))
		})
	})

	Describe("NewVectorDriver", func() {
		It("opens a sqlite index inside the config directory", func() {
			cfg := config.NewDefaultConfig()
			cfg.Embedding.Dimensions = 3

			driver, err := providers.NewVectorDriver(context.Background(), cfg, tmpDir, vector.ModeBuild, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(driver.Close()).To(Succeed())
		})

		It("cannot load a memory index", func() {
			cfg := config.NewDefaultConfig()
			cfg.VectorStore.Provider = "memory"

			_, err := providers.NewVectorDriver(context.Background(), cfg, tmpDir, vector.ModeLoad, logger.Nop())
			Expect(err).To(MatchError(vector.ErrIndexNotFound))
		})
	})

	Describe("IndexTarget", func() {
		It("names the sqlite file", func() {
			Expect(providers.IndexTarget(config.NewDefaultConfig(), tmpDir)).To(HavePrefix("sqlite:"))
		})

		It("names remote collections", func() {
			cfg := config.NewDefaultConfig()
			cfg.VectorStore.Provider = "qdrant"
			Expect(providers.IndexTarget(cfg, tmpDir)).To(Equal("qdrant:docqa"))
		})
	})

	Describe("NewPublisher", func() {
		It("defaults to the nop publisher", func() {
			publisher, err := providers.NewPublisher(config.NewDefaultConfig())
			Expect(err).NotTo(HaveOccurred())
			Expect(publisher.Close()).To(Succeed())
		})
	})
})
