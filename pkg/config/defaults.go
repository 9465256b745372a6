package config

const (
	defaultOllamaTarget = "http://localhost:11434"
	defaultAPIListen    = ":8000"

	defaultClientAPITarget = "http://localhost:8000"

	defaultDocumentsRoot = "documents"

	defaultChunkSize    = 1000
	defaultChunkOverlap = 200

	defaultVectorProvider   = "sqlite"
	defaultVectorCollection = "docqa"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768
	defaultEmbeddingBatchSize  = 64

	defaultLLMProvider    = "ollama"
	defaultLLMModel       = "llama3.2"
	defaultLLMTemperature = 0.1

	defaultTopK = 3

	defaultEventStreamProvider = "nop"
	defaultEventStreamTopic    = "docqa.events"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Documents: DocumentsConfig{
			Root: defaultDocumentsRoot,
		},
		Chunking: ChunkingConfig{
			Size:    defaultChunkSize,
			Overlap: defaultChunkOverlap,
		},
		VectorStore: VectorStoreConfig{
			Provider:   defaultVectorProvider,
			Collection: defaultVectorCollection,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultOllamaTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
			BatchSize:  defaultEmbeddingBatchSize,
		},
		LLM: LLMConfig{
			Provider:    defaultLLMProvider,
			Target:      defaultOllamaTarget,
			Model:       defaultLLMModel,
			Temperature: defaultLLMTemperature,
		},
		Retrieval: RetrievalConfig{
			TopK: defaultTopK,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
			Topic:    defaultEventStreamTopic,
		},
	}
}
