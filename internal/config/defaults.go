package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.AppName == "" {
		cfg.AppName = "docquery"
	}
	if cfg.AppVersion == "" {
		cfg.AppVersion = "0.1.0"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.Concurrency == 0 {
		cfg.Server.Concurrency = 10
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "mistral-small-latest"
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.mistral.ai/v1"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "mistral-embed"
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "https://api.mistral.ai/v1"
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = cfg.LLM.APIKey
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1024
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Vector.Backend == "" {
		cfg.Vector.Backend = "memory"
	}
	if cfg.Vector.SnapshotPath == "" {
		cfg.Vector.SnapshotPath = "./data/vectors.bin"
	}
	if cfg.Vector.IndexName == "" {
		cfg.Vector.IndexName = "pdf_documents"
	}
	if cfg.Vector.RedisAddr == "" {
		cfg.Vector.RedisAddr = "localhost:6379"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "./data/catalog.db"
	}
	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = "./uploads"
	}
	if cfg.Storage.MaxUploadBytes == 0 {
		cfg.Storage.MaxUploadBytes = 10 * 1024 * 1024
	}
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = 500
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = 50
	}
	if cfg.RAG.DefaultTopK == 0 {
		cfg.RAG.DefaultTopK = 5
	}
	if cfg.RAG.MaxTopK == 0 {
		cfg.RAG.MaxTopK = 20
	}
	if cfg.RAG.HighConfidence == 0 {
		cfg.RAG.HighConfidence = 0.75
	}
	if cfg.RAG.MediumConfidence == 0 {
		cfg.RAG.MediumConfidence = 0.5
	}
	if cfg.RAG.MaxPromptChars == 0 {
		cfg.RAG.MaxPromptChars = 12000
	}
	if cfg.RAG.SnippetLength == 0 {
		cfg.RAG.SnippetLength = 200
	}
}
