// internal/workers/dialogue/document-loader/config.go
package documentloader

type Config struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
	// Dimension is used when the index reports no dimension yet.
	Dimension  int
	Namespace  string
	Extensions []string
}

func LoadConfig() *Config {
	return &Config{
		ChunkSize:    1000,
		ChunkOverlap: 200,
		BatchSize:    100,
		Dimension:    768,
		Namespace:    "default",
		Extensions:   []string{".txt", ".md", ".markdown"},
	}
}
