package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete tfrag configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Loader     LoaderConfig     `yaml:"loader" json:"loader"`
	Chunking   ChunkingConfig   `yaml:"chunking" json:"chunking"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	LLM        LLMConfig        `yaml:"llm" json:"llm"`
	Watch      WatchConfig      `yaml:"watch" json:"watch"`
	Server     ServerConfig     `yaml:"server" json:"server"`

	// ProjectDir is the directory Load was called with. Relative paths
	// resolve against it.
	ProjectDir string `yaml:"-" json:"-"`
}

// PathsConfig locates the document tree and the index state.
type PathsConfig struct {
	DataDir  string `yaml:"data_dir" json:"data_dir"`
	Manifest string `yaml:"manifest" json:"manifest"`
	StoreDir string `yaml:"store_dir" json:"store_dir"`
}

// LoaderConfig selects which files become documents.
type LoaderConfig struct {
	Extensions  []string `yaml:"extensions" json:"extensions"`
	Exclude     []string `yaml:"exclude" json:"exclude"`
	MaxFileSize int64    `yaml:"max_file_size" json:"max_file_size"`
}

// ChunkingConfig sizes chunks in characters (runes).
type ChunkingConfig struct {
	Size    int `yaml:"size" json:"size"`
	Overlap int `yaml:"overlap" json:"overlap"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "ollama" or "static".
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	Timeout    string `yaml:"timeout" json:"timeout"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	CacheSize  int    `yaml:"cache_size" json:"cache_size"`
	Workers    int    `yaml:"workers" json:"workers"`
}

// StoreConfig configures the vector store.
type StoreConfig struct {
	Collection string `yaml:"collection" json:"collection"`
	M          int    `yaml:"m" json:"m"`
	EfSearch   int    `yaml:"ef_search" json:"ef_search"`
}

// LLMConfig configures answer generation.
type LLMConfig struct {
	Host    string `yaml:"host" json:"host"`
	Model   string `yaml:"model" json:"model"`
	Timeout string `yaml:"timeout" json:"timeout"`
	TopK    int    `yaml:"top_k" json:"top_k"`
}

// WatchConfig configures `index --watch`.
type WatchConfig struct {
	Debounce string `yaml:"debounce" json:"debounce"`
}

// ServerConfig configures logging for long-running commands.
type ServerConfig struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
}

const (
	DefaultOllamaHost = "http://localhost:11434"
	DefaultCollection = "tf_docs"
)

var defaultExcludePatterns = []string{
	"**/.git/**",
	"**/.terraform/**",
	"**/node_modules/**",
}

// NewConfig creates a Config with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir:  "data",
			Manifest: filepath.Join("embeddings", "state.json"),
			StoreDir: "embeddings",
		},
		Loader: LoaderConfig{
			Extensions:  []string{".tf", ".tfvars", ".md"},
			Exclude:     append([]string(nil), defaultExcludePatterns...),
			MaxFileSize: 10 * 1024 * 1024,
		},
		Chunking: ChunkingConfig{
			Size:    500,
			Overlap: 100,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "ollama",
			Model:      "nomic-embed-text",
			OllamaHost: DefaultOllamaHost,
			Timeout:    "60s",
			BatchSize:  32,
			CacheSize:  1000,
			Workers:    min(runtime.NumCPU(), 4),
		},
		Store: StoreConfig{
			Collection: DefaultCollection,
			M:          16,
			EfSearch:   64,
		},
		LLM: LLMConfig{
			Host:    DefaultOllamaHost,
			Model:   "codellama",
			Timeout: "5m",
			TopK:    4,
		},
		Watch: WatchConfig{
			Debounce: "500ms",
		},
		Server: ServerConfig{
			LogLevel: "info",
		},
	}
}

// GetUserConfigPath returns the user configuration file, following XDG:
//   - $XDG_CONFIG_HOME/tfrag/config.yaml
//   - ~/.config/tfrag/config.yaml
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tfrag", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "tfrag", "config.yaml")
	}
	return filepath.Join(home, ".config", "tfrag", "config.yaml")
}

// Load loads configuration for the project in dir.
// Precedence, lowest to highest:
//  1. Defaults
//  2. User config (~/.config/tfrag/config.yaml)
//  3. Project config (.tfrag.yaml or .tfrag.yml in dir)
//  4. TFRAG_* environment variables, including those set by dir/.env
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("load user config: %w", err)
		}
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	// .env never overrides variables already present in the environment.
	if envPath := filepath.Join(dir, ".env"); fileExists(envPath) {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("load %s: %w", envPath, err)
		}
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve project dir: %w", err)
	}
	cfg.ProjectDir = abs
	return cfg, nil
}

func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".tfrag.yaml", ".tfrag.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith copies non-zero values from other into c. Exclude patterns are
// appended to the defaults rather than replacing them.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	setString(&c.Paths.DataDir, other.Paths.DataDir)
	setString(&c.Paths.Manifest, other.Paths.Manifest)
	setString(&c.Paths.StoreDir, other.Paths.StoreDir)

	if len(other.Loader.Extensions) > 0 {
		c.Loader.Extensions = other.Loader.Extensions
	}
	if len(other.Loader.Exclude) > 0 {
		c.Loader.Exclude = append(c.Loader.Exclude, other.Loader.Exclude...)
	}
	if other.Loader.MaxFileSize != 0 {
		c.Loader.MaxFileSize = other.Loader.MaxFileSize
	}

	setInt(&c.Chunking.Size, other.Chunking.Size)
	setInt(&c.Chunking.Overlap, other.Chunking.Overlap)

	setString(&c.Embeddings.Provider, other.Embeddings.Provider)
	setString(&c.Embeddings.Model, other.Embeddings.Model)
	setString(&c.Embeddings.OllamaHost, other.Embeddings.OllamaHost)
	setString(&c.Embeddings.Timeout, other.Embeddings.Timeout)
	setInt(&c.Embeddings.BatchSize, other.Embeddings.BatchSize)
	setInt(&c.Embeddings.CacheSize, other.Embeddings.CacheSize)
	setInt(&c.Embeddings.Workers, other.Embeddings.Workers)

	setString(&c.Store.Collection, other.Store.Collection)
	setInt(&c.Store.M, other.Store.M)
	setInt(&c.Store.EfSearch, other.Store.EfSearch)

	setString(&c.LLM.Host, other.LLM.Host)
	setString(&c.LLM.Model, other.LLM.Model)
	setString(&c.LLM.Timeout, other.LLM.Timeout)
	setInt(&c.LLM.TopK, other.LLM.TopK)

	setString(&c.Watch.Debounce, other.Watch.Debounce)
	setString(&c.Server.LogLevel, other.Server.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

// applyEnvOverrides applies TFRAG_* variables. Malformed numbers are ignored.
func (c *Config) applyEnvOverrides() {
	envString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}

	envString("TFRAG_DATA_DIR", &c.Paths.DataDir)
	envString("TFRAG_MANIFEST", &c.Paths.Manifest)
	envString("TFRAG_STORE_DIR", &c.Paths.StoreDir)
	envString("TFRAG_COLLECTION", &c.Store.Collection)

	if v := os.Getenv("TFRAG_EXTENSIONS"); v != "" {
		var exts []string
		for _, e := range strings.Split(v, ",") {
			if e = strings.TrimSpace(e); e != "" {
				exts = append(exts, e)
			}
		}
		c.Loader.Extensions = exts
	}
	envInt("TFRAG_CHUNK_SIZE", &c.Chunking.Size)
	envInt("TFRAG_CHUNK_OVERLAP", &c.Chunking.Overlap)

	// TFRAG_OLLAMA_HOST points both clients at one server; the specific
	// variables below win over it.
	if v := os.Getenv("TFRAG_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
		c.LLM.Host = v
	}
	envString("TFRAG_EMBEDDINGS_PROVIDER", &c.Embeddings.Provider)
	envString("TFRAG_EMBEDDINGS_MODEL", &c.Embeddings.Model)
	envString("TFRAG_EMBEDDINGS_HOST", &c.Embeddings.OllamaHost)
	envInt("TFRAG_WORKERS", &c.Embeddings.Workers)

	envString("TFRAG_LLM_HOST", &c.LLM.Host)
	envString("TFRAG_LLM_MODEL", &c.LLM.Model)
	envInt("TFRAG_TOP_K", &c.LLM.TopK)

	envString("TFRAG_LOG_LEVEL", &c.Server.LogLevel)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap <= 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be in (0, %d), got %d", c.Chunking.Size, c.Chunking.Overlap)
	}
	if len(c.Loader.Extensions) == 0 {
		return fmt.Errorf("loader.extensions must not be empty")
	}
	for _, ext := range c.Loader.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("loader.extensions entries must start with '.', got %q", ext)
		}
	}
	if c.LLM.TopK <= 0 {
		return fmt.Errorf("llm.top_k must be positive, got %d", c.LLM.TopK)
	}
	if c.Embeddings.Workers < 0 {
		return fmt.Errorf("embeddings.workers must be non-negative, got %d", c.Embeddings.Workers)
	}

	switch strings.ToLower(c.Embeddings.Provider) {
	case "ollama", "static":
	default:
		return fmt.Errorf("embeddings.provider must be 'ollama' or 'static', got %s", c.Embeddings.Provider)
	}

	for name, v := range map[string]string{
		"embeddings.timeout": c.Embeddings.Timeout,
		"llm.timeout":        c.LLM.Timeout,
		"watch.debounce":     c.Watch.Debounce,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	switch strings.ToLower(c.Server.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}
	return nil
}

// Resolve returns p made absolute against the project dir.
func (c *Config) Resolve(p string) string {
	if filepath.IsAbs(p) || c.ProjectDir == "" {
		return p
	}
	return filepath.Join(c.ProjectDir, p)
}

// DataDir returns the absolute document root.
func (c *Config) DataDir() string { return c.Resolve(c.Paths.DataDir) }

// ManifestPath returns the absolute manifest path.
func (c *Config) ManifestPath() string { return c.Resolve(c.Paths.Manifest) }

// LockPath returns the file used to serialize index runs.
func (c *Config) LockPath() string { return c.ManifestPath() + ".lock" }

// StorePath returns the SQLite database holding the collection.
func (c *Config) StorePath() string {
	return filepath.Join(c.Resolve(c.Paths.StoreDir), "tfrag.db")
}

// EmbedTimeout returns the per-request embedding timeout.
func (c *Config) EmbedTimeout() time.Duration { return mustDuration(c.Embeddings.Timeout) }

// LLMTimeout returns the generation timeout.
func (c *Config) LLMTimeout() time.Duration { return mustDuration(c.LLM.Timeout) }

// WatchDebounce returns the watcher coalescing window.
func (c *Config) WatchDebounce() time.Duration { return mustDuration(c.Watch.Debounce) }

// mustDuration parses a duration already checked by Validate.
func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// WriteYAML writes the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
