package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/dyike/cortexdesk/consts"
)

type Config struct {
	ProjectDir   string `json:"project_dir"`
	ResultsDir   string `json:"results_dir"`
	DataDir      string `json:"data_dir"`
	DataCacheDir string `json:"data_cache_dir"`
	DBPath       string `json:"db_path"`

	LLMProvider    string `json:"llm_provider"`
	DeepThinkLLM   string `json:"deep_think_llm"`
	QuickThinkLLM  string `json:"quick_think_llm"`
	BackendURL     string `json:"backend_url"`
	EmbeddingModel string `json:"embedding_model"`
	MaxTokens      int    `json:"max_tokens"`

	MaxDebateRounds      int `json:"max_debate_rounds"`
	MaxRiskDiscussRounds int `json:"max_risk_rounds"`
	MaxRecurLimit        int `json:"max_recursion_limit"`
	MaxToolRounds        int `json:"max_tool_rounds"`
	SignalMaxAttempts    int `json:"signal_max_attempts"`
	LLMMaxRetries        int `json:"llm_max_retries"`
	BatchConcurrency     int `json:"batch_concurrency"`

	SelectedAnalysts []string `json:"selected_analysts"`
	OnlineTools      bool     `json:"online_tools"`
	Debug            bool     `json:"debug"`
	CacheEnabled     bool     `json:"cache_enabled"`

	// Eino Debug configuration
	EinoDebugEnabled bool `json:"eino_debug_enabled"`
	EinoDebugPort    int  `json:"eino_debug_port"`

	// Longport API Configuration
	LongportAppKey      string `json:"longport_app_key"`
	LongportAppSecret   string `json:"longport_app_secret"`
	LongportAccessToken string `json:"longport_access_token"`

	// AI Model API Keys
	OpenAIAPIKey   string `json:"openai_api_key"`
	DeepSeekAPIKey string `json:"deepseek_api_key"`

	// Market/Social data API keys
	FinnhubAPIKey   string `json:"finnhub_api_key"`
	RedditClientID  string `json:"reddit_client_id"`
	RedditSecret    string `json:"reddit_secret"`
	RedditUserAgent string `json:"reddit_user_agent"`
}

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()

	cfg := DefaultConfigWithRoot(currentDir)

	// Load environment variables from .env file
	_ = godotenv.Load()

	// Override with environment variables if they exist
	cfg.loadFromEnv()

	return cfg
}

// DefaultConfigWithRoot returns defaults with every directory rooted at root.
// Environment variables are not consulted.
func DefaultConfigWithRoot(root string) *Config {
	return &Config{
		ProjectDir:   root,
		ResultsDir:   filepath.Join(root, "results"),
		DataDir:      filepath.Join(root, "data"),
		DataCacheDir: filepath.Join(root, "data", "cache"),
		DBPath:       filepath.Join(root, "data", "cortexdesk.db"),

		LLMProvider:    "openai",
		DeepThinkLLM:   "o4-mini",
		QuickThinkLLM:  "gpt-4o-mini",
		BackendURL:     "https://api.openai.com/v1",
		EmbeddingModel: "text-embedding-3-small",
		MaxTokens:      8192,

		MaxDebateRounds:      1,
		MaxRiskDiscussRounds: 1,
		MaxRecurLimit:        100,
		MaxToolRounds:        8,
		SignalMaxAttempts:    2,
		LLMMaxRetries:        3,
		BatchConcurrency:     1,

		SelectedAnalysts: append([]string(nil), consts.DefaultAnalysts...),
		OnlineTools:      true,
		CacheEnabled:     true,
		RedditUserAgent:  "cortexdesk/1.0",

		EinoDebugPort: 52538,
	}
}

func (c *Config) loadFromEnv() {
	setString := func(key string, dst *string) {
		if val := os.Getenv(key); val != "" {
			*dst = val
		}
	}
	setBool := func(key string, dst *bool) {
		if val := os.Getenv(key); val != "" {
			if v, err := strconv.ParseBool(val); err == nil {
				*dst = v
			}
		}
	}
	setInt := func(key string, dst *int) {
		if val := os.Getenv(key); val != "" {
			if v, err := strconv.Atoi(val); err == nil {
				*dst = v
			}
		}
	}

	setString("PROJECT_DIR", &c.ProjectDir)
	setString("RESULTS_DIR", &c.ResultsDir)
	setString("DATA_DIR", &c.DataDir)
	setString("DATA_CACHE_DIR", &c.DataCacheDir)
	setString("CORTEXDESK_DB_PATH", &c.DBPath)

	setString("LLM_PROVIDER", &c.LLMProvider)
	setString("DEEP_THINK_LLM", &c.DeepThinkLLM)
	setString("QUICK_THINK_LLM", &c.QuickThinkLLM)
	setString("BACKEND_URL", &c.BackendURL)
	setString("EMBEDDING_MODEL", &c.EmbeddingModel)
	setInt("MAX_TOKENS", &c.MaxTokens)

	setBool("CACHE_ENABLED", &c.CacheEnabled)
	setBool("ONLINE_TOOLS", &c.OnlineTools)
	setInt("MAX_DEBATE_ROUNDS", &c.MaxDebateRounds)
	setInt("MAX_RISK_ROUNDS", &c.MaxRiskDiscussRounds)
	setInt("MAX_RECURSION_LIMIT", &c.MaxRecurLimit)
	setInt("MAX_TOOL_ROUNDS", &c.MaxToolRounds)
	setInt("SIGNAL_MAX_ATTEMPTS", &c.SignalMaxAttempts)
	setInt("LLM_MAX_RETRIES", &c.LLMMaxRetries)
	setBool("CORTEXDESK_DEBUG", &c.Debug)

	if val := os.Getenv("SELECTED_ANALYSTS"); val != "" {
		c.SelectedAnalysts = ParseAnalysts(val)
	}

	setBool("EINO_DEBUG_ENABLED", &c.EinoDebugEnabled)
	setInt("EINO_DEBUG_PORT", &c.EinoDebugPort)

	setString("LONGPORT_APP_KEY", &c.LongportAppKey)
	setString("LONGPORT_APP_SECRET", &c.LongportAppSecret)
	setString("LONGPORT_ACCESS_TOKEN", &c.LongportAccessToken)

	setString("OPENAI_API_KEY", &c.OpenAIAPIKey)
	setString("DEEPSEEK_API_KEY", &c.DeepSeekAPIKey)
	setString("FINNHUB_API_KEY", &c.FinnhubAPIKey)
	setString("REDDIT_CLIENT_ID", &c.RedditClientID)
	setString("REDDIT_SECRET", &c.RedditSecret)
	setString("REDDIT_USER_AGENT", &c.RedditUserAgent)
}

// LoadFile reads a JSON config file. Fields the file omits keep their
// defaults, with directories rooted next to the file, and credentials come
// from .env and the environment.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfigWithRoot(filepath.Dir(path))
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.FillSecretsFromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// FillSecretsFromEnv sets credentials a config file left empty from .env and
// the environment. Config files are written without secrets.
func (c *Config) FillSecretsFromEnv() {
	_ = godotenv.Load()
	for env, dst := range c.secrets() {
		if *dst == "" {
			*dst = os.Getenv(env)
		}
	}
}

// WithoutSecrets returns a copy with every credential cleared.
func (c *Config) WithoutSecrets() *Config {
	cp := c.Clone()
	for _, dst := range cp.secrets() {
		*dst = ""
	}
	return cp
}

func (c *Config) secrets() map[string]*string {
	return map[string]*string{
		"OPENAI_API_KEY":        &c.OpenAIAPIKey,
		"DEEPSEEK_API_KEY":      &c.DeepSeekAPIKey,
		"FINNHUB_API_KEY":       &c.FinnhubAPIKey,
		"REDDIT_CLIENT_ID":      &c.RedditClientID,
		"REDDIT_SECRET":         &c.RedditSecret,
		"LONGPORT_APP_KEY":      &c.LongportAppKey,
		"LONGPORT_APP_SECRET":   &c.LongportAppSecret,
		"LONGPORT_ACCESS_TOKEN": &c.LongportAccessToken,
	}
}

// ParseAnalysts splits a comma separated analyst list, dropping blanks.
func ParseAnalysts(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) Validate() error {
	var errs []error
	if c.MaxDebateRounds < 0 {
		errs = append(errs, fmt.Errorf("max_debate_rounds must be >= 0, got %d", c.MaxDebateRounds))
	}
	if c.MaxRiskDiscussRounds < 0 {
		errs = append(errs, fmt.Errorf("max_risk_rounds must be >= 0, got %d", c.MaxRiskDiscussRounds))
	}
	if c.MaxRecurLimit <= 0 {
		errs = append(errs, fmt.Errorf("max_recursion_limit must be positive, got %d", c.MaxRecurLimit))
	}
	if c.MaxToolRounds <= 0 {
		errs = append(errs, fmt.Errorf("max_tool_rounds must be positive, got %d", c.MaxToolRounds))
	}
	if c.SignalMaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("signal_max_attempts must be positive, got %d", c.SignalMaxAttempts))
	}
	switch c.LLMProvider {
	case "openai", "deepseek", "ollama", "openrouter":
	default:
		errs = append(errs, fmt.Errorf("unsupported llm_provider %q", c.LLMProvider))
	}
	if len(c.SelectedAnalysts) == 0 {
		errs = append(errs, errors.New("at least one analyst must be selected"))
	}
	seen := make(map[string]bool)
	for _, a := range c.SelectedAnalysts {
		switch a {
		case consts.AnalystMarket, consts.AnalystSocial, consts.AnalystNews, consts.AnalystFundamentals:
		default:
			errs = append(errs, fmt.Errorf("unknown analyst %q", a))
		}
		if seen[a] {
			errs = append(errs, fmt.Errorf("analyst %q selected twice", a))
		}
		seen[a] = true
	}
	return errors.Join(errs...)
}

// APIKey returns the key matching the configured provider.
func (c *Config) APIKey() string {
	if c.LLMProvider == "deepseek" && c.DeepSeekAPIKey != "" {
		return c.DeepSeekAPIKey
	}
	return c.OpenAIAPIKey
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.ProjectDir, c.ResultsDir, c.DataDir, c.DataCacheDir}
	if c.DBPath != "" {
		dirs = append(dirs, filepath.Dir(c.DBPath))
	}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}

// Clone returns a deep copy safe to mutate per run.
func (c *Config) Clone() *Config {
	cp := *c
	cp.SelectedAnalysts = append([]string(nil), c.SelectedAnalysts...)
	return &cp
}
