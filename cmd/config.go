package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/joescharf/codeguardian/internal/config"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	return config.DefaultDir()
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage codeguardian configuration.

Running bare 'codeguardian config' is the same as 'codeguardian config show'.
Every key can be overridden with a CODEGUARDIAN_ environment variable,
e.g. CODEGUARDIAN_LLM_PROVIDER=anthropic.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# codeguardian configuration
# See: codeguardian config show (for effective values and sources)

# State/data directory (default: ~/.config/codeguardian)
# state_dir: {{ .StateDir }}

# SQLite database path, used when history.backend is "sqlite"
# db_path: {{ .DBPath }}

llm:
  # Provider: "gemini" or "anthropic"
  provider: "{{ .Provider }}"
  # Per-review deadline, including retries
  timeout: {{ .Timeout }}
  # Retries for rate limits (429) and server errors (5xx)
  max_retries: {{ .MaxRetries }}
  max_tokens: {{ .MaxTokens }}

anthropic:
  # Falls back to $ANTHROPIC_API_KEY
  api_key: ""
  model: "{{ .AnthropicModel }}"

gemini:
  # Falls back to $GOOGLE_API_KEY, then $GEMINI_API_KEY
  api_key: ""
  model: "{{ .GeminiModel }}"

server:
  port: {{ .Port }}

history:
  # "memory" keeps scores per browser session until the server stops;
  # "sqlite" persists them in db_path.
  backend: "{{ .HistoryBackend }}"
  # Maximum entries per session for the memory backend (0 = unbounded)
  capacity: {{ .HistoryCapacity }}
  # Browser sessions idle for longer are ended (0 = never)
  session_ttl: "{{ .SessionTTL }}"

scoring:
  # Optional YAML file replacing the built-in keyword weights
  weights_file: "{{ .WeightsFile }}"
`

type configTemplateData struct {
	StateDir        string
	DBPath          string
	Provider        string
	Timeout         string
	MaxRetries      int
	MaxTokens       int
	AnthropicModel  string
	GeminiModel     string
	Port            int
	HistoryBackend  string
	HistoryCapacity int
	SessionTTL      string
	WeightsFile     string
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		StateDir:        viper.GetString("state_dir"),
		DBPath:          viper.GetString("db_path"),
		Provider:        viper.GetString("llm.provider"),
		Timeout:         viper.GetDuration("llm.timeout").String(),
		MaxRetries:      viper.GetInt("llm.max_retries"),
		MaxTokens:       viper.GetInt("llm.max_tokens"),
		AnthropicModel:  viper.GetString("anthropic.model"),
		GeminiModel:     viper.GetString("gemini.model"),
		Port:            viper.GetInt("server.port"),
		HistoryBackend:  viper.GetString("history.backend"),
		HistoryCapacity: viper.GetInt("history.capacity"),
		SessionTTL:      viper.GetDuration("history.session_ttl").String(),
		WeightsFile:     viper.GetString("scoring.weights_file"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeyInfo describes a config key for display purposes.
type configKeyInfo struct {
	Key      string
	EnvVar   string
	Secret   bool
	Fallback string // vendor env var consulted when the key is empty
}

var configKeys = []configKeyInfo{
	{Key: "state_dir", EnvVar: "CODEGUARDIAN_STATE_DIR"},
	{Key: "db_path", EnvVar: "CODEGUARDIAN_DB_PATH"},
	{Key: "llm.provider", EnvVar: "CODEGUARDIAN_LLM_PROVIDER"},
	{Key: "llm.timeout", EnvVar: "CODEGUARDIAN_LLM_TIMEOUT"},
	{Key: "llm.max_retries", EnvVar: "CODEGUARDIAN_LLM_MAX_RETRIES"},
	{Key: "llm.max_tokens", EnvVar: "CODEGUARDIAN_LLM_MAX_TOKENS"},
	{Key: "anthropic.api_key", EnvVar: "CODEGUARDIAN_ANTHROPIC_API_KEY", Secret: true, Fallback: "ANTHROPIC_API_KEY"},
	{Key: "anthropic.model", EnvVar: "CODEGUARDIAN_ANTHROPIC_MODEL"},
	{Key: "gemini.api_key", EnvVar: "CODEGUARDIAN_GEMINI_API_KEY", Secret: true, Fallback: "GOOGLE_API_KEY"},
	{Key: "gemini.model", EnvVar: "CODEGUARDIAN_GEMINI_MODEL"},
	{Key: "server.port", EnvVar: "CODEGUARDIAN_SERVER_PORT"},
	{Key: "history.backend", EnvVar: "CODEGUARDIAN_HISTORY_BACKEND"},
	{Key: "history.capacity", EnvVar: "CODEGUARDIAN_HISTORY_CAPACITY"},
	{Key: "history.session_ttl", EnvVar: "CODEGUARDIAN_HISTORY_SESSION_TTL"},
	{Key: "scoring.weights_file", EnvVar: "CODEGUARDIAN_SCORING_WEIGHTS_FILE"},
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		val := viper.Get(k.Key)
		source := detectSource(k.Key, k.EnvVar, fileValues)
		if k.Fallback != "" && viper.GetString(k.Key) == "" {
			if v, ok := os.LookupEnv(k.Fallback); ok && v != "" {
				val = v
				source = fmt.Sprintf("(env: %s)", k.Fallback)
			}
		}
		if k.Secret {
			val = maskSecret(fmt.Sprint(val))
		}
		fmt.Fprintf(ui.Out, "  %-22s %v  %s\n", k.Key, val, source)
	}

	if _, err := loadConfig(); err != nil {
		fmt.Fprintln(ui.Out)
		ui.Warning("%v", err)
	}
	return nil
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

// maskSecret hides all but the last four characters of a credential.
func maskSecret(s string) string {
	if s == "" {
		return `""`
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set; set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'codeguardian config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
