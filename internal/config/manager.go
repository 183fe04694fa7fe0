package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Preferences holds the user's persistent provider configuration. When a
// preferences file exists it takes precedence over the shell environment.
type Preferences struct {
	LLMProvider string `json:"llm_provider,omitempty"` // deepseek, openai, anthropic
	APIKey      string `json:"api_key,omitempty"`      // The API key for the selected provider
	Model       string `json:"model,omitempty"`        // Default model name
	BaseURL     string `json:"base_url,omitempty"`     // Optional override for API base URL
}

// Manager handles loading and saving the preferences file.
type Manager struct {
	configDir string
}

// NewManager creates a new preferences manager rooted at the user's
// config directory.
func NewManager() (*Manager, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user config dir: %w", err)
	}

	return &Manager{
		configDir: filepath.Join(configDir, "causette"),
	}, nil
}

// PreferencesPath returns the absolute path to the config.json file.
func (m *Manager) PreferencesPath() string {
	return filepath.Join(m.configDir, "config.json")
}

// Load reads the preferences from disk.
// If the file does not exist, it returns empty Preferences and no error.
func (m *Manager) Load() (*Preferences, error) {
	path := m.PreferencesPath()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &Preferences{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var prefs Preferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		return nil, fmt.Errorf("failed to parse config json: %w", err)
	}

	return &prefs, nil
}

// Save writes the preferences to disk with restricted permissions; the
// file may carry an API key.
func (m *Manager) Save(prefs *Preferences) error {
	if err := os.MkdirAll(m.configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.PreferencesPath(), data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Exists checks if the preferences file has been created.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.PreferencesPath())
	return !os.IsNotExist(err)
}

// ApplyEnv projects the preferences into the environment variables the
// gateway factory reads. Empty fields leave the environment untouched.
func (p *Preferences) ApplyEnv() {
	if p.LLMProvider != "" {
		os.Setenv("LLM_PROVIDER", p.LLMProvider)
	}
	if p.APIKey == "" {
		return
	}
	switch p.LLMProvider {
	case "openai":
		os.Setenv("OPENAI_API_KEY", p.APIKey)
		if p.Model != "" {
			os.Setenv("OPENAI_MODEL", p.Model)
		}
		if p.BaseURL != "" {
			os.Setenv("OPENAI_BASE_URL", p.BaseURL)
		}
	case "anthropic":
		os.Setenv("ANTHROPIC_API_KEY", p.APIKey)
		if p.Model != "" {
			os.Setenv("ANTHROPIC_MODEL", p.Model)
		}
	default:
		os.Setenv("DEEPSEEK_API_KEY", p.APIKey)
		if p.Model != "" {
			os.Setenv("DEEPSEEK_MODEL", p.Model)
		}
		if p.BaseURL != "" {
			os.Setenv("DEEPSEEK_BASE_URL", p.BaseURL)
		}
	}
}
