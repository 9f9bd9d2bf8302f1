package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/threadline-ai/threadline/pkg/types"
)

// Load loads configuration from multiple sources (priority order):
// 1. Global config (~/.config/threadline/)
// 2. Project config (threadline.{json,jsonc,yaml} in the directory)
// 3. THREADLINE_CONFIG file
// 4. THREADLINE_CONFIG_CONTENT inline JSON
// 5. Environment variables
func Load(directory string) (*types.Config, error) {
	config := &types.Config{
		Auth: types.AuthConfig{
			OAuth: make(map[string]types.OAuthProviderConfig),
		},
		Tools: make(map[string]types.ToolServerConfig),
	}

	// Track loaded files to avoid duplicates
	loaded := make(map[string]bool)

	loadOnce := func(path string, baseDir string) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return
		}
		if loaded[absPath] {
			return
		}
		if loadConfigFile(path, config, baseDir) == nil {
			loaded[absPath] = true
		}
	}

	// 1. Global config
	globalPath := GetPaths().Config
	for _, name := range configFileNames {
		loadOnce(filepath.Join(globalPath, name), globalPath)
	}

	// 2. Project config
	if directory != "" {
		for _, name := range configFileNames {
			loadOnce(filepath.Join(directory, name), directory)
		}
	}

	// 3. THREADLINE_CONFIG file override
	if configPath := os.Getenv("THREADLINE_CONFIG"); configPath != "" {
		loadOnce(configPath, filepath.Dir(configPath))
	}

	// 4. THREADLINE_CONFIG_CONTENT inline JSON
	if configContent := os.Getenv("THREADLINE_CONFIG_CONTENT"); configContent != "" {
		var inlineConfig types.Config
		if err := json.Unmarshal([]byte(configContent), &inlineConfig); err == nil {
			mergeConfig(config, &inlineConfig)
		}
	}

	// 5. Environment variables (highest priority)
	applyEnvOverrides(config)

	applyDefaults(config)

	return config, nil
}

var configFileNames = []string{
	"threadline.json",
	"threadline.jsonc",
	"threadline.yaml",
	"threadline.yml",
}

// loadConfigFile loads a single config file with interpolation support.
func loadConfigFile(path string, config *types.Config, baseDir string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err // File doesn't exist, skip
	}

	var fileConfig types.Config
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fileConfig); err != nil {
			return err
		}
	default:
		// Strip JSONC comments, then interpolate placeholders
		data = jsonc.ToJSON(data)
		data = interpolate(data, baseDir)
		if err := json.Unmarshal(data, &fileConfig); err != nil {
			return err
		}
	}

	mergeConfig(config, &fileConfig)
	return nil
}

// interpolate processes {env:VAR} and {file:path} placeholders.
func interpolate(data []byte, baseDir string) []byte {
	str := string(data)

	// Handle {env:VAR_NAME} placeholders
	envPattern := regexp.MustCompile(`\{env:([^}]+)\}`)
	str = envPattern.ReplaceAllStringFunc(str, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})

	// Handle {file:path} placeholders
	filePattern := regexp.MustCompile(`\{file:([^}]+)\}`)
	str = filePattern.ReplaceAllStringFunc(str, func(match string) string {
		filePath := filePattern.FindStringSubmatch(match)[1]

		if strings.HasPrefix(filePath, "~/") {
			home := os.Getenv("HOME")
			filePath = filepath.Join(home, filePath[2:])
		} else if !filepath.IsAbs(filePath) {
			filePath = filepath.Join(baseDir, filePath)
		}

		content, err := os.ReadFile(filePath)
		if err != nil {
			return match // Keep original if file not found
		}

		// Escape for JSON string
		escaped := strings.ReplaceAll(string(content), "\\", "\\\\")
		escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
		escaped = strings.ReplaceAll(escaped, "\n", "\\n")
		escaped = strings.ReplaceAll(escaped, "\r", "\\r")
		escaped = strings.ReplaceAll(escaped, "\t", "\\t")

		return escaped
	})

	return []byte(str)
}

// mergeConfig merges source config into target.
func mergeConfig(target, source *types.Config) {
	if source.Schema != "" {
		target.Schema = source.Schema
	}

	if source.Server.Port != 0 {
		target.Server.Port = source.Server.Port
	}
	if source.Server.CleanupDelaySeconds != 0 {
		target.Server.CleanupDelaySeconds = source.Server.CleanupDelaySeconds
	}

	if source.Auth.Secret != "" {
		target.Auth.Secret = source.Auth.Secret
	}
	if source.Auth.ForceLogin {
		target.Auth.ForceLogin = true
	}
	if source.Auth.TokenTTLSeconds != 0 {
		target.Auth.TokenTTLSeconds = source.Auth.TokenTTLSeconds
	}
	if source.Auth.CookieSecure {
		target.Auth.CookieSecure = true
	}
	if source.Auth.OAuth != nil {
		if target.Auth.OAuth == nil {
			target.Auth.OAuth = make(map[string]types.OAuthProviderConfig)
		}
		for k, v := range source.Auth.OAuth {
			target.Auth.OAuth[k] = v
		}
	}

	if source.UI.DefaultTheme != "" {
		target.UI.DefaultTheme = source.UI.DefaultTheme
	}
	if source.UI.LoginPageImage != "" {
		target.UI.LoginPageImage = source.UI.LoginPageImage
	}
	if source.UI.LoginPageImageFilter != "" {
		target.UI.LoginPageImageFilter = source.UI.LoginPageImageFilter
	}
	if source.UI.LoginPageImageDarkFilter != "" {
		target.UI.LoginPageImageDarkFilter = source.UI.LoginPageImageDarkFilter
	}

	if source.Files.Directory != "" {
		target.Files.Directory = source.Files.Directory
	}

	if source.Tools != nil {
		if target.Tools == nil {
			target.Tools = make(map[string]types.ToolServerConfig)
		}
		for k, v := range source.Tools {
			target.Tools[k] = v
		}
	}
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(config *types.Config) {
	if secret := os.Getenv("THREADLINE_AUTH_SECRET"); secret != "" {
		config.Auth.Secret = secret
	}
	if os.Getenv("THREADLINE_FORCE_LOGIN") != "" {
		config.Auth.ForceLogin = true
	}
	if dir := os.Getenv("THREADLINE_FILES_DIR"); dir != "" {
		config.Files.Directory = dir
	}
	if port := os.Getenv("THREADLINE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
}

// applyDefaults fills fields left unset by every source.
func applyDefaults(config *types.Config) {
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.CleanupDelaySeconds == 0 {
		config.Server.CleanupDelaySeconds = 120
	}
	if config.Auth.TokenTTLSeconds == 0 {
		config.Auth.TokenTTLSeconds = 15 * 24 * 60 * 60
	}
	if config.UI.DefaultTheme == "" {
		config.UI.DefaultTheme = "dark"
	}
	if config.Files.Directory == "" {
		config.Files.Directory = GetPaths().FilesPath()
	}
}

// Save saves the configuration to a file.
func Save(config *types.Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
