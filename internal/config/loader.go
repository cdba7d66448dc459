package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/3leaps/perfgate/pkg/perfapi"
)

// EnvPrefix prefixes every environment variable perfgate reads.
const EnvPrefix = "PERFGATE_"

// ConfigFileEnv names an explicit config file, bypassing the user path.
const ConfigFileEnv = EnvPrefix + "CONFIG"

var (
	configMu  sync.RWMutex
	appConfig *Config
)

// EnvSpec maps one environment variable to a config key.
type EnvSpec struct {
	Name string
	Path string
}

func getEnvSpecs() []EnvSpec {
	return []EnvSpec{
		{Name: EnvPrefix + "API_KEY", Path: "api.key"},
		{Name: EnvPrefix + "ENDPOINT", Path: "api.endpoint"},
		{Name: EnvPrefix + "TIMEOUT", Path: "api.timeout"},
		{Name: EnvPrefix + "RATE_LIMIT", Path: "api.rate_limit"},
		{Name: EnvPrefix + "MAX_RETRIES", Path: "api.max_retries"},
		{Name: EnvPrefix + "RETRY_WAIT", Path: "api.retry_wait"},
		{Name: EnvPrefix + "LOG_LEVEL", Path: "logging.level"},
		{Name: EnvPrefix + "S3_REGION", Path: "artifacts.s3.region"},
		{Name: EnvPrefix + "S3_ENDPOINT", Path: "artifacts.s3.endpoint"},
		{Name: EnvPrefix + "S3_PROFILE", Path: "artifacts.s3.profile"},
		{Name: EnvPrefix + "S3_FORCE_PATH_STYLE", Path: "artifacts.s3.force_path_style"},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.endpoint", perfapi.DefaultEndpoint)
	v.SetDefault("api.timeout", perfapi.DefaultTimeout)
	v.SetDefault("api.rate_limit", 5.0)
	v.SetDefault("api.max_retries", perfapi.DefaultMaxRetries)
	v.SetDefault("api.retry_wait", perfapi.DefaultRetryWait)
	v.SetDefault("logging.level", "info")
	v.SetDefault("artifacts.s3.force_path_style", false)
}

// getUserConfigPaths returns candidate config files, most specific first.
func getUserConfigPaths() []string {
	if explicit := strings.TrimSpace(os.Getenv(ConfigFileEnv)); explicit != "" {
		return []string{explicit}
	}

	var paths []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "perfgate", "config.yaml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "perfgate", "config.yaml"))
	}
	return paths
}

// UserConfigDir returns the directory holding the user config file.
func UserConfigDir() string {
	paths := getUserConfigPaths()
	if len(paths) == 0 {
		return ""
	}
	return filepath.Dir(paths[0])
}

// Load builds the configuration and stores it for GetConfig.
//
// Each override map is nested by section, e.g.
// {"api": {"endpoint": "..."}}, and wins over every other source.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	for _, path := range getUserConfigPaths() {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) && os.Getenv(ConfigFileEnv) == "" {
				continue
			}
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		break
	}

	for _, spec := range getEnvSpecs() {
		if err := v.BindEnv(spec.Path, spec.Name); err != nil {
			return nil, fmt.Errorf("bind %s: %w", spec.Name, err)
		}
	}

	for _, o := range overrides {
		applyOverrides(v, "", o)
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configMu.Lock()
	appConfig = &cfg
	configMu.Unlock()

	return &cfg, nil
}

func applyOverrides(v *viper.Viper, prefix string, m map[string]any) {
	for key, val := range m {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			applyOverrides(v, path, nested)
			continue
		}
		v.Set(path, val)
	}
}

// GetConfig returns the most recently loaded configuration, or nil.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
