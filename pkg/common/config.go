package common

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	kjson "github.com/knadh/koanf/parsers/json"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const configPathEnv = "CONFIG_PATH"

// defaultConfig holds baseline settings applied before any config file
var defaultConfig = []byte(`
mode: local
prettyLogs: true
gateway:
  http:
    host: 0.0.0.0
    port: 1994
    cors:
      allowedOrigins: ["*"]
      allowedHeaders: ["*"]
      allowedMethods: ["GET", "POST", "DELETE", "OPTIONS"]
sources:
  enableAgentSources: true
  lookupLimit: 10
  aggregateLimit: 50
`)

// ConfigManager loads typed configuration from defaults plus an optional
// YAML or JSON file pointed at by CONFIG_PATH.
type ConfigManager[T any] struct {
	k      *koanf.Koanf
	config T
}

// NewConfigManager creates a config manager and eagerly loads config
func NewConfigManager[T any]() (*ConfigManager[T], error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider(defaultConfig), kyaml.Parser()); err != nil {
		return nil, fmt.Errorf("load default config: %w", err)
	}

	if path := os.Getenv(configPathEnv); path != "" {
		parser := koanf.Parser(kyaml.Parser())
		if strings.HasSuffix(path, ".json") {
			parser = kjson.Parser()
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	cm := &ConfigManager[T]{k: k}
	if err := cm.unmarshal(); err != nil {
		return nil, err
	}
	return cm, nil
}

// LoadConfig merges raw YAML bytes over the current configuration.
// Used by tests to override specific settings.
func (cm *ConfigManager[T]) LoadConfig(raw []byte) error {
	if err := cm.k.Load(rawbytes.Provider(raw), kyaml.Parser()); err != nil {
		return fmt.Errorf("load config overlay: %w", err)
	}
	return cm.unmarshal()
}

// GetConfig returns the loaded configuration
func (cm *ConfigManager[T]) GetConfig() T {
	return cm.config
}

func (cm *ConfigManager[T]) unmarshal() error {
	var cfg T
	err := cm.k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "key",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.TextUnmarshallerHookFunc(),
			),
			Result:           &cfg,
			WeaklyTypedInput: true,
			Squash:           true,
		},
	})
	if err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	cm.config = cfg
	return nil
}
