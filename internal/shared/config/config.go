package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"

	"proxyrotation/internal/shared/types"
)

// Load 构建最终配置：默认值 -> ini 文件 -> .env / 环境变量。
// fileName 为空或文件不存在时只使用默认值。
func Load(fileName string) (*types.Config, error) {
	cfg := types.NewDefaultConfig()
	if fileName != "" {
		if err := LoadIni(cfg, fileName); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config file '%s': %w", fileName, err)
		}
	}

	// .env is optional.
	_ = godotenv.Load()
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadIni maps an .ini file onto cfg. Keys absent from the file keep their current value.
func LoadIni(cfg *types.Config, fileName string) error {
	if _, err := os.Stat(fileName); err != nil {
		return err
	}
	iniFile, err := ini.Load(fileName)
	if err != nil {
		return err
	}
	return iniFile.MapTo(cfg)
}

// ApplyEnv overrides selected keys from the environment. A value that cannot be
// parsed is an error, not a silent fallback.
func ApplyEnv(cfg *types.Config) error {
	if err := overrideFromEnvInt(&cfg.MaxConcurrency, "PROXY_MAX_CONCURRENCY"); err != nil {
		return err
	}
	if err := overrideFromEnvInt(&cfg.PoolConf.TimeoutSeconds, "PROXY_TIMEOUT"); err != nil {
		return err
	}
	overrideFromEnvString(&cfg.ValidationTarget, "PROXY_VALIDATION_TARGET")
	overrideFromEnvString(&cfg.File, "PROXY_SOURCE_FILE")
	overrideFromEnvString(&cfg.Level, "LOG_LEVEL")
	return nil
}

func overrideFromEnvInt(target *int, envName string) error {
	envValue := os.Getenv(envName)
	if envValue == "" {
		return nil
	}
	intValue, err := strconv.Atoi(envValue)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", envName, envValue, err)
	}
	*target = intValue
	return nil
}

func overrideFromEnvString(target *string, envName string) {
	if envValue := os.Getenv(envName); envValue != "" {
		*target = envValue
	}
}
