package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// loadDotEnv loads KEY=VALUE pairs from a dotenv file into the process
// environment. Keys are upper-cased. Existing non-empty variables are not
// overwritten and a missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read dotenv %s: %w", path, err)
	}

	for _, key := range v.AllKeys() {
		k := strings.ToUpper(key)
		if os.Getenv(k) != "" {
			continue
		}
		if err := os.Setenv(k, v.GetString(key)); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}
	return nil
}
