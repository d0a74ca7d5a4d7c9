package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

// readDotEnv merges a .env file into v as the layer below the environment.
// A missing file is not an error.
func readDotEnv(v *viper.Viper, path string) error {
	f := viper.New()
	f.SetConfigFile(path)
	f.SetConfigType("env")
	if err := f.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	for _, key := range f.AllKeys() {
		// keys arrive lower-cased; defaults and env lookups use the same form
		v.SetDefault(strings.ToLower(key), f.Get(key))
	}
	return nil
}
