package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Prefix of environment variables mapped onto command line flags
const EnvPrefix = "OCRSERVE"

func Warning(message string) {
	yellow := color.New(color.FgYellow).SprintfFunc()
	fmt.Fprintln(os.Stderr, yellow("[WARN] %s", message))
}

// Loads variables from env files into the process environment. Variables already present are not overwritten.
// Without arguments loads `.env` from working directory if it exists.
func LoadEnv(files ...string) {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return
		}
		files = []string{".env"}
	}

	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				Warning(fmt.Sprintf("Env file %s not found. Continuing without.", file))
			} else {
				Warning(fmt.Sprintf("Failed to load env file %s: %s", file, err.Error()))
			}
		}
	}
}

// Name of the environment variable for the flag. `models-folder` becomes `OCRSERVE_MODELS_FOLDER`.
func EnvName(prefix string, flag string) string {
	name := strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
	if prefix == "" {
		return name
	}
	return prefix + "_" + name
}

// Sets flags that were not given on the command line from environment variables
func BindEnv(flags *pflag.FlagSet, prefix string) error {
	var errs []error
	flags.VisitAll(func(flag *pflag.Flag) {
		if flag.Changed {
			return
		}
		value, ok := os.LookupEnv(EnvName(prefix, flag.Name))
		if !ok {
			return
		}
		if err := flags.Set(flag.Name, value); err != nil {
			errs = append(errs, fmt.Errorf("bad value of environment variable %s: %w", EnvName(prefix, flag.Name), err))
		}
	})
	return errors.Join(errs...)
}
