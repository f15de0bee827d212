package config

import (
	"errors"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/dmitrijs2005/harvesthub/internal/flagx"
)

// defaultEnvFile is loaded when present and -envfile is not given.
const defaultEnvFile = ".env"

// loadEnvFile copies variables from a dotenv file into the process
// environment. Variables that are already set win over the file. A missing
// default file is not an error; a missing file named by -envfile is.
func loadEnvFile() {
	path := flagx.EnvFileFlags()
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}

	err := godotenv.Load(path)
	if err == nil {
		return
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return
	}
	panic(err)
}

// parseEnv overlays Config with HARVEST_* environment variables. Unset
// variables leave the current value in place.
func parseEnv(config *Config) {
	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		panic(err)
	}
}
