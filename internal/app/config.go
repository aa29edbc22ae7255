package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"lean-data/internal/model"
)

// Config holds application configuration from env.
type Config struct {
	DataDir      string
	LogLevel     string // debug | info | warn | error
	LogFormat    string // text | json
	MirrorFormat string // "" | csv | json | parquet
	ManifestPath string
	UniverseFile string
	// ClassRoots overrides the directory of an asset class under DataDir (OUTPUT_ROOT_<CLASS>).
	ClassRoots map[model.AssetClass]string
	// RPM overrides a vendor's request budget (<VENDOR>_RPM).
	RPM map[string]int

	env func(string) string
}

// LoadConfig reads config from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func LoadConfig() *Config {
	_ = godotenv.Load()
	return configFrom(os.Getenv)
}

func configFrom(env func(string) string) *Config {
	cfg := &Config{
		env:          env,
		DataDir:      getEnv(env, "DATA_DIR", "data"),
		LogLevel:     getEnv(env, "LOG_LEVEL", "info"),
		LogFormat:    getEnv(env, "LOG_FORMAT", "text"),
		MirrorFormat: strings.ToLower(env("MIRROR_FORMAT")),
		ManifestPath: env("MANIFEST_PATH"),
		UniverseFile: env("UNIVERSE_FILE"),
		ClassRoots:   make(map[model.AssetClass]string),
		RPM:          make(map[string]int),
	}
	for _, c := range model.AssetClasses {
		if v := env("OUTPUT_ROOT_" + strings.ToUpper(string(c))); v != "" {
			cfg.ClassRoots[c] = v
		}
	}
	for _, v := range Registry {
		if rpm := getEnvInt(env, strings.ToUpper(v.Tag)+"_RPM", 0); rpm > 0 {
			cfg.RPM[v.Tag] = rpm
		}
	}
	return cfg
}

func getEnv(env func(string) string, key, def string) string {
	if v := env(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(env func(string) string, key string, def int) int {
	v := env(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

// Credential returns the value of a credential variable.
func (c *Config) Credential(name string) string {
	if c.env == nil {
		return ""
	}
	return strings.TrimSpace(c.env(name))
}

// RequireCredentials checks every required credential of vendor and names the
// first missing variable.
func (c *Config) RequireCredentials(vendor string) error {
	v, ok := LookupVendor(vendor)
	if !ok {
		return fmt.Errorf("unknown source %q", vendor)
	}
	for _, name := range v.Credentials {
		if c.Credential(name) == "" {
			return fmt.Errorf("%s: %s not set", v.Tag, name)
		}
	}
	return nil
}

// VendorRPM is the request budget for vendor: env override, else registry default.
func (c *Config) VendorRPM(vendor string) int {
	if n, ok := c.RPM[vendor]; ok {
		return n
	}
	if v, ok := LookupVendor(vendor); ok {
		return v.RPM
	}
	return 0
}

// Timezone is the zone label records of class are stored in.
func (c *Config) Timezone(class model.AssetClass) string {
	return model.ProfileOf(class).Timezone
}

// ProgressPath returns path to .lastday.json.
func (c *Config) ProgressPath() string {
	return filepath.Join(c.DataDir, ".lastday.json")
}

// ManifestFile returns the SQLite ledger path.
func (c *Config) ManifestFile() string {
	if c.ManifestPath != "" {
		return c.ManifestPath
	}
	return filepath.Join(c.DataDir, "manifest.db")
}
