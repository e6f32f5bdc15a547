package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the server configuration. Every field can come from the YAML
// config file; flags and environment variables override it.
type Config struct {
	Port         int    `yaml:"port"`
	DBPath       string `yaml:"db"`
	CompanyName  string `yaml:"company_name"`
	CompanyEmail string `yaml:"company_email"`
	StaticDir    string `yaml:"static_dir"`
}

func defaultConfig() Config {
	return Config{
		Port:         9000,
		DBPath:       "boqops.db",
		CompanyName:  "Your Company",
		CompanyEmail: "admin@example.com",
		StaticDir:    "static",
	}
}

// loadConfig reads the YAML file at path into the defaults. A missing file
// is fine when the path is the default location; an explicit path must
// exist.
func loadConfig(path string, explicit bool) (Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// applyEnv layers environment variables over the file config.
func (c *Config) applyEnv() {
	if v := os.Getenv("BOQOPS_COMPANY_NAME"); v != "" {
		c.CompanyName = v
	}
	if v := os.Getenv("BOQOPS_COMPANY_EMAIL"); v != "" {
		c.CompanyEmail = v
	}
	if v := os.Getenv("BOQOPS_DB"); v != "" {
		c.DBPath = v
	}
}
