// Package config loads typed configuration from the environment.
//
// Load reads a .env file once (github.com/joho/godotenv), parses the
// environment into a struct using env tags (github.com/caarlos0/env/v11) and
// checks its validate tags (github.com/go-playground/validator/v10). Each
// config type is parsed once per process; ResetCache clears the cache in
// tests.
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
package config
