package env

import (
	"os"
	"strconv"

	"github.com/gofiber/fiber/v2/log"
	"github.com/joho/godotenv"
)

// Env holds the key/value pairs read from the .env file. Process environment
// variables take precedence for containerized deployments and tests.
var Env map[string]string

// GetEnv returns the value for key, checking the process environment first,
// then the loaded .env map, then the default. An empty process variable
// counts as unset.
func GetEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if val, ok := Env[key]; ok {
		return val
	}
	return def
}

// GetEnvBool interprets the value for key as a boolean. Anything that does
// not parse falls back to the default.
func GetEnvBool(key string, def bool) bool {
	raw := GetEnv(key, "")
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return b
}

// SetupEnvFile loads the first .env file found relative to the working
// directory. Missing files are fine; deployments pass configuration through
// the process environment instead.
func SetupEnvFile() {
	candidates := []string{
		".env",
		"../../.env", // from cmd/<binary> during local development
	}

	for _, path := range candidates {
		vars, err := godotenv.Read(path)
		if err == nil {
			Env = vars
			return
		}
	}

	Env = map[string]string{}
	log.Info("no .env file found, using process environment only")
}
