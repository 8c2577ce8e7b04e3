package logger

import "os"

// EnvReader abstracts environment variable lookups so the format-selection
// logic can be exercised with a mock instead of the real process environment.
type EnvReader interface {
	Getenv(key string) string
}

// osEnvReader reads from the real process environment.
type osEnvReader struct{}

func (osEnvReader) Getenv(key string) string { return os.Getenv(key) }
