package logging

import (
	"go.uber.org/zap"
)

// New builds the root logger for the given environment.
// "local" and "dev" get the human-readable development config;
// everything else gets production JSON output.
func New(env string) (*zap.Logger, error) {
	if env == "local" || env == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
