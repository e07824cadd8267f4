package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/properlytics/properlytics-go/pkg/ml"
	"github.com/properlytics/properlytics-go/pkg/models"
)

// Config holds the application configuration
type Config struct {
	ModelDir        string
	ReportDir       string
	DBPath          string
	LogLevel        string
	LogFormat       string
	PlotMargin      float64
	RetrainSchedule string
	TrainingConfig  string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		ModelDir:        getEnv("MODEL_DIR", "models"),
		ReportDir:       getEnv("REPORT_DIR", ""),
		DBPath:          getEnv("DB_PATH", "properlytics.db"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "text"),
		PlotMargin:      getEnvAsFloat("PLOT_MARGIN", 0.05),
		RetrainSchedule: getEnv("RETRAIN_SCHEDULE", ""),
		TrainingConfig:  getEnv("TRAINING_CONFIG", ""),
	}

	if config.ReportDir == "" {
		config.ReportDir = config.ModelDir
	}
	if config.PlotMargin <= 0 || config.PlotMargin >= 1 {
		return nil, fmt.Errorf("PLOT_MARGIN must be between 0 and 1, got %v", config.PlotMargin)
	}

	return config, nil
}

// LoadTrainingConfig reads the per-type training specs from a YAML file.
// Top-level keys are property types (flat, house, plot).
func LoadTrainingConfig(path string) (map[models.PropertyType]*ml.TrainingSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read training config: %w", err)
	}

	var raw map[string]*ml.TrainingSpec
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse training config: %w", err)
	}

	specs := make(map[models.PropertyType]*ml.TrainingSpec, len(raw))
	for key, spec := range raw {
		propertyType, err := models.ParsePropertyType(key)
		if err != nil {
			return nil, fmt.Errorf("training config: %w", err)
		}
		if spec == nil || spec.Dataset == "" {
			return nil, fmt.Errorf("training config: %s has no dataset", key)
		}
		specs[propertyType] = spec
	}
	return specs, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsFloat retrieves an environment variable as a float or returns a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
