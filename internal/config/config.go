package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/panelboard-cli/internal/aggregate"
	"github.com/sells-group/panelboard-cli/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Aggregation AggregationConfig `yaml:"aggregation" mapstructure:"aggregation"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// AggregationConfig tunes the confidence-fusion engine. The method
// weights must preserve the ordering ai_vision > manual >
// ai_ocr_fallback > text_ocr.
type AggregationConfig struct {
	WeightAIVision      float64 `yaml:"weight_ai_vision" mapstructure:"weight_ai_vision"`
	WeightManual        float64 `yaml:"weight_manual" mapstructure:"weight_manual"`
	WeightAIOCRFallback float64 `yaml:"weight_ai_ocr_fallback" mapstructure:"weight_ai_ocr_fallback"`
	WeightTextOCR       float64 `yaml:"weight_text_ocr" mapstructure:"weight_text_ocr"`
	ConflictThreshold   float64 `yaml:"conflict_threshold" mapstructure:"conflict_threshold"`
	ConfidenceCap       float64 `yaml:"confidence_cap" mapstructure:"confidence_cap"`
}

// LogConfig configures the global zap logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from an optional config.yaml plus
// PANELBOARD_* environment variables, with defaults for every knob.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PANELBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("aggregation.weight_ai_vision", 0.85)
	v.SetDefault("aggregation.weight_manual", 0.75)
	v.SetDefault("aggregation.weight_ai_ocr_fallback", 0.70)
	v.SetDefault("aggregation.weight_text_ocr", 0.60)
	v.SetDefault("aggregation.conflict_threshold", 0.3)
	v.SetDefault("aggregation.confidence_cap", 0.98)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Aggregation.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that the configured weights preserve the required
// method ordering and that thresholds are sane.
func (a AggregationConfig) Validate() error {
	if !(a.WeightAIVision > a.WeightManual &&
		a.WeightManual > a.WeightAIOCRFallback &&
		a.WeightAIOCRFallback > a.WeightTextOCR) {
		return eris.New("config: method weights must satisfy ai_vision > manual > ai_ocr_fallback > text_ocr")
	}
	if a.ConflictThreshold <= 0 || a.ConflictThreshold >= 1 {
		return eris.New("config: conflict_threshold must be in (0, 1)")
	}
	if a.ConfidenceCap <= 0 || a.ConfidenceCap > 1 {
		return eris.New("config: confidence_cap must be in (0, 1]")
	}
	return nil
}

// MethodWeights converts the configured weights into the model shape.
func (a AggregationConfig) MethodWeights() model.Weights {
	return model.Weights{
		model.MethodAIVision:      a.WeightAIVision,
		model.MethodManual:        a.WeightManual,
		model.MethodAIOCRFallback: a.WeightAIOCRFallback,
		model.MethodTextOCR:       a.WeightTextOCR,
	}
}

// AggregateConfig builds the fusion config for the aggregation service.
func (a AggregationConfig) AggregateConfig() aggregate.Config {
	return aggregate.Config{
		Weights:           a.MethodWeights(),
		ConflictThreshold: a.ConflictThreshold,
		ConfidenceCap:     a.ConfidenceCap,
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
