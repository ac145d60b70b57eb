// Package config provides configuration for the coaching server.
package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/xiaot623/gogo/livecoach/internal/adapter/llm"
	"github.com/xiaot623/gogo/livecoach/internal/coach"
	"github.com/xiaot623/gogo/livecoach/internal/telemetry"
	v1 "github.com/xiaot623/gogo/livecoach/internal/transport/http/v1"
)

// EnvDotEnv disables .env loading when set to a false value such as 0.
const EnvDotEnv = "LIVECOACH_DOTENV"

var dotEnvFiles = []string{".env.local", ".env"}

// Config holds the server configuration.
type Config struct {
	// Server settings
	HTTPPort int
	RPCPort  int

	// Database
	DatabaseURL string

	// Inference backend
	OpenAIBaseURL      string
	OpenAIAPIKey       string
	TextModel          string
	VisionModel        string
	TranscribeModel    string
	TranscribeLanguage string
	LLMTimeout         time.Duration
	VisionMaxDim       int

	// Session cadences
	AudioChunk          time.Duration
	ScreenInterval      time.Duration
	AnalysisInterval    time.Duration
	AnalysisMinGap      time.Duration
	SuggestionWordStep  int
	FeedbackSweep       time.Duration
	FeedbackLowTTL      time.Duration
	TranscriptDebounce  time.Duration
	FrameBufferSize     int
	AnalysisHistorySize int
	FeedbackHistorySize int
	StoreWriteTimeout   time.Duration

	// Websocket
	WSPingInterval   time.Duration
	WSWriteTimeout   time.Duration
	WSReadTimeout    time.Duration
	WSMaxMessageSize int

	// Access
	APIKey       string
	StaticUserID string
	PolicyFile   string

	// Metrics export
	OTLPEndpoint string
	OTLPInsecure bool
	ServiceName  string

	// Logging
	LogLevel Level
}

// Load loads configuration from .env files and environment variables.
func Load() *Config {
	if err := LoadDotEnv(); err != nil {
		log.Printf("WARN: failed to load .env: %v", err)
	}

	cfg := &Config{
		HTTPPort:            getEnvInt("HTTP_PORT", 8080),
		RPCPort:             getEnvInt("RPC_PORT", 8081),
		DatabaseURL:         getEnv("DATABASE_URL", "file:livecoach.db?cache=shared&mode=rwc"),
		OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", llm.DefaultBaseURL),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		TextModel:           getEnv("TEXT_MODEL", llm.DefaultTextModel),
		VisionModel:         getEnv("VISION_MODEL", llm.DefaultVisionModel),
		TranscribeModel:     getEnv("TRANSCRIBE_MODEL", llm.DefaultTranscribeModel),
		TranscribeLanguage:  getEnv("TRANSCRIBE_LANGUAGE", ""),
		LLMTimeout:          getEnvMillis("LLM_TIMEOUT_MS", 30000),
		VisionMaxDim:        getEnvInt("VISION_MAX_DIM", llm.DefaultMaxImageDim),
		AudioChunk:          getEnvMillis("AUDIO_CHUNK_MS", 1000),
		ScreenInterval:      getEnvMillis("SCREEN_INTERVAL_MS", 3000),
		AnalysisInterval:    getEnvMillis("ANALYSIS_INTERVAL_MS", 10000),
		AnalysisMinGap:      getEnvMillis("ANALYSIS_MIN_GAP_MS", 8000),
		SuggestionWordStep:  getEnvInt("SUGGESTION_WORD_STEP", 50),
		FeedbackSweep:       getEnvMillis("FEEDBACK_SWEEP_MS", 5000),
		FeedbackLowTTL:      getEnvMillis("FEEDBACK_LOW_TTL_MS", 30000),
		TranscriptDebounce:  getEnvMillis("TRANSCRIPT_DEBOUNCE_MS", 2000),
		FrameBufferSize:     getEnvInt("FRAME_BUFFER_SIZE", 10),
		AnalysisHistorySize: getEnvInt("ANALYSIS_HISTORY_SIZE", 20),
		FeedbackHistorySize: getEnvInt("FEEDBACK_HISTORY_SIZE", 50),
		StoreWriteTimeout:   getEnvMillis("STORE_WRITE_TIMEOUT_MS", 5000),
		WSPingInterval:      getEnvMillis("WS_PING_INTERVAL_MS", 30000),
		WSWriteTimeout:      getEnvMillis("WS_WRITE_TIMEOUT_MS", 10000),
		WSReadTimeout:       getEnvMillis("WS_READ_TIMEOUT_MS", 60000),
		WSMaxMessageSize:    getEnvInt("WS_MAX_MESSAGE_SIZE", 1<<20),
		APIKey:              getEnv("API_KEY", ""),
		StaticUserID:        getEnv("STATIC_USER_ID", ""),
		PolicyFile:          getEnv("POLICY_FILE", ""),
		OTLPEndpoint:        getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure:        getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:         getEnv("OTEL_SERVICE_NAME", "livecoach"),
		LogLevel:            ParseLevel(getEnv("LOG_LEVEL", "info")),
	}
	return cfg
}

// Coach returns the orchestrator settings.
func (c *Config) Coach() coach.Config {
	cc := coach.DefaultConfig()
	cc.ChunkInterval = c.AudioChunk
	cc.ScreenInterval = c.ScreenInterval
	cc.AnalysisInterval = c.AnalysisInterval
	cc.AnalysisMinGap = c.AnalysisMinGap
	cc.SuggestionWordStep = c.SuggestionWordStep
	cc.FeedbackSweepInterval = c.FeedbackSweep
	cc.FeedbackLowTTL = c.FeedbackLowTTL
	cc.TranscriptDebounce = c.TranscriptDebounce
	cc.FrameBufferSize = c.FrameBufferSize
	cc.AnalysisHistorySize = c.AnalysisHistorySize
	cc.FeedbackHistorySize = c.FeedbackHistorySize
	cc.StoreWriteTimeout = c.StoreWriteTimeout
	cc.InferenceTimeout = c.LLMTimeout
	cc.TranscribeLanguage = c.TranscribeLanguage
	return cc
}

// LLM returns the inference backend settings.
func (c *Config) LLM() llm.Config {
	return llm.Config{
		BaseURL:         c.OpenAIBaseURL,
		APIKey:          c.OpenAIAPIKey,
		TextModel:       c.TextModel,
		VisionModel:     c.VisionModel,
		TranscribeModel: c.TranscribeModel,
		Timeout:         c.LLMTimeout,
		MaxRetries:      llm.DefaultMaxRetries,
		MaxImageDim:     c.VisionMaxDim,
	}
}

// WS returns the websocket settings.
func (c *Config) WS() v1.WSConfig {
	return v1.WSConfig{
		PingInterval:   c.WSPingInterval,
		WriteTimeout:   c.WSWriteTimeout,
		ReadTimeout:    c.WSReadTimeout,
		MaxMessageSize: int64(c.WSMaxMessageSize),
	}
}

// Telemetry returns the metrics export settings.
func (c *Config) Telemetry() telemetry.Options {
	return telemetry.Options{
		Endpoint:    c.OTLPEndpoint,
		Insecure:    c.OTLPInsecure,
		ServiceName: c.ServiceName,
	}
}

// LoadDotEnv loads .env.local then .env from the working directory.
// Variables already present in the environment are never overridden.
func LoadDotEnv() error {
	if dotEnvDisabled() {
		return nil
	}
	for _, name := range dotEnvFiles {
		if err := godotenv.Load(name); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

func dotEnvDisabled() bool {
	return !getEnvBool(EnvDotEnv, true)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
		log.Printf("WARN: invalid integer for %s: %q, using %d", key, val, defaultVal)
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvMillis(key string, defaultMs int) time.Duration {
	return time.Duration(getEnvInt(key, defaultMs)) * time.Millisecond
}
