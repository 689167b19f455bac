package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	ServiceName string          `yaml:"service_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	JobStore    JobStoreConfig  `yaml:"job_store"`
	Extractor   ExtractorConfig `yaml:"extractor"`
	Synthesis   SynthesisConfig `yaml:"synthesis"`
	Output      OutputConfig    `yaml:"output"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type JobStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxJobs       int    `yaml:"max_jobs"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type ExtractorConfig struct {
	Mode     string `yaml:"mode"` // mock, exec
	Command  string `yaml:"command"`
	MockText string `yaml:"mock_text"`
}

type SynthesisConfig struct {
	Mode                string `yaml:"mode"` // mock, exec, http
	Endpoint            string `yaml:"endpoint"`
	Command             string `yaml:"command"`
	Language            string `yaml:"language"`
	Voice               string `yaml:"voice"`
	MaxChars            int    `yaml:"max_chars"`
	Retries             int    `yaml:"retries"`
	BasePauseMS         int    `yaml:"base_pause_ms"`
	JitterMS            int    `yaml:"jitter_ms"`
	InterSegmentDelayMS int    `yaml:"inter_segment_delay_ms"`
	RequestTimeoutMS    int    `yaml:"request_timeout_ms"`
}

type OutputConfig struct {
	Dir     string `yaml:"dir"`
	Archive bool   `yaml:"archive"`
}

func Default() Config {
	return Config{
		ServiceName: "pdfvoice",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Enabled:        true,
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		JobStore: JobStoreConfig{
			Path:          "./data/pdfvoice-jobs.db",
			RetentionMode: "persistent",
			RetentionDays: 30,
			MaxJobs:       10000,
		},
		Extractor: ExtractorConfig{
			Mode:    "exec",
			Command: "pdftotext -layout",
		},
		Synthesis: SynthesisConfig{
			Mode:                "http",
			Endpoint:            "http://localhost:5002",
			Language:            "en",
			MaxChars:            1200,
			Retries:             6,
			BasePauseMS:         1500,
			JitterMS:            1000,
			InterSegmentDelayMS: 900,
			RequestTimeoutMS:    60000,
		},
		Output: OutputConfig{
			Dir:     "./data/audio",
			Archive: true,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.ServiceName, "PDFVOICE_SERVICE_NAME")
	overrideString(&cfg.Environment, "PDFVOICE_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "PDFVOICE_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "PDFVOICE_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "PDFVOICE_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "PDFVOICE_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "PDFVOICE_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "PDFVOICE_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Enabled, "PDFVOICE_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "PDFVOICE_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "PDFVOICE_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "PDFVOICE_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "PDFVOICE_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "PDFVOICE_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "PDFVOICE_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "PDFVOICE_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "PDFVOICE_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.JobStore.Path, "PDFVOICE_JOB_STORE_PATH")
	overrideString(&cfg.JobStore.RetentionMode, "PDFVOICE_JOB_STORE_RETENTION_MODE")
	overrideInt(&cfg.JobStore.RetentionDays, "PDFVOICE_JOB_STORE_RETENTION_DAYS")
	overrideInt(&cfg.JobStore.MaxJobs, "PDFVOICE_JOB_STORE_MAX_JOBS")
	overrideBool(&cfg.JobStore.VacuumOnStart, "PDFVOICE_JOB_STORE_VACUUM_ON_START")
	overrideString(&cfg.Extractor.Mode, "PDFVOICE_EXTRACTOR_MODE")
	overrideString(&cfg.Extractor.Command, "PDFVOICE_EXTRACTOR_COMMAND")
	overrideString(&cfg.Synthesis.Mode, "PDFVOICE_SYNTHESIS_MODE")
	overrideString(&cfg.Synthesis.Endpoint, "PDFVOICE_SYNTHESIS_ENDPOINT")
	overrideString(&cfg.Synthesis.Command, "PDFVOICE_SYNTHESIS_COMMAND")
	overrideString(&cfg.Synthesis.Language, "PDFVOICE_SYNTHESIS_LANGUAGE")
	overrideString(&cfg.Synthesis.Voice, "PDFVOICE_SYNTHESIS_VOICE")
	overrideInt(&cfg.Synthesis.MaxChars, "PDFVOICE_SYNTHESIS_MAX_CHARS")
	overrideInt(&cfg.Synthesis.Retries, "PDFVOICE_SYNTHESIS_RETRIES")
	overrideInt(&cfg.Synthesis.BasePauseMS, "PDFVOICE_SYNTHESIS_BASE_PAUSE_MS")
	overrideInt(&cfg.Synthesis.JitterMS, "PDFVOICE_SYNTHESIS_JITTER_MS")
	overrideInt(&cfg.Synthesis.InterSegmentDelayMS, "PDFVOICE_SYNTHESIS_INTER_SEGMENT_DELAY_MS")
	overrideInt(&cfg.Synthesis.RequestTimeoutMS, "PDFVOICE_SYNTHESIS_REQUEST_TIMEOUT_MS")
	overrideString(&cfg.Output.Dir, "PDFVOICE_OUTPUT_DIR")
	overrideBool(&cfg.Output.Archive, "PDFVOICE_OUTPUT_ARCHIVE")
}

func validate(cfg Config) error {
	switch cfg.Extractor.Mode {
	case "mock", "exec":
	default:
		return fmt.Errorf("extractor.mode must be mock or exec, got %q", cfg.Extractor.Mode)
	}
	if cfg.Extractor.Mode == "exec" && strings.TrimSpace(cfg.Extractor.Command) == "" {
		return fmt.Errorf("extractor.command is required in exec mode")
	}
	switch cfg.Synthesis.Mode {
	case "mock", "exec", "http":
	default:
		return fmt.Errorf("synthesis.mode must be mock, exec or http, got %q", cfg.Synthesis.Mode)
	}
	if cfg.Synthesis.Mode == "http" && strings.TrimSpace(cfg.Synthesis.Endpoint) == "" {
		return fmt.Errorf("synthesis.endpoint is required in http mode")
	}
	if cfg.Synthesis.Mode == "exec" && strings.TrimSpace(cfg.Synthesis.Command) == "" {
		return fmt.Errorf("synthesis.command is required in exec mode")
	}
	if cfg.Synthesis.MaxChars <= 0 {
		return fmt.Errorf("synthesis.max_chars must be positive, got %d", cfg.Synthesis.MaxChars)
	}
	if cfg.Synthesis.Retries <= 0 {
		return fmt.Errorf("synthesis.retries must be positive, got %d", cfg.Synthesis.Retries)
	}
	if cfg.Synthesis.Language == "" {
		return fmt.Errorf("synthesis.language is required")
	}
	switch cfg.JobStore.RetentionMode {
	case "ephemeral", "persistent":
	default:
		return fmt.Errorf("job_store.retention_mode must be ephemeral or persistent, got %q", cfg.JobStore.RetentionMode)
	}
	return nil
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}
