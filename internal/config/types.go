package config

import (
	"os"
	"time"
)

type Config struct {
	Oracle        OracleConfig        `toml:"oracle"`
	Mongo         MongoConfig         `toml:"mongo"`
	Transcription TranscriptionConfig `toml:"transcription"`
	Share         ShareConfig         `toml:"share"`
	Monitor       MonitorConfig       `toml:"monitor"`
	Report        ReportConfig        `toml:"report"`
	Spool         SpoolConfig         `toml:"spool"`
	Dashboard     DashboardConfig     `toml:"dashboard"`
}

// OracleConfig holds the connection parameters for the RIS/PACS
// relational database that is polled for eligible studies.
type OracleConfig struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	ServiceName string `toml:"service_name"`
	Username    string `toml:"username"`
	Password    string `toml:"password"`
}

// MongoConfig holds the document store used for status and result tracking.
type MongoConfig struct {
	URI      string `toml:"uri"`
	Database string `toml:"database"`
}

type TranscriptionConfig struct {
	Provider    string        `toml:"provider"` // "gemini" or "openai"
	APIKey      string        `toml:"api_key"`
	Model       string        `toml:"model"`
	Timeout     time.Duration `toml:"timeout"`
	PrintOutput bool          `toml:"print_output"` // dump raw model JSON on success
}

// ShareConfig carries optional credentials for UNC paths on network shares.
// Both empty means "proceed unauthenticated with a warning".
type ShareConfig struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
	Domain   string `toml:"domain"`
}

type MonitorConfig struct {
	PollInterval   time.Duration `toml:"poll_interval"`
	EligibleStatus int           `toml:"eligible_status"` // STUDYSTAT marking a study ready for transcription
	RetryErrored   bool          `toml:"retry_errored"`   // re-dispatch errored studies after a restart
}

type ReportConfig struct {
	EncapsulateEnhancedSR  bool   `toml:"encapsulate_enhanced_sr"`
	StoreTranscribedReport bool   `toml:"store_transcribed_report"`
	SROutputFolder         string `toml:"sr_output_folder"`
	DictateDocKey          int    `toml:"dictate_doc_key"` // site-specific doctor key stamped on legacy writes
}

type SpoolConfig struct {
	Folder          string `toml:"folder"`
	ProcessedFolder string `toml:"processed_folder"`
}

type DashboardConfig struct {
	Listen string `toml:"listen"`
}

// ResolveAPIKey returns the transcription API key, preferring the config
// file and falling back to the provider's conventional environment variable.
func (c *Config) ResolveAPIKey() string {
	if c.Transcription.APIKey != "" {
		return c.Transcription.APIKey
	}
	switch c.Transcription.Provider {
	case "gemini":
		return os.Getenv("GEMINI_API_KEY")
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	}
	return ""
}
