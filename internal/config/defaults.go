package config

import "time"

// DefaultConfig returns the initial configuration used for onboarding.
func DefaultConfig() *Config {
	return &Config{
		Oracle: OracleConfig{
			Port: 1521,
		},
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017/",
			Database: "audio_transcriber_db",
		},
		Transcription: TranscriptionConfig{
			Provider: "gemini",
			Model:    "gemini-2.0-flash",
			Timeout:  5 * time.Minute,
		},
		Monitor: MonitorConfig{
			PollInterval:   60 * time.Second,
			EligibleStatus: 3010,
		},
		Report: ReportConfig{
			SROutputFolder: "sr_output",
			DictateDocKey:  21,
		},
		Spool: SpoolConfig{
			Folder:          "spool",
			ProcessedFolder: "spool/processed",
		},
		Dashboard: DashboardConfig{
			Listen: "127.0.0.1:8433",
		},
	}
}
