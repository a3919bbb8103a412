package config

import "fmt"

// Validate checks the fields every mode depends on. Mode-specific fields
// (spool folders, dashboard listen address) are checked by their commands.
func (c *Config) Validate() error {
	if c.Oracle.Host == "" {
		return fmt.Errorf("invalid oracle.host: empty")
	}
	if c.Oracle.Port <= 0 || c.Oracle.Port > 65535 {
		return fmt.Errorf("invalid oracle.port: %d", c.Oracle.Port)
	}
	if c.Oracle.ServiceName == "" {
		return fmt.Errorf("invalid oracle.service_name: empty")
	}
	if c.Oracle.Username == "" {
		return fmt.Errorf("invalid oracle.username: empty")
	}
	if c.Oracle.Password == "" {
		return fmt.Errorf("oracle password required: not found in config (oracle.password) or environment variable (ORACLE_PASSWORD)")
	}

	if c.Mongo.URI == "" {
		return fmt.Errorf("invalid mongo.uri: empty")
	}
	if c.Mongo.Database == "" {
		return fmt.Errorf("invalid mongo.database: empty")
	}

	switch c.Transcription.Provider {
	case "gemini":
		if c.ResolveAPIKey() == "" {
			return fmt.Errorf("Gemini API key required: not found in config (transcription.api_key) or environment variable (GEMINI_API_KEY)")
		}
	case "openai":
		if c.ResolveAPIKey() == "" {
			return fmt.Errorf("OpenAI API key required: not found in config (transcription.api_key) or environment variable (OPENAI_API_KEY)")
		}
	default:
		return fmt.Errorf("unsupported transcription.provider: %s (must be gemini or openai)", c.Transcription.Provider)
	}
	if c.Transcription.Model == "" {
		return fmt.Errorf("invalid transcription.model: empty")
	}
	if c.Transcription.Timeout <= 0 {
		return fmt.Errorf("invalid transcription.timeout: %v", c.Transcription.Timeout)
	}

	if c.Monitor.PollInterval <= 0 {
		return fmt.Errorf("invalid monitor.poll_interval: %v", c.Monitor.PollInterval)
	}
	if c.Monitor.EligibleStatus <= 0 {
		return fmt.Errorf("invalid monitor.eligible_status: %d", c.Monitor.EligibleStatus)
	}

	if c.Report.EncapsulateEnhancedSR && c.Report.SROutputFolder == "" {
		return fmt.Errorf("report.sr_output_folder required when report.encapsulate_enhanced_sr = true")
	}
	if c.Report.StoreTranscribedReport && c.Report.DictateDocKey <= 0 {
		return fmt.Errorf("report.dictate_doc_key required when report.store_transcribed_report = true")
	}

	return nil
}
