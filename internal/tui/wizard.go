// Package tui is the interactive configuration wizard.
package tui

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"dictascribe/internal/config"
)

var (
	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7D79F6"}).
			Padding(0, 1)

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#6B6B6B", Dark: "#9B9B9B"})
)

// RunWizard walks through the configuration interactively and saves it.
// The existing config (or defaults) pre-populates every field.
func RunWizard() error {
	lipgloss.SetColorProfile(termenv.ColorProfile())

	cfg, err := config.Load()
	if err != nil {
		cfg = config.DefaultConfig()
	}

	fmt.Println(bannerStyle.Render("dictascribe configuration"))
	fmt.Println(hintStyle.Render("Secrets can be left empty and supplied via environment variables instead."))
	fmt.Println()

	oraclePort := strconv.Itoa(cfg.Oracle.Port)
	pollSeconds := strconv.Itoa(int(cfg.Monitor.PollInterval / time.Second))

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Oracle host").Value(&cfg.Oracle.Host),
			huh.NewInput().Title("Oracle port").Value(&oraclePort).
				Validate(validatePort),
			huh.NewInput().Title("Oracle service name").Value(&cfg.Oracle.ServiceName),
			huh.NewInput().Title("Oracle username").Value(&cfg.Oracle.Username),
			huh.NewInput().Title("Oracle password").Value(&cfg.Oracle.Password).
				EchoMode(huh.EchoModePassword),
		).Title("Relational database"),

		huh.NewGroup(
			huh.NewInput().Title("MongoDB URI").Value(&cfg.Mongo.URI),
			huh.NewInput().Title("MongoDB database").Value(&cfg.Mongo.Database),
		).Title("Status store"),

		huh.NewGroup(
			huh.NewSelect[string]().Title("Transcription provider").
				Options(huh.NewOptions("gemini", "openai")...).
				Value(&cfg.Transcription.Provider),
			huh.NewInput().Title("Model").Value(&cfg.Transcription.Model),
			huh.NewInput().Title("API key").Value(&cfg.Transcription.APIKey).
				EchoMode(huh.EchoModePassword),
		).Title("Transcription"),

		huh.NewGroup(
			huh.NewInput().Title("Share username").Value(&cfg.Share.Username),
			huh.NewInput().Title("Share password").Value(&cfg.Share.Password).
				EchoMode(huh.EchoModePassword),
			huh.NewInput().Title("Share domain").Value(&cfg.Share.Domain),
		).Title("Network share (optional)"),

		huh.NewGroup(
			huh.NewInput().Title("Poll interval (seconds)").Value(&pollSeconds).
				Validate(validateSeconds),
			huh.NewConfirm().Title("Encapsulate transcriptions as Enhanced SR?").
				Value(&cfg.Report.EncapsulateEnhancedSR),
			huh.NewInput().Title("SR output folder").Value(&cfg.Report.SROutputFolder),
			huh.NewConfirm().Title("Write reports back to the legacy database?").
				Value(&cfg.Report.StoreTranscribedReport),
		).Title("Processing"),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("configuration wizard: %w", err)
	}

	cfg.Oracle.Port, _ = strconv.Atoi(oraclePort)
	secs, _ := strconv.Atoi(pollSeconds)
	cfg.Monitor.PollInterval = time.Duration(secs) * time.Second

	if err := config.Save(cfg); err != nil {
		return err
	}

	path, _ := config.GetConfigPath()
	fmt.Println()
	fmt.Println(bannerStyle.Render("Saved"), hintStyle.Render(path))
	return nil
}

func validatePort(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("port must be 1-65535")
	}
	return nil
}

func validateSeconds(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return fmt.Errorf("must be a positive number of seconds")
	}
	return nil
}
