package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dictascribe/internal/bus"
	"dictascribe/internal/monitor"
	"dictascribe/internal/tui"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "dictascribe",
	Short:         "AI transcription pipeline for dictation audio in medical imaging archives",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.AddCommand(
		monitorCmd(),
		processCmd(),
		spoolCmd(),
		dashboardCmd(),
		statusCmd(),
		stopCmd(),
		configureCmd(),
		versionCmd(),
	)
}

func monitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Poll the database and transcribe eligible studies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(cmd.Context())
		},
	}
}

func processCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process <study-key>",
		Short: "Run the pipeline for a single study",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd.Context(), args[0])
		},
	}
}

func spoolCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "spool",
		Short: "Transcribe dictation files dropped into the spool folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSpool(cmd.Context())
		},
	}
}

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Serve the study status web dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(cmd.Context())
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the running monitor's status",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(monitor.CmdStatus)
			if err != nil {
				return fmt.Errorf("failed to reach monitor: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running monitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(monitor.CmdStop)
			if err != nil {
				return fmt.Errorf("failed to stop monitor: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func configureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Interactive configuration wizard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.RunWizard()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the control protocol version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(bus.ProtoVer)
			return nil
		},
	}
}
