package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	if err := buildRoot().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// APIFlags holds daemon connection flags shared by the client commands.
type APIFlags struct {
	URL     string
	Timeout time.Duration
}

// ServeFlags holds flags for the serve command.
type ServeFlags struct {
	ConfigPath string
	StartAll   bool
}

func buildRoot() *cobra.Command {
	root := &cobra.Command{
		Use:   "webstackd",
		Short: "Local web stack supervisor",
		Long: `Webstackd supervises a local web development stack: a web server,
a FastCGI script runtime, and a database server. It starts and stops them in
dependency order, probes their health, and regenerates the web server's
virtual-host configuration from the configured routes.

Examples:
  webstackd serve --config=webstack.toml       # Start the daemon
  webstackd start-all                          # Boot the whole stack
  webstackd start --kind=database              # Start one service
  webstackd status                             # Show all services
  webstackd health --api-url=http://remote:9180/api`,
	}
	root.AddCommand(
		createServeCommand(),
		createStartCommand(),
		createStopCommand(),
		createStartAllCommand(),
		createStopAllCommand(),
		createStatusCommand(),
		createHealthCommand(),
		createGenConfigCommand(),
		createJournalCommand(),
	)
	return root
}

func addAPIFlags(cmd *cobra.Command, flags *APIFlags) {
	cmd.Flags().StringVar(&flags.URL, "api-url", "", "daemon URL (default http://127.0.0.1:9180/api)")
	cmd.Flags().DurationVar(&flags.Timeout, "api-timeout", 10*time.Second, "request timeout")
}

func createServeCommand() *cobra.Command {
	flags := &ServeFlags{}
	cmd := &cobra.Command{
		Use:   "serve [config.toml]",
		Short: "Start the webstackd daemon",
		Long: `Start the webstackd daemon. The stack definition (binaries, ports,
document root, routes) is loaded from the TOML config file.

Examples:
  webstackd serve --config=webstack.toml
  webstackd serve webstack.toml --start-all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServeCommand(flags, args)
		},
	}
	cmd.Flags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file")
	cmd.Flags().BoolVar(&flags.StartAll, "start-all", false, "start the whole stack after boot")
	return cmd
}

func createStartCommand() *cobra.Command {
	flags := &APIFlags{}
	var kind string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start one service",
		Long: `Start one managed service via the daemon.

Examples:
  webstackd start --kind=database
  webstackd start --kind=php`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return newCommand(flags).Start(kind)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "service kind: webserver, scriptruntime, database (required)")
	addAPIFlags(cmd, flags)
	if err := cmd.MarkFlagRequired("kind"); err != nil {
		panic(err)
	}
	return cmd
}

func createStopCommand() *cobra.Command {
	flags := &APIFlags{}
	var kind string
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop one service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return newCommand(flags).Stop(kind)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "service kind: webserver, scriptruntime, database (required)")
	addAPIFlags(cmd, flags)
	if err := cmd.MarkFlagRequired("kind"); err != nil {
		panic(err)
	}
	return cmd
}

func createStartAllCommand() *cobra.Command {
	flags := &APIFlags{}
	cmd := &cobra.Command{
		Use:   "start-all",
		Short: "Start the whole stack in dependency order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return newCommand(flags).StartAll()
		},
	}
	addAPIFlags(cmd, flags)
	return cmd
}

func createStopAllCommand() *cobra.Command {
	flags := &APIFlags{}
	cmd := &cobra.Command{
		Use:   "stop-all",
		Short: "Stop the whole stack",
		RunE: func(cmd *cobra.Command, args []string) error {
			return newCommand(flags).StopAll()
		},
	}
	addAPIFlags(cmd, flags)
	return cmd
}

func createStatusCommand() *cobra.Command {
	flags := &APIFlags{}
	var kind string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show service status",
		Long: `Show the lifecycle status of managed services.

Examples:
  webstackd status                  # All services
  webstackd status --kind=mysql     # One service`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return newCommand(flags).Status(kind)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "service kind (optional)")
	addAPIFlags(cmd, flags)
	return cmd
}

func createHealthCommand() *cobra.Command {
	flags := &APIFlags{}
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show the latest health sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			return newCommand(flags).Health()
		},
	}
	addAPIFlags(cmd, flags)
	return cmd
}

func createGenConfigCommand() *cobra.Command {
	flags := &APIFlags{}
	cmd := &cobra.Command{
		Use:   "genconfig",
		Short: "Regenerate the web server configuration",
		Long: `Ask the daemon to regenerate the web server configuration from its
current route set. The web server picks the file up on its next start.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return newCommand(flags).GenerateConfig()
		},
	}
	addAPIFlags(cmd, flags)
	return cmd
}

func createJournalCommand() *cobra.Command {
	flags := &APIFlags{}
	var limit int
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recent lifecycle events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return newCommand(flags).Journal(limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries to show")
	addAPIFlags(cmd, flags)
	return cmd
}
