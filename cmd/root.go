// Package cmd is the command-line front-end: a single cobra.Command
// exposing --pid/--path/--verbose, wired to viper so FI_PID/FI_PATH/
// FI_VERBOSE environment overrides work for free (spec.md §6, SPEC_FULL.md
// §6).
package cmd

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iofault/fi/internal/clock"
	"github.com/iofault/fi/internal/config"
	"github.com/iofault/fi/internal/logger"
	"github.com/iofault/fi/internal/mountctl"
	"github.com/iofault/fi/internal/siglifecycle"
)

const envPrefix = "FI"

var rootCmd = &cobra.Command{
	Use:   "fi",
	Short: "Inject filesystem faults into a running process's I/O",
	Long: `fi transparently interposes a FUSE mount over a directory inside a
target process's mount namespace and mutates its filesystem I/O --
returning errors, delaying responses, or overriding file attributes --
according to a declarative configuration read from standard input. On
SIGINT/SIGTERM it restores the original directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	flags := rootCmd.Flags()
	flags.Int("pid", 0, "target process id (required)")
	flags.String("path", "", "directory inside the target to interpose (required)")
	flags.String("verbose", "trace", "log level: trace, debug, info, warn, error, off")
	flags.Int("workers", 0, "FUSE dispatcher worker goroutines (0 = GOMAXPROCS)")

	_ = rootCmd.MarkFlagRequired("pid")
	_ = rootCmd.MarkFlagRequired("path")

	_ = viper.BindPFlag("pid", flags.Lookup("pid"))
	_ = viper.BindPFlag("path", flags.Lookup("path"))
	_ = viper.BindPFlag("verbose", flags.Lookup("verbose"))
	_ = viper.BindPFlag("workers", flags.Lookup("workers"))

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()
}

// Execute runs the root command; its return value is the process exit
// code per spec.md §6 ("Exit code 0 on clean recovery, non-zero on any
// fatal error during inject or resume").
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "fi:", err)
		return 1
	}
	return 0
}

func run(cmd *cobra.Command, args []string) error {
	pid := viper.GetInt("pid")
	path := viper.GetString("path")
	sev := logger.ParseSeverity(viper.GetString("verbose"))
	workers := viper.GetInt("workers")

	if pid <= 0 {
		return fmt.Errorf("--pid must be a positive process id")
	}
	if path == "" {
		return fmt.Errorf("--path is required")
	}

	logger.Init(sev, "text", os.Getenv("FI_LOG_FILE"))
	logger.WithSession(uuid.NewString())

	chain, err := config.Load(os.Stdin, clock.Real{})
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	guard, err := mountctl.Inject(pid, path, chain, workers)
	if err != nil {
		return fmt.Errorf("inject: %w", err)
	}

	sig := siglifecycle.Wait()
	logger.Infof("fi: received %s, recovering", sig)

	if err := guard.Recover(); err != nil {
		return fmt.Errorf("recover: %w", err)
	}
	return nil
}
