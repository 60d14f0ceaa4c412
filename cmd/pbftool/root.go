// pbftool inspects and converts OSM PBF files.
package main

import (
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/parallelpbf/internal/config"
	"github.com/wegman-software/parallelpbf/internal/logger"
)

var (
	cfg             = config.DefaultConfig()
	workersFlag     int
	verbose         bool
	logFile         string
	metricsInterval time.Duration
	profilePath     string
)

var rootCmd = &cobra.Command{
	Use:   "pbftool",
	Short: "Parallel OSM PBF inspection and conversion",
	Long: `pbftool reads and writes OSM PBF files with block-level parallelism.

Commands:
  info     print the header of a PBF file
  count    count the entities in a PBF file
  convert  decode a PBF file and re-encode it`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if profilePath != "" {
			if err := config.LoadProfile(profilePath, cfg); err != nil {
				exitWithError("failed to load profile", err)
			}
		}
		if cmd.Flags().Changed("workers") {
			cfg.Workers = workersFlag
		}
		cfg.Verbose = verbose
		if logFile != "" {
			cfg.LogFile = logFile
		}
		if cmd.Flags().Changed("metrics-interval") {
			cfg.MetricsInterval = metricsInterval
		}

		if cfg.LogFile != "" {
			logger.InitWithFile(verbose, cfg.LogFile)
		} else {
			logger.Init(verbose)
		}
	},
}

func main() {
	err := rootCmd.Execute()
	logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().IntVarP(&workersFlag, "workers", "j", cfg.Workers, "Number of parallel workers")
	rootCmd.PersistentFlags().StringVar(&profilePath, "profile", "", "Path to a YAML settings profile")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to log file for persistent logging (JSON format)")
	rootCmd.PersistentFlags().DurationVar(&metricsInterval, "metrics-interval", 30*time.Second, "Interval for system metrics logging (e.g., 10s, 1m)")
}

func exitWithError(msg string, err error) {
	log := logger.Get()
	if err != nil {
		log.Error(msg, zap.Error(err))
	} else {
		log.Error(msg)
	}
	os.Exit(1)
}
