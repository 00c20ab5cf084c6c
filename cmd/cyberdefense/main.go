package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/daisymeal/cyberdefense/internal/app"
)

var (
	cfgFile string
	workers int
	jsonOut bool

	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "cyberdefense",
	Short: "Deterministic traffic inspection service",
	Long: `cyberdefense inspects traffic records and decides, for each one,
whether to ALLOW it, DROP it, or BLOCK_AND_ALERT.

Pipeline:
  - Size Guard: records declaring more than 4096 bytes are dropped
  - Signature Scanner: ordered table, first match wins
      TEST_VIRUS_SIGNATURE, EICAR_TEST_FILE, SQL_INJECTION,
      XSS_ATTACK, REVERSE_SHELL

Records arrive over HTTP (serve) or from JSON-lines files (inspect, watch).`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cyberdefense %s\n", Version)
		fmt.Printf("Commit:  %s\n", Commit)
		fmt.Printf("Built:   %s\n", BuildTime)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./configs/config.yaml)")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", 0, "number of worker goroutines for file modes")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "also write alerts as JSON lines to stdout")

	viper.BindPFlag("workers.count", rootCmd.PersistentFlags().Lookup("workers"))
	viper.BindPFlag("output.json.enabled", rootCmd.PersistentFlags().Lookup("json"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(signaturesCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/cyberdefense")
	}

	app.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Warn().Err(err).Msg("Error reading config file")
		}
	}

	viper.SetEnvPrefix("CYBERDEFENSE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// loadConfig validates the merged configuration and sets up logging from it.
func loadConfig() (app.Config, error) {
	cfg, err := app.LoadConfig(viper.GetViper())
	if err != nil {
		return cfg, err
	}
	setupLogging(cfg.Logging)
	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug().Str("file", used).Msg("Configuration loaded")
	}
	return cfg, nil
}

func setupLogging(cfg app.LoggingConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(cfg.Level)

	if cfg.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
