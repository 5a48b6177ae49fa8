/*
	Copyright 2024 Grancakongen
*/

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/grancakongen/segment-export-go/pkg/catalog"
	exportCmd "github.com/grancakongen/segment-export-go/pkg/cmd/export"
	rawCmd "github.com/grancakongen/segment-export-go/pkg/cmd/raw"
	segmentsCmd "github.com/grancakongen/segment-export-go/pkg/cmd/segments"
	"github.com/grancakongen/segment-export-go/pkg/config"
	"github.com/grancakongen/segment-export-go/version"
)

const envPrefix = "GRANCA"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "granca",
	Short:   "Exports Grancakongen segment efforts from Strava to a spreadsheet file",
	Long:    ``,
	Version: version.FullVersion,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.granca.yml)")

	rootCmd.PersistentFlags().StringVar(&config.BaseURL, "base-url",
		"https://www.strava.com",
		"Base URL of the fitness service")
	rootCmd.PersistentFlags().StringVar(&config.CaptureFile, "capture-file",
		".strava_curl",
		"Path to the saved browser request (copy as cURL)")
	rootCmd.PersistentFlags().StringVar(&config.Cookie, "cookie",
		"",
		"Cookie header value (overrides the capture file)")
	rootCmd.PersistentFlags().StringVar(&config.CSRFToken, "csrf-token",
		"",
		"CSRF token (overrides the capture file)")
	rootCmd.PersistentFlags().StringVar(&config.UserAgent, "user-agent",
		"",
		"User-Agent header (overrides the capture file)")
	rootCmd.PersistentFlags().StringVar(&config.HTTPTimeout, "http-timeout",
		"30s",
		"Timeout for a single request against the service")
	rootCmd.PersistentFlags().StringVar(&config.LogLevel, "log-level",
		"info",
		"controls the log level (debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().StringVar(&config.LogFormat, "log-format",
		"text",
		"controls the log output format (text, json)")
	rootCmd.PersistentFlags().StringVar(&config.LogFilter, "log-filter",
		"",
		"filter rules for logger names, for example 'debug:strava* info:*'")

	rootCmd.PersistentFlags().StringVar(&config.SheetID, "sheet-id",
		catalog.DefaultSheetID,
		"Google sheet holding the segment catalog and the athlete roster")
	rootCmd.PersistentFlags().StringVar(&config.CatalogGID, "catalog-gid",
		catalog.DefaultCatalogGID,
		"Sheet tab (gid) containing the segment definitions")
	rootCmd.PersistentFlags().StringVar(&config.RosterGID, "roster-gid",
		catalog.DefaultRosterGID,
		"Sheet tab (gid) containing the athlete roster")
	rootCmd.PersistentFlags().StringVar(&config.SegmentsFile, "segments-file",
		"",
		"Local YAML segment catalog (takes precedence over the sheet)")

	// add commands here
	rootCmd.AddCommand(exportCmd.NewExportCmd())
	rootCmd.AddCommand(segmentsCmd.NewSegmentsCmd())
	rootCmd.AddCommand(rawCmd.NewRawCmd())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".granca" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".granca")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	bindFlags(rootCmd, viper.GetViper())
	for _, cmd := range rootCmd.Commands() {
		bindFlags(cmd, viper.GetViper())
	}
}

// Bind each cobra flag to its associated viper configuration
// (config file and environment variable)
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		// Environment variables can't have dashes in them, so bind them to their
		// equivalent keys with underscores, e.g. --capture-file to GRANCA_CAPTURE_FILE
		if strings.Contains(f.Name, "-") {
			envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			if err := v.BindEnv(f.Name,
				fmt.Sprintf("%s_%s", envPrefix, envVarSuffix)); err != nil {
				fmt.Fprintf(os.Stderr, "Could not bind env var %s: %v", f.Name, err)
			}
		}
		// Apply the viper config value to the flag when the flag is not set and viper
		// has a value
		if !f.Changed && v.IsSet(f.Name) {
			val := v.Get(f.Name)
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
				fmt.Fprintf(os.Stderr, "Could set flag value for %s: %v", f.Name, err)
			}
		}
	})
}
