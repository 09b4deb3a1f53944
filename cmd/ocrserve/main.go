package main

import (
	"os"

	"github.com/opengs/ocrserve/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var log = logrus.StandardLogger()

var mainCMD = &cobra.Command{
	Use:   "ocrserve",
	Short: "OCR over HTTP",
	Long:  "Serves text recognition of images over HTTP and talks to running servers.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFiles, _ := cmd.Flags().GetStringSlice("env-file")
		config.LoadEnv(envFiles...)
		if err := config.BindEnv(cmd.Flags(), config.EnvPrefix); err != nil {
			return err
		}

		level, _ := cmd.Flags().GetString("log-level")
		format, _ := cmd.Flags().GetString("log-format")
		logger, err := config.NewLogger(level, format)
		if err != nil {
			return err
		}
		log = logger
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
	SilenceUsage: true,
}

func init() {
	mainCMD.PersistentFlags().StringSlice("env-file", nil, "Env files to load. By default .env from working directory is loaded if present")
	mainCMD.PersistentFlags().String("log-level", "info", "Log level. One of trace, debug, info, warn, error")
	mainCMD.PersistentFlags().String("log-format", config.LogFormatText, "Log format. Either text or json")

	mainCMD.AddCommand(serveCMD, initCMD, ocrCMD)
}

func main() {
	if err := mainCMD.Execute(); err != nil {
		os.Exit(1)
	}
}
