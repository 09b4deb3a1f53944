package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/opengs/ocrserve/client"
	"github.com/opengs/ocrserve/ocr"
	"github.com/spf13/cobra"
)

func newClient(cmd *cobra.Command) *client.Client {
	config := client.DefaultConfig()
	config.BaseURL, _ = cmd.Flags().GetString("url")
	config.Logger = log
	return client.New(config)
}

var initCMD = &cobra.Command{
	Use:   "init",
	Short: "Initialize running OCR server",
	Long:  "Sends init request to running server. Retries while server is not reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		config := client.DefaultConfig()
		config.BaseURL, _ = cmd.Flags().GetString("url")
		langs, _ := cmd.Flags().GetString("langs")
		config.Languages = ocr.ParseLanguages(langs)
		config.AllowDownload, _ = cmd.Flags().GetBool("download")
		config.UseAccelerator, _ = cmd.Flags().GetBool("gpu")
		config.InitRetries, _ = cmd.Flags().GetUint("retries")
		config.InitDelay, _ = cmd.Flags().GetDuration("retry-delay")
		config.Logger = log

		if err := client.New(config).InitWithRetry(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("OCR server initialized with languages %v", config.Languages))
		return nil
	},
}

var ocrCMD = &cobra.Command{
	Use:   "ocr FILE...",
	Short: "Recognize text on images using running OCR server",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient(cmd)

		var errs []error
		for i, file := range args {
			image, err := os.ReadFile(file)
			if err != nil {
				errs = append(errs, errors.Join(fmt.Errorf("failed to read %s", file), err))
				continue
			}

			text, err := c.OCR(cmd.Context(), filepath.Base(file), image)
			if err != nil {
				errs = append(errs, errors.Join(fmt.Errorf("failed to recognize %s", file), err))
				continue
			}

			if len(args) > 1 {
				if i > 0 {
					fmt.Fprintln(cmd.OutOrStdout())
				}
				fmt.Fprintln(cmd.OutOrStdout(), color.CyanString("==> %s <==", file))
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
		}
		return errors.Join(errs...)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{initCMD, ocrCMD} {
		cmd.Flags().String("url", client.DefaultConfig().BaseURL, "Base URL of OCR server")
	}

	initCMD.Flags().String("langs", "en", "Comma separated language codes")
	initCMD.Flags().Bool("download", false, "Allow server to download missing models")
	initCMD.Flags().Bool("gpu", false, "Use hardware acceleration if available")
	initCMD.Flags().Uint("retries", client.DefaultConfig().InitRetries, "Number of init attempts")
	initCMD.Flags().Duration("retry-delay", client.DefaultConfig().InitDelay, "Delay between init attempts")
}
