package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "sudomode",
	Short: "sudomode guards sensitive actions behind a timed re-authentication window",
	Long: `A session service that grants "sudo mode" after login or password re-entry
and requires it for privileged member administration.`,
	SilenceUsage: true,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to sudomode.yaml")
}
