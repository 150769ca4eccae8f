package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	envFile    string
	flagIP     string
	flagSerial string
	flagLevel  string

	cfg Config
)

var rootCmd = &cobra.Command{
	Use:   "nobo",
	Short: "Nobø Hub Control CLI",
	Long:  `A command line interface for monitoring and controlling Nobø Ecohub heating systems.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig(configPath, envFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("ip") {
			loaded.Address = flagIP
		}
		if cmd.Flags().Changed("serial") {
			loaded.Serial = flagSerial
		}
		if cmd.Flags().Changed("log-level") {
			loaded.LogLevel = flagLevel
		}
		cfg = loaded
		return nil
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
