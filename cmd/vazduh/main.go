package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vazduh",
	Short: "Vazduh - air quality station daemon",
	Long: `Vazduh drives a PMS7003 particulate sensor and a BME280 environmental
sensor, publishes measurements over MQTT and serves a local web dashboard.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
