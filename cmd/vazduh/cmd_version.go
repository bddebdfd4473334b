package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is stamped by the build, e.g. -ldflags "-X main.version=v1.2.0".
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the daemon version",
	Run: func(*cobra.Command, []string) {
		fmt.Println("vazduh " + version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
