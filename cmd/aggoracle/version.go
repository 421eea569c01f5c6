package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags:
//
//	go build -ldflags "-X main.Version=v1.0.0" ./cmd/aggoracle
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the aggoracle version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "aggoracle "+Version)
	},
}
