package cmd

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"beamdrop/internal/ui"
	"beamdrop/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "beamdrop",
	Short:   "Peer-to-peer file transfer between your devices using WebRTC",
	Long: `Beamdrop transfers files directly between devices over a WebRTC data
channel. A shared signaling store pairs the two sides by a 6-digit code or by
picking a device from the lobby; the file bytes themselves never touch a
server.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		os.Exit(0)
	}()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
