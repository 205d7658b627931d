package cmd

import (
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"beamdrop/internal/config"
	"beamdrop/internal/ui"
)

var (
	flagRecvRedisAddr  string
	flagRecvRedisPass  string
	flagRecvNamespace  string
	flagRecvSTUN       string
	flagRecvDeviceName string
	flagRecvDir        string
)

var roomCodePattern = regexp.MustCompile(`^\d{6}$`)

var receiveCmd = &cobra.Command{
	Use:     "receive <code>",
	Aliases: []string{"r"},
	Short:   "Receive files using a pairing code",
	Long: `Join a room by its 6-digit pairing code and receive the sender's files.

Examples:
  beamdrop receive 483920
  beamdrop receive 483920 --dir ~/Downloads`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID := args[0]
		if !roomCodePattern.MatchString(roomID) {
			return fmt.Errorf("invalid pairing code %q: expected 6 digits", roomID)
		}
		return receiveFiles(roomID)
	},
}

func receiveFiles(roomID string) error {
	fmt.Println()
	stopSpinner := ui.RunConnectionSpinner("Connecting to signaling store...")
	app, err := NewAppContext(config.Options{
		RedisAddr:     flagRecvRedisAddr,
		RedisPassword: flagRecvRedisPass,
		Namespace:     flagRecvNamespace,
		STUNServers:   flagRecvSTUN,
		DeviceName:    flagRecvDeviceName,
		OutputDir:     flagRecvDir,
	})
	stopSpinner()
	if err != nil {
		return err
	}
	defer app.Close()

	return runReceiverSession(app, roomID)
}

func init() {
	rootCmd.AddCommand(receiveCmd)

	receiveCmd.Flags().StringVar(&flagRecvRedisAddr, "redis", "", "Redis address for the signaling store")
	receiveCmd.Flags().StringVar(&flagRecvRedisPass, "redis-password", "", "Redis password")
	receiveCmd.Flags().StringVarP(&flagRecvNamespace, "namespace", "n", "", "Account namespace")
	receiveCmd.Flags().StringVar(&flagRecvSTUN, "stun", "", "Comma-separated STUN server URLs")
	receiveCmd.Flags().StringVar(&flagRecvDeviceName, "name", "", "Device display name")
	receiveCmd.Flags().StringVarP(&flagRecvDir, "dir", "d", "", "Directory to save received files")
}
