package cmd

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"beamdrop/internal/config"
	"beamdrop/internal/signaling"
	"beamdrop/internal/transfer"
	"beamdrop/internal/ui"
)

var (
	flagLobbyRedisAddr  string
	flagLobbyRedisPass  string
	flagLobbyNamespace  string
	flagLobbySTUN       string
	flagLobbyDeviceName string
	flagLobbyDir        string
)

var lobbyCmd = &cobra.Command{
	Use:     "lobby",
	Aliases: []string{"l"},
	Short:   "Wait in the lobby for incoming transfers",
	Long: `Register this device in the presence directory and wait for transfer
invitations. An incoming invite joins its room automatically; a pairing code
can also be typed in directly. After each transfer the lobby resumes.

Examples:
  beamdrop lobby
  beamdrop lobby --name "Kitchen Laptop" --dir ~/Downloads`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLobby()
	},
}

func runLobby() error {
	fmt.Println()
	stopSpinner := ui.RunConnectionSpinner("Connecting to signaling store...")
	app, err := NewAppContext(config.Options{
		RedisAddr:     flagLobbyRedisAddr,
		RedisPassword: flagLobbyRedisPass,
		Namespace:     flagLobbyNamespace,
		STUNServers:   flagLobbySTUN,
		DeviceName:    flagLobbyDeviceName,
		OutputDir:     flagLobbyDir,
	})
	stopSpinner()
	if err != nil {
		return err
	}
	defer app.Close()

	heartbeatCtx, cancelHeartbeat := context.WithCancel(context.Background())
	defer cancelHeartbeat()
	stopHeartbeat := signaling.StartHeartbeat(heartbeatCtx, app.Store, signaling.Device{
		ID:   app.Dev.ID,
		Name: app.Dev.Name,
	})
	defer stopHeartbeat()

	for {
		roomID, err := waitInLobby(app)
		if err != nil {
			return err
		}
		if roomID == "" {
			return nil
		}

		if err := runReceiverSession(app, roomID); err != nil {
			ui.PrintError(err.Error())
		}
		fmt.Println()
		ui.PrintInfo("Back in the lobby")
	}
}

// waitInLobby blocks until an invite lands, a code is entered, or the user
// quits. An empty room id means the user left the lobby.
func waitInLobby(app *AppContext) (string, error) {
	model := ui.NewLobbyModel(ui.WaitForTransfer, app.Dev.Name)
	program := tea.NewProgram(model)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	devUnsub, err := app.Store.ListenToActiveDevices(ctx, app.Dev.ID, func(devices []signaling.Device) {
		program.Send(ui.DevicesMsg(devices))
	})
	if err != nil {
		return "", transfer.NewError("watch devices", err)
	}
	defer devUnsub()

	inviteUnsub, err := app.Store.ListenToIncomingInvites(ctx, app.Dev.ID, func(roomID string) {
		program.Send(ui.InviteMsg{RoomID: roomID})
	})
	if err != nil {
		return "", transfer.NewError("watch invites", err)
	}
	defer inviteUnsub()

	if _, err := program.Run(); err != nil {
		return "", transfer.NewError("lobby", err)
	}

	result := model.Result()
	if result.Cancelled {
		return "", nil
	}

	// Consume the invite so a stale mailbox entry cannot re-trigger a join
	clearCtx, clearCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer clearCancel()
	if err := app.Store.ClearIncomingInvite(clearCtx, app.Dev.ID); err != nil {
		ui.PrintWarning("clear invite: " + err.Error())
	}

	return result.RoomID, nil
}

func init() {
	rootCmd.AddCommand(lobbyCmd)

	lobbyCmd.Flags().StringVar(&flagLobbyRedisAddr, "redis", "", "Redis address for the signaling store")
	lobbyCmd.Flags().StringVar(&flagLobbyRedisPass, "redis-password", "", "Redis password")
	lobbyCmd.Flags().StringVarP(&flagLobbyNamespace, "namespace", "n", "", "Account namespace")
	lobbyCmd.Flags().StringVar(&flagLobbySTUN, "stun", "", "Comma-separated STUN server URLs")
	lobbyCmd.Flags().StringVar(&flagLobbyDeviceName, "name", "", "Device display name")
	lobbyCmd.Flags().StringVarP(&flagLobbyDir, "dir", "d", "", "Directory to save received files")
}
