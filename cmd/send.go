package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"beamdrop/internal/config"
	"beamdrop/internal/files"
	"beamdrop/internal/signaling"
	"beamdrop/internal/transfer"
	"beamdrop/internal/ui"
)

var (
	flagRedisAddr  string
	flagRedisPass  string
	flagNamespace  string
	flagSTUN       string
	flagDeviceName string
	flagSendTo     string
	flagSendPick   bool
)

var sendCmd = &cobra.Command{
	Use:     "send <files...>",
	Aliases: []string{"s"},
	Short:   "Send files to another device",
	Long: `Send files directly to another device over a WebRTC data channel.

The receiver either enters the displayed 6-digit code, or gets invited
directly when a target device is named.

Examples:
  beamdrop send file1.txt file2.pdf
  beamdrop send --to "Kitchen Laptop" photo.jpg
  beamdrop send --pick video.mp4`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendFiles(args)
	},
}

func sendFiles(filePaths []string) error {
	stopSpinner := ui.RunSpinner("Validating files...")
	defer stopSpinner()
	fileInfos, err := files.ValidateFiles(filePaths)
	if err != nil {
		return err
	}
	stopSpinner()

	displayFileTable(fileInfos)

	fmt.Println()
	stopSpinner = ui.RunConnectionSpinner("Connecting to signaling store...")
	defer stopSpinner()
	app, err := NewAppContext(config.Options{
		RedisAddr:     flagRedisAddr,
		RedisPassword: flagRedisPass,
		Namespace:     flagNamespace,
		STUNServers:   flagSTUN,
		DeviceName:    flagDeviceName,
	})
	if err != nil {
		return err
	}
	defer app.Close()
	stopSpinner()

	roomID := signaling.NewRoomCode()

	switch {
	case flagSendTo != "":
		if err := inviteByName(app, flagSendTo, roomID); err != nil {
			return err
		}
	case flagSendPick:
		if err := inviteByPicker(app, roomID); err != nil {
			return err
		}
	default:
		fmt.Println()
		ui.RenderRoomCode(roomID)
	}

	return runSenderSession(app, roomID, fileInfos)
}

func displayFileTable(fileInfos []files.FileInfo) {
	items := make([]ui.FileTableItem, len(fileInfos))
	for i, f := range fileInfos {
		items[i] = ui.FileTableItem{Index: i + 1, Name: f.Name, Size: f.Size, Type: f.Type}
	}
	fmt.Println()
	ui.RenderFileTable(items)
}

// inviteByName matches an active device by its display name and drops the
// room id into its invite mailbox.
func inviteByName(app *AppContext, name, roomID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	devices, err := snapshotDevices(ctx, app)
	if err != nil {
		return err
	}

	for _, dev := range devices {
		if strings.EqualFold(dev.Name, name) {
			return sendInvite(app, dev, roomID)
		}
	}
	return fmt.Errorf("no active device named %q", name)
}

// inviteByPicker opens the lobby in pick mode and invites the chosen device.
func inviteByPicker(app *AppContext, roomID string) error {
	model := ui.NewLobbyModel(ui.PickDevice, app.Dev.Name)
	program := tea.NewProgram(model)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	unsub, err := app.Store.ListenToActiveDevices(ctx, app.Dev.ID, func(devices []signaling.Device) {
		program.Send(ui.DevicesMsg(devices))
	})
	if err != nil {
		return transfer.NewError("watch devices", err)
	}
	defer unsub()

	if _, err := program.Run(); err != nil {
		return transfer.NewError("device picker", err)
	}

	result := model.Result()
	if result.Cancelled || result.Device == nil {
		return fmt.Errorf("no device selected")
	}
	return sendInvite(app, *result.Device, roomID)
}

func sendInvite(app *AppContext, dev signaling.Device, roomID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.Store.SendTransferInvite(ctx, dev.ID, roomID); err != nil {
		return transfer.NewError("send invite", err)
	}
	ui.PrintSuccessf("Invited %s %s", dev.Name, ui.IconInvite)
	return nil
}

// snapshotDevices takes one reading of the active-device directory.
func snapshotDevices(ctx context.Context, app *AppContext) ([]signaling.Device, error) {
	snapshot := make(chan []signaling.Device, 1)
	unsub, err := app.Store.ListenToActiveDevices(ctx, app.Dev.ID, func(devices []signaling.Device) {
		select {
		case snapshot <- devices:
		default:
		}
	})
	if err != nil {
		return nil, transfer.NewError("list devices", err)
	}
	defer unsub()

	select {
	case devices := <-snapshot:
		return devices, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVar(&flagRedisAddr, "redis", "", "Redis address for the signaling store")
	sendCmd.Flags().StringVar(&flagRedisPass, "redis-password", "", "Redis password")
	sendCmd.Flags().StringVarP(&flagNamespace, "namespace", "n", "", "Account namespace")
	sendCmd.Flags().StringVar(&flagSTUN, "stun", "", "Comma-separated STUN server URLs")
	sendCmd.Flags().StringVar(&flagDeviceName, "name", "", "Device display name")
	sendCmd.Flags().StringVarP(&flagSendTo, "to", "t", "", "Invite the named device directly")
	sendCmd.Flags().BoolVarP(&flagSendPick, "pick", "p", false, "Pick the target device interactively")
}
