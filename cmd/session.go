package cmd

import (
	"context"
	"fmt"
	"time"

	"beamdrop/internal/config"
	"beamdrop/internal/device"
	"beamdrop/internal/files"
	"beamdrop/internal/rtc"
	"beamdrop/internal/session"
	"beamdrop/internal/signaling"
	"beamdrop/internal/transfer"
	"beamdrop/internal/ui"
	"beamdrop/internal/utils"
)

// AppContext bundles the pieces every command needs: config, the signaling
// store, and this device's identity.
type AppContext struct {
	Config *config.Config
	Store  *signaling.RedisStore
	Dev    device.Identity
}

func NewAppContext(opts config.Options) (*AppContext, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, transfer.NewError("load config", err)
	}

	dev, err := device.Load(cfg.DeviceName)
	if err != nil {
		return nil, transfer.NewError("load device identity", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := signaling.NewRedisStore(ctx, cfg)
	if err != nil {
		return nil, transfer.NewError("connect to signaling store", err)
	}

	return &AppContext{Config: cfg, Store: store, Dev: dev}, nil
}

func (c *AppContext) Close() {
	if err := c.Store.Close(); err != nil {
		ui.PrintWarning("signaling store close: " + err.Error())
	}
}

// runSenderSession hosts the room and streams the batch once a receiver
// connects.
func runSenderSession(app *AppContext, roomID string, fileInfos []files.FileInfo) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, err := session.New(app.Store, app.Config, roomID, rtc.RoleHost)
	if err != nil {
		return transfer.NewError("create session", err)
	}
	defer sess.Teardown()

	if err := sess.Start(ctx); err != nil {
		return transfer.NewError("start session", err)
	}

	if err := waitForConnection(ctx, sess, "Waiting for receiver to join..."); err != nil {
		return err
	}

	names := make([]string, len(fileInfos))
	sizes := make([]int64, len(fileInfos))
	for i, f := range fileInfos {
		names[i] = f.Name
		sizes[i] = f.Size
	}

	tui := ui.NewTransferUI(ui.ModeSend, names, sizes)
	tui.OnCancel(cancel)
	tui.SetState("Sending files...")
	tui.Start()

	start := time.Now()
	errCh := make(chan error, 1)
	go func() {
		errCh <- sess.Send(ctx, fileInfos)
	}()

	err = consumeTransferEvents(sess, tui, errCh)
	tui.Stop()
	if err != nil {
		return err
	}

	// Give the receiver its leave window before tearing the room down
	time.Sleep(transfer.LeaveDelay)

	printSummary("Sent", len(fileInfos), files.GetTotalSize(fileInfos), time.Since(start))
	return nil
}

// runReceiverSession joins the room and writes incoming files under the
// configured output directory.
func runReceiverSession(app *AppContext, roomID string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, err := session.New(app.Store, app.Config, roomID, rtc.RolePeer)
	if err != nil {
		return transfer.NewError("create session", err)
	}
	defer sess.Teardown()

	stopSpinner := ui.RunConnectionSpinner("Connecting to sender...")
	err = sess.Start(ctx)
	stopSpinner()
	if err != nil {
		return transfer.NewError("start session", err)
	}

	factory := transfer.DirSinkFactory{OutputDir: app.Config.OutputDir}
	if err := sess.StartReceiving(ctx, factory); err != nil {
		return transfer.NewError("attach receiver", err)
	}

	if err := waitForConnection(ctx, sess, "Establishing connection..."); err != nil {
		return err
	}

	tui := ui.NewTransferUI(ui.ModeReceive, nil, nil)
	tui.OnCancel(cancel)
	tui.SetState("Waiting for files...")
	tui.Start()

	start := time.Now()
	count, total, err := consumeReceiveEvents(ctx, sess, tui)
	tui.Stop()
	if err != nil {
		return err
	}

	// The sender holds the room open; leaving promptly but not instantly
	// lets its trailing teardown land cleanly
	time.Sleep(transfer.LeaveDelay)

	printSummary("Received", count, total, time.Since(start))
	return nil
}

func waitForConnection(ctx context.Context, sess *session.Session, message string) error {
	stopSpinner := ui.RunWaitingSpinner(message)
	defer stopSpinner()

	for {
		select {
		case ev := <-sess.Events():
			switch ev.Type {
			case session.EventConnected:
				return nil
			case session.EventDisconnected:
				return transfer.NewError("connect", fmt.Errorf("peer connection lost"))
			case session.EventError:
				return ev.Err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func consumeTransferEvents(sess *session.Session, tui *ui.TransferUI, errCh chan error) error {
	for {
		select {
		case ev := <-sess.Events():
			switch ev.Type {
			case session.EventProgress:
				tui.UpdateProgress(ev.FileIndex, ev.Bytes)
			case session.EventFileDone:
				tui.MarkComplete(ev.FileIndex)
			case session.EventDisconnected:
				return transfer.NewError("send", fmt.Errorf("peer connection lost"))
			case session.EventError:
				if ev.Err != nil {
					tui.MarkFailed(ev.FileIndex, ev.Err.Error())
				}
			}
		case err := <-errCh:
			return err
		}
	}
}

func consumeReceiveEvents(ctx context.Context, sess *session.Session, tui *ui.TransferUI) (count int, total int64, err error) {
	for {
		select {
		case ev := <-sess.Events():
			switch ev.Type {
			case session.EventMeta:
				tui.AddFile(ev.FileName, ev.Total)
				tui.SetState("Receiving " + ev.FileName)
			case session.EventProgress:
				tui.UpdateProgress(ev.FileIndex, ev.Bytes)
			case session.EventFileDone:
				tui.MarkComplete(ev.FileIndex)
				count++
				total += ev.Total
			case session.EventAllDone:
				return count, total, nil
			case session.EventDisconnected:
				return count, total, transfer.NewError("receive", fmt.Errorf("peer connection lost"))
			case session.EventError:
				if ev.Err != nil {
					return count, total, ev.Err
				}
			}
		case <-ctx.Done():
			return count, total, transfer.NewError("receive", transfer.ErrTransferCancelled)
		}
	}
}

func printSummary(status string, count int, totalSize int64, elapsed time.Duration) {
	speed := float64(totalSize) / elapsed.Seconds()

	fmt.Println()
	ui.RenderTransferSummary(ui.TransferSummary{
		Status:    status,
		Files:     count,
		TotalSize: utils.FormatSize(totalSize),
		Duration:  utils.FormatTimeDuration(elapsed),
		Speed:     utils.FormatSpeed(speed),
	})
}
