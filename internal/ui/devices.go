package ui

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"beamdrop/internal/signaling"
)

// RenderDeviceTable prints the presence directory as seen from this device.
func RenderDeviceTable(devices []signaling.Device) {
	if len(devices) == 0 {
		fmt.Println(MutedStyle.Render("No other devices online"))
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Header = text.FormatTitle

	t.AppendHeader(table.Row{"#", "Device", "ID", "Last Seen"})
	now := time.Now()
	for i, dev := range devices {
		t.AppendRow(table.Row{i + 1, dev.Name, shortID(dev.ID), lastSeen(dev, now)})
	}
	t.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func lastSeen(dev signaling.Device, now time.Time) string {
	age := now.Sub(time.UnixMilli(dev.LastActive))
	if age < 5*time.Second {
		return "just now"
	}
	if age < time.Minute {
		return fmt.Sprintf("%ds ago", int(age.Seconds()))
	}
	return fmt.Sprintf("%dm ago", int(age.Minutes()))
}
