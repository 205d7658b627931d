package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"beamdrop/internal/config"
	"beamdrop/internal/ui"
)

var (
	flagDevRedisAddr string
	flagDevRedisPass string
	flagDevNamespace string
)

var devicesCmd = &cobra.Command{
	Use:     "devices",
	Aliases: []string{"d"},
	Short:   "List devices active in this namespace",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listDevices()
	},
}

func listDevices() error {
	app, err := NewAppContext(config.Options{
		RedisAddr:     flagDevRedisAddr,
		RedisPassword: flagDevRedisPass,
		Namespace:     flagDevNamespace,
	})
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	devices, err := snapshotDevices(ctx, app)
	if err != nil {
		return err
	}

	ui.RenderDeviceTable(devices)
	return nil
}

func init() {
	rootCmd.AddCommand(devicesCmd)

	devicesCmd.Flags().StringVar(&flagDevRedisAddr, "redis", "", "Redis address for the signaling store")
	devicesCmd.Flags().StringVar(&flagDevRedisPass, "redis-password", "", "Redis password")
	devicesCmd.Flags().StringVarP(&flagDevNamespace, "namespace", "n", "", "Account namespace")
}
