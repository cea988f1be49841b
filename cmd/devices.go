package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/habedi/sparkdoor/db"
	"github.com/habedi/sparkdoor/device"
	"github.com/habedi/sparkdoor/pkg/clierr"
	"github.com/habedi/sparkdoor/pkg/config"
	"github.com/habedi/sparkdoor/pkg/pool"
	"github.com/habedi/sparkdoor/pkg/validation"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// devicesCmd groups the commands that work on the device registry.
func devicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List, register and probe devices",
	}

	cmd.AddCommand(
		cloudDevicesCmd(),
		registeredDevicesCmd(),
		registerDeviceCmd(),
		removeDeviceCmd(),
		probeDevicesCmd(),
	)

	return cmd
}

func cloudDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the devices visible to the cloud account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd, func(ctx context.Context, s *stack) error {
				token, err := s.tokens.Refresh(ctx)
				if err != nil {
					return err
				}
				devices := s.cloud.ListDevices(ctx, token)
				if len(devices) == 0 {
					cmd.Println("No devices found in the cloud account.")
					return nil
				}

				table := newTable(cmd.OutOrStdout(), []string{"Device ID", "Name", "Connected", "Last Heard"})
				for _, d := range devices {
					lastHeard := "-"
					if d.LastHeard != nil {
						lastHeard = d.LastHeard.Local().Format(time.DateTime)
					}
					table.Append([]string{d.ID, d.Name, fmt.Sprintf("%v", d.Connected), lastHeard})
				}
				table.Render()
				return nil
			})
		},
	}
}

func registeredDevicesCmd() *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "registered",
		Short: "Show the devices in the local registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd, func(ctx context.Context, s *stack) error {
				var devices []db.Device
				var err error
				if owner != "" {
					devices, err = s.devices.ListForOwner(ctx, owner)
				} else {
					devices, err = s.devices.List(ctx)
				}
				if err != nil {
					return clierr.New(clierr.Internal, "Failed to list registered devices.", err)
				}
				if len(devices) == 0 {
					cmd.Println("No registered devices. Use `sparkdoor devices register` to add one.")
					return nil
				}

				table := newTable(cmd.OutOrStdout(), []string{"Row ID", "Device ID", "Name", "Owner", "App"})
				for i, d := range devices {
					app := d.AppName
					if !s.registry.Registered(app) {
						app += " (default)"
					}
					table.Append([]string{fmt.Sprintf("%d", i+1), d.DeviceID, d.Name, d.OwnerID, strings.TrimSpace(app)})
				}
				table.Render()
				cmd.Printf("Available apps: %s\n", strings.Join(s.registry.Names(), ", "))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&owner, "owner", "o", "", "Only show devices of this owner")

	return cmd
}

func registerDeviceCmd() *cobra.Command {
	var name, owner string

	cmd := &cobra.Command{
		Use:   "register [deviceID]",
		Short: "Register a cloud device in the local registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.ValidateDeviceID(args[0]); err != nil {
				return clierr.New(clierr.Validation, err.Error(), err)
			}
			return withStack(cmd, func(ctx context.Context, s *stack) error {
				d, err := s.registrar.Register(ctx, args[0], name, owner)
				if err != nil {
					return err
				}
				app := d.AppName
				if app == "" {
					app = "none"
				}
				cmd.Printf("Registered device %s (%s) with app %s.\n", d.DeviceID, d.Name, app)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name (defaults to the cloud name)")
	cmd.Flags().StringVarP(&owner, "owner", "o", "", "Owner of the device")

	return cmd
}

func removeDeviceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove [deviceID]",
		Short: "Remove a device from the local registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd, func(ctx context.Context, s *stack) error {
				exists, err := s.devices.Exists(ctx, args[0])
				if err != nil {
					return clierr.New(clierr.Internal, "Failed to read the device registry.", err)
				}
				if !exists {
					return clierr.New(clierr.NotFound, fmt.Sprintf("Device %s is not registered.", args[0]), nil)
				}
				if err := s.devices.Delete(ctx, args[0]); err != nil {
					return clierr.New(clierr.Internal, "Failed to remove the device.", err)
				}
				cmd.Printf("Removed device %s.\n", args[0])
				return nil
			})
		},
	}
}

// probeResult is what probing learns about one registered device.
type probeResult struct {
	Connected bool
	AppName   string
	Functions int
}

func probeDevicesCmd() *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check every registered device against the cloud concurrently",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.ValidateWorkerCount(workers); err != nil {
				return clierr.New(clierr.Validation, err.Error(), err)
			}
			return withStack(cmd, func(ctx context.Context, s *stack) error {
				return probeDevices(ctx, cmd, s, workers)
			})
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", config.GetEnvIntOrDefault(config.EnvProbeWorkers, config.DefaultProbeWorkers), "Number of devices to probe at once [1-20]")

	return cmd
}

func probeDevices(ctx context.Context, cmd *cobra.Command, s *stack, workers int) error {
	devices, err := s.devices.List(ctx)
	if err != nil {
		return clierr.New(clierr.Internal, "Failed to list registered devices.", err)
	}
	if len(devices) == 0 {
		cmd.Println("No registered devices to probe.")
		return nil
	}
	// One renewal up front so the workers share a fresh token.
	if _, err := s.tokens.Refresh(ctx); err != nil {
		return err
	}

	bar := progressbar.NewOptions(len(devices),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription("Probing devices..."),
		progressbar.OptionSetWidth(20),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	results := pool.Map(ctx, devices, workers, func(ctx context.Context, d db.Device) (probeResult, error) {
		defer func() { _ = bar.Add(1) }()
		p := s.proxy(d.DeviceID)
		desc, err := p.Descriptor(ctx)
		if err != nil {
			return probeResult{}, err
		}
		res := probeResult{Connected: desc.Connected, Functions: len(desc.Functions)}
		vars, _ := p.Variables(ctx)
		if _, ok := vars[device.AppNameVariable]; ok && desc.Connected {
			if v, err := p.Read(ctx, device.AppNameVariable); err == nil {
				res.AppName, _ = v.(string)
			} else {
				return res, err
			}
		}
		return res, nil
	})
	_ = bar.Finish()

	table := newTable(cmd.OutOrStdout(), []string{"Device ID", "Connected", "App (registered)", "App (reported)", "Functions", "Status"})
	failed := 0
	for _, r := range results {
		status := "ok"
		switch {
		case r.Skipped:
			status = "skipped"
		case r.Err != nil:
			failed++
			status = classify(r.Err).Error()
			log.Warn().Err(r.Err).Str("device", r.Item.DeviceID).Msg("Probe failed")
		case r.Value.AppName != "" && r.Value.AppName != r.Item.AppName:
			status = "app changed"
		}
		table.Append([]string{
			r.Item.DeviceID,
			fmt.Sprintf("%v", r.Value.Connected),
			r.Item.AppName,
			r.Value.AppName,
			fmt.Sprintf("%d", r.Value.Functions),
			status,
		})
	}
	table.Render()
	cmd.Printf("Probed %d device(s), %d failed.\n", len(results), failed)
	return nil
}
