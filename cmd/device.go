package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/habedi/sparkdoor/apps"
	"github.com/habedi/sparkdoor/client"
	"github.com/habedi/sparkdoor/pkg/clierr"
	"github.com/spf13/cobra"
)

// deviceCmd groups the commands that talk to one device.
func deviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Call functions, read variables and run app actions on a device",
	}

	cmd.AddCommand(
		deviceCallCmd(),
		deviceReadCmd(),
		deviceInfoCmd(),
		deviceActionCmd(),
		deviceRenderCmd(),
	)

	return cmd
}

func deviceCallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "call [deviceID] [function] [args...]",
		Short: "Call a device function",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd, func(ctx context.Context, s *stack) error {
				var callArgs []any
				if len(args) > 2 {
					callArgs = append(callArgs, args[2:])
				}
				rv, err := s.proxy(args[0]).Call(ctx, args[1], callArgs...)
				if err != nil {
					return err
				}
				cmd.Println("Return value:", rv)
				return nil
			})
		},
	}
}

func deviceReadCmd() *cobra.Command {
	var typ string

	cmd := &cobra.Command{
		Use:   "read [deviceID] [variable]",
		Short: "Read a device variable",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vt := client.VariableType(typ)
			switch vt {
			case "", client.VarInt32, client.VarDouble, client.VarString:
			default:
				return clierr.New(clierr.Validation, fmt.Sprintf("Invalid variable type %q; use int32, double or string.", typ), nil)
			}
			return withStack(cmd, func(ctx context.Context, s *stack) error {
				p := s.proxy(args[0])
				var v any
				var err error
				if vt == "" {
					v, err = p.Read(ctx, args[1])
				} else {
					v, err = p.ReadAs(ctx, args[1], vt)
				}
				if err != nil {
					return err
				}
				cmd.Printf("%s = %v\n", args[1], v)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&typ, "type", "t", "", "Decode the value as int32, double or string (defaults to the declared type)")

	return cmd
}

func deviceInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info [deviceID]",
		Short: "Show the cloud descriptor and registry entry of a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd, func(ctx context.Context, s *stack) error {
				desc, err := s.proxy(args[0]).Descriptor(ctx)
				if err != nil {
					return err
				}
				reg, err := s.devices.GetByDeviceID(ctx, args[0])
				if err != nil {
					return clierr.New(clierr.Internal, "Failed to read the device registry.", err)
				}

				cmd.Println("Device Information:")
				cmd.Printf("ID: %s\n", args[0])
				cmd.Printf("Name: %s\n", desc.Name)
				cmd.Printf("Connected: %v\n", desc.Connected)
				if desc.LastHeard != nil {
					cmd.Printf("Last heard: %s\n", desc.LastHeard.Local())
				}
				if reg != nil {
					cmd.Printf("Registered as: %s (owner %q, app %q)\n", reg.Name, reg.OwnerID, reg.AppName)
				} else {
					cmd.Println("Registered as: -")
				}

				cmd.Printf("Functions: %s\n", strings.Join(desc.Functions, ", "))
				names := make([]string, 0, len(desc.Variables))
				for name := range desc.Variables {
					names = append(names, name)
				}
				sort.Strings(names)
				table := newTable(cmd.OutOrStdout(), []string{"Variable", "Type"})
				for _, name := range names {
					table.Append([]string{name, string(desc.Variables[name])})
				}
				table.Render()
				return nil
			})
		},
	}
}

func deviceActionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "action [deviceID] [action] [key=value...]",
		Short: "Run an action of the device's app",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actionArgs, err := parseActionArgs(args[2:])
			if err != nil {
				return err
			}
			return withStack(cmd, func(ctx context.Context, s *stack) error {
				app, _, err := s.app(ctx, args[0])
				if err != nil {
					return err
				}
				out, err := app.Action(ctx, args[1], actionArgs)
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			})
		},
	}
}

func deviceRenderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "render [deviceID]",
		Short: "Show how the device's app presents the device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd, func(ctx context.Context, s *stack) error {
				app, reg, err := s.app(ctx, args[0])
				if err != nil {
					return err
				}
				rc := apps.Context{}
				if reg != nil {
					rc["name"] = reg.Name
					rc["owner_id"] = reg.OwnerID
				}
				out, err := app.Render(rc)
				if err != nil {
					return err
				}
				return printJSON(cmd, out)
			})
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return clierr.New(clierr.Internal, "Failed to format the result.", err)
	}
	cmd.Println(string(data))
	return nil
}
