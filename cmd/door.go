package cmd

import (
	"context"
	"fmt"

	"github.com/habedi/sparkdoor/apps/door"
	"github.com/habedi/sparkdoor/db"
	"github.com/habedi/sparkdoor/pkg/clierr"
	"github.com/habedi/sparkdoor/pkg/validation"
	"github.com/spf13/cobra"
)

// doorCmd manages the data owned by the door app.
func doorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "door",
		Short: "Manage id cards of door devices",
	}

	cmd.AddCommand(addCardCmd())

	return cmd
}

func addCardCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "add-card [deviceID] [uid]",
		Short: "Allow an RFID card to open a door",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			deviceID, uid := args[0], args[1]
			if err := validation.ValidateCardUID(uid); err != nil {
				return clierr.New(clierr.Validation, err.Error(), err)
			}
			return withStack(cmd, func(ctx context.Context, s *stack) error {
				d, err := s.devices.GetByDeviceID(ctx, deviceID)
				if err != nil {
					return clierr.New(clierr.Internal, "Failed to read the device registry.", err)
				}
				if d == nil {
					return clierr.New(clierr.NotFound, fmt.Sprintf("Device %s is not registered.", deviceID), nil)
				}
				if d.AppName != door.AppName {
					return clierr.New(clierr.Validation, fmt.Sprintf("Device %s does not run the door app.", deviceID), nil)
				}
				if err := s.doors.AddIDCard(ctx, &db.IDCard{DeviceID: deviceID, UID: uid, Name: name}); err != nil {
					return clierr.New(clierr.Conflict, "Failed to add the card; it may already be registered.", err)
				}
				cmd.Printf("Card %s can now open %s.\n", uid, deviceID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Name of the card holder")

	return cmd
}
