package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/habedi/sparkdoor/apps"
	"github.com/habedi/sparkdoor/auth"
	"github.com/habedi/sparkdoor/client"
	"github.com/habedi/sparkdoor/db"
	"github.com/habedi/sparkdoor/device"
	"github.com/habedi/sparkdoor/pkg/clierr"
	"github.com/habedi/sparkdoor/pkg/config"
	"github.com/habedi/sparkdoor/pkg/validation"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/term"
)

// promptForInput prompts the user for input and returns the trimmed string.
func promptForInput(r *bufio.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	input, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && input != "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(input), nil
}

// promptForPassword reads a password without echo when in is a terminal,
// and a plain line from r otherwise.
func promptForPassword(r *bufio.Reader, in io.Reader, out io.Writer, prompt string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(out, prompt)
		password, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out) // Print a newline for better formatting
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimSpace(string(password)), nil
	}
	return promptForInput(r, out, prompt)
}

// validateCredentials checks if the username and password are not empty.
func validateCredentials(username, password string) error {
	return errors.Join(
		validation.ValidateNonEmptyString("username", username),
		validation.ValidateNonEmptyString("password", password),
	)
}

// newTable returns a left-aligned table writer with header.
func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAlignment(tablewriter.ALIGN_LEFT)       // Align all columns to the left
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT) // Align headers to the left
	table.SetAutoWrapText(false)                     // Disable text wrapping in all columns
	table.SetRowLine(false)                          // Disable row line breaks
	return table
}

// classify turns a domain error into a CLI error with a user-facing message.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ce *clierr.Error
	if errors.As(err, &ce) {
		return err
	}

	var de *device.DeviceUnreachableError
	switch {
	case errors.Is(err, auth.ErrCredentialsInvalid), errors.Is(err, client.ErrAuth):
		return clierr.New(clierr.Auth, "The cloud rejected the account credentials. Check SPARKDOOR_CLOUD_USERNAME and SPARKDOOR_CLOUD_PASSWORD.", err)
	case errors.Is(err, config.ErrMissingCredentials):
		return clierr.New(clierr.Validation, "Token renewal needs the cloud account. Set "+config.EnvCloudUsername+" and "+config.EnvCloudPassword+".", err)
	case errors.Is(err, auth.ErrTokenUnavailable):
		return clierr.New(clierr.Auth, "No access token is available yet. Another process is renewing it; try again shortly.", err)
	case errors.As(err, &de):
		if de.StatusCode == http.StatusUnauthorized || de.StatusCode == http.StatusForbidden {
			return clierr.New(clierr.Auth, fmt.Sprintf("Not authorized to reach device %s (status %d).", de.DeviceID, de.StatusCode), err)
		}
		return clierr.New(clierr.Unreachable, fmt.Sprintf("Device %s is unreachable (status %d).", de.DeviceID, de.StatusCode), err)
	case errors.Is(err, apps.ErrInvalidRequest):
		return clierr.New(clierr.Validation, err.Error(), err)
	case errors.Is(err, apps.ErrUnknownAction):
		return clierr.New(clierr.Validation, err.Error(), err)
	case errors.Is(err, db.ErrDeviceExists):
		return clierr.New(clierr.Conflict, err.Error(), err)
	case errors.Is(err, device.ErrNotInCloud):
		return clierr.New(clierr.NotFound, err.Error(), err)
	}
	return clierr.New(clierr.Internal, err.Error(), err)
}

// parseActionArgs turns key=value pairs into action arguments.
func parseActionArgs(pairs []string) (apps.Args, error) {
	args := apps.Args{}
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, clierr.New(clierr.Validation, fmt.Sprintf("Invalid argument %q; expected key=value.", p), nil)
		}
		args[key] = value
	}
	return args, nil
}
