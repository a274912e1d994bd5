package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/xabinapal/sstray/internal/keyring"
)

// secretStatusOutput represents the secret status output for JSON.
type secretStatusOutput struct {
	Profile string `json:"profile"`
	Stored  bool   `json:"stored"`
}

// newSecretCmd creates the secret command group.
func (cli *CLI) newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage profile passwords in the system keyring",
		Long: `Manage the passwords of proxy profiles that set password_keyring: true.

Passwords are stored in the system keyring under the profile's display name.`,
	}

	cmd.AddCommand(
		cli.newSecretSetCmd(),
		cli.newSecretDeleteCmd(),
		cli.newSecretStatusCmd(),
	)

	return cmd
}

func (cli *CLI) newSecretSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <profile>",
		Short: "Store the password of a profile",
		Long: `Store the password of a profile in the system keyring.

The password is prompted for without echo when run in a terminal, and read
from the first line of standard input otherwise.

Examples:
  sstray secret set tokyo
  printf '%s\n' "$PASSWORD" | sstray secret set tokyo`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			password, err := cli.readPassword(name)
			if err != nil {
				return err
			}
			if password == "" {
				return errors.New("password cannot be empty")
			}

			if err := cli.Keyring.Set(name, password); err != nil {
				return withKeyringHint(errors.Wrapf(err, "cannot store password for %q", name))
			}

			cli.Logger.Debug("Stored password", "profile", name)
			fmt.Fprintf(cli.stdout, "Password for '%s' stored.\n", name)
			return nil
		},
	}
}

func (cli *CLI) newSecretDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <profile>",
		Aliases: []string{"rm"},
		Short:   "Remove the stored password of a profile",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := cli.Keyring.Delete(name); err != nil {
				return withKeyringHint(errors.Wrapf(err, "cannot delete password for %q", name))
			}
			fmt.Fprintf(cli.stdout, "Password for '%s' deleted.\n", name)
			return nil
		},
	}
}

func (cli *CLI) newSecretStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <profile>",
		Short: "Report whether a password is stored for a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, err := cli.output()
			if err != nil {
				return err
			}

			name := args[0]
			_, err = cli.Keyring.Get(name)
			switch {
			case err == nil:
			case errors.Is(err, keyring.ErrPasswordNotFound):
			default:
				return withKeyringHint(errors.Wrapf(err, "cannot read password for %q", name))
			}

			out := secretStatusOutput{Profile: name, Stored: err == nil}
			return output.Write(out, func() {
				if out.Stored {
					fmt.Fprintf(cli.stdout, "Password for '%s' is stored.\n", name)
				} else {
					fmt.Fprintf(cli.stdout, "No password stored for '%s'.\n", name)
				}
			})
		},
	}
}

// readPassword prompts on the terminal, or reads a line from a non-terminal stdin.
func (cli *CLI) readPassword(name string) (string, error) {
	if f, ok := cli.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(cli.stderr, "Password for '%s': ", name)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cli.stderr)
		if err != nil {
			return "", errors.Wrap(err, "failed to read password")
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(cli.stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", errors.Wrap(err, "failed to read password from stdin")
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func withKeyringHint(err error) error {
	switch {
	case errors.Is(err, keyring.ErrKeyringUnavailable):
		return errors.WithHint(err, "install and unlock a keyring service (gnome-keyring, kwallet or macOS Keychain)")
	case errors.Is(err, keyring.ErrKeyringAccessDenied):
		return errors.WithHint(err, "allow sstray to access the keyring and try again")
	}
	return err
}
