package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"venturechat/internal/auth"
	"venturechat/internal/gateway"
)

var (
	loginEmail    string
	registerEmail string
	registerFirst string
	registerLast  string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with the forum backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appCfg)
		if err != nil {
			return err
		}

		email := loginEmail
		if email == "" {
			email, err = promptLine("Email: ")
			if err != nil {
				return err
			}
		}
		password, err := promptPassword("Password: ")
		if err != nil {
			return err
		}

		session, err := a.api.Login(cmd.Context(), email, password)
		if err != nil {
			return friendlyError(err)
		}
		if err := a.persistSession(); err != nil {
			return fmt.Errorf("session saved nowhere: %w", err)
		}

		fmt.Printf("Logged in as %s\n", session.Email)
		if _, ok := a.guard.CurrentIdentity(); !ok {
			fmt.Println("No cabinet selected yet. Run `vchat cabinets` to pick one.")
		}
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appCfg)
		if err != nil {
			return err
		}

		if err := a.api.Logout(cmd.Context()); err != nil && !errors.Is(err, gateway.ErrUnauthenticated) {
			fmt.Fprintf(os.Stderr, "warning: server-side logout failed: %v\n", friendlyError(err))
		}
		if err := a.clearSession(); err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a forum account",
	Long: `Creates a forum account. The backend mails a verification link; the
account is usable after confirming it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appCfg)
		if err != nil {
			return err
		}

		email := registerEmail
		if email == "" {
			email, err = promptLine("Email: ")
			if err != nil {
				return err
			}
		}
		password, err := promptPassword("Password: ")
		if err != nil {
			return err
		}
		confirm, err := promptPassword("Confirm password: ")
		if err != nil {
			return err
		}
		if password != confirm {
			return errors.New("passwords do not match")
		}

		if err := a.api.Register(cmd.Context(), email, password, registerFirst, registerLast); err != nil {
			return friendlyError(err)
		}
		fmt.Println("Registered. Check your mail for the verification link.")
		return nil
	},
}

var resetPasswordCmd = &cobra.Command{
	Use:   "reset-password [email]",
	Short: "Request a password reset link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appCfg)
		if err != nil {
			return err
		}
		if err := a.api.RequestPasswordReset(cmd.Context(), args[0]); err != nil {
			return friendlyError(err)
		}
		fmt.Println("Reset link sent if the address is known.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the active session and cabinet",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appCfg)
		if err != nil {
			return err
		}

		token, ok := a.store.Token()
		if !ok {
			return errors.New("not logged in")
		}
		claims, err := auth.DecodeClaims(token)
		if err != nil {
			return fmt.Errorf("stored credential is unreadable: %w", err)
		}

		fmt.Printf("User ID:  %d\n", claims.UserID)
		if identity, ok := a.guard.CurrentIdentity(); ok {
			fmt.Printf("Cabinet:  %s #%d\n", identity.Namespace, identity.NamespaceID)
		} else {
			fmt.Println("Cabinet:  none selected")
		}
		if a.guard.IsExpired(token) {
			fmt.Println("Session:  expired, will refresh on next request")
		} else {
			fmt.Println("Session:  live")
		}
		return nil
	},
}

func promptLine(label string) (string, error) {
	fmt.Print(label)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func promptPassword(label string) (string, error) {
	fmt.Print(label)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email")
	registerCmd.Flags().StringVar(&registerEmail, "email", "", "Account email")
	registerCmd.Flags().StringVar(&registerFirst, "first-name", "", "First name")
	registerCmd.Flags().StringVar(&registerLast, "last-name", "", "Last name")
}
