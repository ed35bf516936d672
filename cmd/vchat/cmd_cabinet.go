package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"venturechat/internal/auth"
)

var cabinetsCmd = &cobra.Command{
	Use:   "cabinets",
	Short: "List the investor and startup cabinets you hold",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appCfg)
		if err != nil {
			return err
		}
		defer func() { _ = a.persistSession() }()

		token, ok := a.store.Token()
		if !ok {
			return errors.New("not logged in, run `vchat login` first")
		}
		claims, err := auth.DecodeClaims(token)
		if err != nil {
			return fmt.Errorf("stored credential is unreadable: %w", err)
		}

		investors, err := a.api.UserInvestors(cmd.Context(), claims.UserID)
		if err != nil {
			return friendlyError(err)
		}
		startups, err := a.api.UserStartups(cmd.Context(), claims.UserID)
		if err != nil {
			return friendlyError(err)
		}

		active, hasActive := a.guard.CurrentIdentity()
		s := styles()

		if len(investors)+len(startups) == 0 {
			fmt.Println("No cabinets. Create one on the forum site first.")
			return nil
		}

		for _, c := range investors {
			line := fmt.Sprintf("investor #%d", c.InvestorID)
			if hasActive && active.Namespace == auth.NamespaceInvestor && active.NamespaceID == c.InvestorID {
				line = s.Success.Render(line + "  (active)")
			}
			fmt.Println(line)
		}
		for _, c := range startups {
			line := fmt.Sprintf("startup #%d", c.StartupID)
			if hasActive && active.Namespace == auth.NamespaceStartup && active.NamespaceID == c.StartupID {
				line = s.Success.Render(line + "  (active)")
			}
			fmt.Println(line)
		}
		fmt.Println("\nSwitch with `vchat select-cabinet <investor|startup> <id>`.")
		return nil
	},
}

var selectCabinetCmd = &cobra.Command{
	Use:   "select-cabinet [investor|startup] [id]",
	Short: "Switch the active cabinet",
	Long: `Switches the cabinet your messages are authored under. The backend
bakes the selection into the next issued token.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appCfg)
		if err != nil {
			return err
		}
		defer func() { _ = a.persistSession() }()

		kind := auth.Namespace(args[0])
		if !kind.Valid() {
			return fmt.Errorf("cabinet kind must be investor or startup, got %q", args[0])
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("cabinet id must be a number: %q", args[1])
		}

		if err := a.api.SelectNamespace(cmd.Context(), kind, id); err != nil {
			return friendlyError(err)
		}

		fmt.Printf("Active cabinet is now %s #%d\n", kind, id)
		return nil
	},
}
