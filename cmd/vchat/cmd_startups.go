package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var startupSearch string

var startupsCmd = &cobra.Command{
	Use:   "startups",
	Short: "Browse the startup catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appCfg)
		if err != nil {
			return err
		}
		defer func() { _ = a.persistSession() }()

		startups, err := a.api.Startups(cmd.Context(), startupSearch)
		if err != nil {
			return friendlyError(err)
		}
		if len(startups) == 0 {
			fmt.Println("No startups found.")
			return nil
		}

		s := styles()
		for _, st := range startups {
			fmt.Printf("%s  %s\n",
				s.Bold.Render(fmt.Sprintf("#%-5d", st.StartupID)),
				st.Name)
		}
		return nil
	},
}

func init() {
	startupsCmd.Flags().StringVar(&startupSearch, "search", "", "Filter by name, location or description")
}
