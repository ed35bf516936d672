package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	tuichat "venturechat/cmd/vchat/chat"
	"venturechat/internal/auth"
	"venturechat/internal/chat"
	"venturechat/internal/forum"
)

var contactMessage string

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List your conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appCfg)
		if err != nil {
			return err
		}
		defer func() { _ = a.persistSession() }()

		rooms, err := a.api.Conversations(cmd.Context())
		if err != nil {
			return friendlyError(err)
		}
		if len(rooms) == 0 {
			fmt.Println("No conversations yet. Start one with `vchat contact <startup-id>`.")
			return nil
		}

		s := styles()
		for _, r := range rooms {
			name := r.Name
			if name == "" {
				name = "(unnamed)"
			}
			fmt.Printf("%s  %s\n", s.Bold.Render(string(r.ID)), name)
		}
		return nil
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat [room-id]",
	Short: "Open a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appCfg)
		if err != nil {
			return err
		}
		defer func() { _ = a.persistSession() }()

		room := forum.Room{ID: forum.OID(args[0])}
		if rooms, err := a.api.Conversations(cmd.Context()); err == nil {
			for _, r := range rooms {
				if r.ID == room.ID {
					room = r
					break
				}
			}
		}
		return openConversation(a, room)
	},
}

var contactCmd = &cobra.Command{
	Use:   "contact [startup-id]",
	Short: "Open a room with a startup, optionally sending a first message",
	Long: `Creates a conversation between your investor cabinet and the given
startup. Rooms always pair one investor with one startup.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appCfg)
		if err != nil {
			return err
		}
		defer func() { _ = a.persistSession() }()

		startupID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("startup id must be a number: %q", args[0])
		}

		self, ok := a.guard.CurrentIdentity()
		if !ok {
			return errors.New("no cabinet selected, run `vchat cabinets` first")
		}
		if self.Namespace != auth.NamespaceInvestor {
			return errors.New("contacting a startup requires an investor cabinet")
		}

		startup, err := a.api.Startup(cmd.Context(), startupID)
		if err != nil {
			return friendlyError(err)
		}
		counterpart := auth.Identity{
			UserID:      startup.User,
			Namespace:   auth.NamespaceStartup,
			NamespaceID: startup.StartupID,
		}

		room, err := a.api.CreateConversation(cmd.Context(), self, counterpart)
		if err != nil {
			return friendlyError(err)
		}
		fmt.Printf("Room %s opened with %s\n", room.ID, startup.Name)

		if contactMessage != "" {
			if _, err := a.api.SendMessage(cmd.Context(), room.ID, self, contactMessage); err != nil {
				return friendlyError(err)
			}
			fmt.Println("Message sent.")
		}
		return nil
	},
}

// openConversation wires a controller for the room and hands the terminal
// to the TUI until the user leaves.
func openConversation(a *app, room forum.Room) error {
	if !a.guard.IsAuthenticated() {
		return errors.New("not logged in, run `vchat login` first")
	}
	self, hasSelf := a.guard.CurrentIdentity()

	ctrl := chat.New(chat.Config{
		Room:      room,
		API:       a.api,
		Guard:     a.guard,
		Store:     a.store,
		Gateway:   a.gw,
		WSBaseURL: a.wsBaseURL(),
	})
	defer ctrl.Close()

	return tuichat.Run(ctrl, styles(), self, hasSelf)
}

func init() {
	contactCmd.Flags().StringVarP(&contactMessage, "message", "m", "", "First message to send")
}
