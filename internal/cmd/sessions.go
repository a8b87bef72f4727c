package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/neekaru/whatsappgo-gateway/internal/credstore"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List persisted sessions and whether they can be reopened",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return listSessions(cmd, credstore.NewOS(cfg.DataDir))
	},
}

func listSessions(cmd *cobra.Command, store *credstore.Store) error {
	ids, err := store.Discover()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tCREDENTIALS\tJID\tAUTHENTICATED")
	for _, id := range ids {
		marker, err := store.ReadMarker(id)
		if err != nil {
			fmt.Fprintf(w, "%s\tno\t-\t-\n", id)
			continue
		}
		fmt.Fprintf(w, "%s\tyes\t%s\t%s\n", id, marker.JID, marker.AuthenticatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
