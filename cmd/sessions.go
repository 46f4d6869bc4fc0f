package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zjrosen/talaash/internal/pipeline/archive"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List archived sessions",
	Long:  `List sessions persisted to the SQLite archive, most recent first.`,
	RunE:  runSessions,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show one archived session's outcome",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

func init() {
	sessionsCmd.Flags().IntP("limit", "n", 20, "maximum sessions to list")
	sessionsCmd.AddCommand(sessionsShowCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func openArchive() (*archive.Store, func(), error) {
	db, err := archive.NewDB(cfg.Archive.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening archive %s: %w", cfg.Archive.Path, err)
	}
	return archive.NewStore(db), func() { _ = db.Close() }, nil
}

func runSessions(cmd *cobra.Command, args []string) error {
	store, closeDB, err := openArchive()
	if err != nil {
		return err
	}
	defer closeDB()

	limit, _ := cmd.Flags().GetInt("limit")
	entries, err := store.List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no archived sessions")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tSTATE\tEVENTS\tARCHIVED")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			e.SessionID, e.State, e.EventCount, e.ArchivedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	store, closeDB, err := openArchive()
	if err != nil {
		return err
	}
	defer closeDB()

	e, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("session: %s\nstate:   %s\nevents:  %d\n", e.SessionID, e.State, e.EventCount)
	if e.Outcome.Content != "" {
		fmt.Printf("\n%s\n", e.Outcome.Content)
	}
	if e.Outcome.Message != "" {
		fmt.Printf("failure: %s\n", e.Outcome.Message)
		if e.Outcome.Details != "" {
			fmt.Printf("details: %s\n", e.Outcome.Details)
		}
	}
	return nil
}
