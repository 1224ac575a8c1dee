package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/user/campaignd/internal/session"
	"github.com/user/campaignd/internal/types"
)

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionListCmd, sessionShowCmd, sessionClearCmd)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage stored campaign sessions",
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		snapshots := session.NewSnapshotStore(cfg.DataDir)

		list, err := snapshots.List()
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}

		if len(list) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPRODUCT\tRESULTS\tITEMS\tCREATED")
		for _, snap := range list {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
				snap.Session.ID,
				snap.Session.Config.Product,
				len(snap.Session.Results),
				len(snap.Items),
				snap.Session.CreatedAt.Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Dump one session snapshot as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		snapshots := session.NewSnapshotStore(cfg.DataDir)

		snap, err := snapshots.Load(types.SessionID(args[0]))
		if err != nil {
			return fmt.Errorf("load session: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear <id|all>",
	Short: "Delete a stored session or all sessions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		snapshots := session.NewSnapshotStore(cfg.DataDir)

		if args[0] == "all" {
			list, err := snapshots.List()
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}
			for _, snap := range list {
				if err := snapshots.Delete(snap.Session.ID); err != nil {
					return fmt.Errorf("delete session %s: %w", snap.Session.ID, err)
				}
			}
			fmt.Println("All sessions cleared.")
			return nil
		}

		if err := snapshots.Delete(types.SessionID(args[0])); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Session %s cleared.\n", args[0])
		return nil
	},
}
