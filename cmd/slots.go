package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"

	"informatik-booking/internal/slots"

	"github.com/spf13/cobra"
)

var slotsCmd = &cobra.Command{
	Use:   "slots",
	Short: "Manage consultation slots",
	Long:  `List, generate and toggle slots in the configured slot store.`,
}

var slotsListCmd = &cobra.Command{
	Use:   "list [date]",
	Short: "List slots, optionally for one date",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		quietLogger()

		data := openStorage(ctx).Load(ctx)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDATE\tTIME\tAVAILABLE")
		shown := 0
		for _, s := range data.Slots {
			if len(args) > 0 && s.Date != args[0] {
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", s.ID, s.Date, s.Title, s.Available)
			shown++
		}
		w.Flush()
		fmt.Printf("\nTotal slots: %d (last updated %s)\n", shown, data.LastUpdated)
	},
}

var slotsGenerateCmd = &cobra.Command{
	Use:   "generate <date>...",
	Short: "Add the booking window's slots for each date",
	Long:  `Generates slots for the configured booking window. Slots already in the store are kept as they are.`,
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		quietLogger()

		window, err := cfg.Window()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid booking window: %v\n", err)
			os.Exit(1)
		}

		added := 0
		_, err = openStorage(ctx).Update(ctx, func(data *slots.CalendarData) error {
			added = 0
			for _, date := range args {
				generated, err := slots.GenerateTimeSlots(date, window)
				if err != nil {
					return err
				}
				for _, s := range generated {
					if data.Find(s.ID) >= 0 {
						continue
					}
					data.Slots = append(data.Slots, s)
					added++
				}
			}
			return nil
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating slots: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Added %d slots.\n", added)
	},
}

var slotsSetCmd = &cobra.Command{
	Use:   "set <slotId> <true|false>",
	Short: "Set a slot's availability",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		quietLogger()

		available, err := strconv.ParseBool(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid availability %q: use true or false\n", args[1])
			os.Exit(1)
		}

		if _, err := openStorage(ctx).SetSlotAvailability(ctx, args[0], available); err != nil {
			slog.Error("Failed to update slot", "slot", args[0], "error", err)
			fmt.Fprintf(os.Stderr, "Error updating slot: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Slot %s set to available=%t.\n", args[0], available)
	},
}

func init() {
	rootCmd.AddCommand(slotsCmd)
	slotsCmd.AddCommand(slotsListCmd)
	slotsCmd.AddCommand(slotsGenerateCmd)
	slotsCmd.AddCommand(slotsSetCmd)
}
