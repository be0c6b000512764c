package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"informatik-booking/internal/booking"
	"informatik-booking/internal/client"
	"informatik-booking/internal/google"
	"informatik-booking/internal/slots"

	"github.com/spf13/cobra"
)

var (
	bookDate         string
	bookSlot         string
	bookAccessToken  string
	bookRefreshToken string
	bookCode         string
	bookState        string
	bookForm         booking.FormData
)

var bookCmd = &cobra.Command{
	Use:   "book",
	Short: "Book a consultation slot through a running server",
	Long: `Loads the free slots of --date from the server's calendar proxy and, when
--slot is given, books it with the visitor details from the flags.

Calendar access needs a Google token set: pass --access-token (and
optionally --refresh-token), or an authorization --code obtained from the
URL printed by "book auth-url".`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		quietLogger()

		if err := runBooking(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

var bookAuthURLCmd = &cobra.Command{
	Use:   "auth-url",
	Short: "Print the Google consent URL and its state",
	Run: func(cmd *cobra.Command, args []string) {
		quietLogger()
		url, state, err := client.NewAuthClient(cfg.Booking.ServerURL, nil).AuthURL(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Open: %s\nState: %s\n", url, state)
	},
}

func runBooking(ctx context.Context) error {
	server := cfg.Booking.ServerURL
	auth := client.NewAuthClient(server, nil)

	token := google.Token{AccessToken: bookAccessToken, RefreshToken: bookRefreshToken}
	if bookCode != "" {
		exchanged, err := auth.Exchange(ctx, bookCode, bookState)
		if err != nil {
			return fmt.Errorf("exchange authorization code: %w", err)
		}
		token = exchanged
		fmt.Printf("Refresh token for later runs: %s\n", token.RefreshToken)
	}
	if token.AccessToken == "" && token.RefreshToken != "" {
		// Force a refresh on first use.
		token.ExpiryDate = time.Now().Add(-time.Minute).UnixMilli()
	}

	window, err := cfg.Window()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	store := client.NewDataService(server, client.WithCache(cfg.Booking.CacheFile))
	if data, err := store.SyncData(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: slot store unreachable, showing cached data from %s\n", data.LastUpdated)
	}

	hook := booking.New(
		client.NewCalendarClient(server, nil, auth.TokenSource(ctx, token)),
		store,
		booking.Config{Window: window, Location: loc, ResetDelay: cfg.Booking.ResetDelay},
		booking.AlertFunc(func(msg string) { fmt.Fprintln(os.Stderr, msg) }),
	)
	defer hook.Close()

	list, err := hook.LoadAvailableSlots(ctx, bookDate)
	if err != nil {
		return err
	}
	printSlots(list)

	if bookSlot == "" {
		return nil
	}
	slot, ok := findSlot(list, bookSlot)
	if !ok {
		return fmt.Errorf("no slot %q on %s", bookSlot, bookDate)
	}
	if err := hook.SelectSlot(slot.ID); err != nil {
		return err
	}

	event, err := hook.HandleBookingSubmit(ctx, bookForm)
	if err != nil {
		return err
	}
	fmt.Printf("Booked %s on %s (event %s)\n", slot.Title, slot.Date, event.Id)
	if event.HtmlLink != "" {
		fmt.Println(event.HtmlLink)
	}
	return nil
}

// findSlot matches a slot by id or start time.
func findSlot(list []slots.TimeSlot, key string) (slots.TimeSlot, bool) {
	for _, s := range list {
		if s.ID == key || s.StartTime == key {
			return s, true
		}
	}
	return slots.TimeSlot{}, false
}

func printSlots(list []slots.TimeSlot) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tAVAILABLE\tID")
	for _, s := range list {
		fmt.Fprintf(w, "%s\t%t\t%s\n", s.Title, s.Available, s.ID)
	}
	w.Flush()
}

func init() {
	rootCmd.AddCommand(bookCmd)
	bookCmd.AddCommand(bookAuthURLCmd)

	f := bookCmd.Flags()
	f.StringVar(&bookDate, "date", time.Now().Format(slots.DateLayout), "date to book (YYYY-MM-DD)")
	f.StringVar(&bookSlot, "slot", "", "slot id or start time (HH:MM) to book")
	f.StringVar(&bookAccessToken, "access-token", "", "Google access token")
	f.StringVar(&bookRefreshToken, "refresh-token", "", "Google refresh token")
	f.StringVar(&bookCode, "code", "", "authorization code to exchange")
	f.StringVar(&bookState, "state", "", "state returned with the authorization code")
	f.StringVar(&bookForm.Name, "name", "", "visitor name")
	f.StringVar(&bookForm.Email, "email", "", "visitor email")
	f.StringVar(&bookForm.Phone, "phone", "", "visitor phone")
	f.StringVar(&bookForm.Company, "company", "", "visitor company")
	f.StringVar(&bookForm.Message, "message", "", "message for the consultant")
}
