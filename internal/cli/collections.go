package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/andy/duesink/internal/domain"
	"github.com/spf13/cobra"
)

var collectionsCmd = &cobra.Command{
	Use:     "collections",
	Aliases: []string{"col"},
	Short:   "Manage payment reminders for installments",
}

var collectionsCreateCmd = &cobra.Command{
	Use:   "create [installment_id]",
	Short: "Open a collection for an installment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		id, err := parseID(args[0], "installment")
		if err != nil {
			return err
		}
		ch := domain.Channel(mustString(cmd, "channel"))
		if ch == "" {
			ch = domain.Channel(appInstance.Config.Collection.DefaultChannel)
		}

		c, err := appInstance.CollectionService.CreateCollection(ctx, id, ch)
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		fmt.Printf("✓ Collection #%d created (%s)\n", c.ID, c.Channel)
		return nil
	},
}

var collectionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List collections for a client or installment",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		var collections []*domain.Collection
		var err error
		switch {
		case cmd.Flags().Changed("installment"):
			id, _ := cmd.Flags().GetInt64("installment")
			collections, err = appInstance.CollectionService.ListByInstallment(ctx, id)
		case cmd.Flags().Changed("client"):
			id, rerr := resolveClientID(ctx, mustString(cmd, "client"))
			if rerr != nil {
				return fmt.Errorf("failed to resolve client: %w", rerr)
			}
			collections, err = appInstance.CollectionService.ListByClient(ctx, id)
		default:
			return fmt.Errorf("one of --client or --installment is required")
		}
		if err != nil {
			return fmt.Errorf("failed to list collections: %w", err)
		}

		printCollections(collections)
		return nil
	},
}

var collectionsPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List collections not dispatched yet",
	RunE: func(cmd *cobra.Command, args []string) error {
		collections, err := appInstance.CollectionService.ListPending(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list collections: %w", err)
		}
		printCollections(collections)
		return nil
	},
}

var collectionsDispatchCmd = &cobra.Command{
	Use:   "dispatch [id]",
	Short: "Send the reminder for a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "collection")
		if err != nil {
			return err
		}
		return dispatchOne(context.Background(), id)
	},
}

var collectionsRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Dispatch every pending collection whose retry time has come",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		collections, err := appInstance.CollectionService.ListPending(ctx)
		if err != nil {
			return fmt.Errorf("failed to list collections: %w", err)
		}

		now := time.Now()
		maxAttempts := appInstance.Config.Collection.MaxAttempts
		sent := 0
		for _, c := range collections {
			if c.NextRetryAt != nil && c.NextRetryAt.After(now) {
				continue
			}
			if maxAttempts > 0 && c.Attempts >= maxAttempts {
				continue
			}
			if err := dispatchOne(ctx, c.ID); err != nil {
				fmt.Printf("✗ Collection #%d: %v\n", c.ID, err)
				continue
			}
			sent++
		}

		fmt.Printf("\n%d collection(s) processed\n", sent)
		return nil
	},
}

func dispatchOne(ctx context.Context, id int64) error {
	c, err := appInstance.CollectionService.GetCollection(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get collection: %w", err)
	}
	sender, err := appInstance.Senders.Get(c.Channel)
	if err != nil {
		return err
	}
	msg, err := appInstance.CollectionService.PrepareReminder(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to prepare reminder: %w", err)
	}

	updated, outcome, err := appInstance.CollectionService.Dispatch(ctx, id, sender, msg, appInstance.Backoff())
	if err != nil {
		return fmt.Errorf("failed to dispatch: %w", err)
	}

	if outcome.Success {
		fmt.Printf("✓ Collection #%d sent to %s (attempt %d)\n", id, msg.Destination, updated.Attempts)
		return nil
	}
	fmt.Printf("✗ Collection #%d failed: %s (attempt %d)\n", id, outcome.Error, updated.Attempts)
	if updated.NextRetryAt != nil {
		fmt.Printf("  Next retry: %s\n", updated.NextRetryAt.Format(time.RFC3339))
	}
	return nil
}

var collectionsAdvanceCmd = &cobra.Command{
	Use:   "advance [id] [status]",
	Short: "Move a collection forward (sent, received, read, paid, cancelled)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "collection")
		if err != nil {
			return err
		}

		c, err := appInstance.CollectionService.Advance(context.Background(), id, domain.CollectionStatus(args[1]))
		if err != nil {
			return fmt.Errorf("failed to update collection: %w", err)
		}

		fmt.Printf("✓ Collection #%d is now %s\n", c.ID, c.Status)
		return nil
	},
}

var collectionsCancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "collection")
		if err != nil {
			return err
		}

		if _, err := appInstance.CollectionService.Cancel(context.Background(), id); err != nil {
			return fmt.Errorf("failed to cancel collection: %w", err)
		}

		fmt.Printf("✓ Collection #%d cancelled\n", id)
		return nil
	},
}

var collectionsRetryCmd = &cobra.Command{
	Use:   "retry [id]",
	Short: "Count an attempt made outside duesink and schedule the next retry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		id, err := parseID(args[0], "collection")
		if err != nil {
			return err
		}

		c, err := appInstance.CollectionService.GetCollection(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get collection: %w", err)
		}

		var nextRetryAt *time.Time
		if at, ok := appInstance.Backoff().NextRetry(c.Attempts+1, time.Now()); ok {
			nextRetryAt = &at
		}

		c, err = appInstance.CollectionService.IncrementAttempt(ctx, id, nextRetryAt)
		if err != nil {
			return fmt.Errorf("failed to record attempt: %w", err)
		}

		fmt.Printf("✓ Collection #%d: %d attempt(s), next retry %s\n", c.ID, c.Attempts, formatDate(c.NextRetryAt))
		return nil
	},
}

var collectionsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count collections by status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		var clientID *int64
		if cmd.Flags().Changed("client") {
			id, err := resolveClientID(ctx, mustString(cmd, "client"))
			if err != nil {
				return fmt.Errorf("failed to resolve client: %w", err)
			}
			clientID = &id
		}

		stats, err := appInstance.CollectionService.Statistics(ctx, clientID)
		if err != nil {
			return fmt.Errorf("failed to get statistics: %w", err)
		}

		for _, s := range domain.AllCollectionStatuses {
			fmt.Printf("%-10s %5d\n", s, stats.Count(s))
		}
		fmt.Println(strings.Repeat("-", 16))
		fmt.Printf("%-10s %5d\n", "total", stats.Total)
		return nil
	},
}

var collectionsLogCmd = &cobra.Command{
	Use:   "log [id]",
	Short: "Show the delivery log of a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "collection")
		if err != nil {
			return err
		}

		entries, err := appInstance.CollectionService.ListDeliveryLog(context.Background(), id)
		if err != nil {
			return fmt.Errorf("failed to get delivery log: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("No delivery attempts yet")
			return nil
		}

		fmt.Printf("%-3s %-20s %-9s %-9s %-28s %s\n", "#", "When", "Channel", "Status", "Destination", "Detail")
		fmt.Println(strings.Repeat("-", 100))
		for _, e := range entries {
			detail := e.MessageID
			if e.ErrorMessage != "" {
				detail = e.ErrorMessage
			}
			fmt.Printf("%-3d %-20s %-9s %-9s %-28s %s\n",
				e.Attempt,
				e.CreatedAt.Format("2006-01-02 15:04:05"),
				e.Channel,
				e.Status,
				truncate(e.Destination, 28),
				detail,
			)
		}
		return nil
	},
}

func printCollections(collections []*domain.Collection) {
	if len(collections) == 0 {
		fmt.Println("No collections found")
		return
	}

	fmt.Printf("%-5s %-11s %-8s %-9s %-10s %-8s %-11s\n", "ID", "Installment", "Client", "Channel", "Status", "Attempts", "Next retry")
	fmt.Println(strings.Repeat("-", 72))
	for _, c := range collections {
		fmt.Printf("%-5d %-11d %-8d %-9s %-10s %-8d %-11s\n",
			c.ID,
			c.InstallmentID,
			c.ClientID,
			c.Channel,
			c.Status,
			c.Attempts,
			formatDate(c.NextRetryAt),
		)
	}
	fmt.Printf("\nTotal: %d collection(s)\n", len(collections))
}

func init() {
	collectionsCmd.AddCommand(collectionsCreateCmd)
	collectionsCmd.AddCommand(collectionsListCmd)
	collectionsCmd.AddCommand(collectionsPendingCmd)
	collectionsCmd.AddCommand(collectionsDispatchCmd)
	collectionsCmd.AddCommand(collectionsRunCmd)
	collectionsCmd.AddCommand(collectionsAdvanceCmd)
	collectionsCmd.AddCommand(collectionsCancelCmd)
	collectionsCmd.AddCommand(collectionsRetryCmd)
	collectionsCmd.AddCommand(collectionsStatsCmd)
	collectionsCmd.AddCommand(collectionsLogCmd)

	collectionsCreateCmd.Flags().String("channel", "", "Channel (email, whatsapp, sms, pix); defaults to the configured channel")
	collectionsListCmd.Flags().String("client", "", "Client ID or name")
	collectionsListCmd.Flags().Int64("installment", 0, "Installment ID")
	collectionsStatsCmd.Flags().String("client", "", "Only this client's collections")
}
