package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/andy/duesink/internal/channel"
	"github.com/andy/duesink/internal/domain"
	"github.com/spf13/cobra"
)

var clientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "Manage clients",
	Long:  `List, add, edit, and archive clients.`,
}

var clientsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all clients",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		includeArchived, _ := cmd.Flags().GetBool("archived")

		clients, err := appInstance.ClientRepo.List(ctx, includeArchived)
		if err != nil {
			return fmt.Errorf("failed to list clients: %w", err)
		}

		if len(clients) == 0 {
			fmt.Println("No clients found")
			return nil
		}

		fmt.Printf("%-5s %-28s %-28s %-16s %-10s\n", "ID", "Name", "Email", "Phone", "Status")
		fmt.Println(strings.Repeat("-", 90))

		for _, client := range clients {
			status := "Active"
			if client.IsArchived {
				status = "Archived"
			}
			fmt.Printf("%-5d %-28s %-28s %-16s %-10s\n",
				client.ID,
				truncate(client.Name, 28),
				truncate(client.Email, 28),
				client.Phone,
				status,
			)
		}

		fmt.Printf("\nTotal: %d client(s)\n", len(clients))
		return nil
	},
}

var clientsAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add a new client",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		client := domain.NewClient(args[0])
		client.Email, _ = cmd.Flags().GetString("email")
		client.TaxID, _ = cmd.Flags().GetString("tax-id")
		client.Notes, _ = cmd.Flags().GetString("notes")

		phone, _ := cmd.Flags().GetString("phone")
		if err := setPhone(client, phone); err != nil {
			return err
		}

		if err := client.Validate(); err != nil {
			return fmt.Errorf("invalid client: %w", err)
		}

		if err := appInstance.ClientRepo.Create(ctx, client); err != nil {
			return fmt.Errorf("failed to create client: %w", err)
		}

		fmt.Printf("✓ Client created: %s (ID: %d)\n", client.Name, client.ID)
		return nil
	},
}

var clientsEditCmd = &cobra.Command{
	Use:   "edit [id]",
	Short: "Edit an existing client",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		id, err := parseID(args[0], "client")
		if err != nil {
			return err
		}

		client, err := appInstance.ClientRepo.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get client: %w", err)
		}

		// Update fields if flags provided
		if cmd.Flags().Changed("name") {
			client.Name, _ = cmd.Flags().GetString("name")
		}
		if cmd.Flags().Changed("email") {
			client.Email, _ = cmd.Flags().GetString("email")
		}
		if cmd.Flags().Changed("phone") {
			phone, _ := cmd.Flags().GetString("phone")
			if err := setPhone(client, phone); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("tax-id") {
			client.TaxID, _ = cmd.Flags().GetString("tax-id")
		}
		if cmd.Flags().Changed("notes") {
			client.Notes, _ = cmd.Flags().GetString("notes")
		}

		if err := client.Validate(); err != nil {
			return fmt.Errorf("invalid client: %w", err)
		}

		if err := appInstance.ClientRepo.Update(ctx, client); err != nil {
			return fmt.Errorf("failed to update client: %w", err)
		}

		fmt.Printf("✓ Client updated: %s\n", client.Name)
		return nil
	},
}

var clientsArchiveCmd = &cobra.Command{
	Use:   "archive [id]",
	Short: "Archive a client",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		id, err := parseID(args[0], "client")
		if err != nil {
			return err
		}

		client, err := appInstance.ClientRepo.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get client: %w", err)
		}

		if err := appInstance.ClientRepo.Archive(ctx, id); err != nil {
			return fmt.Errorf("failed to archive client: %w", err)
		}

		fmt.Printf("✓ Client archived: %s\n", client.Name)
		return nil
	},
}

var clientsUnarchiveCmd = &cobra.Command{
	Use:   "unarchive [id]",
	Short: "Unarchive a client",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "client")
		if err != nil {
			return err
		}

		if err := appInstance.ClientRepo.Unarchive(context.Background(), id); err != nil {
			return fmt.Errorf("failed to unarchive client: %w", err)
		}

		fmt.Printf("✓ Client unarchived (ID: %d)\n", id)
		return nil
	},
}

// setPhone stores phone in E.164, or clears it when blank
func setPhone(client *domain.Client, phone string) error {
	if strings.TrimSpace(phone) == "" {
		client.Phone = ""
		return nil
	}
	normalized, err := channel.NormalizePhone(phone, appInstance.Config.Collection.PhoneRegion)
	if err != nil {
		return fmt.Errorf("invalid phone: %w", err)
	}
	client.Phone = normalized
	return nil
}

func init() {
	clientsCmd.AddCommand(clientsListCmd)
	clientsCmd.AddCommand(clientsAddCmd)
	clientsCmd.AddCommand(clientsEditCmd)
	clientsCmd.AddCommand(clientsArchiveCmd)
	clientsCmd.AddCommand(clientsUnarchiveCmd)

	// List flags
	clientsListCmd.Flags().Bool("archived", false, "Include archived clients")

	// Add flags
	clientsAddCmd.Flags().String("email", "", "Billing email")
	clientsAddCmd.Flags().String("phone", "", "Phone for SMS and WhatsApp reminders")
	clientsAddCmd.Flags().String("tax-id", "", "Tax ID (CPF/CNPJ)")
	clientsAddCmd.Flags().String("notes", "", "Notes about the client")

	// Edit flags
	clientsEditCmd.Flags().String("name", "", "New name")
	clientsEditCmd.Flags().String("email", "", "New email")
	clientsEditCmd.Flags().String("phone", "", "New phone")
	clientsEditCmd.Flags().String("tax-id", "", "New tax ID")
	clientsEditCmd.Flags().String("notes", "", "New notes")
}
