// clinicadm is the operator CLI for the tenant directory: it provisions
// clinics, flips lifecycle statuses, and lists tenants stuck waiting on
// DNS setup.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"clinica-cloud/internal/auth"
	"clinica-cloud/internal/config"
	"clinica-cloud/internal/directory"
	"clinica-cloud/internal/events"
	"clinica-cloud/internal/model"
	"clinica-cloud/internal/provision"
	"clinica-cloud/internal/store"
)

var cfgPath string

func main() {
	root := &cobra.Command{
		Use:           "clinicadm",
		Short:         "Administer the clinic tenant directory",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to config file")

	root.AddCommand(provisionCmd(), statusCmd(), pendingCmd(), tokenCmd())

	if err := root.Execute(); err != nil {
		log.Fatalf("clinicadm: %v", err)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func openDirectory(cfg *config.Config) *directory.Client {
	dir, err := directory.NewClient(cfg.Directory.URL)
	if err != nil {
		log.Fatalf("Failed to connect to tenant directory: %v", err)
	}
	return dir
}

func provisionCmd() *cobra.Command {
	var desc model.NewTenantDescriptor
	var tier string

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Register a new clinic and create its store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			dir := openDirectory(cfg)
			defer dir.Close()

			creator, err := store.NewCreator(cfg.Directory.URL, "env:ISOLATED_STORE_SECRET")
			if err != nil {
				return err
			}
			defer creator.Close()

			var dns provision.DNSActivator = provision.NoopDNS{}
			if cfg.DNS.WebhookURL != "" {
				dns = provision.NewWebhookDNS(cfg.DNS.WebhookURL)
			}

			desc.PlanTier = model.PlanTier(tier)
			p := provision.New(dir, creator, dns, nil)

			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			rec, err := p.Provision(ctx, desc)
			if err != nil {
				return err
			}

			fmt.Printf("Provisioned %s (%s)\n", rec.Subdomain, rec.ID)
			if rec.Isolated() {
				fmt.Printf("  isolated store: %s\n", *rec.StoreLocator)
			} else {
				fmt.Printf("  shared store with row-level isolation\n")
			}
			if rec.ConfigurationPending {
				fmt.Println("  DNS setup still pending; finish it manually")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&desc.Subdomain, "subdomain", "", "desired subdomain (normalized before validation)")
	cmd.Flags().StringVar(&desc.DisplayName, "name", "", "clinic display name")
	cmd.Flags().StringVar(&desc.ContactEmail, "email", "", "contact email")
	cmd.Flags().StringVar(&tier, "tier", string(model.TierBasico), "plan tier: basico, profissional, clinica-plus")
	_ = cmd.MarkFlagRequired("subdomain")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <subdomain> <active|suspended|blocked|inactive>",
		Short: "Change a clinic's lifecycle status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			subdomain, status := args[0], model.Status(args[1])
			if !status.Valid() {
				return fmt.Errorf("invalid status %q", args[1])
			}

			cfg := loadConfig()
			dir := openDirectory(cfg)
			defer dir.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := dir.UpdateStatus(ctx, subdomain, status); err != nil {
				return err
			}

			// Fan the change out so running consoles drop cached handles.
			ev, err := events.NewClient(cfg.RabbitMQ.URL)
			if err != nil {
				log.Printf("⚠️ Status saved but event not published (broker unreachable): %v", err)
				return nil
			}
			defer ev.Close()
			if err := ev.PublishStatusChange(subdomain, status); err != nil {
				log.Printf("⚠️ Status saved but event not published: %v", err)
			}

			fmt.Printf("Tenant %s set to %s\n", subdomain, status)
			return nil
		},
	}
}

func pendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List tenants still waiting on DNS setup",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			dir := openDirectory(cfg)
			defer dir.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			tenants, err := dir.ListTenants(ctx, true)
			if err != nil {
				return err
			}
			if len(tenants) == 0 {
				fmt.Println("No tenants pending")
				return nil
			}
			for _, t := range tenants {
				fmt.Printf("%s\t%s\tsince %s\n", t.Subdomain, t.Status, t.CreatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	var operator string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			tok, err := auth.NewTokenService(cfg.Auth.JWTSecret).GenerateToken(operator)
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&operator, "operator", os.Getenv("USER"), "operator name embedded in the token")
	return cmd
}
