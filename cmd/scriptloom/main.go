package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scriptloom/internal/billing"
	"scriptloom/internal/config"
	"scriptloom/internal/genclient"
	"scriptloom/internal/orchestrator"
	"scriptloom/internal/outline"
	"scriptloom/internal/server"
	"scriptloom/internal/storage"
	"scriptloom/internal/writer"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "scriptloom",
		Short: "Outline and script generation service",
	}
	configPath string
	serverURL  string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8000", "Base URL of a running scriptloom server (client commands)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(outlineCmd)
	rootCmd.AddCommand(composeCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the generation HTTP server",
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Load Configuration
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		if cfg.AI.APIKey == "" {
			log.Fatalf("AI API key not configured")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// 2. Initialize Store
		store, err := storage.NewSQLiteStore(cfg.Storage.Path)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer store.Close()

		// 3. Setup Writer
		w, err := writer.NewWriter(ctx, writer.Options{
			Provider: cfg.AI.Provider,
			APIKey:   cfg.AI.APIKey,
			Model:    cfg.AI.Model,
			BaseURL:  cfg.AI.BaseURL,
		})
		if err != nil {
			log.Fatalf("Failed to create writer: %v", err)
		}

		// 4. Optional Billing
		var checkout *billing.CheckoutClient
		if cfg.Billing.APIKey != "" {
			checkout, err = billing.NewCheckoutClient(cfg.Billing.APIKey, cfg.Billing.SuccessURL, cfg.Billing.CancelURL, "")
			if err != nil {
				log.Fatalf("Failed to create checkout client: %v", err)
			}
		}

		// 5. Start Server
		srv := server.NewServer(cfg.Server.Addr, store, w, cfg.Billing.WebhookSecret, checkout)
		if err := srv.Start(); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
		fmt.Printf("🚀 Listening on %s (provider: %s, model: %s)\n", srv.Addr(), cfg.AI.Provider, cfg.AI.Model)

		<-ctx.Done()
		fmt.Println("\n👋 Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	},
}

var (
	outlineWordCount int
	outlineLanguage  string
	outlineAudience  string
	outlineStyle     string
	outlineTone      string
	outlineModel     string
	outlineContext   string
)

func init() {
	outlineCmd.Flags().IntVarP(&outlineWordCount, "words", "w", 2000, "Target word count for the finished script")
	outlineCmd.Flags().StringVar(&outlineLanguage, "language", "English", "Output language")
	outlineCmd.Flags().StringVar(&outlineAudience, "audience", "General", "Target audience")
	outlineCmd.Flags().StringVar(&outlineStyle, "style", "Informative", "Writing style")
	outlineCmd.Flags().StringVar(&outlineTone, "tone", "Neutral", "Writing tone")
	outlineCmd.Flags().StringVar(&outlineModel, "model", "", "Model override")
	outlineCmd.Flags().StringVar(&outlineContext, "context", "", "Additional context for the draft")
}

var outlineCmd = &cobra.Command{
	Use:   "outline [title]",
	Short: "Draft an outline for a script title against a running server",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := genclient.New(serverURL)

		fmt.Printf("📝 Drafting outline for %q...\n", args[0])
		sections, err := client.GenerateOutline(cmd.Context(), genclient.OutlineRequest{
			ScriptTitle:    args[0],
			WordCount:      outlineWordCount,
			Language:       outlineLanguage,
			Audience:       outlineAudience,
			Style:          outlineStyle,
			Tone:           outlineTone,
			Model:          outlineModel,
			AdditionalData: outlineContext,
		})
		if err != nil {
			log.Fatalf("Outline generation failed: %v", err)
		}

		for _, sec := range sections {
			fmt.Printf("%2d. %s\n", sec.Position+1, sec.Title)
			if sec.Description != "" {
				fmt.Printf("    %s\n", sec.Description)
			}
		}
	},
}

var (
	composeUser      string
	composeWordCount int
	composeWait      time.Duration
)

func init() {
	composeCmd.Flags().StringVarP(&composeUser, "user", "u", "cli", "User id to save the outline under")
	composeCmd.Flags().IntVarP(&composeWordCount, "words", "w", 2000, "Target word count for the finished script")
	composeCmd.Flags().DurationVar(&composeWait, "wait", 5*time.Minute, "How long to wait for background sections")
}

var composeCmd = &cobra.Command{
	Use:   "compose [title]",
	Short: "Draft an outline, generate all section content, and print the script",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		o := orchestrator.New(genclient.New(serverURL), composeUser)

		// 1. Draft the outline
		fmt.Printf("📝 Drafting outline for %q...\n", args[0])
		params := orchestrator.GenerateParams{}
		params.ScriptTitle = args[0]
		params.WordCount = composeWordCount
		if err := o.GenerateOutline(ctx, params); err != nil {
			log.Fatalf("Outline generation failed: %v", err)
		}
		for _, sec := range o.Sections() {
			fmt.Printf("%2d. %s\n", sec.Position+1, sec.Title)
		}

		// 2. Save and write the first section
		fmt.Println("✍️  Generating content...")
		if err := o.GenerateContent(ctx); err != nil {
			log.Fatalf("Content generation failed: %v", err)
		}
		fmt.Printf("💾 Saved as outline %s\n", o.OutlineID())

		// 3. Poll until the background sections arrive
		deadline := time.Now().Add(composeWait)
		for !allWritten(o.Sections()) {
			if time.Now().After(deadline) {
				log.Fatalf("Timed out waiting for section content")
			}
			time.Sleep(2 * time.Second)
			if _, err := o.SyncContent(ctx); err != nil {
				log.Fatalf("Failed to poll section content: %v", err)
			}
		}

		// 4. Print the finished script
		fmt.Println()
		for _, sec := range o.Sections() {
			fmt.Printf("## %s\n\n%s\n\n", sec.Title, sec.Content)
		}
	},
}

func allWritten(sections []outline.Section) bool {
	for _, sec := range sections {
		if sec.Content == "" {
			return false
		}
	}
	return len(sections) > 0
}
