package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bronhq/bron/internal/brain"
	"github.com/bronhq/bron/internal/config"
	"github.com/bronhq/bron/internal/events"
	"github.com/bronhq/bron/internal/executor"
	"github.com/bronhq/bron/internal/gateway"
	"github.com/bronhq/bron/internal/notify"
	"github.com/bronhq/bron/internal/oauth"
	"github.com/bronhq/bron/internal/orchestrator"
	"github.com/bronhq/bron/internal/provider"
	"github.com/bronhq/bron/internal/store"
)

// googleTokenEndpoint serves refresh grants for every Google-backed API.
const googleTokenEndpoint = "https://oauth2.googleapis.com/token"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the assistant backend",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	printHeader("Bron Gateway")

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Model.APIKey == "" {
		fmt.Println("No API key configured (set BRON_MODEL_API_KEY)")
		os.Exit(1)
	}

	log := slog.Default()

	st, err := store.New(cfg.Paths.DBPath)
	if err != nil {
		fmt.Printf("Store error: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	prov := provider.NewOpenAIProvider(cfg.Model.APIKey, cfg.Model.APIBase, cfg.Model.Name)
	mgr := brain.NewManager(brain.Options{
		Provider:       prov,
		SessionTimeout: cfg.Model.SessionTimeout(),
		MaxRetries:     cfg.Model.MaxRetries,
		MaxTokens:      cfg.Model.MaxTokens,
		Logger:         log,
	})

	var sink orchestrator.EventSink
	if cfg.Events.Enabled && len(cfg.Events.Brokers) > 0 {
		pub := events.NewPublisher(strings.Join(cfg.Events.Brokers, ","), cfg.Events.Topic, log)
		defer pub.Close()
		sink = pub
		fmt.Printf("Events:  Kafka topic %s\n", cfg.Events.Topic)
	}

	notifier := notify.New(cfg.Notify.SlackToken, cfg.Notify.SlackChannel, log)
	if notifier != nil {
		fmt.Printf("Notify:  Slack channel %s\n", cfg.Notify.SlackChannel)
	}

	orch := orchestrator.New(orchestrator.Options{
		Store:        st,
		Brain:        mgr,
		Events:       sink,
		Notify:       notifier,
		HistoryLimit: cfg.Model.HistoryLimit,
		Logger:       log,
	})
	exec := executor.New(executor.Options{
		Store: st,
		RefreshEndpoints: map[string]string{
			"gmail":           googleTokenEndpoint,
			"google_calendar": googleTokenEndpoint,
			"google_drive":    googleTokenEndpoint,
		},
		Logger: log,
	})
	states := oauth.NewStateStore(0)

	handler := gateway.New(gateway.Options{
		Store:        st,
		Orchestrator: orch,
		Executor:     exec,
		OAuthStates:  states,
		Logger:       log,
	})

	server := &http.Server{
		Addr:    cfg.Gateway.ListenAddr,
		Handler: handler,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Bound memory held by abandoned OAuth flows.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				states.Sweep()
			}
		}
	}()

	go func() {
		fmt.Printf("Gateway listening on http://%s\n", cfg.Gateway.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Printf("Gateway failed to start: %v\n", err)
			stop()
		}
	}()

	<-ctx.Done()
	fmt.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("gateway shutdown failed", "error", err)
	}
}
