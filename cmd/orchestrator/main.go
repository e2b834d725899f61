// The orchestrator binary serves the chat API and runs the routing chain.
// Collaborators run in-process by default; with -remote they are reached
// over HTTP or A2A per configs/collaborators.yaml.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pharmaflow-project/pharmacy-multi-agent/agents/fulfillment"
	"github.com/pharmaflow-project/pharmacy-multi-agent/agents/intent"
	"github.com/pharmaflow-project/pharmacy-multi-agent/agents/inventory"
	"github.com/pharmaflow-project/pharmacy-multi-agent/agents/policy"
	"github.com/pharmaflow-project/pharmacy-multi-agent/agents/refill"
	"github.com/pharmaflow-project/pharmacy-multi-agent/api"
	"github.com/pharmaflow-project/pharmacy-multi-agent/catalog"
	"github.com/pharmaflow-project/pharmacy-multi-agent/config"
	"github.com/pharmaflow-project/pharmacy-multi-agent/llm"
	"github.com/pharmaflow-project/pharmacy-multi-agent/logger"
	"github.com/pharmaflow-project/pharmacy-multi-agent/orchestrator"
	"github.com/pharmaflow-project/pharmacy-multi-agent/pricing"
	"github.com/pharmaflow-project/pharmacy-multi-agent/protocol"
	"github.com/pharmaflow-project/pharmacy-multi-agent/session"
	"github.com/pharmaflow-project/pharmacy-multi-agent/types"
	"github.com/pharmaflow-project/pharmacy-multi-agent/websocket"
)

const version = "1.0.0"

func main() {
	remote := flag.Bool("remote", false, "reach collaborators over the network instead of in-process")
	configPath := flag.String("config", "configs/collaborators.yaml", "collaborator config file (remote mode)")
	flag.Parse()

	log := logger.GetLogger().WithField("component", "main")

	env, err := config.LoadEnv()
	if err != nil {
		log.Fatal("Failed to load environment", err)
	}

	svc := catalog.NewService()
	store := session.NewStore(env.SessionTTL)
	defer store.Close()
	calc := pricing.NewCalculator(svc, env.TaxRate, env.DeliveryFee, env.FallbackPrice)

	registry, err := buildRegistry(*remote, *configPath, env, svc)
	if err != nil {
		log.Fatal("Failed to build collaborator registry", err)
	}

	logServer := websocket.NewLogServer(env.WSPort)
	go func() {
		if err := logServer.Start(); err != nil && err != http.ErrServerClosed {
			log.Error("Log server stopped", err)
		}
	}()
	defer logServer.Stop()

	o := orchestrator.New(registry, store, calc, svc, orchestrator.Options{
		HopLimit:      env.HopLimit,
		RetryAttempts: env.RetryAttempts,
		Sink:          logServer,
	})

	mux := http.NewServeMux()
	api.NewServer(o, svc, version).RegisterRoutes(mux)

	addr := fmt.Sprintf(":%d", env.OrchestratorPort)
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Infof("Orchestrator listening on %s (ws logs on :%d)", addr, env.WSPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server stopped", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Shutdown failed", err)
	}
}

// buildRegistry assembles the closed collaborator set, either in-process
// or as transport clients.
func buildRegistry(remote bool, configPath string, env *config.EnvConfig, svc *catalog.Service) (*protocol.Registry, error) {
	if !remote {
		var llmClient llm.Client
		client, err := llm.NewFromEnv(context.Background())
		if err == nil {
			llmClient = client
		} else if err != llm.ErrLLMDisabled {
			return nil, err
		}
		return protocol.NewRegistry(
			intent.New(llmClient),
			inventory.New(svc),
			policy.New(svc),
			fulfillment.New(svc),
			refill.New(svc),
		)
	}

	cfg, err := config.LoadCollaboratorConfig(configPath)
	if err != nil {
		return nil, err
	}

	var collaborators []protocol.Collaborator
	for name := range types.KnownAgents {
		cc, err := cfg.GetCollaborator(string(name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v, skipping\n", err)
			continue
		}
		timeout := cc.Timeout(env.CollaboratorTimeout)

		var c protocol.Collaborator
		switch cc.Transport {
		case "a2a":
			c, err = protocol.NewA2ACollaborator(name, cc.Endpoint, timeout)
		default:
			c, err = protocol.NewHTTPCollaborator(name, cc.Endpoint, timeout)
		}
		if err != nil {
			return nil, err
		}
		collaborators = append(collaborators, c)
	}
	return protocol.NewRegistry(collaborators...)
}
