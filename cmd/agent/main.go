// The agent binary runs one collaborator as a standalone service, behind
// either the HTTP process endpoint or an A2A server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"

	"github.com/pharmaflow-project/pharmacy-multi-agent/agents/fulfillment"
	"github.com/pharmaflow-project/pharmacy-multi-agent/agents/intent"
	"github.com/pharmaflow-project/pharmacy-multi-agent/agents/inventory"
	"github.com/pharmaflow-project/pharmacy-multi-agent/agents/policy"
	"github.com/pharmaflow-project/pharmacy-multi-agent/agents/refill"
	"github.com/pharmaflow-project/pharmacy-multi-agent/catalog"
	"github.com/pharmaflow-project/pharmacy-multi-agent/config"
	"github.com/pharmaflow-project/pharmacy-multi-agent/llm"
	"github.com/pharmaflow-project/pharmacy-multi-agent/logger"
	"github.com/pharmaflow-project/pharmacy-multi-agent/protocol"
	"github.com/pharmaflow-project/pharmacy-multi-agent/types"
)

func main() {
	name := flag.String("name", "", "collaborator to run: intent|inventory|policy|fulfillment|refill")
	port := flag.Int("port", 0, "listen port (default from environment per agent)")
	transport := flag.String("transport", "http", "serving transport: http|a2a")
	flag.Parse()

	log := logger.GetLogger().WithField("component", "agent-main")

	env, err := config.LoadEnv()
	if err != nil {
		log.Fatal("Failed to load environment", err)
	}

	agentName := types.AgentName(*name)
	if !types.IsKnownAgent(agentName) {
		log.Fatalf("Unknown agent name %q", *name)
	}

	collaborator, err := buildCollaborator(agentName, catalog.NewService())
	if err != nil {
		log.Fatal("Failed to build collaborator", err)
	}

	listenPort := *port
	if listenPort == 0 {
		listenPort = defaultPort(agentName, env)
	}
	addr := fmt.Sprintf(":%d", listenPort)

	switch *transport {
	case "a2a":
		url := fmt.Sprintf("http://localhost:%d/", listenPort)
		srv, err := protocol.NewA2AServer(collaborator, url)
		if err != nil {
			log.Fatal("Failed to build A2A server", err)
		}
		log.Infof("%s agent serving A2A on %s", agentName, addr)
		if err := srv.Start(addr); err != nil {
			log.Fatal("A2A server stopped", err)
		}

	default:
		mux := http.NewServeMux()
		mux.HandleFunc("/process", protocol.NewProcessHandler(collaborator))
		mux.HandleFunc("/health", protocol.NewHealthHandler(agentName))
		log.Infof("%s agent serving HTTP on %s", agentName, addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Fatal("Server stopped", err)
		}
	}
}

func buildCollaborator(name types.AgentName, svc *catalog.Service) (protocol.Collaborator, error) {
	switch name {
	case types.AgentIntent:
		var llmClient llm.Client
		client, err := llm.NewFromEnv(context.Background())
		if err == nil {
			llmClient = client
		} else if err != llm.ErrLLMDisabled {
			return nil, err
		}
		return intent.New(llmClient), nil
	case types.AgentInventory:
		return inventory.New(svc), nil
	case types.AgentPolicy:
		return policy.New(svc), nil
	case types.AgentFulfillment:
		return fulfillment.New(svc), nil
	case types.AgentRefill:
		return refill.New(svc), nil
	}
	return nil, fmt.Errorf("unknown agent %q", name)
}

func defaultPort(name types.AgentName, env *config.EnvConfig) int {
	switch name {
	case types.AgentIntent:
		return env.IntentAgentPort
	case types.AgentInventory:
		return env.InventoryAgentPort
	case types.AgentPolicy:
		return env.PolicyAgentPort
	case types.AgentFulfillment:
		return env.FulfillmentAgentPort
	case types.AgentRefill:
		return env.RefillAgentPort
	}
	return 0
}
