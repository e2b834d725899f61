// Package orchestrator runs the hop-bounded routing chain over the
// registered collaborators and turns chain outcomes into user-facing
// responses and session state transitions.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/pharmaflow-project/pharmacy-multi-agent/catalog"
	"github.com/pharmaflow-project/pharmacy-multi-agent/logger"
	"github.com/pharmaflow-project/pharmacy-multi-agent/pricing"
	"github.com/pharmaflow-project/pharmacy-multi-agent/protocol"
	"github.com/pharmaflow-project/pharmacy-multi-agent/resilience"
	"github.com/pharmaflow-project/pharmacy-multi-agent/session"
	"github.com/pharmaflow-project/pharmacy-multi-agent/types"
)

// DefaultHopLimit bounds how many onward dispatches one message may take
// after the opening intent call.
const DefaultHopLimit = 5

// LogSink receives per-hop activity for live streaming. *websocket.LogServer
// satisfies it; a nil sink disables streaming.
type LogSink interface {
	BroadcastAgentLog(log *types.AgentLog)
	BroadcastError(from, errorMsg string)
}

// Options tunes the orchestrator.
type Options struct {
	HopLimit       int
	RetryAttempts  int
	BreakerTimeout time.Duration
	Sink           LogSink
}

// Orchestrator drives the collaborator chain and owns session state.
type Orchestrator struct {
	registry *protocol.Registry
	store    *session.Store
	pricing  *pricing.Calculator
	catalog  *catalog.Service
	sink     LogSink
	log      *logger.Logger

	hopLimit int
	retry    *resilience.RetryConfig
	breakers map[types.AgentName]*resilience.CircuitBreaker
}

// New creates an orchestrator over the given registry.
func New(registry *protocol.Registry, store *session.Store, calc *pricing.Calculator, svc *catalog.Service, opts Options) *Orchestrator {
	hopLimit := opts.HopLimit
	if hopLimit <= 0 {
		hopLimit = DefaultHopLimit
	}
	attempts := opts.RetryAttempts
	if attempts <= 0 {
		attempts = 3
	}
	breakerTimeout := opts.BreakerTimeout
	if breakerTimeout <= 0 {
		breakerTimeout = 30 * time.Second
	}

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.MaxAttempts = attempts

	breakers := make(map[types.AgentName]*resilience.CircuitBreaker, len(types.KnownAgents))
	for name := range types.KnownAgents {
		breakers[name] = resilience.NewCircuitBreaker(5, breakerTimeout)
	}

	return &Orchestrator{
		registry: registry,
		store:    store,
		pricing:  calc,
		catalog:  svc,
		sink:     opts.Sink,
		log:      logger.GetLogger().WithField("component", "orchestrator"),
		hopLimit: hopLimit,
		retry:    retryCfg,
		breakers: breakers,
	}
}

// chainResult is the outcome of one routing chain.
type chainResult struct {
	outputs  []*types.AgentOutput
	chain    []types.AgentName
	evidence []types.Assertion
	err      *types.OrchestrationError
}

// last returns the final collaborator output, or nil on an empty chain.
func (r *chainResult) last() *types.AgentOutput {
	if len(r.outputs) == 0 {
		return nil
	}
	return r.outputs[len(r.outputs)-1]
}

// runChain routes the message starting at start and accumulates evidence
// across hops. The opening intent call is free; each onward dispatch after
// it consumes one hop. The chain stops on a terminal output, at the hop
// limit, on a handoff back to intent, on an unrecognized routing name, or
// at the fulfillment gate: fulfillment is never reached from free routing,
// only from an explicit confirmation.
func (o *Orchestrator) runChain(ctx context.Context, sessionID, patientID, message string, start types.AgentName) chainResult {
	result := chainResult{}
	current := start
	dispatches := 0

	for {
		collaborator, ok := o.registry.Get(current)
		if !ok {
			result.err = types.NewOrchestrationError(types.ErrCodeUnrecognizedRouting,
				fmt.Sprintf("no collaborator registered for %q", current)).
				WithSession(sessionID).WithAgent(current)
			return result
		}

		o.emitRouting(sessionID, current, dispatches)

		req := &protocol.RequestContext{
			SessionID: sessionID,
			PatientID: patientID,
			Message:   message,
			Evidence:  result.evidence,
		}
		output, err := o.call(ctx, collaborator, req)
		if err != nil {
			// A failed hop poisons the whole chain: evidence gathered so
			// far is discarded, nothing is written to the session.
			result.evidence = nil
			result.err = asOrchestrationError(err, sessionID, current)
			o.emitError(sessionID, current, result.err)
			return result
		}

		result.outputs = append(result.outputs, output)
		result.chain = append(result.chain, current)
		result.evidence = append(result.evidence, output.Evidence...)
		o.emitOutput(sessionID, output)

		next := output.NextAgent
		switch {
		case next == "":
			return result
		case !types.IsKnownAgent(next):
			// A stray routing name ends the chain; the outputs gathered so
			// far still stand.
			o.log.WithSession(sessionID).Warnf("Stopping on unknown routing target %q from %s", next, current)
			return result
		case next == types.AgentIntent:
			// Handing back to intent ends the chain; the user speaks next.
			return result
		case next == types.AgentFulfillment:
			return result
		}

		if dispatches >= o.hopLimit {
			o.log.WithSession(sessionID).Warnf("Hop limit %d reached, chain truncated", o.hopLimit)
			return result
		}
		dispatches++
		current = next
	}
}

// call invokes one collaborator with a circuit breaker and, for read-only
// collaborators, bounded retries. Fulfillment commits state and is never
// retried blindly.
func (o *Orchestrator) call(ctx context.Context, c protocol.Collaborator, req *protocol.RequestContext) (*types.AgentOutput, error) {
	breaker := o.breakers[c.Name()]

	var output *types.AgentOutput
	invoke := func() error {
		return breaker.Execute(func() error {
			out, err := c.Handle(ctx, req)
			if err != nil {
				return err
			}
			output = out
			return nil
		})
	}

	var err error
	if c.Name() == types.AgentFulfillment {
		err = invoke()
	} else {
		err = resilience.RetryWithConfig(ctx, o.retry, invoke)
	}
	if err != nil {
		return nil, err
	}
	return output, nil
}

func asOrchestrationError(err error, sessionID string, agent types.AgentName) *types.OrchestrationError {
	if oe, ok := err.(*types.OrchestrationError); ok {
		return oe
	}
	return types.NewOrchestrationError(types.ErrCodeCollaboratorUnavailable, "collaborator call failed").
		WithSession(sessionID).WithAgent(agent).WithCause(err)
}

func (o *Orchestrator) emitRouting(sessionID string, agent types.AgentName, hop int) {
	o.log.WithSession(sessionID).Debugf("Hop %d: routing to %s", hop+1, agent)
	if o.sink != nil {
		o.sink.BroadcastAgentLog(types.NewAgentLog(types.LogTypeRouting, "orchestrator",
			fmt.Sprintf("routing to %s (hop %d)", agent, hop+1)))
	}
}

func (o *Orchestrator) emitOutput(sessionID string, output *types.AgentOutput) {
	o.log.WithSession(sessionID).Infof("%s decided %s: %s", output.Agent, output.Decision, output.Reason)
	if o.sink != nil {
		log := types.NewAgentLog(string(output.Agent), string(output.Agent), output.Reason)
		o.sink.BroadcastAgentLog(log)
	}
}

func (o *Orchestrator) emitError(sessionID string, agent types.AgentName, err error) {
	o.log.WithSession(sessionID).Error("collaborator chain failed", err)
	if o.sink != nil {
		o.sink.BroadcastError(string(agent), err.Error())
	}
}
