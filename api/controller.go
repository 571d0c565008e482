package api

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/khaledhikmat/ws-go/model"
	"github.com/khaledhikmat/ws-go/pipeline"
	"github.com/khaledhikmat/ws-go/service/lgr"
)

var (
	ErrAgentRunning    = errors.New("a detection agent is already running")
	ErrAgentNotRunning = errors.New("no detection agent is running")
)

// AgentFactory builds a fresh, unstarted agent for user. Each call owns new capture devices.
type AgentFactory func(user model.UserIdentity) (*pipeline.Agent, error)

// Controller supervises at most one in-process detection agent.
type Controller struct {
	canxCtx     context.Context
	newAgent    AgentFactory
	stopTimeout time.Duration

	mu    sync.Mutex
	agent *pipeline.Agent
}

func NewController(canxCtx context.Context, newAgent AgentFactory, stopTimeout time.Duration) *Controller {
	return &Controller{
		canxCtx:     canxCtx,
		newAgent:    newAgent,
		stopTimeout: stopTimeout,
	}
}

// Start launches an agent for user unless one is still running. An agent whose stream
// already ended is stopped first so its devices are released.
func (c *Controller) Start(user model.UserIdentity) (pipeline.Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.agent != nil {
		select {
		case <-c.agent.Done():
			if _, err := c.agent.Stop(c.stopTimeout); err != nil {
				lgr.Logger.Warn("previous agent ended with error", slog.String("agentID", c.agent.ID), lgr.Err(err))
			}
			c.agent = nil
		default:
			return c.agent.Status(), ErrAgentRunning
		}
	}

	agent, err := c.newAgent(user)
	if err != nil {
		return pipeline.Status{}, err
	}

	agent.Start(c.canxCtx)
	c.agent = agent
	return agent.Status(), nil
}

// Stop stops and flushes the running agent and returns its final counters.
func (c *Controller) Stop() (model.StatCounters, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.agent == nil {
		return nil, ErrAgentNotRunning
	}

	agent := c.agent
	c.agent = nil
	return agent.Stop(c.stopTimeout)
}

// Status reports the current or most recent agent. ok is false when none was started.
func (c *Controller) Status() (pipeline.Status, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.agent == nil {
		return pipeline.Status{}, false
	}
	return c.agent.Status(), true
}
