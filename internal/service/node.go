package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/makeouthillx32/Discord/internal/cache"
)

const (
	NodeStatusOnline       = "online"
	NodeStatusShuttingDown = "shutting_down"
)

// NodeCoordinator keeps this process visible to its peers through the
// shared cache. A heartbeat rewrites the presence record inside the
// liveness TTL; a crashed node simply stops refreshing and ages out.
type NodeCoordinator struct {
	cache    *cache.Service
	nodeID   string
	interval time.Duration
	log      *zap.Logger

	mu           sync.Mutex
	status       string
	guildCount   int
	commandCount int
	ping         int64

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewNodeCoordinator(cacheSvc *cache.Service, nodeID string, interval time.Duration, log *zap.Logger) *NodeCoordinator {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &NodeCoordinator{
		cache:    cacheSvc,
		nodeID:   nodeID,
		interval: interval,
		log:      log,
		status:   NodeStatusOnline,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start registers the node immediately and keeps the record fresh
// until Stop is called.
func (c *NodeCoordinator) Start(ctx context.Context) {
	c.heartbeat(ctx)
	go c.run()
	c.log.Info("node registered", zap.String("node_id", c.nodeID))
}

func (c *NodeCoordinator) run() {
	defer close(c.done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.heartbeat(context.Background())
		}
	}
}

func (c *NodeCoordinator) heartbeat(ctx context.Context) {
	c.mu.Lock()
	record := cache.NodeRecord{
		NodeID:       c.nodeID,
		Status:       c.status,
		GuildCount:   c.guildCount,
		Ping:         c.ping,
		CommandCount: c.commandCount,
	}
	c.mu.Unlock()

	if err := c.cache.RegisterNode(ctx, record); err != nil {
		c.log.Warn("heartbeat failed", zap.Error(err))
	}
}

// UpdateStats feeds the next heartbeat with the node's current gateway
// numbers.
func (c *NodeCoordinator) UpdateStats(guildCount int, ping int64) {
	c.mu.Lock()
	c.guildCount = guildCount
	c.ping = ping
	c.mu.Unlock()
}

// CommandServed bumps the counter reported with each heartbeat.
func (c *NodeCoordinator) CommandServed() {
	c.mu.Lock()
	c.commandCount++
	c.mu.Unlock()
}

// Peers lists every node currently inside its liveness window,
// including this one.
func (c *NodeCoordinator) Peers(ctx context.Context) ([]cache.NodeRecord, error) {
	return c.cache.ActiveNodes(ctx)
}

// Stop announces shutdown, halts the heartbeat and removes the
// presence record so peers see the node leave immediately.
func (c *NodeCoordinator) Stop(ctx context.Context) {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.status = NodeStatusShuttingDown
		c.mu.Unlock()
		c.heartbeat(ctx)

		close(c.stop)
		<-c.done

		if err := c.cache.RemoveNode(ctx, c.nodeID); err != nil {
			c.log.Warn("node deregistration failed", zap.Error(err))
		}
		c.log.Info("node deregistered", zap.String("node_id", c.nodeID))
	})
}
