package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// nodeTTL is the liveness window: a node whose record has not been refreshed
// within it is considered dead. Heartbeats rewrite the record well inside
// the window.
const nodeTTL = 60 * time.Second

// NodeRecord is the ephemeral, cache-resident description of one bot process.
type NodeRecord struct {
	NodeID       string `json:"node_id"`
	Status       string `json:"status"`
	GuildCount   int    `json:"guild_count"`
	Ping         int64  `json:"ping_ms"`
	CommandCount int    `json:"command_count"`
	Timestamp    int64  `json:"timestamp"`
}

func nodeKey(nodeID string) string {
	return fmt.Sprintf("bot:node:%s", nodeID)
}

// RegisterNode writes (or refreshes) this node's presence record. Absence
// past the TTL is the sole liveness signal; no deregistration handshake is
// required.
func (s *Service) RegisterNode(ctx context.Context, record NodeRecord) error {
	if s.client == nil {
		return nil
	}
	record.Timestamp = time.Now().UnixMilli()
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, nodeKey(record.NodeID), data, nodeTTL).Err()
}

// ActiveNodes returns every node record still inside its TTL. Records that
// fail to decode are skipped, not fatal.
func (s *Service) ActiveNodes(ctx context.Context) ([]NodeRecord, error) {
	if s.client == nil {
		return nil, nil
	}

	var nodes []NodeRecord
	iter := s.client.Scan(ctx, 0, "bot:node:*", 0).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var record NodeRecord
		if err := json.Unmarshal(data, &record); err != nil {
			s.log.Warn("skipping corrupt node record", zap.String("key", iter.Val()), zap.Error(err))
			continue
		}
		nodes = append(nodes, record)
	}
	if err := iter.Err(); err != nil {
		return nodes, err
	}
	return nodes, nil
}

// RemoveNode deletes the presence record. Graceful shutdown calls this as a
// courtesy; crashed nodes simply age out.
func (s *Service) RemoveNode(ctx context.Context, nodeID string) error {
	if s.client == nil {
		return nil
	}
	return s.client.Del(ctx, nodeKey(nodeID)).Err()
}
