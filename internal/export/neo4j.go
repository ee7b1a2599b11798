package export

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/specialistvlad/causalgrid/internal/ctxlog"
	"github.com/specialistvlad/causalgrid/internal/model"
)

// Neo4jConfig locates a Neo4j database.
type Neo4jConfig struct {
	URI      string        `yaml:"uri"`
	User     string        `yaml:"user"`
	Password string        `yaml:"password"`
	Database string        `yaml:"database"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Neo4jConfigFromEnv reads NEO4J_URI, NEO4J_USER, NEO4J_PASSWORD and
// NEO4J_DATABASE. An empty URI means Neo4j is not configured.
func Neo4jConfigFromEnv() Neo4jConfig {
	cfg := Neo4jConfig{
		URI:      strings.TrimSpace(os.Getenv("NEO4J_URI")),
		User:     strings.TrimSpace(os.Getenv("NEO4J_USER")),
		Password: strings.TrimSpace(os.Getenv("NEO4J_PASSWORD")),
		Database: strings.TrimSpace(os.Getenv("NEO4J_DATABASE")),
	}
	return cfg
}

// Neo4jSink mirrors a document into Neo4j as CausalNode vertices joined by
// MECHANISM and SUCCEEDED_BY relationships.
type Neo4jSink struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4jSink connects and verifies connectivity.
func NewNeo4jSink(ctx context.Context, cfg Neo4jConfig) (*Neo4jSink, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("neo4j: uri is required")
	}
	if cfg.User == "" {
		cfg.User = "neo4j"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	auth := neo4j.BasicAuth(cfg.User, cfg.Password, "")
	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth, func(c *neo4j.Config) {
		c.SocketConnectTimeout = cfg.Timeout
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: init driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j: verify connectivity: %w", err)
	}
	return &Neo4jSink{driver: driver, database: cfg.Database}, nil
}

// Close releases the driver.
func (s *Neo4jSink) Close(ctx context.Context) error {
	if s == nil || s.driver == nil {
		return nil
	}
	err := s.driver.Close(ctx)
	s.driver = nil
	return err
}

const (
	cypherNodes = `
UNWIND $nodes AS n
MERGE (c:CausalNode {id: n.id})
SET c += n
`
	cypherMechanisms = `
UNWIND $rels AS r
MATCH (a:CausalNode {id: r.source})
MATCH (b:CausalNode {id: r.target})
MERGE (a)-[m:MECHANISM {id: r.id}]->(b)
SET m += r
`
	cypherSuccessors = `
UNWIND $succ AS s
MATCH (a:CausalNode {id: s.id})
MATCH (b:CausalNode {id: s.successor})
MERGE (a)-[r:SUCCEEDED_BY]->(b)
SET r.action = s.action, r.weight = s.weight, r.reason = s.reason
`
)

// neo4jParams flattens the document into Cypher parameter rows.
func neo4jParams(doc *Document) (nodes, rels, succ []map[string]any) {
	synced := doc.ExportedAt.UTC().Format(time.RFC3339Nano)
	for _, n := range doc.Nodes {
		scales := make([]int64, len(n.Scales))
		for i, s := range n.Scales {
			scales[i] = int64(s)
		}
		row := map[string]any{
			"id":               string(n.ID),
			"name":             n.Name,
			"scales":           scales,
			"domains":          n.Domains,
			"type":             string(n.Type),
			"unit":             n.Unit,
			"source":           n.Source,
			"status":           string(n.Status),
			"version":          int64(n.Version),
			"snapshot_version": int64(doc.SnapshotVersion),
			"synced_at":        synced,
		}
		if n.Baseline != nil && n.Baseline.Point != nil {
			row["baseline"] = *n.Baseline.Point
		}
		nodes = append(nodes, row)
	}
	for _, m := range doc.Mechanisms {
		rels = append(rels, map[string]any{
			"id":            string(m.ID),
			"source":        string(m.Source),
			"target":        string(m.Target),
			"pathway":       m.Pathway,
			"direction":     m.Direction.String(),
			"strength":      m.Strength.Point,
			"low":           m.Strength.Low,
			"high":          m.Strength.High,
			"coefficient":   m.Coefficient(),
			"evidence_tier": int64(m.EvidenceTier),
			"status":        statusOf(m),
			"synced_at":     synced,
		})
	}
	for _, ts := range doc.Tombstones {
		if ts.Successor == "" {
			continue
		}
		succ = append(succ, map[string]any{
			"id":        string(ts.ID),
			"successor": string(ts.Successor),
			"action":    string(ts.Action),
			"weight":    ts.Weight,
			"reason":    ts.Reason,
		})
	}
	return nodes, rels, succ
}

// Write upserts the document in one write transaction.
func (s *Neo4jSink) Write(ctx context.Context, doc *Document) error {
	logger := ctxlog.FromContext(ctx).With("sink", "neo4j")
	nodes, rels, succ := neo4jParams(doc)

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	// Best effort; restricted users may not manage schema.
	if res, err := session.Run(ctx, `CREATE CONSTRAINT causal_node_id_unique IF NOT EXISTS FOR (c:CausalNode) REQUIRE c.id IS UNIQUE`, nil); err != nil {
		logger.Warn("Neo4j schema init failed, continuing.", "error", err)
	} else {
		_, _ = res.Consume(ctx)
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		steps := []struct {
			query string
			key   string
			rows  []map[string]any
		}{
			{cypherNodes, "nodes", nodes},
			{cypherMechanisms, "rels", rels},
			{cypherSuccessors, "succ", succ},
		}
		for _, step := range steps {
			if len(step.rows) == 0 {
				continue
			}
			res, err := tx.Run(ctx, step.query, map[string]any{step.key: step.rows})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("neo4j export of snapshot %d: %w", doc.SnapshotVersion, err)
	}
	logger.Info("Snapshot mirrored to Neo4j.", "version", doc.SnapshotVersion, "nodes", len(nodes), "mechanisms", len(rels))
	return nil
}

var _ Sink = (*Neo4jSink)(nil)

// statusOf keeps retired mechanisms visible in Neo4j with their status.
func statusOf(m *model.Mechanism) string {
	if m.Status == "" {
		return string(model.MechanismActive)
	}
	return string(m.Status)
}
