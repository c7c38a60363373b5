package neo4j

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
)

const projectTutorialCypher = `
MERGE (t:Tutorial {id: $tutorial.id})
SET t += $tutorial
WITH t
OPTIONAL MATCH (t)-[old:COVERS|USES]->()
DELETE old
WITH DISTINCT t
UNWIND $topics AS topic
MERGE (tp:Topic {name: topic})
MERGE (t)-[:COVERS]->(tp)
WITH DISTINCT t
UNWIND $tools AS tool
MERGE (tl:Tool {name: tool})
MERGE (t)-[:USES]->(tl)
`

// Graph projects published tutorials into Neo4j as
// (Tutorial)-[:COVERS]->(Topic) and (Tutorial)-[:USES]->(Tool).
type Graph struct {
	driver   neo4j.DriverWithContext
	database string
}

func New(ctx context.Context, uri, user, password, database string) (*Graph, error) {
	if strings.TrimSpace(user) == "" {
		user = "neo4j"
	}
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""), func(cfg *neo4j.Config) {
		cfg.MaxConnectionPoolSize = 10
		cfg.SocketConnectTimeout = 10 * time.Second
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: init driver: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j: verify connectivity: %w", err)
	}

	g := &Graph{driver: driver, database: database}
	g.ensureConstraints(ctx)
	return g, nil
}

func (g *Graph) ensureConstraints(ctx context.Context) {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: g.database, AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	stmts := []string{
		`CREATE CONSTRAINT tutorial_id_unique IF NOT EXISTS FOR (t:Tutorial) REQUIRE t.id IS UNIQUE`,
		`CREATE CONSTRAINT topic_name_unique IF NOT EXISTS FOR (t:Topic) REQUIRE t.name IS UNIQUE`,
		`CREATE CONSTRAINT tool_name_unique IF NOT EXISTS FOR (t:Tool) REQUIRE t.name IS UNIQUE`,
	}
	for _, q := range stmts {
		res, err := session.Run(ctx, q, nil)
		if err != nil {
			slog.Warn("neo4j_schema_init_failed", "error", err)
			continue
		}
		_, _ = res.Consume(ctx)
	}
}

func (g *Graph) ProjectTutorial(ctx context.Context, tutorial domain.Tutorial) error {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: g.database, AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	params := projectionParams(tutorial)
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, projectTutorialCypher, params)
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("neo4j: project tutorial %s: %w", tutorial.ID, err)
	}
	return nil
}

func (g *Graph) Close(ctx context.Context) error {
	if g == nil || g.driver == nil {
		return nil
	}
	return g.driver.Close(ctx)
}

func projectionParams(t domain.Tutorial) map[string]any {
	return map[string]any{
		"tutorial": map[string]any{
			"id":             t.ID,
			"slug":           t.Slug,
			"title":          t.Title,
			"maturity_level": int64(t.MaturityLevel),
			"difficulty":     string(t.Difficulty),
			"source_count":   int64(t.SourceCount),
			"hot_news":       t.HotNews,
			"updated_at":     t.UpdatedAt.UTC().Format(time.RFC3339),
		},
		"topics": normalizedNames(t.Topics),
		"tools":  normalizedNames(t.ToolsMentioned),
	}
}

func normalizedNames(values []string) []any {
	seen := make(map[string]struct{}, len(values))
	out := make([]any, 0, len(values))
	for _, v := range values {
		name := strings.ToLower(strings.TrimSpace(v))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
