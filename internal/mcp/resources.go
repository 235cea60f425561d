// ABOUTME: MCP resource definitions and providers.
// ABOUTME: Exposes endpoint, config and journal status as a resource.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type ResourcePayload struct {
	Metadata ResourceMetadata  `json:"metadata"`
	Data     interface{}       `json:"data"`
	Links    map[string]string `json:"links,omitempty"`
}

type ResourceMetadata struct {
	Timestamp   time.Time `json:"timestamp"`
	ResourceURI string    `json:"resource_uri"`
	Count       int       `json:"count"`
}

const statusURI = "feedz://status"

func (s *Server) registerResources() {
	res := &mcp.Resource{
		URI:         statusURI,
		Name:        "Feedz Status",
		Description: "Resolved feed endpoints, config location and history journal summary.",
		MIMEType:    "application/json",
	}

	s.mcp.AddResource(res, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		status, err := s.status(ctx)
		if err != nil {
			return nil, err
		}
		payload := ResourcePayload{
			Metadata: ResourceMetadata{
				Timestamp:   time.Now(),
				ResourceURI: res.URI,
				Count:       1,
			},
			Data: status,
		}
		return buildResourceResult(req.Params.URI, payload)
	})
}

func (s *Server) status(ctx context.Context) (map[string]interface{}, error) {
	cfg := s.deps.Config
	// Tools create clients without a region, so this is where they call.
	endpoints := s.deps.Factory.Create("", "").Endpoints()

	journal := map[string]interface{}{
		"enabled": s.deps.Store != nil,
	}
	if s.deps.Store != nil {
		summary, err := s.deps.Store.Summarize(ctx)
		if err != nil {
			return nil, err
		}
		journal["path"] = s.deps.DatabasePath
		journal["summary"] = summary
	}

	return map[string]interface{}{
		"config": map[string]interface{}{
			"path":   s.deps.ConfigPath,
			"region": cfg.Region,
		},
		"endpoints": map[string]string{
			"api":  endpoints.API,
			"feed": endpoints.Feed,
		},
		"work_dir":  s.deps.WorkDir,
		"history":   journal,
		"timestamp": time.Now(),
	}, nil
}

func buildResourceResult(uri string, payload ResourcePayload) (*mcp.ReadResourceResult, error) {
	bytes, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(bytes),
			},
		},
	}, nil
}
