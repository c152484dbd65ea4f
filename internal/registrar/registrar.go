// Copyright 2024 The Radiam Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package registrar implements the Registrar (spec.md §4.7): it resolves
// project, location, and agent identities against the index service at
// startup and materializes each project's endpoint URL.
package registrar

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/usask-rc/radiam-agent/internal/indexclient"
	"github.com/usask-rc/radiam-agent/internal/model"
)

// AgentVersion is the agent release string sent in the useragent creation
// payload, mirroring the original agent's module-level version constant.
const AgentVersion = "2.0"

// defaultLocationType is the label looked up when a new location must be
// created, matching the original agent's fixed location-type name.
const defaultLocationType = "workstation"

// Registrar resolves project/location/agent identities.
type Registrar struct {
	Client indexclient.Client
}

// New builds a Registrar using client.
func New(client indexclient.Client) *Registrar {
	return &Registrar{Client: client}
}

// EnsureProject verifies or resolves proj's id against the index service,
// and materializes its endpoint URL, per spec.md §4.7.
func (r *Registrar) EnsureProject(ctx context.Context, host string, proj *model.ProjectConfig) error {
	if proj.ID != "" {
		proj.Endpoint = host + "/api/projects/" + proj.ID + "/"
		res, err := r.Client.SearchByField(ctx, "projects", proj.ID, "id")
		if err != nil {
			return fmt.Errorf("registrar: verifying project %s: %w", proj.Name, err)
		}
		if res == nil || res.Count == 0 {
			return fmt.Errorf("registrar: project id %s does not appear to exist - was it deleted?", proj.ID)
		}
		return nil
	}

	res, err := r.Client.SearchByField(ctx, "projects", proj.Name, "name")
	if err != nil {
		return fmt.Errorf("registrar: looking up project %s: %w", proj.Name, err)
	}
	if res == nil || res.Count == 0 {
		return fmt.Errorf("registrar: a project with name %s was not found", proj.Name)
	}
	id, _ := res.Results[0]["id"].(string)
	proj.ID = id
	proj.Endpoint = host + "/api/projects/" + proj.ID + "/"
	return nil
}

// EnsureLocation resolves or creates the agent's location, binding its id
// into loc.
func (r *Registrar) EnsureLocation(ctx context.Context, loc *model.Location) error {
	if loc.ID != "" {
		return nil
	}

	res, err := r.Client.SearchByField(ctx, "locations", loc.Name, "display_name")
	if err != nil {
		return fmt.Errorf("registrar: looking up location %s: %w", loc.Name, err)
	}
	if res != nil && res.Count > 0 {
		id, _ := res.Results[0]["id"].(string)
		loc.ID = id
		return nil
	}

	typeRes, err := r.Client.SearchByField(ctx, "locationtypes", defaultLocationType, "label")
	if err != nil || typeRes == nil || typeRes.Count == 0 {
		return fmt.Errorf("registrar: could not look up location type id for %s", defaultLocationType)
	}
	locationTypeID, _ := typeRes.Results[0]["id"].(string)

	hostname, _ := os.Hostname()
	created, err := r.Client.CreateLocation(ctx, map[string]any{
		"display_name":  loc.Name,
		"host_name":     hostname,
		"location_type": locationTypeID,
	})
	if err != nil {
		return fmt.Errorf("registrar: creating location %s: %w", loc.Name, err)
	}
	id, _ := created["id"].(string)
	if id == "" {
		return fmt.Errorf("registrar: tried to create location %s, but the API call failed", loc.Name)
	}
	loc.ID = id
	return nil
}

// EnsureAgent resolves or creates the agent identity, assigning an id if
// config didn't already have one and registering a useragent entity that
// references every configured project's root directory.
func (r *Registrar) EnsureAgent(ctx context.Context, agentID, locationID string, projects []model.ProjectConfig) (string, error) {
	if agentID == "" {
		agentID = uuid.NewString()
	}

	res, err := r.Client.SearchByField(ctx, "useragents", agentID, "id")
	if err != nil {
		return agentID, fmt.Errorf("registrar: looking up agent %s: %w", agentID, err)
	}
	if res != nil && res.Count > 0 {
		return agentID, nil
	}

	user, err := r.Client.GetLoggedInUser(ctx)
	if err != nil || user == nil {
		return agentID, fmt.Errorf("registrar: could not determine current logged in user to create useragent")
	}
	userID, _ := user["id"].(string)

	projectConfigList := make([]map[string]any, 0, len(projects))
	for _, p := range projects {
		projectConfigList = append(projectConfigList, map[string]any{
			"project": p.Name,
			"config":  map[string]any{"rootdir": p.RootDir},
		})
	}

	created, err := r.Client.CreateUserAgent(ctx, map[string]any{
		"id":                  agentID,
		"user":                userID,
		"version":             AgentVersion,
		"location":            locationID,
		"project_config_list": projectConfigList,
	})
	if err != nil {
		return agentID, fmt.Errorf("registrar: creating useragent: %w", err)
	}
	if id, _ := created["id"].(string); id == "" {
		return agentID, fmt.Errorf("registrar: tried to create a new user agent, but the API call failed")
	}
	return agentID, nil
}
