package catalog

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCoversAllRoutes(t *testing.T) {
	want := []string{
		"POST /login",
		"POST /tenants", "GET /tenants", "GET /tenants/{id}", "PUT /tenants/{id}", "DELETE /tenants/{id}",
		"POST /users", "GET /users", "GET /users/{id}", "PUT /users/{id}", "DELETE /users/{id}",
		"POST /technicians", "GET /technicians", "GET /technicians/{id}", "PUT /technicians/{id}", "DELETE /technicians/{id}",
		"POST /slapolicies", "GET /slapolicies", "GET /slapolicies/{id}", "PUT /slapolicies/{id}", "DELETE /slapolicies/{id}",
		"POST /tickets", "GET /tickets", "GET /tickets/{id}", "PUT /tickets/{id}", "DELETE /tickets/{id}",
		"POST /ticketlog", "GET /ticketlog/ticket/{ticketId}", "PUT /ticketlog/{id}", "DELETE /ticketlog/{id}",
		"POST /roles", "GET /roles",
		"GET /metrics/team/{teamId}", "GET /metrics/employee/{employeeId}",
	}
	assert.Equal(t, want, Default().Routes())
}

func TestOnlyLoginIsPublic(t *testing.T) {
	for _, g := range Default().Groups {
		for _, ep := range g.Endpoints {
			if ep.Path == "/login" {
				assert.False(t, ep.NeedsAuth)
				continue
			}
			assert.True(t, ep.NeedsAuth, "%s %s", ep.Method, ep.Path)
		}
	}
}

func TestExamplesAreJSON(t *testing.T) {
	for _, g := range Default().Groups {
		require.NotEmpty(t, g.Endpoints, g.Name)
		for _, ep := range g.Endpoints {
			for _, ex := range []string{ep.RequestExample, ep.ResponseExample} {
				if ex == "" {
					continue
				}
				assert.True(t, json.Valid([]byte(ex)), "%s %s: %s", ep.Method, ep.Path, ex)
			}
		}
	}
}

func TestPathParamsMatchTemplate(t *testing.T) {
	for _, g := range Default().Groups {
		for _, ep := range g.Endpoints {
			for _, p := range ep.PathParams {
				assert.Contains(t, ep.Path, "{"+p.Name+"}")
			}
			assert.Equal(t, strings.Count(ep.Path, "{"), len(ep.PathParams), ep.Path)
		}
	}
}

func TestFind(t *testing.T) {
	ep, ok := Default().Find("POST", "/slapolicies")
	require.True(t, ok)
	assert.Contains(t, ep.RequestExample, `"categoryDto"`)

	_, ok = Default().Find("PATCH", "/slapolicies")
	assert.False(t, ok)
}
