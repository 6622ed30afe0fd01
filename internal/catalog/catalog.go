// Package catalog holds the built-in documentation of the ThinkDesk tenancy API.
package catalog

import (
	"bytes"
	"encoding/json"
)

type PathParam struct {
	Name        string
	Description string
}

type Endpoint struct {
	Method          string
	Path            string
	Description     string
	NeedsAuth       bool
	PathParams      []PathParam
	RequestExample  string
	ResponseExample string
}

type Group struct {
	Name      string
	Endpoints []Endpoint
}

type Catalog struct {
	Title       string
	Description string
	Version     string
	Groups      []Group
}

// Routes lists every endpoint as "METHOD path" in catalog order.
func (c Catalog) Routes() []string {
	var out []string
	for _, g := range c.Groups {
		for _, ep := range g.Endpoints {
			out = append(out, ep.Method+" "+ep.Path)
		}
	}
	return out
}

// Find returns the endpoint with the given method and path template.
func (c Catalog) Find(method, path string) (Endpoint, bool) {
	for _, g := range c.Groups {
		for _, ep := range g.Endpoints {
			if ep.Method == method && ep.Path == path {
				return ep, true
			}
		}
	}
	return Endpoint{}, false
}

func example(raw string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(raw), "", "  "); err != nil {
		return raw
	}
	return buf.String()
}

func idParam(desc string) []PathParam {
	return []PathParam{{Name: "id", Description: desc}}
}

func crud(path, create, list, get, update, remove, idDesc, createBody, updateBody, createResp, listResp string) []Endpoint {
	item := path + "/{id}"
	return []Endpoint{
		{Method: "POST", Path: path, Description: create, NeedsAuth: true, RequestExample: example(createBody), ResponseExample: example(createResp)},
		{Method: "GET", Path: path, Description: list, NeedsAuth: true, ResponseExample: example(listResp)},
		{Method: "GET", Path: item, Description: get, NeedsAuth: true, PathParams: idParam(idDesc), ResponseExample: example(createResp)},
		{Method: "PUT", Path: item, Description: update, NeedsAuth: true, PathParams: idParam(idDesc), RequestExample: example(updateBody), ResponseExample: example(createResp)},
		{Method: "DELETE", Path: item, Description: remove, NeedsAuth: true, PathParams: idParam(idDesc)},
	}
}

// Default returns a fresh copy of the ThinkDesk catalog.
func Default() Catalog {
	return Catalog{
		Title:       "ThinkDesk Tenancy REST API",
		Description: "An ITSM multi-tenant REST API for managing support tickets, users, and tenants.",
		Version:     "1.0.0",
		Groups: []Group{
			{
				Name: "Authentication",
				Endpoints: []Endpoint{{
					Method:          "POST",
					Path:            "/login",
					Description:     "Autentica um usuário ou técnico e retorna um token JWT.",
					RequestExample:  example(`{"login":"tecnico@example.com","password":"password123"}`),
					ResponseExample: example(`{"token":"ey...[jwt_token]..."}`),
				}},
			},
			{
				Name: "Tenants",
				Endpoints: crud("/tenants",
					"Cria um novo tenant (empresa).",
					"Lista todos os tenants.",
					"Busca um tenant específico por ID.",
					"Atualiza um tenant existente.",
					"Deleta um tenant.",
					"ID do tenant",
					`{"tradingName":"Empresa Exemplo SA","legalName":"Empresa Exemplo LTDA","taxID":"12.345.678/0001-99","settings":"{\"theme\":\"dark\"}"}`,
					`{"tradingName":"Empresa Atualizada SA","legalName":"Empresa Atualizada LTDA","taxID":"12.345.678/0001-99","settings":"{\"theme\":\"light\"}"}`,
					`{"id":1,"tradingName":"Empresa Exemplo SA","legalName":"Empresa Exemplo LTDA","taxID":"12345678000199","createdAt":"2024-10-28T10:00:00","active":true,"settings":"{\"theme\":\"dark\"}"}`,
					`[{"id":1,"tradingName":"Empresa Exemplo SA","legalName":"Empresa Exemplo LTDA","taxID":"12345678000199","createdAt":"2024-10-28T10:00:00","active":true,"settings":"{\"theme\":\"dark\"}"}]`,
				),
			},
			{
				Name: "Users",
				Endpoints: crud("/users",
					"Cria um novo usuário (solicitante).",
					"Lista todos os usuários.",
					"Busca um usuário por ID.",
					"Atualiza um usuário.",
					"Deleta um usuário.",
					"ID do usuário",
					`{"name":"Usuário Final","email":"usuario@exemplo.com","password":"password123","position":"Analista de Marketing","tenantId":1,"roleId":1}`,
					`{"name":"Usuário Final Atualizado","email":"usuario.novo@exemplo.com","position":"Analista de Marketing Sênior"}`,
					`{"id":1,"name":"Usuário Final","email":"usuario@exemplo.com","position":"Analista de Marketing","active":true,"tenantId":1}`,
					`[{"id":1,"name":"Usuário Final","email":"usuario@exemplo.com","position":"Analista de Marketing","active":true,"tenantId":1}]`,
				),
			},
			{
				Name: "Technicians",
				Endpoints: crud("/technicians",
					"Cria um novo técnico.",
					"Lista todos os técnicos.",
					"Busca um técnico por ID.",
					"Atualiza um técnico.",
					"Deleta um técnico.",
					"ID do técnico",
					`{"name":"Técnico N1","email":"tecnico@exemplo.com","password":"password123","level":"L1","tenantId":1}`,
					`{"name":"Técnico N2","level":"L2"}`,
					`{"id":1,"name":"Técnico N1","email":"tecnico@exemplo.com","level":"L1","tenantId":1}`,
					`[{"id":1,"name":"Técnico N1","email":"tecnico@exemplo.com","level":"L1","tenantId":1}]`,
				),
			},
			{
				Name: "SLA Policies",
				Endpoints: crud("/slapolicies",
					"Cria uma nova política de SLA. A categoria e a prioridade podem ser criadas dinamicamente aqui.",
					"Lista todas as políticas de SLA.",
					"Busca uma política por ID.",
					"Atualiza uma política.",
					"Deleta uma política.",
					"ID da política",
					`{"name":"SLA Padrão - TI","responseTimeMinutes":120,"resolutionTimeMinutes":480,"operationalHoursOnly":true,"isActive":true,"categoryDto":{"name":"Infraestrutura","description":"Problemas de infraestrutura"},"tenantId":1,"priorityDto":{"name":"Média"}}`,
					`{"name":"SLA Urgente - TI","responseTimeMinutes":60,"resolutionTimeMinutes":240}`,
					`{"id":1,"name":"SLA Padrão - TI","responseTimeMinutes":120,"resolutionTimeMinutes":480,"categoryDto":{"id":1,"name":"Infraestrutura","description":"Problemas de infraestrutura"},"priorityDto":{"id":1,"name":"Média"}}`,
					`[{"id":1,"name":"SLA Padrão - TI","responseTimeMinutes":120,"resolutionTimeMinutes":480,"categoryDto":{"id":1,"name":"Infraestrutura","description":"Problemas de infraestrutura"},"priorityDto":{"id":1,"name":"Média"}}]`,
				),
			},
			{
				Name: "Tickets",
				Endpoints: crud("/tickets",
					"Cria um novo ticket de suporte.",
					"Lista todos os tickets de forma paginada.",
					"Busca um ticket por ID.",
					"Atualiza um ticket.",
					"Deleta um ticket.",
					"ID do ticket",
					`{"title":"Impressora não funciona","description":"A impressora do 2º andar parou de funcionar.","resolutionDueDate":"2024-10-28T18:00:00.000Z","ticketType":"INCIDENT","category":1,"technician":1,"tenant":1,"requester":2,"priority":3}`,
					`{"title":"Impressora não funciona - URGENTE","status":"IN_PROGRESS"}`,
					`{"id":101,"title":"Impressora não funciona","description":"A impressora do 2º andar parou de funcionar.","status":"OPEN","resolutionDueDate":"2024-10-28T18:00:00","ticketType":"INCIDENT","category":{"id":1,"name":"Hardware"},"technician":{"id":1,"name":"Técnico N1"},"tenant":{"id":1,"tradingName":"Empresa Exemplo SA"},"requester":{"id":2,"name":"Usuário Final"},"priority":{"id":3,"name":"Média"}}`,
					`{"content":[{"id":101,"title":"Impressora não funciona","status":"OPEN","ticketType":"INCIDENT"}],"totalElements":1,"totalPages":1,"number":0,"size":20}`,
				),
			},
			{
				Name: "Ticket Logs",
				Endpoints: []Endpoint{
					{Method: "POST", Path: "/ticketlog", Description: "Adiciona uma nova entrada de log a um ticket.", NeedsAuth: true,
						RequestExample:  example(`{"content":"Técnico verificou o problema e escalou para o N2.","isPrivate":false,"ticket_id":101}`),
						ResponseExample: example(`{"id":50,"content":"Técnico verificou o problema e escalou para o N2.","createdAt":"2024-10-28T14:30:00","isPrivate":false,"ticket_id":101,"authorName":"Técnico N1"}`)},
					{Method: "GET", Path: "/ticketlog/ticket/{ticketId}", Description: "Lista todos os logs de um ticket.", NeedsAuth: true,
						PathParams:      []PathParam{{Name: "ticketId", Description: "ID do ticket"}},
						ResponseExample: example(`[{"id":50,"content":"Técnico verificou o problema e escalou para o N2.","createdAt":"2024-10-28T14:30:00","isPrivate":false,"ticket_id":101,"authorName":"Técnico N1"}]`)},
					{Method: "PUT", Path: "/ticketlog/{id}", Description: "Atualiza uma entrada de log.", NeedsAuth: true,
						PathParams:     idParam("ID do log"),
						RequestExample: example(`{"content":"N2 confirmou o problema na placa lógica.","isPrivate":true}`)},
					{Method: "DELETE", Path: "/ticketlog/{id}", Description: "Deleta uma entrada de log.", NeedsAuth: true,
						PathParams: idParam("ID do log")},
				},
			},
			{
				Name: "Roles",
				Endpoints: []Endpoint{
					{Method: "POST", Path: "/roles", Description: "Cria um novo papel (role).", NeedsAuth: true,
						RequestExample:  example(`{"name":"ROLE_ADMIN"}`),
						ResponseExample: example(`{"id":1,"name":"ROLE_ADMIN"}`)},
					{Method: "GET", Path: "/roles", Description: "Lista todos os papéis.", NeedsAuth: true,
						ResponseExample: example(`[{"id":1,"name":"ROLE_ADMIN"}]`)},
				},
			},
			{
				Name: "Metrics",
				Endpoints: []Endpoint{
					{Method: "GET", Path: "/metrics/team/{teamId}", Description: "Retorna métricas de performance para um time.", NeedsAuth: true,
						PathParams:      []PathParam{{Name: "teamId", Description: "ID do time"}},
						ResponseExample: example(`{"resolvedTickets":150,"slaMet":145,"openTickets":12,"averageResolutionTimeMinutes":210}`)},
					{Method: "GET", Path: "/metrics/employee/{employeeId}", Description: "Retorna métricas de performance para um técnico.", NeedsAuth: true,
						PathParams:      []PathParam{{Name: "employeeId", Description: "ID do técnico"}},
						ResponseExample: example(`{"resolvedTickets":30,"slaMet":28,"openTickets":5,"averageResolutionTimeMinutes":180}`)},
				},
			},
		},
	}
}
