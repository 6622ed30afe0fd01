package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/spf13/cobra"

	"thinkdesk/internal/catalog"
	"thinkdesk/internal/model"
	"thinkdesk/internal/openapi"
)

func newDocsCmd(e *env) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Print the API documentation",
		Long: `Print the endpoint catalog as text, or the generated OpenAPI 3 document
with --openapi json|yaml.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(cmd.Context(), e)
			if err != nil {
				return err
			}
			if format != "" {
				b, err := openapi.Export(doc, format)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(b)
				return err
			}
			printDocs(cmd.OutOrStdout(), doc)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "openapi", "", "Print the OpenAPI document (json, yaml)")

	return cmd
}

// loadDocument returns the configured external spec, or the built-in catalog.
func loadDocument(ctx context.Context, e *env) (*openapi3.T, error) {
	if src := strings.TrimSpace(e.cfg.UI.SpecFile); src != "" {
		e.log.WithField("source", src).Info("Loading OpenAPI document")
		doc, err := openapi.Load(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", src, err)
		}
		return doc, nil
	}
	return openapi.Build(ctx, catalog.Default(), e.cfg.API.BaseURL)
}

func printDocs(w io.Writer, doc *openapi3.T) {
	if doc.Info != nil {
		fmt.Fprintf(w, "%s %s\n", doc.Info.Title, doc.Info.Version)
		if doc.Info.Description != "" {
			fmt.Fprintf(w, "%s\n", doc.Info.Description)
		}
	}

	for _, g := range openapi.Groups(openapi.ExtractEndpoints(doc)) {
		fmt.Fprintf(w, "\n%s\n", g.Name)
		for _, ep := range g.Endpoints {
			printEndpoint(w, ep)
		}
	}
}

func printEndpoint(w io.Writer, ep model.Endpoint) {
	auth := ""
	if ep.NeedsAuth {
		auth = "  [bearer]"
	}
	fmt.Fprintf(w, "  %-6s %s%s\n", ep.Method, ep.Path, auth)
	if ep.Summary != "" {
		fmt.Fprintf(w, "         %s\n", ep.Summary)
	}
	for _, p := range ep.PathParams {
		fmt.Fprintf(w, "         {%s} %s\n", p.Name, p.Description)
	}
	if ep.Body != nil && ep.Body.Example != "" {
		fmt.Fprintf(w, "         request:  %s\n", compact(ep.Body.Example))
	}
	if ep.ResponseExample != "" {
		fmt.Fprintf(w, "         response: %s\n", compact(ep.ResponseExample))
	}
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
