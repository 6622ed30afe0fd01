package main

import (
	"context"

	"github.com/spf13/cobra"

	"thinkdesk/internal/httpclient"
	"thinkdesk/internal/openapi"
	"thinkdesk/internal/ui"
	"thinkdesk/internal/wizard"
)

func newUICmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "ui",
		Short: "Open the terminal docs viewer and workflow wizard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUI(cmd.Context(), e)
		},
	}
}

func runUI(ctx context.Context, e *env) error {
	doc, err := loadDocument(ctx, e)
	if err != nil {
		return err
	}
	eps := openapi.ExtractEndpoints(doc)

	client := httpclient.New(e.log, e.cfg.API.BaseURL, e.cfg.API.Timeout)
	forms := e.cfg.Wizard.Forms
	w := wizard.New(e.log, client, wizard.Options{
		Forms:     &forms,
		BlurDelay: e.cfg.UI.BlurDelay,
	})

	var title string
	if doc.Info != nil {
		title = doc.Info.Title
	}

	e.log.WithField("endpoints", len(eps)).Info("Starting terminal UI")

	app := ui.NewApp(e.log, ui.Options{
		Title:     title,
		Endpoints: eps,
		Client:    client,
		Wizard:    w,
		Token:     e.cfg.API.Token,
		BlurDelay: e.cfg.UI.BlurDelay,
	})
	return app.Run()
}
