package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/rodneygagnon/qckstrt/internal/app"
	"github.com/rodneygagnon/qckstrt/internal/auth"
	"github.com/rodneygagnon/qckstrt/internal/config"
	"github.com/rodneygagnon/qckstrt/internal/document"
	"github.com/rodneygagnon/qckstrt/internal/errs"
	"github.com/rodneygagnon/qckstrt/internal/models"
	"github.com/rodneygagnon/qckstrt/internal/rag"
)

// openApp builds the app with in-process dispatch; the CLI never enqueues.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg.Events.Dispatch = "inline"
	return app.New(ctx, cfg)
}

func scopeFrom(c *cli.Context) (models.Scope, error) {
	userID, err := uuid.Parse(c.String("user"))
	if err != nil {
		return models.Scope{}, fmt.Errorf("invalid --user: %w", err)
	}
	scope := models.Scope{UserID: userID}
	if t := c.String("tenant"); t != "" {
		tenantID, err := uuid.Parse(t)
		if err != nil {
			return models.Scope{}, fmt.Errorf("invalid --tenant: %w", err)
		}
		scope.TenantID = tenantID
	}
	return scope, nil
}

func firstArg(c *cli.Context, name string) (string, error) {
	arg := strings.TrimSpace(c.Args().First())
	if arg == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return arg, nil
}

func idArg(c *cli.Context) (uuid.UUID, error) {
	arg, err := firstArg(c, "document id")
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid document id: %w", err)
	}
	return id, nil
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func registerCommand(c *cli.Context) error {
	ctx := c.Context
	scope, err := scopeFrom(c)
	if err != nil {
		return err
	}
	locator, err := firstArg(c, "locator")
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	doc, err := a.Documents.Register(ctx, document.RegisterRequest{
		SourceLocator: locator,
		UserID:        scope.UserID,
		TenantID:      scope.TenantID,
	})
	if err != nil {
		return err
	}
	return printJSON(c, doc)
}

// ingestCommand reuses an existing record for the locator so a failed ingest
// can be retried with the same command.
func ingestCommand(c *cli.Context) error {
	ctx := c.Context
	scope, err := scopeFrom(c)
	if err != nil {
		return err
	}
	locator, err := firstArg(c, "locator")
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	doc, err := a.Documents.Register(ctx, document.RegisterRequest{
		SourceLocator: locator,
		UserID:        scope.UserID,
		TenantID:      scope.TenantID,
	})
	if errs.IsConflict(err) {
		doc, err = a.Documents.Store().GetByLocator(ctx, locator)
	}
	if err != nil {
		return err
	}

	var stageErr error
	switch doc.Status {
	case models.StatusEmbeddingFailed:
		stageErr = a.Pipeline.StartEmbedding(ctx, doc.ID)
	default:
		stageErr = a.Pipeline.StartExtraction(ctx, doc.ID)
	}

	final, err := a.Documents.Store().Get(ctx, doc.ID)
	if err != nil {
		return errors.Join(stageErr, err)
	}
	if perr := printJSON(c, final); perr != nil {
		return perr
	}
	return stageErr
}

func statusCommand(c *cli.Context) error {
	ctx := c.Context
	id, err := idArg(c)
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	doc, err := a.Documents.Store().Get(ctx, id)
	if err != nil {
		return err
	}
	return printJSON(c, doc)
}

func askCommand(c *cli.Context) error {
	ctx := c.Context
	scope, err := scopeFrom(c)
	if err != nil {
		return err
	}
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return rag.ErrEmptyQuery
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	answer, err := a.Orchestrator.Ask(ctx, rag.Request{Query: question, Scope: scope, TopK: c.Int("top-k")})
	if err != nil {
		return err
	}
	return printJSON(c, answer)
}

func deleteCommand(c *cli.Context) error {
	ctx := c.Context
	scope, err := scopeFrom(c)
	if err != nil {
		return err
	}
	id, err := idArg(c)
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Documents.Delete(ctx, scope, id); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "deleted %s\n", id)
	return nil
}

func tokenCommand(c *cli.Context) error {
	scope, err := scopeFrom(c)
	if err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	token, err := auth.IssueToken(cfg.Auth.JWTSecret, scope, c.Duration("ttl"))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, token)
	return nil
}
