package main

import (
	"context"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/transmute/internal/server"
	"github.com/dmitrijs2005/transmute/internal/server/config"
)

type commandContext struct {
	args   []string
	logOut io.Writer

	appOnce sync.Once
	app     *server.App
	appErr  error
}

func newCommandContext(args []string, logOut io.Writer) *commandContext {
	return &commandContext{args: args, logOut: logOut}
}

// ensureApp loads configuration from the raw command line and builds the
// application once per invocation.
func (c *commandContext) ensureApp(ctx context.Context) (*server.App, error) {
	c.appOnce.Do(func() {
		cfg, err := config.LoadConfig(c.args)
		if err != nil {
			c.appErr = err
			return
		}
		c.app, c.appErr = server.NewApp(ctx, cfg, c.logOut)
	})
	return c.app, c.appErr
}

func (c *commandContext) withApp(cmd *cobra.Command, fn func(*server.App) error) error {
	app, err := c.ensureApp(cmd.Context())
	if err != nil {
		return err
	}
	return fn(app)
}

func (c *commandContext) close() {
	if c.app != nil {
		_ = c.app.Close()
	}
}

func shouldSkipApp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipAppInit"] == "true" {
			return true
		}
	}
	return false
}
