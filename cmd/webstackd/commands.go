package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/webstackd/webstackd/pkg/client"
)

// command wraps a daemon API client behind the CLI subcommands.
type command struct {
	c       *client.Client
	timeout time.Duration
}

func newCommand(flags *APIFlags) *command {
	cfg := client.DefaultConfig()
	if flags.URL != "" {
		cfg.BaseURL = flags.URL
	}
	if flags.Timeout > 0 {
		cfg.Timeout = flags.Timeout
	}
	return &command{c: client.New(cfg), timeout: cfg.Timeout}
}

func (c *command) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.timeout)
}

func (c *command) requireDaemon(ctx context.Context) error {
	if !c.c.IsReachable(ctx) {
		return fmt.Errorf("daemon not reachable - start it first with 'webstackd serve'")
	}
	return nil
}

func (c *command) Start(kind string) error {
	ctx, cancel := c.ctx()
	defer cancel()
	if err := c.requireDaemon(ctx); err != nil {
		return err
	}
	if err := c.c.Start(ctx, kind); err != nil {
		return err
	}
	st, err := c.c.StatusOf(ctx, kind)
	if err != nil {
		return err
	}
	printJSON(st)
	return nil
}

func (c *command) Stop(kind string) error {
	ctx, cancel := c.ctx()
	defer cancel()
	if err := c.requireDaemon(ctx); err != nil {
		return err
	}
	if err := c.c.Stop(ctx, kind); err != nil {
		return err
	}
	st, err := c.c.StatusOf(ctx, kind)
	if err != nil {
		return err
	}
	printJSON(st)
	return nil
}

func (c *command) StartAll() error {
	ctx, cancel := c.ctx()
	defer cancel()
	if err := c.requireDaemon(ctx); err != nil {
		return err
	}
	if err := c.c.StartAll(ctx); err != nil {
		return err
	}
	return c.printStatuses(ctx)
}

func (c *command) StopAll() error {
	ctx, cancel := c.ctx()
	defer cancel()
	if err := c.requireDaemon(ctx); err != nil {
		return err
	}
	if err := c.c.StopAll(ctx); err != nil {
		return err
	}
	return c.printStatuses(ctx)
}

func (c *command) Status(kind string) error {
	ctx, cancel := c.ctx()
	defer cancel()
	if err := c.requireDaemon(ctx); err != nil {
		return err
	}
	if kind == "" {
		return c.printStatuses(ctx)
	}
	st, err := c.c.StatusOf(ctx, kind)
	if err != nil {
		return err
	}
	printJSON(st)
	return nil
}

func (c *command) Health() error {
	ctx, cancel := c.ctx()
	defer cancel()
	if err := c.requireDaemon(ctx); err != nil {
		return err
	}
	recs, err := c.c.Health(ctx)
	if err != nil {
		return err
	}
	printJSON(recs)
	return nil
}

func (c *command) GenerateConfig() error {
	ctx, cancel := c.ctx()
	defer cancel()
	if err := c.requireDaemon(ctx); err != nil {
		return err
	}
	if err := c.c.GenerateConfig(ctx); err != nil {
		return err
	}
	fmt.Println("web server configuration regenerated")
	return nil
}

func (c *command) Journal(limit int) error {
	ctx, cancel := c.ctx()
	defer cancel()
	if err := c.requireDaemon(ctx); err != nil {
		return err
	}
	entries, err := c.c.Journal(ctx, limit)
	if err != nil {
		return err
	}
	printJSON(entries)
	return nil
}

func (c *command) printStatuses(ctx context.Context) error {
	sts, err := c.c.Status(ctx)
	if err != nil {
		return err
	}
	printJSON(sts)
	return nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
