package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newSmokeCmd(opts *options) *cobra.Command {
	var (
		text    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Send one message and wait for it to come back",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return smoke(ctx, *opts, text)
		},
	}
	cmd.Flags().StringVar(&text, "text", "hello from smoke test", "message content")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "total timeout for the run")
	return cmd
}

func smoke(ctx context.Context, opts options, text string) error {
	c, err := newClient(opts)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Connect(ctx); err != nil {
		return err
	}
	if err := c.Join(ctx, opts.room); err != nil {
		return err
	}
	go func() { _ = c.Run(ctx) }()

	if err := c.Send(ctx, text); err != nil {
		return err
	}

	for {
		select {
		case msg, ok := <-c.Messages():
			if !ok {
				return fmt.Errorf("connection closed before echo")
			}
			if msg.Author == opts.user && msg.Content == text {
				fmt.Printf("ok: message %d stored at %s\n", msg.ID, msg.CreatedAt)
				return nil
			}
		case e, ok := <-c.Errors():
			if !ok {
				return fmt.Errorf("connection closed before echo")
			}
			return fmt.Errorf("server error %s: %s", e.Code, e.Msg)
		case <-ctx.Done():
			return fmt.Errorf("no echo: %w", ctx.Err())
		}
	}
}
