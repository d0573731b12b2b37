package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/roomchat/internal/client"
	"github.com/vovakirdan/roomchat/internal/log"
	"github.com/vovakirdan/roomchat/internal/proto"
)

type options struct {
	server   string
	user     string
	room     string
	attempts int
	delay    time.Duration
	history  int
	logLevel string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "chatcli:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := options{}
	defaults := client.DefaultPolicy()

	root := &cobra.Command{
		Use:           "chatcli",
		Short:         "Interactive client for a roomchat server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return chat(cmd.Context(), opts)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.server, "server", "http://localhost:8080", "server HTTP address")
	pf.StringVar(&opts.user, "user", "cli-user", "author name")
	pf.StringVar(&opts.room, "room", "general", "room to join")
	pf.IntVar(&opts.attempts, "attempts", defaults.MaxAttempts, "reconnect attempts before giving up")
	pf.DurationVar(&opts.delay, "delay", defaults.Delay, "delay between reconnect attempts")
	pf.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	root.Flags().IntVar(&opts.history, "history", 20, "messages of history to print on start")

	root.AddCommand(newSmokeCmd(&opts))
	return root
}

func newClient(opts options) (*client.Client, error) {
	return client.New(client.Options{
		ServerURL: opts.server,
		Author:    opts.user,
		Policy:    client.Policy{MaxAttempts: opts.attempts, Delay: opts.delay},
	}, log.New(opts.logLevel))
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func chat(parent context.Context, opts options) error {
	ctx, stop := signalContext(parent)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c, err := newClient(opts)
	if err != nil {
		return err
	}
	defer c.Close()

	if opts.history > 0 {
		history, err := c.FetchHistory(ctx, opts.room, opts.history)
		if err != nil {
			fmt.Fprintf(os.Stderr, "history unavailable: %v\n", err)
		}
		for _, msg := range history {
			printMessage(msg)
		}
	}

	if err := c.Connect(ctx); err != nil {
		return err
	}
	if err := c.Join(ctx, opts.room); err != nil {
		return err
	}

	fmt.Printf("Connected to %s as %s in room %s\n", opts.server, opts.user, opts.room)
	fmt.Println("Type messages and press Enter to send. /join <room> switches rooms. Ctrl+C to exit.")

	runErr := make(chan error, 1)
	go func() {
		defer cancel()
		runErr <- c.Run(ctx)
	}()
	go printEvents(c)

	writeLoop(ctx, c)
	cancel()

	if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func printEvents(c *client.Client) {
	messages, errs := c.Messages(), c.Errors()
	for messages != nil || errs != nil {
		select {
		case msg, ok := <-messages:
			if !ok {
				messages = nil
				continue
			}
			printMessage(msg)
		case e, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			fmt.Printf("! %s: %s\n", e.Code, e.Msg)
		}
	}
}

func printMessage(msg proto.MessagePayload) {
	fmt.Printf("[%s] %s: %s\n", msg.Room, msg.Author, msg.Content)
}

func writeLoop(ctx context.Context, c *client.Client) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			var err error
			if room, found := strings.CutPrefix(text, "/join "); found {
				err = c.Join(ctx, strings.TrimSpace(room))
			} else {
				err = c.Send(ctx, text)
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "send error: %v\n", err)
			}
		}
	}
}
