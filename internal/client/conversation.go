package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"supportd/internal/frame"
	"supportd/internal/protocol"
)

// DemoScript is the customer conversation played by --demo.
var DemoScript = []string{
	"Hi, I need help in order status",
	"I want to get refund soon",
	"Can you help me with product info",
	"Hi, I need help in order status",
	"I want to get refund soon",
	"Can you help me with product info",
	"exit",
}

// DemoReader returns DemoScript as newline-separated input.
func DemoReader() io.Reader {
	return strings.NewReader(strings.Join(DemoScript, "\n") + "\n")
}

// Conversation prints a transcript while replaying lines through a
// Client:
//
//	Server says: <welcome>
//	From client: <line>
//	From server: <reply>
type Conversation struct {
	Client *Client
	Out    io.Writer
	Pause  time.Duration // delay after each reply
	Prompt string        // printed before reading each line, for terminals
}

// Run sends one request per non-blank input line.  It stops after a
// sentinel; if input ends first it sends "exit" itself so the server
// sees an orderly close.
func (cv *Conversation) Run(ctx context.Context, in io.Reader) error {
	fmt.Fprintf(cv.Out, "Server says: %s\n", cv.Client.Welcome())

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 4096), frame.DefaultMaxFrameSize+1)

	for {
		if cv.Prompt != "" {
			fmt.Fprint(cv.Out, cv.Prompt)
		}
		if !sc.Scan() {
			break
		}
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		fmt.Fprintf(cv.Out, "From client: %s\n", line)
		reply, err := cv.Client.Send(ctx, line)
		if err != nil {
			return err
		}
		if protocol.IsSentinel(line) {
			return nil
		}
		fmt.Fprintf(cv.Out, "From server: %s\n", reply)

		if err := cv.pause(ctx); err != nil {
			cv.Client.Close() //nolint:errcheck
			return err
		}
	}
	if err := sc.Err(); err != nil {
		cv.Client.Close() //nolint:errcheck
		return fmt.Errorf("reading input: %w", err)
	}

	_, err := cv.Client.Send(ctx, protocol.Sentinels[0])
	return err
}

func (cv *Conversation) pause(ctx context.Context) error {
	if cv.Pause <= 0 {
		return nil
	}
	t := time.NewTimer(cv.Pause)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
