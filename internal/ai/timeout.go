package ai

import (
	"context"
	"fmt"
	"time"
)

type chatOutcome struct {
	resp *Response
	err  error
}

// ChatWithTimeout calls client.Chat and gives up after timeout even when the
// client ignores context cancellation. A panicking client is reported as an error.
func ChatWithTimeout(ctx context.Context, client ChatClient, messages []Message, opts Options, timeout time.Duration) (*Response, error) {
	if client == nil {
		return nil, fmt.Errorf("no chat client configured")
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan chatOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- chatOutcome{err: fmt.Errorf("chat client panic: %v", r)}
			}
		}()
		resp, err := client.Chat(reqCtx, messages, opts)
		done <- chatOutcome{resp: resp, err: err}
	}()

	select {
	case out := <-done:
		return out.resp, out.err
	case <-reqCtx.Done():
		return nil, reqCtx.Err()
	}
}
