package main

import (
	"context"
	"fmt"

	"github.com/danmuck/cqi/internal/protocol/session"
)

// login dials the configured server and sends CTRL_CONNECT. A refused login
// closes the connection and is returned as an error.
func login(ctx context.Context, opts *options) (*session.Client, error) {
	client, err := session.Connect(ctx, opts.cfg.Session())
	if err != nil {
		return nil, err
	}
	res, err := client.Login(opts.cfg.User, opts.cfg.Password)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if !res.Accepted() {
		_ = client.Close()
		return nil, fmt.Errorf("login as %q: %w", opts.cfg.User, refusal(res))
	}
	return client, nil
}

// logout sends CTRL_BYE unless the connection already failed, then closes.
func logout(client *session.Client) error {
	defer client.Close()
	if client.Conn().Err() != nil {
		return nil
	}
	_, err := client.Logout()
	return err
}

// refusal is the error for a login that did not return CONNECT_OK.
func refusal(res session.Result) error {
	if err := res.Err(); err != nil {
		return err
	}
	return fmt.Errorf("unexpected response %s", res.Response)
}
