package websocket

import (
	"context"
	"fmt"
)

func (that *Server) handleMove(ctx context.Context, client *Client, payload []byte) error {
	action, err := that.decodeMove(payload)
	if err != nil {
		that.registry.Reject(client)
		return err
	}

	if err = that.registry.Dispatch(ctx, client, action); err != nil {
		return fmt.Errorf("move: %w", err)
	}

	return nil
}

func (that *Server) handlePlace(ctx context.Context, client *Client, payload []byte) error {
	action, err := that.decodePlace(payload)
	if err != nil {
		that.registry.Reject(client)
		return err
	}

	if err = that.registry.Dispatch(ctx, client, action); err != nil {
		return fmt.Errorf("place: %w", err)
	}

	return nil
}
