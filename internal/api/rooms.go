package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/atria-live/presence/internal/model"
)

// DefaultPaginationTimeout bounds a full roster walk when the caller's
// context carries no deadline.
const DefaultPaginationTimeout = 2 * time.Minute

// rosterPageSize is the maximum page size accepted by the roster endpoint.
const rosterPageSize = 500

// GetRoom fetches a single room's metadata.
func (c *Client) GetRoom(ctx context.Context, roomID string) (*APIRoom, error) {
	var resp RoomResponse
	if err := c.get(ctx, "/rooms/"+roomID, nil, &resp); err != nil {
		return nil, fmt.Errorf("get room %s: %w", roomID, err)
	}
	return &resp.Room, nil
}

// GetRoomUsers fetches one page of a room's current occupants.
func (c *Client) GetRoomUsers(ctx context.Context, roomID string, opts GetRoomUsersOptions) (*RoomUsersResponse, error) {
	query := url.Values{}

	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		query.Set("cursor", opts.Cursor)
	}

	var resp RoomUsersResponse
	if err := c.get(ctx, "/rooms/"+roomID+"/users", query, &resp); err != nil {
		return nil, fmt.Errorf("get room users %s: %w", roomID, err)
	}

	return &resp, nil
}

// GetAllRoomUsers fetches the full roster by paginating through results.
// Uses DefaultPaginationTimeout if the context has no deadline.
func (c *Client) GetAllRoomUsers(ctx context.Context, roomID string) ([]model.User, error) {
	// Apply default timeout if context has no deadline.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultPaginationTimeout)
		defer cancel()
	}

	var all []model.User
	opts := GetRoomUsersOptions{Limit: rosterPageSize}

	for {
		resp, err := c.GetRoomUsers(ctx, roomID, opts)
		if err != nil {
			return nil, err
		}

		for _, u := range resp.Users {
			all = append(all, ToUser(u))
		}

		if resp.Cursor == "" {
			break
		}
		opts.Cursor = resp.Cursor
	}

	return all, nil
}

// RoomUsersLoader returns a roster loader bound to one room, in the shape
// the cache backends consume.
func (c *Client) RoomUsersLoader(roomID string) func(context.Context) ([]model.User, error) {
	return func(ctx context.Context) ([]model.User, error) {
		return c.GetAllRoomUsers(ctx, roomID)
	}
}
