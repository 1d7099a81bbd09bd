package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"schedulink/internal/models"
)

// CreateUser registers a user. A duplicate email is rejected by the server.
func (c *Client) CreateUser(ctx context.Context, in models.NewUser) (*models.User, error) {
	var out models.User
	err := c.do(ctx, call{op: "create_user", method: http.MethodPost, path: "/users", body: in, fallback: msgCreateUser}, &out)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, "users")
	return &out, nil
}

// ListUsers returns all users.
func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	cacheKey := "users"
	var out []models.User

	if c.readCache(ctx, cacheKey, &out) {
		return out, nil
	}

	if err := c.do(ctx, call{op: "list_users", method: http.MethodGet, path: "/users", fallback: msgListUsers}, &out); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey, out)
	return out, nil
}

// GetUser returns a single user.
func (c *Client) GetUser(ctx context.Context, id int64) (*models.User, error) {
	cacheKey := fmt.Sprintf("user:%d", id)
	var out models.User

	if c.readCache(ctx, cacheKey, &out) {
		return &out, nil
	}

	path := fmt.Sprintf("/users/%d", id)
	if err := c.do(ctx, call{op: "get_user", method: http.MethodGet, path: path, fallback: msgGetUser}, &out); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey, out)
	return &out, nil
}

// UserSlots returns slots assigned to a user.
func (c *Client) UserSlots(ctx context.Context, id int64) ([]models.Slot, error) {
	return c.slotList(ctx, "user_slots", fmt.Sprintf("/users/%d/slots", id), fmt.Sprintf("slots:user:%d", id), msgUserSlots)
}

// UserBookings returns slots booked by a user.
func (c *Client) UserBookings(ctx context.Context, id int64) ([]models.Slot, error) {
	return c.slotList(ctx, "user_bookings", fmt.Sprintf("/users/%d/bookings", id), fmt.Sprintf("slots:bookings:%d", id), msgUserBookings)
}
