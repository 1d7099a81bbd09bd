package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"schedulink/internal/models"
)

// All slot list caches live under "slots" so one prefix invalidates them.
const slotCachePrefix = "slots"

// CreateSlot creates a slot. Empty description and assigned user go out as null.
func (c *Client) CreateSlot(ctx context.Context, in models.NewSlot) (*models.Slot, error) {
	if in.Description != nil && *in.Description == "" {
		in.Description = nil
	}
	if in.UserID != nil && *in.UserID == 0 {
		in.UserID = nil
	}

	var out models.Slot
	err := c.do(ctx, call{op: "create_slot", method: http.MethodPost, path: "/slots", body: in, fallback: msgCreateSlot}, &out)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, slotCachePrefix)
	return &out, nil
}

// ListSlots returns slots matching f.
func (c *Client) ListSlots(ctx context.Context, f models.SlotFilter) ([]models.Slot, error) {
	q := url.Values{}
	if f.Date != "" {
		q.Set("date", f.Date)
	}
	if f.IsBooked != nil {
		q.Set("is_booked", strconv.FormatBool(*f.IsBooked))
	}
	if f.UserID != 0 {
		q.Set("user_id", strconv.FormatInt(f.UserID, 10))
	}

	path := "/slots"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	return c.slotList(ctx, "list_slots", path, slotCachePrefix+":list:"+q.Encode(), msgListSlots)
}

func (c *Client) slotList(ctx context.Context, op, path, cacheKey, fallback string) ([]models.Slot, error) {
	var out []models.Slot
	if c.readCache(ctx, cacheKey, &out) {
		return out, nil
	}
	if err := c.do(ctx, call{op: op, method: http.MethodGet, path: path, fallback: fallback}, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Slot{}
	}
	c.writeCache(ctx, cacheKey, out)
	return out, nil
}

// GetSlot returns a single slot. It always bypasses the cache.
func (c *Client) GetSlot(ctx context.Context, id int64) (*models.Slot, error) {
	var out models.Slot
	path := fmt.Sprintf("/slots/%d", id)
	if err := c.do(ctx, call{op: "get_slot", method: http.MethodGet, path: path, fallback: msgGetSlot}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type bookRequest struct {
	UserID int64 `json:"user_id"`
}

// BookSlot marks the slot as booked by userID.
func (c *Client) BookSlot(ctx context.Context, slotID, userID int64) (*models.Slot, error) {
	var out models.Slot
	path := fmt.Sprintf("/slots/%d/book", slotID)
	err := c.do(ctx, call{op: "book_slot", method: http.MethodPatch, path: path, body: bookRequest{UserID: userID}, fallback: msgBookSlot}, &out)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, slotCachePrefix)
	return &out, nil
}

// CancelSlot clears the booking on a slot.
func (c *Client) CancelSlot(ctx context.Context, slotID int64) (*models.Slot, error) {
	var out models.Slot
	path := fmt.Sprintf("/slots/%d/cancel", slotID)
	err := c.do(ctx, call{op: "cancel_slot", method: http.MethodPatch, path: path, fallback: msgCancelSlot}, &out)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, slotCachePrefix)
	return &out, nil
}

// UpdateSlot applies a partial update.
func (c *Client) UpdateSlot(ctx context.Context, slotID int64, in models.SlotUpdate) (*models.Slot, error) {
	var out models.Slot
	path := fmt.Sprintf("/slots/%d", slotID)
	err := c.do(ctx, call{op: "update_slot", method: http.MethodPut, path: path, body: in, fallback: msgUpdateSlot}, &out)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, slotCachePrefix)
	return &out, nil
}

// DeleteSlot removes a slot.
func (c *Client) DeleteSlot(ctx context.Context, slotID int64) error {
	path := fmt.Sprintf("/slots/%d", slotID)
	if err := c.do(ctx, call{op: "delete_slot", method: http.MethodDelete, path: path, fallback: msgDeleteSlot}, nil); err != nil {
		return err
	}
	c.invalidate(ctx, slotCachePrefix)
	return nil
}
