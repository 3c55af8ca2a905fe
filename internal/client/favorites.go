// ABOUTME: Favorite pets: status check, add, remove, list
// ABOUTME: Removing a favorite that is already gone counts as success

package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// FavoriteStatus reports whether petID is in the viewer's favorites.
func (c *Client) FavoriteStatus(ctx context.Context, petID int64) (bool, error) {
	if petID <= 0 {
		return false, &ValidationError{Field: "petId", Reason: "must be positive"}
	}
	var fav bool
	if err := c.do(ctx, "get favorite status", http.MethodGet, fmt.Sprintf("/favorites/%d/status", petID), nil, nil, &fav); err != nil {
		return false, err
	}
	return fav, nil
}

// AddFavorite adds petID to the viewer's favorites.
func (c *Client) AddFavorite(ctx context.Context, petID int64) error {
	if petID <= 0 {
		return &ValidationError{Field: "petId", Reason: "must be positive"}
	}
	return c.do(ctx, "add favorite", http.MethodPost, fmt.Sprintf("/favorites/%d", petID), nil, struct{}{}, nil)
}

// RemoveFavorite removes petID from the viewer's favorites.
func (c *Client) RemoveFavorite(ctx context.Context, petID int64) error {
	if petID <= 0 {
		return &ValidationError{Field: "petId", Reason: "must be positive"}
	}
	err := c.do(ctx, "remove favorite", http.MethodDelete, fmt.Sprintf("/favorites/%d", petID), nil, nil, nil)
	var srvErr *ServerError
	if errors.As(err, &srvErr) && srvErr.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}

// ListFavorites returns the viewer's favorite pets.
func (c *Client) ListFavorites(ctx context.Context) ([]Pet, error) {
	var pets []Pet
	if err := c.do(ctx, "list favorites", http.MethodGet, "/favorites", nil, nil, &pets); err != nil {
		return nil, err
	}
	return pets, nil
}
