// Copyright (c) 2026 Lumina Labs. All rights reserved.
// Author: dev@lumina-labs.io

/*
Package resources holds the authenticated API calls that merely consume the
session: search and image generation.

No business logic lives here — these are thin typed wrappers over the shared
transport, which supplies bearer attachment and expiry recovery for free.
*/
package resources

import (
	"context"

	"github.com/lumina-labs/lumina-go/internal/transport"
)

// Client issues authenticated resource calls.
type Client struct {
	transport *transport.Client
}

// NewClient constructs a resource [Client] over the shared transport.
func NewClient(tp *transport.Client) *Client {
	return &Client{transport: tp}
}

// # Search

// SearchResult is one entry of a search response.
type SearchResult struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

type searchResponse struct {
	Results []SearchResult `json:"results"`
}

// Search runs an authenticated query.
//
// POST /search
func (client *Client) Search(ctx context.Context, query string) ([]SearchResult, error) {
	payload := map[string]string{"query": query}

	var response searchResponse
	if err := client.transport.PostJSON(ctx, "/search", payload, &response); err != nil {
		return nil, err
	}
	return response.Results, nil
}

// # Image Generation

// GeneratedImage is the result of an image generation request.
type GeneratedImage struct {
	URL    string `json:"image_url"`
	Prompt string `json:"prompt"`
}

// GenerateImage submits an authenticated generation prompt.
//
// POST /images/generate
func (client *Client) GenerateImage(ctx context.Context, prompt string) (*GeneratedImage, error) {
	payload := map[string]string{"prompt": prompt}

	image := &GeneratedImage{}
	if err := client.transport.PostJSON(ctx, "/images/generate", payload, image); err != nil {
		return nil, err
	}
	return image, nil
}
