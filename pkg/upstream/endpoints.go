package upstream

import (
	"context"
	"net/url"
)

// API paths on the scraping providers
const (
	instagramProfilePath  = "/userinfo/"
	instagramPostsPath    = "/userposts/"
	instagramPostDLPath   = "/post-dl"
	instagramPostInfoPath = "/post"
	tiktokVideoPath       = "/"
)

// InstagramProfile fetches profile data for a username or user id.
func (c *Client) InstagramProfile(ctx context.Context, username string) (Result, error) {
	query := url.Values{"username_or_id": {username}}
	return c.get(ctx, c.instagramURL(instagramProfilePath)+"?"+query.Encode())
}

// InstagramPosts fetches the recent posts of a username or user id.
func (c *Client) InstagramPosts(ctx context.Context, username string) (Result, error) {
	query := url.Values{"username_or_id": {username}}
	return c.get(ctx, c.instagramURL(instagramPostsPath)+"?"+query.Encode())
}

// InstagramPostDownload fetches download links for a post URL.
func (c *Client) InstagramPostDownload(ctx context.Context, postURL string) (Result, error) {
	query := url.Values{"url": {postURL}}
	return c.get(ctx, c.instagramPostURL(instagramPostDLPath)+"?"+query.Encode())
}

// InstagramPostInfo fetches metadata for a post URL.
func (c *Client) InstagramPostInfo(ctx context.Context, postURL string) (Result, error) {
	query := url.Values{"url": {postURL}}
	return c.get(ctx, c.instagramPostURL(instagramPostInfoPath)+"?"+query.Encode())
}

// TikTokVideo fetches watermark-free video links for a TikTok URL.
func (c *Client) TikTokVideo(ctx context.Context, videoURL string) (Result, error) {
	query := url.Values{
		"url": {videoURL},
		"hd":  {"1"},
	}
	return c.get(ctx, c.tiktokURL(tiktokVideoPath)+"?"+query.Encode())
}
