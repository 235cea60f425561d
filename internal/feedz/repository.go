// ABOUTME: Repository-scoped package operations against the feed.
// ABOUTME: Metadata lookups, listing, streamed uploads and downloads.
package feedz

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

// Package identifies a stored package.
type Package struct {
	PackageID string `json:"packageId"`
	Version   string `json:"version"`
	Extension string `json:"extension"`
	// Hash is the hex sha256 of the package, when the feed reports it.
	Hash string `json:"hash,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// Filename is the canonical local name: {id}.{version}{extension}.
func (p Package) Filename() string {
	return p.PackageID + "." + p.Version + p.Extension
}

// Repository is a client bound to one organisation and repository.
type Repository struct {
	client *Client
	org    string
	repo   string
}

// FeedURL is the package feed address of the repository.
func (r *Repository) FeedURL() string {
	return r.client.endpoints.Feed + r.path()
}

func (r *Repository) path(parts ...string) string {
	segments := []string{url.PathEscape(r.org), url.PathEscape(r.repo)}
	for _, p := range parts {
		segments = append(segments, url.PathEscape(p))
	}
	return strings.Join(segments, "/")
}

func (r *Repository) apiURL(parts ...string) string {
	return r.client.endpoints.API + r.path(parts...)
}

func (r *Repository) feedURL(parts ...string) string {
	return r.client.endpoints.Feed + r.path(parts...)
}

// Get fetches metadata for an exact version.
func (r *Repository) Get(ctx context.Context, id, version string) (*Package, error) {
	var pkg Package
	if err := r.client.getJSON(ctx, r.apiURL("packages", id, version), &pkg); err != nil {
		return nil, fmt.Errorf("get %s %s: %w", id, version, err)
	}
	return &pkg, nil
}

// GetLatest fetches metadata for the latest release version.
func (r *Repository) GetLatest(ctx context.Context, id string) (*Package, error) {
	var pkg Package
	if err := r.client.getJSON(ctx, r.apiURL("packages", id, "latest"), &pkg); err != nil {
		return nil, fmt.Errorf("get latest %s: %w", id, err)
	}
	return &pkg, nil
}

// List returns every package in the repository.
func (r *Repository) List(ctx context.Context) ([]Package, error) {
	var pkgs []Package
	if err := r.client.getJSON(ctx, r.apiURL("packages"), &pkgs); err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}
	return pkgs, nil
}

// ListByID returns every version of one package.
func (r *Repository) ListByID(ctx context.Context, id string) ([]Package, error) {
	var pkgs []Package
	if err := r.client.getJSON(ctx, r.apiURL("packages", id), &pkgs); err != nil {
		return nil, fmt.Errorf("list %s: %w", id, err)
	}
	return pkgs, nil
}

// Upload streams a package to the feed. replace allows overwriting an
// existing package with the same id and version.
func (r *Repository) Upload(ctx context.Context, body io.Reader, filename string, replace bool) error {
	ctx, cancel := r.client.withTimeout(ctx)
	defer cancel()

	target := r.feedURL("packages")
	if replace {
		target += "?replace=true"
	}

	pr, pw := io.Pipe()
	defer func() { _ = pr.Close() }()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filename)
		if err == nil {
			_, err = io.Copy(part, body)
		}
		if err == nil {
			err = mw.Close()
		}
		_ = pw.CloseWithError(err)
	}()

	req, err := r.client.newRequest(ctx, http.MethodPost, target, pr)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := r.client.send(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return nil
}

// Download opens the package content. similarPath names a local package, or
// a directory to search, that may let the transfer be skipped; it never
// changes the bytes returned. The caller must close the stream.
func (r *Repository) Download(ctx context.Context, pkg Package, similarPath string) (io.ReadCloser, error) {
	if local, ok := r.reuseLocal(pkg, similarPath); ok {
		return local, nil
	}

	ctx, cancel := r.client.withTimeout(ctx)
	req, err := r.client.newRequest(ctx, http.MethodGet, r.feedURL("packages", pkg.PackageID, pkg.Version, "download"), nil)
	if err != nil {
		cancel()
		return nil, err
	}

	resp, err := r.client.send(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("download %s: %w", pkg.Filename(), err)
	}
	return &timedBody{ReadCloser: resp.Body, cancel: cancel}, nil
}

// timedBody keeps the request deadline alive until the body is closed.
type timedBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *timedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err != nil && err != io.EOF {
		err = classify(err)
	}
	return n, err
}

func (b *timedBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
