// ABOUTME: Tests for the push, download and list handlers.
// ABOUTME: Runs each handler against an httptest feed and a recording factory.
package commands

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedz/cli/internal/feedz"
	"github.com/feedz/cli/internal/history"
	"github.com/feedz/cli/internal/options"
)

type fakeFeed struct {
	t        *testing.T
	server   *httptest.Server
	factory  *recordingFactory
	mu       sync.Mutex
	requests []string
	uploads  []string
	rejected map[string]int
	packages map[string]feedz.Package
	content  map[string]string
	// timeoutAtUpload is the client timeout observed when an upload arrives.
	timeoutAtUpload time.Duration
}

type recordingFactory struct {
	inner   *feedz.Factory
	mu      sync.Mutex
	created []*feedz.Client
	regions []string
}

func (f *recordingFactory) Create(credential, region string) *feedz.Client {
	c := f.inner.Create(credential, region)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, c)
	f.regions = append(f.regions, region)
	return c
}

func (f *recordingFactory) last() *feedz.Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.created) == 0 {
		return nil
	}
	return f.created[len(f.created)-1]
}

func newFakeFeed(t *testing.T) *fakeFeed {
	t.Helper()
	feed := &fakeFeed{
		t:        t,
		rejected: map[string]int{},
		packages: map[string]feedz.Package{},
		content:  map[string]string{},
	}
	feed.server = httptest.NewServer(http.HandlerFunc(feed.serve))
	t.Cleanup(feed.server.Close)
	feed.factory = &recordingFactory{inner: &feedz.Factory{
		Overrides: feedz.Endpoints{API: feed.server.URL + "/api/", Feed: feed.server.URL + "/feed/"},
	}}
	return feed
}

func (f *fakeFeed) addPackage(pkg feedz.Package, content string) {
	sum := sha256.Sum256([]byte(content))
	pkg.Hash = hex.EncodeToString(sum[:])
	pkg.Size = int64(len(content))
	f.packages[pkg.PackageID+"/"+pkg.Version] = pkg
	f.content[pkg.PackageID+"/"+pkg.Version] = content
}

func (f *fakeFeed) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/feed/acme/main/packages":
		f.serveUpload(w, r)
	case parts[0] == "api" && len(parts) == 4:
		var all []feedz.Package
		for _, p := range f.packages {
			all = append(all, p)
		}
		writeJSON(w, all)
	case parts[0] == "api" && len(parts) == 5:
		var matching []feedz.Package
		for _, p := range f.packages {
			if p.PackageID == parts[4] {
				matching = append(matching, p)
			}
		}
		writeJSON(w, matching)
	case parts[0] == "api" && len(parts) == 6:
		id, version := parts[4], parts[5]
		if version == "latest" {
			var latest *feedz.Package
			for _, p := range f.packages {
				if p.PackageID == id && (latest == nil || p.Version > latest.Version) {
					p := p
					latest = &p
				}
			}
			if latest == nil {
				http.Error(w, "package not found", http.StatusNotFound)
				return
			}
			writeJSON(w, latest)
			return
		}
		pkg, ok := f.packages[id+"/"+version]
		if !ok {
			http.Error(w, "package not found", http.StatusNotFound)
			return
		}
		writeJSON(w, pkg)
	case parts[0] == "feed" && len(parts) == 7 && parts[6] == "download":
		body, ok := f.content[parts[4]+"/"+parts[5]]
		if !ok {
			http.Error(w, "package not found", http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, body)
	default:
		http.Error(w, "unexpected request", http.StatusTeapot)
	}
}

func (f *fakeFeed) serveUpload(w http.ResponseWriter, r *http.Request) {
	if c := f.factory.last(); c != nil {
		f.mu.Lock()
		f.timeoutAtUpload = c.Timeout()
		f.mu.Unlock()
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	_, _ = io.Copy(io.Discard, file)
	_ = file.Close()

	if status, ok := f.rejected[header.Filename]; ok {
		http.Error(w, "rejected "+header.Filename, status)
		return
	}
	f.mu.Lock()
	f.uploads = append(f.uploads, header.Filename)
	f.mu.Unlock()
	w.WriteHeader(http.StatusCreated)
}

func (f *fakeFeed) downloadRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if strings.HasSuffix(r, "/download") {
			n++
		}
	}
	return n
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

type memoryJournal struct {
	entries []history.Entry
}

func (j *memoryJournal) Record(_ context.Context, e history.Entry) error {
	j.entries = append(j.entries, e)
	return nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPushMissingFileContinuesWithRemaining(t *testing.T) {
	feed := newFakeFeed(t)
	dir := t.TempDir()
	missing := filepath.Join(dir, "A.nupkg")
	present := writeFile(t, dir, "B.nupkg", "bbb")

	logger, logs := newLogger()
	journal := &memoryJournal{}
	code := NewPush(feed.factory, logger, journal).Handle(context.Background(), options.Push{
		Organisation: "acme",
		Repository:   "main",
		PAT:          "T-1",
		Files:        []string{missing, present},
		Timeout:      options.DefaultTimeout,
	})

	assert.Equal(t, ExitFailure, code)
	assert.Equal(t, []string{"B.nupkg"}, feed.uploads)
	assert.Equal(t, 1, strings.Count(logs.String(), "The file does not exist"))
	require.Len(t, journal.entries, 2)
	assert.False(t, journal.entries[0].Succeeded)
	assert.True(t, journal.entries[1].Succeeded)
}

func TestPushAllFilesSucceed(t *testing.T) {
	feed := newFakeFeed(t)
	dir := t.TempDir()
	a := writeFile(t, dir, "a.1.0.0.nupkg", "a")
	b := writeFile(t, dir, "b.1.0.0.nupkg", "b")

	logger, logs := newLogger()
	code := NewPush(feed.factory, logger, nil).Handle(context.Background(), options.Push{
		Organisation: "acme",
		Repository:   "main",
		PAT:          "T-1",
		Files:        []string{a, b},
		Timeout:      options.DefaultTimeout,
	})

	assert.Equal(t, ExitOK, code)
	assert.Equal(t, []string{"a.1.0.0.nupkg", "b.1.0.0.nupkg"}, feed.uploads)
	assert.Contains(t, logs.String(), feed.server.URL+"/feed/acme/main/packages")
}

func TestPushRejectedFileDoesNotStopBatch(t *testing.T) {
	feed := newFakeFeed(t)
	feed.rejected["a.nupkg"] = http.StatusConflict
	dir := t.TempDir()
	a := writeFile(t, dir, "a.nupkg", "a")
	b := writeFile(t, dir, "b.nupkg", "b")

	logger, logs := newLogger()
	code := NewPush(feed.factory, logger, nil).Handle(context.Background(), options.Push{
		Organisation: "acme",
		Repository:   "main",
		PAT:          "T-1",
		Files:        []string{a, b},
		Timeout:      options.DefaultTimeout,
	})

	assert.Equal(t, ExitFailure, code)
	assert.Equal(t, []string{"b.nupkg"}, feed.uploads)
	assert.Contains(t, logs.String(), "Error pushing")
	assert.Contains(t, logs.String(), "rejected a.nupkg")
}

func TestPushAppliesTimeoutBeforeTransfer(t *testing.T) {
	feed := newFakeFeed(t)
	file := writeFile(t, t.TempDir(), "p.nupkg", "p")

	logger, _ := newLogger()
	code := NewPush(feed.factory, logger, nil).Handle(context.Background(), options.Push{
		Organisation: "acme",
		Repository:   "main",
		PAT:          "T-1",
		Files:        []string{file},
		Timeout:      3600 * time.Second,
	})

	require.Equal(t, ExitOK, code)
	assert.Equal(t, 3600*time.Second, feed.timeoutAtUpload)
}

func TestPushPassesRegionToFactory(t *testing.T) {
	feed := newFakeFeed(t)
	file := writeFile(t, t.TempDir(), "p.nupkg", "p")

	logger, _ := newLogger()
	NewPush(feed.factory, logger, nil).Handle(context.Background(), options.Push{
		Organisation: "acme",
		Repository:   "main",
		PAT:          "T-1",
		Files:        []string{file},
		Timeout:      options.DefaultTimeout,
		Region:       options.Some("xyz-east"),
	})

	assert.Equal(t, []string{"xyz-east"}, feed.factory.regions)
}

func TestPushTimeoutLogsHint(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	factory := &recordingFactory{inner: &feedz.Factory{
		Overrides: feedz.Endpoints{API: server.URL + "/api/", Feed: server.URL + "/feed/"},
	}}
	file := writeFile(t, t.TempDir(), "slow.nupkg", "slow")

	logger, logs := newLogger()
	code := NewPush(factory, logger, nil).Handle(context.Background(), options.Push{
		Organisation: "acme",
		Repository:   "main",
		PAT:          "T-1",
		Files:        []string{file},
		Timeout:      50 * time.Millisecond,
	})

	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, logs.String(), "specify the --timeout parameter")
}

func TestDownloadSpecificVersion(t *testing.T) {
	feed := newFakeFeed(t)
	feed.addPackage(feedz.Package{PackageID: "my-package", Version: "1.0.0", Extension: ".nupkg"}, "v1 content")
	feed.addPackage(feedz.Package{PackageID: "my-package", Version: "2.0.0", Extension: ".nupkg"}, "v2 content")
	workDir := t.TempDir()

	logger, _ := newLogger()
	journal := &memoryJournal{}
	code := NewDownload(feed.factory, logger, journal, workDir).Handle(context.Background(), options.Download{
		Organisation: "acme",
		Repository:   "main",
		PackageID:    "my-package",
		Version:      options.Some("1.0.0"),
		Timeout:      options.DefaultTimeout,
	})

	require.Equal(t, ExitOK, code)
	data, err := os.ReadFile(filepath.Join(workDir, "my-package.1.0.0.nupkg"))
	require.NoError(t, err)
	assert.Equal(t, "v1 content", string(data))
	assert.Contains(t, feed.requests, "GET /api/acme/main/packages/my-package/1.0.0")
	assert.NotContains(t, feed.requests, "GET /api/acme/main/packages/my-package/latest")
	require.Len(t, journal.entries, 1)
	assert.Equal(t, "1.0.0", journal.entries[0].Version)
	assert.True(t, journal.entries[0].Succeeded)
}

func TestDownloadLatestWhenVersionAbsent(t *testing.T) {
	feed := newFakeFeed(t)
	feed.addPackage(feedz.Package{PackageID: "my-package", Version: "1.0.0", Extension: ".nupkg"}, "v1")
	feed.addPackage(feedz.Package{PackageID: "my-package", Version: "2.0.0", Extension: ".nupkg"}, "v2")
	workDir := t.TempDir()

	logger, _ := newLogger()
	code := NewDownload(feed.factory, logger, nil, workDir).Handle(context.Background(), options.Download{
		Organisation: "acme",
		Repository:   "main",
		PackageID:    "my-package",
		Timeout:      options.DefaultTimeout,
	})

	require.Equal(t, ExitOK, code)
	assert.Contains(t, feed.requests, "GET /api/acme/main/packages/my-package/latest")
	assert.NotContains(t, feed.requests, "GET /api/acme/main/packages/my-package/1.0.0")
	assert.NotContains(t, feed.requests, "GET /api/acme/main/packages/my-package/2.0.0")
	assert.FileExists(t, filepath.Join(workDir, "my-package.2.0.0.nupkg"))
}

func TestDownloadRefusesExistingDestination(t *testing.T) {
	feed := newFakeFeed(t)
	feed.addPackage(feedz.Package{PackageID: "my-package", Version: "1.0.0", Extension: ".nupkg"}, "remote")
	workDir := t.TempDir()
	existing := writeFile(t, workDir, "my-package.1.0.0.nupkg", "local")

	logger, logs := newLogger()
	code := NewDownload(feed.factory, logger, nil, workDir).Handle(context.Background(), options.Download{
		Organisation: "acme",
		Repository:   "main",
		PackageID:    "my-package",
		Version:      options.Some("1.0.0"),
		Timeout:      options.DefaultTimeout,
	})

	assert.Equal(t, ExitFailure, code)
	assert.Zero(t, feed.downloadRequests())
	assert.Contains(t, logs.String(), "already exists")
	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "local", string(data))
}

func TestDownloadUnknownPackage(t *testing.T) {
	feed := newFakeFeed(t)
	workDir := t.TempDir()

	logger, logs := newLogger()
	code := NewDownload(feed.factory, logger, nil, workDir).Handle(context.Background(), options.Download{
		Organisation: "acme",
		Repository:   "main",
		PackageID:    "ghost",
		Version:      options.Some("9.9.9"),
		Timeout:      options.DefaultTimeout,
	})

	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, logs.String(), "Error downloading package")
	entries, err := os.ReadDir(workDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDownloadReusesSimilarPackage(t *testing.T) {
	feed := newFakeFeed(t)
	content := "identical bytes"
	feed.addPackage(feedz.Package{PackageID: "my-package", Version: "1.0.0", Extension: ".nupkg"}, content)
	similar := writeFile(t, t.TempDir(), "my-package.0.9.0.nupkg", content)
	workDir := t.TempDir()

	logger, _ := newLogger()
	code := NewDownload(feed.factory, logger, nil, workDir).Handle(context.Background(), options.Download{
		Organisation:       "acme",
		Repository:         "main",
		PackageID:          "my-package",
		Version:            options.Some("1.0.0"),
		SimilarPackagePath: options.Some(similar),
		Timeout:            options.DefaultTimeout,
	})

	require.Equal(t, ExitOK, code)
	assert.Zero(t, feed.downloadRequests())
	data, err := os.ReadFile(filepath.Join(workDir, "my-package.1.0.0.nupkg"))
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestDownloadAppliesTimeout(t *testing.T) {
	feed := newFakeFeed(t)
	feed.addPackage(feedz.Package{PackageID: "p", Version: "1.0.0", Extension: ".nupkg"}, "p")

	logger, _ := newLogger()
	NewDownload(feed.factory, logger, nil, t.TempDir()).Handle(context.Background(), options.Download{
		Organisation: "acme",
		Repository:   "main",
		PackageID:    "p",
		Timeout:      3600 * time.Second,
	})

	require.NotNil(t, feed.factory.last())
	assert.Equal(t, 3600*time.Second, feed.factory.last().Timeout())
}

func TestDownloadTimeoutLogsHint(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/acme/main/packages/slow/1.0.0":
			writeJSON(w, feedz.Package{PackageID: "slow", Version: "1.0.0", Extension: ".nupkg"})
		case "/feed/acme/main/packages/slow/1.0.0/download":
			w.Header().Set("Content-Length", "1048576")
			_, _ = io.WriteString(w, "partial content")
			w.(http.Flusher).Flush()
			<-release
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	factory := &recordingFactory{inner: &feedz.Factory{
		Overrides: feedz.Endpoints{API: server.URL + "/api/", Feed: server.URL + "/feed/"},
	}}
	workDir := t.TempDir()

	logger, logs := newLogger()
	code := NewDownload(factory, logger, nil, workDir).Handle(context.Background(), options.Download{
		Organisation: "acme",
		Repository:   "main",
		PackageID:    "slow",
		Version:      options.Some("1.0.0"),
		Timeout:      200 * time.Millisecond,
	})

	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, logs.String(), "The download time limit was exceeded, specify the --timeout parameter")
	assert.NoFileExists(t, filepath.Join(workDir, "slow.1.0.0.nupkg"))
}

func TestWriteNewRemovesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.nupkg")
	err := writeNew(path, io.MultiReader(strings.NewReader("half"), failingReader{}))
	require.Error(t, err)
	assert.NoFileExists(t, path)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestListAllPackages(t *testing.T) {
	feed := newFakeFeed(t)
	feed.addPackage(feedz.Package{PackageID: "a", Version: "1.0.0", Extension: ".nupkg"}, "")

	logger, _ := newLogger()
	var out bytes.Buffer
	code := NewList(feed.factory, logger, nil, &out).Handle(context.Background(), options.List{
		Organisation: "acme",
		Repository:   "main",
	})

	require.Equal(t, ExitOK, code)
	assert.Equal(t, "a   1.0.0   .nupkg\n", out.String())
	assert.Contains(t, feed.requests, "GET /api/acme/main/packages")
}

func TestListAppliesDefaultTimeout(t *testing.T) {
	feed := newFakeFeed(t)

	logger, _ := newLogger()
	code := NewList(feed.factory, logger, nil, io.Discard).Handle(context.Background(), options.List{
		Organisation: "acme",
		Repository:   "main",
	})

	require.Equal(t, ExitOK, code)
	require.NotNil(t, feed.factory.last())
	assert.Equal(t, options.DefaultTimeout, feed.factory.last().Timeout())
}

func TestListByPackageID(t *testing.T) {
	feed := newFakeFeed(t)
	feed.addPackage(feedz.Package{PackageID: "a", Version: "1.0.0", Extension: ".nupkg"}, "")
	feed.addPackage(feedz.Package{PackageID: "b", Version: "3.0.0", Extension: ".zip"}, "")

	logger, _ := newLogger()
	var out bytes.Buffer
	code := NewList(feed.factory, logger, nil, &out).Handle(context.Background(), options.List{
		Organisation: "acme",
		Repository:   "main",
		PackageID:    options.Some("b"),
	})

	require.Equal(t, ExitOK, code)
	assert.Equal(t, "b   3.0.0   .zip\n", out.String())
	assert.Contains(t, feed.requests, "GET /api/acme/main/packages/b")
}

func TestListFailureExitsNonZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)
	factory := &feedz.Factory{Overrides: feedz.Endpoints{API: server.URL + "/api/", Feed: server.URL + "/feed/"}}

	logger, logs := newLogger()
	code := NewList(factory, logger, nil, io.Discard).Handle(context.Background(), options.List{
		Organisation: "acme",
		Repository:   "main",
	})

	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, logs.String(), "Error listing packages")
}
