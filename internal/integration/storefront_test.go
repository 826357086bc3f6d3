package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/carnival/internal/catalog"
	"github.com/oshokin/carnival/internal/config"
	"github.com/oshokin/carnival/internal/digest"
	"github.com/oshokin/carnival/internal/service/commands"
)

const (
	testUser     = "player@example.com"
	testPassword = "hunter2"
	testToken    = "token-42"
	filesPrefix  = "/api/manifests/files/"
	// corruptKey is served with wrong bytes of the right length.
	corruptKey = "corrupt-game/1.0/data/big.pak"
)

// build is one published version of a product.
type build struct {
	version string
	files   map[string]string
}

// storefront serves login, library, manifests and file contents.
type storefront struct {
	*httptest.Server

	// contents maps "<version>/<path>" to file bodies.
	contents map[string][]byte
	// manifests maps manifest names to CSV documents.
	manifests map[string]string
	// chunkDir is the chunk store served under /chunks/.
	chunkDir string
	// downloads counts content requests.
	downloads atomic.Int32
	// corruptDownloads counts requests for corruptKey.
	corruptDownloads atomic.Int32
}

// newStorefront publishes space-game 1.0 and 2.0, a broken-game whose second
// file is missing from the content server and a corrupt-game whose second file
// is always served damaged.
func newStorefront(t *testing.T) *storefront {
	t.Helper()

	sf := &storefront{
		contents:  make(map[string][]byte),
		manifests: make(map[string]string),
		chunkDir:  t.TempDir(),
	}

	sf.publish("space-game", build{version: "1.0", files: map[string]string{
		"bin/game":        "#!/bin/sh\necho 1.0\n",
		"data/levels.pak": strings.Repeat("level-one ", 200),
		"data/legacy.pak": "retired in 2.0",
	}})
	sf.publish("space-game", build{version: "2.0", files: map[string]string{
		"bin/game":        "#!/bin/sh\necho 2.0\n",
		"data/levels.pak": strings.Repeat("level-one ", 200),
		"data/music.ogg":  strings.Repeat("la ", 300),
	}})
	sf.publish("broken-game", build{version: "1.0", files: map[string]string{
		"bin/game":     "#!/bin/sh\n",
		"data/big.pak": "never served",
	}})
	delete(sf.contents, "broken-game/1.0/data/big.pak")
	sf.publish("corrupt-game", build{version: "1.0", files: map[string]string{
		"bin/game":     "#!/bin/sh\n",
		"data/big.pak": "pristine archive",
	}})
	sf.contents[corruptKey] = []byte("damaged archive!")

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", sf.login)
	mux.HandleFunc("GET /api/user_info", sf.userInfo)
	mux.HandleFunc("GET /api/manifests/{name}", func(w http.ResponseWriter, r *http.Request) {
		doc, ok := sf.manifests[r.PathValue("name")]
		if !ok {
			http.NotFound(w, r)
			return
		}

		_, _ = w.Write([]byte(doc))
	})
	mux.HandleFunc("GET "+filesPrefix, func(w http.ResponseWriter, r *http.Request) {
		sf.downloads.Add(1)

		key := strings.TrimPrefix(r.URL.Path, filesPrefix)
		if key == corruptKey {
			sf.corruptDownloads.Add(1)
		}

		body, ok := sf.contents[key]
		if !ok {
			http.NotFound(w, r)
			return
		}

		http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(body))
	})

	mux.Handle("GET /chunks/", http.StripPrefix("/chunks/", http.FileServer(http.Dir(sf.chunkDir))))

	sf.Server = httptest.NewServer(mux)
	t.Cleanup(sf.Close)

	return sf
}

// publish registers the manifest and contents of one build. Entries are listed by path.
func (sf *storefront) publish(slug string, b build) {
	var doc strings.Builder

	doc.WriteString("path,size,digest,source\n")

	verifier := digest.New(digest.SHA256)

	for _, path := range slices.Sorted(maps.Keys(b.files)) {
		body := b.files[path]
		key := fmt.Sprintf("%s/%s/%s", slug, b.version, path)
		sf.contents[key] = []byte(body)

		fmt.Fprintf(&doc, "%s,%d,%s,files/%s\n", path, len(body), verifier.SumBytes([]byte(body)), key)
	}

	sf.manifests[fmt.Sprintf("%s-%s.csv", slug, b.version)] = doc.String()
}

func (sf *storefront) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil || r.PostForm.Get("usre") != testUser || r.PostForm.Get("usrp") != testPassword {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": "wrong credentials"})
		return
	}

	http.SetCookie(w, &http.Cookie{Name: "auth", Value: testToken, Path: "/"})
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "success"})
}

func (sf *storefront) userInfo(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie("auth"); err != nil || cookie.Value != testToken {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "success", "user_found": "false"})
		return
	}

	_, _ = w.Write([]byte(`{
		"status": "success",
		"user_found": "true",
		"_indiegala_user_email": "player@example.com",
		"_indiegala_username": "player",
		"_indiegala_user_id": 42,
		"showcase_content": {"content": {"user_collection": [
			{
				"prod_dev_namespace": "studio",
				"prod_slugged_name": "space-game",
				"id": 7,
				"prod_name": "Space Game",
				"version": [
					{"version": "1.0", "os": "lin", "manifest": "manifests/space-game-1.0.csv", "executable": "bin/game", "enabled": true},
					{"version": "2.0", "os": "lin", "manifest": "manifests/space-game-2.0.csv", "executable": "bin/game", "enabled": true}
				]
			},
			{
				"prod_dev_namespace": "studio",
				"prod_slugged_name": "chunked-game",
				"id": 9,
				"prod_name": "Chunked Game",
				"version": [
					{"version": "1.0", "os": "lin", "manifest": "manifests/chunked-game-1.0.yml", "enabled": true}
				]
			},
			{
				"prod_dev_namespace": "studio",
				"prod_slugged_name": "corrupt-game",
				"id": 10,
				"prod_name": "Corrupt Game",
				"version": [
					{"version": "1.0", "os": "lin", "manifest": "manifests/corrupt-game-1.0.csv", "enabled": true}
				]
			},
			{
				"prod_dev_namespace": "studio",
				"prod_slugged_name": "broken-game",
				"id": 8,
				"prod_name": "Broken Game",
				"version": [
					{"version": "1.0", "os": "lin", "manifest": "manifests/broken-game-1.0.csv", "enabled": true}
				]
			}
		]}}
	}`))
}

// env is a configuration directory wired to a storefront.
type env struct {
	sf      *storefront
	dir     string
	games   string
	lastOut *bytes.Buffer
}

func newEnv(t *testing.T) *env {
	t.Helper()

	e := &env{
		sf:    newStorefront(t),
		dir:   t.TempDir(),
		games: t.TempDir(),
	}

	cfg := config.Default()
	cfg.APIURL = e.sf.URL + "/api"
	cfg.ContentURL = e.sf.URL + "/chunks"
	cfg.BaseInstallPath = e.games
	cfg.MaxRetries = 1
	cfg.RetryInterval = time.Millisecond
	cfg.Workers = 2

	require.NoError(t, config.Save(filepath.Join(e.dir, config.DefaultConfigFilename), cfg))

	return e
}

// app wires a fresh App the way one CLI invocation would.
func (e *env) app(t *testing.T) *commands.App {
	t.Helper()

	e.lastOut = new(bytes.Buffer)

	app, err := commands.New(context.Background(), commands.Options{ConfigDir: e.dir, Stdout: e.lastOut})
	require.NoError(t, err)

	return app
}

// output returns what the last App printed.
func (e *env) output() string {
	return e.lastOut.String()
}

// login signs in with the test account.
func (e *env) login(t *testing.T) {
	t.Helper()

	require.NoError(t, e.app(t).Login(context.Background(), catalog.Credentials{Username: testUser, Password: testPassword}))
}
