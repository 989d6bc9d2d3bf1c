//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/medialog/apiserver/config"
	"github.com/medialog/apiserver/internal/db"
	"github.com/medialog/apiserver/internal/server"
	"github.com/medialog/apiserver/types"
)

const (
	serverPort = 18080
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown()
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown()
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestFavoriteLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	username := fmt.Sprintf("alice_%d", time.Now().UnixNano())

	status, body := request(t, http.MethodPost, baseURL+"/api/auth/register", "",
		`{"username":"`+username+`","password":"pw1"}`)
	if status != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", status, body)
	}

	status, body = request(t, http.MethodPost, baseURL+"/api/auth/login", "",
		`{"username":"`+username+`","password":"pw1"}`)
	if status != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", status, body)
	}
	var auth struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal([]byte(body), &auth); err != nil || auth.Token == "" {
		t.Fatalf("login: failed to extract token: %v (%s)", err, body)
	}
	token := auth.Token

	status, body = request(t, http.MethodPost, baseURL+"/api/favorites", token,
		`{"title":"Dune","kind":"book","external_id":"b1"}`)
	if status != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", status, body)
	}
	var created types.FavoriteItem
	if err := json.Unmarshal([]byte(body), &created); err != nil {
		t.Fatalf("create: failed to decode: %v", err)
	}
	if created.Status != types.StatusPlanToWatch {
		t.Fatalf("create: expected default status, got %q", created.Status)
	}

	status, body = request(t, http.MethodPost, baseURL+"/api/favorites", token,
		`{"title":"Dune","kind":"book","external_id":"b1"}`)
	if status != http.StatusOK {
		t.Fatalf("duplicate create: expected 200, got %d: %s", status, body)
	}
	var dup types.FavoriteItem
	if err := json.Unmarshal([]byte(body), &dup); err != nil {
		t.Fatalf("duplicate create: failed to decode: %v", err)
	}
	if dup.ID != created.ID {
		t.Fatalf("duplicate create: expected id %d back, got %d", created.ID, dup.ID)
	}

	status, body = request(t, http.MethodPut,
		fmt.Sprintf("%s/api/favorites/%d", baseURL, created.ID), token,
		`{"rating":4.5}`)
	if status != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", status, body)
	}
	var updated types.FavoriteItem
	if err := json.Unmarshal([]byte(body), &updated); err != nil {
		t.Fatalf("update: failed to decode: %v", err)
	}
	if updated.Rating == nil || *updated.Rating != 4.5 {
		t.Fatalf("update: expected rating 4.5, got %v", updated.Rating)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Fatalf("update: expected updated_at to advance")
	}

	status, body = request(t, http.MethodDelete,
		fmt.Sprintf("%s/api/favorites/%d", baseURL, created.ID), token, "")
	if status != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d: %s", status, body)
	}

	status, body = request(t, http.MethodGet, baseURL+"/api/favorites", token, "")
	if status != http.StatusOK {
		t.Fatalf("list: expected 200, got %d: %s", status, body)
	}
	var items []types.FavoriteItem
	if err := json.Unmarshal([]byte(body), &items); err != nil {
		t.Fatalf("list: failed to decode: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("list: expected empty sequence after delete, got %d items", len(items))
	}
}

func TestFavoritesAreOwnerScoped(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	suffix := time.Now().UnixNano()

	aliceToken := registerUser(t, baseURL, fmt.Sprintf("alice_%d", suffix))
	bobToken := registerUser(t, baseURL, fmt.Sprintf("bob_%d", suffix))

	status, body := request(t, http.MethodPost, baseURL+"/api/favorites", aliceToken,
		`{"title":"Inception","kind":"movie","external_id":"m1"}`)
	if status != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", status, body)
	}
	var created types.FavoriteItem
	if err := json.Unmarshal([]byte(body), &created); err != nil {
		t.Fatalf("create: failed to decode: %v", err)
	}

	status, _ = request(t, http.MethodGet, baseURL+"/api/favorites", bobToken, "")
	if status != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", status)
	}

	status, _ = request(t, http.MethodDelete,
		fmt.Sprintf("%s/api/favorites/%d", baseURL, created.ID), bobToken, "")
	if status != http.StatusNotFound {
		t.Fatalf("cross-user delete: expected 404, got %d", status)
	}

	status, _ = request(t, http.MethodPost, baseURL+"/api/favorites", "",
		`{"title":"Sneaky","kind":"movie"}`)
	if status != http.StatusUnauthorized {
		t.Fatalf("unauthenticated create: expected 401, got %d", status)
	}
}

func registerUser(t *testing.T, baseURL, username string) string {
	t.Helper()
	status, body := request(t, http.MethodPost, baseURL+"/api/auth/register", "",
		`{"username":"`+username+`","password":"pw1"}`)
	if status != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d: %s", username, status, body)
	}
	var auth struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal([]byte(body), &auth); err != nil || auth.Token == "" {
		t.Fatalf("register %s: failed to extract token: %v", username, err)
	}
	return auth.Token
}

func request(t *testing.T, method, url, token, body string) (int, string) {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	return resp.StatusCode, buf.String()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found above %s", dir)
		}
		dir = parent
	}
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	cmd := exec.CommandContext(ctx, "docker", append([]string{"compose"}, args...)...)
	cmd.Dir = root
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func waitForPostgres(ctx context.Context) error {
	cfg := testConfig()
	dsn := db.PostgresURL(cfg)

	for {
		conn, err := sql.Open("postgres", dsn)
		if err == nil {
			pingErr := conn.PingContext(ctx)
			_ = conn.Close()
			if pingErr == nil {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

func runMigrations(root string) error {
	cfg := testConfig()
	dsn := db.PostgresURL(cfg)

	migrationsURL := "file://" + filepath.Join(root, "internal", "db", "migrations")
	migrator, err := migrate.New(migrationsURL, dsn)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func startServer() (*server.Server, error) {
	os.Setenv("JWT_SECRET", "e2e-test-secret")

	cfg := testConfig()
	srv, err := server.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()
	return srv, nil
}

func waitForHealth(ctx context.Context, url string) error {
	for {
		resp, err := http.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func testConfig() config.Config {
	cfg := config.LoadConfig()
	cfg.ServerPort = serverPort
	return cfg
}
