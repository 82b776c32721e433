//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/resourcehub/apiserver/config"
	"github.com/resourcehub/apiserver/internal/db"
	"github.com/resourcehub/apiserver/internal/server"
)

const serverPort = 18080

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

func TestResourceLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)

	token, err := login(t, baseURL, "admin", "admin", "resources:read resources:write")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	created, err := createResource(t, baseURL, token, `{"name": "e2e widget", "data": {"color": "red"}}`)
	if err != nil {
		t.Fatalf("create resource: %v", err)
	}
	if created.Name != "e2e widget" {
		t.Fatalf("unexpected resource name: %q", created.Name)
	}
	if created.ID == "" {
		t.Fatalf("expected resource id to be set")
	}

	updated, err := patchResource(t, baseURL, token, created.ID, `{"name": "e2e widget v2"}`)
	if err != nil {
		t.Fatalf("update resource: %v", err)
	}
	if updated.Name != "e2e widget v2" {
		t.Fatalf("unexpected updated name: %q", updated.Name)
	}

	fetched, err := getResource(t, baseURL, token, created.ID)
	if err != nil {
		t.Fatalf("get resource: %v", err)
	}
	if fetched.ID != created.ID {
		t.Fatalf("unexpected resource id: %s", fetched.ID)
	}

	if err := deleteResource(t, baseURL, token, created.ID); err != nil {
		t.Fatalf("delete resource: %v", err)
	}

	if err := expectResourceNotFound(t, baseURL, token, created.ID); err != nil {
		t.Fatalf("expected deleted resource to be missing: %v", err)
	}
}

func TestScopeDenied(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)

	token, err := login(t, baseURL, "admin", "admin", "resources:read")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/v1/resources", strings.NewReader(`{"name": "nope"}`))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for read-only token, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("WWW-Authenticate"); got != `Bearer scope="resources:write"` {
		t.Fatalf("unexpected challenge: %q", got)
	}
}

type resourceResponse struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Data map[string]any `json:"data"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func login(t *testing.T, baseURL, username, password, scope string) (string, error) {
	t.Helper()

	form := url.Values{
		"username": {username},
		"password": {password},
		"scope":    {scope},
	}

	resp, err := http.PostForm(baseURL+"/api/v1/login/token", form)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("login status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("missing token in login response")
	}
	return parsed.AccessToken, nil
}

func createResource(t *testing.T, baseURL, token, body string) (resourceResponse, error) {
	t.Helper()
	return doResource(t, http.MethodPost, baseURL+"/api/v1/resources", token, body, http.StatusCreated)
}

func patchResource(t *testing.T, baseURL, token, id, body string) (resourceResponse, error) {
	t.Helper()
	return doResource(t, http.MethodPatch, baseURL+"/api/v1/resources/"+id, token, body, http.StatusOK)
}

func getResource(t *testing.T, baseURL, token, id string) (resourceResponse, error) {
	t.Helper()
	return doResource(t, http.MethodGet, baseURL+"/api/v1/resources/"+id, token, "", http.StatusOK)
}

func doResource(t *testing.T, method, url, token, body string, wantStatus int) (resourceResponse, error) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return resourceResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return resourceResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		msg, _ := io.ReadAll(resp.Body)
		return resourceResponse{}, fmt.Errorf("%s status %d: %s", method, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed resourceResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return resourceResponse{}, err
	}
	return parsed, nil
}

func deleteResource(t *testing.T, baseURL, token, id string) error {
	t.Helper()

	req, err := http.NewRequest(http.MethodDelete, baseURL+"/api/v1/resources/"+id, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func expectResourceNotFound(t *testing.T, baseURL, token, id string) error {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, baseURL+"/api/v1/resources/"+id, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("expected 404 after delete, got %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func waitForPostgres(ctx context.Context) error {
	cfg := config.LoadConfig()
	conn, err := sql.Open("postgres", db.DSN(cfg.Database))
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg := config.LoadConfig()
	migrationsPath := filepath.Join(root, "internal", "db", "migrations")
	migrationsURL := "file://" + migrationsPath

	migrator, err := migrate.New(migrationsURL, db.DSN(cfg.Database))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func startServer() (*server.Server, error) {
	_ = os.Setenv("ACCESS_TOKEN_SECRET_KEY", "e2e-test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "apiserver")
	_ = os.Setenv("DB_PASSWORD", "password")
	_ = os.Setenv("DB_NAME", "apiserver_db")
	_ = os.Setenv("DB_SSL", "false")
	_ = os.Setenv("SUPERUSER", "admin")
	_ = os.Setenv("SUPERUSER_PASSWORD", "admin")
	_ = os.Setenv("EVENTS_DRIVER", "none")
	_ = os.Setenv("STORAGE_DRIVER", "none")

	cfg := config.LoadConfig()
	srv, err := server.New(context.Background(), cfg, nil)
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
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
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
