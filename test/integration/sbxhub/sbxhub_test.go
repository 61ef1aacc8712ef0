package sbxhub_test

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	intsbxhub "github.com/slok/sbxhub/test/integration/sbxhub"
)

// sandboxOutput matches the JSON output of `sbxhub get --format json`.
type sandboxOutput struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Backend     string `json:"backend"`
	Status      string `json:"status"`
	ExposedURLs []struct {
		Port int    `json:"port"`
		URL  string `json:"url"`
	} `json:"exposed_urls"`
}

// listOutput matches the JSON output of `sbxhub list --format json`.
type listOutput struct {
	Items     []sandboxOutput `json:"items"`
	NextToken string          `json:"next_token"`
}

func newTestDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test-sbxhub.db")
}

func uniqueName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func getSandbox(t *testing.T, ctx context.Context, config intsbxhub.Config, dbPath, name string) sandboxOutput {
	t.Helper()
	stdout, stderr, err := intsbxhub.RunCmd(ctx, config, dbPath, "get --format json "+name)
	require.NoError(t, err, "stderr: %s", stderr)

	var out sandboxOutput
	require.NoError(t, json.Unmarshal(stdout, &out))
	return out
}

func TestLocalSandboxLifecycle(t *testing.T) {
	config := intsbxhub.NewConfig(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	dbPath := newTestDB(t)
	name := uniqueName("local")

	_, stderr, err := intsbxhub.RunCmd(ctx, config, dbPath, fmt.Sprintf("create --backend local --name %s --port 8080", name))
	require.NoError(t, err, "stderr: %s", stderr)

	sb := getSandbox(t, ctx, config, dbPath, name)
	assert.Equal(t, "running", sb.Status)
	require.Len(t, sb.ExposedURLs, 1)
	assert.Equal(t, "http://127.0.0.1:8080", sb.ExposedURLs[0].URL)

	_, stderr, err = intsbxhub.RunCmd(ctx, config, dbPath, "terminate "+name)
	require.NoError(t, err, "stderr: %s", stderr)

	sb = getSandbox(t, ctx, config, dbPath, name)
	assert.Equal(t, "stopped", sb.Status)
	assert.Empty(t, sb.ExposedURLs)

	// Terminating again is fine.
	_, stderr, err = intsbxhub.RunCmd(ctx, config, dbPath, "terminate "+name)
	require.NoError(t, err, "stderr: %s", stderr)

	_, stderr, err = intsbxhub.RunCmd(ctx, config, dbPath, "purge "+name)
	require.NoError(t, err, "stderr: %s", stderr)

	_, _, err = intsbxhub.RunCmd(ctx, config, dbPath, "get "+name)
	assert.Error(t, err)
}

func TestListPagination(t *testing.T) {
	config := intsbxhub.NewConfig(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	dbPath := newTestDB(t)
	for i := range 3 {
		_, stderr, err := intsbxhub.RunCmd(ctx, config, dbPath, fmt.Sprintf("create --backend local --name sb-%d", i))
		require.NoError(t, err, "stderr: %s", stderr)
	}

	var (
		names []string
		token string
	)
	for {
		args := "list --format json --page-size 2"
		if token != "" {
			args += " --page-token " + token
		}
		stdout, stderr, err := intsbxhub.RunCmd(ctx, config, dbPath, args)
		require.NoError(t, err, "stderr: %s", stderr)

		var page listOutput
		require.NoError(t, json.Unmarshal(stdout, &page))
		for _, it := range page.Items {
			names = append(names, it.Name)
		}
		if page.NextToken == "" {
			break
		}
		token = page.NextToken
	}

	assert.Equal(t, []string{"sb-0", "sb-1", "sb-2"}, names)
}

func TestRemoteBackendIsRejected(t *testing.T) {
	config := intsbxhub.NewConfig(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	dbPath := newTestDB(t)
	_, stderr, err := intsbxhub.RunCmd(ctx, config, dbPath, "create --backend remote --name rmt")
	require.Error(t, err)
	assert.Contains(t, string(stderr), "backend not registered")

	stdout, _, err := intsbxhub.RunCmd(ctx, config, dbPath, "list --format json")
	require.NoError(t, err)
	var page listOutput
	require.NoError(t, json.Unmarshal(stdout, &page))
	assert.Empty(t, page.Items)
}

func TestTasks(t *testing.T) {
	config := intsbxhub.NewConfig(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	dbPath := newTestDB(t)

	stdout, stderr, err := intsbxhub.RunCmd(ctx, config, dbPath, `task add s1 --format json --data {"step":"plan"}`)
	require.NoError(t, err, "stderr: %s", stderr)
	var added []struct {
		ID    string `json:"id"`
		Order int    `json:"order"`
	}
	require.NoError(t, json.Unmarshal(stdout, &added))
	require.Len(t, added, 1)

	_, stderr, err = intsbxhub.RunCmd(ctx, config, dbPath, "task update --status success "+added[0].ID)
	require.NoError(t, err, "stderr: %s", stderr)

	stdout, stderr, err = intsbxhub.RunCmd(ctx, config, dbPath, "task list --format json --status success s1")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, string(stdout), added[0].ID)

	_, stderr, err = intsbxhub.RunCmd(ctx, config, dbPath, "task rm "+added[0].ID)
	require.NoError(t, err, "stderr: %s", stderr)
}

func TestDockerSandboxLifecycle(t *testing.T) {
	config := intsbxhub.NewConfig(t)
	if !config.Docker {
		t.Skip("Skipping Docker test: SBXHUB_INTEGRATION_DOCKER is not set to 'true'")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	dbPath := newTestDB(t)
	name := uniqueName("docker")
	t.Cleanup(func() {
		_, _, _ = intsbxhub.RunCmd(context.Background(), config, dbPath, "terminate "+name)
	})

	_, stderr, err := intsbxhub.RunCmd(ctx, config, dbPath, fmt.Sprintf("create --backend docker --image nginx:alpine --port 80 --name %s", name))
	require.NoError(t, err, "stderr: %s", stderr)

	stdout, stderr, err := intsbxhub.RunCmd(ctx, config, dbPath, "status --format json "+name)
	require.NoError(t, err, "stderr: %s", stderr)
	var sb sandboxOutput
	require.NoError(t, json.Unmarshal(stdout, &sb))
	assert.Equal(t, "running", sb.Status)
	require.Len(t, sb.ExposedURLs, 1)
	assert.Equal(t, 80, sb.ExposedURLs[0].Port)

	_, stderr, err = intsbxhub.RunCmd(ctx, config, dbPath, "terminate "+name)
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Equal(t, "stopped", getSandbox(t, ctx, config, dbPath, name).Status)
}
