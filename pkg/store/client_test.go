package store

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mediapulse/patternlab/pkg/models"
)

// newTestClient creates a test database client with CI/local environment
// detection. In CI (CI_DATABASE_URL set) it connects to an external
// PostgreSQL service container; locally it spins up a testcontainer.
func newTestClient(t *testing.T) *Client {
	ctx := context.Background()

	connStr := os.Getenv("CI_DATABASE_URL")
	if connStr != "" {
		t.Log("Using external PostgreSQL from CI_DATABASE_URL")
	} else {
		t.Log("Using testcontainers for PostgreSQL")
		pgContainer, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("test"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		require.NoError(t, err)

		t.Cleanup(func() {
			if err := testcontainers.TerminateContainer(pgContainer); err != nil {
				t.Logf("failed to terminate container: %v", err)
			}
		})

		connStr, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	}

	db, err := sql.Open("pgx", connStr)
	require.NoError(t, err)

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	require.NoError(t, RunMigrations(db, "test"))

	client := NewClientFromDB(db, connStr)
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func TestClient_HealthCheck(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.DB().PingContext(ctx))

	health, err := Health(ctx, client.DB())
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.Greater(t, health.MaxOpenConns, 0)
}

func TestResultStore_SaveAndGetRoundTrip(t *testing.T) {
	client := newTestClient(t)
	rs := NewResultStore(client)
	ctx := context.Background()

	result := &models.OrchestratorResult{
		SessionID:    "sess-1",
		VideoID:      "vid-1",
		Success:      true,
		Mode:         models.ModeAgentic,
		FallbackUsed: false,
		Pattern:      &models.Pattern{Name: "similarity-cluster", Strength: 0.82},
		Report: &models.FinalReport{
			Summary:     "Strong topical cluster among overperforming peers.",
			Confidence:  0.82,
			GeneratedAt: time.Now().UTC().Truncate(time.Millisecond),
		},
		Metrics: models.Metrics{TotalTokens: 4200, ToolCallCount: 5},
	}
	require.NoError(t, rs.SaveResult(ctx, result.SessionID, result))

	loaded, err := rs.GetResult(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, result.SessionID, loaded.SessionID)
	assert.Equal(t, result.VideoID, loaded.VideoID)
	assert.True(t, loaded.Success)
	require.NotNil(t, loaded.Pattern)
	assert.Equal(t, "similarity-cluster", loaded.Pattern.Name)
	assert.Equal(t, 4200, loaded.Metrics.TotalTokens)
}

func TestResultStore_SaveResultUpserts(t *testing.T) {
	client := newTestClient(t)
	rs := NewResultStore(client)
	ctx := context.Background()

	first := &models.OrchestratorResult{
		SessionID: "sess-2", VideoID: "vid-2",
		Success: false, Mode: models.ModeAgentic, Error: "budget exhausted",
	}
	require.NoError(t, rs.SaveResult(ctx, first.SessionID, first))

	second := &models.OrchestratorResult{
		SessionID: "sess-2", VideoID: "vid-2",
		Success: true, Mode: models.ModeClassic, FallbackUsed: true,
	}
	require.NoError(t, rs.SaveResult(ctx, second.SessionID, second))

	loaded, err := rs.GetResult(ctx, "sess-2")
	require.NoError(t, err)
	assert.True(t, loaded.Success)
	assert.Equal(t, models.ModeClassic, loaded.Mode)
	assert.True(t, loaded.FallbackUsed)
}

func TestResultStore_GetResultNotFound(t *testing.T) {
	client := newTestClient(t)
	rs := NewResultStore(client)

	_, err := rs.GetResult(context.Background(), "no-such-session")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestResultStore_ListResultsFiltersByVideo(t *testing.T) {
	client := newTestClient(t)
	rs := NewResultStore(client)
	ctx := context.Background()

	for _, r := range []*models.OrchestratorResult{
		{SessionID: "sess-a", VideoID: "vid-x", Success: true, Mode: models.ModeAgentic},
		{SessionID: "sess-b", VideoID: "vid-y", Success: true, Mode: models.ModeAgentic},
		{SessionID: "sess-c", VideoID: "vid-x", Success: false, Mode: models.ModeClassic},
	} {
		require.NoError(t, rs.SaveResult(ctx, r.SessionID, r))
	}

	all, err := rs.ListResults(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	filtered, err := rs.ListResults(ctx, "vid-x", 10)
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	for _, summary := range filtered {
		assert.Equal(t, "vid-x", summary.VideoID)
	}
}

func TestResultStore_EventsSinceAndRetention(t *testing.T) {
	client := newTestClient(t)
	rs := NewResultStore(client)
	ctx := context.Background()

	insert := func(sessionID, payload string, createdAt time.Time) {
		_, err := client.DB().ExecContext(ctx,
			`INSERT INTO events (session_id, channel, payload, created_at) VALUES ($1, $2, $3, $4)`,
			sessionID, "session:"+sessionID, payload, createdAt)
		require.NoError(t, err)
	}

	now := time.Now()
	insert("sess-e", `{"type":"session.status","seq":1}`, now.Add(-2*time.Hour))
	insert("sess-e", `{"type":"turn.started","seq":2}`, now)
	insert("other", `{"type":"session.status","seq":3}`, now)

	events, err := rs.EventsSince(ctx, "sess-e", 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Less(t, events[0].ID, events[1].ID)

	// Catchup from the first event's id only returns the newer one.
	later, err := rs.EventsSince(ctx, "sess-e", events[0].ID)
	require.NoError(t, err)
	require.Len(t, later, 1)
	assert.JSONEq(t, `{"type":"turn.started","seq":2}`, string(later[0].Payload))

	deleted, err := rs.DeleteEventsBefore(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	remaining, err := rs.EventsSince(ctx, "sess-e", 0)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: Config{
				Host: "localhost", Port: 5432, User: "test", Password: "test",
				Database: "test", SSLMode: "disable",
				MaxOpenConns: 10, MaxIdleConns: 5,
			},
			wantErr: false,
		},
		{
			name: "missing password",
			cfg: Config{
				Host: "localhost", Port: 5432, User: "test",
				Database: "test", MaxOpenConns: 10, MaxIdleConns: 5,
			},
			wantErr: true,
		},
		{
			name: "idle conns exceed max conns",
			cfg: Config{
				Host: "localhost", Port: 5432, User: "test", Password: "test",
				Database: "test", MaxOpenConns: 5, MaxIdleConns: 10,
			},
			wantErr: true,
		},
		{
			name: "zero max open conns",
			cfg: Config{
				Host: "localhost", Port: 5432, User: "test", Password: "test",
				Database: "test", MaxOpenConns: 0, MaxIdleConns: 0,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
