package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// getTestDB returns a database pool for testing.
// Skips the test if DATABASE_URL is not set.
func getTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.Ping(ctx); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}

	return db
}

func TestProjectOperations(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	s := New(db)
	ctx := context.Background()

	project, err := s.CreateProject(ctx, uuid.NewString(), "Test Project", "A description")
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	defer func() { _ = s.DeleteProject(ctx, project.ID) }()

	if project.ID == "" {
		t.Error("project ID should not be empty")
	}
	if project.Name != "Test Project" {
		t.Errorf("project name = %q, want %q", project.Name, "Test Project")
	}
	if project.CreatedAt.IsZero() {
		t.Error("created_at should be set by the database")
	}

	retrieved, err := s.GetProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if retrieved.ID != project.ID {
		t.Errorf("retrieved project ID = %q, want %q", retrieved.ID, project.ID)
	}

	if err := s.UpdateProject(ctx, project.ID, "Renamed", "new description"); err != nil {
		t.Fatalf("UpdateProject failed: %v", err)
	}

	updated, err := s.GetProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("GetProject after update failed: %v", err)
	}
	if updated.Name != "Renamed" {
		t.Errorf("updated name = %q, want %q", updated.Name, "Renamed")
	}

	t.Run("update missing project", func(t *testing.T) {
		if err := s.UpdateProject(ctx, uuid.NewString(), "x", "y"); err == nil {
			t.Error("UpdateProject should fail for unknown project")
		}
	})
}

func TestMessageOrdering(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	s := New(db)
	ctx := context.Background()

	project, err := s.CreateProject(ctx, uuid.NewString(), "Ordering", "")
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	defer func() { _ = s.DeleteProject(ctx, project.ID) }()

	contents := []string{"first", "second", "third"}
	roles := []string{"user", "assistant", "user"}
	for i := range contents {
		m := Message{
			ID:        uuid.NewString(),
			ProjectID: project.ID,
			Role:      roles[i],
			Content:   contents[i],
		}
		persisted, err := s.InsertMessage(ctx, m)
		if err != nil {
			t.Fatalf("InsertMessage %d failed: %v", i, err)
		}
		if persisted.CreatedAt.IsZero() {
			t.Error("InsertMessage should return the database created_at")
		}
		if persisted.ID != m.ID {
			t.Errorf("persisted ID = %q, want caller-supplied %q", persisted.ID, m.ID)
		}
	}

	messages, err := s.ListMessagesByProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("ListMessagesByProject failed: %v", err)
	}
	if len(messages) != len(contents) {
		t.Fatalf("got %d messages, want %d", len(messages), len(contents))
	}
	for i, m := range messages {
		if m.Content != contents[i] {
			t.Errorf("message %d content = %q, want %q (insertion order must be preserved)", i, m.Content, contents[i])
		}
		if m.Role != roles[i] {
			t.Errorf("message %d role = %q, want %q", i, m.Role, roles[i])
		}
	}
}

func TestProjectFiles(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	s := New(db)
	ctx := context.Background()

	project, err := s.CreateProject(ctx, uuid.NewString(), "Files", "")
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	defer func() { _ = s.DeleteProject(ctx, project.ID) }()

	content := []byte("notes about the project")
	file, err := s.SaveFile(ctx, uuid.NewString(), project.ID, "notes.txt", "text/plain", content)
	if err != nil {
		t.Fatalf("SaveFile failed: %v", err)
	}
	if file.Size != int64(len(content)) {
		t.Errorf("file size = %d, want %d", file.Size, len(content))
	}

	// Same name replaces, not duplicates.
	replacement := []byte("updated notes")
	if _, err := s.SaveFile(ctx, uuid.NewString(), project.ID, "notes.txt", "text/plain", replacement); err != nil {
		t.Fatalf("SaveFile replace failed: %v", err)
	}

	files, err := s.ListFiles(ctx, project.ID)
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("got %d files, want 1 (same name must replace)", len(files))
	}

	_, got, err := s.GetFileContent(ctx, files[0].ID)
	if err != nil {
		t.Fatalf("GetFileContent failed: %v", err)
	}
	if string(got) != string(replacement) {
		t.Errorf("file content = %q, want %q", got, replacement)
	}
}

func TestSessions(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	s := New(db)
	ctx := context.Background()

	hash := uuid.NewString()
	if err := s.CreateSession(ctx, hash, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	valid, err := s.IsSessionValid(ctx, hash)
	if err != nil {
		t.Fatalf("IsSessionValid failed: %v", err)
	}
	if !valid {
		t.Error("fresh session should be valid")
	}

	if err := s.RevokeSession(ctx, hash); err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}

	valid, err = s.IsSessionValid(ctx, hash)
	if err != nil {
		t.Fatalf("IsSessionValid after revoke failed: %v", err)
	}
	if valid {
		t.Error("revoked session should not be valid")
	}

	if _, err := s.PurgeExpiredSessions(ctx); err != nil {
		t.Fatalf("PurgeExpiredSessions failed: %v", err)
	}
}

func TestPushTokens(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	s := New(db)
	ctx := context.Background()

	token := "device-" + uuid.NewString()
	if err := s.RegisterPushToken(ctx, token, "ios"); err != nil {
		t.Fatalf("RegisterPushToken failed: %v", err)
	}
	// Re-registering the same token must not fail.
	if err := s.RegisterPushToken(ctx, token, "android"); err != nil {
		t.Fatalf("RegisterPushToken upsert failed: %v", err)
	}

	tokens, err := s.ListPushTokens(ctx)
	if err != nil {
		t.Fatalf("ListPushTokens failed: %v", err)
	}
	found := false
	for _, tok := range tokens {
		if tok.Token == token {
			found = true
			if tok.Platform != "android" {
				t.Errorf("platform = %q, want %q after upsert", tok.Platform, "android")
			}
		}
	}
	if !found {
		t.Error("registered token not listed")
	}

	if err := s.UnregisterPushToken(ctx, token); err != nil {
		t.Fatalf("UnregisterPushToken failed: %v", err)
	}
}
