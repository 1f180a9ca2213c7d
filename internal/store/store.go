package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Project groups a conversation with its uploaded files.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Message is one turn in a project's conversation. Role is "user" or
// "assistant"; assistant is also used for synthesized error turns.
// CreatedAt is assigned by the database at persistence time and defines
// ordering within a project, with insertion order breaking ties.
type Message struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ProjectFile is metadata for a file uploaded to a project. Content lives in
// the same row but is only fetched by GetFileContent.
type ProjectFile struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s *Store) CreateProject(ctx context.Context, id, name, description string) (*Project, error) {
	var p Project
	err := s.db.QueryRow(ctx, `
		INSERT INTO projects (id, name, description)
		VALUES ($1, $2, $3)
		RETURNING id, name, description, created_at, updated_at
	`, id, name, description).Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	var p Project
	err := s.db.QueryRow(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM projects WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProjects returns all projects, newest first.
func (s *Store) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM projects
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) UpdateProject(ctx context.Context, id, name, description string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE projects
		SET name = $1, description = $2, updated_at = NOW()
		WHERE id = $3
	`, name, description, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProject removes a project; messages and files cascade in the schema.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertMessage persists one turn. The caller supplies the ID (generated
// app-side so the optimistic in-memory copy and the durable row share
// identity); created_at comes back from the database so the caller can
// reconcile ordering.
func (s *Store) InsertMessage(ctx context.Context, m Message) (Message, error) {
	err := s.db.QueryRow(ctx, `
		INSERT INTO messages (id, project_id, role, content)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, m.ID, m.ProjectID, m.Role, m.Content).Scan(&m.CreatedAt)
	return m, err
}

// ListMessagesByProject returns a project's turns ordered by creation time
// ascending, with the sequence column breaking ties between rows written in
// the same instant.
func (s *Store) ListMessagesByProject(ctx context.Context, projectID string) ([]Message, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, project_id, role, content, created_at
		FROM messages
		WHERE project_id = $1
		ORDER BY created_at ASC, seq ASC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SaveFile stores a project file, replacing any existing file with the same
// name in the same project.
func (s *Store) SaveFile(ctx context.Context, id, projectID, name, contentType string, content []byte) (*ProjectFile, error) {
	var f ProjectFile
	err := s.db.QueryRow(ctx, `
		INSERT INTO project_files (id, project_id, name, content_type, size, content)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (project_id, name) DO UPDATE SET
			content_type = EXCLUDED.content_type,
			size = EXCLUDED.size,
			content = EXCLUDED.content,
			created_at = NOW()
		RETURNING id, project_id, name, content_type, size, created_at
	`, id, projectID, name, contentType, int64(len(content)), content).Scan(
		&f.ID, &f.ProjectID, &f.Name, &f.ContentType, &f.Size, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *Store) ListFiles(ctx context.Context, projectID string) ([]ProjectFile, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, project_id, name, content_type, size, created_at
		FROM project_files
		WHERE project_id = $1
		ORDER BY name ASC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProjectFile
	for rows.Next() {
		var f ProjectFile
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.Name, &f.ContentType, &f.Size, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// GetFileContent fetches a file's metadata together with its bytes.
func (s *Store) GetFileContent(ctx context.Context, id string) (*ProjectFile, []byte, error) {
	var f ProjectFile
	var content []byte
	err := s.db.QueryRow(ctx, `
		SELECT id, project_id, name, content_type, size, created_at, content
		FROM project_files WHERE id = $1
	`, id).Scan(&f.ID, &f.ProjectID, &f.Name, &f.ContentType, &f.Size, &f.CreatedAt, &content)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return &f, content, nil
}
