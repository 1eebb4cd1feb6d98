package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"ai-tutor/internal/citations"
	"ai-tutor/internal/scale"
)

// SQLiteStore implements Store on a single SQLite database file.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.Mutex
	log *zap.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS conversation (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id      INTEGER NOT NULL,
	name          TEXT NOT NULL,
	document_mode INTEGER NOT NULL DEFAULT 0,
	group_id      INTEGER,
	created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS turn (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id INTEGER NOT NULL REFERENCES conversation(id),
	role            TEXT NOT NULL,
	content         TEXT NOT NULL DEFAULT '',
	collapsed       INTEGER NOT NULL DEFAULT 0,
	scale_level     INTEGER NOT NULL DEFAULT 1,
	references_json TEXT,
	prompts_json    TEXT,
	created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS classification_event (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id INTEGER NOT NULL REFERENCES conversation(id),
	level           INTEGER NOT NULL,
	created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS feedback (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id INTEGER NOT NULL REFERENCES conversation(id),
	turn_id         INTEGER NOT NULL REFERENCES turn(id),
	content         TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS conv_group (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id INTEGER NOT NULL,
	name     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turn_conversation ON turn(conversation_id);
CREATE INDEX IF NOT EXISTS idx_event_conversation ON classification_event(conversation_id);
CREATE INDEX IF NOT EXISTS idx_feedback_conversation ON feedback(conversation_id);
`

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string, log *zap.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		log.Warn("failed to set busy_timeout", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		log.Warn("failed to set journal_mode=WAL", zap.Error(err))
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db, log: log}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) CreateConversation(ctx context.Context, ownerID int64, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := s.insertConversation(ctx, ownerID, name, false)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *SQLiteStore) CreateDocumentConversation(ctx context.Context, ownerID int64, name string) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	convID, err := s.insertConversation(ctx, ownerID, name, true)
	if err != nil {
		return 0, 0, err
	}
	seedID, err := s.insertSeedTurn(ctx, convID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to seed document conversation: %w", err)
	}
	return convID, seedID, nil
}

func (s *SQLiteStore) insertConversation(ctx context.Context, ownerID int64, name string, documentMode bool) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation (owner_id, name, document_mode) VALUES (?, ?, ?)`,
		ownerID, name, documentMode)
	if err != nil {
		return 0, fmt.Errorf("failed to insert conversation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read conversation id: %w", err)
	}
	// Every conversation starts with a level-1 observation.
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO classification_event (conversation_id, level) VALUES (?, ?)`,
		id, scale.LevelNoAI); err != nil {
		s.log.Warn("failed to record initial scale level", zap.Int64("conversation", id), zap.Error(err))
	}
	return id, nil
}

func (s *SQLiteStore) insertSeedTurn(ctx context.Context, conversationID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO turn (conversation_id, role, content, collapsed, scale_level) VALUES (?, ?, '', 0, ?)`,
		conversationID, RoleAssistant, scale.LevelNoAI)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const conversationCols = `id, owner_id, name, document_mode, group_id, created_at, updated_at`

func scanConversation(row interface{ Scan(...any) error }) (Conversation, error) {
	var c Conversation
	var groupID sql.NullInt64
	if err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.DocumentMode, &groupID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return Conversation{}, err
	}
	if groupID.Valid {
		g := groupID.Int64
		c.GroupID = &g
	}
	return c, nil
}

func (s *SQLiteStore) Conversation(ctx context.Context, id int64) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.db.QueryRowContext(ctx, `SELECT `+conversationCols+` FROM conversation WHERE id = ?`, id)
	c, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("failed to load conversation: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) ConversationByTurn(ctx context.Context, turnID int64) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.db.QueryRowContext(ctx,
		`SELECT c.id, c.owner_id, c.name, c.document_mode, c.group_id, c.created_at, c.updated_at
		 FROM conversation c INNER JOIN turn t ON t.conversation_id = c.id WHERE t.id = ?`, turnID)
	c, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("failed to load conversation by turn: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) ListConversations(ctx context.Context, ownerID int64) ([]Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+conversationCols+` FROM conversation WHERE owner_id = ? ORDER BY id ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()
	var out []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) RenameConversation(ctx context.Context, id int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversation SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("failed to rename conversation: %w", err)
	}
	return nil
}

// DeleteConversation cascades to turns, classification events and
// feedback, mirroring conversation ownership of all three.
func (s *SQLiteStore) DeleteConversation(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	for _, stmt := range []string{
		`DELETE FROM classification_event WHERE conversation_id = ?`,
		`DELETE FROM feedback WHERE conversation_id = ?`,
		`DELETE FROM turn WHERE conversation_id = ?`,
		`DELETE FROM conversation WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to delete conversation: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) InsertUserTurn(ctx context.Context, conversationID int64, content string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO turn (conversation_id, role, content, collapsed, scale_level) VALUES (?, ?, ?, 0, ?)`,
		conversationID, RoleUser, content, scale.LevelNoAI)
	if err != nil {
		return 0, fmt.Errorf("failed to insert user turn: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) FindEmptyAssistantTurn(ctx context.Context, conversationID int64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findEmptyAssistantTurn(ctx, conversationID)
}

// findEmptyAssistantTurn orders ascending: in document mode the FIRST
// assistant turn is the sticky seed card and stays the fill target.
func (s *SQLiteStore) findEmptyAssistantTurn(ctx context.Context, conversationID int64) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM turn WHERE conversation_id = ? AND role = ? AND content = '' ORDER BY id ASC LIMIT 1`,
		conversationID, RoleAssistant).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to find empty assistant turn: %w", err)
	}
	return id, true, nil
}

func (s *SQLiteStore) UpsertAssistantTurn(ctx context.Context, conversationID int64, content string, collapsed bool, level scale.Level) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok, err := s.findEmptyAssistantTurn(ctx, conversationID); err != nil {
		return 0, err
	} else if ok {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE turn SET content = ?, collapsed = ?, scale_level = ? WHERE id = ?`,
			content, collapsed, level, id); err != nil {
			return 0, fmt.Errorf("failed to fill placeholder turn: %w", err)
		}
		return id, nil
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO turn (conversation_id, role, content, collapsed, scale_level) VALUES (?, ?, ?, ?, ?)`,
		conversationID, RoleAssistant, content, collapsed, level)
	if err != nil {
		return 0, fmt.Errorf("failed to insert assistant turn: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) UpdateTurnContent(ctx context.Context, turnID int64, content string, references, prompts []citations.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	refs, err := marshalItems(references)
	if err != nil {
		return err
	}
	prs, err := marshalItems(prompts)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE turn SET content = ?, references_json = ?, prompts_json = ? WHERE id = ?`,
		content, refs, prs, turnID); err != nil {
		return fmt.Errorf("failed to update turn content: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateTurnCollapsed(ctx context.Context, turnID int64, collapsed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE turn SET collapsed = ? WHERE id = ?`, collapsed, turnID); err != nil {
		return fmt.Errorf("failed to update collapsed state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListTurns(ctx context.Context, conversationID int64) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var documentMode bool
	err := s.db.QueryRowContext(ctx,
		`SELECT document_mode FROM conversation WHERE id = ?`, conversationID).Scan(&documentMode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation mode: %w", err)
	}

	if documentMode {
		// Invariant: a document-mode conversation always reads back with
		// at least one assistant turn to edit. Synthesize the seed if it
		// is missing; the next read then finds it, so synthesis is stable.
		var n int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM turn WHERE conversation_id = ? AND role = ?`,
			conversationID, RoleAssistant).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count assistant turns: %w", err)
		}
		if n == 0 {
			if _, err := s.insertSeedTurn(ctx, conversationID); err != nil {
				return nil, fmt.Errorf("failed to synthesize seed turn: %w", err)
			}
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, collapsed, scale_level, references_json, prompts_json, created_at
		 FROM turn WHERE conversation_id = ? ORDER BY id ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		var t Turn
		var refs, prompts sql.NullString
		if err := rows.Scan(&t.ID, &t.ConversationID, &t.Role, &t.Content, &t.Collapsed, &t.ScaleLevel, &refs, &prompts, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		if refs.Valid {
			t.References = citations.Normalize(json.RawMessage(refs.String))
		}
		if prompts.Valid {
			t.Prompts = citations.Normalize(json.RawMessage(prompts.String))
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AppendClassificationEvent(ctx context.Context, conversationID int64, level scale.Level) error {
	if !level.Valid() {
		return fmt.Errorf("invalid scale level %d", level)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO classification_event (conversation_id, level) VALUES (?, ?)`,
		conversationID, level); err != nil {
		return fmt.Errorf("failed to append classification event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListClassificationLevels(ctx context.Context, conversationID int64) ([]scale.Level, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT level FROM classification_event WHERE conversation_id = ? ORDER BY level ASC`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list scale levels: %w", err)
	}
	defer rows.Close()
	var out []scale.Level
	for rows.Next() {
		var l scale.Level
		if err := rows.Scan(&l); err != nil {
			return nil, fmt.Errorf("failed to scan level: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) InsertFeedback(ctx context.Context, conversationID, turnID int64, content string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if turnID == 0 {
		// Fall back to the most recent turn in the conversation.
		err := s.db.QueryRowContext(ctx,
			`SELECT id FROM turn WHERE conversation_id = ? ORDER BY id DESC LIMIT 1`,
			conversationID).Scan(&turnID)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("no turn found for conversation %d: %w", conversationID, ErrNotFound)
		}
		if err != nil {
			return 0, fmt.Errorf("failed to resolve latest turn: %w", err)
		}
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (conversation_id, turn_id, content) VALUES (?, ?, ?)`,
		conversationID, turnID, content)
	if err != nil {
		return 0, fmt.Errorf("failed to insert feedback: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) ListFeedback(ctx context.Context, conversationID int64) ([]Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, turn_id, content FROM feedback WHERE conversation_id = ? ORDER BY id ASC`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()
	var out []Feedback
	for rows.Next() {
		var f Feedback
		if err := rows.Scan(&f.ID, &f.ConversationID, &f.TurnID, &f.Content); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CreateGroup(ctx context.Context, ownerID int64, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO conv_group (owner_id, name) VALUES (?, ?)`, ownerID, name)
	if err != nil {
		return 0, fmt.Errorf("failed to create group: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) RenameGroup(ctx context.Context, id int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE conv_group SET name = ? WHERE id = ?`, name, id); err != nil {
		return fmt.Errorf("failed to rename group: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteGroup(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE conversation SET group_id = NULL WHERE group_id = ?`, id); err != nil {
		return fmt.Errorf("failed to detach group conversations: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM conv_group WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListGroups(ctx context.Context, ownerID int64) ([]Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, name FROM conv_group WHERE owner_id = ? ORDER BY id ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()
	var out []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.OwnerID, &g.Name); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SetConversationGroup(ctx context.Context, conversationID int64, groupID *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var gid any
	if groupID != nil {
		gid = *groupID
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE conversation SET group_id = ? WHERE id = ?`, gid, conversationID); err != nil {
		return fmt.Errorf("failed to set conversation group: %w", err)
	}
	return nil
}

// Maintenance prunes feedback rows whose turn no longer exists and
// compacts the database. Run periodically from the scheduler.
func (s *SQLiteStore) Maintenance(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM feedback WHERE turn_id NOT IN (SELECT id FROM turn)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prune orphaned feedback: %w", err)
	}
	pruned, _ := res.RowsAffected()
	if _, err := s.db.ExecContext(ctx, `VACUUM`); err != nil {
		return pruned, fmt.Errorf("failed to vacuum: %w", err)
	}
	return pruned, nil
}

func marshalItems(items []citations.Item) (any, error) {
	if len(items) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal citation items: %w", err)
	}
	return string(b), nil
}

var _ Store = (*SQLiteStore)(nil)
