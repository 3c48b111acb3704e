package convo

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/GNHua/oneclaw-sub005/errors"
)

// Store persists conversations and messages.
type Store struct {
	db *sql.DB
}

// NewStore creates a new conversation store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create persists a new durable conversation.
func (s *Store) Create(title string) (*Conversation, error) {
	return s.create(title, false)
}

// CreateEphemeral creates a throwaway session for one scheduled run.
func (s *Store) CreateEphemeral(title string) (*Conversation, error) {
	return s.create(title, true)
}

func (s *Store) create(title string, ephemeral bool) (*Conversation, error) {
	conv := &Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		Ephemeral: ephemeral,
		CreatedAt: time.Now().UTC(),
	}
	conv.UpdatedAt = conv.CreatedAt

	query := `
		INSERT INTO conversations (id, title, ephemeral, message_count, preview, created_at, updated_at)
		VALUES (?, ?, ?, 0, NULL, ?, ?)
	`
	_, err := s.db.Exec(query,
		conv.ID,
		conv.Title,
		conv.Ephemeral,
		conv.CreatedAt.Format(time.RFC3339),
		conv.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create conversation")
	}

	return conv, nil
}

// Get retrieves a conversation by ID.
func (s *Store) Get(id string) (*Conversation, error) {
	query := `
		SELECT id, title, ephemeral, message_count, preview, created_at, updated_at
		FROM conversations
		WHERE id = ?
	`

	var conv Conversation
	var preview sql.NullString
	var createdAt, updatedAt string

	err := s.db.QueryRow(query, id).Scan(
		&conv.ID,
		&conv.Title,
		&conv.Ephemeral,
		&conv.MessageCount,
		&preview,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFound("conversation not found: %s", id)
		}
		return nil, errors.Wrapf(err, "failed to get conversation %s", id)
	}

	if preview.Valid {
		conv.Preview = preview.String
	}
	conv.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse created_at for conversation %s", id)
	}
	conv.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse updated_at for conversation %s", id)
	}

	return &conv, nil
}

// AppendMessage adds a message and maintains the conversation's listing
// metadata (count, preview, updatedAt) in the same transaction.
func (s *Store) AppendMessage(conversationID string, role Role, content string) (*Message, error) {
	msg := &Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO messages (id, conversation_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, string(msg.Role), msg.Content,
		msg.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to insert message into conversation %s", conversationID)
	}

	result, err := tx.Exec(`
		UPDATE conversations
		SET message_count = message_count + 1,
		    preview = ?,
		    updated_at = ?
		WHERE id = ?`,
		previewOf(content),
		msg.CreatedAt.Format(time.RFC3339),
		conversationID,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to update conversation %s metadata", conversationID)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return nil, errors.NewNotFound("conversation not found: %s", conversationID)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit message append")
	}

	return msg, nil
}

// Messages returns a conversation's messages, oldest first.
func (s *Store) Messages(conversationID string) ([]*Message, error) {
	query := `
		SELECT id, conversation_id, role, content, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, rowid ASC
	`

	rows, err := s.db.Query(query, conversationID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list messages for conversation %s", conversationID)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var msg Message
		var role, createdAt string
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &createdAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan message row")
		}
		msg.Role = Role(role)
		msg.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse created_at for message %s", msg.ID)
		}
		messages = append(messages, &msg)
	}

	return messages, rows.Err()
}

// Delete removes a conversation; its messages cascade. Deleting a missing
// conversation is a no-op so the run cleanup path can call it
// unconditionally.
func (s *Store) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "failed to delete conversation %s", id)
	}
	return nil
}
