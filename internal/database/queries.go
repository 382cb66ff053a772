package database

// Sent message queries
const (
	InsertSentMessageQuery = `
		INSERT INTO sent_messages (chat_id, chat_id_hash, message_id, text, sent_at)
		VALUES (?, ?, ?, ?, ?)
	`

	SelectSentMessagesByChatQuery = `
		SELECT id, chat_id, message_id, text, sent_at, created_at
		FROM sent_messages
		WHERE chat_id_hash = ?
		ORDER BY sent_at DESC, id DESC
		LIMIT ?
	`

	DeleteSentMessagesBeforeQuery = `
		DELETE FROM sent_messages
		WHERE created_at < ?
	`
)
