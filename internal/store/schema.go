package store

// The partial unique index is what makes the single-active-session check
// atomic: a second concurrent insert for the same user hits a 23505
// unique_violation instead of racing a prior SELECT.
const schema = `
CREATE TABLE IF NOT EXISTS learning_sessions (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	start_time       TIMESTAMPTZ NOT NULL,
	end_time         TIMESTAMPTZ,
	duration_seconds BIGINT,
	status           TEXT NOT NULL DEFAULT 'active',
	timezone_offset  INTEGER NOT NULL DEFAULT 0,
	metadata         JSONB
);

CREATE UNIQUE INDEX IF NOT EXISTS learning_sessions_one_active
	ON learning_sessions (user_id) WHERE status = 'active';

CREATE INDEX IF NOT EXISTS learning_sessions_user_start
	ON learning_sessions (user_id, start_time);
`
