package database

// schema is applied idempotently on every open. The device never runs a
// migration server; additive changes append guarded statements here.
const schema = `
CREATE TABLE IF NOT EXISTS profiles (
	id            TEXT PRIMARY KEY,
	display_name  TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'active',
	created_at    TIMESTAMP NOT NULL,
	archived_at   TIMESTAMP
);

CREATE TABLE IF NOT EXISTS credentials (
	id                  TEXT PRIMARY KEY,
	user_id             TEXT NOT NULL UNIQUE REFERENCES profiles(id),
	pin_verifier        TEXT NOT NULL,
	pattern_hash        TEXT NOT NULL DEFAULT '',
	pattern_salt        TEXT NOT NULL DEFAULT '',
	pattern_point_count INTEGER NOT NULL DEFAULT 0,
	totp_secret         BLOB,
	totp_nonce          BLOB,
	totp_last_used_at   TIMESTAMP,
	issued_at           TIMESTAMP NOT NULL,
	expires_at          TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS recovery_codes (
	id        TEXT PRIMARY KEY,
	user_id   TEXT NOT NULL REFERENCES profiles(id),
	code_hash TEXT NOT NULL,
	salt      TEXT NOT NULL,
	used      INTEGER NOT NULL DEFAULT 0,
	used_at   TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_recovery_codes_user ON recovery_codes(user_id, used);

CREATE TABLE IF NOT EXISTS sessions (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL REFERENCES profiles(id),
	pin_verified     INTEGER NOT NULL DEFAULT 0,
	mfa_verified     INTEGER NOT NULL DEFAULT 0,
	mfa_method       TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMP NOT NULL,
	expires_at       TIMESTAMP NOT NULL,
	last_activity_at TIMESTAMP NOT NULL,
	hidden_at        TIMESTAMP,
	is_active        INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_sessions_user_active ON sessions(user_id, is_active, created_at);

CREATE TABLE IF NOT EXISTS lockout_states (
	user_id         TEXT NOT NULL REFERENCES profiles(id),
	context         TEXT NOT NULL,
	failed_attempts INTEGER NOT NULL DEFAULT 0,
	locked_until    TIMESTAMP,
	PRIMARY KEY (user_id, context)
);

CREATE TABLE IF NOT EXISTS progress_records (
	id                 TEXT PRIMARY KEY,
	user_id            TEXT NOT NULL REFERENCES profiles(id),
	course_id          TEXT NOT NULL,
	module_id          TEXT NOT NULL,
	lesson_id          TEXT NOT NULL,
	completed_at       TIMESTAMP NOT NULL,
	score              REAL,
	time_spent_seconds INTEGER NOT NULL,
	sequence_number    INTEGER NOT NULL,
	previous_hash      TEXT NOT NULL DEFAULT '',
	signature          TEXT NOT NULL,
	UNIQUE (user_id, sequence_number)
);
CREATE INDEX IF NOT EXISTS idx_progress_user_course ON progress_records(user_id, course_id);

CREATE TABLE IF NOT EXISTS quiz_attempts (
	id                 TEXT PRIMARY KEY,
	attempt_id         TEXT NOT NULL UNIQUE,
	user_id            TEXT NOT NULL REFERENCES profiles(id),
	course_id          TEXT NOT NULL,
	quiz_id            TEXT NOT NULL,
	started_at         TIMESTAMP NOT NULL,
	completed_at       TIMESTAMP NOT NULL,
	score              REAL NOT NULL,
	max_score          REAL NOT NULL,
	time_spent_seconds INTEGER NOT NULL,
	signature          TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_quiz_attempts_user_course ON quiz_attempts(user_id, course_id);

CREATE TABLE IF NOT EXISTS audit_logs (
	log_id     TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	event_type TEXT NOT NULL,
	timestamp  TIMESTAMP NOT NULL,
	details    TEXT
);
CREATE INDEX IF NOT EXISTS idx_audit_logs_user ON audit_logs(user_id, timestamp);

CREATE TABLE IF NOT EXISTS sync_outbox (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	kind        TEXT NOT NULL,
	payload     BLOB NOT NULL,
	enqueued_at TIMESTAMP NOT NULL,
	sent_at     TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_sync_outbox_pending ON sync_outbox(sent_at, id);
`
