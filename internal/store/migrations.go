package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	email      TEXT NOT NULL UNIQUE,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS project_templates (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id     INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(user_id, name)
);

CREATE TABLE IF NOT EXISTS event_templates (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	project_template_id INTEGER NOT NULL REFERENCES project_templates(id) ON DELETE CASCADE,
	name                TEXT NOT NULL,
	offset_days         INTEGER NOT NULL DEFAULT 0 CHECK(offset_days >= 0),
	duration            INTEGER NOT NULL DEFAULT 1 CHECK(duration >= 1),
	note                TEXT NOT NULL DEFAULT '',
	event_type          TEXT NOT NULL CHECK(event_type IN ('task', 'activity')),
	auto_reschedule     INTEGER NOT NULL DEFAULT 0 CHECK(auto_reschedule IN (0, 1))
);

CREATE INDEX IF NOT EXISTS idx_event_templates_parent
	ON event_templates(project_template_id);

CREATE TABLE IF NOT EXISTS reminder_templates (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	event_template_id     INTEGER NOT NULL REFERENCES event_templates(id) ON DELETE CASCADE,
	days_before           INTEGER NOT NULL DEFAULT 0 CHECK(days_before >= 0),
	time_of_day           TEXT NOT NULL DEFAULT '09:00',
	email_notifications   INTEGER NOT NULL DEFAULT 0 CHECK(email_notifications IN (0, 1)),
	desktop_notifications INTEGER NOT NULL DEFAULT 0 CHECK(desktop_notifications IN (0, 1))
);

CREATE INDEX IF NOT EXISTS idx_reminder_templates_parent
	ON reminder_templates(event_template_id);

CREATE TABLE IF NOT EXISTS tags (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	name    TEXT NOT NULL,
	UNIQUE(user_id, name)
);

CREATE TABLE IF NOT EXISTS event_template_tags (
	event_template_id INTEGER NOT NULL REFERENCES event_templates(id) ON DELETE CASCADE,
	tag_id            INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	PRIMARY KEY (event_template_id, tag_id)
);

CREATE TABLE IF NOT EXISTS projects (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id             INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	name                TEXT NOT NULL,
	description         TEXT NOT NULL DEFAULT '',
	starts_at           DATETIME NOT NULL,
	project_template_id INTEGER REFERENCES project_templates(id) ON DELETE SET NULL,
	created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(user_id, name)
);

CREATE TABLE IF NOT EXISTS events (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id            INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	name                  TEXT NOT NULL,
	start_date            DATETIME NOT NULL,
	duration              INTEGER NOT NULL DEFAULT 1 CHECK(duration >= 1),
	note                  TEXT NOT NULL DEFAULT '',
	event_type            TEXT NOT NULL CHECK(event_type IN ('task', 'activity')),
	auto_reschedule       INTEGER NOT NULL DEFAULT 0 CHECK(auto_reschedule IN (0, 1)),
	status                TEXT NOT NULL CHECK(status IN ('none', 'not_started', 'in_progress', 'completed')),
	notifications_enabled INTEGER NOT NULL DEFAULT 1 CHECK(notifications_enabled IN (0, 1)),
	event_template_id     INTEGER REFERENCES event_templates(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_events_project ON events(project_id);
CREATE INDEX IF NOT EXISTS idx_events_start_date ON events(start_date);

CREATE TABLE IF NOT EXISTS event_tags (
	event_id INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
	tag_id   INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	PRIMARY KEY (event_id, tag_id)
);

CREATE TABLE IF NOT EXISTS reminders (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id              INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
	trigger_time          DATETIME NOT NULL,
	email_notifications   INTEGER NOT NULL DEFAULT 0 CHECK(email_notifications IN (0, 1)),
	desktop_notifications INTEGER NOT NULL DEFAULT 0 CHECK(desktop_notifications IN (0, 1)),
	reminder_template_id  INTEGER REFERENCES reminder_templates(id) ON DELETE SET NULL,
	run_id                TEXT
);

CREATE INDEX IF NOT EXISTS idx_reminders_event ON reminders(event_id);
CREATE INDEX IF NOT EXISTS idx_reminders_trigger_time ON reminders(trigger_time);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
