package store

// migration represents a single schema migration. Statements run in order
// inside one transaction and must be valid on every supported dialect.
type migration struct {
	Version    int
	Name       string
	Statements []string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create resources",
		Statements: []string{
			`CREATE TABLE resources (
				id               TEXT PRIMARY KEY,
				title            TEXT NOT NULL,
				description      TEXT NOT NULL DEFAULT '',
				type             TEXT NOT NULL,
				file_name        TEXT NOT NULL,
				file_size        BIGINT NOT NULL DEFAULT 0,
				original_content TEXT NOT NULL,
				parsed_content   TEXT NOT NULL,
				created_at       TEXT NOT NULL,
				updated_at       TEXT NOT NULL
			)`,
			`CREATE INDEX idx_resources_created ON resources (created_at)`,
		},
	},
	{
		Version: 2,
		Name:    "create agents",
		Statements: []string{
			`CREATE TABLE agents (
				id            TEXT PRIMARY KEY,
				name          TEXT NOT NULL,
				description   TEXT NOT NULL,
				icon          TEXT NOT NULL,
				category      TEXT NOT NULL,
				color         TEXT NOT NULL,
				system_prompt TEXT NOT NULL,
				model         TEXT NOT NULL,
				temperature   DOUBLE PRECISION NOT NULL DEFAULT 0.7,
				max_tokens    INTEGER NOT NULL DEFAULT 1000,
				created_at    TEXT NOT NULL,
				updated_at    TEXT NOT NULL
			)`,
			`CREATE INDEX idx_agents_created ON agents (created_at)`,
		},
	},
}
