package migrations

// Migration is one schema step. Statements run in order inside a single
// transaction.
type Migration struct {
	Version    int
	Name       string
	Statements []string
}

// All returns every migration in version order. Column additions tolerate an
// existing column so databases created by the earlier Python tooling can be
// adopted in place.
func All() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_games",
			Statements: []string{
				`CREATE TABLE IF NOT EXISTS games (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	cover_image TEXT,
	description TEXT,
	publisher TEXT,
	platforms TEXT,
	genres TEXT,
	series TEXT,
	release_date TEXT,
	average_price REAL
)`,
			},
		},
		{
			Version: 2,
			Name:    "games_region_date_added_trailer",
			Statements: []string{
				`ALTER TABLE games ADD COLUMN date_added TEXT`,
				`ALTER TABLE games ADD COLUMN region TEXT DEFAULT 'PAL'`,
				`ALTER TABLE games ADD COLUMN youtube_trailer_url TEXT`,
			},
		},
		{
			Version: 3,
			Name:    "create_price_history",
			Statements: []string{
				`CREATE TABLE IF NOT EXISTS price_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	game_id INTEGER NOT NULL,
	price REAL,
	price_source TEXT NOT NULL,
	date_recorded TEXT NOT NULL,
	currency TEXT DEFAULT 'GBP',
	FOREIGN KEY (game_id) REFERENCES games (id) ON DELETE CASCADE
)`,
				`CREATE INDEX IF NOT EXISTS idx_price_history_game_id ON price_history (game_id)`,
				`CREATE INDEX IF NOT EXISTS idx_price_history_date ON price_history (date_recorded)`,
			},
		},
		{
			Version: 4,
			Name:    "create_gallery",
			Statements: []string{
				`CREATE TABLE IF NOT EXISTS game_gallery_metadata (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	game_id INTEGER NOT NULL,
	trailer_url TEXT,
	gamefaqs_url TEXT,
	powerpyx_url TEXT,
	metacritic_url TEXT,
	steam_url TEXT,
	psn_url TEXT,
	xbox_url TEXT,
	nintendo_url TEXT,
	display_priority INTEGER DEFAULT 0,
	gallery_enabled BOOLEAN DEFAULT 1,
	completion_status TEXT DEFAULT 'not_started' CHECK (completion_status IN ('not_started', 'in_progress', 'completed', 'abandoned')),
	personal_rating INTEGER CHECK (personal_rating >= 1 AND personal_rating <= 10),
	play_time_hours REAL,
	date_acquired TEXT,
	date_started TEXT,
	date_completed TEXT,
	notes TEXT,
	favorite BOOLEAN DEFAULT 0,
	created_at TEXT DEFAULT CURRENT_TIMESTAMP,
	updated_at TEXT DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (game_id) REFERENCES games (id) ON DELETE CASCADE,
	UNIQUE (game_id)
)`,
				`CREATE TABLE IF NOT EXISTS game_tags (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	tag_name TEXT NOT NULL UNIQUE,
	tag_color TEXT DEFAULT '#6366f1',
	tag_description TEXT,
	created_at TEXT DEFAULT CURRENT_TIMESTAMP,
	display_order INTEGER DEFAULT 0
)`,
				`CREATE TABLE IF NOT EXISTS game_tag_associations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	game_id INTEGER NOT NULL,
	tag_id INTEGER NOT NULL,
	created_at TEXT DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (game_id) REFERENCES games (id) ON DELETE CASCADE,
	FOREIGN KEY (tag_id) REFERENCES game_tags (id) ON DELETE CASCADE,
	UNIQUE (game_id, tag_id)
)`,
				`CREATE INDEX IF NOT EXISTS idx_gallery_metadata_game_id ON game_gallery_metadata (game_id)`,
				`CREATE INDEX IF NOT EXISTS idx_tag_associations_game_id ON game_tag_associations (game_id)`,
			},
		},
		{
			Version: 5,
			Name:    "games_artwork",
			Statements: []string{
				`ALTER TABLE games ADD COLUMN high_res_cover_url TEXT`,
				`ALTER TABLE games ADD COLUMN high_res_cover_path TEXT`,
				`ALTER TABLE games ADD COLUMN hero_image_url TEXT`,
				`ALTER TABLE games ADD COLUMN hero_image_path TEXT`,
				`ALTER TABLE games ADD COLUMN logo_image_url TEXT`,
				`ALTER TABLE games ADD COLUMN logo_image_path TEXT`,
				`ALTER TABLE games ADD COLUMN icon_image_url TEXT`,
				`ALTER TABLE games ADD COLUMN icon_image_path TEXT`,
				`ALTER TABLE games ADD COLUMN steamgriddb_id INTEGER`,
				`ALTER TABLE games ADD COLUMN artwork_last_updated TEXT`,
			},
		},
		{
			Version: 6,
			Name:    "create_alert_settings",
			Statements: []string{
				`CREATE TABLE IF NOT EXISTS game_alert_settings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	game_id INTEGER NOT NULL,
	enabled BOOLEAN DEFAULT 0,
	price_source VARCHAR(50) DEFAULT NULL,
	price_drop_threshold DECIMAL(5,2) DEFAULT NULL,
	price_increase_threshold DECIMAL(5,2) DEFAULT NULL,
	alert_price_threshold DECIMAL(10,2) DEFAULT NULL,
	alert_value_threshold DECIMAL(10,2) DEFAULT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (game_id) REFERENCES games (id) ON DELETE CASCADE,
	UNIQUE (game_id)
)`,
				`ALTER TABLE game_alert_settings ADD COLUMN price_region VARCHAR(10) DEFAULT 'PAL'`,
				`CREATE INDEX IF NOT EXISTS idx_game_alert_settings_game_id ON game_alert_settings (game_id)`,
			},
		},
		{
			Version: 7,
			Name:    "games_title_search",
			Statements: []string{
				`ALTER TABLE games ADD COLUMN title_search TEXT`,
				`CREATE INDEX IF NOT EXISTS idx_games_title_search ON games (title_search)`,
			},
		},
	}
}
