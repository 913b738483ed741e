package config

// Performance groups the pragma-shaped tuning knobs applied when the schema
// is created.
type Performance struct {
	CacheSize   int    `json:"cache_size,omitempty" xml:"cache_size,omitempty"`
	PageSize    int    `json:"page_size,omitempty" xml:"page_size,omitempty"`
	JournalMode string `json:"journal_mode,omitempty" xml:"journal_mode,omitempty"`
	Synchronous string `json:"synchronous,omitempty" xml:"synchronous,omitempty"`
}

// Features toggles optional engine capabilities.
type Features struct {
	EnableForeignKeys    bool `json:"enable_foreign_keys,omitempty" xml:"enable_foreign_keys,omitempty"`
	EnableTriggers       bool `json:"enable_triggers,omitempty" xml:"enable_triggers,omitempty"`
	EnableFullTextSearch bool `json:"enable_full_text_search,omitempty" xml:"enable_full_text_search,omitempty"`
}

// Database is the init/seed document's "database" root.
type Database struct {
	CreateSchema   bool `json:"create_schema" xml:"create_schema"`
	SeedData       bool `json:"seed_data" xml:"seed_data"`
	RunMigrations  bool `json:"run_migrations" xml:"run_migrations"`
	ValidateSchema bool `json:"validate_schema" xml:"validate_schema"`

	MigrationDirectory string `json:"migration_directory,omitempty" xml:"migration_directory,omitempty"`
	SeedDataFile       string `json:"seed_data_file,omitempty" xml:"seed_data_file,omitempty"`

	Performance Performance `json:"performance,omitempty" xml:"performance,omitempty"`
	Features    Features    `json:"features,omitempty" xml:"features,omitempty"`

	RequiredTables []string `json:"required_tables,omitempty" xml:"required_tables>table,omitempty"`
}

// Document is the top-level init/seed configuration document.
type Document struct {
	Database Database `json:"database" xml:"database"`
}

// boolOverlay mirrors Database's boolean fields as pointers so a layer's
// parse can tell "explicitly set to false" apart from "absent from this
// layer" — a plain bool can't carry that distinction, and merge needs it to
// let a later layer turn off a default-on toggle.
type boolOverlay struct {
	CreateSchema   *bool `json:"create_schema" xml:"create_schema"`
	SeedData       *bool `json:"seed_data" xml:"seed_data"`
	RunMigrations  *bool `json:"run_migrations" xml:"run_migrations"`
	ValidateSchema *bool `json:"validate_schema" xml:"validate_schema"`

	Features struct {
		EnableForeignKeys    *bool `json:"enable_foreign_keys" xml:"enable_foreign_keys"`
		EnableTriggers       *bool `json:"enable_triggers" xml:"enable_triggers"`
		EnableFullTextSearch *bool `json:"enable_full_text_search" xml:"enable_full_text_search"`
	} `json:"features" xml:"features"`
}

// documentOverlay is the envelope boolOverlay is decoded through; it mirrors
// Document's shape so the same JSON/XML bytes can be unmarshaled into it
// independently of the main Document decode.
type documentOverlay struct {
	Database boolOverlay `json:"database" xml:"database"`
}

// DefaultDocument returns the built-in defaults every load starts from.
func DefaultDocument() Document {
	return Document{
		Database: Database{
			CreateSchema:        true,
			SeedData:            false,
			RunMigrations:       true,
			ValidateSchema:      true,
			MigrationDirectory: "migrations",
			Performance: Performance{
				CacheSize:   2000,
				PageSize:    4096,
				JournalMode: "WAL",
				Synchronous: "NORMAL",
			},
			Features: Features{
				EnableForeignKeys: true,
			},
		},
	}
}

// PoolConfig is the pool-sizing document consumed (not produced) by config
// loading, mirrored into a db.PoolConfig by the caller.
type PoolConfig struct {
	MinConnections       int  `json:"min_connections"`
	MaxConnections       int  `json:"max_connections"`
	AcquireTimeoutMS     int  `json:"acquire_timeout_ms"`
	HealthCheckEnabled   bool `json:"health_check_enabled"`
	HealthCheckIntervalS int  `json:"health_check_interval_s"`
	IdleEvictAfterS      int  `json:"idle_evict_after_s"`
}

// DefaultPoolConfig returns the built-in pool sizing defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MinConnections:       1,
		MaxConnections:       4,
		AcquireTimeoutMS:     5000,
		HealthCheckEnabled:   true,
		HealthCheckIntervalS: 30,
		IdleEvictAfterS:      300,
	}
}
