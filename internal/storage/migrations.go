package storage

// Migration represents a database migration
type Migration struct {
	Version     string
	Description string
	SQL         string
}

// migrationTableSQL records applied versions. The DDL is portable across
// sqlite and postgres.
const migrationTableSQL = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version VARCHAR(16) PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`

// GetSQLiteMigrations returns SQLite migration scripts
func GetSQLiteMigrations() []*Migration {
	return []*Migration{
		{
			Version:     "001",
			Description: "Create lots table",
			SQL: `
				CREATE TABLE IF NOT EXISTS lots (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					species TEXT NOT NULL,
					origin_region TEXT NOT NULL DEFAULT '',
					status TEXT NOT NULL,
					current_quantity_kg REAL NOT NULL DEFAULT 0,
					created_at TEXT NOT NULL,
					updated_at TEXT NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_lots_created_at ON lots(created_at);
			`,
		},
		{
			Version:     "002",
			Description: "Create ledger entries table",
			SQL: `
				CREATE TABLE IF NOT EXISTS ledger_entries (
					tx_id TEXT PRIMARY KEY,
					lot_id TEXT NOT NULL,
					sequence INTEGER NOT NULL,
					timestamp TEXT NOT NULL,
					event_type TEXT NOT NULL,
					event_id TEXT NOT NULL,
					previous_tx_id TEXT,
					content_hash TEXT NOT NULL,
					participants TEXT NOT NULL, -- JSON
					payload TEXT NOT NULL -- JSON
				);

				CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_lot_sequence ON ledger_entries(lot_id, sequence);
				CREATE INDEX IF NOT EXISTS idx_ledger_lot_timestamp ON ledger_entries(lot_id, timestamp);
				CREATE INDEX IF NOT EXISTS idx_ledger_event_id ON ledger_entries(event_id);
			`,
		},
		{
			Version:     "003",
			Description: "Create supply chain event tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS collection_events (
					id TEXT PRIMARY KEY,
					lot_id TEXT NOT NULL,
					collector_id TEXT NOT NULL,
					species TEXT NOT NULL,
					common_name TEXT NOT NULL DEFAULT '',
					part_used TEXT NOT NULL DEFAULT '',
					quantity_kg REAL NOT NULL,
					collection_date TEXT NOT NULL,
					location TEXT NOT NULL, -- JSON
					weather_conditions TEXT NOT NULL DEFAULT '',
					soil_type TEXT NOT NULL DEFAULT '',
					wild_harvested BOOLEAN NOT NULL DEFAULT FALSE,
					organic_certified BOOLEAN NOT NULL DEFAULT FALSE,
					fhir_metadata TEXT NOT NULL, -- JSON
					created_at TEXT NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_collection_lot ON collection_events(lot_id, collection_date);

				CREATE TABLE IF NOT EXISTS processing_events (
					id TEXT PRIMARY KEY,
					lot_id TEXT NOT NULL,
					processor_id TEXT NOT NULL,
					process_type TEXT NOT NULL,
					process_date TEXT NOT NULL,
					parameters TEXT NOT NULL, -- JSON
					input_quantity_kg REAL NOT NULL DEFAULT 0,
					output_quantity_kg REAL NOT NULL DEFAULT 0,
					yield_percentage REAL NOT NULL DEFAULT 0,
					equipment_id TEXT NOT NULL DEFAULT '',
					operator_id TEXT NOT NULL DEFAULT '',
					fhir_metadata TEXT NOT NULL, -- JSON
					created_at TEXT NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_processing_lot ON processing_events(lot_id, process_date);

				CREATE TABLE IF NOT EXISTS quality_tests (
					id TEXT PRIMARY KEY,
					lot_id TEXT NOT NULL,
					lab_id TEXT NOT NULL,
					test_date TEXT NOT NULL,
					test_type TEXT NOT NULL,
					parameters TEXT NOT NULL, -- JSON
					overall_status TEXT NOT NULL,
					certification_number TEXT NOT NULL DEFAULT '',
					certification_body TEXT NOT NULL DEFAULT '',
					lab_accreditation TEXT NOT NULL DEFAULT '',
					fhir_metadata TEXT NOT NULL, -- JSON
					created_at TEXT NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_quality_lot ON quality_tests(lot_id, test_date);

				CREATE TABLE IF NOT EXISTS packs (
					id TEXT PRIMARY KEY,
					lot_id TEXT NOT NULL,
					manufacturer_id TEXT NOT NULL,
					sku TEXT NOT NULL,
					product_name TEXT NOT NULL,
					batch_number TEXT NOT NULL,
					manufacture_date TEXT NOT NULL,
					expiry_date TEXT NOT NULL,
					net_weight TEXT NOT NULL DEFAULT '',
					ingredients TEXT NOT NULL, -- JSON
					dosage TEXT NOT NULL DEFAULT '',
					storage TEXT NOT NULL DEFAULT '',
					ayush_license TEXT NOT NULL DEFAULT '',
					gmp_certified BOOLEAN NOT NULL DEFAULT FALSE,
					fhir_metadata TEXT NOT NULL, -- JSON
					created_at TEXT NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_packs_lot ON packs(lot_id);
			`,
		},
		{
			Version:     "004",
			Description: "Create compliance thresholds table",
			SQL: `
				CREATE TABLE IF NOT EXISTS compliance_thresholds (
					id TEXT PRIMARY KEY,
					test_type TEXT NOT NULL,
					parameter TEXT NOT NULL,
					min_value REAL,
					max_value REAL,
					unit TEXT NOT NULL,
					regulatory_body TEXT NOT NULL DEFAULT '',
					standard TEXT NOT NULL DEFAULT '',
					created_at TEXT NOT NULL
				);

				CREATE UNIQUE INDEX IF NOT EXISTS idx_thresholds_key ON compliance_thresholds(test_type, parameter);
			`,
		},
	}
}

// GetPostgresMigrations returns PostgreSQL migration scripts
func GetPostgresMigrations() []*Migration {
	return []*Migration{
		{
			Version:     "001",
			Description: "Create lots table",
			SQL: `
				CREATE TABLE IF NOT EXISTS lots (
					id VARCHAR(255) PRIMARY KEY,
					name TEXT NOT NULL,
					species TEXT NOT NULL,
					origin_region TEXT NOT NULL DEFAULT '',
					status VARCHAR(32) NOT NULL,
					current_quantity_kg DOUBLE PRECISION NOT NULL DEFAULT 0,
					created_at VARCHAR(40) NOT NULL,
					updated_at VARCHAR(40) NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_lots_created_at ON lots(created_at);
			`,
		},
		{
			Version:     "002",
			Description: "Create ledger entries table",
			SQL: `
				CREATE TABLE IF NOT EXISTS ledger_entries (
					tx_id VARCHAR(64) PRIMARY KEY,
					lot_id VARCHAR(255) NOT NULL,
					sequence BIGINT NOT NULL,
					timestamp VARCHAR(40) NOT NULL,
					event_type VARCHAR(32) NOT NULL,
					event_id VARCHAR(255) NOT NULL,
					previous_tx_id VARCHAR(64),
					content_hash CHAR(64) NOT NULL,
					participants TEXT NOT NULL,
					payload TEXT NOT NULL,
					CONSTRAINT uq_ledger_lot_sequence UNIQUE (lot_id, sequence)
				);

				CREATE INDEX IF NOT EXISTS idx_ledger_lot_timestamp ON ledger_entries(lot_id, timestamp);
				CREATE INDEX IF NOT EXISTS idx_ledger_event_id ON ledger_entries(event_id);
			`,
		},
		{
			Version:     "003",
			Description: "Create supply chain event tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS collection_events (
					id VARCHAR(255) PRIMARY KEY,
					lot_id VARCHAR(255) NOT NULL,
					collector_id VARCHAR(255) NOT NULL,
					species TEXT NOT NULL,
					common_name TEXT NOT NULL DEFAULT '',
					part_used TEXT NOT NULL DEFAULT '',
					quantity_kg DOUBLE PRECISION NOT NULL,
					collection_date VARCHAR(40) NOT NULL,
					location TEXT NOT NULL,
					weather_conditions TEXT NOT NULL DEFAULT '',
					soil_type TEXT NOT NULL DEFAULT '',
					wild_harvested BOOLEAN NOT NULL DEFAULT FALSE,
					organic_certified BOOLEAN NOT NULL DEFAULT FALSE,
					fhir_metadata TEXT NOT NULL,
					created_at VARCHAR(40) NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_collection_lot ON collection_events(lot_id, collection_date);

				CREATE TABLE IF NOT EXISTS processing_events (
					id VARCHAR(255) PRIMARY KEY,
					lot_id VARCHAR(255) NOT NULL,
					processor_id VARCHAR(255) NOT NULL,
					process_type TEXT NOT NULL,
					process_date VARCHAR(40) NOT NULL,
					parameters TEXT NOT NULL,
					input_quantity_kg DOUBLE PRECISION NOT NULL DEFAULT 0,
					output_quantity_kg DOUBLE PRECISION NOT NULL DEFAULT 0,
					yield_percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
					equipment_id TEXT NOT NULL DEFAULT '',
					operator_id TEXT NOT NULL DEFAULT '',
					fhir_metadata TEXT NOT NULL,
					created_at VARCHAR(40) NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_processing_lot ON processing_events(lot_id, process_date);

				CREATE TABLE IF NOT EXISTS quality_tests (
					id VARCHAR(255) PRIMARY KEY,
					lot_id VARCHAR(255) NOT NULL,
					lab_id VARCHAR(255) NOT NULL,
					test_date VARCHAR(40) NOT NULL,
					test_type VARCHAR(64) NOT NULL,
					parameters TEXT NOT NULL,
					overall_status VARCHAR(16) NOT NULL,
					certification_number TEXT NOT NULL DEFAULT '',
					certification_body TEXT NOT NULL DEFAULT '',
					lab_accreditation TEXT NOT NULL DEFAULT '',
					fhir_metadata TEXT NOT NULL,
					created_at VARCHAR(40) NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_quality_lot ON quality_tests(lot_id, test_date);

				CREATE TABLE IF NOT EXISTS packs (
					id VARCHAR(255) PRIMARY KEY,
					lot_id VARCHAR(255) NOT NULL,
					manufacturer_id VARCHAR(255) NOT NULL,
					sku TEXT NOT NULL,
					product_name TEXT NOT NULL,
					batch_number TEXT NOT NULL,
					manufacture_date VARCHAR(40) NOT NULL,
					expiry_date VARCHAR(40) NOT NULL,
					net_weight TEXT NOT NULL DEFAULT '',
					ingredients TEXT NOT NULL,
					dosage TEXT NOT NULL DEFAULT '',
					storage TEXT NOT NULL DEFAULT '',
					ayush_license TEXT NOT NULL DEFAULT '',
					gmp_certified BOOLEAN NOT NULL DEFAULT FALSE,
					fhir_metadata TEXT NOT NULL,
					created_at VARCHAR(40) NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_packs_lot ON packs(lot_id);
			`,
		},
		{
			Version:     "004",
			Description: "Create compliance thresholds table",
			SQL: `
				CREATE TABLE IF NOT EXISTS compliance_thresholds (
					id VARCHAR(255) PRIMARY KEY,
					test_type VARCHAR(64) NOT NULL,
					parameter VARCHAR(128) NOT NULL,
					min_value DOUBLE PRECISION,
					max_value DOUBLE PRECISION,
					unit VARCHAR(32) NOT NULL,
					regulatory_body TEXT NOT NULL DEFAULT '',
					standard TEXT NOT NULL DEFAULT '',
					created_at VARCHAR(40) NOT NULL,
					CONSTRAINT uq_thresholds_key UNIQUE (test_type, parameter)
				);
			`,
		},
	}
}
