package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/ayutrace/internal/models"
	"github.com/smartdevs17/ayutrace/pkg/utils"
)

// timeLayout is fixed width so lexical order of stored values matches
// chronological order. Values are always written in UTC.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// dialect captures what differs between the SQL backends
type dialect struct {
	name              string
	driver            string
	numberedParams    bool
	isUniqueViolation func(error) bool
}

// sqlStore implements every data operation of Storage over database/sql.
// Backends embed it and supply Connect.
type sqlStore struct {
	db         *sql.DB
	config     *StorageConfig
	dialect    dialect
	logger     *logrus.Logger
	migrations []*Migration
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// rebind rewrites ? placeholders into $n for dialects that need it
func (s *sqlStore) rebind(query string) string {
	if !s.dialect.numberedParams {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$")
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) wrap(message string, err error) error {
	return utils.NewStorageError(message, err)
}

// Close closes the database connection
func (s *sqlStore) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		s.logger.WithField("dialect", s.dialect.name).Info("Database connection closed")
		return err
	}
	return nil
}

// Ping checks database connectivity
func (s *sqlStore) Ping() error {
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}
	return s.db.Ping()
}

// Migrate applies every migration not yet recorded in schema_migrations.
// Each migration and its version row commit in one transaction.
func (s *sqlStore) Migrate() error {
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}

	s.logger.WithField("dialect", s.dialect.name).Info("Starting database migrations")

	if _, err := s.db.Exec(migrationTableSQL); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to create migrations table", err.Error())
	}

	applied, err := s.appliedMigrations(context.Background())
	if err != nil {
		return err
	}

	pending := 0
	for _, migration := range s.migrations {
		if applied[migration.Version] {
			continue
		}
		s.logger.WithFields(logrus.Fields{
			"version":     migration.Version,
			"description": migration.Description,
		}).Debug("Applying migration")

		if err := s.applyMigration(migration); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase,
				fmt.Sprintf("Migration %s failed", migration.Version),
				err.Error())
		}
		pending++
	}

	s.logger.WithField("applied", pending).Info("Database migrations completed")
	return nil
}

func (s *sqlStore) applyMigration(migration *Migration) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(migration.SQL); err != nil {
		return err
	}
	record := s.rebind(`INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)`)
	if _, err := tx.Exec(record, migration.Version, migration.Description, formatTime(time.Now())); err != nil {
		return err
	}
	return tx.Commit()
}

// appliedMigrations returns the recorded migration versions
func (s *sqlStore) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, s.wrap("Failed to read applied migrations", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, s.wrap("Failed to read applied migrations", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

const ledgerColumns = `tx_id, lot_id, sequence, timestamp, event_type, event_id,
	previous_tx_id, content_hash, participants, payload`

// InsertLedgerEntry persists a single entry in one statement
func (s *sqlStore) InsertLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error {
	participants, err := json.Marshal(entry.Participants)
	if err != nil {
		return utils.WrapAppError(utils.ErrCodeInternal, "Failed to marshal participants", err)
	}
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return utils.WrapAppError(utils.ErrCodeInternal, "Failed to marshal ledger payload", err)
	}

	var previous interface{}
	if entry.PreviousTransactionID != nil {
		previous = *entry.PreviousTransactionID
	}

	query := s.rebind(`INSERT INTO ledger_entries (` + ledgerColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err = s.db.ExecContext(ctx, query,
		entry.TransactionID, entry.LotID, entry.Sequence, formatTime(entry.Timestamp),
		string(entry.EventType), entry.EventID, previous, entry.ContentHash,
		string(participants), string(payload))
	if err != nil {
		if s.dialect.isUniqueViolation(err) {
			return s.wrap("Ledger entry conflicts with an existing entry for this lot", err)
		}
		return s.wrap("Failed to insert ledger entry", err)
	}
	return nil
}

func scanLedgerEntry(row rowScanner) (*models.LedgerEntry, error) {
	var (
		entry        models.LedgerEntry
		timestamp    string
		eventType    string
		previous     sql.NullString
		participants string
		payload      string
	)

	if err := row.Scan(&entry.TransactionID, &entry.LotID, &entry.Sequence, &timestamp,
		&eventType, &entry.EventID, &previous, &entry.ContentHash, &participants, &payload); err != nil {
		return nil, err
	}

	ts, err := parseTime(timestamp)
	if err != nil {
		return nil, fmt.Errorf("invalid ledger timestamp %q: %w", timestamp, err)
	}
	entry.Timestamp = ts
	entry.EventType = models.EventType(eventType)
	if previous.Valid {
		prev := previous.String
		entry.PreviousTransactionID = &prev
	}
	if err := json.Unmarshal([]byte(participants), &entry.Participants); err != nil {
		return nil, fmt.Errorf("invalid participants: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &entry.Payload); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	return &entry, nil
}

// ListLedgerEntries returns a lot's entries ordered by (timestamp, sequence)
func (s *sqlStore) ListLedgerEntries(ctx context.Context, lotID string) ([]*models.LedgerEntry, error) {
	query := s.rebind(`SELECT ` + ledgerColumns + ` FROM ledger_entries
		WHERE lot_id = ? ORDER BY timestamp ASC, sequence ASC, tx_id ASC`)

	rows, err := s.db.QueryContext(ctx, query, lotID)
	if err != nil {
		return nil, s.wrap("Failed to query ledger entries", err)
	}
	defer rows.Close()

	entries := make([]*models.LedgerEntry, 0)
	for rows.Next() {
		entry, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, s.wrap("Failed to scan ledger entry", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("Failed to iterate ledger entries", err)
	}
	return entries, nil
}

// LatestLedgerEntry returns the entry with the greatest (timestamp, sequence)
func (s *sqlStore) LatestLedgerEntry(ctx context.Context, lotID string) (*models.LedgerEntry, error) {
	query := s.rebind(`SELECT ` + ledgerColumns + ` FROM ledger_entries
		WHERE lot_id = ? ORDER BY timestamp DESC, sequence DESC LIMIT 1`)

	entry, err := scanLedgerEntry(s.db.QueryRowContext(ctx, query, lotID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.wrap("Failed to get latest ledger entry", err)
	}
	return entry, nil
}

const lotColumns = `id, name, species, origin_region, status, current_quantity_kg, created_at, updated_at`

// CreateLot inserts a new lot
func (s *sqlStore) CreateLot(ctx context.Context, lot *models.Lot) error {
	query := s.rebind(`INSERT INTO lots (` + lotColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		lot.ID, lot.Name, lot.Species, lot.OriginRegion, string(lot.Status),
		lot.CurrentQuantityKg, formatTime(lot.CreatedAt), formatTime(lot.UpdatedAt))
	if err != nil {
		if s.dialect.isUniqueViolation(err) {
			return utils.NewConflictError("Lot", lot.ID)
		}
		return s.wrap("Failed to create lot", err)
	}
	return nil
}

func scanLot(row rowScanner) (*models.Lot, error) {
	var (
		lot       models.Lot
		status    string
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&lot.ID, &lot.Name, &lot.Species, &lot.OriginRegion, &status,
		&lot.CurrentQuantityKg, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	lot.Status = models.LotStatus(status)
	if lot.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if lot.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &lot, nil
}

// GetLot retrieves a lot by id
func (s *sqlStore) GetLot(ctx context.Context, id string) (*models.Lot, error) {
	query := s.rebind(`SELECT ` + lotColumns + ` FROM lots WHERE id = ?`)

	lot, err := scanLot(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.NewNotFoundError("Lot", id)
	}
	if err != nil {
		return nil, s.wrap("Failed to get lot", err)
	}
	return lot, nil
}

// ListLots returns every lot, newest first
func (s *sqlStore) ListLots(ctx context.Context) ([]*models.Lot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+lotColumns+` FROM lots ORDER BY created_at DESC`)
	if err != nil {
		return nil, s.wrap("Failed to query lots", err)
	}
	defer rows.Close()

	lots := make([]*models.Lot, 0)
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, s.wrap("Failed to scan lot", err)
		}
		lots = append(lots, lot)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("Failed to iterate lots", err)
	}
	return lots, nil
}

// UpdateLot applies status and quantity changes in a single statement so
// concurrent increments never lose an update
func (s *sqlStore) UpdateLot(ctx context.Context, id string, update models.LotUpdate) (*models.Lot, error) {
	var status interface{}
	if update.Status != nil {
		status = string(*update.Status)
	}
	delta := 0.0
	if update.QuantityDeltaKg != nil {
		delta = *update.QuantityDeltaKg
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, s.wrap("Failed to begin transaction", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, s.rebind(`UPDATE lots
		SET status = COALESCE(?, status),
			current_quantity_kg = current_quantity_kg + ?,
			updated_at = ?
		WHERE id = ?`), status, delta, formatTime(time.Now()), id)
	if err != nil {
		return nil, s.wrap("Failed to update lot", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, s.wrap("Failed to get affected rows", err)
	}
	if affected == 0 {
		return nil, utils.NewNotFoundError("Lot", id)
	}

	lot, err := scanLot(tx.QueryRowContext(ctx, s.rebind(`SELECT `+lotColumns+` FROM lots WHERE id = ?`), id))
	if err != nil {
		return nil, s.wrap("Failed to reload lot", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, s.wrap("Failed to commit transaction", err)
	}
	return lot, nil
}

// lotFilter appends a lot_id condition when lotID is set
func lotFilter(alias, lotID string) (string, []interface{}) {
	if lotID == "" {
		return "", nil
	}
	return " WHERE " + alias + ".lot_id = ?", []interface{}{lotID}
}

func marshalJSON(name string, v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", utils.WrapAppError(utils.ErrCodeInternal, "Failed to marshal "+name, err)
	}
	return string(data), nil
}

// SaveCollectionEvent inserts a collection event record
func (s *sqlStore) SaveCollectionEvent(ctx context.Context, event *models.CollectionEvent) error {
	location, err := marshalJSON("location", event.Location)
	if err != nil {
		return err
	}
	fhir, err := marshalJSON("FHIR metadata", event.FHIRMetadata)
	if err != nil {
		return err
	}

	query := s.rebind(`INSERT INTO collection_events
		(id, lot_id, collector_id, species, common_name, part_used, quantity_kg, collection_date,
		 location, weather_conditions, soil_type, wild_harvested, organic_certified, fhir_metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err = s.db.ExecContext(ctx, query,
		event.ID, event.LotID, event.CollectorID, event.Species, event.CommonName, event.PartUsed,
		event.QuantityKg, formatTime(event.CollectionDate), location, event.WeatherConditions,
		event.SoilType, event.WildHarvested, event.OrganicCertified, fhir, formatTime(event.CreatedAt))
	if err != nil {
		return s.wrap("Failed to save collection event", err)
	}
	return nil
}

// ListCollectionEvents returns collection events ordered by collection date
func (s *sqlStore) ListCollectionEvents(ctx context.Context, lotID string) ([]*models.CollectionEvent, error) {
	where, args := lotFilter("c", lotID)
	query := s.rebind(`SELECT c.id, c.lot_id, c.collector_id, c.species, c.common_name, c.part_used,
		c.quantity_kg, c.collection_date, c.location, c.weather_conditions, c.soil_type,
		c.wild_harvested, c.organic_certified, c.fhir_metadata, c.created_at, COALESCE(l.tx_id, '')
		FROM collection_events c
		LEFT JOIN ledger_entries l ON l.event_id = c.id AND l.lot_id = c.lot_id` + where + `
		ORDER BY c.collection_date ASC, c.created_at ASC`)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.wrap("Failed to query collection events", err)
	}
	defer rows.Close()

	events := make([]*models.CollectionEvent, 0)
	for rows.Next() {
		var (
			event          models.CollectionEvent
			collectionDate string
			location       string
			fhir           string
			createdAt      string
		)
		if err := rows.Scan(&event.ID, &event.LotID, &event.CollectorID, &event.Species,
			&event.CommonName, &event.PartUsed, &event.QuantityKg, &collectionDate, &location,
			&event.WeatherConditions, &event.SoilType, &event.WildHarvested, &event.OrganicCertified,
			&fhir, &createdAt, &event.BlockchainTxID); err != nil {
			return nil, s.wrap("Failed to scan collection event", err)
		}
		if err := decodeColumns(
			timeColumn(collectionDate, &event.CollectionDate),
			timeColumn(createdAt, &event.CreatedAt),
			jsonColumn(location, &event.Location),
			jsonColumn(fhir, &event.FHIRMetadata),
		); err != nil {
			return nil, s.wrap("Failed to decode collection event", err)
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("Failed to iterate collection events", err)
	}
	return events, nil
}

// SaveProcessingEvent inserts a processing event record
func (s *sqlStore) SaveProcessingEvent(ctx context.Context, event *models.ProcessingEvent) error {
	parameters, err := marshalJSON("processing parameters", event.Parameters)
	if err != nil {
		return err
	}
	fhir, err := marshalJSON("FHIR metadata", event.FHIRMetadata)
	if err != nil {
		return err
	}

	query := s.rebind(`INSERT INTO processing_events
		(id, lot_id, processor_id, process_type, process_date, parameters, input_quantity_kg,
		 output_quantity_kg, yield_percentage, equipment_id, operator_id, fhir_metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err = s.db.ExecContext(ctx, query,
		event.ID, event.LotID, event.ProcessorID, event.ProcessType, formatTime(event.ProcessDate),
		parameters, event.InputQuantityKg, event.OutputQuantityKg, event.YieldPercentage,
		event.EquipmentID, event.OperatorID, fhir, formatTime(event.CreatedAt))
	if err != nil {
		return s.wrap("Failed to save processing event", err)
	}
	return nil
}

// ListProcessingEvents returns processing events ordered by process date
func (s *sqlStore) ListProcessingEvents(ctx context.Context, lotID string) ([]*models.ProcessingEvent, error) {
	where, args := lotFilter("p", lotID)
	query := s.rebind(`SELECT p.id, p.lot_id, p.processor_id, p.process_type, p.process_date,
		p.parameters, p.input_quantity_kg, p.output_quantity_kg, p.yield_percentage,
		p.equipment_id, p.operator_id, p.fhir_metadata, p.created_at, COALESCE(l.tx_id, '')
		FROM processing_events p
		LEFT JOIN ledger_entries l ON l.event_id = p.id AND l.lot_id = p.lot_id` + where + `
		ORDER BY p.process_date ASC, p.created_at ASC`)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.wrap("Failed to query processing events", err)
	}
	defer rows.Close()

	events := make([]*models.ProcessingEvent, 0)
	for rows.Next() {
		var (
			event       models.ProcessingEvent
			processDate string
			parameters  string
			fhir        string
			createdAt   string
		)
		if err := rows.Scan(&event.ID, &event.LotID, &event.ProcessorID, &event.ProcessType,
			&processDate, &parameters, &event.InputQuantityKg, &event.OutputQuantityKg,
			&event.YieldPercentage, &event.EquipmentID, &event.OperatorID, &fhir, &createdAt,
			&event.BlockchainTxID); err != nil {
			return nil, s.wrap("Failed to scan processing event", err)
		}
		if err := decodeColumns(
			timeColumn(processDate, &event.ProcessDate),
			timeColumn(createdAt, &event.CreatedAt),
			jsonColumn(parameters, &event.Parameters),
			jsonColumn(fhir, &event.FHIRMetadata),
		); err != nil {
			return nil, s.wrap("Failed to decode processing event", err)
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("Failed to iterate processing events", err)
	}
	return events, nil
}

// SaveQualityTest inserts a quality test record
func (s *sqlStore) SaveQualityTest(ctx context.Context, test *models.QualityTestEvent) error {
	parameters, err := marshalJSON("test parameters", test.Parameters)
	if err != nil {
		return err
	}
	fhir, err := marshalJSON("FHIR metadata", test.FHIRMetadata)
	if err != nil {
		return err
	}

	query := s.rebind(`INSERT INTO quality_tests
		(id, lot_id, lab_id, test_date, test_type, parameters, overall_status,
		 certification_number, certification_body, lab_accreditation, fhir_metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err = s.db.ExecContext(ctx, query,
		test.ID, test.LotID, test.LabID, formatTime(test.TestDate), test.TestType, parameters,
		string(test.OverallStatus), test.CertificationNumber, test.CertificationBody,
		test.LabAccreditation, fhir, formatTime(test.CreatedAt))
	if err != nil {
		return s.wrap("Failed to save quality test", err)
	}
	return nil
}

// ListQualityTests returns quality tests ordered by test date
func (s *sqlStore) ListQualityTests(ctx context.Context, lotID string) ([]*models.QualityTestEvent, error) {
	where, args := lotFilter("q", lotID)
	query := s.rebind(`SELECT q.id, q.lot_id, q.lab_id, q.test_date, q.test_type, q.parameters,
		q.overall_status, q.certification_number, q.certification_body, q.lab_accreditation,
		q.fhir_metadata, q.created_at, COALESCE(l.tx_id, '')
		FROM quality_tests q
		LEFT JOIN ledger_entries l ON l.event_id = q.id AND l.lot_id = q.lot_id` + where + `
		ORDER BY q.test_date ASC, q.created_at ASC`)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.wrap("Failed to query quality tests", err)
	}
	defer rows.Close()

	tests := make([]*models.QualityTestEvent, 0)
	for rows.Next() {
		var (
			test       models.QualityTestEvent
			testDate   string
			parameters string
			status     string
			fhir       string
			createdAt  string
		)
		if err := rows.Scan(&test.ID, &test.LotID, &test.LabID, &testDate, &test.TestType,
			&parameters, &status, &test.CertificationNumber, &test.CertificationBody,
			&test.LabAccreditation, &fhir, &createdAt, &test.BlockchainTxID); err != nil {
			return nil, s.wrap("Failed to scan quality test", err)
		}
		test.OverallStatus = models.TestStatus(status)
		if err := decodeColumns(
			timeColumn(testDate, &test.TestDate),
			timeColumn(createdAt, &test.CreatedAt),
			jsonColumn(parameters, &test.Parameters),
			jsonColumn(fhir, &test.FHIRMetadata),
		); err != nil {
			return nil, s.wrap("Failed to decode quality test", err)
		}
		tests = append(tests, &test)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("Failed to iterate quality tests", err)
	}
	return tests, nil
}

const packColumns = `p.id, p.lot_id, p.manufacturer_id, p.sku, p.product_name, p.batch_number,
	p.manufacture_date, p.expiry_date, p.net_weight, p.ingredients, p.dosage, p.storage,
	p.ayush_license, p.gmp_certified, p.fhir_metadata, p.created_at, COALESCE(l.tx_id, '')`

// SavePack inserts a pack record
func (s *sqlStore) SavePack(ctx context.Context, pack *models.Pack) error {
	ingredients, err := marshalJSON("ingredients", pack.Ingredients)
	if err != nil {
		return err
	}
	fhir, err := marshalJSON("FHIR metadata", pack.FHIRMetadata)
	if err != nil {
		return err
	}

	query := s.rebind(`INSERT INTO packs
		(id, lot_id, manufacturer_id, sku, product_name, batch_number, manufacture_date,
		 expiry_date, net_weight, ingredients, dosage, storage, ayush_license, gmp_certified,
		 fhir_metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err = s.db.ExecContext(ctx, query,
		pack.ID, pack.LotID, pack.ManufacturerID, pack.SKU, pack.ProductName, pack.BatchNumber,
		formatTime(pack.ManufactureDate), formatTime(pack.ExpiryDate), pack.NetWeight, ingredients,
		pack.Dosage, pack.Storage, pack.AyushLicense, pack.GMPCertified, fhir, formatTime(pack.CreatedAt))
	if err != nil {
		if s.dialect.isUniqueViolation(err) {
			return utils.NewConflictError("Pack", pack.ID)
		}
		return s.wrap("Failed to save pack", err)
	}
	return nil
}

func scanPack(row rowScanner) (*models.Pack, error) {
	var (
		pack            models.Pack
		manufactureDate string
		expiryDate      string
		ingredients     string
		fhir            string
		createdAt       string
	)
	if err := row.Scan(&pack.ID, &pack.LotID, &pack.ManufacturerID, &pack.SKU, &pack.ProductName,
		&pack.BatchNumber, &manufactureDate, &expiryDate, &pack.NetWeight, &ingredients,
		&pack.Dosage, &pack.Storage, &pack.AyushLicense, &pack.GMPCertified, &fhir, &createdAt,
		&pack.BlockchainTxID); err != nil {
		return nil, err
	}
	if err := decodeColumns(
		timeColumn(manufactureDate, &pack.ManufactureDate),
		timeColumn(expiryDate, &pack.ExpiryDate),
		timeColumn(createdAt, &pack.CreatedAt),
		jsonColumn(ingredients, &pack.Ingredients),
		jsonColumn(fhir, &pack.FHIRMetadata),
	); err != nil {
		return nil, err
	}
	return &pack, nil
}

// GetPack retrieves a pack by id
func (s *sqlStore) GetPack(ctx context.Context, id string) (*models.Pack, error) {
	query := s.rebind(`SELECT ` + packColumns + ` FROM packs p
		LEFT JOIN ledger_entries l ON l.event_id = p.id AND l.lot_id = p.lot_id
		WHERE p.id = ?`)

	pack, err := scanPack(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.NewNotFoundError("Pack", id)
	}
	if err != nil {
		return nil, s.wrap("Failed to get pack", err)
	}
	return pack, nil
}

// ListPacks returns packs ordered by creation time
func (s *sqlStore) ListPacks(ctx context.Context, lotID string) ([]*models.Pack, error) {
	where, args := lotFilter("p", lotID)
	query := s.rebind(`SELECT ` + packColumns + ` FROM packs p
		LEFT JOIN ledger_entries l ON l.event_id = p.id AND l.lot_id = p.lot_id` + where + `
		ORDER BY p.created_at ASC`)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.wrap("Failed to query packs", err)
	}
	defer rows.Close()

	packs := make([]*models.Pack, 0)
	for rows.Next() {
		pack, err := scanPack(rows)
		if err != nil {
			return nil, s.wrap("Failed to scan pack", err)
		}
		packs = append(packs, pack)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("Failed to iterate packs", err)
	}
	return packs, nil
}

// UpsertThreshold inserts or replaces the threshold for (test type, parameter)
func (s *sqlStore) UpsertThreshold(ctx context.Context, threshold *models.ComplianceThreshold) error {
	query := s.rebind(`INSERT INTO compliance_thresholds
		(id, test_type, parameter, min_value, max_value, unit, regulatory_body, standard, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (test_type, parameter) DO UPDATE SET
			min_value = excluded.min_value,
			max_value = excluded.max_value,
			unit = excluded.unit,
			regulatory_body = excluded.regulatory_body,
			standard = excluded.standard`)

	_, err := s.db.ExecContext(ctx, query,
		threshold.ID, threshold.TestType, threshold.Parameter, threshold.MinValue, threshold.MaxValue,
		threshold.Unit, threshold.RegulatoryBody, threshold.Standard, formatTime(threshold.CreatedAt))
	if err != nil {
		return s.wrap("Failed to upsert compliance threshold", err)
	}
	return nil
}

// ListThresholds returns thresholds ordered by (test type, parameter)
func (s *sqlStore) ListThresholds(ctx context.Context, testType string) ([]*models.ComplianceThreshold, error) {
	query := `SELECT id, test_type, parameter, min_value, max_value, unit, regulatory_body, standard, created_at
		FROM compliance_thresholds`
	var args []interface{}
	if testType != "" {
		query += ` WHERE test_type = ?`
		args = append(args, testType)
	}
	query += ` ORDER BY test_type ASC, parameter ASC`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, s.wrap("Failed to query compliance thresholds", err)
	}
	defer rows.Close()

	thresholds := make([]*models.ComplianceThreshold, 0)
	for rows.Next() {
		var (
			threshold models.ComplianceThreshold
			minValue  sql.NullFloat64
			maxValue  sql.NullFloat64
			createdAt string
		)
		if err := rows.Scan(&threshold.ID, &threshold.TestType, &threshold.Parameter, &minValue,
			&maxValue, &threshold.Unit, &threshold.RegulatoryBody, &threshold.Standard, &createdAt); err != nil {
			return nil, s.wrap("Failed to scan compliance threshold", err)
		}
		if minValue.Valid {
			v := minValue.Float64
			threshold.MinValue = &v
		}
		if maxValue.Valid {
			v := maxValue.Float64
			threshold.MaxValue = &v
		}
		if threshold.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, s.wrap("Failed to decode compliance threshold", err)
		}
		thresholds = append(thresholds, &threshold)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("Failed to iterate compliance thresholds", err)
	}
	return thresholds, nil
}

// GetStorageStats returns row counts and the most recent ledger timestamp
func (s *sqlStore) GetStorageStats(ctx context.Context) (*StorageStats, error) {
	stats := &StorageStats{}

	counts := []struct {
		table string
		dest  *int64
	}{
		{"lots", &stats.TotalLots},
		{"ledger_entries", &stats.TotalLedgerEntries},
		{"quality_tests", &stats.TotalQualityTests},
		{"packs", &stats.TotalPacks},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dest); err != nil {
			return nil, s.wrap("Failed to count "+c.table, err)
		}
	}

	var latest sql.NullString
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(timestamp) FROM ledger_entries").Scan(&latest); err != nil {
		return nil, s.wrap("Failed to get latest ledger timestamp", err)
	}
	if latest.Valid {
		if ts, err := parseTime(latest.String); err == nil {
			stats.LatestEntry = &ts
		}
	}

	return stats, nil
}

// columnDecoder converts one raw column into its model field
type columnDecoder func() error

func timeColumn(raw string, dest *time.Time) columnDecoder {
	return func() error {
		t, err := parseTime(raw)
		if err != nil {
			return err
		}
		*dest = t
		return nil
	}
}

func jsonColumn(raw string, dest interface{}) columnDecoder {
	return func() error {
		return json.Unmarshal([]byte(raw), dest)
	}
}

func decodeColumns(decoders ...columnDecoder) error {
	for _, decode := range decoders {
		if err := decode(); err != nil {
			return err
		}
	}
	return nil
}
