package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrNotFound is returned when a listing id does not exist.
	ErrNotFound = errors.New("storage: not found")
)

const listingColumns = `id, title, description, location, price::text, distress_score, source, created_at, updated_at`

const (
	insertListingSQL = `INSERT INTO listings (
        title,
        description,
        location,
        price,
        distress_score,
        source
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    RETURNING ` + listingColumns + `;`

	updateListingSQL = `UPDATE listings
    SET title          = $2,
        description    = $3,
        location       = $4,
        price          = $5,
        distress_score = $6,
        updated_at     = NOW()
    WHERE id = $1
    RETURNING ` + listingColumns + `;`

	updateScoreSQL = `UPDATE listings
    SET distress_score = $2,
        updated_at     = NOW()
    WHERE id = $1;`

	getListingSQL = `SELECT ` + listingColumns + ` FROM listings WHERE id = $1;`

	listingExistsSQL = `SELECT EXISTS (
        SELECT 1 FROM listings
        WHERE title = $1
          AND lower(location) = lower($2)
    );`

	averagePriceSQL = `SELECT AVG(price)::text
    FROM listings
    WHERE lower(location) = lower($1);`

	listPreferencesSQL = `SELECT
        user_id,
        email,
        email_enabled,
        sms_enabled,
        phone_number,
        created_at,
        updated_at
    FROM notification_preferences
    ORDER BY user_id;`

	getOrCreatePreferenceSQL = `INSERT INTO notification_preferences (user_id)
    VALUES ($1)
    ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
    RETURNING user_id, email, email_enabled, sms_enabled, phone_number, created_at, updated_at;`

	upsertPreferenceSQL = `INSERT INTO notification_preferences (
        user_id,
        email,
        email_enabled,
        sms_enabled,
        phone_number
    ) VALUES (
        $1,$2,$3,$4,$5
    )
    ON CONFLICT (user_id) DO UPDATE
    SET email         = EXCLUDED.email,
        email_enabled = EXCLUDED.email_enabled,
        sms_enabled   = EXCLUDED.sms_enabled,
        phone_number  = EXCLUDED.phone_number,
        updated_at    = NOW()
    RETURNING user_id, email, email_enabled, sms_enabled, phone_number, created_at, updated_at;`

	insertDeliverySQL = `INSERT INTO notification_deliveries (
        event_id,
        listing_id,
        user_id,
        channel,
        message,
        sent,
        error
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    );`

	listRecentDeliveriesSQL = `SELECT
        id,
        event_id,
        listing_id,
        user_id,
        channel,
        message,
        sent,
        error,
        created_at
    FROM notification_deliveries
    ORDER BY created_at DESC
    LIMIT $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// ListingStore defines listing persistence plus the market average query.
type ListingStore interface {
	CreateListing(ctx context.Context, listing Listing) (Listing, error)
	UpdateListing(ctx context.Context, listing Listing) (Listing, error)
	UpdateScore(ctx context.Context, id int64, score float64) error
	GetListing(ctx context.Context, id int64) (Listing, error)
	ListListings(ctx context.Context, filter ListingFilter) ([]Listing, error)
	ListingExists(ctx context.Context, title, location string) (bool, error)
	AveragePrice(ctx context.Context, location string) (decimal.Decimal, bool, error)
}

// PreferenceStore defines notification preference persistence.
type PreferenceStore interface {
	ListPreferences(ctx context.Context) ([]NotificationPreference, error)
	GetOrCreatePreference(ctx context.Context, userID string) (NotificationPreference, error)
	UpsertPreference(ctx context.Context, pref NotificationPreference) (NotificationPreference, error)
}

// DeliveryStore defines operations for alert delivery auditing.
type DeliveryStore interface {
	InsertDelivery(ctx context.Context, record DeliveryRecord) error
	ListRecentDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to listings, preferences and deliveries.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// a failed unlock is released with the session anyway
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// CreateListing inserts a listing and returns the stored row.
func (s *Store) CreateListing(ctx context.Context, listing Listing) (Listing, error) {
	pool, err := s.getPool()
	if err != nil {
		return Listing{}, err
	}

	row := pool.QueryRow(ctx, insertListingSQL,
		listing.Title,
		listing.Description,
		listing.Location,
		listing.Price.String(),
		listing.DistressScore,
		listing.Source,
	)
	created, err := scanListing(row)
	if err != nil {
		return Listing{}, fmt.Errorf("insert listing: %w", err)
	}
	return created, nil
}

// UpdateListing overwrites the mutable fields of listing.ID.
func (s *Store) UpdateListing(ctx context.Context, listing Listing) (Listing, error) {
	pool, err := s.getPool()
	if err != nil {
		return Listing{}, err
	}

	row := pool.QueryRow(ctx, updateListingSQL,
		listing.ID,
		listing.Title,
		listing.Description,
		listing.Location,
		listing.Price.String(),
		listing.DistressScore,
	)
	updated, err := scanListing(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Listing{}, ErrNotFound
	}
	if err != nil {
		return Listing{}, fmt.Errorf("update listing: %w", err)
	}
	return updated, nil
}

// UpdateScore stores a recomputed distress score.
func (s *Store) UpdateScore(ctx context.Context, id int64, score float64) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	cmdTag, execErr := pool.Exec(ctx, updateScoreSQL, id, score)
	if execErr != nil {
		return fmt.Errorf("update score: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetListing loads a listing by id.
func (s *Store) GetListing(ctx context.Context, id int64) (Listing, error) {
	pool, err := s.getPool()
	if err != nil {
		return Listing{}, err
	}
	listing, err := scanListing(pool.QueryRow(ctx, getListingSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Listing{}, ErrNotFound
	}
	if err != nil {
		return Listing{}, fmt.Errorf("get listing: %w", err)
	}
	return listing, nil
}

// ListListings lists listings matching filter, newest first unless ByScore.
func (s *Store) ListListings(ctx context.Context, filter ListingFilter) ([]Listing, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	query, args := buildListQuery(filter)
	rows, queryErr := pool.Query(ctx, query, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("list listings: %w", queryErr)
	}
	defer rows.Close()

	listings := make([]Listing, 0)
	for rows.Next() {
		listing, scanErr := scanListing(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		listings = append(listings, listing)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return listings, nil
}

func buildListQuery(filter ListingFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if filter.Location != "" {
		args = append(args, filter.Location)
		where = append(where, fmt.Sprintf("lower(location) = lower($%d)", len(args)))
	}
	if filter.MinScore != nil {
		args = append(args, *filter.MinScore)
		where = append(where, fmt.Sprintf("distress_score >= $%d", len(args)))
	}

	var b strings.Builder
	b.WriteString("SELECT " + listingColumns + " FROM listings")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	if filter.ByScore {
		b.WriteString(" ORDER BY distress_score DESC, id DESC")
	} else {
		b.WriteString(" ORDER BY created_at DESC, id DESC")
	}
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		b.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}
	return b.String(), args
}

// ListingExists reports whether a listing with the same title exists at
// location (case-insensitive).
func (s *Store) ListingExists(ctx context.Context, title, location string) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}
	var exists bool
	if scanErr := pool.QueryRow(ctx, listingExistsSQL, title, location).Scan(&exists); scanErr != nil {
		return false, fmt.Errorf("listing exists: %w", scanErr)
	}
	return exists, nil
}

// AveragePrice returns AVG(price) over listings at location. ok is false
// when there are no comparable rows.
func (s *Store) AveragePrice(ctx context.Context, location string) (decimal.Decimal, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return decimal.Zero, false, err
	}
	var avg sql.NullString
	if scanErr := pool.QueryRow(ctx, averagePriceSQL, location).Scan(&avg); scanErr != nil {
		return decimal.Zero, false, fmt.Errorf("average price: %w", scanErr)
	}
	if !avg.Valid {
		return decimal.Zero, false, nil
	}
	value, convErr := decimal.NewFromString(avg.String)
	if convErr != nil {
		return decimal.Zero, false, fmt.Errorf("parse average price: %w", convErr)
	}
	return value, true, nil
}

// ListPreferences returns every notification preference record.
func (s *Store) ListPreferences(ctx context.Context) ([]NotificationPreference, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listPreferencesSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list preferences: %w", queryErr)
	}
	defer rows.Close()

	prefs := make([]NotificationPreference, 0)
	for rows.Next() {
		pref, scanErr := scanPreference(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		prefs = append(prefs, pref)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return prefs, nil
}

// GetOrCreatePreference returns the user's preference, creating the default
// record on first access.
func (s *Store) GetOrCreatePreference(ctx context.Context, userID string) (NotificationPreference, error) {
	pool, err := s.getPool()
	if err != nil {
		return NotificationPreference{}, err
	}
	pref, err := scanPreference(pool.QueryRow(ctx, getOrCreatePreferenceSQL, userID))
	if err != nil {
		return NotificationPreference{}, fmt.Errorf("get or create preference: %w", err)
	}
	return pref, nil
}

// UpsertPreference stores the user's channel opt-ins.
func (s *Store) UpsertPreference(ctx context.Context, pref NotificationPreference) (NotificationPreference, error) {
	pool, err := s.getPool()
	if err != nil {
		return NotificationPreference{}, err
	}

	var phone interface{}
	if pref.PhoneNumber != nil {
		phone = *pref.PhoneNumber
	}

	stored, err := scanPreference(pool.QueryRow(ctx, upsertPreferenceSQL,
		pref.UserID,
		pref.Email,
		pref.EmailEnabled,
		pref.SMSEnabled,
		phone,
	))
	if err != nil {
		return NotificationPreference{}, fmt.Errorf("upsert preference: %w", err)
	}
	return stored, nil
}

// InsertDelivery persists a delivery attempt.
func (s *Store) InsertDelivery(ctx context.Context, record DeliveryRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var errMsg interface{}
	if record.Error != nil {
		errMsg = *record.Error
	}

	if _, execErr := pool.Exec(ctx, insertDeliverySQL,
		record.EventID,
		record.ListingID,
		record.UserID,
		record.Channel,
		record.Message,
		record.Sent,
		errMsg,
	); execErr != nil {
		return fmt.Errorf("insert delivery: %w", execErr)
	}
	return nil
}

// ListRecentDeliveries lists the most recent delivery attempts.
func (s *Store) ListRecentDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentDeliveriesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent deliveries: %w", queryErr)
	}
	defer rows.Close()

	records := make([]DeliveryRecord, 0, limit)
	for rows.Next() {
		var (
			rec    DeliveryRecord
			errMsg sql.NullString
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.EventID,
			&rec.ListingID,
			&rec.UserID,
			&rec.Channel,
			&rec.Message,
			&rec.Sent,
			&errMsg,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		if errMsg.Valid {
			msg := errMsg.String
			rec.Error = &msg
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

func scanListing(row pgx.Row) (Listing, error) {
	var (
		listing  Listing
		priceStr string
	)
	if err := row.Scan(
		&listing.ID,
		&listing.Title,
		&listing.Description,
		&listing.Location,
		&priceStr,
		&listing.DistressScore,
		&listing.Source,
		&listing.CreatedAt,
		&listing.UpdatedAt,
	); err != nil {
		return Listing{}, err
	}

	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return Listing{}, fmt.Errorf("parse price: %w", err)
	}
	listing.Price = price
	return listing, nil
}

func scanPreference(row pgx.Row) (NotificationPreference, error) {
	var (
		pref  NotificationPreference
		phone sql.NullString
	)
	if err := row.Scan(
		&pref.UserID,
		&pref.Email,
		&pref.EmailEnabled,
		&pref.SMSEnabled,
		&phone,
		&pref.CreatedAt,
		&pref.UpdatedAt,
	); err != nil {
		return NotificationPreference{}, err
	}
	if phone.Valid {
		value := phone.String
		pref.PhoneNumber = &value
	}
	return pref, nil
}

var (
	_ ListingStore    = (*Store)(nil)
	_ PreferenceStore = (*Store)(nil)
	_ DeliveryStore   = (*Store)(nil)
	_ AdvisoryLocker  = (*Store)(nil)
)
