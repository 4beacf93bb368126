package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/elonfeng/paperdigest/pkg/source"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrNotSent is returned when a read/interested flag is set on a delivery
// that has not been sent yet.
var ErrNotSent = errors.New("delivery not sent")

// Item is a canonical deduplicated paper record.
type Item struct {
	ID           int64             `db:"id" json:"id"`
	Source       source.SourceType `db:"source" json:"source"`
	ExternalID   string            `db:"external_id" json:"external_id"`
	Title        string            `db:"title" json:"title"`
	Authors      []string          `db:"-" json:"authors"`
	Abstract     string            `db:"abstract" json:"abstract"`
	Keywords     []string          `db:"-" json:"keywords"`
	PublishedAt  time.Time         `db:"published_at" json:"published_at"`
	Venue        string            `db:"venue" json:"venue"`
	AbsURL       string            `db:"abs_url" json:"abs_url"`
	PDFURL       string            `db:"pdf_url" json:"pdf_url"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time         `db:"updated_at" json:"updated_at"`
	AuthorsJSON  string            `db:"authors" json:"-"`
	KeywordsJSON string            `db:"keywords" json:"-"`
}

// Profile is a named topical filter.
type Profile struct {
	ID             int64     `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Categories     []string  `db:"-" json:"categories"`
	Keywords       []string  `db:"-" json:"keywords"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	CategoriesJSON string    `db:"categories" json:"-"`
	KeywordsJSON   string    `db:"keywords" json:"-"`
}

// Summary is generated briefing text for one item under one generator tag.
type Summary struct {
	ID           int64     `db:"id" json:"id"`
	ItemID       int64     `db:"item_id" json:"item_id"`
	Content      string    `db:"content" json:"content"`
	GeneratorTag string    `db:"generator_tag" json:"generator_tag"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Subscriber is a delivery target.
type Subscriber struct {
	ID           int64     `db:"id" json:"id"`
	Identity     string    `db:"identity" json:"identity"`
	Profiles     []string  `db:"-" json:"profiles"`
	DailyLimit   int       `db:"daily_limit" json:"daily_limit"`
	HistoryDays  int       `db:"history_days" json:"history_days"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
	ProfilesJSON string    `db:"profiles" json:"-"`
}

// Delivery tracks send/read/interest state for one (subscriber, summary) pair.
type Delivery struct {
	ID           int64      `db:"id" json:"id"`
	SubscriberID int64      `db:"subscriber_id" json:"subscriber_id"`
	SummaryID    int64      `db:"summary_id" json:"summary_id"`
	Sent         bool       `db:"sent" json:"sent"`
	SentAt       *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	Read         bool       `db:"read" json:"read"`
	ReadAt       *time.Time `db:"read_at" json:"read_at,omitempty"`
	Interested   bool       `db:"interested" json:"interested"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// SummaryWithItem joins a summary with its underlying item.
type SummaryWithItem struct {
	Summary Summary
	Item    Item
}

// PendingDelivery joins an unsent delivery with its summary and item.
type PendingDelivery struct {
	Delivery Delivery
	Summary  Summary
	Item     Item
}

// DeliveryStat aggregates delivery counts per subscriber.
type DeliveryStat struct {
	Identity string `db:"identity"`
	Pending  int    `db:"pending"`
	Sent     int    `db:"sent"`
}

// Store is the persistence interface. The process owning a Store is assumed
// to be the only writer.
type Store interface {
	InsertItem(ctx context.Context, item *Item) (created bool, err error)
	GetItem(ctx context.Context, id int64) (*Item, error)
	ListItemsSince(ctx context.Context, since time.Time, limit int) ([]Item, error)
	CountItemsBySource(ctx context.Context) (map[source.SourceType]int, error)

	UpsertProfile(ctx context.Context, p *Profile) error
	ListActiveProfiles(ctx context.Context) ([]Profile, error)

	InsertSummary(ctx context.Context, s *Summary) error
	GetSummaryByItem(ctx context.Context, itemID int64, tag string) (*Summary, error)
	ListItemsNeedingSummary(ctx context.Context, tag string, since time.Time, limit int) ([]Item, error)
	CountSummariesByTag(ctx context.Context) (map[string]int, error)
	ListSummaries(ctx context.Context, since time.Time, limit int) ([]SummaryWithItem, error)

	UpsertSubscriber(ctx context.Context, sub *Subscriber) error
	GetSubscriber(ctx context.Context, id int64) (*Subscriber, error)
	ListActiveSubscribers(ctx context.Context) ([]Subscriber, error)

	InsertDelivery(ctx context.Context, subscriberID, summaryID int64, now time.Time) (created bool, err error)
	GetDelivery(ctx context.Context, id int64) (*Delivery, error)
	ListUnallocatedSummaries(ctx context.Context, subscriberID int64, since time.Time) ([]SummaryWithItem, error)
	ListPendingDeliveries(ctx context.Context, subscriberID int64, limit int) ([]PendingDelivery, error)
	CountSentSince(ctx context.Context, subscriberID int64, since time.Time) (int, error)
	MarkSent(ctx context.Context, deliveryID int64, now time.Time) error
	MarkRead(ctx context.Context, deliveryID int64, now time.Time) error
	MarkInterested(ctx context.Context, deliveryID int64) error
	ListDeliveryStats(ctx context.Context) ([]DeliveryStat, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InsertItem stores a new item or, when (source, external_id) already exists,
// refreshes the mutable metadata of the existing row. Returns whether a new
// row was created; a collision is a normal outcome, not an error.
func (s *SQLiteStore) InsertItem(ctx context.Context, item *Item) (bool, error) {
	authorsJSON, _ := json.Marshal(item.Authors)
	keywordsJSON, _ := json.Marshal(item.Keywords)

	var existingID int64
	err := s.db.GetContext(ctx, &existingID,
		"SELECT id FROM items WHERE source = ? AND external_id = ?",
		item.Source, item.ExternalID)
	switch {
	case err == nil:
		_, err = s.db.ExecContext(ctx, `
			UPDATE items SET abstract = ?, keywords = ?, pdf_url = ?, updated_at = ?
			WHERE id = ?
		`, item.Abstract, string(keywordsJSON), item.PDFURL, time.Now().UTC(), existingID)
		if err != nil {
			return false, fmt.Errorf("refresh item %s/%s: %w", item.Source, item.ExternalID, err)
		}
		item.ID = existingID
		return false, nil
	case errors.Is(err, sql.ErrNoRows):
		// fall through to insert
	default:
		return false, fmt.Errorf("lookup item %s/%s: %w", item.Source, item.ExternalID, err)
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO items (source, external_id, title, authors, abstract, keywords, published_at, venue, abs_url, pdf_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.Source, item.ExternalID, item.Title, string(authorsJSON), item.Abstract,
		string(keywordsJSON), item.PublishedAt, item.Venue, item.AbsURL, item.PDFURL, now, now)
	if err != nil {
		return false, fmt.Errorf("insert item %s/%s: %w", item.Source, item.ExternalID, err)
	}
	item.ID, _ = res.LastInsertId()
	item.CreatedAt = now
	item.UpdatedAt = now
	return true, nil
}

func (s *SQLiteStore) GetItem(ctx context.Context, id int64) (*Item, error) {
	var item Item
	err := s.db.GetContext(ctx, &item, "SELECT * FROM items WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item %d: %w", id, err)
	}
	decodeItem(&item)
	return &item, nil
}

func (s *SQLiteStore) ListItemsSince(ctx context.Context, since time.Time, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = 100
	}
	query := "SELECT * FROM items WHERE 1=1"
	var args []any
	if !since.IsZero() {
		query += " AND published_at >= ?"
		args = append(args, since)
	}
	query += " ORDER BY published_at DESC LIMIT ?"
	args = append(args, limit)

	var items []Item
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	for i := range items {
		decodeItem(&items[i])
	}
	return items, nil
}

func (s *SQLiteStore) CountItemsBySource(ctx context.Context) (map[source.SourceType]int, error) {
	rows, err := s.db.QueryxContext(ctx, "SELECT source, COUNT(*) as cnt FROM items GROUP BY source")
	if err != nil {
		return nil, fmt.Errorf("count items by source: %w", err)
	}
	defer rows.Close()

	counts := make(map[source.SourceType]int)
	for rows.Next() {
		var src string
		var cnt int
		if err := rows.Scan(&src, &cnt); err != nil {
			return nil, err
		}
		counts[source.SourceType(src)] = cnt
	}
	return counts, rows.Err()
}

// UpsertProfile inserts a profile or updates the mutable keyword/category
// sets of an existing one, keyed by name.
func (s *SQLiteStore) UpsertProfile(ctx context.Context, p *Profile) error {
	categoriesJSON, _ := json.Marshal(p.Categories)
	keywordsJSON, _ := json.Marshal(p.Keywords)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (name, categories, keywords, active, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			categories = excluded.categories,
			keywords = excluded.keywords,
			active = excluded.active
	`, p.Name, string(categoriesJSON), string(keywordsJSON), p.Active, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert profile %s: %w", p.Name, err)
	}
	return s.db.GetContext(ctx, &p.ID, "SELECT id FROM profiles WHERE name = ?", p.Name)
}

func (s *SQLiteStore) ListActiveProfiles(ctx context.Context) ([]Profile, error) {
	var profiles []Profile
	err := s.db.SelectContext(ctx, &profiles,
		"SELECT * FROM profiles WHERE active = 1 ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	for i := range profiles {
		json.Unmarshal([]byte(profiles[i].CategoriesJSON), &profiles[i].Categories)
		json.Unmarshal([]byte(profiles[i].KeywordsJSON), &profiles[i].Keywords)
	}
	return profiles, nil
}

// InsertSummary stores a summary; if a row already exists for the same
// (item, generator_tag) the existing row wins and is loaded back into s.
func (s *SQLiteStore) InsertSummary(ctx context.Context, sum *Summary) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO summaries (item_id, content, generator_tag, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(item_id, generator_tag) DO NOTHING
	`, sum.ItemID, sum.Content, sum.GeneratorTag, now)
	if err != nil {
		return fmt.Errorf("insert summary item %d: %w", sum.ItemID, err)
	}

	existing, err := s.GetSummaryByItem(ctx, sum.ItemID, sum.GeneratorTag)
	if err != nil {
		return err
	}
	*sum = *existing
	return nil
}

func (s *SQLiteStore) GetSummaryByItem(ctx context.Context, itemID int64, tag string) (*Summary, error) {
	var sum Summary
	err := s.db.GetContext(ctx, &sum,
		"SELECT * FROM summaries WHERE item_id = ? AND generator_tag = ?", itemID, tag)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get summary item %d tag %s: %w", itemID, tag, err)
	}
	return &sum, nil
}

func (s *SQLiteStore) ListItemsNeedingSummary(ctx context.Context, tag string, since time.Time, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = 200
	}
	var items []Item
	err := s.db.SelectContext(ctx, &items, `
		SELECT i.* FROM items i
		LEFT JOIN summaries s ON s.item_id = i.id AND s.generator_tag = ?
		WHERE s.id IS NULL AND i.published_at >= ?
		ORDER BY i.published_at DESC
		LIMIT ?
	`, tag, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list items needing summary: %w", err)
	}
	for i := range items {
		decodeItem(&items[i])
	}
	return items, nil
}

func (s *SQLiteStore) CountSummariesByTag(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryxContext(ctx, "SELECT generator_tag, COUNT(*) as cnt FROM summaries GROUP BY generator_tag")
	if err != nil {
		return nil, fmt.Errorf("count summaries: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var tag string
		var cnt int
		if err := rows.Scan(&tag, &cnt); err != nil {
			return nil, err
		}
		counts[tag] = cnt
	}
	return counts, rows.Err()
}

func (s *SQLiteStore) ListSummaries(ctx context.Context, since time.Time, limit int) ([]SummaryWithItem, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT ` + summaryItemColumns + `
		FROM summaries s JOIN items i ON i.id = s.item_id
		WHERE 1=1`
	var args []any
	if !since.IsZero() {
		query += " AND i.published_at >= ?"
		args = append(args, since)
	}
	query += " ORDER BY i.published_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()
	return scanSummaryItems(rows)
}

// UpsertSubscriber inserts a subscriber or updates the mutable settings of
// an existing one, keyed by transport identity.
func (s *SQLiteStore) UpsertSubscriber(ctx context.Context, sub *Subscriber) error {
	profilesJSON, _ := json.Marshal(sub.Profiles)
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscribers (identity, profiles, daily_limit, history_days, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET
			profiles = excluded.profiles,
			daily_limit = excluded.daily_limit,
			history_days = excluded.history_days,
			active = excluded.active,
			updated_at = excluded.updated_at
	`, sub.Identity, string(profilesJSON), sub.DailyLimit, sub.HistoryDays, sub.Active, now, now)
	if err != nil {
		return fmt.Errorf("upsert subscriber %s: %w", sub.Identity, err)
	}
	return s.db.GetContext(ctx, &sub.ID, "SELECT id FROM subscribers WHERE identity = ?", sub.Identity)
}

func (s *SQLiteStore) GetSubscriber(ctx context.Context, id int64) (*Subscriber, error) {
	var sub Subscriber
	err := s.db.GetContext(ctx, &sub, "SELECT * FROM subscribers WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subscriber %d: %w", id, err)
	}
	json.Unmarshal([]byte(sub.ProfilesJSON), &sub.Profiles)
	return &sub, nil
}

func (s *SQLiteStore) ListActiveSubscribers(ctx context.Context) ([]Subscriber, error) {
	var subs []Subscriber
	err := s.db.SelectContext(ctx, &subs,
		"SELECT * FROM subscribers WHERE active = 1 ORDER BY identity")
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	for i := range subs {
		json.Unmarshal([]byte(subs[i].ProfilesJSON), &subs[i].Profiles)
	}
	return subs, nil
}

// InsertDelivery creates an unsent delivery for (subscriber, summary).
// Returns false without error when the pair already exists; allocation is
// additive and must never touch existing rows.
func (s *SQLiteStore) InsertDelivery(ctx context.Context, subscriberID, summaryID int64, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO deliveries (subscriber_id, summary_id, sent, read, interested, created_at)
		VALUES (?, ?, 0, 0, 0, ?)
		ON CONFLICT(subscriber_id, summary_id) DO NOTHING
	`, subscriberID, summaryID, now.UTC())
	if err != nil {
		return false, fmt.Errorf("insert delivery sub %d summary %d: %w", subscriberID, summaryID, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLiteStore) GetDelivery(ctx context.Context, id int64) (*Delivery, error) {
	var d Delivery
	err := s.db.GetContext(ctx, &d, "SELECT * FROM deliveries WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get delivery %d: %w", id, err)
	}
	return &d, nil
}

// ListUnallocatedSummaries returns summaries of items published at or after
// since that have no delivery row for the subscriber yet.
func (s *SQLiteStore) ListUnallocatedSummaries(ctx context.Context, subscriberID int64, since time.Time) ([]SummaryWithItem, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT `+summaryItemColumns+`
		FROM summaries s
		JOIN items i ON i.id = s.item_id
		WHERE i.published_at >= ?
		  AND s.id NOT IN (SELECT summary_id FROM deliveries WHERE subscriber_id = ?)
		ORDER BY i.published_at DESC
	`, since, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("list unallocated summaries sub %d: %w", subscriberID, err)
	}
	defer rows.Close()
	return scanSummaryItems(rows)
}

// ListPendingDeliveries returns unsent deliveries for a subscriber ordered
// by the underlying item's published_at, most recent first.
func (s *SQLiteStore) ListPendingDeliveries(ctx context.Context, subscriberID int64, limit int) ([]PendingDelivery, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryxContext(ctx, `
		SELECT d.id AS d_id, d.subscriber_id, d.summary_id, d.sent, d.sent_at, d.read, d.read_at, d.interested, d.created_at AS d_created_at,
		       `+summaryItemColumns+`
		FROM deliveries d
		JOIN summaries s ON s.id = d.summary_id
		JOIN items i ON i.id = s.item_id
		WHERE d.subscriber_id = ? AND d.sent = 0
		ORDER BY i.published_at DESC
		LIMIT ?
	`, subscriberID, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending deliveries sub %d: %w", subscriberID, err)
	}
	defer rows.Close()

	var out []PendingDelivery
	for rows.Next() {
		var row pendingDeliveryRow
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("scan pending delivery: %w", err)
		}
		out = append(out, row.toPendingDelivery())
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CountSentSince(ctx context.Context, subscriberID int64, since time.Time) (int, error) {
	var cnt int
	err := s.db.GetContext(ctx, &cnt,
		"SELECT COUNT(*) FROM deliveries WHERE subscriber_id = ? AND sent = 1 AND sent_at >= ?",
		subscriberID, since)
	if err != nil {
		return 0, fmt.Errorf("count sent sub %d: %w", subscriberID, err)
	}
	return cnt, nil
}

// MarkSent flips a pending delivery to sent. Calling it on an already-sent
// delivery is a no-op; sent_at keeps its original value.
func (s *SQLiteStore) MarkSent(ctx context.Context, deliveryID int64, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE deliveries SET sent = 1, sent_at = ? WHERE id = ? AND sent = 0",
		now.UTC(), deliveryID)
	if err != nil {
		return fmt.Errorf("mark sent %d: %w", deliveryID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	// No row changed: either already sent (fine) or missing.
	if _, err := s.GetDelivery(ctx, deliveryID); err != nil {
		return err
	}
	return nil
}

// MarkRead flags a sent delivery as read. Idempotent; returns ErrNotSent for
// a delivery that has not been sent yet.
func (s *SQLiteStore) MarkRead(ctx context.Context, deliveryID int64, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE deliveries SET read = 1, read_at = ? WHERE id = ? AND sent = 1 AND read = 0",
		now.UTC(), deliveryID)
	if err != nil {
		return fmt.Errorf("mark read %d: %w", deliveryID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	d, err := s.GetDelivery(ctx, deliveryID)
	if err != nil {
		return err
	}
	if !d.Sent {
		return fmt.Errorf("delivery %d: %w", deliveryID, ErrNotSent)
	}
	return nil
}

// MarkInterested flags a sent delivery as interesting to the subscriber.
// Same contract as MarkRead.
func (s *SQLiteStore) MarkInterested(ctx context.Context, deliveryID int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE deliveries SET interested = 1 WHERE id = ? AND sent = 1 AND interested = 0",
		deliveryID)
	if err != nil {
		return fmt.Errorf("mark interested %d: %w", deliveryID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	d, err := s.GetDelivery(ctx, deliveryID)
	if err != nil {
		return err
	}
	if !d.Sent {
		return fmt.Errorf("delivery %d: %w", deliveryID, ErrNotSent)
	}
	return nil
}

func (s *SQLiteStore) ListDeliveryStats(ctx context.Context) ([]DeliveryStat, error) {
	var stats []DeliveryStat
	err := s.db.SelectContext(ctx, &stats, `
		SELECT sub.identity AS identity,
		       COALESCE(SUM(CASE WHEN d.sent = 0 THEN 1 ELSE 0 END), 0) AS pending,
		       COALESCE(SUM(CASE WHEN d.sent = 1 THEN 1 ELSE 0 END), 0) AS sent
		FROM subscribers sub
		LEFT JOIN deliveries d ON d.subscriber_id = sub.id
		GROUP BY sub.id
		ORDER BY sub.identity
	`)
	if err != nil {
		return nil, fmt.Errorf("list delivery stats: %w", err)
	}
	return stats, nil
}

const summaryItemColumns = `
	s.id AS s_id, s.item_id AS s_item_id, s.content AS s_content, s.generator_tag AS s_generator_tag, s.created_at AS s_created_at,
	i.id AS i_id, i.source AS i_source, i.external_id AS i_external_id, i.title AS i_title, i.authors AS i_authors,
	i.abstract AS i_abstract, i.keywords AS i_keywords, i.published_at AS i_published_at, i.venue AS i_venue,
	i.abs_url AS i_abs_url, i.pdf_url AS i_pdf_url, i.created_at AS i_created_at, i.updated_at AS i_updated_at`

type summaryItemRow struct {
	SID           int64             `db:"s_id"`
	SItemID       int64             `db:"s_item_id"`
	SContent      string            `db:"s_content"`
	SGeneratorTag string            `db:"s_generator_tag"`
	SCreatedAt    time.Time         `db:"s_created_at"`
	IID           int64             `db:"i_id"`
	ISource       source.SourceType `db:"i_source"`
	IExternalID   string            `db:"i_external_id"`
	ITitle        string            `db:"i_title"`
	IAuthors      string            `db:"i_authors"`
	IAbstract     string            `db:"i_abstract"`
	IKeywords     string            `db:"i_keywords"`
	IPublishedAt  time.Time         `db:"i_published_at"`
	IVenue        string            `db:"i_venue"`
	IAbsURL       string            `db:"i_abs_url"`
	IPDFURL       string            `db:"i_pdf_url"`
	ICreatedAt    time.Time         `db:"i_created_at"`
	IUpdatedAt    time.Time         `db:"i_updated_at"`
}

func (r *summaryItemRow) toSummaryWithItem() SummaryWithItem {
	item := Item{
		ID:           r.IID,
		Source:       r.ISource,
		ExternalID:   r.IExternalID,
		Title:        r.ITitle,
		Abstract:     r.IAbstract,
		PublishedAt:  r.IPublishedAt,
		Venue:        r.IVenue,
		AbsURL:       r.IAbsURL,
		PDFURL:       r.IPDFURL,
		CreatedAt:    r.ICreatedAt,
		UpdatedAt:    r.IUpdatedAt,
		AuthorsJSON:  r.IAuthors,
		KeywordsJSON: r.IKeywords,
	}
	decodeItem(&item)
	return SummaryWithItem{
		Summary: Summary{
			ID:           r.SID,
			ItemID:       r.SItemID,
			Content:      r.SContent,
			GeneratorTag: r.SGeneratorTag,
			CreatedAt:    r.SCreatedAt,
		},
		Item: item,
	}
}

type pendingDeliveryRow struct {
	DID           int64      `db:"d_id"`
	DSubscriberID int64      `db:"subscriber_id"`
	DSummaryID    int64      `db:"summary_id"`
	DSent         bool       `db:"sent"`
	DSentAt       *time.Time `db:"sent_at"`
	DRead         bool       `db:"read"`
	DReadAt       *time.Time `db:"read_at"`
	DInterested   bool       `db:"interested"`
	DCreatedAt    time.Time  `db:"d_created_at"`
	summaryItemRow
}

func (r *pendingDeliveryRow) toPendingDelivery() PendingDelivery {
	si := r.toSummaryWithItem()
	return PendingDelivery{
		Delivery: Delivery{
			ID:           r.DID,
			SubscriberID: r.DSubscriberID,
			SummaryID:    r.DSummaryID,
			Sent:         r.DSent,
			SentAt:       r.DSentAt,
			Read:         r.DRead,
			ReadAt:       r.DReadAt,
			Interested:   r.DInterested,
			CreatedAt:    r.DCreatedAt,
		},
		Summary: si.Summary,
		Item:    si.Item,
	}
}

func scanSummaryItems(rows *sqlx.Rows) ([]SummaryWithItem, error) {
	var out []SummaryWithItem
	for rows.Next() {
		var row summaryItemRow
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}
		out = append(out, row.toSummaryWithItem())
	}
	return out, rows.Err()
}

func decodeItem(item *Item) {
	json.Unmarshal([]byte(item.AuthorsJSON), &item.Authors)
	json.Unmarshal([]byte(item.KeywordsJSON), &item.Keywords)
}
