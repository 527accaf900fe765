package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/surpresalabs/surpresa/internal/metrics"
)

// MaxDurationDays caps a calendar's door count.
const MaxDurationDays = 365

// observeDB times one repository operation for the db latency histogram.
func observeDB(ctx context.Context, operation string) func() {
	start := time.Now()
	return func() {
		metrics.ObserveDBLatency(ctx, operation, start)
	}
}

// userRepo implements UserRepository.
type userRepo struct {
	pool *pgxpool.Pool
}

func (r *userRepo) UpsertOAuthUser(ctx context.Context, subject, email string) (*User, error) {
	defer observeDB(ctx, "db.users.upsert")()

	const q = `INSERT INTO users (oauth_subject, primary_email, created_at, last_login_at)
VALUES ($1, $2, NOW(), NOW())
ON CONFLICT (oauth_subject)
DO UPDATE SET primary_email = EXCLUDED.primary_email, last_login_at = NOW()
RETURNING id, oauth_subject, primary_email, is_admin, marketing_consent, created_at, last_login_at`

	var u User
	err := r.pool.QueryRow(ctx, q, subject, email).Scan(
		&u.ID, &u.OAuthSubject, &u.PrimaryEmail, &u.IsAdmin, &u.MarketingConsent, &u.CreatedAt, &u.LastLoginAt)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return &u, nil
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*User, error) {
	defer observeDB(ctx, "db.users.get")()

	const q = `SELECT id, oauth_subject, primary_email, is_admin, marketing_consent, created_at, last_login_at
FROM users WHERE id = $1`

	var u User
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&u.ID, &u.OAuthSubject, &u.PrimaryEmail, &u.IsAdmin, &u.MarketingConsent, &u.CreatedAt, &u.LastLoginAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (r *userRepo) SetMarketingConsent(ctx context.Context, id int64, consent bool) error {
	defer observeDB(ctx, "db.users.set_consent")()

	tag, err := r.pool.Exec(ctx, `UPDATE users SET marketing_consent = $2 WHERE id = $1`, id, consent)
	if err != nil {
		return fmt.Errorf("set marketing consent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// calendarRepo implements CalendarRepository.
type calendarRepo struct {
	pool *pgxpool.Pool
}

const calendarColumns = `id, owner_id, title, theme_id, duration_days, start_date, privacy,
password_hash, status, is_premium, views, likes, shares, created_at`

func scanCalendar(row pgx.Row) (*Calendar, error) {
	var c Calendar
	err := row.Scan(&c.ID, &c.OwnerID, &c.Title, &c.ThemeID, &c.DurationDays, &c.StartDate,
		&c.Privacy, &c.PasswordHash, &c.Status, &c.IsPremium, &c.Views, &c.Likes, &c.Shares, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts the calendar and its full run of days in one transaction.
func (r *calendarRepo) Create(ctx context.Context, cal Calendar) (*Calendar, error) {
	defer observeDB(ctx, "db.calendars.create")()

	if cal.DurationDays <= 0 {
		return nil, ValidationError("duration must be positive, got %d", cal.DurationDays)
	}
	if cal.DurationDays > MaxDurationDays {
		return nil, ValidationError("duration must be at most %d days, got %d", MaxDurationDays, cal.DurationDays)
	}
	if cal.ID == uuid.Nil {
		cal.ID = uuid.New()
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin create calendar: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertCal = `INSERT INTO calendars
(id, owner_id, title, theme_id, duration_days, start_date, privacy, password_hash, status, is_premium, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
RETURNING ` + calendarColumns

	created, err := scanCalendar(tx.QueryRow(ctx, insertCal,
		cal.ID, cal.OwnerID, cal.Title, cal.ThemeID, cal.DurationDays, cal.StartDate,
		cal.Privacy, cal.PasswordHash, cal.Status, cal.IsPremium))
	if err != nil {
		return nil, fmt.Errorf("insert calendar: %w", err)
	}

	const insertDays = `INSERT INTO calendar_days (calendar_id, day_index)
SELECT $1, g FROM generate_series(1, $2::int) AS g`
	if _, err := tx.Exec(ctx, insertDays, created.ID, created.DurationDays); err != nil {
		return nil, fmt.Errorf("insert calendar days: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create calendar: %w", err)
	}
	return created, nil
}

func (r *calendarRepo) GetByID(ctx context.Context, id uuid.UUID) (*Calendar, error) {
	defer observeDB(ctx, "db.calendars.get")()

	cal, err := scanCalendar(r.pool.QueryRow(ctx, `SELECT `+calendarColumns+` FROM calendars WHERE id = $1`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get calendar: %w", err)
	}
	return cal, err
}

func (r *calendarRepo) GetWithDays(ctx context.Context, id uuid.UUID) (*Calendar, []CalendarDay, error) {
	defer observeDB(ctx, "db.calendars.get_with_days")()

	cal, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	const q = `SELECT id, calendar_id, day_index, has_message, has_media, has_label, opened_count
FROM calendar_days WHERE calendar_id = $1 ORDER BY day_index`
	rows, err := r.pool.Query(ctx, q, id)
	if err != nil {
		return nil, nil, fmt.Errorf("list calendar days: %w", err)
	}
	defer rows.Close()

	var days []CalendarDay
	for rows.Next() {
		var d CalendarDay
		if err := rows.Scan(&d.ID, &d.CalendarID, &d.DayIndex, &d.HasMessage, &d.HasMedia, &d.HasLabel, &d.OpenedCount); err != nil {
			return nil, nil, fmt.Errorf("scan calendar day: %w", err)
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate calendar days: %w", err)
	}
	return cal, days, nil
}

func (r *calendarRepo) ListByOwner(ctx context.Context, ownerID int64) ([]Calendar, error) {
	defer observeDB(ctx, "db.calendars.list_by_owner")()

	rows, err := r.pool.Query(ctx,
		`SELECT `+calendarColumns+` FROM calendars WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}
	defer rows.Close()

	var calendars []Calendar
	for rows.Next() {
		var c Calendar
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Title, &c.ThemeID, &c.DurationDays, &c.StartDate,
			&c.Privacy, &c.PasswordHash, &c.Status, &c.IsPremium, &c.Views, &c.Likes, &c.Shares, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan calendar: %w", err)
		}
		calendars = append(calendars, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calendars: %w", err)
	}
	return calendars, nil
}

func (r *calendarRepo) Update(ctx context.Context, ownerID int64, id uuid.UUID, update CalendarUpdate) (*Calendar, error) {
	defer observeDB(ctx, "db.calendars.update")()

	const q = `UPDATE calendars SET
	title = COALESCE($3, title),
	theme_id = COALESCE($4, theme_id),
	privacy = COALESCE($5, privacy),
	password_hash = CASE WHEN $9 THEN NULL ELSE COALESCE($6, password_hash) END,
	status = COALESCE($7, status),
	is_premium = COALESCE($8, is_premium)
WHERE id = $1 AND owner_id = $2
RETURNING ` + calendarColumns

	cal, err := scanCalendar(r.pool.QueryRow(ctx, q, id, ownerID,
		update.Title, update.ThemeID, update.Privacy, update.PasswordHash, update.Status, update.IsPremium,
		update.RemovePassword))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("update calendar: %w", err)
	}
	return cal, err
}

func (r *calendarRepo) Delete(ctx context.Context, ownerID int64, id uuid.UUID) error {
	defer observeDB(ctx, "db.calendars.delete")()

	tag, err := r.pool.Exec(ctx, `DELETE FROM calendars WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete calendar: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *calendarRepo) IncrementViews(ctx context.Context, id uuid.UUID) error {
	defer observeDB(ctx, "db.calendars.inc_views")()
	return r.increment(ctx, "views", id)
}

func (r *calendarRepo) IncrementLikes(ctx context.Context, id uuid.UUID) error {
	defer observeDB(ctx, "db.calendars.inc_likes")()
	return r.increment(ctx, "likes", id)
}

func (r *calendarRepo) IncrementShares(ctx context.Context, id uuid.UUID) error {
	defer observeDB(ctx, "db.calendars.inc_shares")()
	return r.increment(ctx, "shares", id)
}

// increment bumps a counter column atomically in SQL. col is always one of
// the fixed counter names, never user input.
func (r *calendarRepo) increment(ctx context.Context, col string, id uuid.UUID) error {
	q := fmt.Sprintf(`UPDATE calendars SET %s = %s + 1 WHERE id = $1`, col, col)
	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("increment %s: %w", col, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// calendarDayRepo implements CalendarDayRepository.
type calendarDayRepo struct {
	pool *pgxpool.Pool
}

func (r *calendarDayRepo) GetByIndex(ctx context.Context, calendarID uuid.UUID, dayIndex int) (*CalendarDay, error) {
	defer observeDB(ctx, "db.days.get")()

	const q = `SELECT id, calendar_id, day_index, has_message, has_media, has_label, opened_count
FROM calendar_days WHERE calendar_id = $1 AND day_index = $2`

	var d CalendarDay
	err := r.pool.QueryRow(ctx, q, calendarID, dayIndex).Scan(
		&d.ID, &d.CalendarID, &d.DayIndex, &d.HasMessage, &d.HasMedia, &d.HasLabel, &d.OpenedCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get calendar day: %w", err)
	}
	return &d, nil
}

func (r *calendarDayRepo) UpdateContentFlags(ctx context.Context, calendarID uuid.UUID, dayIndex int, hasMessage, hasMedia, hasLabel bool) error {
	defer observeDB(ctx, "db.days.update_flags")()

	const q = `UPDATE calendar_days SET has_message = $3, has_media = $4, has_label = $5
WHERE calendar_id = $1 AND day_index = $2`
	tag, err := r.pool.Exec(ctx, q, calendarID, dayIndex, hasMessage, hasMedia, hasLabel)
	if err != nil {
		return fmt.Errorf("update day flags: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *calendarDayRepo) IncrementOpened(ctx context.Context, dayID int64) error {
	defer observeDB(ctx, "db.days.inc_opened")()

	tag, err := r.pool.Exec(ctx, `UPDATE calendar_days SET opened_count = opened_count + 1 WHERE id = $1`, dayID)
	if err != nil {
		return fmt.Errorf("increment opened: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// reminderRepo implements ReminderRepository.
type reminderRepo struct {
	pool *pgxpool.Pool
}

func (r *reminderRepo) Upsert(ctx context.Context, rem Reminder) (*Reminder, error) {
	defer observeDB(ctx, "db.reminders.upsert")()

	const q = `INSERT INTO reminders (calendar_id, day_index, remind_at, subscription, created_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (calendar_id, day_index)
DO UPDATE SET remind_at = EXCLUDED.remind_at, subscription = EXCLUDED.subscription
RETURNING id, calendar_id, day_index, remind_at, subscription, created_at`

	var out Reminder
	err := r.pool.QueryRow(ctx, q, rem.CalendarID, rem.DayIndex, rem.RemindAt, rem.Subscription).Scan(
		&out.ID, &out.CalendarID, &out.DayIndex, &out.RemindAt, &out.Subscription, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert reminder: %w", err)
	}
	return &out, nil
}

func (r *reminderRepo) GetByKey(ctx context.Context, calendarID uuid.UUID, dayIndex int) (*Reminder, error) {
	defer observeDB(ctx, "db.reminders.get")()

	const q = `SELECT id, calendar_id, day_index, remind_at, subscription, created_at
FROM reminders WHERE calendar_id = $1 AND day_index = $2`

	var out Reminder
	err := r.pool.QueryRow(ctx, q, calendarID, dayIndex).Scan(
		&out.ID, &out.CalendarID, &out.DayIndex, &out.RemindAt, &out.Subscription, &out.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder: %w", err)
	}
	return &out, nil
}

func (r *reminderRepo) DeleteByCalendar(ctx context.Context, calendarID uuid.UUID) error {
	defer observeDB(ctx, "db.reminders.delete_by_calendar")()

	if _, err := r.pool.Exec(ctx, `DELETE FROM reminders WHERE calendar_id = $1`, calendarID); err != nil {
		return fmt.Errorf("delete reminders: %w", err)
	}
	return nil
}
