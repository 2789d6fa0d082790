package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// featuredLockKey serializes featured toggles through pg_advisory_xact_lock.
const featuredLockKey int64 = 0x52504546

var eventColumns = []string{
	"id", "title", "description", "date", "location", "art_type", "category", "images",
	"organizer", "organizer_id", "status", "featured", "price", "ticket_url", "max_attendees",
	"current_attendees", "tags", "created_at", "updated_at",
}

var userColumns = []string{
	"id", "external_id", "email", "name", "role", "bio", "website", "contact_email", "phone_number",
	"is_premium", "premium_expires_at", "premium_plan", "premium_auto_renew", "event_count",
	"created_at", "updated_at",
}

var contactColumns = []string{
	"id", "name", "email", "phone", "subject", "category", "message", "status", "created_at", "updated_at",
}

// PostgresRepo implements Store on a plain Postgres database.
type PostgresRepo struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

func PostgresNewRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (p *PostgresRepo) CreateEventWithQuota(ctx context.Context, e *Event, now time.Time) (*Event, error) {
	const op = "models.PostgresRepo.CreateEventWithQuota"

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	reserve, args, err := p.reserveQuota(e.OrganizerID, now).ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	res, err := tx.ExecContext(ctx, reserve, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	} else if n == 0 {
		if err := p.userExists(ctx, tx, e.OrganizerID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return nil, ErrQuotaExceeded
	}

	values, err := eventValues(e)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	insert, args, err := p.sb.Insert(EventsTable).Columns(eventColumns...).Values(values...).ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return e, nil
}

// reserveQuota increments the owner's counter only when the quota predicate
// holds, which makes the check and the increment a single statement.
func (p *PostgresRepo) reserveQuota(ownerID uuid.UUID, now time.Time) sq.UpdateBuilder {
	return p.sb.Update(UsersTable).
		Set("event_count", sq.Expr("event_count + 1")).
		Set("updated_at", now).
		Where(sq.Eq{"id": ownerID}).
		Where(sq.Or{
			sq.Eq{"role": string(RoleAdmin)},
			sq.And{
				sq.Eq{"is_premium": true},
				sq.Or{sq.Eq{"premium_expires_at": nil}, sq.Gt{"premium_expires_at": now}},
			},
			sq.Lt{"event_count": FreeEventQuota},
		})
}

func (p *PostgresRepo) userExists(ctx context.Context, q queryer, id uuid.UUID) error {
	query, args, err := p.sb.Select("1").From(UsersTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	var one int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("user %w", ErrNotFound)
		}
		return err
	}
	return nil
}

func (p *PostgresRepo) GetEventByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	return p.getEvent(ctx, p.db, id, false)
}

func (p *PostgresRepo) getEvent(ctx context.Context, q queryer, id uuid.UUID, forUpdate bool) (*Event, error) {
	b := p.sb.Select(eventColumns...).From(EventsTable).Where(sq.Eq{"id": id})
	if forUpdate {
		b = b.Suffix("FOR UPDATE")
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	e, err := scanEvent(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %w", ErrNotFound)
	}
	return e, err
}

func (p *PostgresRepo) UpdateEventFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}, now time.Time) (*Event, error) {
	const op = "models.PostgresRepo.UpdateEventFields"

	if err := checkEventFields(fields); err != nil {
		return nil, err
	}
	b := p.sb.Update(EventsTable).Set("updated_at", now)
	for _, k := range sortedKeys(fields) {
		v, err := sqlValue(fields[k])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		b = b.Set(k, v)
	}
	query, args, err := b.Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(eventColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	e, err := scanEvent(p.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return e, nil
}

func (p *PostgresRepo) SetEventStatus(ctx context.Context, id uuid.UUID, from, to EventStatus, now time.Time) (*Event, error) {
	const op = "models.PostgresRepo.SetEventStatus"

	b := p.sb.Update(EventsTable).
		Set("status", string(to)).
		Set("updated_at", now)
	if to != StatusApproved {
		b = b.Set("featured", false)
	}
	query, args, err := b.
		Where(sq.Eq{"id": id, "status": string(from)}).
		Suffix("RETURNING " + strings.Join(eventColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	e, err := scanEvent(p.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := p.GetEventByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("event is no longer %s: %w", from, ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return e, nil
}

func (p *PostgresRepo) SetEventFeatured(ctx context.Context, id uuid.UUID, featured bool, now time.Time) (*Event, error) {
	const op = "models.PostgresRepo.SetEventFeatured"

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	lock, args, err := p.sb.Select().Column(sq.Expr("pg_advisory_xact_lock(?)", featuredLockKey)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := tx.ExecContext(ctx, lock, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	e, err := p.getEvent(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	if e.Featured == featured {
		return e, tx.Commit()
	}
	if featured {
		if !e.IsPublic() {
			return nil, fmt.Errorf("only approved events can be featured: %w", ErrConflict)
		}
		query, args, err := p.sb.Select("COUNT(*)").From(EventsTable).Where(sq.Eq{"featured": true}).ToSql()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		var n int
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if n >= FeaturedCap {
			return nil, fmt.Errorf("at most %d events can be featured: %w", FeaturedCap, ErrConflict)
		}
	}

	query, args, err := p.sb.Update(EventsTable).
		Set("featured", featured).
		Set("updated_at", now).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	e.Featured = featured
	e.UpdatedAt = now
	return e, nil
}

func (p *PostgresRepo) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	const op = "models.PostgresRepo.DeleteEvent"

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	query, args, err := p.sb.Delete(EventsTable).Where(sq.Eq{"id": id}).Suffix("RETURNING organizer_id").ToSql()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	var ownerID uuid.UUID
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("event %w", ErrNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	query, args, err = p.sb.Update(UsersTable).
		Set("event_count", sq.Expr("GREATEST(event_count - 1, 0)")).
		Where(sq.Eq{"id": ownerID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (p *PostgresRepo) ListEvents(ctx context.Context, q *EventQuery) ([]Event, int64, error) {
	const op = "models.PostgresRepo.ListEvents"

	where := eventConditions(&q.Filter)

	countQuery, args, err := p.sb.Select("COUNT(*)").From(EventsTable).Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	var total int64
	if err := p.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	query, args, err := p.sb.Select(eventColumns...).
		From(EventsTable).
		Where(where).
		OrderBy(eventOrderBy(q.Sort)...).
		Limit(uint64(q.Page.Limit)).
		Offset(uint64(q.Page.Offset())).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return events, total, nil
}

func (p *PostgresRepo) CountEvents(ctx context.Context, f EventCountFilter) (*EventCounts, error) {
	const op = "models.PostgresRepo.CountEvents"

	where := sq.And{}
	if f.OrganizerID != uuid.Nil {
		where = append(where, sq.Eq{"organizer_id": f.OrganizerID})
	}
	if f.Since != nil {
		where = append(where, sq.GtOrEq{"created_at": *f.Since})
	}
	query, args, err := p.sb.Select(
		"COUNT(*)",
		fmt.Sprintf("COUNT(*) FILTER (WHERE status = '%s')", StatusDraft),
		fmt.Sprintf("COUNT(*) FILTER (WHERE status = '%s')", StatusPending),
		fmt.Sprintf("COUNT(*) FILTER (WHERE status = '%s')", StatusApproved),
		fmt.Sprintf("COUNT(*) FILTER (WHERE status = '%s')", StatusRejected),
		"COUNT(*) FILTER (WHERE featured)",
	).From(EventsTable).Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var c EventCounts
	if err := p.db.QueryRowContext(ctx, query, args...).Scan(
		&c.Total, &c.Draft, &c.Pending, &c.Approved, &c.Rejected, &c.Featured,
	); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &c, nil
}

// eventConditions translates f into a WHERE clause. It is the SQL twin of MatchEvent.
func eventConditions(f *EventFilter) sq.And {
	where := sq.And{}
	if f.SearchText != "" {
		pat := "%" + likeEscape(f.SearchText) + "%"
		where = append(where, sq.Or{
			sq.ILike{"title": pat},
			sq.ILike{"description": pat},
			sq.ILike{"category": pat},
			sq.ILike{"art_type": pat},
		})
	}
	if f.ArtType != "" {
		where = append(where, sq.Eq{"art_type": string(f.ArtType)})
	}
	if f.Category != "" {
		where = append(where, sq.Eq{"category": string(f.Category)})
	}
	if f.Location != "" {
		where = append(where, sq.ILike{"location": "%" + likeEscape(f.Location) + "%"})
	}
	if lower := lowerDateBound(f); lower != nil {
		where = append(where, sq.GtOrEq{"date": *lower})
	}
	if f.DateTo != nil {
		where = append(where, sq.LtOrEq{"date": *f.DateTo})
	}
	switch f.Price {
	case PriceFree:
		where = append(where, sq.Eq{"price": 0})
	case PricePaid:
		where = append(where, sq.Gt{"price": 0})
	}
	if f.Featured != nil {
		where = append(where, sq.Eq{"featured": *f.Featured})
	}
	if f.Status != "" {
		where = append(where, sq.Eq{"status": string(f.Status)})
	}
	if f.OrganizerID != uuid.Nil {
		where = append(where, sq.Eq{"organizer_id": f.OrganizerID})
	}
	return where
}

func eventOrderBy(order SortOrder) []string {
	switch order {
	case SortNewest:
		return []string{"created_at DESC", "id ASC"}
	case SortFeaturedFirst:
		return []string{"featured DESC", "date ASC", "created_at ASC", "id ASC"}
	}
	return []string{"date ASC", "created_at ASC", "id ASC"}
}

func likeEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}

func eventValues(e *Event) ([]interface{}, error) {
	images, err := jsonText(e.Images)
	if err != nil {
		return nil, err
	}
	organizer, err := jsonText(e.Organizer)
	if err != nil {
		return nil, err
	}
	tags, err := jsonText(e.Tags)
	if err != nil {
		return nil, err
	}
	var maxAttendees interface{}
	if e.MaxAttendees != nil {
		maxAttendees = *e.MaxAttendees
	}
	return []interface{}{
		e.ID, e.Title, e.Description, e.Date, e.Location, string(e.ArtType), string(e.Category), images,
		organizer, e.OrganizerID, string(e.Status), e.Featured, e.Price, e.TicketURL, maxAttendees,
		e.CurrentAttendees, tags, e.CreatedAt, e.UpdatedAt,
	}, nil
}

func scanEvent(row rowScanner) (*Event, error) {
	var (
		e                       Event
		images, organizer, tags []byte
		maxAttendees            sql.NullInt64
	)
	if err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.Date, &e.Location, &e.ArtType, &e.Category, &images,
		&organizer, &e.OrganizerID, &e.Status, &e.Featured, &e.Price, &e.TicketURL, &maxAttendees,
		&e.CurrentAttendees, &tags, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := unmarshalColumn(images, &e.Images); err != nil {
		return nil, fmt.Errorf("images: %w", err)
	}
	if err := unmarshalColumn(organizer, &e.Organizer); err != nil {
		return nil, fmt.Errorf("organizer: %w", err)
	}
	if err := unmarshalColumn(tags, &e.Tags); err != nil {
		return nil, fmt.Errorf("tags: %w", err)
	}
	if e.Images == nil {
		e.Images = []string{}
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}
	if maxAttendees.Valid {
		n := int(maxAttendees.Int64)
		e.MaxAttendees = &n
	}
	return &e, nil
}

func (p *PostgresRepo) CreateUser(ctx context.Context, u *User) (*User, error) {
	const op = "models.PostgresRepo.CreateUser"

	query, args, err := p.sb.Insert(UsersTable).
		Columns(userColumns...).
		Values(userValues(u)...).
		Suffix("ON CONFLICT DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var id uuid.UUID
	if err := p.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user already exists: %w", ErrConflict)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (p *PostgresRepo) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return p.getUser(ctx, sq.Eq{"id": id})
}

func (p *PostgresRepo) GetUserByExternalID(ctx context.Context, externalID string) (*User, error) {
	return p.getUser(ctx, sq.Eq{"external_id": externalID})
}

func (p *PostgresRepo) getUser(ctx context.Context, where sq.Eq) (*User, error) {
	query, args, err := p.sb.Select(userColumns...).From(UsersTable).Where(where).ToSql()
	if err != nil {
		return nil, err
	}
	u, err := scanUser(p.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %w", ErrNotFound)
	}
	return u, err
}

func (p *PostgresRepo) UpdateUserFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}, now time.Time) (*User, error) {
	const op = "models.PostgresRepo.UpdateUserFields"

	if err := checkUserFields(fields); err != nil {
		return nil, err
	}
	b := p.sb.Update(UsersTable).Set("updated_at", now)
	for _, k := range sortedKeys(fields) {
		v, err := sqlValue(fields[k])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		b = b.Set(k, v)
	}
	query, args, err := b.Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(userColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	u, err := scanUser(p.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (p *PostgresRepo) ListUsers(ctx context.Context, q *UserQuery) ([]User, int64, error) {
	const op = "models.PostgresRepo.ListUsers"

	where := sq.And{}
	if q.Role != "" {
		where = append(where, sq.Eq{"role": string(q.Role)})
	}
	if q.IsPremium != nil {
		where = append(where, sq.Eq{"is_premium": *q.IsPremium})
	}
	if q.Search != "" {
		pat := "%" + likeEscape(q.Search) + "%"
		where = append(where, sq.Or{sq.ILike{"name": pat}, sq.ILike{"email": pat}})
	}

	countQuery, args, err := p.sb.Select("COUNT(*)").From(UsersTable).Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	var total int64
	if err := p.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	query, args, err := p.sb.Select(userColumns...).
		From(UsersTable).
		Where(where).
		OrderBy("created_at DESC", "id ASC").
		Limit(uint64(q.Page.Limit)).
		Offset(uint64(q.Page.Offset())).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return users, total, nil
}

func (p *PostgresRepo) CountUsers(ctx context.Context, since, now time.Time) (*UserCounts, error) {
	const op = "models.PostgresRepo.CountUsers"

	query, args, err := p.sb.Select("COUNT(*)").
		Column(sq.Expr("COUNT(*) FILTER (WHERE is_premium AND (premium_expires_at IS NULL OR premium_expires_at > ?))", now)).
		Column(sq.Expr("COUNT(*) FILTER (WHERE created_at >= ?)", since)).
		Column(fmt.Sprintf("COUNT(*) FILTER (WHERE role = '%s')", RoleVisitor)).
		Column(fmt.Sprintf("COUNT(*) FILTER (WHERE role = '%s')", RoleOrganizer)).
		Column(fmt.Sprintf("COUNT(*) FILTER (WHERE role = '%s')", RoleAdmin)).
		From(UsersTable).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var visitors, organizers, admins int64
	c := &UserCounts{}
	if err := p.db.QueryRowContext(ctx, query, args...).Scan(
		&c.Total, &c.Premium, &c.CreatedSince, &visitors, &organizers, &admins,
	); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c.ByRole = map[Role]int64{RoleVisitor: visitors, RoleOrganizer: organizers, RoleAdmin: admins}
	return c, nil
}

func userValues(u *User) []interface{} {
	var expires interface{}
	if u.PremiumExpiresAt != nil {
		expires = *u.PremiumExpiresAt
	}
	return []interface{}{
		u.ID, u.ExternalID, u.Email, u.Name, string(u.Role), u.Bio, u.Website, u.ContactEmail, u.PhoneNumber,
		u.IsPremium, expires, u.PremiumPlan, u.PremiumAutoRenew, u.EventCount,
		u.CreatedAt, u.UpdatedAt,
	}
}

func scanUser(row rowScanner) (*User, error) {
	var (
		u       User
		expires sql.NullTime
	)
	if err := row.Scan(
		&u.ID, &u.ExternalID, &u.Email, &u.Name, &u.Role, &u.Bio, &u.Website, &u.ContactEmail, &u.PhoneNumber,
		&u.IsPremium, &expires, &u.PremiumPlan, &u.PremiumAutoRenew, &u.EventCount,
		&u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if expires.Valid {
		t := expires.Time
		u.PremiumExpiresAt = &t
	}
	return &u, nil
}

func (p *PostgresRepo) CreateContactMessage(ctx context.Context, msg *ContactMessage) (*ContactMessage, error) {
	const op = "models.PostgresRepo.CreateContactMessage"

	query, args, err := p.sb.Insert(ContactTable).
		Columns(contactColumns...).
		Values(msg.ID, msg.Name, msg.Email, msg.Phone, msg.Subject, msg.Category, msg.Message,
			string(msg.Status), msg.CreatedAt, msg.UpdatedAt).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return msg, nil
}

func (p *PostgresRepo) ListContactMessages(ctx context.Context, status ContactStatus, page Pagination) ([]ContactMessage, int64, error) {
	const op = "models.PostgresRepo.ListContactMessages"

	where := sq.And{}
	if status != "" {
		where = append(where, sq.Eq{"status": string(status)})
	}
	countQuery, args, err := p.sb.Select("COUNT(*)").From(ContactTable).Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	var total int64
	if err := p.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	query, args, err := p.sb.Select(contactColumns...).
		From(ContactTable).
		Where(where).
		OrderBy("created_at DESC", "id ASC").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset())).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	msgs := []ContactMessage{}
	for rows.Next() {
		m, err := scanContact(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, err)
		}
		msgs = append(msgs, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return msgs, total, nil
}

func (p *PostgresRepo) SetContactStatus(ctx context.Context, id uuid.UUID, status ContactStatus, now time.Time) (*ContactMessage, error) {
	const op = "models.PostgresRepo.SetContactStatus"

	query, args, err := p.sb.Update(ContactTable).
		Set("status", string(status)).
		Set("updated_at", now).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(contactColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	m, err := scanContact(p.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("contact message %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return m, nil
}

func scanContact(row rowScanner) (*ContactMessage, error) {
	var m ContactMessage
	if err := row.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.Subject, &m.Category, &m.Message,
		&m.Status, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// sqlValue converts update-map values into driver-friendly arguments.
// Structured columns are stored as jsonb.
func sqlValue(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case []string, Organizer:
		return jsonText(t)
	case Role:
		return string(t), nil
	case ArtType:
		return string(t), nil
	case Category:
		return string(t), nil
	case EventStatus:
		return string(t), nil
	}
	return v, nil
}

func jsonText(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalColumn(raw []byte, dst interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
