package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/busybox42/lettera/internal/letter"
)

// programTag identifies this service in the audit columns.
const programTag = "lettera"

// dialect isolates the few places the SQL backends differ: placeholder
// style and how a generated key comes back from an insert.
type dialect interface {
	// rebind converts ? placeholders to the backend's native style.
	rebind(query string) string

	// insertReturningID runs an insert and returns the generated key.
	insertReturningID(ctx context.Context, tx *sql.Tx, query string, args ...interface{}) (int64, error)

	// ignoreConflictSuffix is appended to the tag-name seed insert so
	// existing names are skipped instead of failing the statement.
	ignoreConflictSuffix() string
}

// questionDialect covers sqlite and mysql: ? placeholders, LastInsertId.
type questionDialect struct {
	conflictSuffix string
}

func (questionDialect) rebind(query string) string { return query }

func (questionDialect) insertReturningID(ctx context.Context, tx *sql.Tx, query string, args ...interface{}) (int64, error) {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (d questionDialect) ignoreConflictSuffix() string { return d.conflictSuffix }

// dollarDialect covers postgres: $n placeholders, RETURNING.
type dollarDialect struct{}

func (dollarDialect) rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d dollarDialect) insertReturningID(ctx context.Context, tx *sql.Tx, query string, args ...interface{}) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, d.rebind(query+" RETURNING id"), args...).Scan(&id)
	return id, err
}

func (dollarDialect) ignoreConflictSuffix() string { return " ON CONFLICT (tag_name) DO NOTHING" }

// queryer is satisfied by both *sql.DB and *sql.Tx so reads can run inside
// or outside a transaction.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqlStore implements the persistence operations shared by all backends.
type sqlStore struct {
	db     *sql.DB
	d      dialect
	logger *slog.Logger
}

// GetLetter loads a letter with its recipients and search parameters. A
// single read needs no explicit transaction; the two queries tolerate the
// default isolation level.
func (s *sqlStore) GetLetter(ctx context.Context, id string) (*letter.Letter, error) {
	l, err := s.getLetter(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	l.SearchParameters, err = s.getTags(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	return l, nil
}

// FindLetters returns the letters carrying the given tag key and value.
func (s *sqlStore) FindLetters(ctx context.Context, key, value string, validKeys map[string]struct{}) ([]*letter.Letter, error) {
	if _, ok := validKeys[key]; !ok {
		return nil, fmt.Errorf("search key %q: %w", key, letter.ErrInvalidTag)
	}

	query := s.d.rebind(`
		SELECT lt.letter_id
		FROM letter_tags lt
		JOIN tag_lookup t ON t.tag_id = lt.tag_id
		WHERE t.tag_name = ? AND lt.tag_value = ?
		ORDER BY lt.letter_id`)

	rows, err := s.db.QueryContext(ctx, query, key, value)
	if err != nil {
		return nil, letter.Persistence("find letters", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, letter.Persistence("find letters", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, letter.Persistence("find letters", err)
	}

	// Any failure hydrating a match fails the whole search. A partial
	// result would be indistinguishable from a complete one.
	letters := make([]*letter.Letter, 0, len(ids))
	for _, id := range ids {
		l, err := s.GetLetter(ctx, id)
		if err != nil {
			return nil, err
		}
		letters = append(letters, l)
	}

	return letters, nil
}

// SaveLetter inserts a new letter and its recipients in one transaction,
// then re-reads the stored record so the caller sees the generated
// identifier and server timestamps.
func (s *sqlStore) SaveLetter(ctx context.Context, l *letter.Letter) (*letter.Letter, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, letter.Persistence("save letter", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	insert := s.d.rebind(`
		INSERT INTO letters
			(content, subject, status_code, status_user, status_date,
			 template_id, application_id, plain_text_flag,
			 last_updt_pgm, last_updt_user, last_updt_tmsp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	id, err := s.d.insertReturningID(ctx, tx, insert,
		l.ContentString(),
		l.SubjectString(),
		l.EffectiveStatus().Code(),
		l.StatusUser,
		now,
		nullableString(l.TemplateID),
		l.ApplicationID,
		letter.FlagToString(l.PlainText),
		programTag,
		l.StatusUser,
		now,
	)
	if err != nil {
		return nil, letter.Persistence("save letter", err)
	}

	idStr := fmt.Sprintf("%d", id)
	if err := s.insertRecipients(ctx, tx, idStr, l, now); err != nil {
		return nil, err
	}

	stored, err := s.getLetter(ctx, tx, idStr)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, letter.Persistence("save letter", err)
	}

	return stored, nil
}

// UpdateLetter applies changes to a stored letter. The stored record is
// read first inside the transaction so the not-found and already-sent
// gates fire before anything is written.
func (s *sqlStore) UpdateLetter(ctx context.Context, l *letter.Letter) (*letter.Letter, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, letter.Persistence("update letter", err)
	}
	defer tx.Rollback()

	stored, err := s.getLetter(ctx, tx, l.ID)
	if err != nil {
		return nil, err
	}
	if stored.EffectiveStatus() == letter.Sent {
		return nil, fmt.Errorf("letter %s: %w", l.ID, letter.ErrAlreadySent)
	}

	now := time.Now().UTC()

	// The plain-text flag is fixed at create time; neither update path
	// rewrites it.
	if l.EffectiveStatus() != stored.EffectiveStatus() {
		// Status transition: the status columns move together with the
		// content so a Sent letter always shows who sent it and when.
		update := s.d.rebind(`
			UPDATE letters
			SET content = ?, subject = ?, status_code = ?, status_user = ?,
			    status_date = ?,
			    last_updt_pgm = ?, last_updt_user = ?, last_updt_tmsp = ?
			WHERE id = ?`)
		_, err = tx.ExecContext(ctx, update,
			l.ContentString(),
			l.SubjectString(),
			l.EffectiveStatus().Code(),
			l.StatusUser,
			now,
			programTag,
			l.StatusUser,
			now,
			l.ID,
		)
	} else {
		update := s.d.rebind(`
			UPDATE letters
			SET content = ?, subject = ?,
			    last_updt_pgm = ?, last_updt_user = ?, last_updt_tmsp = ?
			WHERE id = ?`)
		_, err = tx.ExecContext(ctx, update,
			l.ContentString(),
			l.SubjectString(),
			programTag,
			l.StatusUser,
			now,
			l.ID,
		)
	}
	if err != nil {
		return nil, letter.Persistence("update letter", err)
	}

	deleteRecipients := s.d.rebind(`DELETE FROM recipients WHERE letter_id = ?`)
	if _, err := tx.ExecContext(ctx, deleteRecipients, l.ID); err != nil {
		return nil, letter.Persistence("update letter", err)
	}
	if err := s.insertRecipients(ctx, tx, l.ID, l, now); err != nil {
		return nil, err
	}

	updated, err := s.getLetter(ctx, tx, l.ID)
	if err != nil {
		return nil, err
	}
	updated.SearchParameters, err = s.getTags(ctx, tx, l.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, letter.Persistence("update letter", err)
	}

	return updated, nil
}

// DeleteLetter removes a letter and everything hanging off it, returning
// the pre-delete snapshot.
func (s *sqlStore) DeleteLetter(ctx context.Context, id string) (*letter.Letter, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, letter.Persistence("delete letter", err)
	}
	defer tx.Rollback()

	stored, err := s.getLetter(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if stored.EffectiveStatus() == letter.Sent {
		return nil, fmt.Errorf("letter %s: %w", id, letter.ErrAlreadySent)
	}

	stored.SearchParameters, err = s.getTags(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	// Children first, then the letter row.
	for _, q := range []string{
		`DELETE FROM letter_tags WHERE letter_id = ?`,
		`DELETE FROM recipients WHERE letter_id = ?`,
		`DELETE FROM letters WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, s.d.rebind(q), id); err != nil {
			return nil, letter.Persistence("delete letter", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, letter.Persistence("delete letter", err)
	}

	return stored, nil
}

// GetSearchParameters returns the stored tags of a letter.
func (s *sqlStore) GetSearchParameters(ctx context.Context, id string) ([]letter.SearchParameter, error) {
	exists := s.d.rebind(`SELECT id FROM letters WHERE id = ?`)
	var found int64
	if err := s.db.QueryRowContext(ctx, exists, id).Scan(&found); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("letter %s: %w", id, letter.ErrNotFound)
		}
		return nil, letter.Persistence("get search parameters", err)
	}

	return s.getTags(ctx, s.db, id)
}

// StoreSearchParameters replaces the stored tags of the letter with the
// deduplicated set from l.SearchParameters. When the same key appears more
// than once the last occurrence wins. An unknown key fails the whole
// operation before the transaction commits.
func (s *sqlStore) StoreSearchParameters(ctx context.Context, l *letter.Letter, validKeys map[string]struct{}) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return letter.Persistence("store search parameters", err)
	}
	defer tx.Rollback()

	deleteTags := s.d.rebind(`DELETE FROM letter_tags WHERE letter_id = ?`)
	if _, err := tx.ExecContext(ctx, deleteTags, l.ID); err != nil {
		return letter.Persistence("store search parameters", err)
	}

	// Scan back to front so a repeated key keeps its last occurrence,
	// then restore input order.
	seen := make(map[string]struct{}, len(l.SearchParameters))
	reversed := make([]letter.SearchParameter, 0, len(l.SearchParameters))
	for i := len(l.SearchParameters) - 1; i >= 0; i-- {
		p := l.SearchParameters[i]
		if _, dup := seen[p.Key]; dup {
			continue
		}
		seen[p.Key] = struct{}{}
		reversed = append(reversed, p)
	}

	surviving := make([]letter.SearchParameter, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		surviving = append(surviving, reversed[i])
	}

	insert := s.d.rebind(`
		INSERT INTO letter_tags
			(letter_id, tag_id, tag_value, tag_seq, last_updt_pgm, last_updt_user, last_updt_tmsp)
		SELECT ?, tag_id, ?, ?, ?, ?, ?
		FROM tag_lookup
		WHERE tag_name = ?`)

	now := time.Now().UTC()
	for i := range surviving {
		p := &surviving[i]
		if _, ok := validKeys[p.Key]; !ok {
			return fmt.Errorf("search key %q: %w", p.Key, letter.ErrInvalidTag)
		}

		res, err := tx.ExecContext(ctx, insert, l.ID, p.Value, i, programTag, l.StatusUser, now, p.Key)
		if err != nil {
			return letter.Persistence("store search parameters", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return letter.Persistence("store search parameters", err)
		}
		if affected == 0 {
			// Catalog accepted the key but the lookup table has no row
			// for it, so the caches are stale.
			return fmt.Errorf("search key %q: %w", p.Key, letter.ErrInvalidTag)
		}

		p.ID = l.ID + letter.TagIDSeparator + p.Key
	}

	if err := tx.Commit(); err != nil {
		return letter.Persistence("store search parameters", err)
	}

	l.SearchParameters = surviving
	return nil
}

// SearchParameterNames returns every known tag name.
func (s *sqlStore) SearchParameterNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tag_name FROM tag_lookup ORDER BY tag_name`)
	if err != nil {
		return nil, letter.Persistence("load tag names", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, letter.Persistence("load tag names", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, letter.Persistence("load tag names", err)
	}

	return names, nil
}

// SeedTagNames inserts tag names, skipping ones that already exist.
func (s *sqlStore) SeedTagNames(ctx context.Context, names []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return letter.Persistence("seed tag names", err)
	}
	defer tx.Rollback()

	insert := s.d.rebind(`INSERT INTO tag_lookup (tag_name) VALUES (?)` + s.d.ignoreConflictSuffix())
	for _, name := range names {
		if _, err := tx.ExecContext(ctx, insert, name); err != nil {
			return letter.Persistence("seed tag names", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return letter.Persistence("seed tag names", err)
	}
	return nil
}

// getLetter reads the letter row joined with its recipients. Search
// parameters are loaded separately; most callers do not need them.
func (s *sqlStore) getLetter(ctx context.Context, q queryer, id string) (*letter.Letter, error) {
	query := s.d.rebind(`
		SELECT l.id, l.content, l.subject, l.status_code, l.status_user,
		       l.status_date, l.template_id, l.application_id,
		       l.plain_text_flag, r.recipient_type, r.address
		FROM letters l
		LEFT JOIN recipients r ON r.letter_id = l.id
		WHERE l.id = ?
		ORDER BY r.id`)

	rows, err := q.QueryContext(ctx, query, id)
	if err != nil {
		return nil, letter.Persistence("get letter", err)
	}
	defer rows.Close()

	var l *letter.Letter
	info := &letter.EmailInfo{To: []string{}, CC: []string{}, BCC: []string{}}

	for rows.Next() {
		var (
			rowID         int64
			content       string
			subject       string
			statusCode    string
			statusUser    string
			statusDate    time.Time
			templateID    sql.NullString
			applicationID string
			plainFlag     string
			recipType     sql.NullString
			address       sql.NullString
		)
		if err := rows.Scan(&rowID, &content, &subject, &statusCode, &statusUser,
			&statusDate, &templateID, &applicationID, &plainFlag, &recipType, &address); err != nil {
			return nil, letter.Persistence("get letter", err)
		}

		if l == nil {
			status := letter.StatusFromCode(statusCode)
			l = &letter.Letter{
				ID:            fmt.Sprintf("%d", rowID),
				Content:       &content,
				Status:        &status,
				StatusUser:    statusUser,
				StatusDate:    statusDate,
				PlainText:     letter.StringToFlag(plainFlag),
				TemplateID:    templateID.String,
				ApplicationID: applicationID,
				EmailInfo:     info,
			}
			info.Subject = &subject
		}

		if !recipType.Valid {
			continue
		}
		switch recipType.String {
		case letter.RecipientFrom:
			info.From = address.String
		case letter.RecipientTo:
			info.To = append(info.To, address.String)
		case letter.RecipientCC:
			info.CC = append(info.CC, address.String)
		case letter.RecipientBCC:
			info.BCC = append(info.BCC, address.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, letter.Persistence("get letter", err)
	}

	if l == nil {
		return nil, fmt.Errorf("letter %s: %w", id, letter.ErrNotFound)
	}

	return l, nil
}

// getTags loads the search parameters of a letter.
func (s *sqlStore) getTags(ctx context.Context, q queryer, id string) ([]letter.SearchParameter, error) {
	query := s.d.rebind(`
		SELECT t.tag_name, lt.tag_value
		FROM letter_tags lt
		JOIN tag_lookup t ON t.tag_id = lt.tag_id
		WHERE lt.letter_id = ?
		ORDER BY lt.tag_seq`)

	rows, err := q.QueryContext(ctx, query, id)
	if err != nil {
		return nil, letter.Persistence("get search parameters", err)
	}
	defer rows.Close()

	params := []letter.SearchParameter{}
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, letter.Persistence("get search parameters", err)
		}
		params = append(params, letter.SearchParameter{
			ID:    id + letter.TagIDSeparator + name,
			Key:   name,
			Value: value,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, letter.Persistence("get search parameters", err)
	}

	return params, nil
}

// insertRecipients writes the from address and every to, cc, and bcc
// address as typed recipient rows.
func (s *sqlStore) insertRecipients(ctx context.Context, tx *sql.Tx, id string, l *letter.Letter, now time.Time) error {
	if l.EmailInfo == nil {
		return nil
	}

	insert := s.d.rebind(`
		INSERT INTO recipients
			(letter_id, recipient_type, address, last_updt_pgm, last_updt_user, last_updt_tmsp)
		VALUES (?, ?, ?, ?, ?, ?)`)

	write := func(recipType, address string) error {
		_, err := tx.ExecContext(ctx, insert, id, recipType, address, programTag, l.StatusUser, now)
		if err != nil {
			return letter.Persistence("save recipients", err)
		}
		return nil
	}

	if l.EmailInfo.From != "" {
		if err := write(letter.RecipientFrom, l.EmailInfo.From); err != nil {
			return err
		}
	}
	for _, addr := range l.EmailInfo.To {
		if err := write(letter.RecipientTo, addr); err != nil {
			return err
		}
	}
	for _, addr := range l.EmailInfo.CC {
		if err := write(letter.RecipientCC, addr); err != nil {
			return err
		}
	}
	for _, addr := range l.EmailInfo.BCC {
		if err := write(letter.RecipientBCC, addr); err != nil {
			return err
		}
	}

	return nil
}

// nullableString maps "" to NULL for optional columns.
func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
