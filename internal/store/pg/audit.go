package pg

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"authgrid.org/internal/rbac"
)

// Event store --------------------------------------------------------------

type eventStore struct{ db *sql.DB }

func (s *eventStore) Append(ctx context.Context, ev *rbac.SecurityEvent) error {
	_, err := s.db.ExecContext(ctx, `
		insert into security_events(id, event_type, author_user_id, affected_user_id, occurred_utc, details)
		values ($1,$2,$3,$4,$5,$6)
	`, ev.ID, ev.EventType, ev.AuthorUserID, ev.AffectedUserID, ev.OccurredUTC, ev.Details)
	if err != nil {
		return mapConstraintErr(err)
	}
	return nil
}

// List returns events newest first. ULID primary keys preserve insertion
// order, so id breaks occurred_utc ties deterministically.
func (s *eventStore) List(ctx context.Context, filter rbac.EventFilter) ([]rbac.SecurityEvent, error) {
	query := `
		select id, event_type, author_user_id, affected_user_id, occurred_utc, details
		from security_events
	`
	var args []any
	if len(filter.TypePrefixes) > 0 {
		var conds []string
		for _, prefix := range filter.TypePrefixes {
			args = append(args, likePrefix(prefix))
			conds = append(conds, fmt.Sprintf("event_type like $%d", len(args)))
		}
		query += " where " + strings.Join(conds, " or ")
	}
	query += " order by occurred_utc desc, id desc"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []rbac.SecurityEvent
	for rows.Next() {
		var ev rbac.SecurityEvent
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.AuthorUserID, &ev.AffectedUserID, &ev.OccurredUTC, &ev.Details); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// likePrefix escapes LIKE metacharacters so a prefix match stays a prefix
// match.
func likePrefix(prefix string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(prefix) + "%"
}
