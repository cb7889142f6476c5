package pg

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"authgrid.org/internal/rbac"
)

func TestEventStoreAppend(t *testing.T) {
	store, mock := newMockStore(t)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec("insert into security_events").
		WithArgs("01HZX0000000000000000000EV", rbac.EventLoginSuccess, "u1", "u1", at, "provider=Okta").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Events(context.Background()).Append(context.Background(), &rbac.SecurityEvent{
		ID:             "01HZX0000000000000000000EV",
		EventType:      rbac.EventLoginSuccess,
		AuthorUserID:   "u1",
		AffectedUserID: "u1",
		OccurredUTC:    at,
		Details:        "provider=Okta",
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEventStoreListUnfiltered(t *testing.T) {
	store, mock := newMockStore(t)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("from security_events.*order by occurred_utc desc, id desc").
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_type", "author_user_id", "affected_user_id", "occurred_utc", "details"}).
			AddRow("ev2", rbac.EventRoleAssigned, "admin", "u1", at.Add(time.Minute), "from=BasicUser to=SecurityAuditor").
			AddRow("ev1", rbac.EventLoginSuccess, "u1", "u1", at, "provider=Okta"))

	events, err := store.Events(context.Background()).List(context.Background(), rbac.EventFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 2 || events[0].ID != "ev2" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestEventStoreListWithPrefixes(t *testing.T) {
	store, mock := newMockStore(t)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("where event_type like \\$1 or event_type like \\$2").
		WithArgs("Login%", "Logout%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_type", "author_user_id", "affected_user_id", "occurred_utc", "details"}).
			AddRow("ev1", rbac.EventLoginSuccess, "u1", "u1", at, "provider=Okta"))

	events, err := store.Events(context.Background()).List(context.Background(), rbac.EventFilter{
		TypePrefixes: []string{"Login", "Logout"},
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 1 || events[0].EventType != rbac.EventLoginSuccess {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestLikePrefixEscaping(t *testing.T) {
	cases := map[string]string{
		"Login":   "Login%",
		"a%b":     `a\%b%`,
		"a_b":     `a\_b%`,
		`a\b`:     `a\\b%`,
		"":        "%",
		"Log_in%": `Log\_in\%%`,
	}
	for in, want := range cases {
		if got := likePrefix(in); got != want {
			t.Fatalf("likePrefix(%q) = %q, want %q", in, got, want)
		}
	}
}
