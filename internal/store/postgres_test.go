package store

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/mohammad-safakhou/insight/internal/research"
)

func TestSaveSessionUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	sess := research.NewSession("sess-1", "training trend")
	if err := sess.SetOutline("training trend", []research.Section{{Title: "A"}}); err != nil {
		t.Fatalf("SetOutline: %v", err)
	}

	mock.ExpectExec(regexp.QuoteMeta(`
INSERT INTO research_sessions (id, query, status, sections, state, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  sections = EXCLUDED.sections,
  state = EXCLUDED.state,
  updated_at = EXCLUDED.updated_at`)).
		WithArgs(sess.ID, sess.Query, string(sess.Status), 1, sqlmock.AnyArg(), sess.CreatedAt, sess.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	st := NewSessionStore(db)
	if err := st.SaveSession(context.Background(), sess); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetSessionRoundTrip(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	orig := research.NewSession("sess-2", "pace analysis")
	if err := orig.SetOutline("pace analysis", []research.Section{{Title: "Trend"}}); err != nil {
		t.Fatalf("SetOutline: %v", err)
	}
	state, err := orig.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT state FROM research_sessions WHERE id = $1`)).
		WithArgs("sess-2").
		WillReturnRows(sqlmock.NewRows([]string{"state"}).AddRow(state))

	st := NewSessionStore(db)
	got, err := st.GetSession(context.Background(), "sess-2")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.ID != orig.ID || got.Query != orig.Query || len(got.Sections) != 1 {
		t.Fatalf("loaded session mismatch: %+v", got)
	}
}

func TestCreateAndGetUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`
INSERT INTO users (id, email, password_hash, created_at)
VALUES ($1,$2,$3,NOW())`)).
		WithArgs("user-1", "a@b.c", "hashed").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, password_hash FROM users WHERE email = $1`)).
		WithArgs("a@b.c").
		WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash"}).AddRow("user-1", "hashed"))

	st := NewSessionStore(db)
	if err := st.CreateUser(context.Background(), "user-1", "a@b.c", "hashed"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	id, hash, err := st.GetUserByEmail(context.Background(), "a@b.c")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if id != "user-1" || hash != "hashed" {
		t.Fatalf("got (%s, %s)", id, hash)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetUserByEmailNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, password_hash FROM users WHERE email = $1`)).
		WithArgs("nobody@b.c").
		WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash"}))

	st := NewSessionStore(db)
	if _, _, err := st.GetUserByEmail(context.Background(), "nobody@b.c"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT state FROM research_sessions WHERE id = $1`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"state"}))

	st := NewSessionStore(db)
	if _, err := st.GetSession(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
