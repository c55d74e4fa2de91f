package history_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/CZERTAINLY/Sniffer/internal/history"
	"github.com/CZERTAINLY/Sniffer/internal/model"

	"github.com/stretchr/testify/require"
)

func record(user, file string, findings ...model.Finding) history.Record {
	return history.Record{
		User:     user,
		FileName: file,
		Model:    "deepseek/deepseek-chat-v3-0324:free",
		State:    "local_only",
		Findings: findings,
	}
}

var evalFinding = model.Finding{
	Severity:    model.SeverityHigh,
	Message:     "Use of eval() is dangerous and can lead to code injection",
	Line:        2,
	Rule:        "no-eval",
	Improvement: "Avoid eval() and use safer alternatives",
}

var pickleFinding = model.Finding{
	Severity: model.SeverityHigh,
	Message:  "Unsafe deserialization with pickle",
	Line:     7,
	Rule:     "no-unsafe-deserialization",
}

func open(t *testing.T) *history.BoltStore {
	t.Helper()
	store, err := history.OpenBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })
	return store
}

func TestBoltStore(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	store := open(t)

	first, err := store.Save(ctx, record("alice", "app.js", evalFinding))
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	require.False(t, first.CreatedAt.IsZero())

	second, err := store.Save(ctx, record("alice", "worker.py", pickleFinding))
	require.NoError(t, err)
	_, err = store.Save(ctx, record("bob", "Main.java"))
	require.NoError(t, err)

	got, err := store.Get(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, first.FileName, got.FileName)
	require.Equal(t, []model.Finding{evalFinding}, got.Findings)

	list, err := store.List(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, second.ID, list[0].ID)
	require.Equal(t, first.ID, list[1].ID)

	list, err = store.List(ctx, "alice", 1)
	require.NoError(t, err)
	require.Len(t, list, 1)

	list, err = store.List(ctx, "nobody", 0)
	require.NoError(t, err)
	require.Empty(t, list)

	bob, err := store.List(ctx, "bob", 0)
	require.NoError(t, err)
	require.Len(t, bob, 1)
	require.Equal(t, []model.Finding{}, bob[0].Findings)

	require.NoError(t, store.Delete(ctx, first.ID))
	_, err = store.Get(ctx, first.ID)
	require.ErrorIs(t, err, model.ErrNotFound)
	require.ErrorIs(t, store.Delete(ctx, first.ID), model.ErrNotFound)

	list, err = store.List(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestBoltStore_Search(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	store := open(t)

	js, err := store.Save(ctx, record("alice", "app.js", evalFinding))
	require.NoError(t, err)
	py, err := store.Save(ctx, record("bob", "worker.py", pickleFinding))
	require.NoError(t, err)

	var testCases = []struct {
		scenario string
		query    string
		user     string
		then     []string
	}{
		{"message word", "eval", "", []string{js.ID}},
		{"case insensitive", "PICKLE", "", []string{py.ID}},
		{"hyphenated words", "no-unsafe-deserialization", "", []string{py.ID}},
		{"other user", "eval", "bob", nil},
		{"all of user", "", "bob", []string{py.ID}},
		{"no match", "nonexistentword", "", nil},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			recs, err := store.Search(ctx, tc.query, tc.user, 0)
			require.NoError(t, err)
			var ids []string
			for _, r := range recs {
				ids = append(ids, r.ID)
			}
			require.Equal(t, tc.then, ids)
		})
	}

	all, err := store.Search(ctx, "", "", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestBoltStore_Reopen(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	store, err := history.OpenBoltStore(dir)
	require.NoError(t, err)
	rec, err := store.Save(t.Context(), record("alice", "app.js", evalFinding))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = history.OpenBoltStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	got, err := store.Get(t.Context(), rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec.ID, got.ID)
	found, err := store.Search(t.Context(), "eval", "", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
}

func TestRepositoryStore(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		scenario    string
		status      int
		contentType string
		body        string
		wantErr     string
	}{
		{"created", http.StatusCreated, "application/json", `{"id":"42"}`, ""},
		{"empty id", http.StatusCreated, "application/json", `{}`, "unexpected body"},
		{"conflict", http.StatusConflict, "application/problem+json", `{"detail":"already exists"}`, "detail: already exists"},
		{"unauthorized", http.StatusUnauthorized, "application/problem+json; charset=utf-8", `{"detail":"bad token"}`, "status code: 401"},
		{"bad problem type", http.StatusBadRequest, "text/plain", `oops`, "application/problem+json"},
		{"server error", http.StatusInternalServerError, "text/plain", `boom`, "status: 500, body: boom"},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			var got history.Record
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/v1/history" || r.Method != http.MethodPost {
					http.NotFound(w, r)
					return
				}
				if r.Header.Get("Authorization") != "Bearer secret" {
					http.Error(w, "no token", http.StatusTeapot)
					return
				}
				if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
					http.Error(w, err.Error(), http.StatusTeapot)
					return
				}
				w.Header().Set("Content-Type", tc.contentType)
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			t.Cleanup(srv.Close)

			store, err := history.NewRepositoryStore(srv.URL, "secret", srv.Client())
			require.NoError(t, err)
			rec, err := store.Save(t.Context(), record("alice", "app.js", evalFinding))
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotEmpty(t, rec.ID)
			require.Equal(t, rec.ID, got.ID)
			require.Equal(t, "alice", got.User)
		})
	}
}

func TestNewRepositoryStore_BadURL(t *testing.T) {
	t.Parallel()
	for _, u := range []string{"localhost:8080", "http://host/some/path", "://"} {
		_, err := history.NewRepositoryStore(u, "", nil)
		require.Error(t, err, u)
	}
}

type storeFunc func(context.Context, history.Record) (history.Record, error)

func (f storeFunc) Save(ctx context.Context, rec history.Record) (history.Record, error) {
	return f(ctx, rec)
}

func TestTee(t *testing.T) {
	t.Parallel()
	var ids []string
	ok := storeFunc(func(_ context.Context, rec history.Record) (history.Record, error) {
		ids = append(ids, rec.ID)
		return rec, nil
	})
	boom := errors.New("boom")
	failing := storeFunc(func(_ context.Context, rec history.Record) (history.Record, error) {
		ids = append(ids, rec.ID)
		return history.Record{}, boom
	})

	rec, err := history.Tee(ok, failing, ok).Save(t.Context(), record("alice", "app.js"))
	require.ErrorIs(t, err, boom)
	require.NotEmpty(t, rec.ID)
	require.Equal(t, []string{rec.ID, rec.ID, rec.ID}, ids)

	rec, err = history.Discard.Save(t.Context(), record("alice", "app.js"))
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)
}
