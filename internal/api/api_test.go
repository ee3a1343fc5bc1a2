package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/shikibuild/internal/build"
	"github.com/starford/shikibuild/internal/buildservice"
	"github.com/starford/shikibuild/internal/history"
	"github.com/starford/shikibuild/internal/models"
	"github.com/starford/shikibuild/internal/processor"
	"github.com/starford/shikibuild/internal/sse"
	"github.com/starford/shikibuild/internal/testutil"
)

const post = "# Post\n\n```js\nconst a = 1;\n```\n\n```javs\nclass A {}\n```\n"

// testEnv sets up a content tree, history DB, service and router. An empty
// authToken means auth is disabled.
func testEnv(t *testing.T, authToken string) (*buildservice.Service, http.Handler) {
	t.Helper()
	work := t.TempDir()
	cfg := build.DefaultConfig()
	cfg.ContentDir = testutil.ContentDir(t, map[string]string{"posts/a.md": post})
	cfg.OutputDir = filepath.Join(work, "out")
	cfg.CacheDir = filepath.Join(work, "cache")

	db, err := history.Open(filepath.Join(work, "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	svc := buildservice.New(cfg, processor.DefaultConfig(), testutil.NewFakeHighlighter(),
		buildservice.WithLogger(testutil.Logger()),
		buildservice.WithHistory(db),
	)
	broker := sse.NewBroker(time.Second)
	t.Cleanup(broker.Close)
	return svc, NewRouter(svc, authToken != "", authToken, broker)
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v; body = %s", v, err, w.Body.String())
	}
	return v
}

func TestTriggerAndQueryBuilds(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/builds/latest", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("latest before build = %d", w.Code)
	}

	w = do(t, router, http.MethodPost, "/builds", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("trigger = %d, body = %s", w.Code, w.Body.String())
	}
	report := decode[build.Report](t, w)
	if report.Stats.BlocksTotal != 2 || len(report.Errors) != 1 {
		t.Errorf("report = %+v", report)
	}

	list := decode[BuildListResponse](t, do(t, router, http.MethodGet, "/builds?limit=5", nil))
	if len(list.Builds) != 1 || list.Builds[0].ID != report.ID {
		t.Errorf("builds = %+v", list.Builds)
	}

	w = do(t, router, http.MethodGet, "/builds/"+report.ID, nil)
	if sum := decode[history.Summary](t, w); w.Code != http.StatusOK || sum.ErrorCount != 1 {
		t.Errorf("get build = %d %+v", w.Code, sum)
	}

	errs := decode[[]models.ProcessError](t, do(t, router, http.MethodGet, "/builds/"+report.ID+"/errors", nil))
	if len(errs) != 1 || errs[0].Type != models.ErrLanguageNotSupported {
		t.Errorf("errors = %+v", errs)
	}

	if latest := decode[build.Report](t, do(t, router, http.MethodGet, "/builds/latest", nil)); latest.ID != report.ID {
		t.Errorf("latest = %s, want %s", latest.ID, report.ID)
	}
}

func TestGetBuild_NotFound(t *testing.T) {
	_, router := testEnv(t, "")
	for _, target := range []string{"/builds/nope", "/builds/nope/errors"} {
		if w := do(t, router, http.MethodGet, target, nil); w.Code != http.StatusNotFound {
			t.Errorf("%s = %d, want 404", target, w.Code)
		}
	}
}

func TestLanguages(t *testing.T) {
	_, router := testEnv(t, "")

	list := decode[LanguageListResponse](t, do(t, router, http.MethodGet, "/languages", nil))
	if list.Total == 0 || list.Total != len(list.Languages) {
		t.Errorf("languages = %+v", list)
	}

	check := decode[buildservice.LanguageCheck](t, do(t, router, http.MethodGet, "/languages/js", nil))
	if !check.Supported || check.Language.ID != "javascript" {
		t.Errorf("js = %+v", check)
	}
	check = decode[buildservice.LanguageCheck](t, do(t, router, http.MethodGet, "/languages/javs", nil))
	if check.Supported || len(check.Suggestions) == 0 {
		t.Errorf("javs = %+v", check)
	}
}

func TestThemes(t *testing.T) {
	_, router := testEnv(t, "")
	themes := decode[buildservice.ThemeList](t, do(t, router, http.MethodGet, "/themes", nil))
	if themes.Configured.Dark != processor.DefaultDarkTheme || len(themes.Available) == 0 {
		t.Errorf("themes = %+v", themes)
	}
}

func TestHighlight(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/highlight", HighlightRequest{Code: "x = 1", Lang: "py"})
	res := decode[buildservice.HighlightResult](t, w)
	if w.Code != http.StatusOK || !res.Success || res.HTML == "" {
		t.Errorf("highlight = %d %+v", w.Code, res)
	}

	if w := do(t, router, http.MethodPost, "/highlight", HighlightRequest{Lang: "go"}); w.Code != http.StatusBadRequest {
		t.Errorf("empty code = %d, want 400", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/highlight", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", rec.Code)
	}
}

func TestResults(t *testing.T) {
	svc, router := testEnv(t, "")
	if _, err := svc.Trigger(context.Background()); err != nil {
		t.Fatal(err)
	}

	for _, target := range []string{"/results/posts/a.md", "/results/posts%2Fa.json"} {
		w := do(t, router, http.MethodGet, target, nil)
		if results := decode[[]models.BlockResult](t, w); w.Code != http.StatusOK || len(results) != 2 {
			t.Errorf("%s = %d, %d results", target, w.Code, len(results))
		}
	}
	if w := do(t, router, http.MethodGet, "/results/missing.md", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing = %d, want 404", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/themes", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	if w := do(t, router, http.MethodGet, "/builds", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/builds", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router := testEnv(t, "tok")
	if w := do(t, router, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("events without token = %d, want 401", w.Code)
	}
}
