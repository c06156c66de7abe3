package service

// Shared test harness: an in-process upstream with accounts, quotas,
// canned search pages, and injectable failures, plus constructors for
// the services under test.

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zlibtools/zdl/internal/catalog"
	"github.com/zlibtools/zdl/internal/credential"
	"github.com/zlibtools/zdl/internal/domain"
	"github.com/zlibtools/zdl/internal/zlibrary"
)

type fakeAccount struct {
	password string
	limit    int
	today    int
}

type upstreamBook struct {
	ID     string `json:"id"`
	Hash   string `json:"hash"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Year   int    `json:"year,omitempty"`
}

type fakeUpstream struct {
	mu       sync.Mutex
	accounts map[string]*fakeAccount

	searchPages  [][]upstreamBook // 1-indexed via searchPages[page-1]
	failSearches int              // next N searches return 502
	failFiles    int              // next N file requests return 502
	failAfter    int              // searches after the first N return 502

	searchCalls      int
	searchSuccesses  int
	searchIdentities []string
	loginCalls       map[string]int

	// onSearch, when set, runs outside the lock before a search request
	// is answered. The second argument is the 1-based call number.
	onSearch func(r *http.Request, call int)
}

// armFailuresAfter makes every search past the next n fail with a 502.
func (f *fakeUpstream) armFailuresAfter(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAfter = n
	f.searchSuccesses = 0
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		accounts:   make(map[string]*fakeAccount),
		loginCalls: make(map[string]int),
	}
}

func (f *fakeUpstream) addAccount(email string, limit int) {
	f.accounts[email] = &fakeAccount{password: "pw-" + email, limit: limit}
}

func (f *fakeUpstream) emailFromCookie(r *http.Request) string {
	c, err := r.Cookie("remix_userkey")
	if err != nil || !strings.HasPrefix(c.Value, "k-") {
		return ""
	}
	return c.Value[len("k-"):]
}

func (f *fakeUpstream) profileJSON(email string) string {
	acct := f.accounts[email]
	return fmt.Sprintf(`{"success":1,"user":{"id":1,"email":%q,"remix_userkey":"k-%s","downloads_limit":%d,"downloads_today":%d}}`,
		email, email, acct.limit, acct.today)
}

func (f *fakeUpstream) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /eapi/user/login", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		r.ParseForm()
		email := r.PostForm.Get("email")
		f.loginCalls[email]++
		acct := f.accounts[email]
		if acct == nil || acct.password != r.PostForm.Get("password") {
			fmt.Fprint(w, `{"success":0,"error":"Incorrect email or password"}`)
			return
		}
		fmt.Fprint(w, f.profileJSON(email))
	})

	mux.HandleFunc("GET /eapi/user/profile", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		email := f.emailFromCookie(r)
		if f.accounts[email] == nil {
			fmt.Fprint(w, `{"success":0,"error":"not logged in"}`)
			return
		}
		fmt.Fprint(w, f.profileJSON(email))
	})

	mux.HandleFunc("POST /eapi/book/search", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.searchCalls++
		call := f.searchCalls
		f.searchIdentities = append(f.searchIdentities, f.emailFromCookie(r))
		hook := f.onSearch
		f.mu.Unlock()
		if hook != nil {
			// Consume the body first: the server only notices a client
			// disconnect (and cancels r.Context()) once the request
			// body has been read, and hooks block on exactly that.
			r.ParseForm()
			hook(r, call)
		}

		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failSearches > 0 {
			f.failSearches--
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		if f.failAfter > 0 && f.searchSuccesses >= f.failAfter {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		f.searchSuccesses++
		r.ParseForm()
		page, _ := strconv.Atoi(r.PostForm.Get("page"))
		if page < 1 {
			page = 1
		}
		var books []upstreamBook
		if page <= len(f.searchPages) {
			books = f.searchPages[page-1]
		}
		resp, _ := json.Marshal(map[string]any{"success": 1, "books": books})
		w.Write(resp)
	})

	mux.HandleFunc("GET /eapi/book/{id}/{hash}/file", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failFiles > 0 {
			f.failFiles--
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		email := f.emailFromCookie(r)
		acct := f.accounts[email]
		if acct == nil {
			fmt.Fprint(w, `{"success":0,"error":"not logged in"}`)
			return
		}
		if acct.today >= acct.limit {
			fmt.Fprint(w, `{"success":0,"error":"You have reached your daily limit"}`)
			return
		}
		acct.today++
		id := r.PathValue("id")
		fmt.Fprintf(w, `{"success":1,"file":{"title":"Book %s","extension":"epub","downloadLink":"http://%s/dl/%s"}}`,
			id, r.Host, id)
	})

	mux.HandleFunc("GET /dl/{id}", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "CONTENT-"+r.PathValue("id"))
	})

	return mux
}

type testEnv struct {
	upstream *fakeUpstream
	store    *catalog.Store
	pool     *zlibrary.Pool
	dir      string
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T, upstream *fakeUpstream, emails ...string) *testEnv {
	t.Helper()
	srv := httptest.NewServer(upstream.handler())
	t.Cleanup(srv.Close)

	store, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"), discardLogger())
	require.NoError(t, err, "open catalog")
	t.Cleanup(func() { store.Close() })

	var creds []domain.Credential
	for _, email := range emails {
		creds = append(creds, domain.Credential{
			Email:         email,
			Password:      "pw-" + email,
			Enabled:       true,
			Status:        domain.StatusUnknown,
			DownloadsLeft: domain.DownloadsUnknown,
		})
	}
	file := credential.NewStateFile(filepath.Join(t.TempDir(), "rotation.json"))
	manager := credential.NewManager(creds, file, discardLogger())
	client := zlibrary.New(zlibrary.Config{BaseURL: srv.URL, RPS: 1000, Burst: 1000}, discardLogger())

	return &testEnv{
		upstream: upstream,
		store:    store,
		pool:     zlibrary.NewPool(client, manager, discardLogger()),
		dir:      t.TempDir(),
	}
}

func (e *testEnv) searchService() *SearchService {
	return NewSearchService(e.pool, NewIngestor(e.store, discardLogger()), e.store, discardLogger())
}

func (e *testEnv) downloadService() *DownloadService {
	return NewDownloadService(e.pool, e.store, e.dir, discardLogger())
}
