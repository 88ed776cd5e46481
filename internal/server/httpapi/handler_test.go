package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/keybud/internal/cryptox"
	"github.com/dmitrijs2005/keybud/internal/logging"
	"github.com/dmitrijs2005/keybud/internal/server/config"
	"github.com/dmitrijs2005/keybud/internal/server/kv"
	"github.com/dmitrijs2005/keybud/internal/server/messages"
	"github.com/dmitrijs2005/keybud/internal/server/models"
	"github.com/dmitrijs2005/keybud/internal/server/oauth"
	"github.com/dmitrijs2005/keybud/internal/server/repositories/repotest"
	"github.com/dmitrijs2005/keybud/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeProvider struct{}

func (fakeProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (fakeProvider) Exchange(_ context.Context, code string) (*oauth.Profile, error) {
	if code != "good-code" {
		return nil, errors.New("invalid_grant")
	}
	return &oauth.Profile{ID: "42", Email: "ann@example.com", Name: "Ann"}, nil
}

type fakeCompletions struct {
	mu        sync.Mutex
	minted    map[string]string
	completed []string
	notified  []string
	mintErr   error
}

func (f *fakeCompletions) MintNonce(_ context.Context, sessionID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mintErr != nil {
		return "", f.mintErr
	}
	nonce := "nonce-" + sessionID
	f.minted[nonce] = sessionID
	return nonce, nil
}

func (f *fakeCompletions) Complete(_ context.Context, nonce string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, nonce)
	_, ok := f.minted[nonce]
	return ok
}

func (f *fakeCompletions) NotifyCompleted(_ context.Context, sessionID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, sessionID)
	return true
}

type fanoutCall struct {
	msg     *models.Message
	members []int64
}

type fakeFanout struct {
	mu    sync.Mutex
	calls []fanoutCall
}

func (f *fakeFanout) NotifyNewMessage(_ context.Context, msg *models.Message, memberIDs []int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fanoutCall{msg: msg, members: memberIDs})
}

type fakeResolver struct {
	fail map[string]bool
}

func (f *fakeResolver) ResolveURLs(_ context.Context, keys []string, userID int64) (map[string]string, error) {
	out := map[string]string{}
	var err error
	for _, k := range keys {
		if f.fail[k] {
			err = errors.Join(err, errors.New("sign "+k))
			continue
		}
		out[k] = "https://cdn.example.com/" + k
	}
	return out, err
}

type testEnv struct {
	router      *gin.Engine
	users       *services.UserService
	repo        *repotest.Store
	mock        sqlmock.Sqlmock
	completions *fakeCompletions
	fanout      *fakeFanout
	resolver    *fakeResolver
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rm := repotest.NewManager()
	rm.Store.AddUser(1, "one@example.com")
	rm.Store.AddUser(2, "two@example.com")
	rm.Store.AddUser(3, "three@example.com")
	rm.Store.AddConversation(5, 1, 2)

	cipher, err := cryptox.NewCipher("test-secret")
	require.NoError(t, err)
	cursors := kv.NewMemoryStore(time.Minute)
	t.Cleanup(func() { _ = cursors.Close() })

	users := services.NewUserService(db, rm, &config.Config{SecretKey: "k", AccessTokenValidityDuration: time.Hour})

	env := &testEnv{
		users:       users,
		repo:        rm.Store,
		mock:        mock,
		completions: &fakeCompletions{minted: map[string]string{}},
		fanout:      &fakeFanout{},
		resolver:    &fakeResolver{fail: map[string]bool{}},
	}

	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.ClientURL == "" {
		opts.ClientURL = "http://localhost:3000"
	}
	env.router = NewRouter(Deps{
		Users:         users,
		Provider:      fakeProvider{},
		Completions:   env.completions,
		Conversations: services.NewConversationService(db, rm, logging.Discard()),
		Messages:      messages.NewService(db, rm, cipher, cursors, logging.Discard(), 2, time.Hour),
		Fanout:        env.fanout,
		Attachments:   env.resolver,
	}, opts)
	return env
}

func (e *testEnv) token(t *testing.T, userID int64) string {
	t.Helper()
	tok, err := e.users.IssueToken(&models.User{ID: userID, UserName: "user"})
	require.NoError(t, err)
	return tok
}

// do sends a request as userID (0 for anonymous).
func (e *testEnv) do(t *testing.T, method, path string, userID int64, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: e.token(t, userID)})
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}
