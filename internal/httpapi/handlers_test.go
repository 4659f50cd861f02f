package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DoyleJ11/lol-trivia-backend/internal/hub"
	"github.com/DoyleJ11/lol-trivia-backend/internal/lobby"
	"github.com/DoyleJ11/lol-trivia-backend/internal/question"
	"github.com/DoyleJ11/lol-trivia-backend/internal/riot"
	"github.com/DoyleJ11/lol-trivia-backend/internal/session"
	"github.com/DoyleJ11/lol-trivia-backend/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver map[string]session.Identity

func (f fakeResolver) ResolveSummoner(_ context.Context, platform, name string) (session.Identity, error) {
	if platform != "EUW1" {
		return session.Identity{}, riot.ErrUnknownPlatform
	}
	id, ok := f[name]
	if !ok {
		return session.Identity{}, riot.ErrNotFound
	}
	return id, nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type stubQuestion struct{}

func (stubQuestion) CorrectAnswer() question.Answer     { return question.Answer{ChampionID: 1} }
func (stubQuestion) CheckAnswer(a question.Answer) bool { return a.ChampionID == 1 }
func (stubQuestion) PublicView() any                    { return struct{}{} }

type stubQuestions struct{}

func (stubQuestions) Next(context.Context) (question.Question, error) { return stubQuestion{}, nil }

func newTestServer(t *testing.T, db Pinger) http.Handler {
	t.Helper()
	rules := lobby.DefaultRules()
	rules.PollTimeout = 50 * time.Millisecond
	h := hub.NewHub(context.Background(), hub.Options{Rules: rules, Questions: stubQuestions{}})
	t.Cleanup(h.Shutdown)

	return SetupRoutes(Deps{
		Hub: h,
		Resolver: fakeResolver{
			"Faker": {Platform: "EUW1", SummonerID: 1, DisplayName: "Faker", ProfileIcon: "http://img/6.png"},
			"Caps":  {Platform: "EUW1", SummonerID: 2, DisplayName: "Caps", ProfileIcon: "http://img/7.png"},
		},
		DB: db,
	})
}

func do(t *testing.T, srv http.Handler, method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func signIn(t *testing.T, srv http.Handler, name string) *http.Cookie {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/portal/select-summoner", `{"platform":"EUW1","summonerName":"`+name+`"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatalf("no session cookie set")
	return nil
}

func TestPortal_SignInAndOut(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := do(t, srv, http.MethodGet, "/portal/site", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "summoner-select", decode[types.SiteResponse](t, rec).State)

	cookie := signIn(t, srv, "Faker")

	site := decode[types.SiteResponse](t, do(t, srv, http.MethodGet, "/portal/site", "", cookie))
	assert.Equal(t, "summoner-home", site.State)
	require.NotNil(t, site.User)
	assert.Equal(t, "Faker", site.User.DisplayName)
	assert.Equal(t, "http://img/6.png", site.User.ProfileIcon)

	rec = do(t, srv, http.MethodPost, "/portal/logout", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	site = decode[types.SiteResponse](t, do(t, srv, http.MethodGet, "/portal/site", "", cookie))
	assert.Equal(t, "summoner-select", site.State)
}

func TestPortal_SelectSummonerErrors(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name   string
		body   string
		status int
		reason string
	}{
		{"unknown summoner", `{"platform":"EUW1","summonerName":"nobody"}`, http.StatusForbidden, "SummonerNotFound"},
		{"unknown platform", `{"platform":"XX","summonerName":"Faker"}`, http.StatusBadRequest, "UnknownPlatform"},
		{"bad body", `not json`, http.StatusBadRequest, "bad-request"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/portal/select-summoner", tc.body, nil)
			assert.Equal(t, tc.status, rec.Code)
			resp := decode[types.ErrorResponse](t, rec)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tc.reason, *resp.Error)
		})
	}
}

func TestLobby_PartyFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t, nil)
	host := signIn(t, srv, "Faker")
	guest := signIn(t, srv, "Caps")

	rec := do(t, srv, http.MethodPost, "/portal/play-party", "{}", host)
	require.Equal(t, http.StatusOK, rec.Code)
	created := decode[types.LobbyCreated](t, rec)
	assert.Nil(t, created.Error)
	require.NotEmpty(t, created.LobbyID)
	base := "/lobby/" + created.LobbyID

	site := decode[types.SiteResponse](t, do(t, srv, http.MethodGet, base+"/site", "", guest))
	assert.Equal(t, "lobby-select", site.State)
	require.NotNil(t, site.Lobby)
	assert.Equal(t, "Faker's lobby", site.Lobby.Name)

	rec = do(t, srv, http.MethodPost, base+"/join", "", guest)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())

	rec = do(t, srv, http.MethodPost, base+"/join", "", guest)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"error":"join-failed"}`, rec.Body.String())

	rec = do(t, srv, http.MethodPost, base+"/lock-answer?round=1", `{"answer":{"championId":1}}`, guest)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"lock-failed"}`, rec.Body.String())

	rec = do(t, srv, http.MethodPost, base+"/updates?sequenceId=0", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	updates := decode[[]types.Update](t, rec)
	require.Len(t, updates, 3)
	assert.Equal(t, types.UpdArrangeLobby, updates[0].Type)
	assert.Equal(t, types.UpdJoinUser, updates[1].Type)
	assert.Equal(t, types.UpdJoinUser, updates[2].Type)
	for i, u := range updates {
		assert.Equal(t, i, u.SequenceID)
	}

	rec = do(t, srv, http.MethodGet, base+"/updates?sequenceId=3", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String(), "caught-up poll times out empty")

	rec = do(t, srv, http.MethodGet, base+"/updates?sequenceId=99", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"sequence-ahead"}`, rec.Body.String())

	rec = do(t, srv, http.MethodPost, base+"/ready", "", host)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"error":null}`, rec.Body.String())
}

func TestLobby_Guards(t *testing.T) {
	srv := newTestServer(t, nil)
	cookie := signIn(t, srv, "Faker")

	rec := do(t, srv, http.MethodPost, "/lobby/nope/join", "", cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodGet, "/lobby/nope/updates?sequenceId=0", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodPost, "/portal/play-party", "{}", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, srv, http.MethodPost, "/portal/play-party", "{}", &http.Cookie{Name: sessionCookie, Value: "forged"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHealthz(t *testing.T) {
	rec := do(t, newTestServer(t, nil), http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, newTestServer(t, fakePinger{}), http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, newTestServer(t, fakePinger{err: errors.New("down")}), http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPortal_PlaySoloStartsImmediately(t *testing.T) {
	srv := newTestServer(t, nil)
	cookie := signIn(t, srv, "Faker")

	rec := do(t, srv, http.MethodPost, "/portal/play-solo", "{}", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	base := "/lobby/" + decode[types.LobbyCreated](t, rec).LobbyID

	assert.Eventually(t, func() bool {
		var site types.SiteResponse
		rec := do(t, srv, http.MethodGet, base+"/site", "", cookie)
		return json.Unmarshal(rec.Body.Bytes(), &site) == nil && site.State == "active-game"
	}, time.Second, 10*time.Millisecond)

	rec = do(t, srv, http.MethodPost, "/portal/play-ranked", "{}", cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
