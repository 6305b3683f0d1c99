package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/avvvet/matchvote-services/internal/matchsvc/imagestore"
	"github.com/avvvet/matchvote-services/internal/matchsvc/models"
	"github.com/avvvet/matchvote-services/internal/matchsvc/service"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type fakeMatches struct {
	listLimit  int
	created    service.CreateMatchInput
	patched    models.MatchPatch
	patchedID  int
	bulk       service.BulkUpdateInput
	err        error
	match      *models.Match
	matches    []models.Match
	listCalled bool
}

func (f *fakeMatches) ListMatches(_ context.Context, limit int) ([]models.Match, error) {
	f.listCalled = true
	f.listLimit = limit
	return f.matches, f.err
}

func (f *fakeMatches) GetMatch(_ context.Context, gameID int) (*models.Match, error) {
	f.patchedID = gameID
	return f.match, f.err
}

func (f *fakeMatches) CreateMatch(_ context.Context, input service.CreateMatchInput) (*models.Match, error) {
	f.created = input
	return f.match, f.err
}

func (f *fakeMatches) UpdateMatch(_ context.Context, gameID int, patch models.MatchPatch) (*models.Match, error) {
	f.patchedID = gameID
	f.patched = patch
	return f.match, f.err
}

func (f *fakeMatches) BulkUpdate(_ context.Context, input service.BulkUpdateInput) (*models.Match, error) {
	f.bulk = input
	return f.match, f.err
}

func (f *fakeMatches) DeleteMatch(_ context.Context, gameID int) (*models.Match, error) {
	f.patchedID = gameID
	return f.match, f.err
}

type fakeVotes struct {
	input service.VoteInput
	match *models.Match
	tally *models.Tally
	err   error
}

func (f *fakeVotes) CastVote(_ context.Context, input service.VoteInput) (*models.Match, error) {
	f.input = input
	return f.match, f.err
}

func (f *fakeVotes) Tally(_ context.Context, gameID int) (*models.Tally, error) {
	return f.tally, f.err
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type HandlerTestSuite struct {
	suite.Suite
	matches  *fakeMatches
	votes    *fakeVotes
	imageDir string
	router   *chi.Mux
}

func (s *HandlerTestSuite) SetupTest() {
	s.matches = &fakeMatches{}
	s.votes = &fakeVotes{}
	s.imageDir = filepath.Join(s.T().TempDir(), "profiles")

	images := imagestore.NewLocalStore(s.imageDir, "/profiles")
	h := NewHandler(s.matches, s.votes, images, Options{Service: "match", InstanceID: "test-instance"})

	s.router = chi.NewRouter()
	s.router.Use(middleware.RealIP)
	h.SetRoutes(s.router)
}

func (s *HandlerTestSuite) do(method, path, body string) (*httptest.ResponseRecorder, envelope) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func (s *HandlerTestSuite) TestListMatchesWithCount() {
	s.matches.matches = []models.Match{{GameID: 2}, {GameID: 1}}

	rec, env := s.do(http.MethodPost, "/match", `{"count": 2}`)

	s.Equal(http.StatusOK, rec.Code)
	s.True(env.Success)
	s.Equal(2, s.matches.listLimit)
	var got []models.Match
	s.Require().NoError(json.Unmarshal(env.Data, &got))
	s.Len(got, 2)
}

func (s *HandlerTestSuite) TestListMatchesEmptyBodyListsAll() {
	s.matches.matches = []models.Match{}

	rec, env := s.do(http.MethodPost, "/match", "")

	s.Equal(http.StatusOK, rec.Code)
	s.True(env.Success)
	s.True(s.matches.listCalled)
	s.Equal(0, s.matches.listLimit)
	s.JSONEq(`[]`, string(env.Data))
}

func (s *HandlerTestSuite) TestListMatchesRejectsBadInput() {
	rec, env := s.do(http.MethodPost, "/match", `{"count": -1}`)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.False(env.Success)

	rec, _ = s.do(http.MethodPost, "/match", `{"count":`)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.False(s.matches.listCalled)
}

func (s *HandlerTestSuite) TestListMatchesStoreFailure() {
	s.matches.err = errors.New("pq: connection refused")

	rec, env := s.do(http.MethodPost, "/match", `{}`)

	s.Equal(http.StatusInternalServerError, rec.Code)
	s.Equal("Failed to fetch matches", env.Error)
	s.NotContains(rec.Body.String(), "connection refused")
}

func (s *HandlerTestSuite) TestCreateMatchIgnoresUnknownFields() {
	s.matches.match = &models.Match{GameID: 1, Player1: "A", Player2: "B"}

	rec, env := s.do(http.MethodPut, "/match",
		`{"player1":"A","player2":"B","gameTime":"2024-01-01T00:00:00Z","createdAt":"1999-01-01","gameId":77}`)

	s.Equal(http.StatusOK, rec.Code)
	s.True(env.Success)
	s.Equal("A", s.matches.created.Player1)
	s.Equal("2024-01-01T00:00:00Z", s.matches.created.GameTime)
}

func (s *HandlerTestSuite) TestCreateMatchErrors() {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: missing required fields: player1", service.ErrValidation), http.StatusBadRequest},
		{service.ErrConflict, http.StatusConflict},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		s.matches.err = tc.err
		rec, env := s.do(http.MethodPut, "/match", `{"player2":"B"}`)
		s.Equal(tc.status, rec.Code, tc.err.Error())
		s.False(env.Success)
	}
}

func (s *HandlerTestSuite) TestCreateMatchValidationMessageNamesFields() {
	s.matches.err = fmt.Errorf("%w: missing required fields: player1, gameTime", service.ErrValidation)

	_, env := s.do(http.MethodPut, "/match", `{"player2":"B"}`)

	s.Contains(env.Error, "player1")
	s.Contains(env.Error, "gameTime")
}

func (s *HandlerTestSuite) TestLegacyUpdateMethod() {
	s.matches.match = &models.Match{GameID: 3, IsCompleted: true}

	rec, env := s.do("UPDATE", "/match",
		`{"gameId":3,"player1Score":1,"player2Score":0,"winner":"A","isCompleted":true}`)

	s.Equal(http.StatusOK, rec.Code)
	s.True(env.Success)
	s.Equal(3, s.matches.bulk.GameID)
	s.Require().NotNil(s.matches.bulk.IsCompleted)
	s.True(*s.matches.bulk.IsCompleted)
}

func (s *HandlerTestSuite) TestLegacyUpdateNotFound() {
	s.matches.err = fmt.Errorf("%w: 9", service.ErrNotFound)

	rec, env := s.do("UPDATE", "/match",
		`{"gameId":9,"player1Score":1,"player2Score":0,"winner":"A","isCompleted":true}`)

	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("Game not found", env.Error)
}

func (s *HandlerTestSuite) TestGetMatch() {
	s.matches.match = &models.Match{GameID: 5, Player1: "A"}

	rec, env := s.do(http.MethodGet, "/match/5", "")

	s.Equal(http.StatusOK, rec.Code)
	s.Equal(5, s.matches.patchedID)
	var got models.Match
	s.Require().NoError(json.Unmarshal(env.Data, &got))
	s.Equal("A", got.Player1)
}

func (s *HandlerTestSuite) TestGetMatchBadID() {
	for _, path := range []string{"/match/abc", "/match/0", "/match/-3", "/match/2147483648", "/match/99999999999"} {
		rec, env := s.do(http.MethodGet, path, "")
		s.Equal(http.StatusBadRequest, rec.Code, path)
		s.False(env.Success)
	}
}

func (s *HandlerTestSuite) TestGetMatchNotFound() {
	s.matches.err = service.ErrNotFound

	rec, _ := s.do(http.MethodGet, "/match/8", "")
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *HandlerTestSuite) TestUpdateMatchDecodesPatch() {
	s.matches.match = &models.Match{GameID: 4}

	rec, _ := s.do(http.MethodPut, "/match/4", `{"isCompleted":true,"winner":"","createdAt":"2000-01-01T00:00:00Z"}`)

	s.Equal(http.StatusOK, rec.Code)
	s.Equal(4, s.matches.patchedID)
	s.Require().NotNil(s.matches.patched.IsCompleted)
	s.True(*s.matches.patched.IsCompleted)
	s.Require().NotNil(s.matches.patched.Winner)
	s.Equal("", *s.matches.patched.Winner)
	s.Nil(s.matches.patched.Player1Score)
}

func (s *HandlerTestSuite) TestUpdateMatchAcceptsCreateTimeFormats() {
	s.matches.match = &models.Match{GameID: 4}

	cases := map[string]time.Time{
		`"2024-01-01T10:00"`:          time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		`"2024-01-01"`:                time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		`"2024-01-01T10:00:00+02:00"`: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
	}
	for value, want := range cases {
		rec, env := s.do(http.MethodPut, "/match/4", `{"gameTime":`+value+`}`)
		s.Require().Equal(http.StatusOK, rec.Code, env.Error)
		s.Require().NotNil(s.matches.patched.GameTime, value)
		s.True(want.Equal(s.matches.patched.GameTime.Time), value)
	}
}

func (s *HandlerTestSuite) TestUpdateMatchBadGameTimeMessage() {
	for _, body := range []string{`{"gameTime":"yesterday"}`, `{"gameTime":12}`} {
		rec, env := s.do(http.MethodPut, "/match/4", body)
		s.Equal(http.StatusBadRequest, rec.Code, body)
		s.Equal("invalid fields: gameTime", env.Error, body)
		s.NotContains(env.Error, "parsing time")
	}
}

func (s *HandlerTestSuite) TestUpdateMatchNotFound() {
	s.matches.err = service.ErrNotFound

	rec, _ := s.do(http.MethodPut, "/match/4", `{"isCompleted":true}`)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *HandlerTestSuite) TestDeleteMatch() {
	s.matches.match = &models.Match{GameID: 6}

	rec, env := s.do(http.MethodDelete, "/match/6", "")
	s.Equal(http.StatusOK, rec.Code)
	s.True(env.Success)

	s.matches.err = service.ErrNotFound
	rec, _ = s.do(http.MethodDelete, "/match/6", "")
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *HandlerTestSuite) TestTally() {
	s.votes.tally = &models.Tally{GameID: 1, Player1Votes: 2, Player2Votes: 1, TotalVotes: 3,
		Player1Share: "66.67", Player2Share: "33.33"}

	rec, env := s.do(http.MethodGet, "/match/1/tally", "")

	s.Equal(http.StatusOK, rec.Code)
	var got models.Tally
	s.Require().NoError(json.Unmarshal(env.Data, &got))
	s.Equal("66.67", got.Player1Share)
}

func (s *HandlerTestSuite) TestCastVote() {
	s.votes.match = &models.Match{GameID: 1, Player1Votes: 1}

	req := httptest.NewRequest(http.MethodPost, "/vote", strings.NewReader(`{"gameId":1,"player":"player1"}`))
	req.Header.Set("X-Real-IP", "203.0.113.7")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	s.Equal(http.StatusOK, rec.Code)
	s.Equal(1, s.votes.input.GameID)
	s.Equal("player1", s.votes.input.Player)
	s.Equal("203.0.113.7", s.votes.input.Voter)
}

func (s *HandlerTestSuite) TestCastVoteErrors() {
	cases := []struct {
		err     error
		status  int
		message string
	}{
		{fmt.Errorf("%w: invalid fields: player", service.ErrValidation), http.StatusBadRequest, ""},
		{fmt.Errorf("%w: 1", service.ErrVotingClosed), http.StatusBadRequest, "Voting is not allowed for completed games"},
		{fmt.Errorf("%w: 1", service.ErrNotFound), http.StatusNotFound, "Game not found"},
		{errors.New("timeout"), http.StatusInternalServerError, "Failed to vote"},
	}
	for _, tc := range cases {
		s.votes.err = tc.err
		rec, env := s.do(http.MethodPost, "/vote", `{"gameId":1,"player":"player1"}`)
		s.Equal(tc.status, rec.Code, tc.err.Error())
		if tc.message != "" {
			s.Equal(tc.message, env.Error)
		}
	}
}

func (s *HandlerTestSuite) TestHealth() {
	rec, env := s.do(http.MethodGet, "/health", "")

	s.Equal(http.StatusOK, rec.Code)
	s.True(env.Success)
	s.Contains(string(env.Data), "test-instance")
}

func (s *HandlerTestSuite) upload(field string, content []byte) *httptest.ResponseRecorder {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, "avatar.jpg")
	s.Require().NoError(err)
	_, err = part.Write(content)
	s.Require().NoError(err)
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/image", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerTestSuite) TestUploadListAndServeImage() {
	rec := s.upload("file", []byte("fake image bytes"))
	s.Require().Equal(http.StatusOK, rec.Code)

	var uploaded uploadResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &uploaded))
	s.True(uploaded.Success)
	s.Regexp(`^/profiles/\d{13}-[0-9a-f]{7}\.png$`, uploaded.Path)

	rec, _ = s.do(http.MethodGet, "/image", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var listed imagesResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &listed))
	s.True(listed.Success)
	s.Equal([]string{uploaded.Path}, listed.Images)

	rec, _ = s.do(http.MethodGet, uploaded.Path, "")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("fake image bytes", rec.Body.String())
}

func (s *HandlerTestSuite) TestUploadWithoutFile() {
	rec := s.upload("avatar", []byte("x"))

	s.Equal(http.StatusBadRequest, rec.Code)
	var resp uploadResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.False(resp.Success)
	s.Equal("No file uploaded", resp.Error)

	rec, _ = s.do(http.MethodPost, "/image", "")
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerTestSuite) TestListImagesEmpty() {
	rec, _ := s.do(http.MethodGet, "/image", "")

	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"success":true,"images":[]}`, rec.Body.String())
}

func TestHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}

func TestUploadWriteFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "profiles")
	require.NoError(t, os.WriteFile(blocker, []byte("not a dir"), 0o644))

	h := NewHandler(&fakeMatches{}, &fakeVotes{}, imagestore.NewLocalStore(blocker, "/profiles"), Options{})
	r := chi.NewRouter()
	h.SetRoutes(r)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "a.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("x"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/image", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/image", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
