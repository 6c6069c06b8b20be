package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mythforge/pkg/auth"
	"mythforge/pkg/inference"
	"mythforge/pkg/metrics"
	"mythforge/pkg/oracle"
	"mythforge/pkg/schema"
	"mythforge/pkg/store"
)

const (
	demeter  = "Name of Greek/Goddess: Demeter\n\nNarrative:\n\"Demeter put a spade in the mortal's hand.\""
	poseidon = "Name of Greek/Goddess: Poseidon\n\nNarrative:\n\"The sea rose to meet the sailor.\""
)

// fakeGenerator answers every call with the same outcome and remembers the user prompts.
type fakeGenerator struct {
	mu      sync.Mutex
	outcome inference.Outcome
	prompts []string
}

func (g *fakeGenerator) Generate(_ context.Context, _, user string, _ float64) inference.Outcome {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, user)
	return g.outcome
}

func (g *fakeGenerator) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

type harness struct {
	t        *testing.T
	srv      *Server
	gen      *fakeGenerator
	verifier *auth.Verifier
}

func newHarness(t *testing.T, outcome inference.Outcome) *harness {
	t.Helper()

	st, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	v, err := auth.NewVerifier("server-test")
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	gen := &fakeGenerator{outcome: outcome}
	o := oracle.New(gen, st,
		oracle.WithMetrics(metrics.NewPipeline(reg)),
		oracle.WithLogger(log.New(io.Discard)),
	)

	srv := NewServer(o, st, v, Options{Gatherer: reg})
	srv.now = func() time.Time { return time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC) }
	return &harness{t: t, srv: srv, gen: gen, verifier: v}
}

func (h *harness) token(userID, role string) string {
	h.t.Helper()
	tok, err := h.verifier.Sign(auth.Claims{UserID: auth.UserID(userID), Role: role})
	require.NoError(h.t, err)
	return tok
}

func (h *harness) do(method, path, body, token string) *httptest.ResponseRecorder {
	h.t.Helper()
	return h.doContext(context.Background(), method, path, body, token)
}

func (h *harness) doContext(ctx context.Context, method, path, body, token string) *httptest.ResponseRecorder {
	h.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequestWithContext(ctx, method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.srv.Echo.ServeHTTP(rec, req)
	return rec
}

type mythResponse struct {
	Message string      `json:"message"`
	Myth    schema.Myth `json:"myth"`
}

type rawMythResponse struct {
	Myth map[string]any `json:"myth"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestPublicRoutes(t *testing.T) {
	h := newHarness(t, inference.Success(demeter))

	rec := h.do(http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"service":"MythForge API","status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = h.do(http.MethodGet, "/api/ping", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/myths", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/api/myths", `{"event":"x"}`, "bogus").Code)
	assert.Empty(t, h.gen.Prompts())
}

func TestPostMyth_Demeter(t *testing.T) {
	h := newHarness(t, inference.Success(demeter))

	rec := h.do(http.MethodPost, "/api/myths", `{"event":"I lost my job but started a garden"}`, h.token("42", auth.RoleUser))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[mythResponse](t, rec)
	assert.Equal(t, "Myth created successfully", resp.Message)
	assert.Equal(t, "Demeter", resp.Myth.Label)
	assert.Contains(t, resp.Myth.Narrative, "Demeter")
	assert.Equal(t, oracle.DefaultTitle, resp.Myth.Title)
	assert.Equal(t, "42", resp.Myth.OwnerID)
	assert.NotEmpty(t, resp.Myth.ID)
	assert.Equal(t, []string{`Life Event: "I lost my job but started a garden"`}, h.gen.Prompts())

	wire := decode[rawMythResponse](t, rec).Myth
	for _, key := range []string{"id", "label", "narrative", "created_at"} {
		assert.Contains(t, wire, key)
	}
	assert.Equal(t, "Demeter", wire["label"])
	assert.NotContains(t, wire, "source_event_id", "omitted for free-text events")

	rec = h.do(http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `mythforge_synthesis_total{state="finalized"} 1`)
}

func TestPostMyth_ForeignLabel(t *testing.T) {
	h := newHarness(t, inference.Success(poseidon))

	rec := h.do(http.MethodPost, "/api/myths", `{"event":"I went sailing","title":"At sea"}`, h.token("1", ""))
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decode[mythResponse](t, rec)
	assert.Equal(t, "Zeus", resp.Myth.Label)
	assert.Equal(t, "\"The sea rose to meet the sailor.\"", resp.Myth.Narrative)
	assert.Equal(t, "At sea", resp.Myth.Title)
}

func TestPostMyth_GeneratorDown(t *testing.T) {
	h := newHarness(t, inference.Failure(inference.ReasonTransport, io.ErrUnexpectedEOF))

	rec := h.do(http.MethodPost, "/api/myths", `{"event":"I ran a marathon"}`, h.token("1", ""))
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decode[mythResponse](t, rec)
	assert.Equal(t, "Zeus", resp.Myth.Label)
	assert.Equal(t, oracle.ApologyNarrative, resp.Myth.Narrative)
}

func TestPostMyth_BadRequests(t *testing.T) {
	h := newHarness(t, inference.Success(demeter))
	tok := h.token("1", "")

	for _, body := range []string{`{"event":""}`, `{"event":"   "}`, `{}`} {
		rec := h.do(http.MethodPost, "/api/myths", body, tok)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Contains(t, rec.Body.String(), "Life event description is required")
	}
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/api/myths", `{"event":`, tok).Code)
	assert.Empty(t, h.gen.Prompts(), "no generation for rejected requests")
}

func TestPostMyth_FromLifeEvent(t *testing.T) {
	h := newHarness(t, inference.Success(demeter))
	alice, bob := h.token("alice", ""), h.token("bob", "")

	rec := h.do(http.MethodPost, "/api/life-events", `{"title":"Started a garden","description":"Tomatoes everywhere"}`, alice)
	require.Equal(t, http.StatusCreated, rec.Code)
	ev := decode[schema.LifeEvent](t, rec)

	rec = h.do(http.MethodPost, "/api/myths", `{"event_id":"`+ev.ID+`"}`, alice)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[mythResponse](t, rec)
	assert.Equal(t, ev.ID, resp.Myth.SourceEventID)
	assert.Equal(t, ev.ID, decode[rawMythResponse](t, rec).Myth["source_event_id"])
	assert.Equal(t, []string{`Life Event: "Started a garden: Tomatoes everywhere"`}, h.gen.Prompts())

	rec = h.do(http.MethodPost, "/api/myths", `{"event_id":"`+ev.ID+`"}`, bob)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = h.do(http.MethodPost, "/api/myths", `{"event_id":"missing","event":"text"}`, alice)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Len(t, h.gen.Prompts(), 1)
}

func TestGetMyths(t *testing.T) {
	h := newHarness(t, inference.Success(demeter))
	alice, bob := h.token("alice", ""), h.token("bob", "")

	var ids []string
	for _, event := range []string{"first", "second"} {
		rec := h.do(http.MethodPost, "/api/myths", `{"event":"`+event+`"}`, alice)
		require.Equal(t, http.StatusCreated, rec.Code)
		ids = append(ids, decode[mythResponse](t, rec).Myth.ID)
	}

	rec := h.do(http.MethodGet, "/api/myths", "", alice)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Myths []schema.Myth `json:"myths"`
	}](t, rec)
	assert.Len(t, list.Myths, 2)

	rec = h.do(http.MethodGet, "/api/myths", "", bob)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Myths retrieved successfully","myths":[]}`, rec.Body.String())

	rec = h.do(http.MethodGet, "/api/myths/"+ids[0], "", alice)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ids[0], decode[mythResponse](t, rec).Myth.ID)

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/myths/"+ids[0], "", bob).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/myths/nope", "", alice).Code)
}

func TestLifeEvents(t *testing.T) {
	h := newHarness(t, inference.Success(demeter))
	tok := h.token("7", "")

	rec := h.do(http.MethodPost, "/api/life-events", `{}`, tok)
	require.Equal(t, http.StatusCreated, rec.Code)
	def := decode[schema.LifeEvent](t, rec)
	assert.Equal(t, schema.DefaultEventTitle, def.Title)
	assert.Equal(t, schema.DefaultEventCategory, def.Category)
	assert.Equal(t, "2025-06-15", def.OccurredOn)
	assert.Equal(t, "7", def.OwnerID)

	rec = h.do(http.MethodPost, "/api/life-events", `{"title":"Wedding","event_type":"family","event_date":"2026-05-02T10:00:00Z"}`, tok)
	require.Equal(t, http.StatusCreated, rec.Code)
	wedding := decode[schema.LifeEvent](t, rec)
	assert.Equal(t, "2026-05-02", wedding.OccurredOn)

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/api/life-events", `{"title":"  "}`, tok).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/api/life-events", `{"event_date":"yesterday"}`, tok).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/api/life-events", `[`, tok).Code)

	rec = h.do(http.MethodGet, "/api/life-events", "", tok)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[[]schema.LifeEvent](t, rec)
	require.Len(t, events, 2)
	assert.Equal(t, wedding.ID, events[0].ID)
	assert.Equal(t, def.ID, events[1].ID)
}

func TestVocabularyAndIdentity(t *testing.T) {
	h := newHarness(t, inference.Success(demeter))
	tok := h.token("9", auth.RoleUser)

	rec := h.do(http.MethodGet, "/api/vocabulary", "", tok)
	require.Equal(t, http.StatusOK, rec.Code)
	vocab := decode[struct {
		Deities  []string `json:"deities"`
		Fallback string   `json:"fallback"`
	}](t, rec)
	assert.Len(t, vocab.Deities, 20)
	assert.Equal(t, "Zeus", vocab.Fallback)

	rec = h.do(http.MethodGet, "/api/auth/me", "", tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":{"user_id":"9","role":"user"}}`, rec.Body.String())
}

func TestAdminStats(t *testing.T) {
	h := newHarness(t, inference.Success(demeter))

	rec := h.do(http.MethodPost, "/api/myths", `{"event":"I started a garden"}`, h.token("1", ""))
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/api/admin/stats", "", h.token("1", auth.RoleUser)).Code)

	rec = h.do(http.MethodGet, "/api/admin/stats", "", h.token("root", auth.RoleAdmin))
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[schema.Stats](t, rec)
	assert.Equal(t, 1, st.Myths)
	assert.Equal(t, []schema.LabelCount{{Label: "Demeter", Count: 1}}, st.ByLabel)
}

func TestPostMyth_RequestEndsBeforeSave(t *testing.T) {
	expired, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	cancelled, stop := context.WithCancel(context.Background())
	stop()

	for name, ctx := range map[string]context.Context{"deadline": expired, "cancel": cancelled} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, inference.Success(demeter))
			tok := h.token("1", "")

			rec := h.doContext(ctx, http.MethodPost, "/api/myths", `{"event":"I started a garden"}`, tok)
			assert.Equal(t, http.StatusServiceUnavailable, rec.Code, rec.Body.String())

			rec = h.do(http.MethodGet, "/api/myths", "", tok)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, `{"message":"Myths retrieved successfully","myths":[]}`, rec.Body.String())
		})
	}
}
