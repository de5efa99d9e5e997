package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/keygate/adapters/events"
	"github.com/layer-3/keygate/adapters/signature"
	"github.com/layer-3/keygate/adapters/store"
	"github.com/layer-3/keygate/adapters/tokenizer"
	"github.com/layer-3/keygate/core"
	"github.com/layer-3/keygate/internal/logging"
	"github.com/layer-3/keygate/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	clock  *quartz.Mock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	clock := quartz.NewMock(t)
	clock.Set(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	signKey, err := tokenizer.GenerateKey()
	require.NoError(t, err)

	builder := core.ChallengeBuilder{
		Domain:  "example.com",
		URI:     "https://example.com",
		ChainID: 1,
		TTL:     10 * time.Minute,
	}
	logger := logging.Discard()
	reg := prometheus.NewRegistry()
	svc := service.NewAuthService(
		builder,
		store.NewMemoryStore(builder.TTL, clock),
		signature.EIP191Recoverer{},
		tokenizer.NewJWTTokenizer(signKey, "keygate", time.Hour, clock),
		events.NopPublisher{},
		service.WithClock(clock),
		service.WithLogger(logger),
		service.WithMetrics(reg),
	)
	return &testServer{router: SetupRouter(svc, reg, logger), clock: clock}
}

func (s *testServer) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestLoginFlow(t *testing.T) {
	srv := newTestServer(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := signature.Address(key)

	w := srv.do(t, http.MethodPost, "/auth/challenge", ChallengeRequest{Address: address}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	challenge := decode[ChallengeResponse](t, w)
	assert.Contains(t, challenge.Message, "Nonce: "+challenge.Nonce)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC), challenge.ExpirationTime.UTC())

	sig, err := signature.Sign(key, []byte(challenge.Message))
	require.NoError(t, err)

	w = srv.do(t, http.MethodPost, "/auth/verify", VerifyRequest{Message: challenge.Message, Signature: sig}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	verified := decode[VerifyResponse](t, w)
	assert.Equal(t, address, verified.Address)
	assert.Equal(t, "Bearer", verified.TokenType)
	assert.Equal(t, int64(3600), verified.ExpiresIn)

	auth := http.Header{"Authorization": {"Bearer " + verified.Credential}}
	w = srv.do(t, http.MethodGet, "/api/me", nil, auth)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	me := decode[map[string]any](t, w)
	assert.Equal(t, address, me["address"])

	w = srv.do(t, http.MethodGet, "/api/authorize", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, address, w.Header().Get("X-Auth-Address"))

	// Replay of the same signed message.
	w = srv.do(t, http.MethodPost, "/auth/verify", VerifyRequest{Message: challenge.Message, Signature: sig}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, core.KindInvalidNonce, decode[ErrorResponse](t, w).Error)

	srv.clock.Advance(2 * time.Hour).MustWait(t.Context())
	w = srv.do(t, http.MethodGet, "/api/me", nil, auth)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, core.KindCredentialExpired, decode[ErrorResponse](t, w).Error)
}

func TestChallenge_BadRequests(t *testing.T) {
	srv := newTestServer(t)

	for name, body := range map[string]any{
		"not json":        "{",
		"missing address": map[string]string{},
		"short address":   ChallengeRequest{Address: "0x1234"},
	} {
		t.Run(name, func(t *testing.T) {
			w := srv.do(t, http.MethodPost, "/auth/challenge", body, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, core.KindInvalidAddress, decode[ErrorResponse](t, w).Error)
		})
	}
}

func TestVerify_BadRequests(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/auth/verify", "{", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, core.KindMalformedMessage, decode[ErrorResponse](t, w).Error)

	w = srv.do(t, http.MethodPost, "/auth/verify", VerifyRequest{Message: "hello", Signature: "0x00"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, core.KindMalformedMessage, decode[ErrorResponse](t, w).Error)
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	srv := newTestServer(t)

	for name, header := range map[string]http.Header{
		"no header":    nil,
		"wrong scheme": {"Authorization": {"Basic Zm9vOmJhcg=="}},
		"empty token":  {"Authorization": {"Bearer "}},
		"garbage":      {"Authorization": {"Bearer not.a.token"}},
	} {
		t.Run(name, func(t *testing.T) {
			w := srv.do(t, http.MethodGet, "/api/me", nil, header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	srv.do(t, http.MethodPost, "/auth/challenge", ChallengeRequest{Address: "0x1234"}, nil)
	w = srv.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `keygate_challenges_total{outcome="InvalidAddress"} 1`)
}
