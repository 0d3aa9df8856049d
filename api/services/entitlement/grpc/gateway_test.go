package grpcserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbeaudouin05/entitlements/api/config"
)

func newGatewayServer(t *testing.T) (*httptest.Server, *testEnv) {
	t.Helper()
	env := newTestEnv(t)
	mux := runtime.NewServeMux(runtime.WithIncomingHeaderMatcher(HeaderMatcher))
	require.NoError(t, RegisterGateway(context.Background(), mux, env.srv))
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, env
}

func doJSON(t *testing.T, method, url, body string, header http.Header) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestGateway_Routes(t *testing.T) {
	ts, env := newGatewayServer(t)
	require.NoError(t, env.store.UpsertUserAccount(context.Background(), "payer", "sub_1", "plan", "cus_1"))

	code, created := doJSON(t, http.MethodPost, ts.URL+"/v1/sessions", "", nil)
	require.Equal(t, http.StatusOK, code)
	id, _ := created["session_id"].(string)
	require.NotEmpty(t, id)
	base := ts.URL + "/v1/sessions/" + id

	code, body := doJSON(t, http.MethodGet, base+"/features/listing", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "sign_in", body["presentation"])

	code, body = doJSON(t, http.MethodPut, base+"/identity", `{"user_id":"payer","wait":true}`, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["changed"])
	snap, _ := body["snapshot"].(map[string]any)
	assert.Equal(t, true, snap["is_subscribed"])

	code, body = doJSON(t, http.MethodGet, base+"/features/scan", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["granted"])

	code, body = doJSON(t, http.MethodDelete, base+"/identity?wait=true", "", nil)
	require.Equal(t, http.StatusOK, code)
	snap, _ = body["snapshot"].(map[string]any)
	assert.Equal(t, false, snap["is_subscribed"])

	code, _ = doJSON(t, http.MethodGet, base+"/features/teleport", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = doJSON(t, http.MethodDelete, base, "", nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = doJSON(t, http.MethodGet, base+"/snapshot", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestGateway_TrialRoute(t *testing.T) {
	ts, _ := newGatewayServer(t)

	code, body := doJSON(t, http.MethodPost, ts.URL+"/v1/users/fresh/trial", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "fresh", body["user_id"])

	code, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/users/fresh/trial", "", nil)
	assert.Equal(t, http.StatusConflict, code)
}

func TestGateway_BadBody(t *testing.T) {
	ts, env := newGatewayServer(t)
	sess := env.sessions.Create(context.Background())

	code, _ := doJSON(t, http.MethodPut, ts.URL+"/v1/sessions/"+sess.ID+"/identity", `{"user_id":`, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGateway_WaitMustBeBoolean(t *testing.T) {
	ts, env := newGatewayServer(t)
	require.NoError(t, env.store.UpsertUserAccount(context.Background(), "payer", "sub_1", "plan", "cus_1"))
	sess := env.sessions.Create(context.Background())
	base := ts.URL + "/v1/sessions/" + sess.ID

	code, _ := doJSON(t, http.MethodPut, base+"/identity", `{"user_id":"payer","wait":true}`, nil)
	require.Equal(t, http.StatusOK, code)

	code, body := doJSON(t, http.MethodDelete, base+"/identity?wait=yes", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["message"], "wait")

	code, _ = doJSON(t, http.MethodPut, base+"/identity", `{"user_id":"other","wait":"yes"}`, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	id, ok := sess.Auth().Identity()
	assert.True(t, ok)
	assert.Equal(t, "payer", id, "a rejected request must not change the identity")

	code, body = doJSON(t, http.MethodDelete, base+"/identity?wait=1", "", nil)
	require.Equal(t, http.StatusOK, code)
	snap, _ := body["snapshot"].(map[string]any)
	assert.Equal(t, false, snap["is_loading"])
}

func TestHeaderMatcher(t *testing.T) {
	key, ok := HeaderMatcher(config.SessionHeader)
	assert.True(t, ok)
	assert.Equal(t, "x-session-id", key)

	_, ok = HeaderMatcher("X-Unrelated")
	assert.False(t, ok)
}
