package flexquery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sendOK = `<FlexStatementResponse timestamp="x"><Status>Success</Status><ReferenceCode>9876</ReferenceCode><Url>u</Url></FlexStatementResponse>`
	inProg = `<FlexStatementResponse timestamp="x"><Status>Warn</Status><ErrorCode>1019</ErrorCode><ErrorMessage>Statement generation in progress. Please try again shortly.</ErrorMessage></FlexStatementResponse>`
	badTok = `<FlexStatementResponse timestamp="x"><Status>Fail</Status><ErrorCode>1015</ErrorCode><ErrorMessage>Token is invalid.</ErrorMessage></FlexStatementResponse>`
)

func newTestClient(t *testing.T, srv *httptest.Server, retries int) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{BaseURL: srv.URL, Token: "tok", QueryID: "42", MaxRetries: retries, RetryDelay: time.Millisecond}, srv.Client())
	require.NoError(t, err)
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	_, err := NewClient(ClientConfig{Token: "tok"}, nil)
	assert.Error(t, err)
}

func TestClient_FetchRetriesWhileGenerating(t *testing.T) {
	var gets int32
	mux := http.NewServeMux()
	mux.HandleFunc("/SendRequest", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.URL.Query().Get("t"))
		assert.Equal(t, "42", r.URL.Query().Get("q"))
		assert.Equal(t, "3", r.URL.Query().Get("v"))
		_, _ = w.Write([]byte(sendOK))
	})
	mux.HandleFunc("/GetStatement", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "9876", r.URL.Query().Get("q"))
		if atomic.AddInt32(&gets, 1) < 3 {
			_, _ = w.Write([]byte(inProg))
			return
		}
		_, _ = w.Write([]byte(report("")))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	body, err := newTestClient(t, srv, 5).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&gets))

	rep, err := ParseBytes(body)
	require.NoError(t, err)
	assert.Empty(t, rep.Fills)
}

func TestClient_GetStatementRetriesExhausted(t *testing.T) {
	var gets int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&gets, 1)
		_, _ = w.Write([]byte(inProg))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, 3).GetStatement(context.Background(), "ref")
	require.Error(t, err)
	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, CodeStatementInProgress, svcErr.Code)
	assert.Equal(t, int32(3), atomic.LoadInt32(&gets))
}

func TestClient_NonRetryableFailsImmediately(t *testing.T) {
	var gets int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&gets, 1)
		_, _ = w.Write([]byte(badTok))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 5)
	_, err := c.GetStatement(context.Background(), "ref")
	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, 1015, svcErr.Code)
	assert.False(t, svcErr.Retryable())
	assert.Equal(t, int32(1), atomic.LoadInt32(&gets))

	_, err = c.SendRequest(context.Background())
	require.True(t, errors.As(err, &svcErr))
}

func TestClient_HTTPStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, 1).SendRequest(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestClient_ContextCancelledDuringWait(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(inProg))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 5)
	c.sleep = sleepCtx
	c.cfg.RetryDelay = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.GetStatement(ctx, "ref")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
