package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/login/", r.URL.Path)
		w.Write([]byte(`[{"id":1,"username":"juan"}]`))
	}))
	defer ts.Close()

	res, err := NewClient(ts.URL).Login(context.Background(), "juan", "x")
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.NotNil(t, res.User)
	assert.Equal(t, 1, res.User.ID)
	assert.Equal(t, "juan", res.User.Username)
	assert.Empty(t, res.Error)
}

func TestLoginRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	res, err := NewClient(ts.URL).Login(context.Background(), "juan", "wrong")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Nil(t, res.User)
	assert.Equal(t, "Credenciales incorrectas", res.Error)
}

func TestLoginNon2xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer ts.Close()

	res, err := NewClient(ts.URL).Login(context.Background(), "juan", "x")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "Credenciales incorrectas", res.Error)
}

func TestFetchBMEEnvelope(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bme", r.URL.Path)
		w.Write([]byte(`{"BME":[{"temperatura":20},{"temperatura":24,"humedad":40}]}`))
	}))
	defer ts.Close()

	recs, err := NewClient(ts.URL).FetchBME(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.NotNil(t, recs[1].Temperatura.Ptr())
	assert.Equal(t, 24.0, *recs[1].Temperatura.Ptr())
	require.NotNil(t, recs[1].Humedad.Ptr())
	assert.Equal(t, 40.0, *recs[1].Humedad.Ptr())
	assert.Nil(t, recs[0].Humedad.Ptr())
}

func TestFetchUnauthorizedIsError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL).FetchGSR(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestBearerHeader(t *testing.T) {
	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.Write([]byte(`{"MLX":[]}`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL)

	// Without a token no header is sent at all.
	_, err := c.FetchMLX(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)

	c.SetToken("abc123")
	_, err = c.FetchMLX(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc123", got)
}

func TestFetchWSStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ws-status", r.URL.Path)
		w.Write([]byte(`{"clients_connected":3}`))
	}))
	defer ts.Close()

	st, err := NewClient(ts.URL).FetchWSStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, st.ClientsConnected)
}

func TestPostReadingRequiresToken(t *testing.T) {
	var auth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	c := NewClient(ts.URL)
	c.SetToken("tok")
	err := c.PostReading(context.Background(), "/bme", map[string]float64{"temperatura": 21})
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", auth)
}
