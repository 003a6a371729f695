package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connectedFacebook(t *testing.T, handler http.HandlerFunc) (*FacebookAdapter, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/42" {
			w.Write([]byte(`{"id":"42","name":"Demo Page"}`))
			return
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	f := NewFacebookAdapter()
	f.GraphURL = srv.URL
	f.HTTPClient = srv.Client()

	res := f.Connect(context.Background(), map[string]string{"page_id": "42", "access_token": "page-token"})
	require.True(t, res.Success, "connect failed: %s", res.Error)
	assert.Equal(t, "42", res.AccountID)
	assert.Equal(t, "Demo Page", res.AccountName)
	return f, srv
}

func TestFacebookConnectRequiresPageCredentials(t *testing.T) {
	srv, hits := countingServer(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	defer srv.Close()

	f := NewFacebookAdapter()
	f.GraphURL = srv.URL
	f.HTTPClient = srv.Client()

	res := f.Connect(context.Background(), map[string]string{"access_token": "only-a-token"})
	assert.False(t, res.Success)
	assert.EqualValues(t, 0, *hits, "a locally rejected connect must not call out")
}

func TestFacebookIsConnectedRequiresHealthyPageRead(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			w.Write([]byte(`{"error":{"message":"Error validating access token","code":190}}`))
			return
		}
		w.Write([]byte(`{"id":"42","name":"Demo Page"}`))
	}))
	defer srv.Close()

	f := NewFacebookAdapter()
	f.GraphURL = srv.URL
	f.HTTPClient = srv.Client()

	res := f.Connect(context.Background(), map[string]string{"page_id": "42", "access_token": "page-token"})
	require.True(t, res.Success, "connect failed: %s", res.Error)
	assert.True(t, f.IsConnected(context.Background()))

	// A revoked token answers 401; reaching the host is not enough.
	status = http.StatusUnauthorized
	assert.False(t, f.IsConnected(context.Background()))

	status = http.StatusInternalServerError
	assert.False(t, f.IsConnected(context.Background()))
}

func TestFacebookCreateEvent(t *testing.T) {
	var gotQuery map[string]string
	f, _ := connectedFacebook(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/42/events", r.URL.Path)
		q := r.URL.Query()
		gotQuery = map[string]string{
			"name":         q.Get("name"),
			"access_token": q.Get("access_token"),
			"start_time":   q.Get("start_time"),
			"location":     q.Get("location"),
		}
		w.Write([]byte(`{"id":"987654"}`))
	})

	event := f.TransformEvent(sampleEvent())
	res := f.CreateEvent(context.Background(), event)

	require.True(t, res.Success)
	assert.Equal(t, "987654", res.ExternalID)
	assert.Equal(t, "https://www.facebook.com/events/987654", res.ExternalURL)
	assert.NotEmpty(t, res.PublicationID)

	assert.Equal(t, "Community Meetup", gotQuery["name"])
	assert.Equal(t, "page-token", gotQuery["access_token"])
	// 18:00 UTC is 19:00 in Berlin that day.
	assert.Equal(t, "2025-03-01T19:00:00+01:00", gotQuery["start_time"])
	assert.Equal(t, "Kulturhaus, Hauptstr. 1, Berlin, Germany", gotQuery["location"])
}

func TestFacebookRateLimitIsRetryable(t *testing.T) {
	f, _ := connectedFacebook(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"too fast","code":613}}`))
	})

	res := f.CreateEvent(context.Background(), f.TransformEvent(sampleEvent()))
	require.NotNil(t, res.Error)
	assert.Equal(t, "FACEBOOK_613", res.Error.Code)
	assert.True(t, res.Error.Retryable)
}

func TestFacebookRateLimitCodeOverridesTerminalStatus(t *testing.T) {
	// Graph sometimes reports throttling with a 400; the code decides.
	f, _ := connectedFacebook(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"call volume","code":4}}`))
	})

	res := f.CreateEvent(context.Background(), f.TransformEvent(sampleEvent()))
	require.NotNil(t, res.Error)
	assert.Equal(t, "FACEBOOK_4", res.Error.Code)
	assert.True(t, res.Error.Retryable)
}

func TestFacebookClientErrorIsTerminal(t *testing.T) {
	f, _ := connectedFacebook(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"invalid start_time","code":100}}`))
	})

	res := f.CreateEvent(context.Background(), f.TransformEvent(sampleEvent()))
	require.NotNil(t, res.Error)
	assert.Equal(t, "FACEBOOK_100", res.Error.Code)
	assert.False(t, res.Error.Retryable)
}

func TestFacebookServerErrorIsRetryable(t *testing.T) {
	f, _ := connectedFacebook(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`upstream broke`))
	})

	res := f.UpdateEvent(context.Background(), "987654", f.TransformEvent(sampleEvent()))
	require.NotNil(t, res.Error)
	assert.Equal(t, "FACEBOOK_HTTP_502", res.Error.Code)
	assert.True(t, res.Error.Retryable)
}

func TestFacebookDeleteAlreadyGoneIsSuccess(t *testing.T) {
	t.Run("http 404", func(t *testing.T) {
		f, _ := connectedFacebook(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"message":"unknown path","code":803}}`))
		})
		assert.NoError(t, f.DeleteEvent(context.Background(), "987654"))
	})

	t.Run("missing object subcode", func(t *testing.T) {
		f, _ := connectedFacebook(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"Object does not exist","code":100,"error_subcode":33}}`))
		})
		assert.NoError(t, f.DeleteEvent(context.Background(), "987654"))
	})

	t.Run("real failure still errors", func(t *testing.T) {
		f, _ := connectedFacebook(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error":{"message":"not allowed","code":200}}`))
		})
		err := f.DeleteEvent(context.Background(), "987654")
		require.Error(t, err)
		var perr *PublicationError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "FACEBOOK_200", perr.Code)
		assert.False(t, perr.Retryable)
	})
}

func TestFacebookVirtualEventPayload(t *testing.T) {
	var gotQuery map[string]string
	f, _ := connectedFacebook(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"is_online":                    q.Get("is_online"),
			"online_event_third_party_url": q.Get("online_event_third_party_url"),
			"location":                     q.Get("location"),
		}
		w.Write([]byte(`{"id":"111"}`))
	})

	event := sampleEvent()
	event.IsVirtual = true
	event.VirtualURL = "https://stream.example.com/live"

	res := f.CreateEvent(context.Background(), f.TransformEvent(event))
	require.True(t, res.Success)
	assert.Equal(t, "true", gotQuery["is_online"])
	assert.Equal(t, "https://stream.example.com/live", gotQuery["online_event_third_party_url"])
	assert.Empty(t, gotQuery["location"])
}
