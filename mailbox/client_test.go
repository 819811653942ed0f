package mailbox

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/mailbox/queue-1", r.URL.Path)

		var req postRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "aGVsbG8=", req.Data)

		json.NewEncoder(w).Encode(postResponse{ID: "srv-42", Timestamp: 1700000000, Success: true})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	id, err := client.Post(context.Background(), "queue-1", "aGVsbG8=", Meta{})
	require.NoError(t, err)
	assert.Equal(t, "srv-42", id)
}

func TestPostServerReportedFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(postResponse{Success: false})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Post(context.Background(), "q", "data", Meta{})

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "post", terr.Op)
}

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/mailbox/queue-1", r.URL.Path)
		json.NewEncoder(w).Encode(fetchResponse{Messages: []ServerMessage{
			{ID: "m1", Timestamp: 1, Data: "Zmlyc3Q="},
			{ID: "m2", Timestamp: 2, Data: "c2Vjb25k"},
		}})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	messages, err := client.Fetch(context.Background(), "queue-1")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "m1", messages[0].ID)
	assert.Equal(t, "c2Vjb25k", messages[1].Data)
}

func TestFetchNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "queue unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Fetch(context.Background(), "q")

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusServiceUnavailable, terr.Status)
}

func TestDelete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/mailbox/queue-1/m1", r.URL.Path)
		json.NewEncoder(w).Encode(deleteResponse{Success: true, Deleted: "m1"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	assert.NoError(t, client.Delete(context.Background(), "queue-1", "m1"))
}

func TestDeleteReportedFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(deleteResponse{Success: false})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.Delete(context.Background(), "q", "m1")

	var terr *TransportError
	assert.ErrorAs(t, err, &terr)
}

func TestUnreachableRelay(t *testing.T) {
	// Closed server: connection refused.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(server.URL)
	_, err := client.Fetch(context.Background(), "q")

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.NotNil(t, errors.Unwrap(terr))
}
