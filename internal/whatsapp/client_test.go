package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-trigger-engine/internal/config"
)

func TestSendMessage(t *testing.T) {
	var got GenericMessage
	var path, auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"messages":[{"id":"wamid.1"}]}`))
	}))
	defer srv.Close()

	c := NewClient(&config.Config{WhatsAppToken: "tok", PhoneNumberID: "default"})
	c.BaseURL = srv.URL

	resp, err := c.SendMessage(context.Background(), "1555", "4477", "hello")
	require.NoError(t, err)

	assert.Equal(t, "wamid.1", resp.MessageID())
	assert.Equal(t, "/1555/messages", path)
	assert.Equal(t, "Bearer tok", auth)
	assert.Equal(t, "4477", got.To)
	assert.Equal(t, "hello", got.Text.Body)
}

func TestSendMessage_DefaultNumberAndErrors(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"bad"}}`))
	}))
	defer srv.Close()

	c := NewClient(&config.Config{PhoneNumberID: "default"})
	c.BaseURL = srv.URL

	_, err := c.SendMessage(context.Background(), "", "4477", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, "/default/messages", path)

	empty := NewClient(&config.Config{})
	_, err = empty.SendMessage(context.Background(), "", "4477", "hello")
	assert.Error(t, err)
}
