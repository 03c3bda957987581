package external

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityClient_GetUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))

		switch r.URL.Path {
		case "/v1/users/user_1":
			w.Write([]byte(`{
				"id": "user_1",
				"first_name": "Ana",
				"last_name": "Lopez",
				"username": "analopez",
				"primary_email_address_id": "idn_2",
				"email_addresses": [
					{"id": "idn_1", "email_address": "old@example.com"},
					{"id": "idn_2", "email_address": "ana@example.com"}
				]
			}`))
		case "/v1/users/user_2":
			w.Write([]byte(`{"id": "user_2", "email_addresses": [{"id": "idn_9", "email_address": "only@example.com"}]}`))
		case "/v1/users/broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewIdentityClient(IdentityConfig{BaseURL: server.URL, SecretKey: "sk_test"})
	ctx := context.Background()

	user, err := client.GetUser(ctx, "user_1")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.Equal(t, "Ana", user.FirstName)
	assert.Equal(t, "Lopez", user.LastName)
	assert.Equal(t, "analopez", user.Username)

	user, err = client.GetUser(ctx, "user_2")
	require.NoError(t, err)
	assert.Equal(t, "only@example.com", user.Email)

	user, err = client.GetUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, user)

	_, err = client.GetUser(ctx, "broken")
	assert.Error(t, err)
}
