package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"flocksync/internal/domain"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, zap.NewNop())
}

func TestSignInStoresSession(t *testing.T) {
	var gotBody map[string]string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/auth/login", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(domain.Session{
			Token: "tok-1",
			Profile: domain.Profile{
				UserID: "u1", Email: "head@flock.dev",
				Role: domain.RoleUnitHead, UnitID: "unit1",
			},
		})
	})

	session, err := c.SignIn(context.Background(), "head@flock.dev", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", session.Token)
	assert.Equal(t, map[string]string{"email": "head@flock.dev", "password": "secret"}, gotBody)

	profile := c.Profile()
	require.NotNil(t, profile)
	assert.Equal(t, "u1", profile.UserID)
}

func TestSignInRejectsUnknownRole(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"token":   "tok-1",
			"profile": map[string]any{"user_id": "u1", "role": "superuser"},
		})
	})

	_, err := c.SignIn(context.Background(), "a@b.c", "pw")
	require.Error(t, err)
	assert.True(t, IsQuery(err))
}

func TestBearerTokenOnRequests(t *testing.T) {
	var auth string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	})
	c.SetSession(&domain.Session{Token: "tok-9", Profile: domain.Profile{UserID: "u1", Role: domain.RoleUnitHead}})

	_, err := c.Fetch(context.Background(), domain.CollectionMembers, nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-9", auth)
}

func TestFetchEncodesFilter(t *testing.T) {
	var filters []string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/data/members", r.URL.Path)
		filters = r.URL.Query()["filter"]
		w.Write([]byte(`[{"id":"m1"}]`))
	})

	rows, err := c.Fetch(context.Background(), domain.CollectionMembers,
		Where("unit_id", OpEq, "unit1"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"unit_id:eq:unit1"}, filters)
}

func TestCount(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/data/finance_requests/count", r.URL.Path)
		w.Write([]byte(`{"count":7}`))
	})

	n, err := c.Count(context.Background(), domain.CollectionFinanceRequests,
		Where("status", OpEq, "pending"))
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestMutateVerbs(t *testing.T) {
	type call struct{ method, path string }
	var calls []call
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, call{r.Method, r.URL.Path})
		w.Write([]byte(`{"id":"m1"}`))
	})
	ctx := context.Background()

	_, err := c.Insert(ctx, domain.CollectionMembers, domain.Member{ID: "m1"})
	require.NoError(t, err)
	require.NoError(t, c.Update(ctx, domain.CollectionMembers, "m1", domain.Member{ID: "m1"}))
	require.NoError(t, c.DeleteByID(ctx, domain.CollectionMembers, "m1"))
	require.NoError(t, c.Delete(ctx, domain.CollectionMembers, Where("unit_id", OpEq, "unit1")))

	assert.Equal(t, []call{
		{http.MethodPost, "/api/v1/data/members"},
		{http.MethodPatch, "/api/v1/data/members/m1"},
		{http.MethodDelete, "/api/v1/data/members/m1"},
		{http.MethodDelete, "/api/v1/data/members"},
	}, calls)
}

func TestMutateRejectsUnderspecifiedWrites(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request should be sent")
	})
	ctx := context.Background()

	_, err := c.Mutate(ctx, domain.CollectionMembers, Mutation{Op: MutateUpdate, Record: domain.Member{}})
	assert.True(t, IsQuery(err))

	_, err = c.Mutate(ctx, domain.CollectionMembers, Mutation{Op: MutateDelete})
	assert.True(t, IsQuery(err))
}

func TestErrorTaxonomy(t *testing.T) {
	t.Run("network", func(t *testing.T) {
		c := New("http://127.0.0.1:1", zap.NewNop()) // nothing listens here
		_, err := c.Fetch(context.Background(), domain.CollectionMembers, nil)
		require.Error(t, err)
		assert.True(t, IsNetwork(err))
		assert.False(t, IsAuth(err))
	})

	t.Run("auth", func(t *testing.T) {
		for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
			c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
				w.Write([]byte(`{"error":"token expired"}`))
			})
			_, err := c.Fetch(context.Background(), domain.CollectionMembers, nil)
			require.Error(t, err)
			assert.True(t, IsAuth(err), "status %d", status)
		}
	})

	t.Run("query passes backend message verbatim", func(t *testing.T) {
		c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"error":"phone number is not valid"}`))
		})
		_, err := c.Insert(context.Background(), domain.CollectionMembers, domain.Member{ID: "m1"})
		require.Error(t, err)
		assert.True(t, IsQuery(err))

		var re *Error
		require.ErrorAs(t, err, &re)
		assert.Equal(t, "phone number is not valid", re.Message)
		assert.Equal(t, http.StatusUnprocessableEntity, re.Status)
	})

	t.Run("problem json detail", func(t *testing.T) {
		c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"title":"Bad Request","detail":"filter field is unknown"}`))
		})
		_, err := c.Fetch(context.Background(), domain.CollectionMembers, nil)
		var re *Error
		require.ErrorAs(t, err, &re)
		assert.Equal(t, "filter field is unknown", re.Message)
	})
}

func TestUpload(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/storage/avatars/u1/photo.jpg", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"url": "http://cdn.example/avatars/u1/photo.jpg"})
	})

	url, err := c.Upload(context.Background(), "avatars", "u1/photo.jpg", []byte("jpeg-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "http://cdn.example/avatars/u1/photo.jpg", url)
}
