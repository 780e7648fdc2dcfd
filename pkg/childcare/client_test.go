package childcare

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"schoolcomms-backend/pkg/credentials"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSession struct {
	session *credentials.ChildcareSession
}

func (s *staticSession) ChildcareSession() (*credentials.ChildcareSession, error) {
	return s.session, nil
}

func testSessions() SessionProvider {
	return &staticSession{session: &credentials.ChildcareSession{
		Cookies:   map[string]string{"_session": "cookie-value"},
		CSRFToken: "csrf-value",
	}}
}

func TestResolveGuardianIDDirectField(t *testing.T) {
	id, err := resolveGuardianID(map[string]interface{}{
		"user": map[string]interface{}{"guardian_id": "g-123"},
	})
	require.NoError(t, err)
	assert.Equal(t, "g-123", id)
}

func TestResolveGuardianIDPrecedence(t *testing.T) {
	// guardian_id beats id even when both are present
	id, err := resolveGuardianID(map[string]interface{}{
		"user": map[string]interface{}{"guardian_id": "g-123", "id": "u-456"},
	})
	require.NoError(t, err)
	assert.Equal(t, "g-123", id)
}

func TestResolveGuardianIDFromRoles(t *testing.T) {
	id, err := resolveGuardianID(map[string]interface{}{
		"user": map[string]interface{}{
			"roles": []interface{}{
				map[string]interface{}{"type": "staff", "id": "s-1"},
				map[string]interface{}{"type": "guardian", "id": "g-9"},
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "g-9", id)
}

func TestResolveGuardianIDFromGuardiansList(t *testing.T) {
	id, err := resolveGuardianID(map[string]interface{}{
		"guardians": []interface{}{
			map[string]interface{}{"object_id": "g-77"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "g-77", id)
}

func TestResolveGuardianIDMissing(t *testing.T) {
	_, err := resolveGuardianID(map[string]interface{}{
		"user": map[string]interface{}{"email": "parent@example.com"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "guardian id")
	assert.Contains(t, err.Error(), "email")
}

func TestActivitiesPageNormalization(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/students/st-1/activities", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "2", r.URL.Query().Get("per_page"))
		assert.Equal(t, "csrf-value", r.Header.Get("X-CSRF-Token"))
		cookie, err := r.Cookie("_session")
		require.NoError(t, err)
		assert.Equal(t, "cookie-value", cookie.Value)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"activities": []map[string]interface{}{
				{
					"object_id":   "act-1",
					"action_type": "ac_potty",
					"created_at":  "2026-02-10T14:30:00Z",
					"note":        "All good",
					"actor":       map[string]interface{}{"first_name": "Dana", "last_name": "Lee"},
					"room":        map[string]interface{}{"name": "Toddler Room"},
					"media": []interface{}{
						map[string]interface{}{"image_url": "https://cdn.example.com/photos/pic.jpg?sig=abc"},
					},
				},
				{
					"object_id":   "act-2",
					"action_type": "meal",
					"created_at":  "2026-02-10T12:00:00Z",
					"details_blob": map[string]interface{}{
						"food_type":   "Lunch",
						"amount_type": "all",
					},
				},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 2, testSessions())
	items, hasMore, err := client.ActivitiesPage(context.Background(), Dependent{ID: "st-1", FirstName: "Maya"}, 1)
	require.NoError(t, err)
	assert.True(t, hasMore, "full page implies more")
	require.Len(t, items, 2)

	first := items[0]
	assert.Equal(t, "childcare_act_act-1", first.SourceID)
	assert.Equal(t, "Maya: Potty", first.Title)
	assert.Equal(t, "Dana Lee", first.Sender)
	assert.Equal(t, "Toddler Room", first.Room)
	assert.Equal(t, "All good", first.BodyPlain)
	require.Len(t, first.Attachments, 1)
	assert.Equal(t, "pic.jpg", first.Attachments[0].Filename)
	assert.NotEmpty(t, first.DetailBlob)

	second := items[1]
	assert.Equal(t, "Food: Lunch\nAmount: all", second.BodyPlain)
}

func TestMessagesPageNormalization(t *testing.T) {
	longBody := ""
	for i := 0; i < 10; i++ {
		longBody += "reminder about the field trip "
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/students/st-1/messages", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"has_more": false,
			"results": []map[string]interface{}{
				{
					"message": map[string]interface{}{
						"object_id":  "msg-1",
						"body":       longBody,
						"created_at": "2026-02-11T09:00:00Z",
						"sender":     map[string]interface{}{"first_name": "Ms.", "last_name": "Rivera"},
					},
				},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 50, testSessions())
	items, hasMore, err := client.MessagesPage(context.Background(), Dependent{ID: "st-1", FirstName: "Maya"}, 1)
	require.NoError(t, err)
	assert.False(t, hasMore)
	require.Len(t, items, 1)

	msg := items[0]
	assert.Equal(t, "childcare_msg_msg-1", msg.SourceID)
	assert.Contains(t, msg.Title, "Maya: Message: ")
	assert.Contains(t, msg.Title, "...")
	assert.Equal(t, "Ms. Rivera", msg.Sender)
	assert.Equal(t, longBody, msg.BodyPlain)
}

func TestSessionExpired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, 50, testSessions())
	_, err := client.GuardianID(context.Background())
	assert.ErrorIs(t, err, ErrSessionExpired)
}
