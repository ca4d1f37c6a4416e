package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xhunt-server/middleware"
	"xhunt-server/models"
	"xhunt-server/types"
)

type listResponse struct {
	Success       bool                  `json:"success"`
	Notifications []models.Notification `json:"notifications"`
	Pagination    types.Pagination      `json:"pagination"`
	UnreadCount   int64                 `json:"unreadCount"`
}

type notificationResponse struct {
	Success      bool                `json:"success"`
	Notification models.Notification `json:"notification"`
}

type countResponse struct {
	Success bool  `json:"success"`
	Count   int64 `json:"count"`
}

func createBody(userID string, typ models.NotificationType, title, message string) map[string]interface{} {
	return map[string]interface{}{
		"action":  "create",
		"userId":  userID,
		"type":    typ,
		"title":   title,
		"message": message,
	}
}

func TestNotifications_RequireSession(t *testing.T) {
	s := newTestServer(t)

	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete} {
		w := s.do(method, "/api/notifications", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, method)
	}

	w := s.do(http.MethodGet, "/api/notifications", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNotifications_CallerRowMissingIsNotFound(t *testing.T) {
	s := newTestServer(t)
	user, token := s.login("gone@example.com", models.RoleUser)
	require.NoError(t, s.db.Delete(user).Error)

	w := s.do(http.MethodGet, "/api/notifications", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNotifications_Lifecycle(t *testing.T) {
	s := newTestServer(t)
	user, token := s.login("a@example.com", models.RoleUser)

	w := s.do(http.MethodPost, "/api/notifications", token, createBody(user.ID, models.NotificationSystem, "Welcome", "Hi"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created notificationResponse
	decode(t, w, &created)
	assert.Equal(t, "Welcome", created.Notification.Title)
	assert.False(t, created.Notification.Read)

	w = s.do(http.MethodGet, "/api/notifications", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list listResponse
	decode(t, w, &list)
	require.Len(t, list.Notifications, 1)
	assert.Equal(t, created.Notification.ID, list.Notifications[0].ID)
	assert.False(t, list.Notifications[0].Read)
	assert.Equal(t, int64(1), list.UnreadCount)
	assert.Equal(t, int64(1), list.Pagination.Total)

	w = s.do(http.MethodPost, "/api/notifications", token, map[string]interface{}{
		"action":          "mark-read",
		"notificationIds": []string{created.Notification.ID},
	})
	require.Equal(t, http.StatusOK, w.Code)
	var counted countResponse
	decode(t, w, &counted)
	assert.Equal(t, int64(1), counted.Count)

	w = s.do(http.MethodGet, "/api/notifications", token, nil)
	list = listResponse{}
	decode(t, w, &list)
	require.Len(t, list.Notifications, 1)
	assert.True(t, list.Notifications[0].Read)
	assert.Equal(t, int64(0), list.UnreadCount)

	w = s.do(http.MethodDelete, "/api/notifications?id="+created.Notification.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Notification deleted")

	w = s.do(http.MethodGet, "/api/notifications", token, nil)
	list = listResponse{}
	decode(t, w, &list)
	assert.Empty(t, list.Notifications)
	assert.Equal(t, int64(0), list.Pagination.Total)
}

func TestNotifications_ListFiltersAndIsolation(t *testing.T) {
	s := newTestServer(t)
	alice, aliceToken := s.login("alice@example.com", models.RoleUser)
	bob, _ := s.login("bob@example.com", models.RoleUser)

	for _, n := range []models.Notification{
		{UserID: alice.ID, Type: models.NotificationMessage, Title: "t", Message: "m"},
		{UserID: alice.ID, Type: models.NotificationSystem, Title: "t", Message: "m", Read: true},
		{UserID: bob.ID, Type: models.NotificationMessage, Title: "t", Message: "m"},
	} {
		n := n
		require.NoError(t, s.db.Create(&n).Error)
	}

	w := s.do(http.MethodGet, "/api/notifications?type=MESSAGE", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list listResponse
	decode(t, w, &list)
	require.Len(t, list.Notifications, 1)
	assert.Equal(t, alice.ID, list.Notifications[0].UserID)

	w = s.do(http.MethodGet, "/api/notifications?read=true", aliceToken, nil)
	list = listResponse{}
	decode(t, w, &list)
	require.Len(t, list.Notifications, 1)
	assert.Equal(t, int64(1), list.UnreadCount)

	w = s.do(http.MethodGet, "/api/notifications?page=0&limit=999999", aliceToken, nil)
	list = listResponse{}
	decode(t, w, &list)
	assert.Equal(t, 1, list.Pagination.Page)
	assert.Equal(t, 100, list.Pagination.Limit)

	w = s.do(http.MethodGet, "/api/notifications?type=PARTY", aliceToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNotifications_CreateAuthorization(t *testing.T) {
	s := newTestServer(t)
	_, userToken := s.login("user@example.com", models.RoleUser)
	other, _ := s.login("other@example.com", models.RoleUser)
	_, adminToken := s.login("admin@example.com", models.RoleAdmin)

	body := createBody(other.ID, models.NotificationRewardEarned, "Reward", "You earned points")

	w := s.do(http.MethodPost, "/api/notifications", userToken, body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/notifications", adminToken, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created notificationResponse
	decode(t, w, &created)
	assert.Equal(t, other.ID, created.Notification.UserID)

	w = s.do(http.MethodPost, "/api/notifications", adminToken, createBody(uuid.NewString(), models.NotificationSystem, "t", "m"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNotifications_CreateValidationListsEveryField(t *testing.T) {
	s := newTestServer(t)
	user, token := s.login("user@example.com", models.RoleUser)

	w := s.do(http.MethodPost, "/api/notifications", token, createBody(user.ID, "PARTY", "", ""))
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body middleware.ErrorResponse
	decode(t, w, &body)
	assert.False(t, body.Success)
	assert.Equal(t, "Validation failed", body.Error)

	fields := make([]string, 0, len(body.Details))
	for _, d := range body.Details {
		fields = append(fields, d.Field)
	}
	assert.ElementsMatch(t, []string{"type", "title", "message"}, fields)
}

func TestNotifications_CreateWrongJSONTypesListEveryField(t *testing.T) {
	s := newTestServer(t)
	user, token := s.login("user@example.com", models.RoleUser)

	tests := []struct {
		name   string
		body   map[string]interface{}
		fields map[string]string
	}{
		{
			name: "number title and empty message",
			body: map[string]interface{}{"action": "create", "userId": user.ID, "type": models.NotificationSystem, "title": 5, "message": ""},
			fields: map[string]string{
				"title":   "must be a string",
				"message": "must not be empty",
			},
		},
		{
			name: "array data",
			body: map[string]interface{}{"action": "create", "userId": user.ID, "type": models.NotificationSystem, "title": 5, "message": "", "data": []int{1}},
			fields: map[string]string{
				"title":   "must be a string",
				"message": "must not be empty",
				"data":    "must be an object",
			},
		},
		{
			name:   "string data",
			body:   map[string]interface{}{"action": "create", "userId": user.ID, "type": models.NotificationSystem, "title": "t", "message": "m", "data": "str"},
			fields: map[string]string{"data": "must be an object"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/api/notifications", token, tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

			var body middleware.ErrorResponse
			decode(t, w, &body)
			assert.Equal(t, "Validation failed", body.Error)

			got := make(map[string]string, len(body.Details))
			for _, d := range body.Details {
				got[d.Field] = d.Message
			}
			assert.Equal(t, tt.fields, got)
		})
	}

	w := s.do(http.MethodGet, "/api/notifications", token, nil)
	var list listResponse
	decode(t, w, &list)
	assert.Empty(t, list.Notifications)
}

func TestNotifications_UpdateWrongJSONType(t *testing.T) {
	s := newTestServer(t)
	user, token := s.login("user@example.com", models.RoleUser)

	w := s.do(http.MethodPost, "/api/notifications", token, createBody(user.ID, models.NotificationSystem, "t", "m"))
	require.Equal(t, http.StatusCreated, w.Code)
	var created notificationResponse
	decode(t, w, &created)

	w = s.do(http.MethodPut, "/api/notifications?id="+created.Notification.ID, token, map[string]string{"read": "yes"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	var body middleware.ErrorResponse
	decode(t, w, &body)
	require.Len(t, body.Details, 1)
	assert.Equal(t, "read", body.Details[0].Field)
	assert.Equal(t, "must be a boolean", body.Details[0].Message)
}

func TestNotifications_BadRequests(t *testing.T) {
	s := newTestServer(t)
	_, token := s.login("user@example.com", models.RoleUser)

	tests := []struct {
		name string
		body interface{}
	}{
		{"missing action", map[string]interface{}{}},
		{"unknown action", map[string]interface{}{"action": "explode"}},
		{"mark-read without ids", map[string]interface{}{"action": "mark-read"}},
		{"archive with empty ids", map[string]interface{}{"action": "archive", "notificationIds": []string{}}},
		{"ids not an array", map[string]interface{}{"action": "archive", "notificationIds": "abc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/api/notifications", token, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/notifications", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPut, "/api/notifications", token, map[string]bool{"read": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodDelete, "/api/notifications", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNotifications_MarkAllReadAndArchive(t *testing.T) {
	s := newTestServer(t)
	user, token := s.login("user@example.com", models.RoleUser)
	other, _ := s.login("other@example.com", models.RoleUser)

	mine := models.Notification{UserID: user.ID, Type: models.NotificationSystem, Title: "t", Message: "m"}
	theirs := models.Notification{UserID: other.ID, Type: models.NotificationSystem, Title: "t", Message: "m"}
	require.NoError(t, s.db.Create(&mine).Error)
	require.NoError(t, s.db.Create(&theirs).Error)

	var counted countResponse
	decode(t, s.do(http.MethodPost, "/api/notifications", token, map[string]string{"action": "mark-all-read"}), &counted)
	assert.Equal(t, int64(1), counted.Count)
	decode(t, s.do(http.MethodPost, "/api/notifications", token, map[string]string{"action": "mark-all-read"}), &counted)
	assert.Equal(t, int64(0), counted.Count)

	w := s.do(http.MethodPost, "/api/notifications", token, map[string]interface{}{
		"action":          "archive",
		"notificationIds": []string{mine.ID, theirs.ID},
	})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &counted)
	assert.Equal(t, int64(1), counted.Count)

	var list listResponse
	decode(t, s.do(http.MethodGet, "/api/notifications", token, nil), &list)
	assert.Empty(t, list.Notifications)
}

func TestNotifications_ForeignIDsAreNotFound(t *testing.T) {
	s := newTestServer(t)
	_, token := s.login("user@example.com", models.RoleUser)
	other, _ := s.login("other@example.com", models.RoleUser)

	theirs := models.Notification{UserID: other.ID, Type: models.NotificationSystem, Title: "t", Message: "m"}
	require.NoError(t, s.db.Create(&theirs).Error)

	for _, id := range []string{theirs.ID, uuid.NewString()} {
		w := s.do(http.MethodPut, "/api/notifications?id="+id, token, map[string]bool{"read": true})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NotContains(t, w.Body.String(), theirs.Title+`","message`)

		w = s.do(http.MethodDelete, "/api/notifications?id="+id, token, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	}
}

func TestNotifications_UpdateReadOnly(t *testing.T) {
	s := newTestServer(t)
	user, token := s.login("user@example.com", models.RoleUser)
	n := models.Notification{UserID: user.ID, Type: models.NotificationSystem, Title: "t", Message: "m"}
	require.NoError(t, s.db.Create(&n).Error)

	w := s.do(http.MethodPut, "/api/notifications?id="+n.ID, token, map[string]interface{}{"read": true, "title": "hijack"})
	require.Equal(t, http.StatusOK, w.Code)
	var updated notificationResponse
	decode(t, w, &updated)
	assert.True(t, updated.Notification.Read)
	assert.Equal(t, "t", updated.Notification.Title)

	w = s.do(http.MethodPut, "/api/notifications?id="+n.ID, token, map[string]bool{"read": false})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNotifications_LiveStream(t *testing.T) {
	s := newTestServer(t)
	go s.hub.Run()
	t.Cleanup(s.hub.Stop)

	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)

	user, token := s.login("live@example.com", models.RoleUser)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/notifications/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return s.hub.Watching(user.ID) }, 2*time.Second, 10*time.Millisecond)

	w := s.do(http.MethodPost, "/api/notifications", token, createBody(user.ID, models.NotificationMessage, "New message", "Hello"))
	require.Equal(t, http.StatusCreated, w.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "notification.created", event.Type)
	assert.Contains(t, string(event.Data), "New message")

	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "notification.unread_count", event.Type)
	assert.JSONEq(t, `{"unreadCount":1}`, string(event.Data))
}

func TestNotifications_StreamRequiresToken(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/api/notifications/ws", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
