package internal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"door-access-backend/config"
	"door-access-backend/internal/api"
	"door-access-backend/internal/clock"
	"door-access-backend/internal/db"
	"door-access-backend/internal/emergency"
	"door-access-backend/internal/engine"
	"door-access-backend/internal/model"
	"door-access-backend/internal/schedule"
	"door-access-backend/internal/store"
	"door-access-backend/internal/tempcode"
)

// monday1030 is a Monday morning inside office hours.
var monday1030 = time.Date(2026, 8, 31, 10, 30, 0, 0, time.UTC)

type testApp struct {
	db     *gorm.DB
	router http.Handler
	board  model.Board
	door   model.Door
	group  model.AccessGroup
}

func newTestApp(t *testing.T, now time.Time) *testApp {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	testDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(testDB))

	board := model.Board{Name: "Main Building", Address: "192.168.1.50"}
	require.NoError(t, testDB.Create(&board).Error)
	door := model.Door{BoardID: board.ID, DoorNumber: 1, Name: "Main Entrance", Override: model.EmergencyNone}
	require.NoError(t, testDB.Create(&door).Error)
	group := model.AccessGroup{Name: "Staff", Doors: []*model.Door{{ID: door.ID}}}
	require.NoError(t, testDB.Create(&group).Error)

	engineCfg := &config.EngineConfig{
		BoardOfflineAfter: 120 * time.Second,
		RelayPulseTimeout: time.Second,
	}

	s := store.NewGormStore(testDB)
	c := clock.Fixed{T: now}
	em := emergency.NewService(s, c)
	resolver := schedule.NewResolver(s, c)
	tempCodes := tempcode.NewService(s, c)
	eng := engine.New(s, c, em, resolver, tempCodes, nil)

	handler := api.NewHandler(s, c, eng, em, resolver, tempCodes, nil, nil, engineCfg)
	router := api.NewRouter(handler, 1000, time.Millisecond)

	return &testApp{db: testDB, router: router, board: board, door: door, group: group}
}

// request performs one call against the in-process router and decodes the
// JSON response into out when it is non-nil.
func (a *testApp) request(t *testing.T, method, path string, body any, out any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), "body: %s", rec.Body.String())
	}
	return rec
}

func (a *testApp) authorize(t *testing.T, value, ctype string) (int, engine.Verdict) {
	var verdict engine.Verdict
	rec := a.request(t, http.MethodPost, "/api/authorize", jsonMap{
		"board_address":    a.board.Address,
		"door_number":      a.door.DoorNumber,
		"credential_value": value,
		"credential_type":  ctype,
	}, nil)
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &verdict))
	}
	return rec.Code, verdict
}

type jsonMap = map[string]any

func TestAccessLifecycle(t *testing.T) {
	app := newTestApp(t, monday1030)

	// --- User provisioning over the API ---

	var created struct {
		ID int64 `json:"id"`
	}
	rec := app.request(t, http.MethodPost, "/api/users", jsonMap{"name": "Alice Johnson"}, &created)
	require.Equal(t, http.StatusCreated, rec.Code)
	userID := created.ID

	// Group membership is managed out of band for now.
	require.NoError(t, app.db.Exec(
		"INSERT INTO group_user_mapping (access_group_id, user_id) VALUES (?, ?)",
		app.group.ID, userID).Error)

	rec = app.request(t, http.MethodPost, fmt.Sprintf("/api/users/%d/credentials", userID),
		jsonMap{"type": "card", "value": "0004512876"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	// The same card value again is rejected before anything is written.
	rec = app.request(t, http.MethodPost, fmt.Sprintf("/api/users/%d/credentials", userID),
		jsonMap{"type": "card", "value": "0004512876"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// --- The card opens the door ---

	code, verdict := app.authorize(t, "0004512876", "card")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, verdict.Granted)
	assert.Equal(t, "Access granted", verdict.Reason)
	assert.Equal(t, "Alice Johnson", verdict.Identity)

	// An unknown card is a clean denial, not an error.
	code, verdict = app.authorize(t, "9999999999", "card")
	require.Equal(t, http.StatusOK, code)
	assert.False(t, verdict.Granted)
	assert.Equal(t, "unknown credential", verdict.Reason)

	// An unknown board is an error and leaves no trace in the log.
	rec = app.request(t, http.MethodPost, "/api/authorize", jsonMap{
		"board_address":    "10.99.99.99",
		"door_number":      1,
		"credential_value": "0004512876",
		"credential_type":  "card",
	}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// --- Audit log ---

	var entries []model.AccessLog
	rec = app.request(t, http.MethodGet, "/api/access_logs", nil, &entries)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, entries, 2)
	assert.False(t, entries[0].Granted, "newest first")
	assert.True(t, entries[1].Granted)
	assert.Equal(t, "Main Entrance", entries[1].DoorName)
}

func TestTempCodeLifecycleOverAPI(t *testing.T) {
	app := newTestApp(t, monday1030)

	var created struct {
		ID int64 `json:"id"`
	}
	rec := app.request(t, http.MethodPost, "/api/temp_codes", jsonMap{
		"code":       "482913",
		"name":       "Plumber",
		"usage_type": "one_time",
		"usage_mode": "per_door",
		"time_type":  "permanent",
		"door_ids":   []int64{app.door.ID},
	}, &created)
	require.Equal(t, http.StatusCreated, rec.Code)
	codeID := created.ID

	// Targeting both doors and groups is invalid.
	rec = app.request(t, http.MethodPost, "/api/temp_codes", jsonMap{
		"code":       "111111",
		"name":       "Bad",
		"usage_type": "one_time",
		"usage_mode": "total",
		"time_type":  "permanent",
		"door_ids":   []int64{app.door.ID},
		"group_ids":  []int64{app.group.ID},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// First presentation opens the door and uses up the code.
	status, verdict := app.authorize(t, "482913", "pin")
	require.Equal(t, http.StatusOK, status)
	assert.True(t, verdict.Granted)
	assert.Equal(t, "Plumber", verdict.Identity)

	var codes []struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	rec = app.request(t, http.MethodGet, "/api/temp_codes", nil, &codes)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, codes, 1)
	assert.Equal(t, "used_up", codes[0].Status)

	// Second presentation is denied.
	status, verdict = app.authorize(t, "482913", "pin")
	require.Equal(t, http.StatusOK, status)
	assert.False(t, verdict.Granted)
	assert.Equal(t, "disabled", verdict.Reason)

	// Reactivation resets the counters; the code works once more.
	rec = app.request(t, http.MethodPost, fmt.Sprintf("/api/temp_codes/%d/activate", codeID), nil, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	status, verdict = app.authorize(t, "482913", "pin")
	require.Equal(t, http.StatusOK, status)
	assert.True(t, verdict.Granted)
}

func TestEmergencyOverAPI(t *testing.T) {
	app := newTestApp(t, monday1030)

	rec := app.request(t, http.MethodPost, fmt.Sprintf("/api/boards/%d/emergency", app.board.ID),
		jsonMap{"mode": "unlock", "actor": "ops"}, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// During an evacuation any PIN opens the door.
	status, verdict := app.authorize(t, "000000", "pin")
	require.Equal(t, http.StatusOK, status)
	assert.True(t, verdict.Granted)
	assert.Equal(t, "emergency evacuation", verdict.Reason)

	rec = app.request(t, http.MethodDelete, fmt.Sprintf("/api/boards/%d/emergency", app.board.ID),
		jsonMap{"actor": "ops"}, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	status, verdict = app.authorize(t, "000000", "pin")
	require.Equal(t, http.StatusOK, status)
	assert.False(t, verdict.Granted)
	assert.Equal(t, "unknown credential", verdict.Reason)

	// A door-level lockdown wins even while the board is clear.
	rec = app.request(t, http.MethodPost, fmt.Sprintf("/api/doors/%d/override", app.door.ID),
		jsonMap{"mode": "lock", "actor": "ops"}, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	status, verdict = app.authorize(t, "000000", "pin")
	require.Equal(t, http.StatusOK, status)
	assert.False(t, verdict.Granted)
	assert.Equal(t, "emergency lockdown", verdict.Reason)
}

func TestBoardStatusOverAPI(t *testing.T) {
	app := newTestApp(t, monday1030)

	var boards []struct {
		ID     int64 `json:"id"`
		Online bool  `json:"online"`
	}
	rec := app.request(t, http.MethodGet, "/api/boards", nil, &boards)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, boards, 1)
	assert.False(t, boards[0].Online, "no heartbeat yet")

	rec = app.request(t, http.MethodPost, fmt.Sprintf("/api/boards/%d/heartbeat", app.board.ID), nil, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// The status cache is deliberately short; wait it out.
	time.Sleep(5 * time.Millisecond)

	rec = app.request(t, http.MethodGet, "/api/boards", nil, &boards)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, boards, 1)
	assert.True(t, boards[0].Online)

	rec = app.request(t, http.MethodPost, "/api/boards/99/heartbeat", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
