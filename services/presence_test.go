package services

import (
	"doorstep-server/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func newTestPresence(t *testing.T) (*PresenceService, *recordingBroadcaster, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	rec := &recordingBroadcaster{}
	svc := NewPresenceService(db, nil, rec)
	return svc, rec, db
}

func strptr(s string) *string { return &s }

func TestHeartbeatRoundTrip(t *testing.T) {
	svc, _, _ := newTestPresence(t)

	state, err := svc.Heartbeat(1, true, strptr("Nouakchott"))
	assert.NoError(t, err)
	assert.True(t, state.Online)
	assert.Equal(t, "Nouakchott", *state.Location)

	got, err := svc.Get(1)
	assert.NoError(t, err)
	assert.True(t, got.Online)
	assert.Equal(t, "Nouakchott", *got.Location)
}

func TestHeartbeatWithoutLocation(t *testing.T) {
	svc, _, _ := newTestPresence(t)

	// A denied or timed-out geolocation lookup reports no location; the
	// presence update still goes through.
	state, err := svc.Heartbeat(1, true, nil)
	assert.NoError(t, err)
	assert.True(t, state.Online)
	assert.Nil(t, state.Location)
}

func TestExplicitOfflineHeartbeatClearsRecord(t *testing.T) {
	svc, _, db := newTestPresence(t)

	_, err := svc.Heartbeat(1, true, strptr("Nouakchott"))
	assert.NoError(t, err)

	state, err := svc.Heartbeat(1, false, nil)
	assert.NoError(t, err)
	assert.False(t, state.Online)
	assert.Nil(t, state.Location)

	var stored models.UserStatus
	assert.NoError(t, db.Where("user_id = ?", 1).First(&stored).Error)
	assert.False(t, stored.IsOnline)
	assert.Nil(t, stored.Location)
	assert.Nil(t, stored.LastActivity)
}

func TestStalenessDecayAndLazyExpiry(t *testing.T) {
	svc, _, db := newTestPresence(t)

	base := time.Now()
	svc.Now = func() time.Time { return base }

	_, err := svc.Heartbeat(1, true, strptr("Nouakchott"))
	assert.NoError(t, err)

	// Still within the window.
	svc.Now = func() time.Time { return base.Add(29 * time.Second) }
	state, err := svc.Get(1)
	assert.NoError(t, err)
	assert.True(t, state.Online)

	// Past the window: displayed offline, and the stored row is
	// corrected as a side effect of being read.
	svc.Now = func() time.Time { return base.Add(31 * time.Second) }
	state, err = svc.Get(1)
	assert.NoError(t, err)
	assert.False(t, state.Online)
	assert.Nil(t, state.Location)

	var stored models.UserStatus
	assert.NoError(t, db.Where("user_id = ?", 1).First(&stored).Error)
	assert.False(t, stored.IsOnline, "read path reconciles the stale record")
	assert.Nil(t, stored.Location)
	assert.Nil(t, stored.LastActivity)
}

func TestMessageJustSentOverride(t *testing.T) {
	svc, _, _ := newTestPresence(t)

	base := time.Now()
	svc.Now = func() time.Time { return base }

	svc.TouchOnMessage(1)

	// Past the plain staleness window the override still reads online.
	svc.Now = func() time.Time { return base.Add(40 * time.Second) }
	state, err := svc.Get(1)
	assert.NoError(t, err)
	assert.True(t, state.Online)
	assert.True(t, state.MessageJustSent)

	// Past the override TTL the state decays like any other.
	svc.Now = func() time.Time { return base.Add(46 * time.Second) }
	state, err = svc.Get(1)
	assert.NoError(t, err)
	assert.False(t, state.Online)
}

func TestHeartbeatClearsJustSentFlag(t *testing.T) {
	svc, _, db := newTestPresence(t)

	svc.TouchOnMessage(1)
	_, err := svc.Heartbeat(1, true, nil)
	assert.NoError(t, err)

	var stored models.UserStatus
	assert.NoError(t, db.Where("user_id = ?", 1).First(&stored).Error)
	assert.False(t, stored.MessageJustSent, "a regular heartbeat supersedes the override")
}

func TestGetMissingUserIsOffline(t *testing.T) {
	svc, _, _ := newTestPresence(t)

	state, err := svc.Get(9999)
	assert.NoError(t, err, "missing status row must not be an error")
	assert.False(t, state.Online)
	assert.Nil(t, state.Location)
}

func TestPresenceChangeEvents(t *testing.T) {
	svc, rec, _ := newTestPresence(t)

	_, err := svc.Heartbeat(7, true, nil)
	assert.NoError(t, err)

	events := rec.byType(EventPresenceChanged)
	assert.Len(t, events, 1)
	assert.EqualValues(t, 7, events[0].UserID)
	assert.True(t, events[0].Payload.(PresenceState).Online)
}

func TestDisplayedPure(t *testing.T) {
	now := time.Now()
	recent := now.Add(-10 * time.Second)
	stale := now.Add(-35 * time.Second)
	ancient := now.Add(-50 * time.Second)

	assert.False(t, Displayed(nil, now).Online)
	assert.False(t, Displayed(&models.UserStatus{IsOnline: true}, now).Online,
		"online without last-activity reads offline")

	assert.True(t, Displayed(&models.UserStatus{IsOnline: true, LastActivity: &recent}, now).Online)
	assert.False(t, Displayed(&models.UserStatus{IsOnline: true, LastActivity: &stale}, now).Online)

	// The override bridges the gap between the two windows, no further.
	assert.True(t, Displayed(&models.UserStatus{IsOnline: true, LastActivity: &stale, MessageJustSent: true}, now).Online)
	assert.False(t, Displayed(&models.UserStatus{IsOnline: true, LastActivity: &ancient, MessageJustSent: true}, now).Online)

	// Location is only exposed while displayed online.
	loc := "Nouakchott"
	offline := Displayed(&models.UserStatus{IsOnline: true, LastActivity: &stale, Location: &loc}, now)
	assert.Nil(t, offline.Location)
}
