package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/hireflow/internal/auditctx"
	"github.com/charlesng35/hireflow/internal/database/testutil"
	"github.com/charlesng35/hireflow/internal/models"
)

func TestAuditServiceLogCapturesActorAndDetails(t *testing.T) {
	db := testutil.NewDB(t, testutil.Migrated)
	svc, err := NewAuditService(db)
	require.NoError(t, err)

	ctx := auditctx.WithActor(context.Background(), auditctx.Actor{
		AccountID: "admin-1",
		Email:     "admin@example.com",
		IPAddress: "192.0.2.10",
		UserAgent: "test-agent",
	})

	require.NoError(t, svc.Log(ctx, AuditEntry{
		AccountID: "account-1",
		Action:    models.AuditActionDeactivated,
		Details:   map[string]any{"reason": "left company"},
	}))

	entries, err := svc.ListForAccount(ctx, "account-1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	require.Equal(t, models.AuditActionDeactivated, entry.Action)
	require.NotNil(t, entry.ActorID)
	require.Equal(t, "admin-1", *entry.ActorID)
	require.Equal(t, "admin@example.com", entry.ActorEmail)
	require.Equal(t, "192.0.2.10", entry.IPAddress)
	require.Equal(t, "test-agent", entry.UserAgent)

	var details map[string]any
	require.NoError(t, json.Unmarshal(entry.Details, &details))
	require.Equal(t, "left company", details["reason"])
}

func TestAuditServiceValidatesEntries(t *testing.T) {
	db := testutil.NewDB(t, testutil.Migrated)
	svc, err := NewAuditService(db)
	require.NoError(t, err)

	require.Error(t, svc.Log(context.Background(), AuditEntry{Action: models.AuditActionLogin}))
	require.Error(t, svc.Log(context.Background(), AuditEntry{AccountID: "account-1"}))

	_, err = NewAuditService(nil)
	require.Error(t, err)
}

func TestAuditRecordsCannotBeChanged(t *testing.T) {
	db := testutil.NewDB(t, testutil.Migrated)
	svc, err := NewAuditService(db)
	require.NoError(t, err)
	require.NoError(t, svc.Log(context.Background(), AuditEntry{AccountID: "account-1", Action: models.AuditActionLogin}))

	entries, err := svc.ListForAccount(context.Background(), "account-1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	entry.Action = models.AuditActionLogout
	require.ErrorIs(t, db.Save(&entry).Error, models.ErrAuditImmutable)
	require.ErrorIs(t, db.Delete(&entry).Error, models.ErrAuditImmutable)
}

func TestAuditListingIsCapped(t *testing.T) {
	db := testutil.NewDB(t, testutil.Migrated)
	svc, err := NewAuditService(db)
	require.NoError(t, err)

	for i := 0; i < defaultAuditLimit+5; i++ {
		require.NoError(t, svc.Log(context.Background(), AuditEntry{AccountID: "account-1", Action: models.AuditActionLogin}))
	}

	entries, err := svc.ListForAccount(context.Background(), "account-1", 0)
	require.NoError(t, err)
	require.Len(t, entries, defaultAuditLimit)

	entries, err = svc.ListForAccount(context.Background(), "account-1", 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
}
