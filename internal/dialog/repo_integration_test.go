//go:build integration

package dialog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/subaccess-bot/internal/dialog"
	"github.com/Spok95/subaccess-bot/internal/infra/db/dbtest"
)

func TestRepo_ScopesAreIndependent(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.NewPool(t)
	user := dialog.NewRepo(pool, dialog.ScopeUser)
	admin := dialog.NewRepo(pool, dialog.ScopeAdmin)

	require.NoError(t, admin.Set(ctx, 1, dialog.StateAdmBroadcast, dialog.Payload{"x": "y"}))

	st, err := user.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, dialog.StateIdle, st.State)

	st, err = admin.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, dialog.StateAdmBroadcast, st.State)
	assert.Equal(t, "y", st.Payload["x"])

	require.NoError(t, admin.Reset(ctx, 1))
	st, err = admin.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, dialog.StateIdle, st.State)

	lang, err := user.GetLang(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, lang)
	require.NoError(t, user.SetLang(ctx, 1, "en"))
	lang, err = admin.GetLang(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "en", lang)
}
