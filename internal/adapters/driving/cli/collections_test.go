package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

func TestDeleteCmd(t *testing.T) {
	env := setupTestServices(t)
	addText(t, "sky", "the sky is blue")

	out, err := execute(t, "delete", "sky")

	require.NoError(t, err)
	assert.Contains(t, out, `Deleted sky (1 chunks) from "default".`)
	count, err := env.store.Count(t.Context(), "default")
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = execute(t, "delete", "sky")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCollectionsCmd_Empty(t *testing.T) {
	setupTestServices(t)

	out, err := execute(t, "collections")

	require.NoError(t, err)
	assert.Contains(t, out, "No collections.")
}

func TestCollectionsCmd_List(t *testing.T) {
	setupTestServices(t)
	addText(t, "sky", "the sky is blue")
	_, err := execute(t, "add-text", "--collection", "papers", "--id", "p1", "a paper")
	require.NoError(t, err)
	resetFlags()

	out, err := execute(t, "collections", "list")

	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Regexp(t, `default\s+1\s+32 \(current\)`, out)
	assert.Regexp(t, `papers\s+1\s+32\n`, out)
}

func TestCollectionsCmd_Purge(t *testing.T) {
	env := setupTestServices(t)
	addText(t, "sky", "the sky is blue")

	out, err := execute(t, "collections", "purge", "default")

	require.NoError(t, err)
	assert.Contains(t, out, `Collection "default" purged.`)
	infos, err := env.store.Collections(t.Context())
	require.NoError(t, err)
	assert.Empty(t, infos)
}
