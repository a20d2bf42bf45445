package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMembersRejectsMissingID(t *testing.T) {
	rows := []json.RawMessage{
		json.RawMessage(`{"id":"m1","unit_id":"unit1","full_name":"Grace"}`),
		json.RawMessage(`{"unit_id":"unit1","full_name":"no id"}`),
	}
	_, err := DecodeMembers(rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing id")
}

func TestDecodeMembersIgnoresUnknownFields(t *testing.T) {
	rows := []json.RawMessage{
		json.RawMessage(`{"id":"m1","unit_id":"unit1","full_name":"Grace","extra_column":42}`),
	}
	members, err := DecodeMembers(rows)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "Grace", members[0].FullName)
}

func TestDecodeAnnouncementsSanitizesBody(t *testing.T) {
	rows := []json.RawMessage{
		json.RawMessage(`{"id":"a1","title":"Hi","body":"<p>ok</p><script>alert(1)</script>"}`),
	}
	anns, err := DecodeAnnouncements(rows)
	require.NoError(t, err)
	require.Len(t, anns, 1)
	assert.Equal(t, "<p>ok</p>", anns[0].Body)
}

func TestParseRole(t *testing.T) {
	for _, s := range []string{"unit_head", "unit_pastor", "admin_pastor", "evangelist", "smr"} {
		r, err := ParseRole(s)
		require.NoError(t, err)
		assert.Equal(t, s, string(r))
	}
	_, err := ParseRole("superuser")
	assert.Error(t, err)
}

func TestExecutiveRoles(t *testing.T) {
	assert.True(t, RoleAdminPastor.Executive())
	assert.True(t, RoleSMR.Executive())
	assert.False(t, RoleUnitHead.Executive())
	assert.False(t, RoleUnitPastor.Executive())
	assert.False(t, RoleEvangelist.Executive())
}
