package forum

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venturechat/internal/auth"
)

func TestOIDAcceptsBothEncodings(t *testing.T) {
	var plain OID
	require.NoError(t, json.Unmarshal([]byte(`"abc123"`), &plain))
	assert.Equal(t, OID("abc123"), plain)

	var extended OID
	require.NoError(t, json.Unmarshal([]byte(`{"$oid":"64b0c1"}`), &extended))
	assert.Equal(t, OID("64b0c1"), extended)
}

func TestMessagePrefersPlainIDOverMongoID(t *testing.T) {
	var msg Message
	require.NoError(t, json.Unmarshal([]byte(`{
		"_id": {"$oid": "m-mongo"},
		"room": {"$oid": "r1"},
		"author": {"user_id": 3, "namespace": "investor", "namespace_id": 9},
		"content": "hi there"
	}`), &msg))

	want := Message{
		ID:      "m-mongo",
		Room:    "r1",
		Author:  auth.Identity{UserID: 3, Namespace: auth.NamespaceInvestor, NamespaceID: 9},
		Content: "hi there",
	}
	if diff := cmp.Diff(want, msg); diff != "" {
		t.Errorf("message mismatch (-want +got):\n%s", diff)
	}

	var withID Message
	require.NoError(t, json.Unmarshal([]byte(`{"id": "m1", "content": "hi"}`), &withID))
	assert.Equal(t, OID("m1"), withID.ID)
}

func TestRoomIDFallbacks(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want OID
	}{
		{"plain id", `{"id": "r1", "name": "Deal room"}`, "r1"},
		{"mongo id", `{"_id": {"$oid": "r2"}, "name": "Deal room"}`, "r2"},
		{"conversation_id from create", `{"conversation_id": "r3", "name": "Deal room"}`, "r3"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var room Room
			require.NoError(t, json.Unmarshal([]byte(tc.in), &room))
			assert.Equal(t, tc.want, room.ID)
			assert.Equal(t, "Deal room", room.Name)
		})
	}
}

func TestUnmarshalPossiblyNested(t *testing.T) {
	var direct []Startup
	require.NoError(t, unmarshalPossiblyNested([]byte(`[{"startup_id":1,"user":2,"name":"Acme"}]`), &direct))
	require.Len(t, direct, 1)

	// Some endpoints return JSON wrapped in a JSON string.
	var nested []Startup
	require.NoError(t, unmarshalPossiblyNested([]byte(`"[{\"startup_id\":1,\"user\":2,\"name\":\"Acme\"}]"`), &nested))
	assert.Equal(t, direct, nested)
}
