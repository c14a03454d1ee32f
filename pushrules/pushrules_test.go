package pushrules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func notifyRule(id string, enabled bool) Rule {
	return Rule{RuleID: id, Enabled: enabled, Actions: []Action{{Simple: "notify"}}}
}

func dontNotifyRule(id string, enabled bool) Rule {
	return Rule{RuleID: id, Enabled: enabled, Actions: []Action{{Simple: "dont_notify"}}}
}

func TestEvaluatePrecedenceOverrideBeatsUnderride(t *testing.T) {
	rules := RuleSet{
		KindOverride:  {dontNotifyRule(".m.rule.master", true)},
		KindUnderride: {notifyRule(".m.rule.message", true)},
	}
	rules[KindOverride][0].Conditions = nil

	actions := Evaluate(rules, Event{"sender": "@bob:example.org"}, nil, RoomContext{})
	require.Len(t, actions, 1)
	assert.Equal(t, "dont_notify", actions[0].Simple)
}

func TestDisabledRuleConsumesPrecedenceButDoesNotMatch(t *testing.T) {
	rules := RuleSet{
		KindOverride: {
			dontNotifyRule("disabled-rule", false),
			notifyRule("later-rule", true),
		},
	}
	actions := Evaluate(rules, Event{}, nil, RoomContext{})
	require.Len(t, actions, 1)
	assert.Equal(t, "notify", actions[0].Simple)
}

func TestRoomRuleMatchesExactRoomID(t *testing.T) {
	rules := RuleSet{
		KindRoom: {notifyRule("!abc:example.org", true)},
	}
	actions := Evaluate(rules, Event{"room_id": "!abc:example.org"}, nil, RoomContext{})
	assert.Len(t, actions, 1)

	actions = Evaluate(rules, Event{"room_id": "!other:example.org"}, nil, RoomContext{})
	assert.Nil(t, actions)
}

func TestSenderRuleMatchesExactSender(t *testing.T) {
	rules := RuleSet{
		KindSender: {notifyRule("@alice:example.org", true)},
	}
	actions := Evaluate(rules, Event{"sender": "@alice:example.org"}, nil, RoomContext{})
	assert.Len(t, actions, 1)

	actions = Evaluate(rules, Event{"sender": "@bob:example.org"}, nil, RoomContext{})
	assert.Nil(t, actions)
}

func TestContentRuleUsesImplicitEventMatchOnBody(t *testing.T) {
	rules := RuleSet{
		KindContent: {{
			RuleID:  "alert-word",
			Enabled: true,
			Pattern: "alert",
			Actions: []Action{{Simple: "notify"}},
		}},
	}
	actions := Evaluate(rules, Event{"content": map[string]interface{}{"body": "please alert the team"}}, nil, RoomContext{})
	assert.Len(t, actions, 1)

	actions = Evaluate(rules, Event{"content": map[string]interface{}{"body": "nothing to see"}}, nil, RoomContext{})
	assert.Nil(t, actions)
}

func TestEventMatchCondition(t *testing.T) {
	cond := Condition{Kind: CondEventMatch, Key: "content.msgtype", Pattern: "m.text"}
	event := Event{"content": map[string]interface{}{"msgtype": "m.text"}}
	assert.True(t, cond.Matches(event, nil, RoomContext{}))

	event2 := Event{"content": map[string]interface{}{"msgtype": "m.image"}}
	assert.False(t, cond.Matches(event2, nil, RoomContext{}))
}

func TestEventMatchConditionGlobWildcard(t *testing.T) {
	cond := Condition{Kind: CondEventMatch, Key: "type", Pattern: "m.room.*"}
	assert.True(t, cond.Matches(Event{"type": "m.room.message"}, nil, RoomContext{}))
	assert.False(t, cond.Matches(Event{"type": "m.call.invite"}, nil, RoomContext{}))
}

func TestContainsDisplayNameCondition(t *testing.T) {
	cond := Condition{Kind: CondContainsDisplayName}
	ctx := RoomContext{UserDisplayName: "Alice"}
	event := Event{"content": map[string]interface{}{"body": "hey Alice, check this out"}}
	assert.True(t, cond.Matches(event, nil, ctx))

	event2 := Event{"content": map[string]interface{}{"body": "Alicetta is here"}}
	assert.False(t, cond.Matches(event2, nil, ctx))
}

func TestContainsUserMxidCondition(t *testing.T) {
	cond := Condition{Kind: CondContainsUserMxid}
	ctx := RoomContext{UserID: "@alice:example.org"}
	event := Event{"content": map[string]interface{}{"body": "ping @alice:example.org please"}}
	assert.True(t, cond.Matches(event, nil, ctx))

	event2 := Event{"content": map[string]interface{}{"body": "no mention here"}}
	assert.False(t, cond.Matches(event2, nil, ctx))
}

func TestRoomMemberCountCondition(t *testing.T) {
	cond := Condition{Kind: CondRoomMemberCount, Is: "<=2"}
	assert.True(t, cond.Matches(Event{}, nil, RoomContext{MemberCount: 2}))
	assert.False(t, cond.Matches(Event{}, nil, RoomContext{MemberCount: 3}))

	cond2 := Condition{Kind: CondRoomMemberCount, Is: "3"}
	assert.True(t, cond2.Matches(Event{}, nil, RoomContext{MemberCount: 3}))
}

func TestSenderNotificationPermissionCondition(t *testing.T) {
	cond := Condition{Kind: CondSenderNotificationPermission, Key: "room"}
	ctx := RoomContext{
		PowerLevels: PowerLevels{
			Users:         map[string]int{"@admin:example.org": 100},
			Notifications: map[string]int{"room": 50},
		},
	}
	assert.True(t, cond.Matches(Event{"sender": "@admin:example.org"}, nil, ctx))
	assert.False(t, cond.Matches(Event{"sender": "@random:example.org"}, nil, ctx))
}

func TestRelatedEventMatchCondition(t *testing.T) {
	cond := Condition{Kind: CondRelatedEventMatch, RelType: "m.in_reply_to", Key: "content.body", Pattern: "original*"}
	related := map[string]Event{
		"m.in_reply_to": {"content": map[string]interface{}{"body": "original message text"}},
	}
	assert.True(t, cond.Matches(Event{}, related, RoomContext{}))

	assert.False(t, cond.Matches(Event{}, map[string]Event{}, RoomContext{}))
}

func TestStateKeyUserMxidCondition(t *testing.T) {
	cond := Condition{Kind: CondStateKeyUserMxid}
	ctx := RoomContext{UserID: "@alice:example.org"}
	assert.True(t, cond.Matches(Event{"state_key": "@alice:example.org"}, nil, ctx))
	assert.False(t, cond.Matches(Event{"state_key": "@bob:example.org"}, nil, ctx))
}

func TestActionJSONRoundTrip(t *testing.T) {
	simple := Action{Simple: "notify"}
	data, err := simple.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"notify"`, string(data))

	var decoded Action
	require.NoError(t, decoded.UnmarshalJSON(data))
	assert.Equal(t, "notify", decoded.Simple)

	tweak := Action{SetTweak: "sound", Value: "default"}
	data, err = tweak.MarshalJSON()
	require.NoError(t, err)

	var decodedTweak Action
	require.NoError(t, decodedTweak.UnmarshalJSON(data))
	assert.Equal(t, "sound", decodedTweak.SetTweak)
	assert.Equal(t, "default", decodedTweak.Value)
}
