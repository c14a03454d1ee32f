// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package pushrules

import (
	"strconv"
	"strings"
)

// ConditionKind names one of the condition DSL entries spec §4.8 lists.
type ConditionKind string

const (
	CondEventMatch                  ConditionKind = "event_match"
	CondContainsDisplayName         ConditionKind = "contains_display_name"
	CondRoomMemberCount              ConditionKind = "room_member_count"
	CondSenderNotificationPermission ConditionKind = "sender_notification_permission"
	CondRelatedEventMatch           ConditionKind = "related_event_match"
	CondContainsUserMxid            ConditionKind = "contains_user_mxid"
	CondStateKeyUserMxid            ConditionKind = "state_key_user_mxid"
)

// Condition is one entry of a rule's condition list, per spec §4.8's
// condition DSL. Not every field applies to every Kind.
type Condition struct {
	Kind ConditionKind `json:"kind"`

	Key     string `json:"key,omitempty"`
	Pattern string `json:"pattern,omitempty"`
	Is      string `json:"is,omitempty"`

	RelType         string `json:"rel_type,omitempty"`
	IncludeFallback bool   `json:"include_fallback,omitempty"`
}

// Matches evaluates a single condition, per spec §4.8.
func (c Condition) Matches(event Event, related map[string]Event, ctx RoomContext) bool {
	switch c.Kind {
	case CondEventMatch:
		val, ok := lookupPath(event, c.Key)
		if !ok {
			return false
		}
		return matchPattern(c.Key, c.Pattern, val)

	case CondContainsDisplayName:
		if ctx.UserDisplayName == "" {
			return false
		}
		body, _ := lookupString(event, "content.body")
		return wholeWordContains(body, ctx.UserDisplayName)

	case CondRoomMemberCount:
		return matchMemberCount(c.Is, ctx.MemberCount)

	case CondSenderNotificationPermission:
		return ctx.PowerLevels.UserPowerLevel(event.Sender()) >= ctx.PowerLevels.NotificationLevel(c.Key)

	case CondRelatedEventMatch:
		if c.RelType == "" {
			return false
		}
		parent, ok := related[c.RelType]
		if !ok {
			return false
		}
		if c.RelType == "m.in_reply_to" && !c.IncludeFallback {
			if fallback, _ := lookupBool(event, "content.m.relates_to.m.in_reply_to.is_falling_back"); fallback {
				return false
			}
		}
		if c.Key == "" && c.Pattern == "" {
			return true
		}
		val, ok := lookupPath(parent, c.Key)
		if !ok {
			return false
		}
		return matchPattern(c.Key, c.Pattern, val)

	case CondContainsUserMxid:
		body, _ := lookupString(event, "content.body")
		return wholeWordContains(body, ctx.UserID)

	case CondStateKeyUserMxid:
		stateKey, _ := lookupString(event, "state_key")
		return stateKey == ctx.UserID
	}
	return false
}

func matchMemberCount(is string, count int) bool {
	is = strings.TrimSpace(is)
	op, numStr := "==", is
	for _, candidate := range []string{">=", "<=", "==", ">", "<"} {
		if strings.HasPrefix(is, candidate) {
			op = candidate
			numStr = strings.TrimPrefix(is, candidate)
			break
		}
	}
	n, err := strconv.Atoi(strings.TrimSpace(numStr))
	if err != nil {
		return false
	}
	switch op {
	case ">=":
		return count >= n
	case "<=":
		return count <= n
	case ">":
		return count > n
	case "<":
		return count < n
	default:
		return count == n
	}
}

func matchPattern(key, pattern string, val interface{}) bool {
	s, ok := val.(string)
	if !ok {
		return false
	}
	if key == "content.body" {
		return wholeWordContains(s, pattern)
	}
	return globMatchWhole(pattern, s)
}

// lookupPath resolves a dotted JSON path inside event, e.g.
// "content.body" -> event["content"].(map)["body"]. There is no escape
// mechanism for a literal dot inside a key name (spec §4.8 Open
// Question): a key containing "." is indistinguishable from a nested
// path and this walk will simply fail to find it.
func lookupPath(event Event, path string) (interface{}, bool) {
	segments := strings.Split(path, ".")
	var cur interface{} = map[string]interface{}(event)
	for _, seg := range segments {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := m[seg]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func lookupString(event Event, path string) (string, bool) {
	v, ok := lookupPath(event, path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func lookupBool(event Event, path string) (bool, bool) {
	v, ok := lookupPath(event, path)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}
