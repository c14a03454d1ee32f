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

// Package pushrules evaluates push notification rules against an event,
// per spec §4.8: five rule kinds in a fixed precedence order, each
// carrying a list of conditions that must all match for the rule's
// actions to apply.
package pushrules

import "encoding/json"

// Kind is a push rule kind. Kinds are checked in Precedence order; within
// one kind, rules are checked in the order the caller supplies them
// (server-supplied order, per spec §4.8).
type Kind string

const (
	KindOverride   Kind = "override"
	KindContent    Kind = "content"
	KindRoom       Kind = "room"
	KindSender     Kind = "sender"
	KindUnderride  Kind = "underride"
)

// Precedence is the fixed kind-evaluation order spec §4.8 names.
var Precedence = []Kind{KindOverride, KindContent, KindRoom, KindSender, KindUnderride}

// Rule is one push rule. Content rules carry an implicit
// event_match{content.body, Pattern} condition in addition to Conditions
// (see EffectiveConditions); Room/Sender rules have no Conditions and
// instead match E.room_id/E.sender against RuleID directly.
type Rule struct {
	RuleID     string       `json:"rule_id"`
	Enabled    bool         `json:"enabled"`
	Default    bool         `json:"default"`
	Pattern    string       `json:"pattern,omitempty"` // content rules only
	Conditions []Condition  `json:"conditions,omitempty"`
	Actions    []Action     `json:"actions"`
}

// RuleSet is a full set of rules, grouped by kind.
type RuleSet map[Kind][]Rule

// Action is a push rule action: either a bare string ("notify",
// "dont_notify", "coalesce") or a tweak object ({"set_tweak": ..., "value": ...}).
type Action struct {
	Simple string

	SetTweak string
	Value    interface{}
}

// MarshalJSON encodes a bare-string action as a JSON string and a tweak
// action as {"set_tweak": ..., "value": ...}, matching the two shapes
// spec §4.8's actions list allows.
func (a Action) MarshalJSON() ([]byte, error) {
	if a.SetTweak != "" {
		return json.Marshal(struct {
			SetTweak string      `json:"set_tweak"`
			Value    interface{} `json:"value,omitempty"`
		}{a.SetTweak, a.Value})
	}
	return json.Marshal(a.Simple)
}

// UnmarshalJSON accepts either wire shape an action can take.
func (a *Action) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		a.Simple = s
		return nil
	}
	var obj struct {
		SetTweak string      `json:"set_tweak"`
		Value    interface{} `json:"value,omitempty"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	a.SetTweak, a.Value = obj.SetTweak, obj.Value
	return nil
}

// RoomContext is the room/sender context a condition evaluates against,
// per spec §4.8's C = {user_display_name, member_count, power_levels, user_id}.
type RoomContext struct {
	UserDisplayName string
	MemberCount     int
	PowerLevels     PowerLevels
	UserID          string
}

// PowerLevels is the subset of room power-level state conditions need.
type PowerLevels struct {
	Users         map[string]int
	Notifications map[string]int
}

// UserPowerLevel returns userID's effective power level, defaulting to 0
// per the usual Matrix power-level default.
func (p PowerLevels) UserPowerLevel(userID string) int {
	if lvl, ok := p.Users[userID]; ok {
		return lvl
	}
	return 0
}

// NotificationLevel returns the required power level for notification
// key, defaulting to 50 per spec §4.8's sender_notification_permission.
func (p PowerLevels) NotificationLevel(key string) int {
	if lvl, ok := p.Notifications[key]; ok {
		return lvl
	}
	return 50
}

// Event is a generic Matrix event body, keyed the way the wire JSON is:
// dotted paths like "content.body" are looked up by walking nested maps
// one segment at a time, per spec §4.8's condition DSL.
type Event map[string]interface{}

// RoomID and Sender pull the two top-level fields Room/Sender rules
// match against directly.
func (e Event) RoomID() string { return stringField(e, "room_id") }
func (e Event) Sender() string { return stringField(e, "sender") }

func stringField(e Event, key string) string {
	if v, ok := e[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Evaluate returns the actions of the first matching enabled rule, in
// kind-precedence order, or nil if nothing matched, per spec §4.8.
func Evaluate(rules RuleSet, event Event, related map[string]Event, ctx RoomContext) []Action {
	for _, kind := range Precedence {
		for _, rule := range rules[kind] {
			if !rule.Enabled {
				// Disabled rules are skipped but still consume precedence:
				// later rules of the SAME kind still get a chance, which is
				// exactly what continuing this loop does.
				continue
			}
			if ruleMatches(kind, rule, event, related, ctx) {
				return rule.Actions
			}
		}
	}
	return nil
}

func ruleMatches(kind Kind, rule Rule, event Event, related map[string]Event, ctx RoomContext) bool {
	switch kind {
	case KindRoom:
		return event.RoomID() == rule.RuleID
	case KindSender:
		return event.Sender() == rule.RuleID
	}

	for _, cond := range EffectiveConditions(kind, rule) {
		if !cond.Matches(event, related, ctx) {
			return false
		}
	}
	return true
}

// EffectiveConditions returns a content rule's implicit event_match
// condition prepended to its explicit Conditions; for every other kind
// it returns Conditions unchanged.
func EffectiveConditions(kind Kind, rule Rule) []Condition {
	if kind != KindContent {
		return rule.Conditions
	}
	implicit := Condition{
		Kind:    CondEventMatch,
		Key:     "content.body",
		Pattern: rule.Pattern,
	}
	return append([]Condition{implicit}, rule.Conditions...)
}
