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
	"regexp"
	"strings"
	"sync"
	"unicode"
)

// isWordRune reports whether r counts as a "word character" for the
// whole-word matching spec §4.8 requires: [A-Za-z0-9_], and any other
// Unicode letter or digit too, not just ASCII ones. Go's regexp \b only
// recognizes ASCII word characters, so whole-word matching here is done
// by hand rather than by anchoring the compiled pattern with \b.
func isWordRune(r rune) bool {
	return r == '_' || unicode.IsDigit(r) || unicode.IsLetter(r)
}

var globRegexCache sync.Map // pattern string -> *regexp.Regexp

// compileGlob translates a Matrix glob pattern (`*` any run, `?` any one
// rune, everything else literal) into a case-insensitive regexp.
func compileGlob(pattern string) *regexp.Regexp {
	if cached, ok := globRegexCache.Load(pattern); ok {
		return cached.(*regexp.Regexp)
	}
	var b strings.Builder
	b.WriteString("(?is)")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	re := regexp.MustCompile(b.String())
	globRegexCache.Store(pattern, re)
	return re
}

// globMatchWhole matches pattern against the entirety of s (used for
// event_match on keys other than content.body, which match the whole
// field value rather than searching for a word-bounded substring).
func globMatchWhole(pattern, s string) bool {
	re := compileGlob(pattern)
	return re.FindString(s) == s && (pattern != "" || s == "")
}

// wholeWordContains reports whether pattern (a glob, case-insensitive)
// matches some substring of s that is bounded by non-word characters or
// string edges on both sides, per spec §4.8's content.body / display-name
// / mxid whole-word semantics.
func wholeWordContains(s, pattern string) bool {
	if pattern == "" {
		return false
	}
	re := compileGlob(pattern)
	runes := []rune(s)

	for _, loc := range findAllRuneIndices(re, s) {
		start, end := loc[0], loc[1]
		if start > 0 && isWordRune(runes[start-1]) {
			continue
		}
		if end < len(runes) && isWordRune(runes[end]) {
			continue
		}
		return true
	}
	return false
}

// findAllRuneIndices returns every match of re in s as [start, end)
// rune-index pairs (not byte offsets), so boundary checks above can
// index directly into a []rune of s.
func findAllRuneIndices(re *regexp.Regexp, s string) [][2]int {
	byteMatches := re.FindAllStringIndex(s, -1)
	if byteMatches == nil {
		return nil
	}
	byteToRune := make(map[int]int, len(s)+1)
	runeIdx := 0
	for byteIdx := range s {
		byteToRune[byteIdx] = runeIdx
		runeIdx++
	}
	byteToRune[len(s)] = runeIdx

	out := make([][2]int, 0, len(byteMatches))
	for _, m := range byteMatches {
		out = append(out, [2]int{byteToRune[m[0]], byteToRune[m[1]]})
	}
	return out
}
