package protocol

import (
	"encoding/json"
	"strconv"
	"strings"
)

// MaxRosterEntries caps how many players a roster document may list.
const MaxRosterEntries = 64

// RosterEntry is one connected player as listed by the server.
type RosterEntry struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// RosterMsg is the player list sent in reply to "ADMIN PLAYERS".
type RosterMsg struct {
	Entries []RosterEntry
}

func (RosterMsg) Kind() Kind { return KindRoster }

// decodeRoster accepts a bare array or an object with a "players" array.
// A document strict JSON rejects is read entry by entry, so one badly
// escaped name does not hide the other players.
func decodeRoster(line string) (Message, error) {
	entries, err := strictRoster(line)
	if err != nil {
		entries = lenientRoster(line)
		if len(entries) == 0 {
			return nil, malformed(KindRoster, err.Error())
		}
	}

	if len(entries) > MaxRosterEntries {
		entries = entries[:MaxRosterEntries]
	}
	for i := range entries {
		entries[i].Name = strings.TrimSpace(entries[i].Name)
	}
	return RosterMsg{Entries: entries}, nil
}

func strictRoster(line string) ([]RosterEntry, error) {
	if strings.HasPrefix(line, "{") {
		var doc struct {
			Players []RosterEntry `json:"players"`
		}
		err := json.Unmarshal([]byte(line), &doc)
		return doc.Players, err
	}
	var entries []RosterEntry
	err := json.Unmarshal([]byte(line), &entries)
	return entries, err
}

// lenientRoster splits the player array into {...} objects and decodes each
// alone. Objects that still fail fall back to reading "id" and "name" by key,
// where only \" counts as an escape. Objects without a readable id are skipped.
func lenientRoster(line string) []RosterEntry {
	body := line
	if i := strings.Index(body, `"players"`); i >= 0 {
		body = body[i+len(`"players"`):]
	}
	start := strings.IndexByte(body, '[')
	if start < 0 {
		return nil
	}
	body = body[start+1:]

	var entries []RosterEntry
	for {
		open := strings.IndexByte(body, '{')
		if open < 0 {
			break
		}
		end := strings.IndexByte(body[open:], '}')
		if end < 0 {
			break
		}
		obj := body[open : open+end+1]
		body = body[open+end+1:]

		var e RosterEntry
		if json.Unmarshal([]byte(obj), &e) == nil {
			entries = append(entries, e)
			continue
		}
		if e, ok := scanRosterEntry(obj); ok {
			entries = append(entries, e)
		}
	}
	return entries
}

func scanRosterEntry(obj string) (RosterEntry, bool) {
	var e RosterEntry

	i := strings.Index(obj, `"id"`)
	if i < 0 {
		return e, false
	}
	rest := strings.TrimLeft(obj[i+len(`"id"`):], " :")
	n := 0
	for n < len(rest) && (rest[n] == '-' || (rest[n] >= '0' && rest[n] <= '9')) {
		n++
	}
	id, err := strconv.Atoi(rest[:n])
	if err != nil {
		return e, false
	}
	e.ID = id

	if j := strings.Index(obj, `"name"`); j >= 0 {
		v := strings.TrimLeft(obj[j+len(`"name"`):], " :")
		if strings.HasPrefix(v, `"`) {
			v = v[1:]
			if k := strings.LastIndexByte(v, '"'); k >= 0 {
				v = v[:k]
			}
			e.Name = strings.ReplaceAll(v, `\"`, `"`)
		}
	}
	return e, true
}
