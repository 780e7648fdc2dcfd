package childcare

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"schoolcomms-backend/internal/comm/domain"
)

// resolveGuardianID extracts the guardian account id from the /users/me
// payload. The API has shipped several shapes over time, so resolution
// follows one fixed precedence list:
//
//  1. direct user fields: guardian_id, id, object_id, guardian_object_id
//  2. a role entry of type "guardian" or "parent"
//  3. the first entry of a guardians list (on the user or top level)
//
// Anything else is a configuration error with a descriptive message, never a
// silent empty id.
func resolveGuardianID(payload map[string]interface{}) (string, error) {
	user := payload
	if nested, ok := payload["user"].(map[string]interface{}); ok {
		user = nested
	}

	for _, key := range []string{"guardian_id", "id", "object_id", "guardian_object_id"} {
		if id := stringField(user, key); id != "" {
			return id, nil
		}
	}

	if roles, ok := user["roles"].([]interface{}); ok {
		for _, entry := range roles {
			role, ok := entry.(map[string]interface{})
			if !ok {
				continue
			}
			if t := stringField(role, "type"); t == "guardian" || t == "parent" {
				if id := stringField(role, "id", "object_id"); id != "" {
					return id, nil
				}
			}
		}
	}

	guardians, ok := user["guardians"].([]interface{})
	if !ok {
		guardians, _ = payload["guardians"].([]interface{})
	}
	if len(guardians) > 0 {
		if first, ok := guardians[0].(map[string]interface{}); ok {
			if id := stringField(first, "id", "object_id"); id != "" {
				return id, nil
			}
		}
	}

	return "", fmt.Errorf(
		"could not determine guardian id from user profile (top-level keys: %s, user keys: %s); recapture the session and check the account type",
		strings.Join(mapKeys(payload), ", "), strings.Join(mapKeys(user), ", "),
	)
}

// normalizeActivity flattens one activity-feed record. The full record is
// retained as the detail blob.
func normalizeActivity(activity map[string]interface{}, studentName string) *domain.CommunicationItem {
	actionType := stringField(activity, "action_type", "type")
	if actionType == "" {
		actionType = "activity"
	}

	actorName := personName(activity["actor"])

	roomName := ""
	if room, ok := activity["room"].(map[string]interface{}); ok {
		roomName = stringField(room, "name")
	}

	// feed action types carry an "ac_" prefix, e.g. ac_potty
	title := titleCase(strings.ReplaceAll(strings.ReplaceAll(actionType, "_", " "), "ac ", ""))
	if studentName != "" {
		title = studentName + ": " + title
	}

	var bodyParts []string
	if note := stringField(activity, "note"); note != "" {
		bodyParts = append(bodyParts, note)
	}
	if details, ok := activity["details_blob"].(map[string]interface{}); ok {
		if food := stringField(details, "food_type"); food != "" {
			bodyParts = append(bodyParts, "Food: "+food)
		}
		if amount := stringField(details, "amount_type"); amount != "" {
			bodyParts = append(bodyParts, "Amount: "+amount)
		}
	}

	item := &domain.CommunicationItem{
		Source:      domain.SourceChildcare,
		SourceID:    "childcare_act_" + stringField(activity, "object_id"),
		Timestamp:   parseTimestamp(stringField(activity, "created_at", "event_date")),
		Title:       title,
		Sender:      actorName,
		BodyPlain:   strings.Join(bodyParts, "\n"),
		StudentName: studentName,
		Room:        roomName,
		ActionType:  actionType,
		DetailBlob:  marshalBlob(activity),
		Attachments: mediaAttachments(activity["media"]),
	}
	return item
}

// normalizeMessage flattens one message-feed record. Records arrive either
// bare or wrapped in a "message" envelope.
func normalizeMessage(result map[string]interface{}, studentName string) *domain.CommunicationItem {
	msg := result
	if nested, ok := result["message"].(map[string]interface{}); ok {
		msg = nested
	}

	body := stringField(msg, "body")
	msgType := stringField(msg, "type")
	if msgType == "" {
		msgType = "message"
	}

	title := "Message"
	if body != "" {
		if len(body) > 80 {
			title = "Message: " + body[:80] + "..."
		} else {
			title = "Message: " + body
		}
	}
	if studentName != "" {
		title = studentName + ": " + title
	}

	var attachments []domain.Attachment
	if list, ok := msg["attachments"].([]interface{}); ok {
		for _, entry := range list {
			att, ok := entry.(map[string]interface{})
			if !ok {
				continue
			}
			attURL := stringField(att, "image_url", "url")
			if attURL == "" {
				continue
			}
			attachments = append(attachments, domain.Attachment{
				Filename:  filenameFromURL(attURL),
				MimeType:  stringField(att, "content_type"),
				RemoteURL: attURL,
			})
		}
	}

	return &domain.CommunicationItem{
		Source:      domain.SourceChildcare,
		SourceID:    "childcare_msg_" + stringField(msg, "object_id"),
		Timestamp:   parseTimestamp(stringField(msg, "created_at", "date")),
		Title:       title,
		Sender:      personName(msg["sender"]),
		BodyPlain:   body,
		StudentName: studentName,
		ActionType:  msgType,
		DetailBlob:  marshalBlob(result),
		Attachments: attachments,
	}
}

func mediaAttachments(media interface{}) []domain.Attachment {
	var urls []string
	switch m := media.(type) {
	case []interface{}:
		for _, entry := range m {
			if obj, ok := entry.(map[string]interface{}); ok {
				if u := stringField(obj, "image_url"); u != "" {
					urls = append(urls, u)
				}
			}
		}
	case map[string]interface{}:
		if u := stringField(m, "image_url"); u != "" {
			urls = append(urls, u)
		}
	}

	attachments := make([]domain.Attachment, 0, len(urls))
	for _, u := range urls {
		attachments = append(attachments, domain.Attachment{
			Filename:  filenameFromURL(u),
			RemoteURL: u,
		})
	}
	return attachments
}

// parseTimestamp tries the layouts the API is known to emit; an unparseable
// value falls back to now so the record still lands inside the rolling
// window instead of being dropped.
func parseTimestamp(raw string) time.Time {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	return time.Now()
}

func personName(value interface{}) string {
	person, ok := value.(map[string]interface{})
	if !ok {
		if s, ok := value.(string); ok {
			return s
		}
		return ""
	}
	return strings.TrimSpace(stringField(person, "first_name") + " " + stringField(person, "last_name"))
}

func stringField(obj map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if value, ok := obj[key].(string); ok && value != "" {
			return value
		}
	}
	return ""
}

func marshalBlob(obj map[string]interface{}) string {
	blob, err := json.Marshal(obj)
	if err != nil {
		return ""
	}
	return string(blob)
}

func filenameFromURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return path.Base(raw)
	}
	return path.Base(parsed.Path)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

func mapKeys(obj map[string]interface{}) []string {
	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
