package main

import (
	"net/url"
	"strings"

	"brims/libs/listview"
)

// Flash keys carried in the redirect query. Toasts use one key per level,
// the modal alert uses the alert keys.
const (
	flashKeySuccess    = "notice"
	flashKeyInfo       = "info"
	flashKeyWarning    = "warning"
	flashKeyError      = "error"
	flashKeyAlertTitle = "alert_title"
	flashKeyAlert      = "alert"
	flashKeyAlertLevel = "alert_level"
)

var flashToastKeys = []struct {
	key   string
	level listview.Level
}{
	{flashKeySuccess, listview.LevelSuccess},
	{flashKeyInfo, listview.LevelInfo},
	{flashKeyWarning, listview.LevelWarning},
	{flashKeyError, listview.LevelError},
}

var flashKeys = []string{flashKeySuccess, flashKeyInfo, flashKeyWarning, flashKeyError, flashKeyAlertTitle, flashKeyAlert, flashKeyAlertLevel}

func flashKeyForLevel(level listview.Level) string {
	for _, entry := range flashToastKeys {
		if entry.level == level {
			return entry.key
		}
	}
	return flashKeyInfo
}

// applyNotices writes notices into query. Toasts of one level are joined;
// the last alert wins.
func applyNotices(query url.Values, notices []listview.Notice) {
	toasts := map[string][]string{}
	for _, notice := range notices {
		if notice.Modal {
			query.Set(flashKeyAlertTitle, notice.Title)
			query.Set(flashKeyAlert, notice.Body)
			query.Set(flashKeyAlertLevel, string(notice.Level))
			continue
		}
		key := flashKeyForLevel(notice.Level)
		toasts[key] = append(toasts[key], notice.Body)
	}
	for key, messages := range toasts {
		query.Set(key, strings.Join(messages, " "))
	}
}

// flashesFromQuery reads the toasts of a rendered page in level order.
func flashesFromQuery(query url.Values) []consoleFlashView {
	flashes := make([]consoleFlashView, 0, len(flashToastKeys))
	for _, entry := range flashToastKeys {
		if message := strings.TrimSpace(query.Get(entry.key)); message != "" {
			flashes = append(flashes, consoleFlashView{Level: string(entry.level), Message: message})
		}
	}
	return flashes
}

func stripFlashKeys(query url.Values) {
	for _, key := range flashKeys {
		query.Del(key)
	}
}
