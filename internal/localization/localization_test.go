package localization_test

import (
	"anonchat/backend/internal/localization"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_EmbeddedLanguages(t *testing.T) {
	l, err := localization.Default("ru")
	require.NoError(t, err)

	assert.Equal(t, "Ищу собеседника... Ожидайте.", l.GetString("ru", "searching"))
	assert.Equal(t, "Looking for a partner... Please wait.", l.GetString("en", "searching"))
	assert.Equal(t, "Шукаю співрозмовника... Зачекайте.", l.GetString("uk-UA", "searching"))
}

func TestGetString_Fallbacks(t *testing.T) {
	fsys := fstest.MapFS{
		"en.json":   {Data: []byte(`{"hello": "Hello", "bye": "Bye"}`)},
		"ru.json":   {Data: []byte(`{"hello": "Привет"}`)},
		"notes.txt": {Data: []byte("ignored")},
	}
	l, err := localization.NewLocalizer(fsys, "ru")
	require.NoError(t, err)

	assert.Equal(t, "Привет", l.GetString("de", "hello"), "unknown language uses the configured fallback")
	assert.Equal(t, "Bye", l.GetString("ru", "bye"), "missing key falls back to English")
	assert.Equal(t, "missing", l.GetString("ru", "missing"))
}

func TestNewLocalizer_InvalidJSON(t *testing.T) {
	fsys := fstest.MapFS{"en.json": {Data: []byte(`{`)}}

	_, err := localization.NewLocalizer(fsys, "en")

	assert.Error(t, err)
}

// TestEmbeddedKeysConsistent makes sure every bot text is translated.
func TestEmbeddedKeysConsistent(t *testing.T) {
	l, err := localization.Default("en")
	require.NoError(t, err)

	keys := []string{
		"welcome", "banned", "already_in_chat", "searching", "match_found",
		"no_active_chat", "search_cancelled", "chat_ended", "partner_left",
		"report_usage", "report_not_in_chat", "report_sent", "feedback_usage",
		"feedback_thanks", "not_in_chat", "anonymous_prefix", "text_only",
		"unknown_command", "internal_error",
	}
	for _, key := range keys {
		en := l.GetString("en", key)
		assert.NotEqual(t, key, en, "en/%s", key)
		for _, lang := range []string{"ru", "uk"} {
			assert.NotEqual(t, en, l.GetString(lang, key), "%s/%s", lang, key)
		}
	}
}
