package users_test

import (
	"bytes"
	"log/slog"
	"testing"

	users "github.com/goliatone/go-users"
	"github.com/stretchr/testify/assert"
)

func TestSlogLogger_FormatsMessages(t *testing.T) {
	var buf bytes.Buffer
	logger := users.NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	logger.Info("generated %s key %s", "signing", "kid-1")
	logger.Error("failed to move %d directories", 2)

	out := buf.String()
	assert.Contains(t, out, `msg="generated signing key kid-1"`)
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, `msg="failed to move 2 directories"`)
	assert.NotContains(t, out, "!BADKEY")
}

func TestDirectory_WithSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	env := newTestEnv(t)
	env.dir.WithLogger(users.NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))))

	env.saveUser(t, users.VariantUser, "Ada", "Lovelace", "ada@example.com", "analytical")
	assert.Contains(t, buf.String(), "saved user")
}
