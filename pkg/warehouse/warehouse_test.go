package warehouse

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	Register("test-wh", func(logger *slog.Logger) Executor { return nil })

	t.Run("get registered", func(t *testing.T) {
		f, ok := Get("test-wh")
		assert.True(t, ok)
		assert.NotNil(t, f)
	})

	t.Run("get unregistered", func(t *testing.T) {
		_, ok := Get("no-such-warehouse")
		assert.False(t, ok)
	})

	t.Run("is registered", func(t *testing.T) {
		assert.True(t, IsRegistered("test-wh"))
		assert.False(t, IsRegistered("no-such-warehouse"))
	})

	t.Run("list contains registered", func(t *testing.T) {
		assert.Contains(t, ListWarehouses(), "test-wh")
	})
}

func TestNew(t *testing.T) {
	t.Run("empty type", func(t *testing.T) {
		_, err := New(Config{}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "warehouse type not specified")
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := New(Config{Type: "oracle"}, nil)
		require.Error(t, err)

		var unknownErr *UnknownWarehouseError
		require.ErrorAs(t, err, &unknownErr)
		assert.Equal(t, "oracle", unknownErr.Type)
	})
}

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{
			name:   "single statement no semicolon",
			script: "CREATE TABLE T (ID INT)",
			want:   []string{"CREATE TABLE T (ID INT)"},
		},
		{
			name:   "multiple statements",
			script: "TRUNCATE TABLE A;\nTRUNCATE TABLE B;",
			want:   []string{"TRUNCATE TABLE A", "TRUNCATE TABLE B"},
		},
		{
			name:   "semicolon inside literal",
			script: "SELECT CONCAT_WS('||;', A, B) FROM T; SELECT 1",
			want:   []string{"SELECT CONCAT_WS('||;', A, B) FROM T", "SELECT 1"},
		},
		{
			name:   "escaped quote inside literal",
			script: "SELECT 'it''s; fine'; SELECT 2",
			want:   []string{"SELECT 'it''s; fine'", "SELECT 2"},
		},
		{
			name:   "trailing whitespace and empty segments",
			script: ";;  SELECT 1 ;  ",
			want:   []string{"SELECT 1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitStatements(tt.script))
		})
	}
}
