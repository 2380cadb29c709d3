package appfs

import (
	"io/fs"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFS(t *testing.T) {
	tests := []struct {
		dir  string
		want []string
	}{
		{dir: EmailTemplatesDir, want: []string{"_base.gohtml", "_base.txt", "lesson_ready.gohtml", "newsletter.gohtml", "password_reset.txt"}},
		{dir: PostgresMigrationsDir},
		{dir: SQLiteMigrationsDir},
		{dir: PromptsDir},
	}
	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			entries, err := fs.ReadDir(FS, tt.dir)
			require.NoError(t, err)
			assert.NotEmpty(t, entries)

			for _, name := range tt.want {
				_, err := fs.Stat(FS, path.Join(tt.dir, name))
				assert.NoError(t, err, name)
			}
		})
	}
}
