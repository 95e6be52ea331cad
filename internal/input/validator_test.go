package input

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recapd/recapd/internal/recaperr"
)

func TestValidatePath_RejectsTraversal(t *testing.T) {
	paths := []string{
		"../etc/passwd",
		"uploads/../../secret.mp4",
		"uploads/%2e%2e/secret.mp4",
		"uploads/%2E%2E/secret.mp4",
		"uploads/.%2e/secret.mp4",
	}
	for _, p := range paths {
		t.Run(p, func(t *testing.T) {
			_, err := ValidatePath(p, ValidateOptions{})
			require.Error(t, err)
			var verr *recaperr.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "path", verr.Field)
		})
	}
}

func TestValidatePath_RejectsControlCharacters(t *testing.T) {
	_, err := ValidatePath("meeting\x00.mp4", ValidateOptions{})
	require.Error(t, err)
	_, err = ValidatePath("meeting\n.mp4", ValidateOptions{})
	require.Error(t, err)
}

func TestValidatePath_RejectsReservedNames(t *testing.T) {
	for _, p := range []string{"CON.mp4", "nul.wav", "com1.m4a", "LPT9.txt"} {
		t.Run(p, func(t *testing.T) {
			_, err := ValidatePath(p, ValidateOptions{})
			require.Error(t, err)
		})
	}
}

func TestValidatePath_RejectsOverlongPaths(t *testing.T) {
	long := "/" + strings.Repeat("a", 300) + ".mp4"
	_, err := ValidatePath(long, ValidateOptions{})
	require.Error(t, err)
}

func TestValidatePath_RejectsEmpty(t *testing.T) {
	_, err := ValidatePath("", ValidateOptions{})
	require.Error(t, err)
}

func TestValidatePath_AllowedRoot(t *testing.T) {
	root := t.TempDir()

	inside, err := ValidatePath(filepath.Join(root, "meeting.mp4"), ValidateOptions{AllowedRoot: root})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(inside, root))

	_, err = ValidatePath("/tmp/elsewhere/meeting.mp4", ValidateOptions{AllowedRoot: root})
	require.Error(t, err)
}

func TestValidatePath_ReturnsCanonicalAbsolutePath(t *testing.T) {
	got, err := ValidatePath("./meeting.mp4", ValidateOptions{})
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
}

func TestValidateFileSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meeting.mp4")
	require.NoError(t, os.WriteFile(path, make([]byte, 2*1024*1024), 0o644))

	t.Run("under cap", func(t *testing.T) {
		assert.NoError(t, ValidateFileSize(path, 5, KindVideo))
	})

	t.Run("over cap", func(t *testing.T) {
		err := ValidateFileSize(path, 1, KindVideo)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 MB")
	})

	t.Run("transcripts exempt", func(t *testing.T) {
		assert.NoError(t, ValidateFileSize(path, 1, KindTranscript))
	})

	t.Run("missing file", func(t *testing.T) {
		err := ValidateFileSize(filepath.Join(dir, "nope.mp4"), 5, KindVideo)
		var nf *recaperr.NotFoundError
		require.ErrorAs(t, err, &nf)
	})
}

func TestValidateWorkflowInput(t *testing.T) {
	dir := t.TempDir()
	media := filepath.Join(dir, "standup.m4a")
	require.NoError(t, os.WriteFile(media, []byte("audio"), 0o644))

	t.Run("valid audio", func(t *testing.T) {
		canonical, kind, err := ValidateWorkflowInput(media, 100, ValidateOptions{AllowedRoot: dir})
		require.NoError(t, err)
		assert.Equal(t, KindAudio, kind)
		assert.Equal(t, media, canonical)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		bad := filepath.Join(dir, "notes.docx")
		require.NoError(t, os.WriteFile(bad, []byte("x"), 0o644))
		_, kind, err := ValidateWorkflowInput(bad, 100, ValidateOptions{})
		require.Error(t, err)
		assert.Equal(t, KindUnknown, kind)
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := ValidateWorkflowInput(filepath.Join(dir, "ghost.mp4"), 100, ValidateOptions{})
		var nf *recaperr.NotFoundError
		require.ErrorAs(t, err, &nf)
	})
}

func TestValidateCredentialShapes(t *testing.T) {
	assert.NoError(t, ValidateOpenAIKey("sk-proj-0123456789abcdef0123"))
	assert.NoError(t, ValidateOpenAIKey("sk-0123456789abcdef0123"))
	assert.Error(t, ValidateOpenAIKey(""))
	assert.Error(t, ValidateOpenAIKey("sk-short"))
	assert.Error(t, ValidateOpenAIKey("sk-ant-REDACTED"))

	assert.NoError(t, ValidateAnthropicKey("sk-ant-REDACTED"))
	assert.Error(t, ValidateAnthropicKey("sk-0123456789abcdef0123"))

	assert.NoError(t, ValidateReplicateToken("r8_0123456789abcdef"))
	assert.Error(t, ValidateReplicateToken("tok_0123456789"))
}
