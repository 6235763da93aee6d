package pdf

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
)

// mockRunner is a test double for CommandRunner.
type mockRunner struct {
	output []byte
	err    error
	name   string
	args   []string
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	m.name = name
	m.args = args
	return m.output, m.err
}

func TestNew(t *testing.T) {
	normaliser := New()
	require.NotNil(t, normaliser)
	assert.IsType(t, execRunner{}, normaliser.runner)
	assert.Equal(t, []domain.DocumentType{domain.DocumentTypePDF}, normaliser.SupportedTypes())
}

func TestNewWithRunner(t *testing.T) {
	runner := &mockRunner{output: []byte("test output")}
	normaliser := NewWithRunner(runner)
	require.NotNil(t, normaliser)
	assert.Equal(t, runner, normaliser.runner)
}

func TestNormalise_PagesGetMarkers(t *testing.T) {
	runner := &mockRunner{
		output: []byte("First page text.\r\n\fSecond page text.\n\f"),
	}

	text, err := NewWithRunner(runner).Normalise(context.Background(), []byte("%PDF-1.4 fake"))
	require.NoError(t, err)

	assert.Equal(t, "--- page 1 ---\n\nFirst page text.\n\n--- page 2 ---\n\nSecond page text.", text)
	assert.Equal(t, "pdftotext", runner.name)
	assert.Equal(t, "-", runner.args[len(runner.args)-1])
}

func TestNormalise_BlankPageKeepsNumbering(t *testing.T) {
	runner := &mockRunner{output: []byte("one\f   \fthree\f")}

	text, err := NewWithRunner(runner).Normalise(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "--- page 1 ---\n\none\n\n--- page 2 ---\n\n--- page 3 ---\n\nthree", text)
}

func TestNormalise_NoTextYieldsEmpty(t *testing.T) {
	runner := &mockRunner{output: []byte("\f \f\n\f")}

	text, err := NewWithRunner(runner).Normalise(context.Background(), []byte("%PDF scanned"))
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestNormalise_EmptyInputSkipsRunner(t *testing.T) {
	runner := &mockRunner{}

	text, err := NewWithRunner(runner).Normalise(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Empty(t, runner.name)
}

func TestNormalise_RunnerError(t *testing.T) {
	runner := &mockRunner{err: errors.New("Syntax Error: Couldn't find trailer dictionary")}

	_, err := NewWithRunner(runner).Normalise(context.Background(), []byte("not a pdf"))
	assert.ErrorIs(t, err, domain.ErrCorruptInput)
	assert.Contains(t, err.Error(), "pdftotext failed")
}

func TestNormalise_ToolMissing(t *testing.T) {
	runner := &mockRunner{err: ErrPDFToolNotFound}

	_, err := NewWithRunner(runner).Normalise(context.Background(), []byte("%PDF"))
	assert.ErrorIs(t, err, ErrPDFToolNotFound)
	assert.NotErrorIs(t, err, domain.ErrCorruptInput)
}

func TestSplitPages(t *testing.T) {
	assert.Nil(t, splitPages(""))
	assert.Equal(t, []string{"a"}, splitPages("a\f"))
	assert.Equal(t, []string{"a", "b"}, splitPages("a\fb"))
}

func TestInstallInstructions(t *testing.T) {
	instructions := InstallInstructions()
	assert.Contains(t, instructions, "pdftotext")
	assert.Contains(t, instructions, "brew install poppler")
	assert.Contains(t, instructions, "apt install poppler-utils")
}

func TestErrPDFToolNotFound(t *testing.T) {
	assert.Contains(t, ErrPDFToolNotFound.Error(), "pdftotext")
}

// Integration test - only runs if pdftotext is available.
func TestCheckAvailable(t *testing.T) {
	if err := CheckAvailable(); err != nil {
		t.Skip("pdftotext not available, skipping integration test")
	}
	assert.NoError(t, CheckAvailable())
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.Normaliser = (*Normaliser)(nil)
}
