package docsearch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDoc(t *testing.T, dir, name, text string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644))
}

func TestSearchDocumentsPicksBestMatch(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeDoc(t, dir, "requisitos_admision.txt", "Los postulantes presentan partida de nacimiento y certificado de estudios.")
	writeDoc(t, dir, "reglamento_interno.txt", "Normas de convivencia y deberes de los estudiantes del instituto.")

	s := New(dir, nil)
	require.Equal(t, 2, s.Len())

	got, err := s.SearchDocuments(context.Background(), "requisitos para la admisión")
	require.NoError(t, err)
	assert.Contains(t, got, "partida de nacimiento")
}

func TestSearchDocumentsFilenameOutweighsBody(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeDoc(t, dir, "cronograma_matricula.txt", "Fechas del periodo lectivo.")
	writeDoc(t, dir, "otros_avisos.txt", "Se menciona matricula una vez y también matricula otra vez.")

	s := New(dir, nil)
	got, err := s.SearchDocuments(context.Background(), "cronograma de matricula")
	require.NoError(t, err)
	assert.Contains(t, got, "periodo lectivo")
}

func TestSearchDocumentsNoMatch(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeDoc(t, dir, "reglamento.txt", "Contenido institucional sin relación.")

	s := New(dir, nil)
	got, err := s.SearchDocuments(context.Background(), "astronomía lunar")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchDocumentsMissingDir(t *testing.T) {
	t.Parallel()
	s := New(filepath.Join(t.TempDir(), "nope"), nil)
	got, err := s.SearchDocuments(context.Background(), "matricula 2025")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReloadPicksUpNewFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s := New(dir, nil)
	assert.Zero(t, s.Len())

	writeDoc(t, dir, "nuevo.txt", "contenido nuevo")
	require.NoError(t, s.Reload())
	assert.Equal(t, 1, s.Len())
}

func TestIgnoresNonTxtFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeDoc(t, dir, "documento.pdf", "binario")
	writeDoc(t, dir, "documento.txt", "texto plano")

	s := New(dir, nil)
	assert.Equal(t, 1, s.Len())
}
