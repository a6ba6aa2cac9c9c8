package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormData_DocumentsAfterJSON(t *testing.T) {
	in := FormData{FormDataDocumentsKey: []Document{{Name: "paystub.pdf", Path: "applications/d1/paystub.pdf"}}}
	assert.Len(t, in.Documents(), 1)

	b, err := json.Marshal(in)
	require.NoError(t, err)
	var out FormData
	require.NoError(t, json.Unmarshal(b, &out))

	docs := out.Documents()
	require.Len(t, docs, 1)
	assert.Equal(t, "applications/d1/paystub.pdf", docs[0].Path)
}

func TestFormData_Bool(t *testing.T) {
	f := FormData{"a": true, "b": "on", "c": "no", "d": 3}
	assert.True(t, f.Bool("a"))
	assert.True(t, f.Bool("b"))
	assert.False(t, f.Bool("c"))
	assert.False(t, f.Bool("d"))
	assert.False(t, f.Bool("missing"))
}

func TestApplication_CloneIsIndependent(t *testing.T) {
	note := "ok"
	a := &Application{ApplicationID: "CP-1", StatusNote: &note, FormData: FormData{"x": "1"}}
	c := a.Clone()
	*c.StatusNote = "changed"
	c.FormData["x"] = "2"

	assert.Equal(t, "ok", *a.StatusNote)
	assert.Equal(t, "1", a.FormData["x"])
}
