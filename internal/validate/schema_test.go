package validate

import (
	"encoding/json"
	"testing"

	"github.com/hotsaucejake/ledger-sub000/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noteSchema() model.Schema {
	return model.Schema{
		Fields: []model.SchemaField{
			{Name: "title", Type: model.FieldString, Required: true},
			{Name: "body", Type: model.FieldText},
			{Name: "due", Type: model.FieldDate, Nullable: true},
			{Name: "done", Type: model.FieldBoolean},
		},
	}
}

func TestCompileAndValidateEntryDataAccepts(t *testing.T) {
	compiled, err := CompileSchema(noteSchema())
	require.NoError(t, err)

	data := json.RawMessage(`{"title":"buy milk","body":"2% please","due":null,"done":false}`)
	require.NoError(t, ValidateEntryData(compiled, noteSchema(), data))
}

func TestValidateEntryDataRejectsMissingRequired(t *testing.T) {
	compiled, err := CompileSchema(noteSchema())
	require.NoError(t, err)

	data := json.RawMessage(`{"body":"no title here"}`)
	err = ValidateEntryData(compiled, noteSchema(), data)
	require.Error(t, err)
	kind, ok := model.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, model.KindValidation, kind)
}

func TestValidateEntryDataRejectsUnknownField(t *testing.T) {
	compiled, err := CompileSchema(noteSchema())
	require.NoError(t, err)

	data := json.RawMessage(`{"title":"x","unexpected":true}`)
	require.Error(t, ValidateEntryData(compiled, noteSchema(), data))
}

func TestValidateEntryDataRejectsWrongType(t *testing.T) {
	compiled, err := CompileSchema(noteSchema())
	require.NoError(t, err)

	data := json.RawMessage(`{"title":123}`)
	require.Error(t, ValidateEntryData(compiled, noteSchema(), data))
}

func TestValidateEntryDataRejectsMalformedDate(t *testing.T) {
	compiled, err := CompileSchema(noteSchema())
	require.NoError(t, err)

	data := json.RawMessage(`{"title":"x","due":"not-a-date"}`)
	require.Error(t, ValidateEntryData(compiled, noteSchema(), data))
}

func TestValidateEntryDataRejectsOversizedPayload(t *testing.T) {
	compiled, err := CompileSchema(noteSchema())
	require.NoError(t, err)

	huge := make([]byte, MaxDataBytes+1)
	for i := range huge {
		huge[i] = 'a'
	}
	data := json.RawMessage(`{"title":"` + string(huge) + `"}`)
	err = ValidateEntryData(compiled, noteSchema(), data)
	require.Error(t, err)
	kind, _ := model.KindOf(err)
	assert.Equal(t, model.KindValidation, kind)
}

func TestFTSContentForEntryPrefersBody(t *testing.T) {
	data := json.RawMessage(`{"title":"x","body":"searchable text"}`)
	assert.Equal(t, "searchable text", FTSContentForEntry(data))
}

func TestFTSContentForEntryFallsBackToWholeObject(t *testing.T) {
	data := json.RawMessage(`{"title":"x","done":true}`)
	assert.Contains(t, FTSContentForEntry(data), "title")
}

func TestValidateSchemaShapeRejectsNoFields(t *testing.T) {
	_, err := ValidateSchemaShape(json.RawMessage(`{"fields":[]}`))
	require.Error(t, err)
}

func TestValidateSchemaShapeRejectsDuplicateFieldNames(t *testing.T) {
	_, err := ValidateSchemaShape(json.RawMessage(`{"fields":[{"name":"a","type":"string"},{"name":"a","type":"number"}]}`))
	require.Error(t, err)
}

func TestValidateSchemaShapeRejectsUnknownType(t *testing.T) {
	_, err := ValidateSchemaShape(json.RawMessage(`{"fields":[{"name":"a","type":"vector3"}]}`))
	require.Error(t, err)
}

func TestValidateSchemaShapeAccepts(t *testing.T) {
	s, err := ValidateSchemaShape(json.RawMessage(`{"fields":[{"name":"a","type":"string","required":true}]}`))
	require.NoError(t, err)
	assert.Len(t, s.Fields, 1)
}
