package fhir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToLocalMapsDemographics(t *testing.T) {
	p := Patient{
		ID:        "592011",
		Name:      []HumanName{{Given: []string{"Li", "Ming"}, Family: "Wei"}},
		Gender:    "male",
		BirthDate: "1980-04-02",
		Telecom: []ContactPoint{
			{System: "email", Value: "li@example.com"},
			{System: "phone", Value: "555-0100"},
		},
		Address: []Address{{Line: []string{"1 Main St", "Apt 2"}, City: "Boston", State: "MA", PostalCode: "02110"}},
		Communication: []Communication{
			{Language: CodeableConcept{Coding: []Coding{{Display: "English"}}}},
			{Language: CodeableConcept{Coding: []Coding{{Display: "Mandarin"}}}, Preferred: true},
		},
	}

	local := ToLocal(p)
	assert.Equal(t, "592011", local.FHIRID)
	assert.Equal(t, "Li Ming Wei", local.Name)
	assert.Equal(t, "Mandarin", local.Language)
	require.NotNil(t, local.PhoneNumber)
	assert.Equal(t, "555-0100", *local.PhoneNumber)
	require.NotNil(t, local.Email)
	assert.Equal(t, "li@example.com", *local.Email)
	require.NotNil(t, local.Address)
	assert.Equal(t, "1 Main St, Apt 2, Boston, MA 02110", *local.Address)
	assert.Nil(t, local.Location)
}

func TestToLocalDefaults(t *testing.T) {
	local := ToLocal(Patient{ID: "x"})
	assert.Equal(t, "Unknown", local.Name)
	assert.Equal(t, "English", local.Language)
	assert.Nil(t, local.Gender)
	assert.Nil(t, local.Address)
}

func TestBuildPatientSplitsName(t *testing.T) {
	p := BuildPatient(NewPatientInput{Name: "Ana Maria Souza", Gender: "female", PhoneNumber: "555", Address: "Rua 1"})
	require.Len(t, p.Name, 1)
	assert.Equal(t, "Souza", p.Name[0].Family)
	assert.Equal(t, []string{"Ana", "Maria"}, p.Name[0].Given)
	assert.Equal(t, "female", p.Gender)
	require.Len(t, p.Telecom, 1)
	assert.Equal(t, "Rua 1", p.Address[0].Text)
	assert.Empty(t, p.Communication)
}
