package formdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const individualDoc = `{
  "clientRegistration": {
    "principal": {
      "fullName": "Ama Mensah",
      "email": "ama@example.com",
      "mobileNumber": "+233 20 000 0000"
    },
    "joint": {"name": "Kofi Mensah", "email": "kofi@example.com"}
  },
  "declarations": {"agreed": true, "signedOn": null}
}`

func TestFlattenKeepsDocumentOrder(t *testing.T) {
	fields := Flatten([]byte(individualDoc))
	require.Len(t, fields, 7)

	assert.Equal(t, []string{"clientRegistration", "principal", "fullName"}, fields[0].Path)
	assert.Equal(t, "Ama Mensah", fields[0].Value)
	assert.Equal(t, "Client Registration / Principal / Full Name", fields[0].Label())
	assert.Equal(t, "Kofi Mensah", fields[3].Value)
	assert.Equal(t, "Yes", fields[5].Value)
	assert.Equal(t, "", fields[6].Value)
}

func TestFlattenArrays(t *testing.T) {
	fields := Flatten([]byte(`{"directors":[{"name":"A"},{"name":"B"}],"empty":[]}`))
	require.Len(t, fields, 2)
	assert.Equal(t, "Directors / #2 / Name", fields[1].Label())
}

func TestFlattenInvalidDocument(t *testing.T) {
	assert.Nil(t, Flatten([]byte(`{"broken":`)))
	assert.Nil(t, Flatten(nil))
}

func TestExtractContact(t *testing.T) {
	c := ExtractContact([]byte(individualDoc))
	assert.Equal(t, Contact{Name: "Ama Mensah", Email: "ama@example.com", Phone: "+233 20 000 0000"}, c)
}

func TestExtractContactMatchesEmailShapedValues(t *testing.T) {
	c := ExtractContact([]byte(`{"company":{"contact":"info@acme.test","telephone":"0302"}}`))
	assert.Equal(t, "info@acme.test", c.Email)
	assert.Equal(t, "0302", c.Phone)
	assert.Empty(t, c.Name)
}

func TestExtractContactToleratesOddShapes(t *testing.T) {
	assert.Equal(t, Contact{}, ExtractContact([]byte(`[1,2,3]`)))
	assert.Equal(t, Contact{}, ExtractContact([]byte(`not json`)))
	assert.Equal(t, Contact{}, ExtractContact([]byte(`{"email": 42, "name": {"first": ""}}`)))
}

func TestLookupEmail(t *testing.T) {
	doc := []byte(`{"clientRegistration":{"principal":{"email":" a@b.com "}},"other":{"email":"nope"}}`)

	email, ok := LookupEmail(doc, []string{"other.email", "clientRegistration.principal.email"})
	require.True(t, ok)
	assert.Equal(t, "a@b.com", email)

	_, ok = LookupEmail(doc, []string{"missing.path", "other.email"})
	assert.False(t, ok)

	_, ok = LookupEmail([]byte(`{"clientRegistration":"flat"}`), []string{"clientRegistration.principal.email"})
	assert.False(t, ok)
}

func TestIsEmail(t *testing.T) {
	assert.True(t, IsEmail("a@b.co"))
	assert.False(t, IsEmail("a@b"))
	assert.False(t, IsEmail("a b@c.com"))
}

func TestHumanize(t *testing.T) {
	assert.Equal(t, "Bank Proof", Humanize("bankProof"))
	assert.Equal(t, "Tax Id Number", Humanize("tax_id_number"))
	assert.Equal(t, "TIN", Humanize("TIN"))
	assert.Equal(t, "#3", Humanize("3"))
}
