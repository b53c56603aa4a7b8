package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validForm() CarForm {
	return CarForm{
		Name:        "Onix 1.0",
		Model:       "1.0 flex manual",
		Year:        "2016/2017",
		Km:          "23.000",
		Price:       "45900",
		City:        "Campinas",
		UF:          "SP",
		Whatsapp:    "11987654321",
		Description: "Carro completo, único dono.",
	}
}

func TestValidateCarForm_Valid(t *testing.T) {
	v := NewCarFormValidator()
	assert.Nil(t, v.Validate(validForm()))
}

func TestValidateCarForm_RequiredFields(t *testing.T) {
	v := NewCarFormValidator()

	errs := v.Validate(CarForm{})
	require.NotNil(t, errs)

	// Every field fails, each with its own message.
	assert.Len(t, errs, 9)
	assert.Equal(t, "O campo nome é obrigatório", errs["name"])
	assert.Equal(t, "O modelo é obrigatório", errs["model"])
	assert.Equal(t, "O ano do carro é obrigatório", errs["year"])
	assert.Equal(t, "O KM do carro é obrigatório", errs["km"])
	assert.Equal(t, "O preço é obrigatório", errs["price"])
	assert.Equal(t, "A cidade é obrigatório", errs["city"])
	assert.Equal(t, "Selecione o estado", errs["uf"])
	assert.Equal(t, "O telefone é obrigatório", errs["whatsapp"])
	assert.Equal(t, "A descrição é obrigatória", errs["description"])
}

func TestValidateCarForm_UF(t *testing.T) {
	v := NewCarFormValidator()

	form := validForm()
	form.UF = "XX"
	errs := v.Validate(form)
	require.NotNil(t, errs)
	assert.Equal(t, "Selecione uma UF válida", errs["uf"])
	assert.Len(t, errs, 1)

	for _, uf := range UFOptions {
		form.UF = uf
		assert.Nil(t, v.Validate(form), "expected %s to be accepted", uf)
	}

	// Lowercase is not a member of the set.
	form.UF = "sp"
	assert.NotNil(t, v.Validate(form))
}

func TestValidateCarForm_Whatsapp(t *testing.T) {
	v := NewCarFormValidator()
	form := validForm()

	cases := []struct {
		number string
		ok     bool
	}{
		{"11987654321", true},   // 11 digits
		{"551198765432", true},  // 12 digits
		{"123", false},          // too short
		{"1198765432100", false}, // too long
		{"11 98765-4321", false}, // separators not allowed
		{"", false},
	}
	for _, tc := range cases {
		form.Whatsapp = tc.number
		errs := v.Validate(form)
		if tc.ok {
			assert.Nil(t, errs, "expected %q to pass", tc.number)
		} else {
			require.NotNil(t, errs, "expected %q to fail", tc.number)
			assert.Contains(t, errs, "whatsapp")
		}
	}

	form.Whatsapp = "123"
	errs := v.Validate(form)
	assert.Equal(t, "Número de telefone inválido", errs["whatsapp"])
}

func TestValidateCarForm_SingleFieldFailureReportsOnlyThatField(t *testing.T) {
	v := NewCarFormValidator()
	form := validForm()
	form.Price = ""

	errs := v.Validate(form)
	require.NotNil(t, errs)
	assert.Len(t, errs, 1)
	assert.Equal(t, "O preço é obrigatório", errs["price"])
}
