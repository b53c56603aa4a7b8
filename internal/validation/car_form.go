package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// CarForm carries the listing form exactly as typed by the seller. Year, Km
// and Price stay free-text; no numeric parsing happens here.
type CarForm struct {
	Name        string `json:"name" validate:"required"`
	Model       string `json:"model" validate:"required"`
	Year        string `json:"year" validate:"required"`
	Km          string `json:"km" validate:"required"`
	Price       string `json:"price" validate:"required"`
	City        string `json:"city" validate:"required"`
	UF          string `json:"uf" validate:"required,uf"`
	Whatsapp    string `json:"whatsapp" validate:"required,whatsapp"`
	Description string `json:"description" validate:"required"`
}

// UFOptions is the fixed set of Brazilian state codes accepted in the form.
var UFOptions = []string{
	"AC", "AL", "AP", "AM", "BA", "CE", "DF", "ES", "GO",
	"MA", "MT", "MS", "MG", "PA", "PB", "PR", "PE", "PI",
	"RJ", "RN", "RS", "RO", "RR", "SC", "SP", "SE", "TO",
}

var ufSet = func() map[string]bool {
	set := make(map[string]bool, len(UFOptions))
	for _, uf := range UFOptions {
		set[uf] = true
	}
	return set
}()

// Phone number without separators: DDD + 9-digit mobile, optionally with
// the country code prefixed.
var whatsappPattern = regexp.MustCompile(`^\d{11,12}$`)

// requiredMessages are the per-field messages for empty required fields.
var requiredMessages = map[string]string{
	"name":        "O campo nome é obrigatório",
	"model":       "O modelo é obrigatório",
	"year":        "O ano do carro é obrigatório",
	"km":          "O KM do carro é obrigatório",
	"price":       "O preço é obrigatório",
	"city":        "A cidade é obrigatório",
	"uf":          "Selecione o estado",
	"whatsapp":    "O telefone é obrigatório",
	"description": "A descrição é obrigatória",
}

const (
	msgInvalidUF       = "Selecione uma UF válida"
	msgInvalidWhatsapp = "Número de telefone inválido"
)

// FieldErrors maps a form field name to its validation message.
type FieldErrors map[string]string

// ICarFormValidator validates car form payloads.
type ICarFormValidator interface {
	Validate(form CarForm) FieldErrors
}

type carFormValidator struct {
	validate *validator.Validate
}

// NewCarFormValidator creates a validator with the custom uf and whatsapp
// rules registered. The returned validator is safe for concurrent use and
// cheap enough to run on every field change.
func NewCarFormValidator() ICarFormValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Registration only fails for a nil func or empty tag.
	if err := v.RegisterValidation("uf", func(fl validator.FieldLevel) bool {
		return ufSet[fl.Field().String()]
	}); err != nil {
		panic(fmt.Sprintf("failed to register uf rule: %v", err))
	}
	if err := v.RegisterValidation("whatsapp", func(fl validator.FieldLevel) bool {
		return whatsappPattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("failed to register whatsapp rule: %v", err))
	}

	// Error messages key off the json field names.
	v.RegisterTagNameFunc(jsonTagName)

	return &carFormValidator{validate: v}
}

func jsonTagName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

// Validate checks every field and returns nil when the whole payload is
// well-formed, or a map with one message per failing field. It never
// returns a partial success.
func (cv *carFormValidator) Validate(form CarForm) FieldErrors {
	err := cv.validate.Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// Struct-level failures cannot happen for a plain string struct;
		// treat anything unexpected as a generic form error.
		return FieldErrors{"form": "Dados inválidos"}
	}

	fieldErrors := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		if _, dup := fieldErrors[field]; dup {
			continue // first failing rule per field wins
		}
		fieldErrors[field] = messageFor(field, fe.Tag())
	}
	return fieldErrors
}

func messageFor(field, tag string) string {
	switch tag {
	case "required":
		if msg, ok := requiredMessages[field]; ok {
			return msg
		}
	case "uf":
		return msgInvalidUF
	case "whatsapp":
		return msgInvalidWhatsapp
	}
	return "Campo inválido"
}
