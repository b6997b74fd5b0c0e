// Package validation valida las entradas de los casos de uso con go-playground/validator
// y traduce los fallos a domain.ValidationError.
package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/agro-inventario/internal/domain"
	"github.com/jhoicas/agro-inventario/internal/domain/inventory"
)

// ScaleReason motivo para cantidades o importes con más decimales de los que se guardan.
const ScaleReason = "admite hasta 4 decimales"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// decimal.Decimal se valida como float para que gt/gte funcionen con las etiquetas estándar
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	// los campos se reportan con su nombre JSON
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// Struct valida s y devuelve *domain.ValidationError con un motivo por campo.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &domain.ValidationError{Fields: map[string]string{"_": err.Error()}}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = reason(fe)
	}
	return &domain.ValidationError{Fields: fields}
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "es obligatorio"
	case "gt":
		return "debe ser mayor que " + fe.Param()
	case "gte":
		return "debe ser mayor o igual que " + fe.Param()
	case "max":
		return "excede la longitud máxima " + fe.Param()
	case "oneof":
		return "debe ser uno de: " + fe.Param()
	default:
		return "inválido (" + fe.Tag() + ")"
	}
}

// Merge agrega al error de validación existente (o crea uno) el campo dado.
func Merge(err error, field, why string) error {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		ve.Fields[field] = why
		return ve
	}
	return domain.NewValidationError(field, why)
}

// CheckScale agrega a err los campos de values que no caben en la escala guardada.
// Devuelve err sin cambios si todos caben.
func CheckScale(err error, values map[string]decimal.Decimal) error {
	for field, d := range values {
		if !inventory.FitsScale(d) {
			err = Merge(err, field, ScaleReason)
		}
	}
	return err
}
