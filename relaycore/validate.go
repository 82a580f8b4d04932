package relaycore

import "github.com/go-playground/validator/v10"

// validate checks required-field presence on the wire-shaped request structs
// each ingress parser unmarshals into, using gin's own "binding" tag name so
// the tags read the same whether a struct is validated here (manual
// json.Unmarshal, no gin.Context in scope) or by gin's c.ShouldBindJSON.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	return v
}

// Validate runs struct-tag validation against v, returning the first failing
// field's error as-is; callers wrap it into a client-facing message.
func Validate(v interface{}) error {
	return validate.Struct(v)
}
