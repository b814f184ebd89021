// Package serializer turns request bodies into validated domain values and
// domain values into response records.
//
// Validation rules live in struct tags and are checked with
// go-playground/validator. Field names in error messages are the JSON names,
// so a client sees {"language": ["\"cobol2\" is not a valid choice."]}.
package serializer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/snippets-api/internal/apperror"
	"github.com/sakif/snippets-api/internal/model"
)

// Limits on stored values. The validate tags below repeat them as literals.
const (
	MaxTitleLength = 100
	MaxCodeLength  = 100_000
)

// Field-level messages. Clients match on these strings.
const (
	msgRequired = "This field is required."
	msgBlank    = "This field may not be blank."
	msgNull     = "This field may not be null."
	msgUsername = "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
)

var usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}_.@+-]+$`)

// SnippetInput is the decoded body of a create or update request.
//
// Pointers distinguish "absent" from "zero": a PUT that omits linenos keeps
// the stored value, while one that sends false overwrites it.
// id and owner are read-only and therefore not decoded at all.
// An explicit null is not the same as an omitted field: it is recorded while
// decoding and rejected by ApplySnippet.
type SnippetInput struct {
	Title    *string `json:"title"`
	Code     *string `json:"code"`
	LineNos  *bool   `json:"linenos"`
	Language *string `json:"language"`
	Style    *string `json:"style"`

	nulls []string
}

var snippetInputFields = []string{"title", "code", "linenos", "language", "style"}

// UnmarshalJSON decodes the body as usual and remembers which fields were null.
func (in *SnippetInput) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	type plain SnippetInput
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*in = SnippetInput(p)
	in.nulls = nil
	for key, value := range raw {
		if !bytes.Equal(value, []byte("null")) {
			continue
		}
		// encoding/json matches keys case-insensitively, so do the same here.
		for _, name := range snippetInputFields {
			if strings.EqualFold(key, name) {
				in.nulls = append(in.nulls, name)
			}
		}
	}
	return nil
}

// snippetFields is the merged snippet that the validation rules run against.
type snippetFields struct {
	Title    string `json:"title" validate:"max=100"`
	Code     string `json:"code" validate:"required,max=100000"`
	Language string `json:"language" validate:"language"`
	Style    string `json:"style" validate:"style"`
}

// RegisterInput is the body of POST /auth/register and POST /auth/login.
type RegisterInput struct {
	Username string `json:"username" validate:"required,max=150,username"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// Validator owns the configured validator. It is safe for concurrent use.
type Validator struct {
	validate *validator.Validate
}

// New builds a Validator with the snippet and user rules registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON names instead of Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(v, "language", func(fl validator.FieldLevel) bool {
		return model.IsLanguage(fl.Field().String())
	})
	mustRegister(v, "style", func(fl validator.FieldLevel) bool {
		return model.IsStyle(fl.Field().String())
	})
	mustRegister(v, "username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})

	return &Validator{validate: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("serializer: registering %q validation: %v", tag, err))
	}
}

// ApplySnippet merges in onto dst and validates the result.
//
// dst is either a template holding the create defaults or the stored snippet
// being updated. With partial == false, code must be present in the input
// (create and PUT); with partial == true every field is optional (PATCH).
// dst is only modified when validation succeeds; otherwise the returned error
// wraps apperror.ErrValidation and lists every failing field.
//
// The title is stored as typed apart from surrounding whitespace. Code is
// stored verbatim. Escaping for display is left to clients.
func (v *Validator) ApplySnippet(dst *model.Snippet, in SnippetInput, partial bool) error {
	merged := *dst
	if in.Title != nil {
		merged.Title = strings.TrimSpace(*in.Title)
	}
	if in.Code != nil {
		merged.Code = *in.Code
	}
	if in.LineNos != nil {
		merged.LineNos = *in.LineNos
	}
	if in.Language != nil {
		merged.Language = *in.Language
	}
	if in.Style != nil {
		merged.Style = *in.Style
	}

	fields := map[string][]string{}
	for _, name := range in.nulls {
		fields[name] = []string{msgNull}
	}
	if _, null := fields["code"]; !null && !partial && in.Code == nil {
		fields["code"] = []string{msgRequired}
	}

	err := v.validate.Struct(snippetFields{
		Title:    merged.Title,
		Code:     merged.Code,
		Language: merged.Language,
		Style:    merged.Style,
	})
	collect(fields, err)

	if len(fields) > 0 {
		return apperror.Invalid(fields)
	}

	*dst = merged
	return nil
}

// ValidateCredentials checks a registration or login body.
func (v *Validator) ValidateCredentials(in RegisterInput) error {
	fields := map[string][]string{}
	collect(fields, v.validate.Struct(in))
	if len(fields) > 0 {
		return apperror.Invalid(fields)
	}
	return nil
}

// collect adds one message per failing validation to fields. A field that
// already has a message (e.g. "required" set by the caller) keeps only that one.
func collect(fields map[string][]string, err error) {
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fields["non_field_errors"] = append(fields["non_field_errors"], err.Error())
		return
	}
	for _, fe := range verrs {
		name := fe.Field()
		if _, seen := fields[name]; seen {
			continue
		}
		fields[name] = []string{message(fe)}
	}
}

// message renders one failed rule as a client-facing sentence.
func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return msgBlank
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
	case "language", "style":
		return fmt.Sprintf("%q is not a valid choice.", fe.Value())
	case "username":
		return msgUsername
	default:
		return fmt.Sprintf("Failed the %q rule.", fe.Tag())
	}
}
