package httpapi

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"

	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"

	"github.com/MrEthical07/sessionauth"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBaseURL = "https://schemas.sessionauth.dev/"

// Request schemas, by file name under schemas/.
const (
	schemaRegister       = "register.json"
	schemaLogin          = "login.json"
	schemaForgotPassword = "forgot_password.json"
	schemaResetPassword  = "reset_password.json"
)

// Messages for keyword failures, keyed by field then keyword.
var fieldMessages = map[string]map[string]string{
	"email": {
		"type":      "Invalid email address.",
		"minLength": "Email must be at least 6 characters.",
		"maxLength": "Email cannot exceed 100 characters.",
		"format":    "Invalid email address.",
	},
	"password": {
		"minLength": "Password must be at least 8 characters.",
		"maxLength": "Password cannot exceed 100 characters.",
	},
	"confirmPassword": {
		"minLength": "Confirm password must be at least 8 characters.",
		"maxLength": "Confirm password cannot exceed 100 characters.",
	},
	"verificationCode": {
		"type":      sessionauth.MsgInvalidCode,
		"minLength": sessionauth.MsgInvalidCode,
		"maxLength": sessionauth.MsgInvalidCode,
	},
}

var patternMessages = map[string]string{
	"[0-9]":        "At least one number is required.",
	"[A-Za-z]":     "At least one letter is required.",
	"[a-z]":        "At least one lowercase letter is required.",
	"[A-Z]":        "At least one uppercase letter is required.",
	"[^A-Za-z0-9]": "At least one special character is required.",
}

// validator holds the compiled request schemas.
type validator struct {
	schemas map[string]*jschema.Schema
}

func newValidator() (*validator, error) {
	entries, err := fs.ReadDir(schemaFS, "schemas")
	if err != nil {
		return nil, fmt.Errorf("read schemas: %w", err)
	}

	c := jschema.NewCompiler()
	c.AssertFormat()

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		data, err := schemaFS.ReadFile(path.Join("schemas", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", entry.Name(), err)
		}
		doc, err := jschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("parse schema %s: %w", entry.Name(), err)
		}
		if err := c.AddResource(schemaBaseURL+entry.Name(), doc); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", entry.Name(), err)
		}
		names = append(names, entry.Name())
	}

	v := &validator{schemas: make(map[string]*jschema.Schema, len(names))}
	for _, name := range names {
		sch, err := c.Compile(schemaBaseURL + name)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		v.schemas[name] = sch
	}
	return v, nil
}

// decode reads the request body, validates it against the named schema and
// unmarshals it into dst. Schema failures are returned as *ValidationError.
func (v *validator) decode(w http.ResponseWriter, r *http.Request, maxBytes int64, name string, dst any) error {
	sch, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("httpapi: unknown schema %q", name)
	}
	if r.Body == nil {
		return invalidBody()
	}
	defer func() { _ = r.Body.Close() }()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
	if err != nil {
		return invalidBody()
	}

	inst, err := jschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return invalidBody()
	}

	if err := sch.Validate(inst); err != nil {
		var ve *jschema.ValidationError
		if !errors.As(err, &ve) {
			return fmt.Errorf("validate %s: %w", name, err)
		}
		return &ValidationError{Errors: fieldErrors(ve)}
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return invalidBody()
	}
	return nil
}

func invalidBody() *ValidationError {
	return &ValidationError{Errors: []FieldError{{Path: "", Message: "Invalid JSON body."}}}
}

func fieldErrors(ve *jschema.ValidationError) []FieldError {
	var out []FieldError
	var walk func(*jschema.ValidationError)
	walk = func(e *jschema.ValidationError) {
		if len(e.Causes) > 0 {
			for _, cause := range e.Causes {
				walk(cause)
			}
			return
		}
		out = append(out, leafErrors(e)...)
	}
	walk(ve)
	return out
}

func leafErrors(e *jschema.ValidationError) []FieldError {
	location := strings.Join(e.InstanceLocation, ".")

	switch k := e.ErrorKind.(type) {
	case *kind.Required:
		out := make([]FieldError, 0, len(k.Missing))
		for _, field := range k.Missing {
			out = append(out, FieldError{Path: joinPath(location, field), Message: "Required."})
		}
		return out
	case *kind.Pattern:
		if msg, ok := patternMessages[k.Want]; ok {
			return []FieldError{{Path: location, Message: msg}}
		}
	case *kind.Type:
		if location == "" {
			return []FieldError{{Path: location, Message: "Expected an object."}}
		}
	}

	keyword := ""
	if kp := e.ErrorKind.KeywordPath(); len(kp) > 0 {
		keyword = kp[len(kp)-1]
	}
	if msg, ok := fieldMessages[location][keyword]; ok {
		return []FieldError{{Path: location, Message: msg}}
	}
	return []FieldError{{Path: location, Message: "Invalid value."}}
}

func joinPath(parent, field string) string {
	if parent == "" {
		return field
	}
	return parent + "." + field
}
