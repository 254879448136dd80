package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

type repoRequest struct {
	Path string `json:"path" validate:"required"`
}

type commitRequest struct {
	repoRequest
	Message string   `json:"message" validate:"max=65536"`
	Files   []string `json:"files" validate:"dive,required,relpath"`
}

type createBranchRequest struct {
	repoRequest
	Name       string `json:"name" validate:"required"`
	StartPoint string `json:"startPoint"`
}

type checkoutRequest struct {
	repoRequest
	Name string `json:"name" validate:"required"`
}

type mergeRequest struct {
	repoRequest
	With string `json:"with" validate:"required"`
}

type rebaseRequest struct {
	repoRequest
	Onto string `json:"onto" validate:"required"`
}

type resolveConflictsRequest struct {
	repoRequest
	Files []string `json:"files" validate:"dive,required,relpath"`
}

type fileRequest struct {
	File    string `json:"file" validate:"required"`
	Content string `json:"content"`
}

type cleanupRequest struct {
	Path string `json:"path" validate:"required"`
}

func newValidator() (*validator.Validate, error) {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("relpath", validateRelPath); err != nil {
		return nil, fmt.Errorf("register relpath validation: %w", err)
	}
	return v, nil
}

// validateRelPath accepts repository-relative paths that stay inside the
// repository.
func validateRelPath(fl validator.FieldLevel) bool {
	value := strings.TrimSpace(fl.Field().String())
	if value == "" || filepath.IsAbs(value) {
		return false
	}
	cleaned := path.Clean(filepath.ToSlash(value))
	return cleaned != ".." && !strings.HasPrefix(cleaned, "../") && !strings.HasPrefix(cleaned, "/")
}

// decode reads a JSON body into dst and validates it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is required")
		}
		return fmt.Errorf("malformed request body: %w", err)
	}
	return s.check(dst)
}

func (s *Server) check(req any) error {
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describeFieldError(fe))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "relpath":
		return fmt.Sprintf("%s must be a path inside the repository, got %q", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
