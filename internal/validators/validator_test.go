package validators

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
)

type sampleRequest struct {
	Phone    string `json:"phone" validate:"required,phone_number"`
	Code     string `json:"code" validate:"omitempty,numeric_code"`
	Rating   int    `json:"rating" validate:"rating_value"`
	Level    int    `json:"level" validate:"vip_level"`
	Platform string `json:"platform" validate:"push_platform"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	Register(v)
	return v
}

func TestRegister_AcceptsValidRequest(t *testing.T) {
	t.Parallel()

	req := sampleRequest{Phone: "+1 (555) 010-9999", Code: "123456", Rating: 5, Level: 3, Platform: "ios"}
	if err := newValidator().Struct(req); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
}

func TestDescribe_ReportsEveryField(t *testing.T) {
	t.Parallel()

	req := sampleRequest{Phone: "call me", Code: "12ab", Rating: 6, Level: 0, Platform: "windows"}
	err := Describe(newValidator().Struct(req))

	var described ValidationErrors
	if !errors.As(err, &described) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	tags := map[string]bool{}
	for _, fe := range described {
		tags[fe.Tag] = true
	}
	for _, tag := range []string{"phone_number", "numeric_code", "rating_value", "vip_level", "push_platform"} {
		if !tags[tag] {
			t.Errorf("expected a %s failure in %v", tag, described)
		}
	}
	if !strings.Contains(err.Error(), "Rating must be between 1 and 5") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestDescribe_PassesThroughOtherErrors(t *testing.T) {
	t.Parallel()

	plain := errors.New("unexpected EOF")
	if got := Describe(plain); got != plain {
		t.Errorf("expected the error unchanged, got %v", got)
	}
}
