package registry

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/specialistvlad/causalgrid/internal/model"
	"github.com/specialistvlad/causalgrid/internal/nodeid"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("nodeid", func(fl validator.FieldLevel) bool {
		return nodeid.Valid(fl.Field().String())
	})
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "nodeid":
		return fmt.Sprintf("%q is not a valid identifier", fe.Value())
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must have at least %s element(s)", fe.Param())
		}
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must have at most %s element(s)", fe.Param())
		}
		return fmt.Sprintf("must be <= %s", fe.Param())
	}
	return fmt.Sprintf("failed %q check", fe.Tag())
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ValidateNode checks a node record against the schema. The first failing
// field is reported as a *model.SchemaValidationError.
func ValidateNode(n *model.Node) error {
	fail := func(field, reason string) error {
		return &model.SchemaValidationError{Kind: "node", ID: string(n.ID), Field: field, Reason: reason}
	}

	if err := validate.Struct(n); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fail(verrs[0].Field(), reasonFor(verrs[0]))
		}
		return fail("", err.Error())
	}

	if n.Scales.HasDuplicates() {
		return fail("scales", "a bridge node needs two distinct scales")
	}
	for i, d := range n.Domains {
		if strings.TrimSpace(d) == "" {
			return fail(fmt.Sprintf("domains[%d]", i), "is required")
		}
	}
	if strings.EqualFold(string(n.Type), string(model.TypeRate)) && !model.ValidRateUnit(n.Unit) {
		return fail("unit", fmt.Sprintf("rate unit %q must name a denominator and a time window", n.Unit))
	}
	if b := n.Baseline; b != nil {
		if b.Point != nil && !finite(*b.Point) {
			return fail("baseline.point", "must be finite")
		}
		if r := b.Range; r != nil {
			if !finite(r.Low) || !finite(r.High) {
				return fail("baseline.range", "must be finite")
			}
			if r.Low > r.High {
				return fail("baseline.range", fmt.Sprintf("low %g exceeds high %g", r.Low, r.High))
			}
		}
		for group, v := range b.Disparities {
			if !finite(v) {
				return fail("baseline.disparities", fmt.Sprintf("value for %q must be finite", group))
			}
		}
	}
	return nil
}
