package links

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sundayezeilo/customlinks/internal/errx"
)

// DefaultLocations is the closed set of placement zones used when none is configured.
var DefaultLocations = []string{LocationNav, LocationMenu}

// ValidatorConfig holds the rules applied to every created or updated link.
type ValidatorConfig struct {
	Locations     []string
	DefaultActive bool
}

// Validator is the single gate through which stored records pass.
// It is safe for concurrent use.
type Validator struct {
	locations     []string
	defaultActive bool
	validate      *validator.Validate
}

// candidate carries the checked attributes through validator struct tags.
type candidate struct {
	Href     string `json:"href" validate:"required"`
	Location string `json:"location" validate:"required,link_location"`
}

// NewValidator builds a Validator. Empty or blank locations fall back to DefaultLocations.
func NewValidator(cfg ValidatorConfig) *Validator {
	var locations []string
	for _, l := range cfg.Locations {
		if l = strings.TrimSpace(l); l != "" && !slices.Contains(locations, l) {
			locations = append(locations, l)
		}
	}
	if len(locations) == 0 {
		locations = slices.Clone(DefaultLocations)
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("link_location", func(fl validator.FieldLevel) bool {
		return slices.Contains(locations, fl.Field().String())
	})

	return &Validator{
		locations:     locations,
		defaultActive: cfg.DefaultActive,
		validate:      v,
	}
}

// Locations returns the recognised placement zones.
func (v *Validator) Locations() []string {
	return slices.Clone(v.locations)
}

// Build normalises fields into a Record or returns an Invalid error.
// It performs no I/O.
func (v *Validator) Build(fields Fields) (Record, error) {
	const op = "links.validator.Build"

	rec, err := decodeRecord(fields, v.defaultActive)
	if err != nil {
		return Record{}, errx.E(op, errx.Invalid, err)
	}

	if err := v.validate.Struct(candidate{Href: rec.Href, Location: rec.Location}); err != nil {
		return Record{}, errx.E(op, errx.Invalid, v.describe(err))
	}
	return rec, nil
}

// describe turns validator field errors into readable messages.
func (v *Validator) describe(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "link_location":
			msgs = append(msgs, fmt.Sprintf("%s %q is not one of [%s]",
				fe.Field(), fe.Value(), strings.Join(v.locations, " ")))
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
