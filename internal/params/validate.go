package params

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// reserved columns produced by every lead query
var reservedColumns = map[string]bool{
	"userId":            true,
	"leadCreateEventId": true,
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// 에러 필드명은 YAML 경로로 표시
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks presence and ranges with struct tags, then cross-field rules
// 실패 시 첫 번째 ValidationError 반환
func Validate(f *File) error {
	if err := validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fromFieldError(verrs[0])
		}
		return err
	}

	// === Calibration ===
	c := f.RunMode.Train.CalibrationParams
	if c.Enabled() && c.CV < 2 {
		return ValidationError{"run_mode.train.calibration_params.cv", "must be >= 2 when method is set"}
	}
	if !c.Enabled() && c.CV != 0 {
		return ValidationError{"run_mode.train.calibration_params.method", "required when cv is set"}
	}

	// === Features ===
	seen := make(map[string]bool)
	for _, name := range f.General.Features.All() {
		if reservedColumns[name] {
			return ValidationError{"general.features", fmt.Sprintf("%q is a key column, not a feature", name)}
		}
		if seen[name] {
			return ValidationError{"general.features", fmt.Sprintf("duplicate feature %q", name)}
		}
		seen[name] = true
	}

	return nil
}

func fromFieldError(fe validator.FieldError) ValidationError {
	// File.general.model-id -> general.model-id
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}

	msg := fe.Tag()
	if fe.Param() != "" {
		msg += "=" + fe.Param()
	}
	return ValidationError{Field: field, Message: msg}
}
