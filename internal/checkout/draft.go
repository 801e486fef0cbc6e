package checkout

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/joao-fontenele/greeneye-shop/internal/domain"
)

// Draft is the in-progress checkout form.
type Draft struct {
	Name          string               `json:"name" validate:"required"`
	Email         string               `json:"email" validate:"required,basic_email"`
	Phone         string               `json:"phone" validate:"required,phone10"`
	Street        string               `json:"street" validate:"required"`
	City          string               `json:"city" validate:"required"`
	State         string               `json:"state" validate:"required"`
	Pincode       string               `json:"pincode" validate:"required,pincode6"`
	PaymentMethod domain.PaymentMethod `json:"paymentMethod" validate:"payment_method"`
}

func (d Draft) ShippingAddress() domain.ShippingAddress {
	return domain.ShippingAddress{
		Name:    d.Name,
		Street:  d.Street,
		City:    d.City,
		State:   d.State,
		Pincode: d.Pincode,
		Phone:   d.Phone,
	}
}

// Set updates one field by name. Unknown fields are ignored.
func (d *Draft) Set(field domain.Field, value string) {
	switch field {
	case domain.FieldName:
		d.Name = value
	case domain.FieldEmail:
		d.Email = value
	case domain.FieldPhone:
		d.Phone = value
	case domain.FieldStreet:
		d.Street = value
	case domain.FieldCity:
		d.City = value
	case domain.FieldState:
		d.State = value
	case domain.FieldPincode:
		d.Pincode = value
	case domain.FieldPaymentMethod:
		d.PaymentMethod = domain.PaymentMethod(value)
	}
}

const (
	MessageMissingFields = "Please fill in all fields"
	MessageInvalidPhone  = "Enter a valid 10-digit phone number"
	MessageInvalidEmail  = "Enter a valid email address"
	MessageInvalidPin    = "Enter a valid 6-digit pincode"
	MessageInvalidMethod = "Choose a payment method"
	MessageCartEmpty     = "Your cart is empty"
)

var (
	phonePattern   = regexp.MustCompile(`^\d{10}$`)
	emailPattern   = regexp.MustCompile(`\S+@\S+\.\S+`)
	pincodePattern = regexp.MustCompile(`^\d{6}$`)
)

// Rules are checked in this order and only the first failure is reported.
var rulePriority = map[string]int{
	"required":       0,
	"phone10":        1,
	"basic_email":    2,
	"pincode6":       3,
	"payment_method": 4,
}

var ruleMessages = map[string]string{
	"required":       MessageMissingFields,
	"phone10":        MessageInvalidPhone,
	"basic_email":    MessageInvalidEmail,
	"pincode6":       MessageInvalidPin,
	"payment_method": MessageInvalidMethod,
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	mustRegister(v, "phone10", matches(phonePattern))
	mustRegister(v, "basic_email", matches(emailPattern))
	mustRegister(v, "pincode6", matches(pincodePattern))
	mustRegister(v, "payment_method", func(fl validator.FieldLevel) bool {
		method := domain.PaymentMethod(fl.Field().String())
		return method == "" || method.Valid()
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

func matches(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

// Validate checks the draft and the cart locally. It returns the first
// failing rule as a *domain.ValidationError, or nil.
func Validate(d Draft, cart domain.Cart) error {
	err := validate.Struct(d)
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		first := fieldErrs[0]
		for _, fe := range fieldErrs[1:] {
			if rulePriority[fe.Tag()] < rulePriority[first.Tag()] {
				first = fe
			}
		}
		return &domain.ValidationError{
			Field:   domain.Field(first.Field()),
			Message: ruleMessages[first.Tag()],
		}
	}
	if err != nil {
		return err
	}

	if cart.IsEmpty() {
		return &domain.ValidationError{Field: domain.FieldCart, Message: MessageCartEmpty}
	}
	return nil
}
