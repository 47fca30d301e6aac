package handlers

import (
	"errors"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"twipost/auth"
	"twipost/storage"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
)

type RegistrationForm struct {
	Username  string `form:"username" validate:"required,max=150,username"`
	Email     string `form:"email" validate:"omitempty,max=254,email"`
	Password1 string `form:"password1" validate:"required,min=8,bcryptlen,notnumeric"`
	Password2 string `form:"password2" validate:"required,eqfield=Password1"`
}

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// bcrypt refuses longer passwords.
const maxPasswordBytes = 72

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		return field.Tag.Get("form")
	})
	mustRegister(v, "username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "bcryptlen", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= maxPasswordBytes
	})
	mustRegister(v, "notnumeric", func(fl validator.FieldLevel) bool {
		return strings.Trim(fl.Field().String(), "0123456789") != ""
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

var fieldMessages = map[string]string{
	"required":   "This field is required.",
	"max":        "Ensure this value is not too long.",
	"min":        "This password is too short. It must contain at least 8 characters.",
	"email":      "Enter a valid email address.",
	"username":   "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.",
	"notnumeric": "This password is entirely numeric.",
	"bcryptlen":  "This password is too long. It must be at most 72 bytes.",
	"eqfield":    "The two password fields didn't match.",
}

// Validate returns the form errors keyed by field name, or nil when the form
// is valid.
func (f *RegistrationForm) Validate() map[string][]string {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return map[string][]string{"form": {err.Error()}}
	}
	errs := make(map[string][]string)
	for _, fe := range fieldErrors {
		message, found := fieldMessages[fe.Tag()]
		if !found {
			message = "Invalid value."
		}
		errs[fe.Field()] = append(errs[fe.Field()], message)
	}
	return errs
}

func registrationForm(r *http.Request) *RegistrationForm {
	return &RegistrationForm{
		Username:  strings.TrimSpace(r.PostFormValue("username")),
		Email:     strings.TrimSpace(r.PostFormValue("email")),
		Password1: r.PostFormValue("password1"),
		Password2: r.PostFormValue("password2"),
	}
}

func (h *HTTPHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	form := &RegistrationForm{}
	if r.Method == http.MethodGet {
		h.render(w, r, http.StatusOK, "register.html", map[string]interface{}{
			"Form":   form,
			"Errors": map[string][]string{},
		})
		return
	}

	form = registrationForm(r)
	errs := form.Validate()
	if errs == nil {
		user, err := auth.CreateUser(r.Context(), h.Storage, form.Username, form.Email, form.Password1)
		if err == nil {
			if err := h.Sessions.Login(w, user.Id); err != nil {
				log.Printf("Failed to start session for %s: %s", user.Username, err.Error())
			}
			log.WithField("user", user.Username).Info("user registered")
			h.redirect(w, r, "tweet_list")
			return
		}
		if !errors.Is(err, storage.CollisionError) {
			log.Printf("Failed to register user: %s", err.Error())
			http.Error(w, INTERNAL_ERROR_MESSAGE, http.StatusInternalServerError)
			return
		}
		errs = map[string][]string{"username": {"A user with that username already exists."}}
	}

	h.render(w, r, http.StatusOK, "register.html", map[string]interface{}{
		"Form":   form,
		"Errors": errs,
	})
}
