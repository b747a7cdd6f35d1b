package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/okian/hackjudge/internal/domain/errs"
	"github.com/okian/hackjudge/internal/domain/model"
)

const maxBodyBytes = 1 << 20

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// decode reads a JSON body into v and checks its validate tags.
func decode(r *http.Request, op string, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errs.New(op, errs.ErrValidation, "request body is empty")
		}
		return errs.Wrap(op, errs.ErrValidation, err)
	}
	return check(op, v)
}

// check runs the validator over a struct or a slice of structs.
func check(op string, v any) error {
	err := requestValidator().Struct(v)
	if err == nil {
		return nil
	}
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return errs.Wrap(op, errs.ErrValidation, err)
	}
	p := errs.NewValidation(op)
	for _, fe := range fields {
		if fe.Param() != "" {
			p.Addf("%s: %s=%s", fieldPath(fe), fe.Tag(), fe.Param())
			continue
		}
		p.Addf("%s: %s", fieldPath(fe), fe.Tag())
	}
	return p.Err()
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func queryRound(r *http.Request, op string) (model.Round, error) {
	raw := r.URL.Query().Get("round")
	round, ok := model.ParseRound(raw)
	if !ok {
		return "", errs.Newf(op, errs.ErrValidation, "round: unknown round %q", raw)
	}
	return round, nil
}

func queryBool(r *http.Request, op, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errs.Newf(op, errs.ErrValidation, "%s: not a boolean", name)
	}
	return b, nil
}

func queryInt(r *http.Request, op, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errs.Newf(op, errs.ErrValidation, "%s: not an integer", name)
	}
	return n, nil
}
