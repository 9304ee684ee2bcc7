// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// FlagBinder is a params field that registers its own flags, like
// [AdminConnection] with its environment-derived socket default.
type FlagBinder interface {
	AddFlags(flagSet *pflag.FlagSet)
}

// FlagsFromParams binds params for a command's Flags hook. A params
// struct that cannot be bound is a bug in the command, so this panics.
func FlagsFromParams(name string, params any) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	if err := BindFlags(params, flagSet); err != nil {
		panic(fmt.Sprintf("cli: binding %s flags: %v", name, err))
	}
	return flagSet
}

// BindFlags registers a flag for each field of *params tagged
//
//	flag:"name[,x]" desc:"help text" default:"value"
//
// where x is an optional one-letter shorthand and value is parsed the
// way the flag itself would parse it. Fields may be string, bool, int,
// float64, time.Duration or []string (comma-separated). Embedded
// structs are walked; FlagBinder fields bind themselves.
func BindFlags(params any, flagSet *pflag.FlagSet) error {
	value := reflect.ValueOf(params)
	if value.Kind() != reflect.Pointer || value.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("params must be a pointer to a struct, got %T", params)
	}
	return bindStruct(value.Elem(), flagSet)
}

func bindStruct(holder reflect.Value, flagSet *pflag.FlagSet) error {
	for i := range holder.NumField() {
		field := holder.Type().Field(i)
		target := holder.Field(i)
		if field.IsExported() && field.Type.Kind() == reflect.Struct {
			if binder, ok := target.Addr().Interface().(FlagBinder); ok {
				binder.AddFlags(flagSet)
				continue
			}
			if field.Anonymous {
				if err := bindStruct(target, flagSet); err != nil {
					return fmt.Errorf("embedded %s: %w", field.Name, err)
				}
				continue
			}
		}

		tag, ok := field.Tag.Lookup("flag")
		if !ok {
			continue
		}
		name, shorthand, _ := strings.Cut(tag, ",")
		if err := bindField(target, flagSet, name, shorthand, field.Tag.Get("desc"), field.Tag.Get("default")); err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
	}
	return nil
}

// bindField registers the flag with a zero default and then feeds the
// tag default through the flag's own Set, so defaults and command-line
// values share one parser.
func bindField(target reflect.Value, flagSet *pflag.FlagSet, name, shorthand, usage, fallback string) error {
	switch pointer := target.Addr().Interface().(type) {
	case *string:
		flagSet.StringVarP(pointer, name, shorthand, "", usage)
	case *bool:
		flagSet.BoolVarP(pointer, name, shorthand, false, usage)
	case *int:
		flagSet.IntVarP(pointer, name, shorthand, 0, usage)
	case *float64:
		flagSet.Float64VarP(pointer, name, shorthand, 0, usage)
	case *time.Duration:
		flagSet.DurationVarP(pointer, name, shorthand, 0, usage)
	case *[]string:
		// A slice flag appends once it has been Set, so its default goes
		// in at registration instead.
		var initial []string
		if fallback != "" {
			initial = strings.Split(fallback, ",")
		}
		flagSet.StringSliceVarP(pointer, name, shorthand, initial, usage)
		return nil
	default:
		return fmt.Errorf("unsupported type %s for flag --%s", target.Type(), name)
	}

	if fallback == "" {
		return nil
	}
	registered := flagSet.Lookup(name)
	if err := registered.Value.Set(fallback); err != nil {
		return fmt.Errorf("default for --%s: %w", name, err)
	}
	registered.DefValue = registered.Value.String()
	return nil
}
