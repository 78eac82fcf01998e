package config

import (
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/binlog/internal/foundation/errors"
)

// Duration is a time.Duration written as a Go duration string ("1h30m").
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return errors.WrapError(err, errors.CategoryValidation, "invalid duration").
			WithContext("value", raw).
			WithContext("line", node.Line).
			Build()
	}
	*d = Duration(parsed)
	return nil
}
