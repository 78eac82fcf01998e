package config

import (
	"fmt"

	"git.home.luguber.info/inful/binlog/internal/foundation/normalization"
)

// NormalizationResult collects warnings about values that were rewritten.
type NormalizationResult struct {
	Warnings []string
}

func (r *NormalizationResult) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// NormalizeConfig case-folds enumerations in place. Blank values are left
// for the default appliers; unknown values are errors.
func NormalizeConfig(cfg *Config) (*NormalizationResult, error) {
	res := &NormalizationResult{}
	steps := []func() error{
		func() error { return normalizeField(res, logLevelNormalizer, "logging.level", &cfg.Logging.Level) },
		func() error { return normalizeField(res, logFormatNormalizer, "logging.format", &cfg.Logging.Format) },
		func() error { return normalizeField(res, backendNormalizer, "default_backend", &cfg.DefaultBackend) },
		func() error {
			return normalizeField(res, compressionNormalizer, "durable.compression", &cfg.Durable.Compression)
		},
		func() error {
			return normalizeField(res, compressionNormalizer, "stream.compression", &cfg.Stream.Compression)
		},
		func() error { return normalizeField(res, storageNormalizer, "stream.storage", &cfg.Stream.Storage) },
		func() error {
			return normalizeField(res, retryBackoffNormalizer, "daemon.retry.mode", &cfg.Daemon.Retry.Mode)
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func normalizeField[T ~string](res *NormalizationResult, n *normalization.Normalizer[T], field string, value *T) error {
	raw := string(*value)
	if raw == "" {
		return nil
	}
	parsed, err := n.Parse(raw)
	if err != nil {
		return err
	}
	if string(parsed) != raw {
		res.warnf("normalized %s from %q to %q", field, raw, parsed)
	}
	*value = parsed
	return nil
}
