package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	DefaultMarkers = []string{
		"STRICTLY CONFIDENTIAL",
		"INTERNAL ONLY",
		"DO NOT DISTRIBUTE",
		"TOP SECRET",
	}

	DefaultOverrideCues = []string{
		"pushed to",
		"delayed",
		"overrides",
		"supersedes",
		"superseded",
		"postponed",
		"deferred",
		"moved to",
		"no longer",
		"cancelled",
		"canceled",
		"replaced by",
		"descoped",
		"changed to",
		"instead of",
		"removed from",
	}

	DefaultAuthoritativeTypes = []string{"update"}
)

// guardrailFile represents the structure of the guardrail YAML file
type guardrailFile struct {
	Markers            []string `yaml:"markers"`
	OverrideCues       []string `yaml:"override_cues"`
	AuthoritativeTypes []string `yaml:"authoritative_types"`
}

// loadGuardrailFile fills lists missing from the environment, first from the
// YAML file and then from the built-in defaults
func loadGuardrailFile(cfg *GuardrailConfig) error {
	var fileData guardrailFile

	if cfg.File != "" {
		data, err := os.ReadFile(cfg.File)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return fmt.Errorf("read guardrail file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &fileData); err != nil {
				return fmt.Errorf("parse guardrail YAML %s: %w", cfg.File, err)
			}
		}
	}

	cfg.Markers = firstNonEmpty(cfg.Markers, fileData.Markers, DefaultMarkers)
	cfg.OverrideCues = firstNonEmpty(cfg.OverrideCues, fileData.OverrideCues, DefaultOverrideCues)
	cfg.AuthoritativeTypes = firstNonEmpty(cfg.AuthoritativeTypes, fileData.AuthoritativeTypes, DefaultAuthoritativeTypes)

	return nil
}

func firstNonEmpty(lists ...[]string) []string {
	for _, l := range lists {
		if len(l) > 0 {
			return l
		}
	}
	return nil
}
